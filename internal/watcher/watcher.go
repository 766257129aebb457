// Package watcher reloads schemes when their .properties file or index store changes on disk.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/hive/internal/config"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher watches the scheme config directory and each registered index directory, and
// calls onChange once per scheme after its files have been quiet for the debounce period.
type Watcher struct {
	confDir     string
	onChange    func(name string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	indexDirs   map[string]string // cleaned index dir -> scheme name
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a scheme must be quiet before onChange fires. Non-positive
// values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over confDir. onChange receives the scheme name.
func NewWatcher(confDir string, onChange func(name string), opts ...Option) *Watcher {
	w := &Watcher{
		confDir:     filepath.Clean(confDir),
		onChange:    onChange,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		indexDirs:   make(map[string]string),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fw.Add(w.confDir); err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	for dir, name := range w.indexDirs {
		if err := fw.Add(dir); err != nil {
			w.logger.Debug("watcher failed to add index directory", zap.String("scheme", name), zap.String("path", dir), zap.Error(err))
		}
	}
	w.watcher = fw
	w.started = true
	w.logger.Debug("watcher starting", zap.String("config_dir", w.confDir), zap.Int("index_dirs", len(w.indexDirs)))
	w.mu.Unlock()
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	name, ok := w.schemeFor(ev.Name)
	if !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name), zap.String("scheme", name))
	w.schedule(name)
}

// schemeFor maps a changed path to the scheme it belongs to.
func (w *Watcher) schemeFor(path string) (string, bool) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if dir == w.confDir {
		base := filepath.Base(path)
		if !strings.HasSuffix(base, config.PropertiesExt) {
			return "", false
		}
		name := strings.TrimSuffix(base, config.PropertiesExt)
		return name, name != ""
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	name, ok := w.indexDirs[dir]
	return name, ok
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.debounceMap[name]; ok {
		t.Stop()
	}
	w.debounceMap[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, name)
		w.mu.Unlock()
		w.logger.Debug("watcher scheme changed (debounced)", zap.String("scheme", name))
		if w.onChange != nil {
			w.onChange(name)
		}
	})
}

// WatchIndex attributes changes inside dir to scheme name. A missing directory is skipped
// until the next call.
func (w *Watcher) WatchIndex(name, dir string) error {
	if dir == "" {
		return nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.indexDirs[abs]; ok && prev == name {
		return nil
	}
	w.indexDirs[abs] = name
	if w.watcher == nil {
		return nil
	}
	if _, err := os.Stat(abs); err != nil {
		w.logger.Debug("watcher index directory unavailable", zap.String("scheme", name), zap.String("path", abs), zap.Error(err))
		return nil
	}
	return w.watcher.Add(abs)
}

// UnwatchIndex stops watching every index directory attributed to name.
func (w *Watcher) UnwatchIndex(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for dir, n := range w.indexDirs {
		if n != name {
			continue
		}
		delete(w.indexDirs, dir)
		if w.watcher != nil {
			_ = w.watcher.Remove(dir)
		}
	}
}

// Directories returns the config directory followed by the watched index directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.indexDirs)+1)
	dirs = append(dirs, w.confDir)
	for dir := range w.indexDirs {
		dirs = append(dirs, dir)
	}
	return dirs
}

// Stop stops the watcher and drops pending notifications.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for name, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, name)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
