// Package registry owns the active scheme descriptors of the service and replaces them on reload.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/hive/internal/config"
	"github.com/hyperjump/hive/internal/keyword"
	"github.com/hyperjump/hive/internal/scheme"
)

// maxConcurrentLoads bounds how many schemes are read from disk at once.
const maxConcurrentLoads = 4

var (
	// ErrSearchDisabled is returned by Search when no term index is attached.
	ErrSearchDisabled = errors.New("term search disabled")
	// ErrSchemeNotFound is returned for names outside the served selection or not loaded.
	ErrSchemeNotFound = errors.New("scheme not found")
)

// Registry holds one descriptor per configured scheme.
type Registry struct {
	confDir   string
	names     []string
	firstTime bool
	reader    scheme.IndexStoreReader
	search    keyword.TermIndex
	logger    *zap.Logger

	mu      sync.RWMutex
	schemes map[string]*scheme.Descriptor

	// reloads serializes load, swap and indexing per scheme name.
	reloadsMu sync.Mutex
	reloads   map[string]*sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithTermIndex indexes every loaded scheme's alpha index into idx.
func WithTermIndex(idx keyword.TermIndex) Option {
	return func(r *Registry) { r.search = idx }
}

// New returns an empty registry for the schemes named in cfg. When cfg.Names is empty,
// every .properties file in cfg.ConfigDir is a scheme.
func New(cfg config.SchemesConfig, reader scheme.IndexStoreReader, opts ...Option) *Registry {
	r := &Registry{
		confDir:   cfg.ConfigDir,
		names:     append([]string(nil), cfg.Names...),
		firstTime: cfg.FirstTime,
		reader:    reader,
		logger:    zap.NewNop(),
		schemes:   make(map[string]*scheme.Descriptor),
		reloads:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConfigDir returns the directory holding the scheme .properties files.
func (r *Registry) ConfigDir() string { return r.confDir }

// Serves reports whether name belongs to the configured selection. An empty selection serves
// every scheme in the config directory.
func (r *Registry) Serves(name string) bool {
	return len(r.names) == 0 || slices.Contains(r.names, name)
}

func (r *Registry) configuredNames() ([]string, error) {
	if len(r.names) > 0 {
		return r.names, nil
	}
	return config.ListSchemes(r.confDir)
}

// LoadAll loads every configured scheme. Any failure aborts the whole load and leaves the
// registry unchanged.
func (r *Registry) LoadAll(ctx context.Context) error {
	names, err := r.configuredNames()
	if err != nil {
		return err
	}

	loaded := make([]*scheme.Descriptor, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, name := range names {
		g.Go(func() error {
			d, err := r.load(gctx, name)
			if err != nil {
				return err
			}
			loaded[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	for i, name := range names {
		r.schemes[name] = loaded[i]
	}
	r.mu.Unlock()

	if r.search != nil {
		for i, d := range loaded {
			r.indexTerms(ctx, names[i], d)
		}
	}
	r.logger.Info("schemes loaded", zap.Strings("schemes", names))
	return nil
}

func (r *Registry) load(ctx context.Context, name string) (*scheme.Descriptor, error) {
	d, err := scheme.Load(ctx, r.confDir, name, r.firstTime, r.reader, scheme.WithLogger(r.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load scheme %s: %w", name, err)
	}
	return d, nil
}

// namedTerms indexes a descriptor under its registry name, which is the .properties file
// name and may differ from the name property inside it.
type namedTerms struct {
	name string
	*scheme.Descriptor
}

func (n namedTerms) Name() string { return n.name }

func (r *Registry) indexTerms(ctx context.Context, name string, d *scheme.Descriptor) {
	if err := r.search.IndexScheme(ctx, namedTerms{name: name, Descriptor: d}); err != nil {
		r.logger.Warn("term search indexing failed", zap.String("scheme", name), zap.Error(err))
	}
}

func (r *Registry) reloadLock(name string) *sync.Mutex {
	r.reloadsMu.Lock()
	defer r.reloadsMu.Unlock()
	l, ok := r.reloads[name]
	if !ok {
		l = &sync.Mutex{}
		r.reloads[name] = l
	}
	return l
}

// Reload builds a fresh descriptor for name and swaps it in. The previous descriptor's
// session handle moves to the new one. On failure the previous descriptor stays active.
// Names outside the served selection yield ErrSchemeNotFound. Reloads of the same name run
// one at a time, so the term index always holds the terms of the active descriptor.
func (r *Registry) Reload(ctx context.Context, name string) (*scheme.Descriptor, error) {
	if !r.Serves(name) {
		return nil, fmt.Errorf("%w: %s", ErrSchemeNotFound, name)
	}
	l := r.reloadLock(name)
	l.Lock()
	defer l.Unlock()

	d, err := r.load(ctx, name)
	if err != nil {
		r.logger.Warn("scheme reload failed", zap.String("scheme", name), zap.Error(err))
		return nil, err
	}

	r.mu.Lock()
	if prev, ok := r.schemes[name]; ok {
		if s, bound := prev.Session(); bound {
			d.SetSession(s)
		}
	}
	r.schemes[name] = d
	r.mu.Unlock()

	if r.search != nil {
		r.indexTerms(ctx, name, d)
	}
	r.logger.Info("scheme reloaded", zap.String("scheme", name), zap.String("id", d.ID()))
	return d, nil
}

// Get returns the active descriptor for name.
func (r *Registry) Get(name string) (*scheme.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.schemes[name]
	return d, ok
}

// Names returns the loaded scheme names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.schemes))
	for name := range r.schemes {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Descriptors returns the active descriptors ordered by name.
func (r *Registry) Descriptors() []*scheme.Descriptor {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*scheme.Descriptor, 0, len(names))
	for _, name := range names {
		if d, ok := r.schemes[name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// SetSession binds a session handle to the active descriptor of name.
func (r *Registry) SetSession(name string, s scheme.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.schemes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSchemeNotFound, name)
	}
	d.SetSession(s)
	return nil
}

// Search runs a term search in scheme name. Returns an error when term search is disabled.
func (r *Registry) Search(ctx context.Context, name, query string, limit int, opts *keyword.SearchOptions) ([]*keyword.TermHit, error) {
	if r.search == nil {
		return nil, ErrSearchDisabled
	}
	return r.search.Search(ctx, name, query, limit, opts)
}

// SearchEnabled reports whether a term index is attached.
func (r *Registry) SearchEnabled() bool { return r.search != nil }
