// Package main is the hive CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/hive/internal/cli"
	"github.com/hyperjump/hive/internal/config"
	"github.com/hyperjump/hive/internal/keyword"
	"github.com/hyperjump/hive/internal/models"
	"github.com/hyperjump/hive/internal/registry"
	"github.com/hyperjump/hive/internal/scheme"
	"github.com/hyperjump/hive/internal/server"
	"github.com/hyperjump/hive/internal/storage"
	"github.com/hyperjump/hive/internal/watcher"
	"github.com/hyperjump/hive/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/hive/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "init":
		runInit()
	case "schemes":
		runSchemes()
	case "info":
		runInfo()
	case "browse":
		runBrowse()
	case "lookup":
		runLookup()
	case "search":
		runSearch()
	case "version", "--version", "-v":
		fmt.Printf("hive version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// components holds the loaded registry and the resources it depends on.
type components struct {
	Registry  *registry.Registry
	TermIndex keyword.TermIndex
}

func (c *components) Close() {
	if c.TermIndex != nil {
		_ = c.TermIndex.Close()
	}
}

// initializeComponents wires the index store, optional term search and the registry, then
// loads the schemes. names overrides the configured scheme selection when non-empty.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, withSearch bool, names ...string) (*components, error) {
	reader := storage.NewIndexStore(storage.NewSQLiteStats(cfg.Storage.DatabaseName), logger)
	schemes := cfg.Schemes
	if len(names) > 0 {
		schemes.Names = names
	}

	c := &components{}
	opts := []registry.Option{registry.WithLogger(logger)}
	if withSearch && !cfg.Storage.SearchDisabled {
		idx, err := keyword.NewBleveIndex(cfg.Storage.SearchIndexDir)
		if err != nil {
			return nil, err
		}
		c.TermIndex = idx
		opts = append(opts, registry.WithTermIndex(idx))
	}
	c.Registry = registry.New(schemes, reader, opts...)
	if err := c.Registry.LoadAll(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// openOffline loads config and the named schemes for a one-shot command. It exits on failure.
func openOffline(configPath string, names ...string) (*components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := utils.NewLoggerOrNop(cfg.Debug)
	c, err := initializeComponents(context.Background(), cfg, logger, false, names...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load schemes: %v\n", err)
		os.Exit(1)
	}
	return c, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (scheme reloads, watcher events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("schemes_dir", cfg.Schemes.ConfigDir),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comps, err := initializeComponents(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()
	reg := comps.Registry

	var watchSvc *watcher.Watcher
	if cfg.Watch.EnabledOrDefault() {
		watchOpts := []watcher.Option{watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond)}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(reg.ConfigDir(), func(name string) {
			d, err := reg.Reload(ctx, name)
			switch {
			case errors.Is(err, config.ErrConfigNotFound):
				watchSvc.UnwatchIndex(name)
				return
			case err != nil:
				return
			}
			if err := watchSvc.WatchIndex(name, d.IndexDirectory()); err != nil {
				logger.Warn("watch index directory failed", zap.String("scheme", name), zap.Error(err))
			}
		}, watchOpts...)
		for _, name := range reg.Names() {
			d, _ := reg.Get(name)
			if err := watchSvc.WatchIndex(name, d.IndexDirectory()); err != nil {
				logger.Warn("watch index directory failed", zap.String("scheme", name), zap.Error(err))
			}
		}
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	var watch server.WatchService
	if watchSvc != nil {
		watch = watchSvc
	}
	srv := server.NewServer(reg, cfg, logger, watch)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	if watchSvc != nil {
		watchSvc.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse sees them.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func outputFormat(jsonOut bool) cli.OutputFormat {
	if jsonOut {
		return cli.OutputJSON
	}
	return cli.OutputText
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file to create")
	schemesDir := fs.String("schemes", "", "scheme .properties directory")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*configPath, *schemesDir, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *configPath)
}

// writeDefaultConfig writes a config with defaults applied to path.
func writeDefaultConfig(path, schemesDir string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force)", path)
		}
	}
	cfg := &config.Config{Schemes: config.SchemesConfig{ConfigDir: schemesDir}}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

func runSchemes() {
	fs := flag.NewFlagSet("schemes", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	names := cfg.Schemes.Names
	if len(names) == 0 {
		names, err = config.ListSchemes(cfg.Schemes.ConfigDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list schemes: %v\n", err)
			os.Exit(1)
		}
	}
	for _, name := range names {
		props, err := config.LoadSchemeProperties(cfg.Schemes.ConfigDir, name)
		if err != nil {
			fmt.Printf("%-20s  (%v)\n", name, err)
			continue
		}
		fmt.Printf("%-20s  %s\n", name, cli.Truncate(props.LongName, 60))
	}
}

func runInfo() {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	jsonOut := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() != 1 {
		fmt.Println("Usage: hive info [flags] <scheme>")
		os.Exit(1)
	}
	name := fs.Arg(0)

	c, logger := openOffline(*configPath, name)
	defer logger.Sync()
	defer c.Close()
	d, _ := c.Registry.Get(name)
	info := d.Info()
	info.Name = name
	if err := cli.WriteSchemeInfo(os.Stdout, info, outputFormat(*jsonOut)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runBrowse() {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	top := fs.Bool("top", false, "browse top concepts instead of the alphabetical index")
	prefix := fs.String("prefix", "", "only terms starting with this prefix (case-sensitive)")
	jsonOut := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() != 1 {
		fmt.Println("Usage: hive browse [--top] [--prefix p] [--json] <scheme>")
		os.Exit(1)
	}
	name := fs.Arg(0)

	c, logger := openOffline(*configPath, name)
	defer logger.Sync()
	defer c.Close()
	d, _ := c.Registry.Get(name)
	if err := cli.WriteEntries(os.Stdout, browse(d, *top, *prefix), outputFormat(*jsonOut)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func browse(d *scheme.Descriptor, top bool, prefix string) []models.TermEntry {
	if top {
		return d.TopConceptIndexStartingWith(prefix).Entries()
	}
	return d.AlphaIndexStartingWith(prefix).Entries()
}

func runLookup() {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 2 {
		fmt.Println("Usage: hive lookup [flags] <scheme> <term>")
		os.Exit(1)
	}
	name := fs.Arg(0)
	term := strings.Join(fs.Args()[1:], " ")

	c, logger := openOffline(*configPath, name)
	defer logger.Sync()
	defer c.Close()
	d, _ := c.Registry.Get(name)
	concept, ok := d.AlphaIndex().Get(term)
	if !ok {
		fmt.Fprintf(os.Stderr, "Term not found: %s\n", term)
		os.Exit(1)
	}
	fmt.Println(concept)
}

// searchResponse mirrors the body of GET /api/v1/schemes/{name}/search.
type searchResponse struct {
	Scheme string             `json:"scheme"`
	Query  string             `json:"query"`
	Hits   []*keyword.TermHit `json:"hits"`
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	jsonOut := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 2 {
		fmt.Println("Usage: hive search [flags] <scheme> <query>")
		os.Exit(1)
	}
	name := fs.Arg(0)
	query := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))

	resp, err := searchViaHTTP(*serverURL, name, query, *limit, *fuzzy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	// Retry with fuzzy matching when an exact search finds nothing.
	if !*fuzzy && len(resp.Hits) == 0 {
		if fuzzyResp, fuzzyErr := searchViaHTTP(*serverURL, name, query, *limit, true); fuzzyErr == nil {
			resp = fuzzyResp
		}
	}
	entries := make([]models.TermEntry, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		entries = append(entries, models.TermEntry{Term: h.Term, Concept: h.Concept})
	}
	if err := cli.WriteEntries(os.Stdout, entries, outputFormat(*jsonOut)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchURL(serverURL, name, query string, limit int, fuzzy bool) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", strconv.Itoa(limit))
	if fuzzy {
		v.Set("fuzzy", "true")
	}
	return strings.TrimRight(serverURL, "/") + "/api/v1/schemes/" + url.PathEscape(name) + "/search?" + v.Encode()
}

func searchViaHTTP(serverURL, name, query string, limit int, fuzzy bool) (*searchResponse, error) {
	resp, err := http.Get(searchURL(serverURL, name, query, limit, fuzzy))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func printUsage() {
	fmt.Print(`hive - controlled vocabulary browser

Usage:
  hive <command> [flags] [arguments]

Commands:
  server                         Start the HTTP API server
  init                           Write a default config file
  schemes                        List configured schemes
  info <scheme>                  Show scheme configuration and statistics
  browse <scheme>                List index terms (--top, --prefix, --json)
  lookup <scheme> <term>         Print the concept URI for an exact term
  search <scheme> <query>        Search terms through a running server
  version                        Print version
  help                           Show this help

Every command except search and version accepts --config (default ` + defaultConfigPath + `).
`)
}
