// Package scheme provides the descriptor of one vocabulary scheme: its configuration,
// the statistics of its index store, and its alpha and top-concept term indices.
package scheme

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/hive/internal/config"
	"github.com/hyperjump/hive/internal/models"
	"github.com/hyperjump/hive/internal/termindex"
)

// Statistics are the counts recorded by the index store.
type Statistics = models.Statistics

// IndexStoreReader reads a scheme's persisted index store. Statistics are keyed by the index
// directory; the alpha and top-concept entries by their configured file paths.
type IndexStoreReader interface {
	Statistics(ctx context.Context, indexDir string) (Statistics, error)
	AlphaEntries(ctx context.Context, path string) ([]models.TermEntry, error)
	TopConceptEntries(ctx context.Context, path string) ([]models.TermEntry, error)
}

// ErrIndexStoreUnavailable is the errors.Is target for IndexStoreUnavailableError.
var ErrIndexStoreUnavailable = errors.New("index store unavailable")

// IndexStoreUnavailableError reports a failed import from the index store in loaded mode.
type IndexStoreUnavailableError struct {
	Scheme string
	Op     string // "statistics", "alpha index" or "top concept index"
	Err    error
}

func (e *IndexStoreUnavailableError) Error() string {
	return fmt.Sprintf("index store unavailable for scheme %q (%s): %v", e.Scheme, e.Op, e.Err)
}

func (e *IndexStoreUnavailableError) Is(target error) bool { return target == ErrIndexStoreUnavailable }

func (e *IndexStoreUnavailableError) Unwrap() error { return e.Err }

// Config is the static configuration of a scheme. All paths are opaque.
type Config struct {
	Name                string `json:"name"`
	LongName            string `json:"long_name"`
	SchemaURI           string `json:"uri"`
	IndexDirectory      string `json:"index_directory"`
	StoreDirectory      string `json:"store_directory"`
	AlphaFilePath       string `json:"alpha_file"`
	TopConceptIndexPath string `json:"top_concept_file"`
	StopwordsPath       string `json:"stopwords"`
	RDFPath             string `json:"rdf_file"`
	KEATrainingSetDir   string `json:"kea_training_set"`
	KEATestSetDir       string `json:"kea_test_set"`
	KEAModelPath        string `json:"kea_model"`
	LingPipeModel       string `json:"lingpipe_model"`
}

// ConfigFromProperties maps a parsed .properties file onto Config.
func ConfigFromProperties(p *config.SchemeProperties) Config {
	return Config{
		Name:                p.Name,
		LongName:            p.LongName,
		SchemaURI:           p.URI,
		IndexDirectory:      p.Index,
		StoreDirectory:      p.Store,
		AlphaFilePath:       p.AlphaFile,
		TopConceptIndexPath: p.TopConceptFile,
		StopwordsPath:       p.Stopwords,
		RDFPath:             p.RDFFile,
		KEATrainingSetDir:   p.KEATrainingSet,
		KEATestSetDir:       p.KEATestSet,
		KEAModelPath:        p.KEAModel,
		LingPipeModel:       p.LingPipeModel,
	}
}

// Session is an opaque handle to a semantic-store session owned by the service layer.
// The descriptor stores it but never creates or closes it.
type Session any

type sessionRef struct {
	s Session
}

// Descriptor describes one scheme. It is immutable after construction except for its
// session handle, and safe for concurrent use.
type Descriptor struct {
	id        string
	cfg       Config
	firstTime bool
	loadedAt  time.Time

	stats      Statistics
	alpha      *termindex.Index
	topConcept *termindex.Index

	session atomic.Pointer[sessionRef]
}

// Option configures New.
type Option func(*options)

type options struct {
	logger *zap.Logger
	now    func() time.Time
}

// WithLogger sets the logger used during construction.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock used to stamp LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds a descriptor from cfg.
//
// With firstTime set only the configuration is populated: statistics are zero and both
// indices are empty, and reader may be nil. Otherwise statistics and both indices are read
// through reader; any failure aborts construction with an *IndexStoreUnavailableError.
func New(ctx context.Context, cfg Config, firstTime bool, reader IndexStoreReader, opts ...Option) (*Descriptor, error) {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	d := &Descriptor{
		id:         uuid.NewString(),
		cfg:        cfg,
		firstTime:  firstTime,
		alpha:      termindex.Empty(),
		topConcept: termindex.Empty(),
	}
	if firstTime {
		d.loadedAt = o.now()
		o.logger.Info("scheme initialized", zap.String("scheme", cfg.Name), zap.Bool("first_time", true))
		return d, nil
	}
	if reader == nil {
		return nil, d.unavailable("statistics", errors.New("no index store reader"))
	}
	if err := ctx.Err(); err != nil {
		return nil, d.unavailable("statistics", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := reader.Statistics(gctx, cfg.IndexDirectory)
		if err != nil {
			return d.unavailable("statistics", err)
		}
		d.stats = st
		return nil
	})
	g.Go(func() error {
		idx, err := importIndex(gctx, reader.AlphaEntries, cfg.AlphaFilePath)
		if err != nil {
			return d.unavailable("alpha index", err)
		}
		d.alpha = idx
		return nil
	})
	g.Go(func() error {
		idx, err := importIndex(gctx, reader.TopConceptEntries, cfg.TopConceptIndexPath)
		if err != nil {
			return d.unavailable("top concept index", err)
		}
		d.topConcept = idx
		return nil
	})
	if err := g.Wait(); err != nil {
		o.logger.Warn("scheme load failed", zap.String("scheme", cfg.Name), zap.Error(err))
		return nil, err
	}

	d.loadedAt = o.now()
	o.logger.Info("scheme loaded",
		zap.String("scheme", cfg.Name),
		zap.String("last_date", d.stats.LastDate),
		zap.Int("concepts", d.stats.Concepts),
		zap.Int("alpha_terms", d.alpha.Len()),
		zap.Int("top_concepts", d.topConcept.Len()),
	)
	return d, nil
}

func importIndex(ctx context.Context, read func(context.Context, string) ([]models.TermEntry, error), path string) (*termindex.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := read(ctx, path)
	if err != nil {
		return nil, err
	}
	return termindex.Build(entries)
}

func (d *Descriptor) unavailable(op string, err error) error {
	return &IndexStoreUnavailableError{Scheme: d.cfg.Name, Op: op, Err: err}
}

// Load reads <confDir>/<vocabularyName>.properties and builds the descriptor with New.
// Configuration errors are *config.ConfigNotFoundError or *config.ConfigReadError.
func Load(ctx context.Context, confDir, vocabularyName string, firstTime bool, reader IndexStoreReader, opts ...Option) (*Descriptor, error) {
	props, err := config.LoadSchemeProperties(confDir, vocabularyName)
	if err != nil {
		return nil, err
	}
	return New(ctx, ConfigFromProperties(props), firstTime, reader, opts...)
}
