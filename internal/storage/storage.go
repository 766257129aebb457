// Package storage reads the persisted index store of a vocabulary scheme: the statistics
// database in the scheme's index directory and the alpha / top-concept term files.
package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/hive/internal/models"
)

// StatsStore reads scheme statistics recorded in an index directory.
type StatsStore interface {
	Statistics(ctx context.Context, indexDir string) (models.Statistics, error)
}

// IndexStore reads everything a loaded scheme needs from disk.
// It satisfies scheme.IndexStoreReader.
type IndexStore struct {
	stats  StatsStore
	logger *zap.Logger
}

// NewIndexStore returns an IndexStore reading statistics from stats.
func NewIndexStore(stats StatsStore, logger *zap.Logger) *IndexStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexStore{stats: stats, logger: logger}
}

// Statistics returns the statistics recorded in indexDir.
func (s *IndexStore) Statistics(ctx context.Context, indexDir string) (models.Statistics, error) {
	st, err := s.stats.Statistics(ctx, indexDir)
	if err != nil {
		return models.Statistics{}, err
	}
	s.logger.Debug("read scheme statistics", zap.String("index_dir", indexDir), zap.Int("concepts", st.Concepts))
	return st, nil
}

// AlphaEntries returns the entries of the alpha term file at path.
func (s *IndexStore) AlphaEntries(ctx context.Context, path string) ([]models.TermEntry, error) {
	return s.readTerms(ctx, path)
}

// TopConceptEntries returns the entries of the top-concept term file at path.
func (s *IndexStore) TopConceptEntries(ctx context.Context, path string) ([]models.TermEntry, error) {
	return s.readTerms(ctx, path)
}

func (s *IndexStore) readTerms(ctx context.Context, path string) ([]models.TermEntry, error) {
	entries, err := ReadTermFile(ctx, path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("read term file", zap.String("path", path), zap.Int("entries", len(entries)))
	return entries, nil
}
