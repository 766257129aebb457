// Package keyword provides full-text and fuzzy search over scheme terms.
package keyword

import (
	"context"

	"github.com/hyperjump/hive/internal/models"
	"github.com/hyperjump/hive/internal/termindex"
)

// SearchOptions optional parameters for term search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled matches terms within Fuzziness edits of each query word.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// TermSource is a scheme whose alpha index can be searched.
type TermSource interface {
	Name() string
	AlphaIndex() *termindex.Index
}

// TermIndex defines term search operations.
type TermIndex interface {
	IndexScheme(ctx context.Context, src TermSource) error
	RemoveScheme(ctx context.Context, scheme string) error
	Search(ctx context.Context, scheme, query string, limit int, opts *SearchOptions) ([]*TermHit, error)
	DocCount() (uint64, error)
	Close() error
}

// TermHit is a single term search hit.
type TermHit struct {
	Term    string           `json:"term"`
	Concept models.ConceptID `json:"concept"`
	Score   float64          `json:"score"`
}
