// Package termindex provides an immutable, sorted term -> concept index with
// prefix sub-range extraction for browse-by-letter queries.
package termindex

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/hyperjump/hive/internal/models"
)

// ErrDuplicateTerm is the errors.Is target for DuplicateTermError.
var ErrDuplicateTerm = errors.New("duplicate term")

// DuplicateTermError reports a term submitted more than once to Build.
type DuplicateTermError struct {
	Term string
}

func (e *DuplicateTermError) Error() string {
	return fmt.Sprintf("duplicate term: %q", e.Term)
}

// Is makes errors.Is(err, ErrDuplicateTerm) match.
func (e *DuplicateTermError) Is(target error) bool {
	return target == ErrDuplicateTerm
}

// Index is an ordered term -> concept mapping. Entries are sorted by ordinal
// (byte-wise) term comparison and never mutated after Build.
//
// Sub-indices returned by SubIndex share the parent's backing array. A nil
// *Index is a valid empty index.
type Index struct {
	entries []models.TermEntry
}

var empty = &Index{}

// Empty returns an index with no entries.
func Empty() *Index {
	return empty
}

// Build copies entries, sorts them by term and returns the resulting index.
// Returns a *DuplicateTermError if two entries share a term.
func Build(entries []models.TermEntry) (*Index, error) {
	if len(entries) == 0 {
		return empty, nil
	}
	sorted := make([]models.TermEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Term < sorted[j].Term })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Term == sorted[i-1].Term {
			return nil, &DuplicateTermError{Term: sorted[i].Term}
		}
	}
	return &Index{entries: sorted}, nil
}

// Full returns the whole index.
func (x *Index) Full() *Index {
	if x == nil {
		return empty
	}
	return x
}

// SubIndex returns the contiguous range of entries whose term starts with prefix.
// An empty prefix returns the index unchanged; no match returns an empty index.
// Matching is case-sensitive and performs no normalization.
func (x *Index) SubIndex(prefix string) *Index {
	if x == nil || len(x.entries) == 0 {
		return empty
	}
	if prefix == "" {
		return x
	}
	lo := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Term >= prefix
	})
	// Terms with the prefix are contiguous from lo; the first one without it ends the range.
	hi := lo + sort.Search(len(x.entries)-lo, func(i int) bool {
		return !strings.HasPrefix(x.entries[lo+i].Term, prefix)
	})
	if lo == hi {
		return empty
	}
	return &Index{entries: x.entries[lo:hi:hi]}
}

// Get returns the concept for term.
func (x *Index) Get(term string) (models.ConceptID, bool) {
	if x == nil {
		return models.ConceptID{}, false
	}
	i := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Term >= term
	})
	if i < len(x.entries) && x.entries[i].Term == term {
		return x.entries[i].Concept, true
	}
	return models.ConceptID{}, false
}

// Len returns the number of entries.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Entries returns a copy of the entries in ascending term order.
func (x *Index) Entries() []models.TermEntry {
	if x == nil || len(x.entries) == 0 {
		return []models.TermEntry{}
	}
	out := make([]models.TermEntry, len(x.entries))
	copy(out, x.entries)
	return out
}

// Terms returns the terms in ascending order.
func (x *Index) Terms() []string {
	out := make([]string, x.Len())
	for i := range out {
		out[i] = x.entries[i].Term
	}
	return out
}

// All iterates term/concept pairs in ascending term order.
func (x *Index) All() iter.Seq2[string, models.ConceptID] {
	return func(yield func(string, models.ConceptID) bool) {
		if x == nil {
			return
		}
		for _, e := range x.entries {
			if !yield(e.Term, e.Concept) {
				return
			}
		}
	}
}
