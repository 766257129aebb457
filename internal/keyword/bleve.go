package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/hive/internal/models"
)

const batchSize = 1000

// termDoc is the indexed form of one alpha index entry.
type termDoc struct {
	Scheme    string `json:"scheme"`
	Term      string `json:"term"`
	Namespace string `json:"namespace"`
	LocalName string `json:"local_name"`
}

// BleveIndex implements TermIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases and tokenizes without stemming so "birds" does not match "bird".
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("term", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("scheme", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("namespace", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("local_name", keywordFieldMapping)
	im.AddDocumentMapping("term", docMapping)
	im.DefaultType = "term"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path keeps the index in memory.
// If the path already exists, the existing index is opened and reused.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := newMapping()
	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func docID(scheme, term string) string {
	return scheme + "\x00" + term
}

// IndexScheme replaces the indexed terms of src.Name() with its current alpha index.
func (b *BleveIndex) IndexScheme(ctx context.Context, src TermSource) error {
	name := src.Name()
	if err := b.RemoveScheme(ctx, name); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for term, concept := range src.AlphaIndex().All() {
		doc := termDoc{Scheme: name, Term: term, Namespace: concept.Namespace, LocalName: concept.LocalName}
		if err := batch.Index(docID(name, term), doc); err != nil {
			return fmt.Errorf("failed to index term %q: %w", term, err)
		}
		if batch.Size() >= batchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := b.index.Batch(batch); err != nil {
				return fmt.Errorf("failed to apply term batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to apply term batch: %w", err)
		}
	}
	return nil
}

// RemoveScheme deletes every indexed term of scheme.
func (b *BleveIndex) RemoveScheme(ctx context.Context, scheme string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := bleve.NewSearchRequest(schemeQuery(scheme))
		req.Size = batchSize
		results, err := b.index.Search(req)
		if err != nil {
			return fmt.Errorf("Bleve search failed: %w", err)
		}
		if len(results.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete terms: %w", err)
		}
	}
}

func schemeQuery(scheme string) blevequery.Query {
	q := bleve.NewTermQuery(scheme)
	q.SetField("scheme")
	return q
}

// Search runs a match query (or fuzzy query when opts.FuzzyEnabled) over the terms of scheme
// and returns up to limit hits ordered by score.
func (b *BleveIndex) Search(ctx context.Context, scheme, query string, limit int, opts *SearchOptions) ([]*TermHit, error) {
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var tq blevequery.Query
	if fuzzyEnabled {
		tq = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("term")
		tq = mq
	}
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(schemeQuery(scheme), tq))
	req.Size = limit
	req.Fields = []string{"term", "namespace", "local_name"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*TermHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		out = append(out, &TermHit{
			Term:    fieldString(hit.Fields, "term"),
			Concept: models.NewConceptID(fieldString(hit.Fields, "namespace"), fieldString(hit.Fields, "local_name")),
			Score:   hit.Score,
		})
	}
	return out, nil
}

func fieldString(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries on the term field, one per query word.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField("term")
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField("term")
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the total number of indexed terms across schemes.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
