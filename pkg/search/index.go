// Package search keeps a full-text index of the phrase corpus for curators:
// free-text and fuzzy lookup with category, recency and score filters.
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
	"github.com/wordsonphone/phrasecurator/pkg/phrases"
)

const indexBatchSize = 500

// Lister supplies phrases for a rebuild
type Lister interface {
	ListPhrases(ctx context.Context, q phrases.Query) ([]phrases.Phrase, error)
}

// Index wraps a bleve index of phrases
type Index struct {
	index  bleve.Index
	path   string
	logger *logging.Logger
}

// Open opens the index at path, creating it if needed. An empty path keeps
// the index in memory.
func Open(path string, logger *logging.Logger) (*Index, error) {
	logger = logger.WithComponent("search")

	if path == "" {
		idx, err := bleve.NewMemOnly(createIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &Index{index: idx, logger: logger}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create search directory: %w", err)
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, createIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create new index: %w", err)
		}
		logger.Info("Created search index", map[string]interface{}{"path": path})
	} else if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return &Index{index: idx, path: path, logger: logger}, nil
}

// createIndexMapping maps phrase documents
func createIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	phraseMapping := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Store = true
	text.Analyzer = standard.Name
	phraseMapping.AddFieldMappingsAt("phrase", text)

	for _, field := range []string{"category", "first_word", "source_provider"} {
		kw := bleve.NewTextFieldMapping()
		kw.Store = true
		kw.Analyzer = keyword.Name
		phraseMapping.AddFieldMappingsAt(field, kw)
	}

	recent := bleve.NewBooleanFieldMapping()
	recent.Store = true
	phraseMapping.AddFieldMappingsAt("recent", recent)

	score := bleve.NewNumericFieldMapping()
	score.Store = true
	phraseMapping.AddFieldMappingsAt("score", score)

	added := bleve.NewDateTimeFieldMapping()
	added.Store = true
	phraseMapping.AddFieldMappingsAt("added", added)

	indexMapping.AddDocumentMapping("phrase", phraseMapping)
	indexMapping.DefaultType = "phrase"
	indexMapping.DefaultMapping = phraseMapping
	return indexMapping
}

func document(p phrases.Phrase) map[string]interface{} {
	doc := map[string]interface{}{
		"phrase":     p.Text,
		"category":   p.Category,
		"first_word": p.FirstWord,
		"recent":     p.Recent,
		"added":      p.Added,
	}
	if p.Score != nil {
		doc["score"] = float64(*p.Score)
	}
	if p.SourceProvider != nil {
		doc["source_provider"] = *p.SourceProvider
	}
	return doc
}

// IndexPhrases adds or replaces phrases, keyed by phrase id
func (i *Index) IndexPhrases(ctx context.Context, list []phrases.Phrase) (int, error) {
	indexed := 0
	batch := i.index.NewBatch()
	for _, p := range list {
		if err := batch.Index(p.ID.String(), document(p)); err != nil {
			return indexed, fmt.Errorf("failed to index %q: %w", p.Text, err)
		}
		if batch.Size() >= indexBatchSize {
			if err := ctx.Err(); err != nil {
				return indexed, err
			}
			if err := i.index.Batch(batch); err != nil {
				return indexed, fmt.Errorf("failed to write index batch: %w", err)
			}
			indexed += batch.Size()
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := i.index.Batch(batch); err != nil {
			return indexed, fmt.Errorf("failed to write index batch: %w", err)
		}
		indexed += batch.Size()
	}
	return indexed, nil
}

// Rebuild re-indexes every phrase the store returns. Documents for phrases
// that no longer exist are left alone; phrases are never deleted.
func (i *Index) Rebuild(ctx context.Context, store Lister) (int, error) {
	start := time.Now()
	list, err := store.ListPhrases(ctx, phrases.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to list phrases: %w", err)
	}
	n, err := i.IndexPhrases(ctx, list)
	if err != nil {
		return n, err
	}
	i.logger.Info("Search index rebuilt", map[string]interface{}{
		"phrases":  n,
		"duration": time.Since(start).String(),
	})
	return n, nil
}

// Request is a curator search
type Request struct {
	Text     string
	Category string
	Recent   *bool
	MinScore *int
	// Fuzziness allows that many edits per term, 0 for exact terms
	Fuzziness int
	Size      int
}

// Hit is one matching phrase
type Hit struct {
	ID        string  `json:"id"`
	Phrase    string  `json:"phrase"`
	Category  string  `json:"category"`
	Recent    bool    `json:"recent"`
	Score     *int    `json:"score,omitempty"`
	Relevance float64 `json:"relevance"`
}

// Results holds hits plus per-category counts of all matches
type Results struct {
	Total      uint64         `json:"total"`
	Hits       []Hit          `json:"hits"`
	Categories map[string]int `json:"categories"`
	Took       time.Duration  `json:"took"`
}

func buildQuery(req Request) query.Query {
	var q query.Query
	if req.Text == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		mq := bleve.NewMatchQuery(req.Text)
		mq.SetField("phrase")
		mq.SetFuzziness(req.Fuzziness)
		q = mq
	}

	queries := []query.Query{q}
	if req.Category != "" {
		tq := bleve.NewTermQuery(req.Category)
		tq.SetField("category")
		queries = append(queries, tq)
	}
	if req.Recent != nil {
		bq := bleve.NewBoolFieldQuery(*req.Recent)
		bq.SetField("recent")
		queries = append(queries, bq)
	}
	if req.MinScore != nil {
		lo := float64(*req.MinScore)
		inclusive := true
		nq := bleve.NewNumericRangeInclusiveQuery(&lo, nil, &inclusive, nil)
		nq.SetField("score")
		queries = append(queries, nq)
	}
	if len(queries) == 1 {
		return q
	}
	return bleve.NewConjunctionQuery(queries...)
}

// Search runs req against the index
func (i *Index) Search(ctx context.Context, req Request) (*Results, error) {
	size := req.Size
	if size <= 0 {
		size = 20
	}

	searchRequest := bleve.NewSearchRequestOptions(buildQuery(req), size, 0, false)
	searchRequest.Fields = []string{"phrase", "category", "recent", "score"}
	searchRequest.AddFacet("category", bleve.NewFacetRequest("category", 50))

	res, err := i.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	out := &Results{
		Total:      res.Total,
		Hits:       make([]Hit, 0, len(res.Hits)),
		Categories: make(map[string]int),
		Took:       res.Took,
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Relevance: h.Score}
		hit.Phrase, _ = h.Fields["phrase"].(string)
		hit.Category, _ = h.Fields["category"].(string)
		hit.Recent, _ = h.Fields["recent"].(bool)
		if v, ok := h.Fields["score"].(float64); ok {
			score := int(v)
			hit.Score = &score
		}
		out.Hits = append(out.Hits, hit)
	}
	if facet, ok := res.Facets["category"]; ok && facet.Terms != nil {
		for _, term := range facet.Terms.Terms() {
			out.Categories[term.Term] = term.Count
		}
	}
	return out, nil
}

// Similar finds phrases in category close to text, for reviewing near
// duplicates the exact checks do not catch.
func (i *Index) Similar(ctx context.Context, text, category string, limit int) ([]Hit, error) {
	res, err := i.Search(ctx, Request{Text: text, Category: category, Fuzziness: 1, Size: limit})
	if err != nil {
		return nil, err
	}
	return res.Hits, nil
}

// Count returns the number of indexed phrases
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Close closes the index
func (i *Index) Close() error {
	if err := i.index.Close(); err != nil {
		return fmt.Errorf("failed to close search index: %w", err)
	}
	return nil
}
