// Package search keeps an in-memory full-text index over the catalog so
// products can be found by partial code, description or brand.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/repository"
)

// DefaultLimit caps a search when the caller passes no limit.
const DefaultLimit = 20

// EntryLister is the part of the catalog store the index rebuilds from.
type EntryLister interface {
	ListEntries(ctx context.Context, filter repository.ListFilter) ([]catalog.Entry, error)
}

// EntryGetter looks up a single entry by product code.
type EntryGetter interface {
	GetByCode(ctx context.Context, code string) (*catalog.Entry, error)
}

// Document is the indexed view of a catalog entry.
type Document struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	Text        string `json:"text"`
}

// Hit is a matching product with its relevance score.
type Hit struct {
	ProductCode string  `json:"product_code"`
	Description string  `json:"description"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
	Score       float64 `json:"score"`
}

// Index is a bleve index keyed by product code.
type Index struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewIndex creates an empty in-memory index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("code", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("brand", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("category", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

func toDocument(e catalog.Entry) Document {
	return Document{
		Code:        e.ProductCode,
		Description: e.Description,
		Brand:       e.Brand,
		Category:    e.Category,
		Text:        strings.Join([]string{e.ProductCode, e.Description, e.Brand}, " "),
	}
}

// Put adds or replaces entries.
func (i *Index) Put(entries ...catalog.Entry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.index.NewBatch()
	for _, e := range entries {
		if err := batch.Index(e.ProductCode, toDocument(e)); err != nil {
			return fmt.Errorf("failed to index %s: %w", e.ProductCode, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// Rebuild replaces the whole index with the current contents of the store.
func (i *Index) Rebuild(ctx context.Context, store EntryLister) (int, error) {
	var all []catalog.Entry
	filter := repository.ListFilter{Limit: 500}
	for {
		page, err := store.ListEntries(ctx, filter)
		if err != nil {
			return 0, fmt.Errorf("failed to list entries: %w", err)
		}
		all = append(all, page...)
		if len(page) < filter.Limit {
			break
		}
		filter.Offset += len(page)
	}

	if err := i.Clear(); err != nil {
		return 0, err
	}
	if err := i.Put(all...); err != nil {
		return 0, err
	}
	return len(all), nil
}

// Refresh re-reads codes from store and reindexes them. Codes the store no
// longer knows are dropped from the index.
func (i *Index) Refresh(ctx context.Context, store EntryGetter, codes ...string) error {
	var (
		put  []catalog.Entry
		gone []string
	)
	for _, code := range codes {
		e, err := store.GetByCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			gone = append(gone, code)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", code, err)
		}
		put = append(put, *e)
	}

	if err := i.Put(put...); err != nil {
		return err
	}
	if len(gone) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	batch := i.index.NewBatch()
	for _, code := range gone {
		batch.Delete(code)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Search matches query against code, description and brand. A token that
// looks like a code prefix also matches by prefix. Brand narrows results to
// one brand when non-empty.
func (i *Index) Search(q, brand string, limit int) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultLimit
	}

	var must query.Query
	q = strings.TrimSpace(q)
	if q == "" {
		must = bleve.NewMatchAllQuery()
	} else {
		match := bleve.NewMatchQuery(q)
		match.SetField("text")
		match.SetFuzziness(1)

		prefix := bleve.NewPrefixQuery(q)
		prefix.SetField("code")

		must = bleve.NewDisjunctionQuery(match, prefix)
	}

	var root query.Query = must
	if brand = strings.TrimSpace(brand); brand != "" {
		term := bleve.NewTermQuery(brand)
		term.SetField("brand")
		root = bleve.NewConjunctionQuery(must, term)
	}

	req := bleve.NewSearchRequest(root)
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ProductCode: h.ID, Score: h.Score}
		if v, ok := h.Fields["description"].(string); ok {
			hit.Description = v
		}
		if v, ok := h.Fields["brand"].(string); ok {
			hit.Brand = v
		}
		if v, ok := h.Fields["category"].(string); ok {
			hit.Category = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Clear removes every document.
func (i *Index) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for {
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.Size = 1000
		res, err := i.index.Search(req)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := i.index.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete documents: %w", err)
		}
	}
}

// Count returns the number of indexed products.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}
