package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/repository"
)

// BrandStore is what the registry needs from the catalog store.
type BrandStore interface {
	repository.BrandWriter
	ListBrands(ctx context.Context) ([]string, error)
}

// BrandRegistry is the durable set of known brands. It outlives product
// rows: clearing the catalog does not clear it.
type BrandRegistry struct {
	store BrandStore
}

// NewBrandRegistry creates a registry backed by store.
func NewBrandRegistry(store BrandStore) *BrandRegistry {
	return &BrandRegistry{store: store}
}

// Register adds name. Blank names are ignored; registering twice is a no-op.
func (r *BrandRegistry) Register(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if err := r.store.RegisterBrand(ctx, name); err != nil {
		return fmt.Errorf("failed to register brand %q: %w", name, err)
	}
	return nil
}

// List returns all brands sorted by name.
func (r *BrandRegistry) List(ctx context.Context) ([]string, error) {
	brands, err := r.store.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(brands)
	return brands, nil
}

// Suggest ranks known brands against a partial or misspelled query, best
// match first. At most limit suggestions are returned.
func (r *BrandRegistry) Suggest(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	brands, err := r.store.ListBrands(ctx)
	if err != nil {
		return nil, err
	}

	ranks := fuzzy.RankFindNormalizedFold(query, brands)
	sort.Stable(ranks)

	var out []string
	for _, rank := range ranks {
		out = append(out, rank.Target)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
