package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/repository"
)

var errDiskFull = errors.New("disk full")

// memoryStore is an in-memory CatalogStore. Writes made inside WithinTx are
// staged and only become visible when fn returns nil.
type memoryStore struct {
	mu       sync.Mutex
	entries  map[string]catalog.Entry
	history  []catalog.PriceHistoryEntry
	brands   map[string]bool
	failCode string
	commits  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]catalog.Entry{}, brands: map[string]bool{}}
}

func (s *memoryStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, entries: map[string]catalog.Entry{}, brands: map[string]bool{}}
	if err := fn(tx); err != nil {
		return err
	}
	for code, e := range tx.entries {
		s.entries[code] = e
	}
	s.history = append(s.history, tx.history...)
	for b := range tx.brands {
		s.brands[b] = true
	}
	s.commits++
	return nil
}

func (s *memoryStore) GetByCode(_ context.Context, code string) (*catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (s *memoryStore) ListEntries(context.Context, repository.ListFilter) ([]catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Entry
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductCode < out[j].ProductCode })
	return out, nil
}

func (s *memoryStore) ListHistory(_ context.Context, productID uuid.UUID, _ int) ([]catalog.PriceHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.PriceHistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ProductID == productID {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

func (s *memoryStore) ClearProducts(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.entries))
	s.entries = map[string]catalog.Entry{}
	s.history = nil
	return n, nil
}

func (s *memoryStore) ListBrands(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for b := range s.brands {
		out = append(out, b)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memoryStore) RegisterBrand(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands[name] = true
	return nil
}

type memoryTx struct {
	store   *memoryStore
	entries map[string]catalog.Entry
	history []catalog.PriceHistoryEntry
	brands  map[string]bool
}

func (t *memoryTx) Lookup(_ context.Context, code string) (*catalog.Entry, error) {
	if e, ok := t.entries[code]; ok {
		return &e, nil
	}
	e, ok := t.store.entries[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (t *memoryTx) Insert(_ context.Context, rec catalog.Record, costLocal decimal.Decimal) (uuid.UUID, error) {
	if rec.ProductCode == t.store.failCode {
		return uuid.Nil, errDiskFull
	}
	stock := 0
	if rec.StockQuantity != nil {
		stock = *rec.StockQuantity
	}
	id := uuid.New()
	t.entries[rec.ProductCode] = catalog.Entry{
		ID:            id,
		ProductCode:   rec.ProductCode,
		Description:   rec.Description,
		Brand:         rec.BrandOrDefault(),
		CostUSD:       rec.CostUSD,
		CostLocal:     costLocal,
		StockQuantity: stock,
		Category:      rec.CategoryOrDefault(),
		LastUpdated:   time.Now(),
	}
	return id, nil
}

func (t *memoryTx) Update(_ context.Context, id uuid.UUID, upd catalog.EntryUpdate) error {
	for code, e := range t.store.entries {
		if e.ID != id {
			continue
		}
		if code == t.store.failCode {
			return errDiskFull
		}
		e.Description = upd.Description
		e.CostUSD = upd.CostUSD
		e.CostLocal = upd.CostLocal
		if upd.Brand != nil {
			e.Brand = *upd.Brand
		}
		if upd.Category != nil {
			e.Category = *upd.Category
		}
		if upd.StockQuantity != nil {
			e.StockQuantity = *upd.StockQuantity
		}
		e.LastUpdated = time.Now()
		t.entries[code] = e
		return nil
	}
	return repository.ErrNotFound
}

func (t *memoryTx) AppendHistory(_ context.Context, entry catalog.PriceHistoryEntry) error {
	entry.ID = uuid.New()
	entry.ChangedAt = time.Now()
	t.history = append(t.history, entry)
	return nil
}

func (t *memoryTx) RegisterBrand(_ context.Context, name string) error {
	t.brands[name] = true
	return nil
}
