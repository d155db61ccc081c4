// Package repository persists catalog entries, their price history and the
// brand registry.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
)

// ErrNotFound is returned when no entry matches the product code.
var ErrNotFound = errors.New("catalog entry not found")

// Tx is the unit of work for a single record. Everything written through
// one Tx commits or rolls back together.
type Tx interface {
	// Lookup returns the entry for code, locking it for the rest of the
	// transaction, or ErrNotFound.
	Lookup(ctx context.Context, code string) (*catalog.Entry, error)
	Insert(ctx context.Context, rec catalog.Record, costLocal decimal.Decimal) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, upd catalog.EntryUpdate) error
	AppendHistory(ctx context.Context, entry catalog.PriceHistoryEntry) error
	BrandWriter
}

// BrandWriter registers brand names. Registration is idempotent.
type BrandWriter interface {
	RegisterBrand(ctx context.Context, name string) error
}

// ListFilter narrows ListEntries.
type ListFilter struct {
	Brand  string
	Limit  int
	Offset int
}

// DefaultListLimit applies when ListFilter.Limit is zero.
const DefaultListLimit = 100

// CatalogStore is the catalog collaborator used by the upserter, the
// search index and the outer surfaces.
type CatalogStore interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetByCode(ctx context.Context, code string) (*catalog.Entry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]catalog.Entry, error)
	ListHistory(ctx context.Context, productID uuid.UUID, limit int) ([]catalog.PriceHistoryEntry, error)
	// ClearProducts removes every product and its history. Brands survive.
	ClearProducts(ctx context.Context) (int64, error)
	ListBrands(ctx context.Context) ([]string, error)
	BrandWriter
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
