// Package catalog holds the product catalog domain types shared by the
// ingestion parsers, the currency converter and the catalog repositories.
package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBrand is assigned when neither the file nor the caller names a brand.
	DefaultBrand = "Unknown"
	// DefaultCategory is assigned to every extracted record.
	DefaultCategory = "General"
)

// Field identifies a canonical record field.
type Field string

const (
	FieldProductCode Field = "product_code"
	FieldDescription Field = "description"
	FieldCostUSD     Field = "cost_usd"
	FieldBrand       Field = "brand"
	FieldCategory    Field = "category"
	FieldStock       Field = "stock_quantity"
)

// RequiredFields must be resolvable for a spreadsheet to be ingested.
var RequiredFields = []Field{FieldProductCode, FieldDescription, FieldCostUSD}

// Record is the canonical shape produced by both extraction paths.
// Optional members are nil when the source did not supply a value; the
// upserter only overwrites stored values for non-nil members.
type Record struct {
	ProductCode   string          `json:"product_code"`
	Description   string          `json:"description"`
	Brand         *string         `json:"brand,omitempty"`
	CostUSD       decimal.Decimal `json:"cost_usd"`
	Category      *string         `json:"category,omitempty"`
	StockQuantity *int            `json:"stock_quantity,omitempty"`
}

// NewRecord builds a record with the extractor defaults applied.
func NewRecord(code, description, brand string, cost decimal.Decimal) Record {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		brand = DefaultBrand
	}
	category := DefaultCategory
	return Record{
		ProductCode: strings.TrimSpace(code),
		Description: strings.TrimSpace(description),
		Brand:       &brand,
		CostUSD:     cost,
		Category:    &category,
	}
}

// BrandOrDefault returns the brand, or DefaultBrand when unset or blank.
func (r Record) BrandOrDefault() string {
	if r.Brand == nil || strings.TrimSpace(*r.Brand) == "" {
		return DefaultBrand
	}
	return *r.Brand
}

// CategoryOrDefault returns the category, or DefaultCategory when unset or blank.
func (r Record) CategoryOrDefault() string {
	if r.Category == nil || strings.TrimSpace(*r.Category) == "" {
		return DefaultCategory
	}
	return *r.Category
}

// WithBrand returns a copy of the record with its brand forced to brand.
func (r Record) WithBrand(brand string) Record {
	b := brand
	r.Brand = &b
	return r
}

// Entry is a persisted catalog product keyed by ProductCode.
type Entry struct {
	ID            uuid.UUID       `json:"id"`
	ProductCode   string          `json:"product_code"`
	Description   string          `json:"description"`
	Brand         string          `json:"brand"`
	CostUSD       decimal.Decimal `json:"cost_usd"`
	CostLocal     decimal.Decimal `json:"cost_local"`
	StockQuantity int             `json:"stock_quantity"`
	Category      string          `json:"category"`
	ImageURL      *string         `json:"image_url,omitempty"`
	LastUpdated   time.Time       `json:"last_updated"`
}

// EntryUpdate carries the fields applied to an existing entry.
// Nil pointers keep the stored value.
type EntryUpdate struct {
	Description   string
	CostUSD       decimal.Decimal
	CostLocal     decimal.Decimal
	Brand         *string
	Category      *string
	StockQuantity *int
}

// PriceHistoryEntry is an append-only audit row for a cost change.
type PriceHistoryEntry struct {
	ID         uuid.UUID       `json:"id"`
	ProductID  uuid.UUID       `json:"product_id"`
	OldCostUSD decimal.Decimal `json:"old_cost_usd"`
	NewCostUSD decimal.Decimal `json:"new_cost_usd"`
	ChangedBy  string          `json:"changed_by"`
	ChangedAt  time.Time       `json:"changed_at"`
}

// PricedRecord is a canonical record with its cost in the local currency.
type PricedRecord struct {
	Record
	CostLocal decimal.Decimal `json:"cost_local"`
}
