package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
)

// Pool is the subset of *pgxpool.Pool used by the store.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier is satisfied by both Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const entryColumns = `id, product_code, description, brand, cost_usd::text, cost_lps::text,
	stock_quantity, category, image_url, last_updated`

// PostgresCatalogStore implements CatalogStore using PostgreSQL
type PostgresCatalogStore struct {
	pool Pool
}

// NewPostgresCatalogStore creates a new PostgreSQL catalog store
func NewPostgresCatalogStore(pool Pool) *PostgresCatalogStore {
	return &PostgresCatalogStore{pool: pool}
}

// WithinTx runs fn in a transaction, committing only when fn succeeds.
func (s *PostgresCatalogStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByCode retrieves an entry by product code
func (s *PostgresCatalogStore) GetByCode(ctx context.Context, code string) (*catalog.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM products WHERE product_code = $1`
	return scanEntry(s.pool.QueryRow(ctx, query, code))
}

// ListEntries lists entries ordered by product code
func (s *PostgresCatalogStore) ListEntries(ctx context.Context, filter ListFilter) ([]catalog.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM products`
	args := []any{}
	if filter.Brand != "" {
		query += ` WHERE brand = $1`
		args = append(args, filter.Brand)
	}
	query += fmt.Sprintf(` ORDER BY product_code LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return entries, nil
}

// ListHistory returns price changes for a product, newest first
func (s *PostgresCatalogStore) ListHistory(ctx context.Context, productID uuid.UUID, limit int) ([]catalog.PriceHistoryEntry, error) {
	query := `
		SELECT id, product_id, old_cost_usd::text, new_cost_usd::text, changed_by, changed_at
		FROM product_price_history
		WHERE product_id = $1
		ORDER BY changed_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, productID, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer rows.Close()

	var history []catalog.PriceHistoryEntry
	for rows.Next() {
		var h catalog.PriceHistoryEntry
		if err := rows.Scan(&h.ID, &h.ProductID, &h.OldCostUSD, &h.NewCostUSD, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price history: %w", err)
	}
	return history, nil
}

// ClearProducts deletes all products; history cascades
func (s *PostgresCatalogStore) ClearProducts(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear products: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListBrands returns registered brands sorted by name
func (s *PostgresCatalogStore) ListBrands(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM brands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer rows.Close()

	var brands []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate brands: %w", err)
	}
	return brands, nil
}

// RegisterBrand adds a brand outside any record transaction
func (s *PostgresCatalogStore) RegisterBrand(ctx context.Context, name string) error {
	return registerBrand(ctx, s.pool, name)
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Lookup(ctx context.Context, code string) (*catalog.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM products WHERE product_code = $1 FOR UPDATE`
	return scanEntry(t.tx.QueryRow(ctx, query, code))
}

func (t *postgresTx) Insert(ctx context.Context, rec catalog.Record, costLocal decimal.Decimal) (uuid.UUID, error) {
	query := `
		INSERT INTO products (id, product_code, description, brand, cost_usd, cost_lps, stock_quantity, category, last_updated)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, now())`

	id := uuid.New()
	stock := 0
	if rec.StockQuantity != nil {
		stock = *rec.StockQuantity
	}

	_, err := t.tx.Exec(ctx, query,
		id,
		rec.ProductCode,
		rec.Description,
		rec.BrandOrDefault(),
		rec.CostUSD.String(),
		costLocal.String(),
		stock,
		rec.CategoryOrDefault(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert product: %w", err)
	}
	return id, nil
}

func (t *postgresTx) Update(ctx context.Context, id uuid.UUID, upd catalog.EntryUpdate) error {
	query := `
		UPDATE products
		SET description = $2,
			cost_usd = $3::numeric,
			cost_lps = $4::numeric,
			brand = COALESCE($5, brand),
			category = COALESCE($6, category),
			stock_quantity = COALESCE($7, stock_quantity),
			last_updated = now()
		WHERE id = $1`

	tag, err := t.tx.Exec(ctx, query,
		id,
		upd.Description,
		upd.CostUSD.String(),
		upd.CostLocal.String(),
		upd.Brand,
		upd.Category,
		upd.StockQuantity,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) AppendHistory(ctx context.Context, entry catalog.PriceHistoryEntry) error {
	query := `
		INSERT INTO product_price_history (id, product_id, old_cost_usd, new_cost_usd, changed_by, changed_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, now())`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	_, err := t.tx.Exec(ctx, query,
		entry.ID,
		entry.ProductID,
		entry.OldCostUSD.String(),
		entry.NewCostUSD.String(),
		entry.ChangedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

func (t *postgresTx) RegisterBrand(ctx context.Context, name string) error {
	return registerBrand(ctx, t.tx, name)
}

func registerBrand(ctx context.Context, q querier, name string) error {
	query := `INSERT INTO brands (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`
	if _, err := q.Exec(ctx, query, name); err != nil {
		return fmt.Errorf("failed to register brand: %w", err)
	}
	return nil
}

func scanEntry(row pgx.Row) (*catalog.Entry, error) {
	e := &catalog.Entry{}
	err := row.Scan(
		&e.ID,
		&e.ProductCode,
		&e.Description,
		&e.Brand,
		&e.CostUSD,
		&e.CostLocal,
		&e.StockQuantity,
		&e.Category,
		&e.ImageURL,
		&e.LastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return e, nil
}
