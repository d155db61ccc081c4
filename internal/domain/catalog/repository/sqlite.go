package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
)

const sqliteEntryColumns = `id, product_code, description, brand, cost_usd, cost_lps,
	stock_quantity, category, image_url, last_updated`

// sqlExecer is satisfied by both *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteCatalogStore implements CatalogStore on a local SQLite file. The
// database handle is expected to hold a single connection, which serializes
// record transactions.
type SQLiteCatalogStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCatalogStore creates a new SQLite catalog store
func NewSQLiteCatalogStore(db *sql.DB) *SQLiteCatalogStore {
	return &SQLiteCatalogStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLiteCatalogStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteCatalogStore) GetByCode(ctx context.Context, code string) (*catalog.Entry, error) {
	query := `SELECT ` + sqliteEntryColumns + ` FROM products WHERE product_code = ?`
	return scanSQLiteEntry(s.db.QueryRowContext(ctx, query, code))
}

func (s *SQLiteCatalogStore) ListEntries(ctx context.Context, filter ListFilter) ([]catalog.Entry, error) {
	query := `SELECT ` + sqliteEntryColumns + ` FROM products`
	args := []any{}
	if filter.Brand != "" {
		query += ` WHERE brand = ?`
		args = append(args, filter.Brand)
	}
	query += ` ORDER BY product_code LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
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

func (s *SQLiteCatalogStore) ListHistory(ctx context.Context, productID uuid.UUID, limit int) ([]catalog.PriceHistoryEntry, error) {
	query := `
		SELECT id, product_id, old_cost_usd, new_cost_usd, changed_by, changed_at
		FROM product_price_history
		WHERE product_id = ?
		ORDER BY changed_at DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, productID, limitOrDefault(limit))
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

func (s *SQLiteCatalogStore) ClearProducts(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear products: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared products: %w", err)
	}
	return n, nil
}

func (s *SQLiteCatalogStore) ListBrands(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM brands ORDER BY name`)
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

func (s *SQLiteCatalogStore) RegisterBrand(ctx context.Context, name string) error {
	return registerSQLiteBrand(ctx, s.db, name, s.now())
}

type sqliteTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *sqliteTx) Lookup(ctx context.Context, code string) (*catalog.Entry, error) {
	query := `SELECT ` + sqliteEntryColumns + ` FROM products WHERE product_code = ?`
	return scanSQLiteEntry(t.tx.QueryRowContext(ctx, query, code))
}

func (t *sqliteTx) Insert(ctx context.Context, rec catalog.Record, costLocal decimal.Decimal) (uuid.UUID, error) {
	query := `
		INSERT INTO products (id, product_code, description, brand, cost_usd, cost_lps, stock_quantity, category, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id := uuid.New()
	stock := 0
	if rec.StockQuantity != nil {
		stock = *rec.StockQuantity
	}

	_, err := t.tx.ExecContext(ctx, query,
		id,
		rec.ProductCode,
		rec.Description,
		rec.BrandOrDefault(),
		rec.CostUSD,
		costLocal,
		stock,
		rec.CategoryOrDefault(),
		t.now(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert product: %w", err)
	}
	return id, nil
}

func (t *sqliteTx) Update(ctx context.Context, id uuid.UUID, upd catalog.EntryUpdate) error {
	query := `
		UPDATE products
		SET description = ?,
			cost_usd = ?,
			cost_lps = ?,
			brand = COALESCE(?, brand),
			category = COALESCE(?, category),
			stock_quantity = COALESCE(?, stock_quantity),
			last_updated = ?
		WHERE id = ?`

	res, err := t.tx.ExecContext(ctx, query,
		upd.Description,
		upd.CostUSD,
		upd.CostLocal,
		upd.Brand,
		upd.Category,
		upd.StockQuantity,
		t.now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) AppendHistory(ctx context.Context, entry catalog.PriceHistoryEntry) error {
	query := `
		INSERT INTO product_price_history (id, product_id, old_cost_usd, new_cost_usd, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	changedAt := entry.ChangedAt
	if changedAt.IsZero() {
		changedAt = t.now()
	}

	_, err := t.tx.ExecContext(ctx, query,
		entry.ID,
		entry.ProductID,
		entry.OldCostUSD,
		entry.NewCostUSD,
		entry.ChangedBy,
		changedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

func (t *sqliteTx) RegisterBrand(ctx context.Context, name string) error {
	return registerSQLiteBrand(ctx, t.tx, name, t.now())
}

func registerSQLiteBrand(ctx context.Context, q sqlExecer, name string, at time.Time) error {
	query := `INSERT INTO brands (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`
	if _, err := q.ExecContext(ctx, query, name, at); err != nil {
		return fmt.Errorf("failed to register brand: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEntry(row rowScanner) (*catalog.Entry, error) {
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
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return e, nil
}
