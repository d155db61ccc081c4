package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
)

var productCols = []string{
	"id", "product_code", "description", "brand", "cost_usd", "cost_lps",
	"stock_quantity", "category", "image_url", "last_updated",
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresCatalogStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresCatalogStore(mock)
}

// ============================================================================
// Transactions
// ============================================================================

func TestPostgresStore_InsertNewProduct(t *testing.T) {
	mock, store := newMockStore(t)
	ctx := context.Background()

	rec := catalog.NewRecord("ABC-1", "Mouse USB", "Logitech", decimal.RequireFromString("350.00"))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM products WHERE product_code = \$1 FOR UPDATE`).
		WithArgs("ABC-1").
		WillReturnRows(pgxmock.NewRows(productCols))
	mock.ExpectExec(`INSERT INTO products`).
		WithArgs(pgxmock.AnyArg(), "ABC-1", "Mouse USB", "Logitech", "350", "8750", 0, "General").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO brands`).
		WithArgs("Logitech").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	var insertedID uuid.UUID
	err := store.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.Lookup(ctx, "ABC-1")
		require.ErrorIs(t, err, ErrNotFound)

		id, err := tx.Insert(ctx, rec, rec.CostUSD.Mul(decimal.NewFromInt(25)))
		if err != nil {
			return err
		}
		insertedID = id
		return tx.RegisterBrand(ctx, rec.BrandOrDefault())
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, insertedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateWithHistory(t *testing.T) {
	mock, store := newMockStore(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("ABC-1").
		WillReturnRows(pgxmock.NewRows(productCols).
			AddRow(id, "ABC-1", "Mouse USB", "Logitech", "350.00", "8750.00", 4, "Perifericos", nil, now))
	mock.ExpectExec(`INSERT INTO product_price_history`).
		WithArgs(pgxmock.AnyArg(), id, "350", "360", "Importador").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE products`).
		WithArgs(id, "Mouse USB Optico", "360", "9000", (*string)(nil), (*string)(nil), (*int)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.WithinTx(ctx, func(tx Tx) error {
		existing, err := tx.Lookup(ctx, "ABC-1")
		if err != nil {
			return err
		}
		assert.Equal(t, 4, existing.StockQuantity)
		assert.Equal(t, "Perifericos", existing.Category)
		assert.True(t, existing.CostUSD.Equal(decimal.NewFromInt(350)))

		newCost := decimal.NewFromInt(360)
		if err := tx.AppendHistory(ctx, catalog.PriceHistoryEntry{
			ProductID:  existing.ID,
			OldCostUSD: existing.CostUSD,
			NewCostUSD: newCost,
			ChangedBy:  "Importador",
		}); err != nil {
			return err
		}
		return tx.Update(ctx, existing.ID, catalog.EntryUpdate{
			Description: "Mouse USB Optico",
			CostUSD:     newCost,
			CostLocal:   newCost.Mul(decimal.NewFromInt(25)),
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RollbackOnError(t *testing.T) {
	mock, store := newMockStore(t)
	ctx := context.Background()
	boom := errors.New("check constraint violated")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO products`).
		WillReturnError(boom)
	mock.ExpectRollback()

	rec := catalog.NewRecord("X-1", "Cable", "", decimal.NewFromInt(1))
	err := store.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.Insert(ctx, rec, decimal.Zero)
		return err
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateMissingRow(t *testing.T) {
	mock, store := newMockStore(t)
	ctx := context.Background()
	id := uuid.New()
	brand := "HP"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE products`).
		WithArgs(id, "Toner", "10", "250", &brand, (*string)(nil), (*int)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := store.WithinTx(ctx, func(tx Tx) error {
		return tx.Update(ctx, id, catalog.EntryUpdate{
			Description: "Toner",
			CostUSD:     decimal.NewFromInt(10),
			CostLocal:   decimal.NewFromInt(250),
			Brand:       &brand,
		})
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================================================
// Reads and maintenance
// ============================================================================

func TestPostgresStore_GetByCode_NotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery(`FROM products WHERE product_code = \$1`).
		WithArgs("NOPE").
		WillReturnRows(pgxmock.NewRows(productCols))

	_, err := store.GetByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEntries(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM products WHERE brand = \$1 ORDER BY product_code LIMIT \$2 OFFSET \$3`).
		WithArgs("HP", DefaultListLimit, 0).
		WillReturnRows(pgxmock.NewRows(productCols).
			AddRow(uuid.New(), "A-1", "Toner 85A", "HP", "45.5", "1137.5", 0, "General", nil, now).
			AddRow(uuid.New(), "A-2", "Toner 12A", "HP", "39.9", "997.5", 2, "General", nil, now))

	entries, err := store.ListEntries(context.Background(), ListFilter{Brand: "HP"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "A-1", entries[0].ProductCode)
	assert.True(t, entries[1].CostUSD.Equal(decimal.RequireFromString("39.9")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListHistory(t *testing.T) {
	mock, store := newMockStore(t)
	productID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM product_price_history`).
		WithArgs(productID, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "old_cost_usd", "new_cost_usd", "changed_by", "changed_at"}).
			AddRow(uuid.New(), productID, "10", "12", "Importador", now).
			AddRow(uuid.New(), productID, "9", "10", "admin", now.Add(-time.Hour)))

	history, err := store.ListHistory(context.Background(), productID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].NewCostUSD.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, "admin", history[1].ChangedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClearProductsKeepsBrands(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec(`DELETE FROM products`).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectQuery(`SELECT name FROM brands ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("HP").AddRow("Logitech"))

	n, err := store.ClearProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	brands, err := store.ListBrands(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"HP", "Logitech"}, brands)
	assert.NoError(t, mock.ExpectationsWereMet())
}
