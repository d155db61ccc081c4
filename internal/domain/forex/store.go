package forex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of *pgxpool.Pool used by PostgresRateStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRateStore implements RateStore using PostgreSQL
type PostgresRateStore struct {
	pool Pool
}

// NewPostgresRateStore creates a new PostgreSQL rate store
func NewPostgresRateStore(pool Pool) *PostgresRateStore {
	return &PostgresRateStore{pool: pool}
}

func (s *PostgresRateStore) LatestRate(ctx context.Context) (*Rate, error) {
	query := `
		SELECT id, rate_value::text, rate_date, source
		FROM exchange_rates
		ORDER BY rate_date DESC, id DESC
		LIMIT 1`

	var r Rate
	err := s.pool.QueryRow(ctx, query).Scan(&r.ID, &r.Value, &r.Date, &r.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRateUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest rate: %w", err)
	}
	return &r, nil
}

func (s *PostgresRateStore) SaveRate(ctx context.Context, r Rate) error {
	query := `
		INSERT INTO exchange_rates (id, rate_value, rate_date, source)
		VALUES ($1, $2::numeric, $3, $4)`

	if _, err := s.pool.Exec(ctx, query, r.ID, r.Value.String(), r.Date, r.Source); err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}
	return nil
}

func (s *PostgresRateStore) ListRates(ctx context.Context, limit int) ([]Rate, error) {
	query := `
		SELECT id, rate_value::text, rate_date, source
		FROM exchange_rates
		ORDER BY rate_date DESC, id DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	defer rows.Close()

	var rates []Rate
	for rows.Next() {
		var r Rate
		if err := rows.Scan(&r.ID, &r.Value, &r.Date, &r.Source); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rates: %w", err)
	}
	return rates, nil
}

// SQLiteRateStore implements RateStore on a local SQLite file
type SQLiteRateStore struct {
	db *sql.DB
}

// NewSQLiteRateStore creates a new SQLite rate store
func NewSQLiteRateStore(db *sql.DB) *SQLiteRateStore {
	return &SQLiteRateStore{db: db}
}

func (s *SQLiteRateStore) LatestRate(ctx context.Context) (*Rate, error) {
	query := `
		SELECT id, rate_value, rate_date, source
		FROM exchange_rates
		ORDER BY rate_date DESC, rowid DESC
		LIMIT 1`

	var r Rate
	err := s.db.QueryRowContext(ctx, query).Scan(&r.ID, &r.Value, &r.Date, &r.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRateUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest rate: %w", err)
	}
	return &r, nil
}

func (s *SQLiteRateStore) SaveRate(ctx context.Context, r Rate) error {
	query := `INSERT INTO exchange_rates (id, rate_value, rate_date, source) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, r.ID, r.Value, r.Date.UTC(), r.Source); err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}
	return nil
}

func (s *SQLiteRateStore) ListRates(ctx context.Context, limit int) ([]Rate, error) {
	query := `
		SELECT id, rate_value, rate_date, source
		FROM exchange_rates
		ORDER BY rate_date DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	defer rows.Close()

	var rates []Rate
	for rows.Next() {
		var r Rate
		if err := rows.Scan(&r.ID, &r.Value, &r.Date, &r.Source); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rates: %w", err)
	}
	return rates, nil
}
