// Package store persists the merged symbol table to Postgres. The database
// is an optional sink; the CSV artifacts remain the primary contract.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/ussymbols/internal/contracts"
)

// Repository handles merged-table persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the symbols table when missing. Safe to call on
// every startup.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS us_symbols (
			symbol               TEXT PRIMARY KEY,
			security_name        TEXT NOT NULL DEFAULT '',
			exchange             TEXT NOT NULL DEFAULT '',
			cik                  TEXT,
			earliest_vendor_date DATE,
			ipo_date             DATE,
			listed_currently     BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create us_symbols table: %w", err)
	}
	return nil
}

// UpsertMerged writes the merged records in one batch. Existing rows are
// updated in place; rows for symbols absent from records are left alone,
// matching the upsert-only universe cache.
func (r *Repository) UpsertMerged(ctx context.Context, records []contracts.MergedRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO us_symbols (
			symbol,
			security_name,
			exchange,
			cik,
			earliest_vendor_date,
			ipo_date,
			listed_currently,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			security_name = EXCLUDED.security_name,
			exchange = EXCLUDED.exchange,
			cik = COALESCE(EXCLUDED.cik, us_symbols.cik),
			earliest_vendor_date = LEAST(EXCLUDED.earliest_vendor_date, us_symbols.earliest_vendor_date),
			ipo_date = LEAST(EXCLUDED.ipo_date, us_symbols.ipo_date),
			listed_currently = EXCLUDED.listed_currently,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.Symbol,
			rec.SecurityName,
			string(rec.Exchange),
			rec.CIK,
			rec.EarliestVendorDate,
			rec.IPODate,
			rec.ListedCurrently,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert symbol batch: %w", err)
		}
	}
	return nil
}

// GetSymbol returns one merged record, or pgx.ErrNoRows.
func (r *Repository) GetSymbol(ctx context.Context, symbol string) (*contracts.MergedRecord, error) {
	query := `
		SELECT symbol, security_name, exchange, cik, earliest_vendor_date, ipo_date, listed_currently
		FROM us_symbols
		WHERE symbol = $1
	`
	rec := &contracts.MergedRecord{}
	var exchange string
	err := r.db.QueryRow(ctx, query, symbol).Scan(
		&rec.Symbol,
		&rec.SecurityName,
		&exchange,
		&rec.CIK,
		&rec.EarliestVendorDate,
		&rec.IPODate,
		&rec.ListedCurrently,
	)
	if err != nil {
		return nil, fmt.Errorf("query symbol %s: %w", symbol, err)
	}
	rec.Exchange = contracts.Exchange(exchange)
	return rec, nil
}
