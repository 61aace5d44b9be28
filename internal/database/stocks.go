package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// SaveStock inserts or updates a stock by symbol
func (db *DB) SaveStock(ctx context.Context, s *models.Stock) error {
	query := `
		INSERT INTO stocks (symbol, name, exchange, sector, industry, current_price, previous_close, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			current_price = EXCLUDED.current_price,
			previous_close = EXCLUDED.previous_close,
			last_updated = EXCLUDED.last_updated
		RETURNING id, created_at
	`
	err := db.conn.QueryRowContext(ctx, query,
		s.Symbol, s.Name, nullString(s.Exchange), nullString(s.Sector), nullString(s.Industry),
		s.CurrentPrice, s.PreviousClose, s.LastUpdated,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save stock %s: %w", s.Symbol, err)
	}
	return nil
}

// GetStock retrieves a stock by symbol
func (db *DB) GetStock(ctx context.Context, symbol string) (*models.Stock, error) {
	query := `
		SELECT id, symbol, name, exchange, sector, industry,
			COALESCE(current_price, 0), COALESCE(previous_close, 0), last_updated, created_at
		FROM stocks
		WHERE symbol = $1
	`
	var s models.Stock
	var exchange, sector, industry sql.NullString
	var lastUpdated sql.NullTime

	err := db.conn.QueryRowContext(ctx, query, symbol).Scan(
		&s.ID, &s.Symbol, &s.Name, &exchange, &sector, &industry,
		&s.CurrentPrice, &s.PreviousClose, &lastUpdated, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stock %s: %w", symbol, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}

	s.Exchange = exchange.String
	s.Sector = sector.String
	s.Industry = industry.String
	s.LastUpdated = lastUpdated.Time
	return &s, nil
}

// GetCompanyName returns the stored name of a stock
func (db *DB) GetCompanyName(ctx context.Context, code string) (string, error) {
	var name string
	err := db.conn.QueryRowContext(ctx, `SELECT name FROM stocks WHERE symbol = $1`, code).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("stock %s: %w", code, models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get company name for %s: %w", code, err)
	}
	return name, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
