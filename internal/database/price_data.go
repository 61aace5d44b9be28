package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

const upsertPriceDataQuery = `
	INSERT INTO price_data_daily (symbol, date, open, high, low, close, volume, vwap, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (symbol, date) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		vwap = EXCLUDED.vwap
`

// CreatePriceDataBatch upserts daily bars for stocks and indices in one transaction
func (db *DB) CreatePriceDataBatch(ctx context.Context, prices []*models.PriceDataDaily) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPriceDataQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range prices {
		var vwap any
		if !p.VWAP.IsZero() {
			vwap = p.VWAP
		}
		_, err := stmt.ExecContext(ctx, p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, vwap, now)
		if err != nil {
			return fmt.Errorf("failed to insert price data for %s: %w", p.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPrices returns daily closes for a stock or index code within r, oldest first.
// An unknown code yields an empty slice.
func (db *DB) GetPrices(ctx context.Context, symbol string, r models.DateRange) ([]models.PricePoint, error) {
	query := `
		SELECT date, close
		FROM price_data_daily
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	prices := []models.PricePoint{}
	for rows.Next() {
		var date time.Time
		var closePrice decimal.Decimal
		if err := rows.Scan(&date, &closePrice); err != nil {
			return nil, fmt.Errorf("failed to scan price data: %w", err)
		}
		prices = append(prices, models.PricePoint{Date: date, Close: closePrice.InexactFloat64()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price data: %w", err)
	}
	return prices, nil
}

// GetLatestPrice returns the most recent close for a code, or nil when none is stored
func (db *DB) GetLatestPrice(ctx context.Context, code string) (*float64, error) {
	query := `
		SELECT close
		FROM price_data_daily
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT 1
	`
	var closePrice decimal.Decimal
	err := db.conn.QueryRowContext(ctx, query, code).Scan(&closePrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price for %s: %w", code, err)
	}

	price := closePrice.InexactFloat64()
	return &price, nil
}
