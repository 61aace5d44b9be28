package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// CreatePortfolio inserts a portfolio, assigning an id when none is set
func (db *DB) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	query := `
		INSERT INTO portfolios (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.conn.ExecContext(ctx, query, p.ID, p.Name, nullString(p.Description), now, now)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPortfolio retrieves a portfolio by id
func (db *DB) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("portfolio %s: %w", id, models.ErrNotFound)
	}

	query := `
		SELECT id, name, description, created_at, updated_at
		FROM portfolios
		WHERE id = $1
	`
	var p models.Portfolio
	var description sql.NullString
	err := db.conn.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("portfolio %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	p.Description = description.String
	return &p, nil
}

// GetHoldings returns a portfolio's holdings with company names where known
func (db *DB) GetHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error) {
	query := `
		SELECT h.id, h.portfolio_id, h.code, COALESCE(s.name, ''), h.quantity, h.purchase_date, h.created_at
		FROM portfolio_holdings h
		LEFT JOIN stocks s ON s.symbol = h.code
		WHERE h.portfolio_id = $1
		ORDER BY h.id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	defer rows.Close()

	holdings := []models.Holding{}
	for rows.Next() {
		var h models.Holding
		var purchaseDate sql.NullTime
		if err := rows.Scan(&h.ID, &h.PortfolioID, &h.Code, &h.CompanyName, &h.Quantity, &purchaseDate, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		if purchaseDate.Valid {
			h.PurchaseDate = &purchaseDate.Time
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}
	return holdings, nil
}

// AddHolding inserts a holding into an existing portfolio
func (db *DB) AddHolding(ctx context.Context, h *models.Holding) error {
	query := `
		INSERT INTO portfolio_holdings (portfolio_id, code, quantity, purchase_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	h.CreatedAt = time.Now()
	err := db.conn.QueryRowContext(ctx, query, h.PortfolioID, h.Code, h.Quantity, h.PurchaseDate, h.CreatedAt).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("failed to add holding %s: %w", h.Code, err)
	}
	return nil
}

// ReplaceHoldings atomically replaces every holding of a portfolio
func (db *DB) ReplaceHoldings(ctx context.Context, portfolioID string, holdings []*models.Holding) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM portfolio_holdings WHERE portfolio_id = $1`, portfolioID); err != nil {
		return fmt.Errorf("failed to delete existing holdings: %w", err)
	}

	query := `
		INSERT INTO portfolio_holdings (portfolio_id, code, quantity, purchase_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	now := time.Now()
	for _, h := range holdings {
		h.PortfolioID = portfolioID
		h.CreatedAt = now
		if err := tx.QueryRowContext(ctx, query, portfolioID, h.Code, h.Quantity, h.PurchaseDate, now).Scan(&h.ID); err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Code, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE portfolios SET updated_at = $1 WHERE id = $2`, now, portfolioID); err != nil {
		return fmt.Errorf("failed to touch portfolio: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
