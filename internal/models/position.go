package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is a named set of holdings
type Portfolio struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Holding represents one constituent of a portfolio
type Holding struct {
	ID           int             `json:"id"`
	PortfolioID  string          `json:"portfolio_id"`
	Code         string          `json:"code"`
	CompanyName  string          `json:"company_name,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	PurchaseDate *time.Time      `json:"purchase_date,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
