package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the wire format for trading dates
const DateFormat = "2006-01-02"

// PriceDataDaily represents daily OHLCV price data for a stock or index
type PriceDataDaily struct {
	ID        int             `json:"id"`
	Symbol    string          `json:"symbol"`
	Date      time.Time       `json:"date"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	VWAP      decimal.Decimal `json:"vwap,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PricePoint is one trading day's close for a symbol
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// DateRange is an inclusive calendar range
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls within the range, inclusive on both ends
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}
