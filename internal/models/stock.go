package models

import "time"

// Stock represents core stock information
type Stock struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Exchange      string    `json:"exchange,omitempty"`
	Sector        string    `json:"sector,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousClose float64   `json:"previous_close"`
	LastUpdated   time.Time `json:"last_updated"`
	CreatedAt     time.Time `json:"created_at"`
}
