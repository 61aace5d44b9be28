package models

import "time"

// Analysis event type constants
const (
	EventAnalysisRequested = "FACTOR_ANALYSIS_REQUESTED"
	EventAnalysisCompleted = "FACTOR_ANALYSIS_COMPLETED"
	EventAnalysisFailed    = "FACTOR_ANALYSIS_FAILED"
)

// Analysis subject constants
const (
	SubjectStock     = "stock"
	SubjectPortfolio = "portfolio"
)

// AnalysisRequestEvent asks for a factor analysis over Kafka
type AnalysisRequestEvent struct {
	EventType    string    `json:"event_type"`
	RequestID    string    `json:"request_id"`
	SubjectType  string    `json:"subject_type" validate:"required,oneof=stock portfolio"`
	Symbol       string    `json:"symbol,omitempty" validate:"required_if=SubjectType stock,max=16"`
	PortfolioID  string    `json:"portfolio_id,omitempty" validate:"required_if=SubjectType portfolio"`
	LookbackDays int       `json:"lookback_days,omitempty" validate:"gte=0,lte=2520"`
	Timestamp    time.Time `json:"timestamp"`
}

// Subject returns the identifier the request is about
func (e AnalysisRequestEvent) Subject() string {
	if e.SubjectType == SubjectPortfolio {
		return e.PortfolioID
	}
	return e.Symbol
}

// AnalysisResultEvent reports the outcome of a requested analysis
type AnalysisResultEvent struct {
	EventType       string                         `json:"event_type"`
	RequestID       string                         `json:"request_id"`
	SubjectType     string                         `json:"subject_type"`
	Subject         string                         `json:"subject"`
	StockResult     *FactorAnalysisResult          `json:"stock_result,omitempty"`
	PortfolioResult *PortfolioFactorAnalysisResult `json:"portfolio_result,omitempty"`
	ErrorKind       string                         `json:"error_kind,omitempty"`
	ErrorMessage    string                         `json:"error_message,omitempty"`
	Timestamp       time.Time                      `json:"timestamp"`
}

// EventPriceBars is published by market data feeds with settled daily bars
const EventPriceBars = "PRICE_BARS_PUBLISHED"

// PriceBarsEvent carries daily OHLCV bars for stocks and indices. Prices are decimal strings.
type PriceBarsEvent struct {
	EventType string     `json:"event_type"`
	Source    string     `json:"source"`
	Bars      []PriceBar `json:"bars"`
	Timestamp time.Time  `json:"timestamp"`
}

// PriceBar is one symbol's bar for one trading date
type PriceBar struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume int64  `json:"volume"`
	VWAP   string `json:"vwap,omitempty"`
}
