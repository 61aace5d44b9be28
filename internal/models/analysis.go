package models

import "time"

// RegressionResult is the outcome of one single-predictor OLS fit
type RegressionResult struct {
	Beta       float64   `json:"beta"`
	Alpha      float64   `json:"alpha"`
	RSquared   float64   `json:"rSquared"`
	DataPoints int       `json:"dataPoints"`
	DateRange  DateRange `json:"dateRange"`
}

// IndexMatch is one residual-vs-index fit
type IndexMatch struct {
	IndexCode string         `json:"indexCode"`
	IndexName string         `json:"indexName"`
	Category  FactorCategory `json:"category"`
	RSquared  float64        `json:"rSquared"`
	Beta      float64        `json:"beta"`
}

// PortfolioWeight is one included constituent's contribution
type PortfolioWeight struct {
	Code        string  `json:"code"`
	CompanyName string  `json:"companyName"`
	Quantity    float64 `json:"quantity"`
	LatestPrice float64 `json:"latestPrice"`
	MarketValue float64 `json:"marketValue"`
	Weight      float64 `json:"weight"`
}

// ExcludedStock is a constituent dropped from analysis
type ExcludedStock struct {
	Code        string `json:"code"`
	CompanyName string `json:"companyName"`
	Reason      string `json:"reason"`
}

// FactorMatches holds the ranked residual matches per category
type FactorMatches struct {
	Sector17Matches   []IndexMatch `json:"sector17Matches"`
	Sector33Matches   []IndexMatch `json:"sector33Matches"`
	TopixStyleMatches []IndexMatch `json:"topixStyleMatches"`
}

// Set stores matches under their category
func (m *FactorMatches) Set(category FactorCategory, matches []IndexMatch) {
	switch category {
	case CategorySector17:
		m.Sector17Matches = matches
	case CategorySector33:
		m.Sector33Matches = matches
	case CategoryTopixStyle:
		m.TopixStyleMatches = matches
	}
}

// ReportDateRange is the date span of the regression, formatted for output
type ReportDateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AnalysisMetadata describes the data behind an analysis
type AnalysisMetadata struct {
	AnalysisDate string          `json:"analysisDate"`
	DataPoints   int             `json:"dataPoints"`
	DateRange    ReportDateRange `json:"dateRange"`
}

// NewAnalysisMetadata builds metadata from the market regression
func NewAnalysisMetadata(analysisDate time.Time, market RegressionResult) AnalysisMetadata {
	return AnalysisMetadata{
		AnalysisDate: analysisDate.Format(DateFormat),
		DataPoints:   market.DataPoints,
		DateRange: ReportDateRange{
			From: market.DateRange.From.Format(DateFormat),
			To:   market.DateRange.To.Format(DateFormat),
		},
	}
}

// FactorAnalysisResult is the single-stock analysis result
type FactorAnalysisResult struct {
	StockCode      string  `json:"stockCode"`
	CompanyName    string  `json:"companyName,omitempty"`
	MarketBeta     float64 `json:"marketBeta"`
	MarketRSquared float64 `json:"marketRSquared"`
	FactorMatches
	AnalysisMetadata
}

// PortfolioFactorAnalysisResult is the portfolio analysis result
type PortfolioFactorAnalysisResult struct {
	PortfolioID        string            `json:"portfolioId"`
	PortfolioName      string            `json:"portfolioName"`
	TotalValue         float64           `json:"totalValue"`
	StockCount         int               `json:"stockCount"`
	IncludedStockCount int               `json:"includedStockCount"`
	Weights            []PortfolioWeight `json:"weights"`
	ExcludedStocks     []ExcludedStock   `json:"excludedStocks"`
	MarketBeta         float64           `json:"marketBeta"`
	MarketRSquared     float64           `json:"marketRSquared"`
	FactorMatches
	AnalysisMetadata
}
