package factor

import (
	"context"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// PriceHistoryProvider returns ordered daily closes for a stock or index code.
// An unknown symbol yields an empty slice, not an error.
type PriceHistoryProvider interface {
	GetPrices(ctx context.Context, symbol string, r models.DateRange) ([]models.PricePoint, error)
}

// BenchmarkProvider returns the market benchmark's daily closes
type BenchmarkProvider interface {
	GetBenchmarkPrices(ctx context.Context, r models.DateRange) ([]models.PricePoint, error)
}

// IndexCatalog lists the candidate indices of a factor category
type IndexCatalog interface {
	ListCandidates(ctx context.Context, category models.FactorCategory) ([]models.IndexCandidate, error)
}

// PortfolioProvider exposes portfolio composition and latest prices.
// GetPortfolio wraps models.ErrNotFound for unknown ids; GetLatestPrice returns nil
// when no price is known.
type PortfolioProvider interface {
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	GetHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error)
	GetLatestPrice(ctx context.Context, code string) (*float64, error)
}

// StockDirectory resolves company names. It wraps models.ErrNotFound for unknown codes.
type StockDirectory interface {
	GetCompanyName(ctx context.Context, code string) (string, error)
}

// SymbolBenchmark serves the benchmark from a price provider under a fixed code
type SymbolBenchmark struct {
	Prices PriceHistoryProvider
	Symbol string
}

// GetBenchmarkPrices implements BenchmarkProvider
func (b SymbolBenchmark) GetBenchmarkPrices(ctx context.Context, r models.DateRange) ([]models.PricePoint, error) {
	return b.Prices.GetPrices(ctx, b.Symbol, r)
}
