package factor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// Pipeline stage names reported in errors
const (
	stageResolve  = "resolve subject"
	stageFetch    = "fetch prices"
	stageReturns  = "return series"
	stageUniverse = "factor universe"
)

// benchmarkKey cannot collide with a symbol because symbols never contain NUL
const benchmarkKey = "\x00benchmark"

// Options tunes the pipeline
type Options struct {
	DefaultLookbackDays int
	MinDataPoints       int
	TopMatches          int
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		DefaultLookbackDays: 252,
		MinDataPoints:       20,
		TopMatches:          3,
	}
}

// Dependencies are the data-access collaborators the engine reads from.
// Stocks is optional; without it single-stock results carry no company name.
type Dependencies struct {
	Prices     PriceHistoryProvider
	Benchmark  BenchmarkProvider
	Catalog    IndexCatalog
	Portfolios PortfolioProvider
	Stocks     StockDirectory
	Fetcher    *Fetcher
}

// StockRequest asks for a single-stock analysis. Zero LookbackDays means the default.
type StockRequest struct {
	Symbol       string
	LookbackDays int
}

// PortfolioRequest asks for a portfolio analysis. Zero LookbackDays means the default.
type PortfolioRequest struct {
	PortfolioID  string
	LookbackDays int
}

// Engine runs the two-stage factor regression. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	prices     PriceHistoryProvider
	benchmark  BenchmarkProvider
	catalog    IndexCatalog
	portfolios PortfolioProvider
	stocks     StockDirectory
	fetcher    *Fetcher
	opts       Options
	logger     *log.Logger
	now        func() time.Time
}

// NewEngine creates an Engine. Zero-valued options fall back to DefaultOptions.
func NewEngine(deps Dependencies, opts Options) *Engine {
	def := DefaultOptions()
	if opts.DefaultLookbackDays <= 0 {
		opts.DefaultLookbackDays = def.DefaultLookbackDays
	}
	if opts.MinDataPoints <= 0 {
		opts.MinDataPoints = def.MinDataPoints
	}
	if opts.TopMatches <= 0 {
		opts.TopMatches = def.TopMatches
	}
	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(defaultFetchConcurrency, 0)
	}
	return &Engine{
		prices:     deps.Prices,
		benchmark:  deps.Benchmark,
		catalog:    deps.Catalog,
		portfolios: deps.Portfolios,
		stocks:     deps.Stocks,
		fetcher:    fetcher,
		opts:       opts,
		logger:     &log.DefaultLogger,
		now:        time.Now,
	}
}

// WithLogger sets the logger
func (e *Engine) WithLogger(logger *log.Logger) *Engine {
	e.logger = logger
	return e
}

// WithClock sets the clock used for the analysis date and data window
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// AnalyzeStock explains a stock's returns as market exposure plus residual sector and
// style exposure.
func (e *Engine) AnalyzeStock(ctx context.Context, req StockRequest) (*models.FactorAnalysisResult, error) {
	started := time.Now()
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return nil, newError(KindInvalidRequest, stageResolve, "symbol is required")
	}
	lookback, err := e.lookback(req.LookbackDays)
	if err != nil {
		return nil, err
	}
	analysisDate := e.today()
	window := e.window(analysisDate, lookback)

	series, err := FetchAll(ctx, e.fetcher, []string{symbol, benchmarkKey},
		func(ctx context.Context, key string) ([]models.PricePoint, error) {
			if key == benchmarkKey {
				return e.benchmark.GetBenchmarkPrices(ctx, window)
			}
			return e.prices.GetPrices(ctx, key, window)
		})
	if err != nil {
		return nil, wrapError(KindInternal, stageFetch, err, "loading %s and benchmark", symbol)
	}

	stockPrices := NormalizePrices(series[symbol])
	if len(stockPrices) == 0 {
		return nil, newError(KindNotFound, stageResolve, "no price history for symbol %s", symbol)
	}
	companyName, err := e.companyName(ctx, symbol)
	if err != nil {
		return nil, err
	}

	assetReturns, benchReturns := BuildAlignedReturns(
		ReturnInput{Label: symbol, Prices: stockPrices},
		ReturnInput{Label: "benchmark", Prices: NormalizePrices(series[benchmarkKey])},
		lookback,
	)
	if assetReturns.Len() < e.opts.MinDataPoints {
		return nil, insufficientData(stageReturns, assetReturns.Len(), e.opts.MinDataPoints)
	}

	market, residual, err := MarketRegression(assetReturns, benchReturns, e.opts.MinDataPoints)
	if err != nil {
		return nil, err
	}

	matches, err := e.matchFactors(ctx, window, lookback, residual)
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("symbol", symbol).
		Int("lookback_days", lookback).
		Int("data_points", market.DataPoints).
		Float64("market_beta", market.Beta).
		Float64("market_r_squared", market.RSquared).
		Dur("elapsed", time.Since(started)).
		Msg("Stock factor analysis complete")

	return &models.FactorAnalysisResult{
		StockCode:        symbol,
		CompanyName:      companyName,
		MarketBeta:       market.Beta,
		MarketRSquared:   market.RSquared,
		FactorMatches:    matches,
		AnalysisMetadata: models.NewAnalysisMetadata(analysisDate, market),
	}, nil
}

type holdingData struct {
	prices []models.PricePoint
	latest *float64
}

// AnalyzePortfolio aggregates a portfolio's holdings into a market-value weighted return
// series and runs the same two-stage regression over it.
func (e *Engine) AnalyzePortfolio(ctx context.Context, req PortfolioRequest) (*models.PortfolioFactorAnalysisResult, error) {
	started := time.Now()
	id := strings.TrimSpace(req.PortfolioID)
	if id == "" {
		return nil, newError(KindInvalidRequest, stageResolve, "portfolio id is required")
	}
	lookback, err := e.lookback(req.LookbackDays)
	if err != nil {
		return nil, err
	}
	analysisDate := e.today()
	window := e.window(analysisDate, lookback)

	portfolio, err := e.portfolios.GetPortfolio(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, newError(KindNotFound, stageResolve, "portfolio %s does not exist", id)
	}
	if err != nil {
		return nil, wrapError(KindInternal, stageResolve, err, "loading portfolio %s", id)
	}
	holdings, err := e.portfolios.GetHoldings(ctx, id)
	if err != nil {
		return nil, wrapError(KindInternal, stageResolve, err, "loading holdings of %s", id)
	}

	keys := make([]string, 0, len(holdings)+1)
	keys = append(keys, benchmarkKey)
	for _, h := range holdings {
		keys = append(keys, h.Code)
	}
	data, err := FetchAll(ctx, e.fetcher, keys, func(ctx context.Context, key string) (holdingData, error) {
		if key == benchmarkKey {
			prices, err := e.benchmark.GetBenchmarkPrices(ctx, window)
			return holdingData{prices: prices}, err
		}
		prices, err := e.prices.GetPrices(ctx, key, window)
		if err != nil {
			return holdingData{}, err
		}
		latest, err := e.portfolios.GetLatestPrice(ctx, key)
		return holdingData{prices: prices, latest: latest}, err
	})
	if err != nil {
		return nil, wrapError(KindInternal, stageFetch, err, "loading holdings of %s", id)
	}

	benchmark := NormalizePrices(data[benchmarkKey].prices)
	constituents := make([]Constituent, len(holdings))
	for i, h := range holdings {
		d := data[h.Code]
		constituents[i] = Constituent{Holding: h, LatestPrice: d.latest, Prices: NormalizePrices(d.prices)}
	}

	label := portfolio.Name
	if label == "" {
		label = portfolio.ID
	}
	agg, err := WeighPortfolio(label, constituents, benchmark, lookback, e.opts.MinDataPoints)
	if err != nil {
		return nil, err
	}
	if agg.Returns.Len() < e.opts.MinDataPoints {
		return nil, insufficientData(stageReturns, agg.Returns.Len(), e.opts.MinDataPoints)
	}

	market, residual, err := MarketRegression(agg.Returns, agg.Benchmark, e.opts.MinDataPoints)
	if err != nil {
		return nil, err
	}

	matches, err := e.matchFactors(ctx, window, lookback, residual)
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("portfolio_id", id).
		Int("holdings", agg.StockCount).
		Int("included", agg.IncludedStockCount).
		Int("data_points", market.DataPoints).
		Float64("market_beta", market.Beta).
		Dur("elapsed", time.Since(started)).
		Msg("Portfolio factor analysis complete")

	return &models.PortfolioFactorAnalysisResult{
		PortfolioID:        portfolio.ID,
		PortfolioName:      portfolio.Name,
		TotalValue:         agg.TotalValue,
		StockCount:         agg.StockCount,
		IncludedStockCount: agg.IncludedStockCount,
		Weights:            agg.Weights,
		ExcludedStocks:     agg.ExcludedStocks,
		MarketBeta:         market.Beta,
		MarketRSquared:     market.RSquared,
		FactorMatches:      matches,
		AnalysisMetadata:   models.NewAnalysisMetadata(analysisDate, market),
	}, nil
}

// matchFactors loads every category's candidates and their prices, then ranks the
// candidates against the residual series.
func (e *Engine) matchFactors(ctx context.Context, window models.DateRange, lookback int, residual ReturnSeries) (models.FactorMatches, error) {
	categoryKeys := make([]string, len(models.FactorCategories))
	for i, c := range models.FactorCategories {
		categoryKeys[i] = string(c)
	}
	listed, err := FetchAll(ctx, e.fetcher, categoryKeys,
		func(ctx context.Context, key string) ([]models.IndexCandidate, error) {
			return e.catalog.ListCandidates(ctx, models.FactorCategory(key))
		})
	if err != nil {
		return models.FactorMatches{}, wrapError(KindInternal, stageUniverse, err, "listing candidate indices")
	}

	var codes []string
	for _, key := range categoryKeys {
		for _, c := range listed[key] {
			codes = append(codes, c.Code)
		}
	}
	prices, err := FetchAll(ctx, e.fetcher, codes,
		func(ctx context.Context, code string) ([]models.PricePoint, error) {
			return e.prices.GetPrices(ctx, code, window)
		})
	if err != nil {
		return models.FactorMatches{}, wrapError(KindInternal, stageUniverse, err, "loading candidate index prices")
	}

	var matches models.FactorMatches
	for _, category := range models.FactorCategories {
		candidates := make([]CandidateSeries, 0, len(listed[string(category)]))
		for _, c := range listed[string(category)] {
			candidates = append(candidates, CandidateSeries{
				Candidate: c,
				Returns:   BuildReturns(c.Code, NormalizePrices(prices[c.Code]), lookback),
			})
		}
		ranked, err := MatchCategory(category, residual, candidates, e.opts.MinDataPoints, e.opts.TopMatches)
		if err != nil {
			return models.FactorMatches{}, wrapError(KindInternal, stageUniverse, err, "matching %s", category)
		}
		matches.Set(category, ranked)

		e.logger.Debug().
			Str("category", string(category)).
			Int("candidates", len(candidates)).
			Int("matches", len(ranked)).
			Msg("Residual factor matching done")
	}
	return matches, nil
}

func (e *Engine) companyName(ctx context.Context, symbol string) (string, error) {
	if e.stocks == nil {
		return "", nil
	}
	name, err := e.stocks.GetCompanyName(ctx, symbol)
	if errors.Is(err, models.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", wrapError(KindInternal, stageResolve, err, "looking up company name of %s", symbol)
	}
	return name, nil
}

func (e *Engine) lookback(requested int) (int, error) {
	switch {
	case requested == 0:
		return e.opts.DefaultLookbackDays, nil
	case requested < 0:
		return 0, newError(KindInvalidRequest, stageResolve, "lookbackDays must be positive, got %d", requested)
	}
	return requested, nil
}

func (e *Engine) today() time.Time {
	return truncateDay(e.now())
}

// window returns the calendar range that comfortably holds lookbackDays trading days
func (e *Engine) window(today time.Time, lookbackDays int) models.DateRange {
	calendarDays := lookbackDays*7/5 + 30
	return models.DateRange{From: today.AddDate(0, 0, -calendarDays), To: today}
}
