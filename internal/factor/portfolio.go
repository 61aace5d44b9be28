package factor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

const stageWeighting = "portfolio weighting"

// Exclusion reasons
const (
	reasonNoLatestPrice    = "latest price unavailable"
	reasonZeroLatestPrice  = "latest price is zero"
	reasonNegativeQuantity = "negative quantity is not supported"
)

// Constituent is a holding together with the data needed to weigh it
type Constituent struct {
	Holding     models.Holding
	LatestPrice *float64
	Prices      []models.PricePoint
}

// PortfolioAggregate is the weighted portfolio ready for market regression
type PortfolioAggregate struct {
	Weights            []models.PortfolioWeight
	ExcludedStocks     []models.ExcludedStock
	TotalValue         float64
	StockCount         int
	IncludedStockCount int
	Returns            ReturnSeries
	Benchmark          ReturnSeries
}

type includedConstituent struct {
	holding     models.Holding
	latestPrice float64
	marketValue decimal.Decimal
	prices      []models.PricePoint
}

// WeighPortfolio computes market-value weights over the constituents that have a usable
// latest price and enough history aligned with the benchmark. The weighted portfolio
// returns and the benchmark returns are built from the closes every included constituent
// and the benchmark share, so both series measure the same periods.
// Constituent and benchmark prices must be normalized.
func WeighPortfolio(label string, constituents []Constituent, benchmark []models.PricePoint, lookbackDays, minDataPoints int) (PortfolioAggregate, error) {
	agg := PortfolioAggregate{
		Weights:        []models.PortfolioWeight{},
		ExcludedStocks: []models.ExcludedStock{},
		StockCount:     len(constituents),
	}
	if len(constituents) == 0 {
		return agg, newError(KindNoValidStocks, stageWeighting, "portfolio %s has no holdings", label)
	}

	priced := 0
	grossValue := decimal.Zero
	for _, c := range constituents {
		if c.LatestPrice == nil || *c.LatestPrice < 0 || c.Holding.Quantity.IsNegative() {
			continue
		}
		priced++
		grossValue = grossValue.Add(c.Holding.Quantity.Mul(decimal.NewFromFloat(*c.LatestPrice)))
	}
	if priced > 0 && grossValue.IsZero() {
		return agg, newError(KindZeroPortfolioValue, stageWeighting, "holdings of %s are worth 0", label)
	}

	included := make([]includedConstituent, 0, len(constituents))
	for _, c := range constituents {
		if reason := priceExclusion(c); reason != "" {
			agg.ExcludedStocks = append(agg.ExcludedStocks, exclude(c.Holding, reason))
			continue
		}

		returns, _ := BuildAlignedReturns(
			ReturnInput{Label: c.Holding.Code, Prices: c.Prices},
			ReturnInput{Label: "benchmark", Prices: benchmark},
			lookbackDays,
		)
		if returns.Len() < minDataPoints {
			agg.ExcludedStocks = append(agg.ExcludedStocks, exclude(c.Holding, fmt.Sprintf(
				"insufficient price history: %d aligned data points, need at least %d", returns.Len(), minDataPoints)))
			continue
		}

		price := *c.LatestPrice
		included = append(included, includedConstituent{
			holding:     c.Holding,
			latestPrice: price,
			marketValue: c.Holding.Quantity.Mul(decimal.NewFromFloat(price)),
			prices:      c.Prices,
		})
	}

	agg.IncludedStockCount = len(included)
	if len(included) == 0 {
		return agg, newError(KindNoValidStocks, stageWeighting, "all %d holdings of %s were excluded", len(constituents), label)
	}

	total := decimal.Zero
	for _, c := range included {
		total = total.Add(c.marketValue)
	}
	if total.IsZero() {
		return agg, newError(KindZeroPortfolioValue, stageWeighting, "included holdings of %s are worth 0", label)
	}
	agg.TotalValue = total.InexactFloat64()

	shared := benchmark
	for _, c := range included {
		_, shared = AlignPrices(c.prices, shared)
	}
	agg.Benchmark = BuildReturns("benchmark", shared, lookbackDays)

	weights := make([]float64, len(included))
	series := make([]ReturnSeries, len(included))
	for i, c := range included {
		mv := c.marketValue.InexactFloat64()
		weights[i] = mv / agg.TotalValue
		prices, _ := AlignPrices(c.prices, shared)
		series[i] = BuildReturns(c.holding.Code, prices, lookbackDays)
		agg.Weights = append(agg.Weights, models.PortfolioWeight{
			Code:        c.holding.Code,
			CompanyName: c.holding.CompanyName,
			Quantity:    c.holding.Quantity.InexactFloat64(),
			LatestPrice: c.latestPrice,
			MarketValue: mv,
			Weight:      weights[i],
		})
	}

	agg.Returns = AggregateReturns(label, series, weights)
	return agg, nil
}

// AggregateReturns combines series into a weighted sum over the dates present in every
// series. Dates missing from any series are dropped rather than imputed.
func AggregateReturns(label string, series []ReturnSeries, weights []float64) ReturnSeries {
	out := ReturnSeries{Label: label}
	if len(series) == 0 || len(series) != len(weights) {
		return out
	}

	byDate := make([]map[time.Time]float64, len(series))
	for i, s := range series {
		byDate[i] = make(map[time.Time]float64, s.Len())
		for _, p := range s.Points {
			byDate[i][p.Date] = p.Return
		}
	}

	for _, p := range series[0].Points {
		sum := 0.0
		common := true
		for i := range series {
			r, ok := byDate[i][p.Date]
			if !ok {
				common = false
				break
			}
			sum += weights[i] * r
		}
		if common {
			out.Points = append(out.Points, ReturnPoint{Date: p.Date, Return: sum})
		}
	}
	return out
}

func priceExclusion(c Constituent) string {
	switch {
	case c.LatestPrice == nil:
		return reasonNoLatestPrice
	case *c.LatestPrice <= 0:
		return reasonZeroLatestPrice
	case c.Holding.Quantity.IsNegative():
		return reasonNegativeQuantity
	}
	return ""
}

func exclude(h models.Holding, reason string) models.ExcludedStock {
	return models.ExcludedStock{Code: h.Code, CompanyName: h.CompanyName, Reason: reason}
}
