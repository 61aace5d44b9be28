package factor

import (
	"io"
	"math/rand/v2"
	"time"

	"github.com/phuslu/log"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

var quietLogger = &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}

// testEnd is a Tuesday
var testEnd = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

// tradingDays returns n ascending weekdays ending on or before end
func tradingDays(end time.Time, n int) []time.Time {
	days := make([]time.Time, n)
	d := end
	for i := n - 1; i >= 0; {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days[i] = d
			i--
		}
		d = d.AddDate(0, 0, -1)
	}
	return days
}

// pricesFromReturns compounds returns from start; dates must have one more entry than returns
func pricesFromReturns(dates []time.Time, start float64, returns []float64) []models.PricePoint {
	prices := make([]models.PricePoint, len(dates))
	price := start
	prices[0] = models.PricePoint{Date: dates[0], Close: price}
	for i, r := range returns {
		price *= 1 + r
		prices[i+1] = models.PricePoint{Date: dates[i+1], Close: price}
	}
	return prices
}

func randomReturns(rng *rand.Rand, n int, sigma float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out
}

// combine returns sum(coef[k] * series[k][i]) for each i
func combine(coefs []float64, series ...[]float64) []float64 {
	out := make([]float64, len(series[0]))
	for k, s := range series {
		for i, v := range s {
			out[i] += coefs[k] * v
		}
	}
	return out
}

func returnSeries(label string, dates []time.Time, values []float64) ReturnSeries {
	s := ReturnSeries{Label: label, Points: make([]ReturnPoint, len(values))}
	for i, v := range values {
		s.Points[i] = ReturnPoint{Date: dates[i], Return: v}
	}
	return s
}

func ptr[T any](v T) *T {
	return &v
}
