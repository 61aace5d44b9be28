package factor

import (
	"slices"
	"time"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// ReturnPoint is the periodic return ending on Date
type ReturnPoint struct {
	Date   time.Time
	Return float64
}

// ReturnSeries is an ascending, duplicate-free sequence of returns
type ReturnSeries struct {
	Label  string
	Points []ReturnPoint
}

// Len returns the number of returns in the series
func (s ReturnSeries) Len() int {
	return len(s.Points)
}

// Values returns the bare return values in date order
func (s ReturnSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Return
	}
	return values
}

// DateRange returns the first and last return dates
func (s ReturnSeries) DateRange() models.DateRange {
	if len(s.Points) == 0 {
		return models.DateRange{}
	}
	return models.DateRange{From: s.Points[0].Date, To: s.Points[len(s.Points)-1].Date}
}

// NormalizePrices sorts prices ascending by date, keeps the last close seen for a
// duplicated date and drops non-positive closes, which cannot produce a return.
func NormalizePrices(prices []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(prices))
	for _, p := range prices {
		if p.Close > 0 {
			out = append(out, models.PricePoint{Date: truncateDay(p.Date), Close: p.Close})
		}
	}
	slices.SortStableFunc(out, func(a, b models.PricePoint) int {
		return a.Date.Compare(b.Date)
	})

	deduped := out[:0]
	for _, p := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// BuildReturns converts the most recent lookbackDays+1 closes into returns.
// prices must already be normalized.
func BuildReturns(label string, prices []models.PricePoint, lookbackDays int) ReturnSeries {
	if lookbackDays > 0 && len(prices) > lookbackDays+1 {
		prices = prices[len(prices)-lookbackDays-1:]
	}
	series := ReturnSeries{Label: label}
	if len(prices) < 2 {
		return series
	}
	series.Points = make([]ReturnPoint, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1].Close
		series.Points = append(series.Points, ReturnPoint{
			Date:   prices[i].Date,
			Return: (prices[i].Close - prev) / prev,
		})
	}
	return series
}

// AlignPrices keeps only the dates present in both normalized price series
func AlignPrices(a, b []models.PricePoint) ([]models.PricePoint, []models.PricePoint) {
	outA := make([]models.PricePoint, 0, min(len(a), len(b)))
	outB := make([]models.PricePoint, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := a[i].Date.Compare(b[j].Date); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			outA = append(outA, a[i])
			outB = append(outB, b[j])
			i++
			j++
		}
	}
	return outA, outB
}

// AlignReturns keeps only the dates present in both return series
func AlignReturns(a, b ReturnSeries) (ReturnSeries, ReturnSeries) {
	outA := ReturnSeries{Label: a.Label}
	outB := ReturnSeries{Label: b.Label}
	i, j := 0, 0
	for i < len(a.Points) && j < len(b.Points) {
		switch c := a.Points[i].Date.Compare(b.Points[j].Date); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			outA.Points = append(outA.Points, a.Points[i])
			outB.Points = append(outB.Points, b.Points[j])
			i++
			j++
		}
	}
	return outA, outB
}

// BuildAlignedReturns aligns an asset's prices with the benchmark's, trims both to the
// lookback window and converts them to returns over identical dates.
func BuildAlignedReturns(asset, benchmark ReturnInput, lookbackDays int) (ReturnSeries, ReturnSeries) {
	a, b := AlignPrices(asset.Prices, benchmark.Prices)
	return BuildReturns(asset.Label, a, lookbackDays), BuildReturns(benchmark.Label, b, lookbackDays)
}

// ReturnInput pairs a label with its normalized prices
type ReturnInput struct {
	Label  string
	Prices []models.PricePoint
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
