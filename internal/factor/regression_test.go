package factor

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitOLS(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	t.Run("identity has unit beta and perfect fit", func(t *testing.T) {
		x := randomReturns(rng, 100, 0.01)

		fit, err := FitOLS(x, x)
		require.NoError(t, err)

		assert.InDelta(t, 1.0, fit.Beta, 1e-9)
		assert.InDelta(t, 0.0, fit.Alpha, 1e-12)
		assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
	})

	t.Run("recovers an exact linear relation", func(t *testing.T) {
		x := randomReturns(rng, 100, 0.01)
		y := make([]float64, len(x))
		for i := range x {
			y[i] = 0.002 + 1.5*x[i]
		}

		fit, err := FitOLS(y, x)
		require.NoError(t, err)

		assert.InDelta(t, 1.5, fit.Beta, 1e-9)
		assert.InDelta(t, 0.002, fit.Alpha, 1e-9)
		assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
		for _, r := range fit.Residuals {
			assert.InDelta(t, 0.0, r, 1e-12)
		}
	})

	t.Run("independent series have near-zero R²", func(t *testing.T) {
		x := randomReturns(rng, 1000, 0.01)
		y := randomReturns(rng, 1000, 0.01)

		fit, err := FitOLS(y, x)
		require.NoError(t, err)

		assert.Less(t, fit.RSquared, 0.05)
		assert.GreaterOrEqual(t, fit.RSquared, 0.0)
	})

	t.Run("scaling the target scales beta and keeps R²", func(t *testing.T) {
		x := randomReturns(rng, 200, 0.01)
		y := combine([]float64{0.9, 1}, x, randomReturns(rng, 200, 0.005))
		scaled := combine([]float64{3}, y)

		base, err := FitOLS(y, x)
		require.NoError(t, err)
		fit, err := FitOLS(scaled, x)
		require.NoError(t, err)

		assert.InDelta(t, 3*base.Beta, fit.Beta, 1e-9)
		assert.InDelta(t, base.RSquared, fit.RSquared, 1e-9)
	})

	t.Run("residuals sum to zero", func(t *testing.T) {
		x := randomReturns(rng, 200, 0.01)
		y := combine([]float64{1.1, 1}, x, randomReturns(rng, 200, 0.01))

		fit, err := FitOLS(y, x)
		require.NoError(t, err)

		sum := 0.0
		for _, r := range fit.Residuals {
			sum += r
		}
		assert.InDelta(t, 0.0, sum, 1e-12)
	})

	t.Run("constant target has zero beta and R²", func(t *testing.T) {
		x := randomReturns(rng, 50, 0.01)
		y := make([]float64, 50)

		fit, err := FitOLS(y, x)
		require.NoError(t, err)

		assert.InDelta(t, 0.0, fit.Beta, 1e-12)
		assert.Equal(t, 0.0, fit.RSquared)
	})

	t.Run("constant predictor is degenerate", func(t *testing.T) {
		x := make([]float64, 50)
		_, err := FitOLS(randomReturns(rng, 50, 0.01), x)
		assert.ErrorIs(t, err, errDegeneratePredictor)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := FitOLS([]float64{1, 2, 3}, []float64{1, 2})
		assert.ErrorIs(t, err, errLengthMismatch)
	})

	t.Run("one observation", func(t *testing.T) {
		_, err := FitOLS([]float64{1}, []float64{1})
		assert.ErrorIs(t, err, errTooFewPoints)
	})
}

func TestMarketRegression(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	dates := tradingDays(testEnd, 60)

	t.Run("returns fit and dated residuals", func(t *testing.T) {
		bench := randomReturns(rng, 60, 0.01)
		asset := combine([]float64{1.2, 1}, bench, randomReturns(rng, 60, 0.002))

		result, residual, err := MarketRegression(
			returnSeries("7203", dates, asset), returnSeries("benchmark", dates, bench), 20)
		require.NoError(t, err)

		assert.Equal(t, 60, result.DataPoints)
		assert.InDelta(t, 1.2, result.Beta, 0.1)
		assert.Greater(t, result.RSquared, 0.8)
		assert.Equal(t, dates[0], result.DateRange.From)
		assert.Equal(t, dates[59], result.DateRange.To)

		require.Equal(t, 60, residual.Len())
		assert.Equal(t, "7203 residual", residual.Label)
		assert.Equal(t, dates[10], residual.Points[10].Date)
	})

	t.Run("too few aligned points", func(t *testing.T) {
		bench := randomReturns(rng, 5, 0.01)

		_, _, err := MarketRegression(
			returnSeries("7203", dates[:5], bench), returnSeries("benchmark", dates[:5], bench), 20)

		require.Error(t, err)
		assert.Equal(t, KindInsufficientData, KindOf(err))
	})

	t.Run("flat benchmark cannot yield a beta", func(t *testing.T) {
		flat := make([]float64, 60)

		_, _, err := MarketRegression(
			returnSeries("7203", dates, randomReturns(rng, 60, 0.01)), returnSeries("benchmark", dates, flat), 20)

		require.Error(t, err)
		assert.Equal(t, KindInsufficientData, KindOf(err))
		assert.Contains(t, err.Error(), "zero return variance")
	})
}
