package factor

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// Below this the predictor is treated as constant
const minPredictorVariance = 1e-20

var (
	errLengthMismatch      = errors.New("target and predictor lengths differ")
	errTooFewPoints        = errors.New("at least two observations are required")
	errDegeneratePredictor = errors.New("predictor has zero variance")
	errNonFiniteFit        = errors.New("regression produced a non-finite coefficient")
)

// Fit is a closed-form single-predictor least squares fit
type Fit struct {
	Alpha     float64
	Beta      float64
	RSquared  float64
	Residuals []float64
}

// FitOLS regresses target on predictor: target = alpha + beta*predictor + residual.
// RSquared is measured against the target's own mean and is 0 when the target is constant.
func FitOLS(target, predictor []float64) (Fit, error) {
	if len(target) != len(predictor) {
		return Fit{}, errLengthMismatch
	}
	if len(target) < 2 {
		return Fit{}, errTooFewPoints
	}

	varX := stat.Variance(predictor, nil)
	if varX <= minPredictorVariance {
		return Fit{}, errDegeneratePredictor
	}

	meanX := stat.Mean(predictor, nil)
	meanY := stat.Mean(target, nil)
	beta := stat.Covariance(predictor, target, nil) / varX
	alpha := meanY - beta*meanX
	if math.IsNaN(beta) || math.IsInf(beta, 0) || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return Fit{}, errNonFiniteFit
	}

	residuals := make([]float64, len(target))
	deviations := make([]float64, len(target))
	for i := range target {
		residuals[i] = target[i] - (alpha + beta*predictor[i])
		deviations[i] = target[i] - meanY
	}

	ssRes := floats.Dot(residuals, residuals)
	ssTot := floats.Dot(deviations, deviations)
	rSquared := 0.0
	if ssTot > 0 {
		rSquared = clampUnit(1 - ssRes/ssTot)
	}

	return Fit{Alpha: alpha, Beta: beta, RSquared: rSquared, Residuals: residuals}, nil
}

// MarketRegression fits asset returns against benchmark returns and returns the fit
// together with the dated residual series.
func MarketRegression(asset, benchmark ReturnSeries, minDataPoints int) (models.RegressionResult, ReturnSeries, error) {
	const stage = "market regression"

	a, b := AlignReturns(asset, benchmark)
	if a.Len() < minDataPoints {
		return models.RegressionResult{}, ReturnSeries{}, insufficientData(stage, a.Len(), minDataPoints)
	}

	fit, err := FitOLS(a.Values(), b.Values())
	switch {
	case errors.Is(err, errDegeneratePredictor):
		return models.RegressionResult{}, ReturnSeries{}, newError(KindInsufficientData, stage,
			"benchmark %s has zero return variance, beta cannot be estimated", benchmark.Label)
	case err != nil:
		return models.RegressionResult{}, ReturnSeries{}, wrapError(KindInternal, stage, err, "fitting %s", asset.Label)
	}

	residual := ReturnSeries{Label: asset.Label + " residual", Points: make([]ReturnPoint, a.Len())}
	for i, p := range a.Points {
		residual.Points[i] = ReturnPoint{Date: p.Date, Return: fit.Residuals[i]}
	}

	return models.RegressionResult{
		Beta:       fit.Beta,
		Alpha:      fit.Alpha,
		RSquared:   fit.RSquared,
		DataPoints: a.Len(),
		DateRange:  a.DateRange(),
	}, residual, nil
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
