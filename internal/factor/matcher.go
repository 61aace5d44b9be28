package factor

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// CandidateSeries is a candidate index with its return series
type CandidateSeries struct {
	Candidate models.IndexCandidate
	Returns   ReturnSeries
}

// MatchCategory regresses the residual series against every candidate of a category
// and returns the best `top` matches. Candidates that share fewer than minDataPoints
// dates with the residual, or whose returns are constant, are skipped; any other fit
// failure is returned. The result is never nil, so an empty category reports as an
// empty list.
func MatchCategory(category models.FactorCategory, residual ReturnSeries, candidates []CandidateSeries, minDataPoints, top int) ([]models.IndexMatch, error) {
	matches := make([]models.IndexMatch, 0, len(candidates))
	for _, c := range candidates {
		target, predictor := AlignReturns(residual, c.Returns)
		if target.Len() < minDataPoints {
			continue
		}
		fit, err := FitOLS(target.Values(), predictor.Values())
		if errors.Is(err, errDegeneratePredictor) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fitting %s against index %s: %w", residual.Label, c.Candidate.Code, err)
		}
		matches = append(matches, models.IndexMatch{
			IndexCode: c.Candidate.Code,
			IndexName: c.Candidate.Name,
			Category:  category,
			RSquared:  fit.RSquared,
			Beta:      fit.Beta,
		})
	}
	return RankMatches(matches, top), nil
}

// RankMatches orders matches by R² descending, breaking ties by ascending index code,
// and truncates to top.
func RankMatches(matches []models.IndexMatch, top int) []models.IndexMatch {
	slices.SortFunc(matches, func(a, b models.IndexMatch) int {
		if c := cmp.Compare(b.RSquared, a.RSquared); c != 0 {
			return c
		}
		return strings.Compare(a.IndexCode, b.IndexCode)
	})
	if top >= 0 && len(matches) > top {
		matches = matches[:top]
	}
	return matches
}
