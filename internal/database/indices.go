package database

import (
	"context"
	"fmt"

	"github.com/trogers1052/factor-analysis-service/internal/models"
)

// ListCandidates returns the indices of a factor category ordered by code
func (db *DB) ListCandidates(ctx context.Context, category models.FactorCategory) ([]models.IndexCandidate, error) {
	query := `
		SELECT code, name, category
		FROM factor_indices
		WHERE category = $1
		ORDER BY code ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s indices: %w", category, err)
	}
	defer rows.Close()

	candidates := []models.IndexCandidate{}
	for rows.Next() {
		var c models.IndexCandidate
		var stored string
		if err := rows.Scan(&c.Code, &c.Name, &stored); err != nil {
			return nil, fmt.Errorf("failed to scan factor index: %w", err)
		}
		if c.Category, err = models.ParseFactorCategory(stored); err != nil {
			return nil, fmt.Errorf("factor index %s: %w", c.Code, err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate factor indices: %w", err)
	}
	return candidates, nil
}
