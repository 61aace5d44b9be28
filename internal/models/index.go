package models

import "fmt"

// FactorCategory groups candidate indices for residual matching
type FactorCategory string

// Factor category constants
const (
	CategorySector17   FactorCategory = "SECTOR_17"
	CategorySector33   FactorCategory = "SECTOR_33"
	CategoryTopixStyle FactorCategory = "TOPIX_STYLE"
)

// FactorCategories lists every category in reporting order
var FactorCategories = []FactorCategory{
	CategorySector17,
	CategorySector33,
	CategoryTopixStyle,
}

// ParseFactorCategory validates a stored category value
func ParseFactorCategory(s string) (FactorCategory, error) {
	for _, c := range FactorCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown factor category: %s", s)
}

// IndexCandidate is an index that can explain residual returns
type IndexCandidate struct {
	Code     string         `json:"code"`
	Name     string         `json:"name"`
	Category FactorCategory `json:"category"`
}
