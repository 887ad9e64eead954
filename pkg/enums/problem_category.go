package enums

import "fmt"

// ProblemCategory groups reported and identified vehicle problems.
type ProblemCategory string

const (
	ProblemCategoryEngine          ProblemCategory = "motor"
	ProblemCategoryBrakes          ProblemCategory = "freios"
	ProblemCategorySuspension      ProblemCategory = "suspensao"
	ProblemCategoryElectrical      ProblemCategory = "eletrica"
	ProblemCategoryTransmission    ProblemCategory = "cambio"
	ProblemCategoryAirConditioning ProblemCategory = "ar_condicionado"
	ProblemCategoryOther           ProblemCategory = "outros"
)

var validProblemCategories = []ProblemCategory{
	ProblemCategoryEngine,
	ProblemCategoryBrakes,
	ProblemCategorySuspension,
	ProblemCategoryElectrical,
	ProblemCategoryTransmission,
	ProblemCategoryAirConditioning,
	ProblemCategoryOther,
}

// String implements fmt.Stringer.
func (p ProblemCategory) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProblemCategory.
func (p ProblemCategory) IsValid() bool {
	for _, candidate := range validProblemCategories {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProblemCategory converts raw input into a ProblemCategory.
func ParseProblemCategory(value string) (ProblemCategory, error) {
	for _, candidate := range validProblemCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid problem category %q", value)
}
