package derived

import (
	"errors"
	"math"

	"provenance-audit/internal/census"
)

const (
	// HousingCostShare is the share of gross income treated as affordable housing cost.
	HousingCostShare = 0.30
	// PITIMonthlyFactor approximates monthly principal, interest, taxes and insurance
	// as a fraction of home value.
	PITIMonthlyFactor = 0.006
	// AffordabilityMethod is recorded in the affordability block provenance.
	AffordabilityMethod = "30% income rule using ACS median gross rent and/or median home value PITI heuristic"
)

var ErrNoHousingCost = errors.New("neither median gross rent nor median home value is available")

// BracketShare is one income bracket's household count and share of all households.
type BracketShare struct {
	Households float64 `json:"households"`
	Percentage float64 `json:"percentage"`
}

// Affordability is the outcome of the 30% rule over an income distribution.
type Affordability struct {
	MonthlyHousingCost     float64                 `json:"monthly_housing_cost"`
	RequiredIncome         float64                 `json:"required_income"`
	CanAfford              float64                 `json:"can_afford"`
	CannotAfford           float64                 `json:"cannot_afford"`
	CanAffordPercentage    float64                 `json:"can_afford_percentage"`
	CannotAffordPercentage float64                 `json:"cannot_afford_percentage"`
	TotalHouseholds        float64                 `json:"total_households"`
	IncomeBreakdown        map[string]BracketShare `json:"income_breakdown"`
	MedianHomeValueUsed    *float64                `json:"median_home_value_used"`
	MedianGrossRentUsed    *float64                `json:"median_gross_rent_used"`
}

// ComputeAffordability applies the 30% rule. The monthly cost is the larger of median gross
// rent and the PITI proxy of median home value, whichever are present. households maps
// B19001 bracket codes to counts; missing brackets count as zero.
func ComputeAffordability(medianHomeValue, medianGrossRent *float64, totalHouseholds float64, households map[string]float64) (Affordability, error) {
	var monthly float64
	switch {
	case medianGrossRent != nil && medianHomeValue != nil:
		monthly = math.Max(*medianGrossRent, PITIMonthlyFactor*(*medianHomeValue))
	case medianGrossRent != nil:
		monthly = *medianGrossRent
	case medianHomeValue != nil:
		monthly = PITIMonthlyFactor * *medianHomeValue
	default:
		return Affordability{}, ErrNoHousingCost
	}
	if totalHouseholds <= 0 {
		return Affordability{}, errors.New("total households must be positive")
	}

	out := Affordability{
		MonthlyHousingCost:  monthly,
		RequiredIncome:      monthly * 12 / HousingCostShare,
		TotalHouseholds:     totalHouseholds,
		IncomeBreakdown:     map[string]BracketShare{},
		MedianHomeValueUsed: medianHomeValue,
		MedianGrossRentUsed: medianGrossRent,
	}
	for _, bracket := range census.IncomeBrackets {
		n := households[bracket.Code]
		if n > 0 {
			out.IncomeBreakdown[bracket.Description] = BracketShare{
				Households: n,
				Percentage: n / totalHouseholds * 100,
			}
		}
		if bracket.MaxIncome >= out.RequiredIncome {
			out.CanAfford += n
		} else {
			out.CannotAfford += n
		}
	}
	out.CanAffordPercentage = out.CanAfford / totalHouseholds * 100
	out.CannotAffordPercentage = out.CannotAfford / totalHouseholds * 100
	return out, nil
}

// Map flattens the result for storage in a computed block.
func (a Affordability) Map() map[string]any {
	return map[string]any{
		"monthly_housing_cost":     a.MonthlyHousingCost,
		"required_income":          a.RequiredIncome,
		"can_afford":               a.CanAfford,
		"cannot_afford":            a.CannotAfford,
		"can_afford_percentage":    a.CanAffordPercentage,
		"cannot_afford_percentage": a.CannotAffordPercentage,
		"total_households":         a.TotalHouseholds,
		"income_breakdown":         a.IncomeBreakdown,
		"median_home_value_used":   a.MedianHomeValueUsed,
		"median_gross_rent_used":   a.MedianGrossRentUsed,
	}
}
