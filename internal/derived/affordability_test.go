package derived

import (
	"errors"
	"math"
	"testing"
)

func ptr(f float64) *float64 { return &f }

func TestComputeAffordabilityUsesLargerHousingCost(t *testing.T) {
	t.Parallel()

	// PITI proxy 0.006 * 400000 = 2400 beats rent 1800, so required income is 2400*12/0.3 = 96000.
	households := map[string]float64{
		"B19001_002E": 100, // < 10k
		"B19001_013E": 400, // 75k-99,999
		"B19001_014E": 300, // 100k-124,999
		"B19001_017E": 200, // 200k+
	}
	got, err := ComputeAffordability(ptr(400000), ptr(1800), 1000, households)
	if err != nil {
		t.Fatalf("ComputeAffordability: %v", err)
	}
	if math.Abs(got.RequiredIncome-96000) > 1e-9 {
		t.Fatalf("required income = %v, want 96000", got.RequiredIncome)
	}
	if got.CanAfford != 900 || got.CannotAfford != 100 {
		t.Fatalf("can/cannot = %v/%v, want 900/100", got.CanAfford, got.CannotAfford)
	}
	if math.Abs(got.CanAffordPercentage-90) > 1e-9 {
		t.Fatalf("can afford %% = %v", got.CanAffordPercentage)
	}
	if math.Abs(got.IncomeBreakdown["$200,000 or more"].Percentage-20) > 1e-9 {
		t.Fatalf("breakdown = %+v", got.IncomeBreakdown)
	}
	if _, ok := got.IncomeBreakdown["$10,000 to $14,999"]; ok {
		t.Fatalf("empty brackets should be omitted")
	}
}

func TestComputeAffordabilityRentOnly(t *testing.T) {
	t.Parallel()

	got, err := ComputeAffordability(nil, ptr(1500), 10, map[string]float64{"B19001_016E": 10})
	if err != nil {
		t.Fatalf("ComputeAffordability: %v", err)
	}
	if math.Abs(got.RequiredIncome-60000) > 1e-9 {
		t.Fatalf("required income = %v, want 60000", got.RequiredIncome)
	}
}

func TestComputeAffordabilityNeedsHousingCost(t *testing.T) {
	t.Parallel()

	if _, err := ComputeAffordability(nil, nil, 10, nil); !errors.Is(err, ErrNoHousingCost) {
		t.Fatalf("expected ErrNoHousingCost, got %v", err)
	}
	if _, err := ComputeAffordability(nil, ptr(1000), 0, nil); err == nil {
		t.Fatalf("expected error for zero households")
	}
}
