package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBreakdown_Deterministic(t *testing.T) {
	b := ComputeBreakdown(1000, 20, false, false)
	assert.Equal(t, float64(40000), b.RatePerKm)
	assert.Equal(t, float64(800000), b.DistanceCost)
	assert.Equal(t, float64(800000), b.Total)

	again := ComputeBreakdown(1000, 20, false, false)
	assert.Equal(t, b, again)
}

func TestComputeBreakdown_AddOnsAdditive(t *testing.T) {
	b := ComputeBreakdown(1000, 20, true, true)
	assert.Equal(t, float64(50000), b.LoadingFee)
	assert.Equal(t, float64(100000), b.InsuranceFee)
	assert.Equal(t, float64(950000), b.Total)
}

func TestComputeBreakdown_NotYetComputable(t *testing.T) {
	for _, tc := range []struct{ w, d float64 }{
		{0, 10},
		{500, 0},
		{-1, 10},
		{500, -2},
	} {
		b := ComputeBreakdown(tc.w, tc.d, true, true)
		assert.Zero(t, b, "weight=%v distance=%v", tc.w, tc.d)
	}
}

func TestRatePerKm_Tiers(t *testing.T) {
	cases := []struct {
		weightKg float64
		rate     float64
	}{
		{500, 40000},
		{900, 40000},
		{1000, 40000},
		{1100, 60000},
		{3000, 60000},
		{3001, 80000},
		{5000, 80000},
		{9999, 100000},
		{10000, 100000},
		{10001, 150000},
	}
	for _, c := range cases {
		assert.Equal(t, c.rate, RatePerKm(c.weightKg), "weightKg=%v", c.weightKg)
	}
}

// Crossing a tier boundary upward must never lower the rate or the total.
func TestPricingMonotonicAcrossTiers(t *testing.T) {
	const distance = 25.0
	prevRate, prevTotal := 0.0, 0.0
	for w := 100.0; w <= 12000; w += 100 {
		b := ComputeBreakdown(w, distance, false, false)
		assert.GreaterOrEqual(t, b.RatePerKm, prevRate, "weightKg=%v", w)
		assert.GreaterOrEqual(t, b.Total, prevTotal, "weightKg=%v", w)
		prevRate, prevTotal = b.RatePerKm, b.Total
	}
}
