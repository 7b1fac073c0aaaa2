package pricing

import "github.com/example/freight-booking/internal/models"

// Per-km rates by cargo weight tier, in VND. Tiers are inclusive on the
// upper bound, expressed in tonnes.
const (
	RateUpTo1T  = 40000
	RateUpTo3T  = 60000
	RateUpTo5T  = 80000
	RateUpTo10T = 100000
	RateOver10T = 150000

	LoadingFee   = 50000
	InsuranceFee = 100000
)

// RatePerKm selects the per-km rate for a cargo weight in kg.
func RatePerKm(weightKg float64) float64 {
	ton := weightKg / 1000
	switch {
	case ton <= 1:
		return RateUpTo1T
	case ton <= 3:
		return RateUpTo3T
	case ton <= 5:
		return RateUpTo5T
	case ton <= 10:
		return RateUpTo10T
	default:
		return RateOver10T
	}
}

// ComputeBreakdown maps quote inputs to a cost breakdown. It is pure and
// deterministic; it runs on every input change, so it must stay cheap.
// Non-positive weight or distance means "not yet computable" and yields a
// zero breakdown rather than an error.
func ComputeBreakdown(weightKg, distanceKm float64, loadingService, insurance bool) models.PriceBreakdown {
	if weightKg <= 0 || distanceKm <= 0 {
		return models.PriceBreakdown{}
	}
	b := models.PriceBreakdown{
		RatePerKm: RatePerKm(weightKg),
	}
	b.DistanceCost = b.RatePerKm * distanceKm
	if loadingService {
		b.LoadingFee = LoadingFee
	}
	if insurance {
		b.InsuranceFee = InsuranceFee
	}
	b.Total = b.DistanceCost + b.LoadingFee + b.InsuranceFee
	return b
}
