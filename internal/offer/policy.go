package offer

import "github.com/example/freight-booking/internal/models"

// AcceptPolicy decides for the headless agent whether an offer is worth
// taking. Offers it declines are simply left to the auto-reject window, the
// same as a driver who never taps the popup.
type AcceptPolicy struct {
	MaxPickupKm float64 // 0 means any distance
	MinPrice    float64 // 0 means any price
}

func (p AcceptPolicy) Decide(o models.OfferNew) bool {
	if p.MaxPickupKm > 0 && o.DistanceFromKm > p.MaxPickupKm {
		return false
	}
	if p.MinPrice > 0 && o.TotalPrice < p.MinPrice {
		return false
	}
	return true
}
