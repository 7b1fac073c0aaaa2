package offer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/freight-booking/internal/models"
)

func TestAcceptPolicy(t *testing.T) {
	cases := []struct {
		name   string
		policy AcceptPolicy
		offer  models.OfferNew
		want   bool
	}{
		{"unrestricted takes anything", AcceptPolicy{}, models.OfferNew{DistanceFromKm: 40, TotalPrice: 1}, true},
		{"within pickup range", AcceptPolicy{MaxPickupKm: 10}, models.OfferNew{DistanceFromKm: 9.9}, true},
		{"too far to pick up", AcceptPolicy{MaxPickupKm: 10}, models.OfferNew{DistanceFromKm: 10.1}, false},
		{"pays enough", AcceptPolicy{MinPrice: 500000}, models.OfferNew{TotalPrice: 500000}, true},
		{"pays too little", AcceptPolicy{MinPrice: 500000}, models.OfferNew{TotalPrice: 499999}, false},
		{"both constraints", AcceptPolicy{MaxPickupKm: 10, MinPrice: 500000}, models.OfferNew{DistanceFromKm: 5, TotalPrice: 400000}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.policy.Decide(c.offer))
		})
	}
}
