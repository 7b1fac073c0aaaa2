package distance

import (
	"context"
	"log/slog"

	"github.com/example/freight-booking/internal/geo"
	"github.com/example/freight-booking/internal/models"
)

// Router is the road-routing lookup the resolver tries first.
type Router interface {
	RouteKm(ctx context.Context, from, to models.Coord) (float64, error)
}

// Resolver turns a pickup/dropoff coordinate pair into a distance in km,
// rounded to 1 decimal place. Routing failures fall back silently to the
// great-circle distance; a missing coordinate yields 0.
type Resolver struct {
	Router Router // optional; nil means Haversine only
	Logger *slog.Logger
}

func (r *Resolver) ResolveKm(ctx context.Context, pickup, dropoff models.Coord) float64 {
	if pickup.Zero() || dropoff.Zero() {
		return 0
	}
	if r.Router != nil {
		if km, err := r.Router.RouteKm(ctx, pickup, dropoff); err == nil && km > 0 {
			return geo.Round1(km)
		} else if err != nil && r.Logger != nil {
			r.Logger.Debug("routing failed, using haversine", "error", err)
		}
	}
	return FallbackKm(pickup, dropoff)
}

// FallbackKm is the deterministic Haversine distance, rounded to 1 decimal.
// Used directly by the order flow when the async resolver has not produced
// a value yet.
func FallbackKm(pickup, dropoff models.Coord) float64 {
	if pickup.Zero() || dropoff.Zero() {
		return 0
	}
	return geo.Round1(geo.HaversineKm(pickup.Lat, pickup.Lng, dropoff.Lat, dropoff.Lng))
}
