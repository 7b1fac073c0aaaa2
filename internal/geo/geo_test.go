package geo

import (
	"testing"

	"github.com/example/freight-booking/internal/models"
)

func TestHaversineZero(t *testing.T) {
	if d := HaversineKm(0, 0, 0, 0); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Hanoi center to Noi Bai airport, roughly 21 km as the crow flies.
	d := HaversineKm(21.0278, 105.8342, 21.2187, 105.8047)
	if d < 20 || d < 0 {
		t.Fatalf("implausible distance %f", d)
	}
	if d > 23 {
		t.Fatalf("implausible distance %f", d)
	}
}

func TestRound1(t *testing.T) {
	cases := map[float64]float64{
		10.04:  10.0,
		10.05:  10.1,
		0.0:    0.0,
		123.46: 123.5,
	}
	for in, want := range cases {
		if got := Round1(in); got != want {
			t.Fatalf("Round1(%v)=%v, want %v", in, got, want)
		}
	}
}

func TestIndexNearbyOrdersByDistance(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.Driver{ID: "far", Loc: models.Coord{Lat: 1, Lng: 1}, Online: true})
	idx.Upsert(models.Driver{ID: "near", Loc: models.Coord{Lat: 0.01, Lng: 0.01}, Online: true})
	idx.Upsert(models.Driver{ID: "offline", Loc: models.Coord{Lat: 0, Lng: 0}, Online: false})

	got := idx.Nearby(0, 0, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(got))
	}
	if got[0].ID != "near" {
		t.Fatalf("expected nearest first, got %s", got[0].ID)
	}
	for _, d := range got {
		if d.ID == "offline" {
			t.Fatal("offline driver must be excluded")
		}
	}
}

func TestIndexRemove(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.Driver{ID: "d1", Online: true})
	idx.Remove("d1")
	if got := idx.Nearby(0, 0, 5); len(got) != 0 {
		t.Fatalf("expected empty index, got %d", len(got))
	}
}
