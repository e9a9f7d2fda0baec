package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineKmSamePoint(t *testing.T) {
	if d := HaversineKm(12.97, 77.59, 12.97, 77.59); d != 0 {
		t.Fatalf("expected zero distance, got %v", d)
	}
}

func TestInterpolate(t *testing.T) {
	lat, lng := Interpolate(0, 0, 10, 20, 0.5)
	if lat != 5 || lng != 10 {
		t.Fatalf("unexpected midpoint: %v,%v", lat, lng)
	}
	lat, lng = Interpolate(0, 0, 10, 20, 2)
	if lat != 10 || lng != 20 {
		t.Fatalf("expected clamp to end")
	}
	lat, lng = Interpolate(1, 2, 10, 20, -1)
	if lat != 1 || lng != 2 {
		t.Fatalf("expected clamp to start")
	}
}

func TestValidCoordinate(t *testing.T) {
	cases := []struct {
		lat, lng float64
		ok       bool
	}{
		{12.97, 77.59, true},
		{91, 0, false},
		{0, -181, false},
		{math.NaN(), 0, false},
		{0, math.Inf(1), false},
	}
	for _, c := range cases {
		if got := ValidCoordinate(c.lat, c.lng); got != c.ok {
			t.Fatalf("ValidCoordinate(%v,%v)=%v want %v", c.lat, c.lng, got, c.ok)
		}
	}
}
