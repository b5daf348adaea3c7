package geo

import "testing"

func TestHaversineKm(t *testing.T) {
	// Kyiv (50.4501, 30.5234) to Lviv (49.8397, 24.0297) ~ 465-475 km
	d := HaversineKm(50.4501, 30.5234, 49.8397, 24.0297)
	if d < 440 || d > 500 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestDistanceMZero(t *testing.T) {
	if d := DistanceM(50.45, 30.52, 50.45, 30.52); d != 0 {
		t.Fatalf("expected zero distance, got %v", d)
	}
}

func TestDistanceMSymmetric(t *testing.T) {
	a := DistanceM(50.4501, 30.5234, 50.4511, 30.5244)
	b := DistanceM(50.4511, 30.5244, 50.4501, 30.5234)
	if a <= 0 {
		t.Fatalf("expected positive distance, got %v", a)
	}
	if diff := a - b; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected symmetric distance: %v vs %v", a, b)
	}
}
