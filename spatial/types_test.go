// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"math"
	"testing"
)

func TestPointString(t *testing.T) {
	p := Point{Lat: 45.7589, Lng: 4.8414}

	want := "POINT(4.841400 45.758900)"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPointScan(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		wantLat float64
		wantLng float64
	}{
		{"string", "POINT (4.8414 45.7589)", 45.7589, 4.8414},
		{"bytes", []byte("POINT (2.3522 48.8566)"), 48.8566, 2.3522},
		{"map", map[string]interface{}{"x": 4.8414, "y": 45.7589}, 45.7589, 4.8414},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Point
			if err := p.Scan(tt.value); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}

			if p.Lat != tt.wantLat || p.Lng != tt.wantLng {
				t.Errorf("Scan() = (%f, %f), want (%f, %f)", p.Lat, p.Lng, tt.wantLat, tt.wantLng)
			}
		})
	}
}

func TestPointScanUnsupported(t *testing.T) {
	var p Point
	if err := p.Scan(42); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestHaversineDistance(t *testing.T) {
	lyon := &Point{Lat: 45.7640, Lng: 4.8357}
	paris := &Point{Lat: 48.8566, Lng: 2.3522}

	// Lyon to Paris is roughly 392 km as the crow flies.
	got := lyon.HaversineDistance(paris)
	if math.Abs(got-392000) > 5000 {
		t.Errorf("HaversineDistance() = %f, want about 392000", got)
	}

	if d := lyon.HaversineDistance(lyon); d != 0 {
		t.Errorf("distance to self = %f, want 0", d)
	}
}
