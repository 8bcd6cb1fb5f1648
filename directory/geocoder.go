// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import "context"

// GeocodingResult represents a geocoding result from any provider.
type GeocodingResult struct {
	Latitude    float64
	Longitude   float64
	Confidence  string // high, medium, low
	Provider    string
	DisplayName string
}

// Geocoder resolves a free-text address to coordinates. Best effort:
// implementations return a typed GeocodingError on failure and must respect
// the context deadline. Callers invoke it at most once per save attempt.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
}
