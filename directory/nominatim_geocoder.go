// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const nominatimEndpoint = "https://nominatim.openstreetmap.org/search"

// NominatimGeocoder uses the OpenStreetMap Nominatim API. It is the default
// provider; usage policy requires an identifying User-Agent and at most one
// request per second, which the batch pass honors.
type NominatimGeocoder struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

// NewNominatimGeocoder creates a Nominatim geocoder with an explicit
// request timeout.
func NewNominatimGeocoder() *NominatimGeocoder {
	return &NominatimGeocoder{
		endpoint:  nominatimEndpoint,
		userAgent: "yuumi_geocoder",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("countrycodes", "fr")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &GeocodingError{Type: GeocodingErrorInvalidRequest, Message: "building request", Err: err}
	}

	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &GeocodingError{Type: GeocodingErrorTimeout, Message: "geocoding request timed out", Err: err}
		}

		return nil, &GeocodingError{Type: GeocodingErrorNetwork, Message: "geocoding request failed", Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyGeocodingHTTPError(resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &GeocodingError{Type: GeocodingErrorUnknown, Message: "decoding response", Err: err}
	}

	if len(results) == 0 {
		return nil, &GeocodingError{
			Type:    GeocodingErrorNoMatch,
			Message: fmt.Sprintf("no results for address: %s", address),
		}
	}

	first := results[0]

	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return nil, &GeocodingError{Type: GeocodingErrorUnknown, Message: "parsing latitude", Err: err}
	}

	lon, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return nil, &GeocodingError{Type: GeocodingErrorUnknown, Message: "parsing longitude", Err: err}
	}

	// Nominatim gives no location_type; treat house-level results as high
	// confidence and everything else as medium.
	confidence := "medium"
	if first.Type == "house" || first.Type == "building" {
		confidence = "high"
	}

	return &GeocodingResult{
		Latitude:    lat,
		Longitude:   lon,
		Confidence:  confidence,
		Provider:    "nominatim",
		DisplayName: first.DisplayName,
	}, nil
}
