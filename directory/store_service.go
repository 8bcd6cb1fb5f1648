// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yuumi-shop/yuumi/spatial"
	"github.com/yuumi-shop/yuumi/utils/textutils"
)

// DefaultGeocodeTimeout bounds the single geocoding attempt a save makes.
const DefaultGeocodeTimeout = 10 * time.Second

// StoreService saves listings: it validates, derives a unique slug, and
// resolves coordinates from the maps address. Geocoding is best effort and
// happens at most once per save; a failure never blocks the save.
type StoreService struct {
	stores   StoreRepository
	geocoder Geocoder

	geocodeTimeout time.Duration
}

// NewStoreService creates a saving service. The geocoder may be nil, in
// which case saves skip coordinate resolution entirely.
func NewStoreService(stores StoreRepository, geocoder Geocoder) *StoreService {
	return &StoreService{
		stores:         stores,
		geocoder:       geocoder,
		geocodeTimeout: DefaultGeocodeTimeout,
	}
}

// Save validates and persists the store, assigning the ID on insert.
func (s *StoreService) Save(ctx context.Context, store *Store) error {
	if err := ValidateStore(store); err != nil {
		return err
	}

	if store.Slug == "" {
		slug, err := s.uniqueSlug(textutils.Slugify(store.Name), store.ID)
		if err != nil {
			return err
		}

		store.Slug = slug
	}

	s.geocodeOnce(ctx, store)

	return s.stores.SaveStore(store)
}

// geocodeOnce resolves coordinates when a maps address is set and the store
// has none yet. Failures are logged and swallowed so a provider outage
// never blocks a save; the batch pass picks the store up later.
func (s *StoreService) geocodeOnce(ctx context.Context, store *Store) {
	if s.geocoder == nil || store.Point != nil || store.MapsAddress == "" {
		return
	}

	geocodeCtx, cancel := context.WithTimeout(ctx, s.geocodeTimeout)
	defer cancel()

	result, err := s.geocoder.Geocode(geocodeCtx, store.MapsAddress)
	if err != nil {
		log.Printf("geocoding %q failed: %v", store.MapsAddress, err)

		return
	}

	point := spatial.Point{Lat: result.Latitude, Lng: result.Longitude}
	if !PointWithinFrance(point) {
		log.Printf("geocoding %q resolved outside France (%s), discarding",
			store.MapsAddress, point.String())

		return
	}

	store.Point = &point
}

// uniqueSlug disambiguates with a numeric suffix when the base slug is
// already taken by another store.
func (s *StoreService) uniqueSlug(base string, excludeID int64) (string, error) {
	if base == "" {
		base = "commerce"
	}

	slug := base

	for i := 2; ; i++ {
		taken, err := s.stores.SlugExists(slug, excludeID)
		if err != nil {
			return "", err
		}

		if !taken {
			return slug, nil
		}

		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
