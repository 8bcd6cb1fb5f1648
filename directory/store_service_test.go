// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuumi-shop/yuumi/spatial"
)

type stubGeocoder struct {
	calls   int
	result  *GeocodingResult
	err     error
	queries []string
}

func (g *stubGeocoder) Geocode(_ context.Context, address string) (*GeocodingResult, error) {
	g.calls++
	g.queries = append(g.queries, address)

	if g.err != nil {
		return nil, g.err
	}

	return g.result, nil
}

func TestSaveGeocodesOnce(t *testing.T) {
	db, repos := setupTestDB(t)
	defer db.Close()

	geocoder := &stubGeocoder{result: &GeocodingResult{
		Latitude:  45.7589,
		Longitude: 4.8414,
		Provider:  "nominatim",
	}}

	service := NewStoreService(repos.stores, geocoder)

	store := testStore("Boulangerie du Parc", "Lyon", "Rhône", "")
	store.MapsAddress = "12 rue de la République, Lyon"

	require.NoError(t, service.Save(context.Background(), store))
	assert.Equal(t, 1, geocoder.calls)
	require.NotNil(t, store.Point)
	assert.InDelta(t, 45.7589, store.Point.Lat, 1e-6)
	assert.Equal(t, "boulangerie-du-parc", store.Slug)

	// Saving again with coordinates already present skips the provider.
	require.NoError(t, service.Save(context.Background(), store))
	assert.Equal(t, 1, geocoder.calls)
}

func TestSaveSwallowsGeocodingFailure(t *testing.T) {
	db, repos := setupTestDB(t)
	defer db.Close()

	geocoder := &stubGeocoder{err: &GeocodingError{
		Type: GeocodingErrorNoMatch, Message: "no results"}}
	service := NewStoreService(repos.stores, geocoder)

	store := testStore("Chez Margot", "Villeurbanne", "Rhône", "")
	store.MapsAddress = "adresse introuvable"

	require.NoError(t, service.Save(context.Background(), store))
	assert.Equal(t, 1, geocoder.calls)
	assert.Nil(t, store.Point)
	assert.NotZero(t, store.ID, "the save goes through regardless")

	// Each save retries at most once.
	require.NoError(t, service.Save(context.Background(), store))
	assert.Equal(t, 2, geocoder.calls)
}

func TestSaveDiscardsCoordinatesOutsideFrance(t *testing.T) {
	db, repos := setupTestDB(t)
	defer db.Close()

	geocoder := &stubGeocoder{result: &GeocodingResult{
		Latitude: 40.7128, Longitude: -74.006}} // New York
	service := NewStoreService(repos.stores, geocoder)

	store := testStore("A", "Lyon", "Rhône", "")
	store.MapsAddress = "quelque part"

	require.NoError(t, service.Save(context.Background(), store))
	assert.Nil(t, store.Point)
}

func TestSaveSkipsGeocodingWithoutAddress(t *testing.T) {
	db, repos := setupTestDB(t)
	defer db.Close()

	geocoder := &stubGeocoder{}
	service := NewStoreService(repos.stores, geocoder)

	store := testStore("A", "Lyon", "Rhône", "")
	require.NoError(t, service.Save(context.Background(), store))
	assert.Zero(t, geocoder.calls)
}

func TestSaveWithoutGeocoder(t *testing.T) {
	db, repos := setupTestDB(t)
	defer db.Close()

	service := NewStoreService(repos.stores, nil)

	store := testStore("A", "Lyon", "Rhône", "")
	store.MapsAddress = "12 rue de la République, Lyon"

	require.NoError(t, service.Save(context.Background(), store))
	assert.Nil(t, store.Point)
}

func TestSaveDerivesUniqueSlug(t *testing.T) {
	db, repos := setupTestDB(t)
	defer db.Close()

	service := NewStoreService(repos.stores, nil)

	first := testStore("Chez Margot", "Villeurbanne", "Rhône", "")
	require.NoError(t, service.Save(context.Background(), first))
	assert.Equal(t, "chez-margot", first.Slug)

	second := testStore("Chez Margot", "Lyon", "Rhône", "")
	require.NoError(t, service.Save(context.Background(), second))
	assert.Equal(t, "chez-margot-2", second.Slug)

	third := testStore("Chez Margot", "Paris", "Paris", "")
	require.NoError(t, service.Save(context.Background(), third))
	assert.Equal(t, "chez-margot-3", third.Slug)
}

func TestSaveKeepsExplicitSlug(t *testing.T) {
	db, repos := setupTestDB(t)
	defer db.Close()

	service := NewStoreService(repos.stores, nil)

	store := testStore("Chez Margot", "Villeurbanne", "Rhône", "mon-slug")
	require.NoError(t, service.Save(context.Background(), store))
	assert.Equal(t, "mon-slug", store.Slug)
}

func TestSaveValidates(t *testing.T) {
	db, repos := setupTestDB(t)
	defer db.Close()

	service := NewStoreService(repos.stores, nil)

	store := testStore("", "Lyon", "Rhône", "")

	var validation *ValidationError

	require.ErrorAs(t, service.Save(context.Background(), store), &validation)
	assert.Equal(t, "name", validation.Field)
	assert.Zero(t, store.ID)
}

func TestValidateStore(t *testing.T) {
	valid := func() *Store {
		return testStore("A", "Lyon", "Rhône", "a")
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateStore(valid()))
	})

	t.Run("missing city", func(t *testing.T) {
		store := valid()
		store.City = "  "
		assert.Error(t, ValidateStore(store))
	})

	t.Run("point outside france", func(t *testing.T) {
		store := valid()
		store.Point = &spatial.Point{Lat: -34.9, Lng: -56.2}
		assert.Error(t, ValidateStore(store))
	})

	t.Run("point inside france", func(t *testing.T) {
		store := valid()
		store.Point = &spatial.Point{Lat: 48.8566, Lng: 2.3522}
		assert.NoError(t, ValidateStore(store))
	})

	t.Run("bad website scheme", func(t *testing.T) {
		store := valid()
		store.Website = "ftp://example.com"
		assert.Error(t, ValidateStore(store))
	})
}
