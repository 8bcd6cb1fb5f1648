// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/yuumi-shop/yuumi/directory"
)

// repositories bundles every repository over one database connection.
type repositories struct {
	db *sql.DB

	stores     directory.StoreRepository
	categories directory.CategoryRepository
	products   directory.ProductRepository
	hours      directory.HourRepository
	images     directory.ImageRepository
	users      directory.UserRepository
}

func (r *repositories) Close() error {
	return r.db.Close()
}

// openRepositories opens the database under dbPath and ensures the schema
// exists.
func openRepositories() (*repositories, error) {
	if err := os.MkdirAll(dbPath, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(dbPath, "yuumi.duckdb"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	repos := &repositories{
		db:         db,
		stores:     directory.NewStoreRepository(db),
		categories: directory.NewCategoryRepository(db),
		products:   directory.NewProductRepository(db),
		hours:      directory.NewHourRepository(db),
		images:     directory.NewImageRepository(db),
		users:      directory.NewUserRepository(db),
	}

	for _, create := range []func() error{
		repos.stores.CreateSchema,
		repos.categories.CreateSchema,
		repos.products.CreateSchema,
		repos.hours.CreateSchema,
		repos.images.CreateSchema,
		repos.users.CreateSchema,
	} {
		if err := create(); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return repos, nil
}

// newGeocoder picks the provider from YUUMI_GEOCODER; Nominatim by default.
func newGeocoder(ctx context.Context) (directory.Geocoder, error) {
	if os.Getenv("YUUMI_GEOCODER") == "google" {
		return directory.NewGoogleMapsGeocoderFromEnv(ctx)
	}

	return directory.NewNominatimGeocoder(), nil
}
