// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/yuumi-shop/yuumi/spatial"
)

// ReconcileReport summarizes a batch geocoding pass.
type ReconcileReport struct {
	Processed int
	Resolved  int
	Failed    int
	Skipped   int
}

// ReconcileCoordinates geocodes every store that has a maps address but no
// point yet. Requests are paced one second apart to stay within the
// Nominatim usage policy; per-store failures are logged and skipped so one
// bad address never aborts the pass.
func ReconcileCoordinates(ctx context.Context, stores StoreRepository,
	geocoder Geocoder, timeout time.Duration) (*ReconcileReport, error) {
	pending, err := stores.ListStoresMissingCoordinates()
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.Default(int64(len(pending)), "geocoding")
	}

	for i, store := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if i > 0 {
			time.Sleep(time.Second)
		}

		report.Processed++

		geocodeCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := geocoder.Geocode(geocodeCtx, store.MapsAddress)

		cancel()

		if err != nil {
			report.Failed++

			log.Printf("store %d (%s): geocoding failed: %v", store.ID, store.Slug, err)

			stepBar(bar)

			continue
		}

		point := spatial.Point{Lat: result.Latitude, Lng: result.Longitude}
		if !PointWithinFrance(point) {
			report.Skipped++

			log.Printf("store %d (%s): resolved outside France, skipping", store.ID, store.Slug)

			stepBar(bar)

			continue
		}

		store.Point = &point

		if err := stores.SaveStore(store); err != nil {
			report.Failed++

			log.Printf("store %d (%s): saving coordinates failed: %v", store.ID, store.Slug, err)

			stepBar(bar)

			continue
		}

		report.Resolved++

		stepBar(bar)
	}

	return report, nil
}

func stepBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}
