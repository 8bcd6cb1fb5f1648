// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"strings"

	"github.com/yuumi-shop/yuumi/spatial"
)

// Metropolitan France bounding box, used as a sanity check on resolved
// coordinates.
const (
	franceMinLat = 41.0
	franceMaxLat = 51.5
	franceMinLng = -5.5
	franceMaxLng = 10.0
)

// PointWithinFrance reports whether the point falls inside the metropolitan
// bounding box.
func PointWithinFrance(p spatial.Point) bool {
	return p.Lat >= franceMinLat && p.Lat <= franceMaxLat &&
		p.Lng >= franceMinLng && p.Lng <= franceMaxLng
}

// ValidateStore checks the fields a submitter controls. It returns the
// first problem as a ValidationError.
func ValidateStore(store *Store) error {
	if strings.TrimSpace(store.Name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}

	if strings.TrimSpace(store.City) == "" {
		return &ValidationError{Field: "city", Message: "must not be empty"}
	}

	if strings.TrimSpace(store.Department) == "" {
		return &ValidationError{Field: "department", Message: "must not be empty"}
	}

	if store.Point != nil && !PointWithinFrance(*store.Point) {
		return &ValidationError{Field: "point", Message: "coordinates outside France"}
	}

	if store.Website != "" && !strings.HasPrefix(store.Website, "http://") &&
		!strings.HasPrefix(store.Website, "https://") {
		return &ValidationError{Field: "website", Message: "must be an http(s) URL"}
	}

	return nil
}
