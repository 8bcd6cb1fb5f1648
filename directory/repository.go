// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yuumi-shop/yuumi/spatial"
)

// LocationFilter narrows store queries by department and optionally city.
// Matching is case-insensitive equality, like the site's URLs.
type LocationFilter struct {
	Department string
	City       string
}

// DepartmentCity is one distinct (department, city) pair observed among
// stores.
type DepartmentCity struct {
	Department string
	City       string
}

// StoreRepository handles persistence of business listings.
type StoreRepository interface {
	// CreateSchema creates the stores table
	CreateSchema() error

	// SaveStore inserts the store when ID is zero, updates it otherwise.
	// UpdatedAt is refreshed; the ID is assigned back on insert.
	SaveStore(store *Store) error

	// GetStoreByID returns the store or ErrNotFound
	GetStoreByID(id int64) (*Store, error)

	// GetStoreBySlug resolves a listing URL (department/city/slug)
	GetStoreBySlug(department, city, slug string) (*Store, error)

	// GetStoreByOwner returns the listing owned by the user, or ErrNotFound
	GetStoreByOwner(ownerID int64) (*Store, error)

	// ListStores returns stores matching the filter, oldest first
	ListStores(filter LocationFilter) ([]*Store, error)

	// ListRecentStores returns the most recently created matching stores
	ListRecentStores(filter LocationFilter, limit int) ([]*Store, error)

	// ListStoresMissingCoordinates returns stores with a maps address but
	// no resolved point, for the batch reconciliation pass
	ListStoresMissingCoordinates() ([]*Store, error)

	// DistinctDepartments returns every department that has stores
	DistinctDepartments() ([]string, error)

	// DistinctCities returns the cities with stores, optionally within a department
	DistinctCities(department string) ([]string, error)

	// DistinctLocations returns every (department, city) pair with stores
	DistinctLocations() ([]DepartmentCity, error)

	// SlugExists reports whether another store already uses the slug
	SlugExists(slug string, excludeID int64) (bool, error)

	// BeginClaim conditionally stamps last_claim_request = now, but only
	// while the store is unowned and no claim landed after cutoff. Returns
	// false when a concurrent claim or an owner got there first.
	BeginClaim(storeID int64, now, cutoff time.Time) (bool, error)

	// SetOwner records the owner, only if the store has none yet
	SetOwner(storeID, ownerID int64) error

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlStoreRepository struct {
	db *sql.DB
}

// NewStoreRepository creates a store repository over the given connection.
func NewStoreRepository(db *sql.DB) StoreRepository {
	return &sqlStoreRepository{db: db}
}

func (r *sqlStoreRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlStoreRepository) CreateSchema() error {
	// DuckDB needs the spatial extension for POINT_2D
	_, err := r.db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS stores_seq START 1;

		CREATE TABLE IF NOT EXISTS stores (
			id INTEGER PRIMARY KEY DEFAULT nextval('stores_seq'),
			name VARCHAR NOT NULL,
			city VARCHAR NOT NULL,
			department VARCHAR NOT NULL,
			category_id INTEGER,
			short_description VARCHAR NOT NULL DEFAULT '',
			long_description VARCHAR NOT NULL DEFAULT '',
			maps_address VARCHAR NOT NULL DEFAULT '',
			directions_address VARCHAR NOT NULL DEFAULT '',
			website VARCHAR NOT NULL DEFAULT '',
			phone VARCHAR NOT NULL DEFAULT '',
			instagram VARCHAR NOT NULL DEFAULT '',
			facebook VARCHAR NOT NULL DEFAULT '',
			photo VARCHAR NOT NULL DEFAULT '',
			gallery_title VARCHAR NOT NULL DEFAULT '',
			gallery_description VARCHAR NOT NULL DEFAULT '',
			gallery_image VARCHAR NOT NULL DEFAULT '',
			slug VARCHAR NOT NULL UNIQUE,
			point POINT_2D,
			h3_res5 UBIGINT,
			h3_res8 UBIGINT,
			owner_id INTEGER UNIQUE,
			last_claim_request TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)

	return err
}

func (r *sqlStoreRepository) SaveStore(store *Store) error {
	if store.Slug == "" {
		return &ValidationError{Field: "slug", Message: "must not be empty"}
	}

	if err := store.computeH3(); err != nil {
		return err
	}

	hasPoint := store.Point != nil

	var lat, lng float64

	if hasPoint {
		lat = store.Point.Lat
		lng = store.Point.Lng
	}

	store.UpdatedAt = time.Now()

	if store.ID == 0 {
		store.CreatedAt = store.UpdatedAt

		return r.db.QueryRow(`
			INSERT INTO stores(
				name, city, department, category_id,
				short_description, long_description,
				maps_address, directions_address, website, phone, instagram, facebook,
				photo, gallery_title, gallery_description, gallery_image,
				slug, point, h3_res5, h3_res8,
				owner_id, last_claim_request, created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
				CASE WHEN ? THEN ST_Point(?, ?) ELSE NULL END,
				?, ?, ?, ?, ?, ?)
			RETURNING id
		`,
			store.Name, store.City, store.Department, store.CategoryID,
			store.ShortDescription, store.LongDescription,
			store.MapsAddress, store.DirectionsAddress, store.Website,
			store.Phone, store.Instagram, store.Facebook,
			store.Photo, store.GalleryTitle, store.GalleryDescription, store.GalleryImage,
			store.Slug, hasPoint, lng, lat,
			nullableInt64(store.H3Res5), nullableInt64(store.H3Res8),
			store.OwnerID, store.LastClaimRequest, store.CreatedAt, store.UpdatedAt,
		).Scan(&store.ID)
	}

	_, err := r.db.Exec(`
		UPDATE stores
		SET name = ?, city = ?, department = ?, category_id = ?,
		    short_description = ?, long_description = ?,
		    maps_address = ?, directions_address = ?, website = ?,
		    phone = ?, instagram = ?, facebook = ?,
		    photo = ?, gallery_title = ?, gallery_description = ?, gallery_image = ?,
		    slug = ?,
		    point = CASE WHEN ? THEN ST_Point(?, ?) ELSE NULL END,
		    h3_res5 = ?, h3_res8 = ?,
		    owner_id = ?, last_claim_request = ?, updated_at = ?
		WHERE id = ?
	`,
		store.Name, store.City, store.Department, store.CategoryID,
		store.ShortDescription, store.LongDescription,
		store.MapsAddress, store.DirectionsAddress, store.Website,
		store.Phone, store.Instagram, store.Facebook,
		store.Photo, store.GalleryTitle, store.GalleryDescription, store.GalleryImage,
		store.Slug, hasPoint, lng, lat,
		nullableInt64(store.H3Res5), nullableInt64(store.H3Res8),
		store.OwnerID, store.LastClaimRequest, store.UpdatedAt,
		store.ID,
	)

	return err
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}

	return v
}

var storeSelect = `
	SELECT id, name, city, department, category_id,
	       short_description, long_description,
	       maps_address, directions_address, website, phone, instagram, facebook,
	       photo, gallery_title, gallery_description, gallery_image,
	       slug, point, h3_res5, h3_res8,
	       owner_id, last_claim_request, created_at, updated_at
	FROM stores
`

// nullPoint scans a nullable POINT_2D column.
type nullPoint struct {
	point spatial.Point
	valid bool
}

func (n *nullPoint) Scan(value any) error {
	if value == nil {
		n.valid = false

		return nil
	}

	n.valid = true

	return n.point.Scan(value)
}

func scanStore(scan func(dest ...any) error) (*Store, error) {
	store := &Store{}

	var (
		categoryID sql.NullInt64
		point      nullPoint
		h3Res5     sql.NullInt64
		h3Res8     sql.NullInt64
		ownerID    sql.NullInt64
		lastClaim  sql.NullTime
	)

	err := scan(
		&store.ID, &store.Name, &store.City, &store.Department, &categoryID,
		&store.ShortDescription, &store.LongDescription,
		&store.MapsAddress, &store.DirectionsAddress, &store.Website,
		&store.Phone, &store.Instagram, &store.Facebook,
		&store.Photo, &store.GalleryTitle, &store.GalleryDescription, &store.GalleryImage,
		&store.Slug, &point, &h3Res5, &h3Res8,
		&ownerID, &lastClaim, &store.CreatedAt, &store.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		store.CategoryID = &categoryID.Int64
	}

	if point.valid {
		p := point.point
		store.Point = &p
	}

	if h3Res5.Valid {
		store.H3Res5 = h3Res5.Int64
	}

	if h3Res8.Valid {
		store.H3Res8 = h3Res8.Int64
	}

	if ownerID.Valid {
		store.OwnerID = &ownerID.Int64
	}

	if lastClaim.Valid {
		store.LastClaimRequest = &lastClaim.Time
	}

	return store, nil
}

func (r *sqlStoreRepository) one(query string, args ...any) (*Store, error) {
	row := r.db.QueryRow(query, args...)

	store, err := scanStore(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return store, nil
}

func (r *sqlStoreRepository) list(query string, args ...any) ([]*Store, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []*Store

	for rows.Next() {
		store, err := scanStore(rows.Scan)
		if err != nil {
			return nil, err
		}

		stores = append(stores, store)
	}

	return stores, rows.Err()
}

func (r *sqlStoreRepository) GetStoreByID(id int64) (*Store, error) {
	return r.one(storeSelect+` WHERE id = ?`, id)
}

func (r *sqlStoreRepository) GetStoreBySlug(department, city, slug string) (*Store, error) {
	return r.one(storeSelect+`
		WHERE slug = ? AND lower(department) = lower(?) AND lower(city) = lower(?)`,
		slug, department, city)
}

func (r *sqlStoreRepository) GetStoreByOwner(ownerID int64) (*Store, error) {
	return r.one(storeSelect+` WHERE owner_id = ?`, ownerID)
}

func locationWhere(filter LocationFilter) (string, []any) {
	where := " WHERE 1=1"

	var args []any

	if filter.Department != "" {
		where += " AND lower(department) = lower(?)"

		args = append(args, filter.Department)
	}

	if filter.City != "" {
		where += " AND lower(city) = lower(?)"

		args = append(args, filter.City)
	}

	return where, args
}

func (r *sqlStoreRepository) ListStores(filter LocationFilter) ([]*Store, error) {
	where, args := locationWhere(filter)

	return r.list(storeSelect+where+` ORDER BY id`, args...)
}

func (r *sqlStoreRepository) ListRecentStores(filter LocationFilter, limit int) ([]*Store, error) {
	where, args := locationWhere(filter)
	args = append(args, limit)

	return r.list(storeSelect+where+` ORDER BY id DESC LIMIT ?`, args...)
}

func (r *sqlStoreRepository) ListStoresMissingCoordinates() ([]*Store, error) {
	return r.list(storeSelect + ` WHERE maps_address != '' AND point IS NULL ORDER BY id`)
}

func (r *sqlStoreRepository) DistinctDepartments() ([]string, error) {
	return r.strings(`SELECT DISTINCT department FROM stores ORDER BY department`)
}

func (r *sqlStoreRepository) DistinctCities(department string) ([]string, error) {
	if department == "" {
		return r.strings(`SELECT DISTINCT city FROM stores ORDER BY city`)
	}

	return r.strings(`
		SELECT DISTINCT city FROM stores
		WHERE lower(department) = lower(?) ORDER BY city`, department)
}

func (r *sqlStoreRepository) strings(query string, args ...any) ([]string, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}

		values = append(values, v)
	}

	return values, rows.Err()
}

func (r *sqlStoreRepository) DistinctLocations() ([]DepartmentCity, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT department, city FROM stores ORDER BY department, city`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []DepartmentCity

	for rows.Next() {
		var dc DepartmentCity
		if err := rows.Scan(&dc.Department, &dc.City); err != nil {
			return nil, err
		}

		pairs = append(pairs, dc)
	}

	return pairs, rows.Err()
}

func (r *sqlStoreRepository) SlugExists(slug string, excludeID int64) (bool, error) {
	var count int

	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM stores WHERE slug = ? AND id != ?`,
		slug, excludeID).Scan(&count)

	return count > 0, err
}

func (r *sqlStoreRepository) BeginClaim(storeID int64, now, cutoff time.Time) (bool, error) {
	// Single conditional update: at most one claim initiation lands per
	// cooldown window even when attempts race.
	res, err := r.db.Exec(`
		UPDATE stores
		SET last_claim_request = ?, updated_at = ?
		WHERE id = ?
		  AND owner_id IS NULL
		  AND (last_claim_request IS NULL OR last_claim_request <= ?)`,
		now, now, storeID, cutoff)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *sqlStoreRepository) SetOwner(storeID, ownerID int64) error {
	res, err := r.db.Exec(`
		UPDATE stores SET owner_id = ?, updated_at = ?
		WHERE id = ? AND owner_id IS NULL`,
		ownerID, time.Now(), storeID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return fmt.Errorf("store %d: %w", storeID, ErrAlreadyOwned)
	}

	return nil
}
