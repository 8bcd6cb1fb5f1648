// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"database/sql"
	"errors"

	"github.com/yuumi-shop/yuumi/utils/textutils"
)

// CategoryRepository handles the shared category reference data and the
// optional per-city curation lists.
type CategoryRepository interface {
	// CreateSchema creates the categories and city-highlight tables
	CreateSchema() error

	// SaveCategory inserts or updates a category; the slug is derived from
	// the name when empty and is unique
	SaveCategory(category *Category) error

	// ListCategories returns every category, ordered by name
	ListCategories() ([]Category, error)

	// GetCategoryByID returns the category or ErrNotFound
	GetCategoryByID(id int64) (*Category, error)

	// GetCategoryBySlug returns the category or ErrNotFound
	GetCategoryBySlug(slug string) (*Category, error)

	// SetCityHighlight replaces the curated category list for a city
	SetCityHighlight(department, city string, categoryIDs []int64) error

	// CityHighlightCategoryIDs returns the curated list for a city, in
	// curation order; empty when the city has no curation
	CityHighlightCategoryIDs(department, city string) ([]int64, error)
}

type sqlCategoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a category repository over the connection.
func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &sqlCategoryRepository{db: db}
}

func (r *sqlCategoryRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS categories_seq START 1;

		CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY DEFAULT nextval('categories_seq'),
			name VARCHAR NOT NULL,
			slug VARCHAR NOT NULL UNIQUE,
			icon VARCHAR NOT NULL DEFAULT '',
			super_category VARCHAR NOT NULL DEFAULT 'autres'
		);

		CREATE SEQUENCE IF NOT EXISTS city_highlights_seq START 1;

		CREATE TABLE IF NOT EXISTS city_category_highlights (
			id INTEGER PRIMARY KEY DEFAULT nextval('city_highlights_seq'),
			department VARCHAR NOT NULL,
			city VARCHAR NOT NULL,
			UNIQUE(department, city)
		);

		CREATE TABLE IF NOT EXISTS city_category_items (
			highlight_id INTEGER NOT NULL,
			category_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			UNIQUE(highlight_id, category_id)
		);
	`)

	return err
}

func (r *sqlCategoryRepository) SaveCategory(category *Category) error {
	if category.Slug == "" {
		category.Slug = textutils.Slugify(category.Name)
	}

	if category.SuperCategory == "" {
		category.SuperCategory = "autres"
	}

	if category.ID == 0 {
		return r.db.QueryRow(`
			INSERT INTO categories(name, slug, icon, super_category)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`, category.Name, category.Slug, category.Icon, category.SuperCategory).Scan(&category.ID)
	}

	_, err := r.db.Exec(`
		UPDATE categories SET name = ?, slug = ?, icon = ?, super_category = ?
		WHERE id = ?
	`, category.Name, category.Slug, category.Icon, category.SuperCategory, category.ID)

	return err
}

const categorySelect = `SELECT id, name, slug, icon, super_category FROM categories`

func (r *sqlCategoryRepository) ListCategories() ([]Category, error) {
	rows, err := r.db.Query(categorySelect + ` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category

	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.SuperCategory); err != nil {
			return nil, err
		}

		categories = append(categories, c)
	}

	return categories, rows.Err()
}

func (r *sqlCategoryRepository) one(query string, args ...any) (*Category, error) {
	var c Category

	err := r.db.QueryRow(query, args...).Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.SuperCategory)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *sqlCategoryRepository) GetCategoryByID(id int64) (*Category, error) {
	return r.one(categorySelect+` WHERE id = ?`, id)
}

func (r *sqlCategoryRepository) GetCategoryBySlug(slug string) (*Category, error) {
	return r.one(categorySelect+` WHERE slug = ?`, slug)
}

func (r *sqlCategoryRepository) SetCityHighlight(department, city string, categoryIDs []int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	var highlightID int64

	err = tx.QueryRow(`
		SELECT id FROM city_category_highlights
		WHERE lower(department) = lower(?) AND lower(city) = lower(?)`,
		department, city).Scan(&highlightID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = tx.QueryRow(`
			INSERT INTO city_category_highlights(department, city)
			VALUES (?, ?) RETURNING id`,
			department, city).Scan(&highlightID)
		if err != nil {
			_ = tx.Rollback()

			return err
		}
	case err != nil:
		_ = tx.Rollback()

		return err
	}

	if _, err := tx.Exec(`DELETE FROM city_category_items WHERE highlight_id = ?`, highlightID); err != nil {
		_ = tx.Rollback()

		return err
	}

	for i, id := range categoryIDs {
		if _, err := tx.Exec(`
			INSERT INTO city_category_items(highlight_id, category_id, position)
			VALUES (?, ?, ?)`, highlightID, id, i); err != nil {
			_ = tx.Rollback()

			return err
		}
	}

	return tx.Commit()
}

func (r *sqlCategoryRepository) CityHighlightCategoryIDs(department, city string) ([]int64, error) {
	rows, err := r.db.Query(`
		SELECT i.category_id
		FROM city_category_items i
		JOIN city_category_highlights h ON h.id = i.highlight_id
		WHERE lower(h.department) = lower(?) AND lower(h.city) = lower(?)
		ORDER BY i.position`,
		department, city)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}
