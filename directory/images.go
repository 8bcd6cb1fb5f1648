// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"database/sql"
)

// StoreImage is one extra photo of a listing, beyond the main photo column.
// Images belong to exactly one store and disappear with it.
type StoreImage struct {
	ID       int64  `json:"id"`
	StoreID  int64  `json:"store_id"`
	Image    string `json:"image"`
	Position int    `json:"position"`
}

// ImageRepository handles the per-store photo galleries.
type ImageRepository interface {
	// CreateSchema creates the store_images table
	CreateSchema() error

	// SaveImage inserts or updates one image row
	SaveImage(image *StoreImage) error

	// ListImages returns a store's images in position order
	ListImages(storeID int64) ([]StoreImage, error)

	// DeleteImage removes one image row
	DeleteImage(id int64) error

	// DeleteImagesForStore removes every image of the store
	DeleteImagesForStore(storeID int64) error
}

type sqlImageRepository struct {
	db *sql.DB
}

// NewImageRepository creates an image repository over the connection.
func NewImageRepository(db *sql.DB) ImageRepository {
	return &sqlImageRepository{db: db}
}

func (r *sqlImageRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS store_images_seq START 1;

		CREATE TABLE IF NOT EXISTS store_images (
			id INTEGER PRIMARY KEY DEFAULT nextval('store_images_seq'),
			store_id INTEGER NOT NULL,
			image VARCHAR NOT NULL,
			position INTEGER NOT NULL DEFAULT 0
		);
	`)

	return err
}

func (r *sqlImageRepository) SaveImage(image *StoreImage) error {
	if image.Image == "" {
		return &ValidationError{Field: "image", Message: "must not be empty"}
	}

	if image.ID == 0 {
		return r.db.QueryRow(`
			INSERT INTO store_images(store_id, image, position)
			VALUES (?, ?, ?) RETURNING id`,
			image.StoreID, image.Image, image.Position).Scan(&image.ID)
	}

	_, err := r.db.Exec(`
		UPDATE store_images SET image = ?, position = ? WHERE id = ?`,
		image.Image, image.Position, image.ID)

	return err
}

func (r *sqlImageRepository) ListImages(storeID int64) ([]StoreImage, error) {
	rows, err := r.db.Query(`
		SELECT id, store_id, image, position FROM store_images
		WHERE store_id = ? ORDER BY position, id`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []StoreImage{}

	for rows.Next() {
		var img StoreImage
		if err := rows.Scan(&img.ID, &img.StoreID, &img.Image, &img.Position); err != nil {
			return nil, err
		}

		images = append(images, img)
	}

	return images, rows.Err()
}

func (r *sqlImageRepository) DeleteImage(id int64) error {
	_, err := r.db.Exec(`DELETE FROM store_images WHERE id = ?`, id)

	return err
}

func (r *sqlImageRepository) DeleteImagesForStore(storeID int64) error {
	_, err := r.db.Exec(`DELETE FROM store_images WHERE store_id = ?`, storeID)

	return err
}
