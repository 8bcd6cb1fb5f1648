// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"database/sql"
	"strings"
)

// ProductFamily is an ordered, store-owned grouping of products.
type ProductFamily struct {
	ID       int64     `json:"id"`
	StoreID  int64     `json:"store_id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
	Products []Product `json:"products"`
}

// Product belongs to exactly one family; no cross-store sharing.
type Product struct {
	ID       int64  `json:"id"`
	FamilyID int64  `json:"family_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// ProductMatch is one product-search hit with its store context.
type ProductMatch struct {
	Product string `json:"product"`
	Store   string `json:"store"`
	URL     string `json:"url"`
	Photo   string `json:"photo,omitempty"`
}

// ProductRepository handles the per-store product hierarchies.
type ProductRepository interface {
	// CreateSchema creates the family and product tables
	CreateSchema() error

	// SaveFamily inserts or updates a family
	SaveFamily(family *ProductFamily) error

	// SaveProduct inserts or updates a product
	SaveProduct(product *Product) error

	// ListFamilies returns a store's families with their products, in
	// position order
	ListFamilies(storeID int64) ([]ProductFamily, error)

	// DeleteFamily removes a family and its products
	DeleteFamily(familyID int64) error

	// SearchProducts finds products whose name starts with the query,
	// ignoring case and accents, joined with their store
	SearchProducts(query string, limit int) ([]ProductMatch, error)
}

type sqlProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a product repository over the connection.
func NewProductRepository(db *sql.DB) ProductRepository {
	return &sqlProductRepository{db: db}
}

func (r *sqlProductRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS families_seq START 1;

		CREATE TABLE IF NOT EXISTS product_families (
			id INTEGER PRIMARY KEY DEFAULT nextval('families_seq'),
			store_id INTEGER NOT NULL,
			name VARCHAR NOT NULL,
			position INTEGER NOT NULL DEFAULT 0
		);

		CREATE SEQUENCE IF NOT EXISTS products_seq START 1;

		CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY DEFAULT nextval('products_seq'),
			family_id INTEGER NOT NULL,
			name VARCHAR NOT NULL,
			position INTEGER NOT NULL DEFAULT 0
		);
	`)

	return err
}

func (r *sqlProductRepository) SaveFamily(family *ProductFamily) error {
	if family.ID == 0 {
		return r.db.QueryRow(`
			INSERT INTO product_families(store_id, name, position)
			VALUES (?, ?, ?) RETURNING id`,
			family.StoreID, family.Name, family.Position).Scan(&family.ID)
	}

	_, err := r.db.Exec(`
		UPDATE product_families SET name = ?, position = ? WHERE id = ?`,
		family.Name, family.Position, family.ID)

	return err
}

func (r *sqlProductRepository) SaveProduct(product *Product) error {
	if product.ID == 0 {
		return r.db.QueryRow(`
			INSERT INTO products(family_id, name, position)
			VALUES (?, ?, ?) RETURNING id`,
			product.FamilyID, product.Name, product.Position).Scan(&product.ID)
	}

	_, err := r.db.Exec(`
		UPDATE products SET name = ?, position = ? WHERE id = ?`,
		product.Name, product.Position, product.ID)

	return err
}

func (r *sqlProductRepository) ListFamilies(storeID int64) ([]ProductFamily, error) {
	rows, err := r.db.Query(`
		SELECT id, store_id, name, position FROM product_families
		WHERE store_id = ? ORDER BY position, id`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var families []ProductFamily

	for rows.Next() {
		var f ProductFamily
		if err := rows.Scan(&f.ID, &f.StoreID, &f.Name, &f.Position); err != nil {
			return nil, err
		}

		f.Products = []Product{}
		families = append(families, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range families {
		products, err := r.listProducts(families[i].ID)
		if err != nil {
			return nil, err
		}

		families[i].Products = products
	}

	return families, nil
}

func (r *sqlProductRepository) listProducts(familyID int64) ([]Product, error) {
	rows, err := r.db.Query(`
		SELECT id, family_id, name, position FROM products
		WHERE family_id = ? ORDER BY position, id`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []Product{}

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.FamilyID, &p.Name, &p.Position); err != nil {
			return nil, err
		}

		products = append(products, p)
	}

	return products, rows.Err()
}

func (r *sqlProductRepository) DeleteFamily(familyID int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM products WHERE family_id = ?`, familyID); err != nil {
		_ = tx.Rollback()

		return err
	}

	if _, err := tx.Exec(`DELETE FROM product_families WHERE id = ?`, familyID); err != nil {
		_ = tx.Rollback()

		return err
	}

	return tx.Commit()
}

// escapeLike makes a user string safe as a literal LIKE prefix, paired with
// ESCAPE '\' in the query.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *sqlProductRepository) SearchProducts(query string, limit int) ([]ProductMatch, error) {
	// strip_accents so "eclair" finds "Éclair", matching the autocomplete
	// endpoints' folding.
	rows, err := r.db.Query(`
		SELECT p.name, s.name, s.department, s.city, s.slug, s.photo
		FROM products p
		JOIN product_families f ON f.id = p.family_id
		JOIN stores s ON s.id = f.store_id
		WHERE lower(strip_accents(p.name)) LIKE lower(strip_accents(?)) || '%' ESCAPE '\'
		ORDER BY p.name, s.name
		LIMIT ?`, escapeLike(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []ProductMatch

	for rows.Next() {
		var (
			m     ProductMatch
			store Store
		)

		if err := rows.Scan(&m.Product, &store.Name, &store.Department,
			&store.City, &store.Slug, &store.Photo); err != nil {
			return nil, err
		}

		m.Store = store.Name
		m.URL = store.URL()
		m.Photo = store.Photo

		matches = append(matches, m)
	}

	return matches, rows.Err()
}
