// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"database/sql"
	"errors"
	"time"
)

// User is an account that can own one listing and keep favorites.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Superuser    bool      `json:"superuser"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRepository handles accounts and their store favorites.
type UserRepository interface {
	// CreateSchema creates the users and favorites tables
	CreateSchema() error

	// CreateUser inserts the user; usernames are unique
	CreateUser(user *User) error

	// GetUserByID returns the user or ErrNotFound
	GetUserByID(id int64) (*User, error)

	// GetUserByUsername returns the user or ErrNotFound
	GetUserByUsername(username string) (*User, error)

	// ToggleFavorite flips the favorite mark and reports whether the store
	// ended up marked
	ToggleFavorite(userID, storeID int64) (added bool, err error)

	// IsFavorite reports whether the user marked the store
	IsFavorite(userID, storeID int64) (bool, error)

	// ListFavoriteStoreIDs returns the user's favorites, oldest mark first
	ListFavoriteStoreIDs(userID int64) ([]int64, error)
}

type sqlUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a user repository over the connection.
func NewUserRepository(db *sql.DB) UserRepository {
	return &sqlUserRepository{db: db}
}

func (r *sqlUserRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS users_seq START 1;

		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY DEFAULT nextval('users_seq'),
			username VARCHAR NOT NULL UNIQUE,
			email VARCHAR NOT NULL,
			password_hash VARCHAR NOT NULL,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS favorites (
			user_id INTEGER NOT NULL,
			store_id INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, store_id)
		);
	`)

	return err
}

func (r *sqlUserRepository) CreateUser(user *User) error {
	user.CreatedAt = time.Now()

	return r.db.QueryRow(`
		INSERT INTO users(username, email, password_hash, is_superuser, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		user.Username, user.Email, user.PasswordHash, user.Superuser, user.CreatedAt,
	).Scan(&user.ID)
}

const userSelect = `
	SELECT id, username, email, password_hash, is_superuser, created_at
	FROM users
`

func (r *sqlUserRepository) one(query string, args ...any) (*User, error) {
	var u User

	err := r.db.QueryRow(query, args...).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Superuser, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (r *sqlUserRepository) GetUserByID(id int64) (*User, error) {
	return r.one(userSelect+` WHERE id = ?`, id)
}

func (r *sqlUserRepository) GetUserByUsername(username string) (*User, error) {
	return r.one(userSelect+` WHERE username = ?`, username)
}

func (r *sqlUserRepository) ToggleFavorite(userID, storeID int64) (bool, error) {
	marked, err := r.IsFavorite(userID, storeID)
	if err != nil {
		return false, err
	}

	if marked {
		_, err := r.db.Exec(`
			DELETE FROM favorites WHERE user_id = ? AND store_id = ?`,
			userID, storeID)

		return false, err
	}

	_, err = r.db.Exec(`
		INSERT INTO favorites(user_id, store_id, created_at)
		VALUES (?, ?, ?)`,
		userID, storeID, time.Now())

	return true, err
}

func (r *sqlUserRepository) IsFavorite(userID, storeID int64) (bool, error) {
	var count int

	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM favorites WHERE user_id = ? AND store_id = ?`,
		userID, storeID).Scan(&count)

	return count > 0, err
}

func (r *sqlUserRepository) ListFavoriteStoreIDs(userID int64) ([]int64, error) {
	rows, err := r.db.Query(`
		SELECT store_id FROM favorites
		WHERE user_id = ? ORDER BY created_at, store_id`, userID)
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
