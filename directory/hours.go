// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"database/sql"
	"fmt"
)

// Weekdays in French week order, Monday first. Opening hours sort by this.
var Weekdays = []string{
	"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche",
}

// WeekdayIndex returns the position of the weekday in the French week, or
// -1 for an unknown label.
func WeekdayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}

	return -1
}

// OpeningHour is one store's schedule for one weekday: up to two open/close
// interval pairs (morning, afternoon), any of which may be unset. At most
// one row per (store, weekday), enforced by the schema.
type OpeningHour struct {
	ID      int64  `json:"id"`
	StoreID int64  `json:"store_id"`
	Weekday string `json:"weekday"`

	MorningOpen    string `json:"morning_open,omitempty"`
	MorningClose   string `json:"morning_close,omitempty"`
	AfternoonOpen  string `json:"afternoon_open,omitempty"`
	AfternoonClose string `json:"afternoon_close,omitempty"`
}

// HourRepository handles the per-store weekly schedules.
type HourRepository interface {
	// CreateSchema creates the opening_hours table
	CreateSchema() error

	// SaveOpeningHour inserts or updates one weekday row; a second insert
	// for the same (store, weekday) fails the uniqueness constraint
	SaveOpeningHour(hour *OpeningHour) error

	// ListOpeningHours returns a store's rows ordered Monday through Sunday
	ListOpeningHours(storeID int64) ([]OpeningHour, error)

	// DeleteOpeningHour removes one weekday row
	DeleteOpeningHour(id int64) error
}

type sqlHourRepository struct {
	db *sql.DB
}

// NewHourRepository creates an opening-hours repository over the connection.
func NewHourRepository(db *sql.DB) HourRepository {
	return &sqlHourRepository{db: db}
}

func (r *sqlHourRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS opening_hours_seq START 1;

		CREATE TABLE IF NOT EXISTS opening_hours (
			id INTEGER PRIMARY KEY DEFAULT nextval('opening_hours_seq'),
			store_id INTEGER NOT NULL,
			weekday VARCHAR NOT NULL,
			morning_open VARCHAR NOT NULL DEFAULT '',
			morning_close VARCHAR NOT NULL DEFAULT '',
			afternoon_open VARCHAR NOT NULL DEFAULT '',
			afternoon_close VARCHAR NOT NULL DEFAULT '',
			UNIQUE(store_id, weekday)
		);
	`)

	return err
}

func (r *sqlHourRepository) SaveOpeningHour(hour *OpeningHour) error {
	if WeekdayIndex(hour.Weekday) < 0 {
		return &ValidationError{Field: "weekday", Message: fmt.Sprintf("unknown weekday %q", hour.Weekday)}
	}

	if hour.ID == 0 {
		return r.db.QueryRow(`
			INSERT INTO opening_hours(
				store_id, weekday,
				morning_open, morning_close, afternoon_open, afternoon_close
			)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`,
			hour.StoreID, hour.Weekday,
			hour.MorningOpen, hour.MorningClose,
			hour.AfternoonOpen, hour.AfternoonClose).Scan(&hour.ID)
	}

	_, err := r.db.Exec(`
		UPDATE opening_hours
		SET morning_open = ?, morning_close = ?,
		    afternoon_open = ?, afternoon_close = ?
		WHERE id = ?`,
		hour.MorningOpen, hour.MorningClose,
		hour.AfternoonOpen, hour.AfternoonClose, hour.ID)

	return err
}

func (r *sqlHourRepository) ListOpeningHours(storeID int64) ([]OpeningHour, error) {
	rows, err := r.db.Query(`
		SELECT id, store_id, weekday,
		       morning_open, morning_close, afternoon_open, afternoon_close
		FROM opening_hours WHERE store_id = ?`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// One slot per weekday keeps the output in French week order without a
	// custom ORDER BY.
	slots := make([]*OpeningHour, len(Weekdays))

	for rows.Next() {
		var h OpeningHour

		err := rows.Scan(&h.ID, &h.StoreID, &h.Weekday,
			&h.MorningOpen, &h.MorningClose, &h.AfternoonOpen, &h.AfternoonClose)
		if err != nil {
			return nil, err
		}

		if i := WeekdayIndex(h.Weekday); i >= 0 {
			slots[i] = &h
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	var hours []OpeningHour

	for _, slot := range slots {
		if slot != nil {
			hours = append(hours, *slot)
		}
	}

	return hours, nil
}

func (r *sqlHourRepository) DeleteOpeningHour(id int64) error {
	_, err := r.db.Exec(`DELETE FROM opening_hours WHERE id = ?`, id)

	return err
}
