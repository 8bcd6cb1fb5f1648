// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"fmt"
	"net/url"
	"time"

	"github.com/uber/h3-go/v4"
	"github.com/yuumi-shop/yuumi/spatial"
)

// Store is a business listing. The slug is unique and non-empty once
// persisted; coordinates live in a single nullable Point so latitude and
// longitude are either both present or both absent.
type Store struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	City       string `json:"city"`
	Department string `json:"department"`
	CategoryID *int64 `json:"category_id,omitempty"`

	ShortDescription string `json:"short_description"`
	LongDescription  string `json:"long_description,omitempty"`

	MapsAddress       string `json:"maps_address,omitempty"`
	DirectionsAddress string `json:"directions_address,omitempty"`
	Website           string `json:"website,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Instagram         string `json:"instagram,omitempty"`
	Facebook          string `json:"facebook,omitempty"`

	Photo              string `json:"photo,omitempty"`
	GalleryTitle       string `json:"gallery_title,omitempty"`
	GalleryDescription string `json:"gallery_description,omitempty"`
	GalleryImage       string `json:"gallery_image,omitempty"`

	Slug  string         `json:"slug"`
	Point *spatial.Point `json:"point,omitempty"`

	// H3 cells derived from the point when it resolves, used to group map
	// markers. Zero when the point is absent.
	H3Res5 int64 `json:"-"`
	H3Res8 int64 `json:"-"`

	OwnerID          *int64     `json:"owner_id,omitempty"`
	LastClaimRequest *time.Time `json:"last_claim_request,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// URL returns the canonical listing path, mirroring the site's
// /<department>/<city>/<slug> layout.
func (s *Store) URL() string {
	return fmt.Sprintf("/%s/%s/%s",
		url.PathEscape(s.Department), url.PathEscape(s.City), s.Slug)
}

// computeH3 refreshes the H3 cells from the point, or clears them.
func (s *Store) computeH3() error {
	if s.Point == nil {
		s.H3Res5 = 0
		s.H3Res8 = 0

		return nil
	}

	latLng := h3.NewLatLng(s.Point.Lat, s.Point.Lng)

	for _, res := range []int{5, 8} {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return fmt.Errorf("converting to h3 cell at res %d: %w", res, err)
		}

		if res == 5 {
			s.H3Res5 = int64(cell)
		} else {
			s.H3Res8 = int64(cell)
		}
	}

	return nil
}

// ClaimState is the explicit rendition of a listing's ownership status,
// derived from the owner and last-claim-request columns.
type ClaimState struct {
	Kind         ClaimStateKind
	PendingSince time.Time // set when Kind == ClaimPending
	OwnerID      int64     // set when Kind == Claimed
}

// ClaimStateKind tags the claim state machine.
type ClaimStateKind int

const (
	// Unclaimed means no owner and no pending claim request.
	Unclaimed ClaimStateKind = iota
	// ClaimPending means a claim notification went out and the cooldown may
	// still be running.
	ClaimPending
	// Claimed means the listing has a recorded owner.
	Claimed
)

// ClaimCooldown is the minimum time between successive claim requests on
// the same listing.
const ClaimCooldown = time.Hour

// ClaimStateOf derives the tagged state from a store row.
func ClaimStateOf(s *Store) ClaimState {
	switch {
	case s.OwnerID != nil:
		return ClaimState{Kind: Claimed, OwnerID: *s.OwnerID}
	case s.LastClaimRequest != nil:
		return ClaimState{Kind: ClaimPending, PendingSince: *s.LastClaimRequest}
	default:
		return ClaimState{Kind: Unclaimed}
	}
}

// CooldownRemaining returns how many whole seconds of the claim cooldown
// are left at now, and whether the cooldown is still active. It is a pure
// function of the state.
func (c ClaimState) CooldownRemaining(now time.Time) (int64, bool) {
	if c.Kind != ClaimPending {
		return 0, false
	}

	elapsed := int64(now.Sub(c.PendingSince).Seconds())
	if elapsed >= int64(ClaimCooldown.Seconds()) {
		return 0, false
	}

	return int64(ClaimCooldown.Seconds()) - elapsed, true
}
