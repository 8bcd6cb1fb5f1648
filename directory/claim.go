// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrMailDelivery wraps a notification send failure during a claim. The
// claim timestamp is not advanced when it is returned, so the submitter can
// simply retry.
var ErrMailDelivery = errors.New("notification delivery failed")

// ClaimService runs the ownership-claim workflow: a visitor asks to claim a
// listing, the operator gets a notification mail, and the listing enters a
// cooldown so the operator is not flooded with duplicates. Ownership itself
// is only ever granted by the operator through SetOwner.
type ClaimService struct {
	stores StoreRepository
	mailer Mailer

	// now is swappable for tests
	now func() time.Time
}

// NewClaimService creates the claim workflow over the given repository and
// mailer.
func NewClaimService(stores StoreRepository, mailer Mailer) *ClaimService {
	return &ClaimService{
		stores: stores,
		mailer: mailer,
		now:    time.Now,
	}
}

// RequestClaim initiates a claim on the store. It fails with ErrAlreadyOwned
// when the listing has an owner, with CooldownActiveError while a previous
// claim is cooling down, and with ErrMailDelivery when the notification
// cannot be sent. The claim timestamp only advances after the mail went out.
func (s *ClaimService) RequestClaim(storeID int64, requester string) error {
	store, err := s.stores.GetStoreByID(storeID)
	if err != nil {
		return err
	}

	now := s.now()

	state := ClaimStateOf(store)

	switch state.Kind {
	case Claimed:
		return fmt.Errorf("store %d: %w", storeID, ErrAlreadyOwned)
	case ClaimPending:
		if remaining, active := state.CooldownRemaining(now); active {
			return &CooldownActiveError{RemainingSeconds: remaining}
		}
	case Unclaimed:
	}

	subject := fmt.Sprintf("Nouveau commerce revendiqué : %s", store.Name)
	body := fmt.Sprintf(
		"Le commerce %q (%s, %s) vient d'être revendiqué.\n\n"+
			"Demandeur : %s\nFiche : %s\n\n"+
			"Aucune propriété n'a encore été accordée. Vérification manuelle requise.\n",
		store.Name, store.City, store.Department, requester, store.URL())

	if err := s.mailer.Send(subject, body, NotificationSender,
		[]string{NotificationOperator}); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	ok, err := s.stores.BeginClaim(storeID, now, now.Add(-ClaimCooldown))
	if err != nil {
		return err
	}

	if !ok {
		// Lost the race. Re-read to report why.
		store, err := s.stores.GetStoreByID(storeID)
		if err != nil {
			return err
		}

		state := ClaimStateOf(store)
		if state.Kind == Claimed {
			return fmt.Errorf("store %d: %w", storeID, ErrAlreadyOwned)
		}

		if remaining, active := state.CooldownRemaining(s.now()); active {
			return &CooldownActiveError{RemainingSeconds: remaining}
		}

		return fmt.Errorf("store %d: claim request rejected", storeID)
	}

	log.Printf("claim requested for store %d (%s) by %s", store.ID, store.Slug, requester)

	return nil
}
