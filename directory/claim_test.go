// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	subject string
	body    string
	from    string
	to      []string
}

type recordingMailer struct {
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(subject, body, from string, to []string) error {
	if m.err != nil {
		return m.err
	}

	m.sent = append(m.sent, sentMail{subject: subject, body: body, from: from, to: to})

	return nil
}

func setupClaimTest(t *testing.T) (*ClaimService, *recordingMailer, StoreRepository, *Store, func()) {
	t.Helper()

	db, repos := setupTestDB(t)

	store := testStore("Boulangerie du Parc", "Lyon", "Rhône", "boulangerie-du-parc")
	require.NoError(t, repos.stores.SaveStore(store))

	mailer := &recordingMailer{}
	service := NewClaimService(repos.stores, mailer)

	return service, mailer, repos.stores, store, func() { db.Close() }
}

func TestRequestClaimSendsOneMailAndStampsStore(t *testing.T) {
	service, mailer, stores, store, cleanup := setupClaimTest(t)
	defer cleanup()

	now := time.Now()
	service.now = func() time.Time { return now }

	require.NoError(t, service.RequestClaim(store.ID, "margot@example.com"))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Nouveau commerce revendiqué : Boulangerie du Parc", mailer.sent[0].subject)
	assert.Equal(t, NotificationSender, mailer.sent[0].from)
	assert.Equal(t, []string{NotificationOperator}, mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "margot@example.com")
	assert.Contains(t, mailer.sent[0].body, "Aucune propriété n'a encore été accordée",
		"the operator must not read the mail as a completed transfer")

	got, err := stores.GetStoreByID(store.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastClaimRequest)
	assert.Nil(t, got.OwnerID, "a claim request never grants ownership")
}

func TestRequestClaimCooldown(t *testing.T) {
	service, mailer, _, store, cleanup := setupClaimTest(t)
	defer cleanup()

	start := time.Now()
	service.now = func() time.Time { return start }

	require.NoError(t, service.RequestClaim(store.ID, "first@example.com"))

	// Ten minutes later the cooldown still has fifty minutes to run.
	service.now = func() time.Time { return start.Add(10 * time.Minute) }

	err := service.RequestClaim(store.ID, "second@example.com")

	var cooldown *CooldownActiveError

	require.ErrorAs(t, err, &cooldown)
	assert.InDelta(t, 3000, cooldown.RemainingSeconds, 2)
	assert.Len(t, mailer.sent, 1, "no second mail during the cooldown")

	// Once the hour has passed, a new claim goes through.
	service.now = func() time.Time { return start.Add(ClaimCooldown + time.Second) }

	require.NoError(t, service.RequestClaim(store.ID, "third@example.com"))
	assert.Len(t, mailer.sent, 2)
}

func TestRequestClaimOwnedStore(t *testing.T) {
	service, mailer, stores, store, cleanup := setupClaimTest(t)
	defer cleanup()

	require.NoError(t, stores.SetOwner(store.ID, 41))

	err := service.RequestClaim(store.ID, "someone@example.com")
	assert.ErrorIs(t, err, ErrAlreadyOwned)
	assert.Empty(t, mailer.sent, "no notification for an owned store")
}

func TestRequestClaimMailFailureKeepsTimestamp(t *testing.T) {
	service, mailer, stores, store, cleanup := setupClaimTest(t)
	defer cleanup()

	mailer.err = errors.New("smtp unreachable")

	err := service.RequestClaim(store.ID, "margot@example.com")
	require.ErrorIs(t, err, ErrMailDelivery)

	got, err := stores.GetStoreByID(store.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastClaimRequest, "failed delivery must not start the cooldown")

	// The submitter retries once the relay recovers.
	mailer.err = nil

	require.NoError(t, service.RequestClaim(store.ID, "margot@example.com"))

	got, err = stores.GetStoreByID(store.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastClaimRequest)
}

func TestRequestClaimUnknownStore(t *testing.T) {
	service, mailer, _, _, cleanup := setupClaimTest(t)
	defer cleanup()

	err := service.RequestClaim(99999, "margot@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, mailer.sent)
}

func TestCooldownRemaining(t *testing.T) {
	start := time.Now()

	state := ClaimState{Kind: ClaimPending, PendingSince: start}

	remaining, active := state.CooldownRemaining(start.Add(10 * time.Minute))
	assert.True(t, active)
	assert.EqualValues(t, 3000, remaining)

	_, active = state.CooldownRemaining(start.Add(ClaimCooldown))
	assert.False(t, active)

	_, active = ClaimState{Kind: Unclaimed}.CooldownRemaining(start)
	assert.False(t, active)
}
