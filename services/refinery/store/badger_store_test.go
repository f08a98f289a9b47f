// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerStore_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "alice", true)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.DemoMode)
	assert.Equal(t, "alice", created.Owner)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
	assert.Equal(t, created.LastActivity, got.LastActivity)
}

func TestBadgerStore_Get_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBadgerStore_Update_PreservesMessageOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session, err := s.Create(ctx, "", false)
	require.NoError(t, err)

	session.AppendMessage(datatypes.RoleUser, "darker")
	session.AppendMessage(datatypes.RoleAssistant, "Done: set cutoff lower.")
	session.AppendMessage(datatypes.RoleUser, "more reverb")
	require.NoError(t, s.Update(ctx, session))

	got, err := s.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "darker", got.Messages[0].Content)
	assert.Equal(t, "Done: set cutoff lower.", got.Messages[1].Content)
	assert.Equal(t, "more reverb", got.Messages[2].Content)
	// UnixMilli timestamps must survive the round-trip exactly.
	assert.Equal(t, session.Messages[0].Timestamp, got.Messages[0].Timestamp)
}

func TestBadgerStore_Get_CorruptRecordIsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session, err := s.Create(ctx, "", false)
	require.NoError(t, err)

	// Overwrite the record with bytes that do not decode.
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(session.ID), []byte("{not json"))
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBadgerStore_Delete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session, err := s.Create(ctx, "", false)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, session.ID))
	_, err = s.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting a missing session is not an error.
	assert.NoError(t, s.Delete(ctx, session.ID))
}

func TestBadgerStore_Keys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "", false)
	require.NoError(t, err)
	b, err := s.Create(ctx, "", false)
	require.NoError(t, err)

	ids, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}

func TestBadgerStore_ClosedStoreIsUnavailable(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	ctx := context.Background()

	session, err := s.Create(ctx, "", false)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, s.Update(ctx, session), ErrStoreUnavailable)
	assert.ErrorIs(t, s.Delete(ctx, session.ID), ErrStoreUnavailable)
	_, err = s.Keys(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestBadgerStore_ContextCancelled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "any")
	assert.Error(t, err)
	_, err = s.Create(ctx, "", false)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "persistent config without a path must fail")

	cfg.Path = t.TempDir()
	assert.NoError(t, cfg.Validate())

	cfg.TTLSeconds = -1
	assert.Error(t, cfg.Validate())

	cfg = InMemoryConfig()
	cfg.GCDiscardRatio = 2
	assert.Error(t, cfg.Validate())
}
