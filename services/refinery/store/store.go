// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists refinement sessions in an embedded BadgerDB
// key-value store with store-enforced TTL expiry.
//
// BadgerDB is the warm tier of the persistence model: low-latency local
// storage (~100µs) that survives process restarts. Session expiry is
// delegated to Badger's native entry TTL, so expired sessions simply stop
// resolving and no sweeper has to race the clock.
package store

import (
	"context"
	"errors"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

var (
	// ErrSessionNotFound indicates the session id does not resolve. This
	// includes expired sessions and records that fail to deserialize:
	// clients regenerate a session rather than crash on a corrupt record.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreUnavailable indicates the backing store cannot serve the
	// operation (closed database, IO failure). Callers must degrade
	// gracefully or reject the request; there is no safe fallback for
	// losing session durability, so this error crosses the core boundary.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// SessionStore is the persistence contract for refinement sessions.
//
// # Description
//
// Update performs a full read-merge-write against the backing store, not a
// partial or atomic patch: the last writer wins at session granularity.
// Callers that need single-mutator semantics must hold the per-session
// lock (see SessionLocks) across their read-modify-write cycle. TTL is
// refreshed to the session's configured value on every successful Update.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Create persists a new empty session and returns it.
	Create(ctx context.Context, owner string, demoMode bool) (*datatypes.Session, error)

	// Get retrieves a session by id. Returns ErrSessionNotFound for
	// missing, expired, or undecodable records.
	Get(ctx context.Context, id string) (*datatypes.Session, error)

	// Update persists the full session snapshot and refreshes its TTL.
	Update(ctx context.Context, session *datatypes.Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Keys returns the ids of all live sessions. Used for aggregate
	// statistics and cleanup reporting only, never on the hot path.
	Keys(ctx context.Context) ([]string, error)
}
