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

import "sync"

// SessionLocks provides in-process advisory locking keyed by session id.
//
// # Description
//
// The store's Update is read-merge-write, so two concurrent refine calls
// against the same session would race: the second writer's merge is
// computed from a stale read and silently discards the first writer's
// update. SessionLocks enforces "single mutator per session at a time"
// for a single-process deployment; cross-process deployments layer the
// persisted Session.Version counter on top.
//
// Lock entries are reference-counted and removed once the last holder
// releases, so the map does not grow with the total number of sessions
// ever seen.
//
// # Thread Safety
//
// Safe for concurrent use.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessionLocks creates an empty lock registry.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sessionLock)}
}

// Lock acquires the exclusive lock for a session id, blocking until it is
// available. The returned function releases the lock and must be called
// exactly once, typically via defer.
func (l *SessionLocks) Lock(id string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &sessionLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// Held returns the number of sessions with an active or pending lock.
// Exposed for tests and stats reporting.
func (l *SessionLocks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
