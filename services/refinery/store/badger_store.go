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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
	"github.com/AleutianAI/Patchmind/services/refinery/observability"
)

// DefaultSessionTTLSeconds is the store-enforced session lifetime when the
// configuration does not override it.
const DefaultSessionTTLSeconds = 86400

// sessionKeyPrefix namespaces session records inside the shared database.
const sessionKeyPrefix = "session/"

// Config holds configuration for the Badger-backed session store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// TTLSeconds is the session lifetime, refreshed on every Update.
	// Defaults to DefaultSessionTTLSeconds.
	TTLSeconds int

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64

	// Logger for store operations. If nil, slog.Default() is used and
	// BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		TTLSeconds:     DefaultSessionTTLSeconds,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		TTLSeconds: DefaultSessionTTLSeconds,
		GCInterval: 0, // disabled
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("path is required for persistent database")
	}
	if c.TTLSeconds <= 0 {
		return fmt.Errorf("ttl_seconds must be positive, got %d", c.TTLSeconds)
	}
	if c.GCDiscardRatio < 0 || c.GCDiscardRatio > 1 {
		return errors.New("gc_discard_ratio must be between 0 and 1")
	}
	return nil
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore is the production SessionStore backed by an embedded
// BadgerDB instance.
//
// # Description
//
// Sessions are stored as JSON under "session/<id>" with Badger's native
// entry TTL, so expiry is store-enforced: an expired record stops
// resolving without any cleanup pass. Update rewrites the full record and
// resets the TTL, matching the read-merge-write contract.
//
// # Thread Safety
//
// Safe for concurrent use; *badger.DB is internally synchronized.
type BadgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger

	gcStop chan struct{}
	gcDone chan struct{}
}

// Compile-time interface compliance check.
var _ SessionStore = (*BadgerStore)(nil)

// Open creates and opens a Badger-backed session store.
//
// # Description
//
// Opens a BadgerDB database at the configured path, or in memory if
// InMemory is true. Creates the directory if it doesn't exist and starts
// the value log GC loop when GCInterval is configured.
//
// # Inputs
//
//   - cfg: Store configuration. Path is required unless InMemory is true.
//
// # Outputs
//
//   - *BadgerStore: The opened store. Caller must call Close() when done.
//   - error: Non-nil if the configuration is invalid or the database
//     cannot be opened.
func Open(cfg Config) (*BadgerStore, error) {
	if cfg.TTLSeconds == 0 {
		cfg.TTLSeconds = DefaultSessionTTLSeconds
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
		logger: logger,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

// Close stops garbage collection and closes the database. Safe to call
// once; store operations after Close return ErrStoreUnavailable.
func (s *BadgerStore) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	return s.db.Close()
}

// Create persists a new empty session and returns it.
func (s *BadgerStore) Create(ctx context.Context, owner string, demoMode bool) (*datatypes.Session, error) {
	session := datatypes.NewSession(owner, demoMode, int(s.ttl.Seconds()))
	if err := s.write(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("session created",
		slog.String("session_id", session.ID),
		slog.Bool("demo_mode", demoMode))
	return session, nil
}

// Get retrieves a session by id.
//
// # Description
//
// Expired keys do not resolve (Badger enforces the TTL) and undecodable
// records are treated as not found: a corrupt session is logged and the
// client regenerates rather than crashing the refinement pipeline.
func (s *BadgerStore) Get(ctx context.Context, id string) (*datatypes.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		observability.StoreOperations.WithLabelValues("get", "not_found").Inc()
		return nil, ErrSessionNotFound
	case err != nil:
		observability.StoreOperations.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var session datatypes.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		s.logger.Warn("discarding undecodable session record",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		observability.StoreOperations.WithLabelValues("get", "not_found").Inc()
		return nil, ErrSessionNotFound
	}
	observability.StoreOperations.WithLabelValues("get", "ok").Inc()
	return &session, nil
}

// Update persists the full session snapshot and refreshes its TTL.
func (s *BadgerStore) Update(ctx context.Context, session *datatypes.Session) error {
	session.Touch()
	return s.write(ctx, session)
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(id))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		observability.StoreOperations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	observability.StoreOperations.WithLabelValues("delete", "ok").Inc()
	s.logger.Info("session deleted", slog.String("session_id", id))
	return nil
}

// Keys returns the ids of all live sessions.
func (s *BadgerStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	prefix := []byte(sessionKeyPrefix)
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// write serializes the session and commits it with a fresh TTL.
func (s *BadgerStore) write(ctx context.Context, session *datatypes.Session) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	raw, err := json.Marshal(session)
	if err != nil {
		// Marshal failure is a programming error, not store weather.
		return fmt.Errorf("marshal session %s: %v", session.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(sessionKey(session.ID), raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		observability.StoreOperations.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	observability.StoreOperations.WithLabelValues("set", "ok").Inc()
	return nil
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

// gcLoop runs periodic value log garbage collection until Close.
func (s *BadgerStore) gcLoop(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err == nil {
				s.logger.Debug("badger value log GC completed")
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				// ErrNoRewrite means no GC was needed, not an error.
				s.logger.Warn("badger value log GC error",
					slog.String("error", err.Error()))
			}
		}
	}
}
