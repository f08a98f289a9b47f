// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the data model for the patch refinement core:
// sessions, patches, parsed feedback, and patch modifications.
//
// All timestamps are Unix milliseconds UTC (int64) so that store
// round-trips preserve precision exactly. JSON field names are snake_case
// to match the wire contract of the surrounding services.
package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. Messages are immutable once appended.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the refinement conversation.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	ImageRef  string `json:"image_ref,omitempty"`
}

// Session is the durable, TTL-scoped conversational context: message
// history, rack snapshot, current patch, and bounded patch history.
//
// # Lifecycle
//
// Created on the first user turn; mutated on every successful
// classify-and-apply cycle; expires automatically when the store TTL
// elapses; explicitly deletable.
//
// # Invariants
//
//   - CurrentPatch is non-nil only after at least one generation or
//     refinement has succeeded.
//   - PatchHistory holds a bounded number of snapshots in chronological
//     order, the current patch as its newest entry.
//   - Messages keep insertion order; entries are never rewritten.
//
// # Ownership
//
// The session exclusively owns its Patch objects and modification history.
// Nothing mutates them concurrently except the orchestrator's commit path,
// which runs under the store's per-session lock.
type Session struct {
	ID                   string              `json:"session_id"`
	Owner                string              `json:"owner,omitempty"`
	CreatedAt            int64               `json:"created_at"`
	LastActivity         int64               `json:"last_activity"`
	TTLSeconds           int                 `json:"ttl_seconds"`
	Messages             []Message           `json:"messages"`
	RackSnapshot         *Rack               `json:"rack_snapshot,omitempty"`
	CurrentPatch         *Patch              `json:"current_patch,omitempty"`
	PatchHistory         []Patch             `json:"patch_history,omitempty"`
	AppliedModifications []PatchModification `json:"applied_modifications,omitempty"`
	DemoMode             bool                `json:"demo_mode"`

	// Version increments on every committed update. The in-process keyed
	// lock already serializes writers; the counter is persisted so a
	// cross-process deployment can layer optimistic concurrency on top
	// without a schema change.
	Version int64 `json:"version"`
}

// NewSession creates an empty session. Owner may be empty (anonymous).
func NewSession(owner string, demoMode bool, ttlSeconds int) *Session {
	now := time.Now().UnixMilli()
	return &Session{
		ID:           uuid.NewString(),
		Owner:        owner,
		CreatedAt:    now,
		LastActivity: now,
		TTLSeconds:   ttlSeconds,
		Messages:     make([]Message, 0, 8),
		DemoMode:     demoMode,
	}
}

// AppendMessage adds a conversation turn, stamping it with the current time.
func (s *Session) AppendMessage(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Touch refreshes the last-activity timestamp.
func (s *Session) Touch() {
	s.LastActivity = time.Now().UnixMilli()
}

// RecentMessages returns up to n of the newest messages, oldest first.
// Used by the classifier when building the oracle context summary.
func (s *Session) RecentMessages(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	start := len(s.Messages) - n
	if start < 0 {
		start = 0
	}
	return s.Messages[start:]
}
