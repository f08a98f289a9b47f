// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refine

import (
	"errors"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
	"github.com/AleutianAI/Patchmind/services/refinery/observability"
)

// HistoryCapacity bounds the per-session patch history. Full snapshots are
// kept rather than modification deltas, trading memory for O(1) undo. The
// stack counts the current patch as its newest entry, so a full history
// gives HistoryCapacity-1 undo steps.
const HistoryCapacity = 5

// ErrNothingToUndo is returned by Undo when the history holds fewer than
// two snapshots.
var ErrNothingToUndo = errors.New("nothing to undo")

// PushHistory records p as the session's newest snapshot and makes it the
// current patch. The history always contains the current patch as its top
// entry; when the capacity is exceeded the oldest snapshot is evicted.
func PushHistory(s *datatypes.Session, p *datatypes.Patch) {
	s.PatchHistory = append(s.PatchHistory, *p.Clone())
	if len(s.PatchHistory) > HistoryCapacity {
		evicted := len(s.PatchHistory) - HistoryCapacity
		s.PatchHistory = append(s.PatchHistory[:0:0], s.PatchHistory[evicted:]...)
		observability.HistoryEvictions.Add(float64(evicted))
	}
	s.CurrentPatch = p
}

// CanUndo reports whether an undo would succeed: at least two snapshots,
// the current patch plus one to fall back to.
func CanUndo(s *datatypes.Session) bool {
	return len(s.PatchHistory) >= 2
}

// Undo discards the newest snapshot and restores the one beneath it as the
// session's current patch, returning it. The session is mutated in memory
// only; persisting the rollback is the caller's job.
func Undo(s *datatypes.Session) (*datatypes.Patch, error) {
	if !CanUndo(s) {
		return nil, ErrNothingToUndo
	}
	s.PatchHistory = s.PatchHistory[:len(s.PatchHistory)-1]
	restored := s.PatchHistory[len(s.PatchHistory)-1].Clone()
	s.CurrentPatch = restored
	return restored, nil
}

// ClearHistory drops all snapshots and the current patch. Used for "start
// fresh" requests.
func ClearHistory(s *datatypes.Session) {
	s.PatchHistory = nil
	s.CurrentPatch = nil
	s.AppliedModifications = nil
}
