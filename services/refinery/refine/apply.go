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
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

// ApplyModification merges mod into base, returning a new patch. Pure with
// respect to its inputs: base is never mutated.
//
// # Description
//
// Removals are applied first (by connection id), then additions, then
// parameter changes (upserted into the patch's parameter suggestions,
// keyed by module id + parameter). Added connections get freshly generated
// ids on every application, so re-applying the same modification to the
// same base can never produce duplicate-id merges. The result is a new
// patch version with its own id; history and undo distinguish versions by
// patch id.
func ApplyModification(base *datatypes.Patch, mod datatypes.PatchModification) *datatypes.Patch {
	next := base.Clone()
	next.ID = uuid.New().String()

	if len(mod.ConnectionsRemoved) > 0 {
		drop := make(map[string]bool, len(mod.ConnectionsRemoved))
		for _, id := range mod.ConnectionsRemoved {
			drop[id] = true
		}
		kept := next.Connections[:0]
		for _, conn := range next.Connections {
			if !drop[conn.ID] {
				kept = append(kept, conn)
			}
		}
		next.Connections = kept
	}

	for _, conn := range mod.ConnectionsAdded {
		conn.ID = uuid.New().String()
		next.Connections = append(next.Connections, conn)
	}

	for _, change := range mod.ParameterChanges {
		upsertSuggestion(next, change)
	}

	next.UpdatedAt = time.Now().UnixMilli()
	return next
}

// upsertSuggestion replaces the suggestion for the same module id and
// parameter, or appends a new one.
func upsertSuggestion(p *datatypes.Patch, change datatypes.ParameterChange) {
	for i := range p.ParameterSuggestions {
		s := &p.ParameterSuggestions[i]
		if s.ModuleID == change.ModuleID && s.Parameter == change.Parameter {
			s.Value = change.NewValue
			s.Reason = change.Reasoning
			return
		}
	}
	p.ParameterSuggestions = append(p.ParameterSuggestions, datatypes.ParameterSuggestion{
		ModuleID:   change.ModuleID,
		ModuleName: change.ModuleName,
		Parameter:  change.Parameter,
		Value:      change.NewValue,
		Reason:     change.Reasoning,
	})
}
