// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// ParameterChange records a single knob movement derived from feedback.
type ParameterChange struct {
	ModuleID   string `json:"module_id"`
	ModuleName string `json:"module_name"`
	Parameter  string `json:"parameter"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	Reasoning  string `json:"reasoning,omitempty"`
}

// PatchModification is a structural diff over a patch.
//
// # Description
//
// Pure data: connections to add, connection ids to remove, and parameter
// changes. Applying a modification is a deterministic, side-effect-free
// function over a Patch (see refine.ApplyModification). An empty
// modification is a valid no-op result, not an error: the mapper produces
// one when feedback matched no modules in the rack.
type PatchModification struct {
	Description        string            `json:"description"`
	ConnectionsAdded   []Connection      `json:"connections_added,omitempty"`
	ConnectionsRemoved []string          `json:"connections_removed,omitempty"`
	ParameterChanges   []ParameterChange `json:"parameter_changes,omitempty"`
	Confidence         float64           `json:"confidence"`
}

// IsEmpty reports whether applying the modification would change nothing.
func (m *PatchModification) IsEmpty() bool {
	return len(m.ConnectionsAdded) == 0 &&
		len(m.ConnectionsRemoved) == 0 &&
		len(m.ParameterChanges) == 0
}

// RefinementResult is the orchestrator's terminal output for one refine call.
//
// # Description
//
// Exactly one terminal outcome holds per call:
//   - Success: UpdatedPatch is present and has been committed to the session.
//   - NeedsClarification: ambiguous input, no session mutation occurred.
//   - ImpossibleRequest: the rack cannot support the request, no mutation;
//     ImpossibleReason names the missing capability.
//   - none of the above: internal validation failure, surfaced with a
//     generic message and logged in full at error severity.
//
// Message is always non-empty: the system never leaves the user without
// feedback. The downstream renderer consumes it as plain text; this core
// never formats markup.
type RefinementResult struct {
	Success            bool               `json:"success"`
	UpdatedPatch       *Patch             `json:"updated_patch,omitempty"`
	Modification       *PatchModification `json:"modification,omitempty"`
	Message            string             `json:"message"`
	NeedsClarification bool               `json:"needs_clarification,omitempty"`
	ImpossibleRequest  bool               `json:"impossible_request,omitempty"`
	ImpossibleReason   string             `json:"impossible_reason,omitempty"`
}
