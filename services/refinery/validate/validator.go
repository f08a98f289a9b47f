// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate checks that a staged modification only references
// hardware the user actually owns. The mapper works from the live rack
// inventory, so a validation failure is an internal inconsistency, never
// an expected user-facing condition.
package validate

import (
	"fmt"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

// Issue describes one inconsistency found in a staged modification.
type Issue struct {
	// Field locates the offending part ("connections_added[0].from",
	// "parameter_changes[2]").
	Field string `json:"field"`

	// ModuleID is the unknown module id.
	ModuleID string `json:"module_id"`

	// Detail is a human-readable explanation.
	Detail string `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Detail)
}

// CheckModification verifies every module id the modification references
// against the rack inventory. A nil or empty return means the modification
// is internally consistent. Removal ids are checked against the current
// patch, not the rack: a stale removal id is also an inconsistency.
func CheckModification(mod datatypes.PatchModification, patch *datatypes.Patch, rack *datatypes.Rack) []Issue {
	var issues []Issue

	for idx, conn := range mod.ConnectionsAdded {
		if !rack.HasModule(conn.From.ModuleID) {
			issues = append(issues, Issue{
				Field:    fmt.Sprintf("connections_added[%d].from", idx),
				ModuleID: conn.From.ModuleID,
				Detail:   fmt.Sprintf("source module %q (%s) is not in the rack", conn.From.ModuleName, conn.From.ModuleID),
			})
		}
		if !rack.HasModule(conn.To.ModuleID) {
			issues = append(issues, Issue{
				Field:    fmt.Sprintf("connections_added[%d].to", idx),
				ModuleID: conn.To.ModuleID,
				Detail:   fmt.Sprintf("target module %q (%s) is not in the rack", conn.To.ModuleName, conn.To.ModuleID),
			})
		}
	}

	for idx, change := range mod.ParameterChanges {
		if !rack.HasModule(change.ModuleID) {
			issues = append(issues, Issue{
				Field:    fmt.Sprintf("parameter_changes[%d]", idx),
				ModuleID: change.ModuleID,
				Detail:   fmt.Sprintf("module %q (%s) is not in the rack", change.ModuleName, change.ModuleID),
			})
		}
	}

	if patch != nil {
		for idx, id := range mod.ConnectionsRemoved {
			if patch.FindConnection(id) == nil {
				issues = append(issues, Issue{
					Field:    fmt.Sprintf("connections_removed[%d]", idx),
					ModuleID: id,
					Detail:   fmt.Sprintf("connection %s is not in the current patch", id),
				})
			}
		}
	}

	return issues
}
