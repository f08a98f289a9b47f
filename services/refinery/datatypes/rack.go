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

import "strings"

// Rack is the module inventory a patch routes connections between.
//
// # Description
//
// Supplied by the external scraping/vision subsystem and stored on the
// session as a snapshot. This core treats it as read-only: the mapper and
// validator match against the rack's live inventory, never against a
// static module catalog, so a modification can never reference hardware
// the user does not own.
type Rack struct {
	ID      string   `json:"rack_id"`
	Name    string   `json:"name,omitempty"`
	Modules []Module `json:"modules"`
}

// Module is a single piece of hardware (or virtual equivalent) in a rack.
type Module struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Type         string `json:"type"`
}

// HasModule reports whether the rack contains a module with the given id.
func (r *Rack) HasModule(id string) bool {
	if r == nil {
		return false
	}
	for i := range r.Modules {
		if r.Modules[i].ID == id {
			return true
		}
	}
	return false
}

// FindModules returns all modules whose declared type or name contains the
// given term, case-insensitive. This is the single matching primitive the
// mapper and the feasibility check are built on.
func (r *Rack) FindModules(term string) []Module {
	if r == nil || term == "" {
		return nil
	}
	needle := strings.ToLower(term)
	var matched []Module
	for _, m := range r.Modules {
		if strings.Contains(strings.ToLower(m.Type), needle) ||
			strings.Contains(strings.ToLower(m.Name), needle) {
			matched = append(matched, m)
		}
	}
	return matched
}
