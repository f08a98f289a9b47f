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

// SignalType describes what kind of signal a connection carries.
type SignalType string

const (
	SignalAudio SignalType = "audio"
	SignalCV    SignalType = "cv"
	SignalGate  SignalType = "gate"
	SignalClock SignalType = "clock"
	SignalVideo SignalType = "video"
)

// Importance ranks how load-bearing a connection is within a patch.
type Importance string

const (
	// ImportancePrimary marks the main signal path.
	ImportancePrimary Importance = "primary"

	// ImportanceModulation marks connections that shape the primary path.
	ImportanceModulation Importance = "modulation"

	// ImportanceUtility marks housekeeping connections (clocks, resets).
	ImportanceUtility Importance = "utility"
)

// ConnectionSource is the "from" end of a connection: a module output.
type ConnectionSource struct {
	ModuleID   string `json:"module_id"`
	ModuleName string `json:"module_name"`
	OutputName string `json:"output_name"`
}

// ConnectionTarget is the "to" end of a connection: a module input.
type ConnectionTarget struct {
	ModuleID   string `json:"module_id"`
	ModuleName string `json:"module_name"`
	InputName  string `json:"input_name"`
}

// Connection is a single cable in a patch.
//
// The ID is unique within the owning patch. Connection order in the
// patch's slice is the suggested patching order and must be preserved
// through serialization.
type Connection struct {
	ID         string           `json:"id"`
	From       ConnectionSource `json:"from"`
	To         ConnectionTarget `json:"to"`
	SignalType SignalType       `json:"signal_type"`
	Importance Importance       `json:"importance"`
	Note       string           `json:"note,omitempty"`
}

// ParameterSuggestion is a recommended knob/switch setting for a module.
type ParameterSuggestion struct {
	ModuleID   string `json:"module_id"`
	ModuleName string `json:"module_name"`
	Parameter  string `json:"parameter"`
	Value      string `json:"value"`
	Reason     string `json:"reason,omitempty"`
}

// PatchMetadata carries the descriptive fields of a patch.
type PatchMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Techniques  []string `json:"techniques,omitempty"`
	Genres      []string `json:"genres,omitempty"`
}

// Patch is the structured document being iteratively refined: a set of
// typed connections plus parameter suggestions for a specific rack.
//
// # Invariants
//
// Every Connection endpoint must reference a module present in the rack
// inventory associated with the session at the time the patch was created.
// The validator enforces this for every modification before it is applied.
//
// Timestamps are Unix milliseconds UTC so serialization round-trips
// preserve precision exactly.
type Patch struct {
	ID                   string                `json:"patch_id"`
	RackID               string                `json:"rack_id"`
	Metadata             PatchMetadata         `json:"metadata"`
	Connections          []Connection          `json:"connections"`
	ParameterSuggestions []ParameterSuggestion `json:"parameter_suggestions,omitempty"`
	Rationale            string                `json:"rationale,omitempty"`
	Tips                 []string              `json:"tips,omitempty"`
	CreatedAt            int64                 `json:"created_at"`
	UpdatedAt            int64                 `json:"updated_at"`
}

// Clone returns a deep copy of the patch.
//
// # Description
//
// History snapshots and modification application both rely on the copy
// being fully independent: mutating the clone's slices must never be
// visible through the original. Scalar metadata is copied by value.
func (p *Patch) Clone() *Patch {
	if p == nil {
		return nil
	}
	cp := *p

	cp.Connections = make([]Connection, len(p.Connections))
	copy(cp.Connections, p.Connections)

	cp.ParameterSuggestions = make([]ParameterSuggestion, len(p.ParameterSuggestions))
	copy(cp.ParameterSuggestions, p.ParameterSuggestions)

	cp.Tips = append([]string(nil), p.Tips...)
	cp.Metadata.Techniques = append([]string(nil), p.Metadata.Techniques...)
	cp.Metadata.Genres = append([]string(nil), p.Metadata.Genres...)

	return &cp
}

// FindConnection returns the connection with the given id, or nil.
func (p *Patch) FindConnection(id string) *Connection {
	for i := range p.Connections {
		if p.Connections[i].ID == id {
			return &p.Connections[i]
		}
	}
	return nil
}
