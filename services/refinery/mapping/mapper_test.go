// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

func testRack() *datatypes.Rack {
	return &datatypes.Rack{
		ID: "rack-1",
		Modules: []datatypes.Module{
			{ID: "m1", Name: "Plaits", Manufacturer: "Mutable", Type: "oscillator"},
			{ID: "m2", Name: "Maths Filter", Manufacturer: "Make Noise", Type: "filter"},
			{ID: "m3", Name: "Veils VCA", Manufacturer: "Mutable", Type: "vca"},
			{ID: "m4", Name: "Clouds", Manufacturer: "Mutable", Type: "reverb"},
		},
	}
}

func testPatch() *datatypes.Patch {
	return &datatypes.Patch{
		ID:     "p0",
		RackID: "rack-1",
		Connections: []datatypes.Connection{
			{
				ID:         "conn-1",
				From:       datatypes.ConnectionSource{ModuleID: "m1", ModuleName: "Plaits", OutputName: "Out"},
				To:         datatypes.ConnectionTarget{ModuleID: "m3", ModuleName: "Veils VCA", InputName: "In 1"},
				SignalType: datatypes.SignalAudio,
				Importance: datatypes.ImportancePrimary,
			},
			{
				ID:         "conn-2",
				From:       datatypes.ConnectionSource{ModuleID: "m3", ModuleName: "Veils VCA", OutputName: "Out"},
				To:         datatypes.ConnectionTarget{ModuleID: "m4", ModuleName: "Clouds", InputName: "In"},
				SignalType: datatypes.SignalAudio,
				Importance: datatypes.ImportanceModulation,
			},
		},
	}
}

func newTestMapper() *Mapper {
	return NewMapper(NewHolder(nil), nil)
}

func TestMapper_Adjust_DarkerTargetsFilterCutoff(t *testing.T) {
	m := newTestMapper()
	fb := datatypes.ParsedFeedback{
		Intent:      datatypes.IntentAdjust,
		Target:      "darker",
		Direction:   datatypes.DirectionDecrease,
		Specificity: datatypes.SpecificityVague,
		Confidence:  0.9,
	}

	mod := m.Map(fb, testPatch(), testRack())

	require.Len(t, mod.ParameterChanges, 1)
	change := mod.ParameterChanges[0]
	assert.Equal(t, "Maths Filter", change.ModuleName)
	assert.Equal(t, "cutoff", change.Parameter)
	assert.Contains(t, change.NewValue, "close")
	assert.InDelta(t, 0.9, mod.Confidence, 1e-9)
}

func TestMapper_Adjust_SpecificValueWins(t *testing.T) {
	m := newTestMapper()
	fb := datatypes.ParsedFeedback{
		Intent:      datatypes.IntentAdjust,
		Target:      "filter cutoff",
		Specificity: datatypes.SpecificitySpecific,
		Value:       "2 o'clock",
		Confidence:  0.95,
	}

	mod := m.Map(fb, testPatch(), testRack())

	require.Len(t, mod.ParameterChanges, 1)
	assert.Equal(t, "2 o'clock", mod.ParameterChanges[0].NewValue)
}

func TestMapper_Adjust_NoMatchIsEmptyNotError(t *testing.T) {
	m := newTestMapper()
	fb := datatypes.ParsedFeedback{
		Intent:      datatypes.IntentAdjust,
		Target:      "granular shimmer",
		Specificity: datatypes.SpecificityVague,
		Confidence:  0.7,
	}

	mod := m.Map(fb, testPatch(), testRack())

	assert.True(t, mod.IsEmpty())
	assert.InDelta(t, 0.7, mod.Confidence, 1e-9, "confidence is preserved on a no-op")
}

func TestMapper_Add_RoutesFromPrimaryVCA(t *testing.T) {
	m := newTestMapper()
	fb := datatypes.ParsedFeedback{
		Intent:      datatypes.IntentAdd,
		Target:      "reverb",
		Specificity: datatypes.SpecificityVague,
		Confidence:  0.85,
	}

	mod := m.Map(fb, testPatch(), testRack())

	require.Len(t, mod.ConnectionsAdded, 1)
	conn := mod.ConnectionsAdded[0]
	assert.Equal(t, "m3", conn.From.ModuleID, "source must be the primary-path VCA")
	assert.Equal(t, "m4", conn.To.ModuleID)
	assert.Equal(t, datatypes.SignalAudio, conn.SignalType)
	assert.Equal(t, datatypes.ImportanceModulation, conn.Importance)
	assert.NotEmpty(t, conn.Note)
}

func TestMapper_Add_NoReceiverIsEmpty(t *testing.T) {
	m := newTestMapper()
	rack := &datatypes.Rack{Modules: []datatypes.Module{
		{ID: "m4", Name: "Clouds", Type: "reverb"},
	}}
	fb := datatypes.ParsedFeedback{
		Intent:     datatypes.IntentAdd,
		Target:     "reverb",
		Confidence: 0.85,
	}

	mod := m.Map(fb, &datatypes.Patch{ID: "p0"}, rack)
	assert.Empty(t, mod.ConnectionsAdded)
}

func TestMapper_Remove_SelectsByEndpointName(t *testing.T) {
	m := newTestMapper()
	fb := datatypes.ParsedFeedback{
		Intent:      datatypes.IntentRemove,
		Target:      "vca",
		Specificity: datatypes.SpecificityVague,
		Confidence:  0.8,
	}

	mod := m.Map(fb, testPatch(), testRack())
	assert.ElementsMatch(t, []string{"conn-1", "conn-2"}, mod.ConnectionsRemoved)
}

func TestMapper_Remove_NoEndpointMatchIsEmpty(t *testing.T) {
	m := newTestMapper()
	fb := datatypes.ParsedFeedback{
		Intent:     datatypes.IntentRemove,
		Target:     "distortion",
		Confidence: 0.8,
	}

	mod := m.Map(fb, testPatch(), testRack())
	assert.True(t, mod.IsEmpty())
}

func TestMapper_Replace_ConfidenceIsMin(t *testing.T) {
	m := newTestMapper()
	fb := datatypes.ParsedFeedback{
		Intent:      datatypes.IntentReplace,
		Target:      "vca",
		Specificity: datatypes.SpecificityVague,
		Confidence:  0.8,
	}

	mod := m.Map(fb, testPatch(), testRack())

	assert.NotEmpty(t, mod.ConnectionsRemoved)
	assert.LessOrEqual(t, mod.Confidence, 0.8)
}

func TestMapper_Clarify_ZeroEffect(t *testing.T) {
	m := newTestMapper()
	fb := datatypes.ParsedFeedback{Intent: datatypes.IntentClarify, Confidence: 0.95}

	mod := m.Map(fb, testPatch(), testRack())

	assert.True(t, mod.IsEmpty())
	assert.InDelta(t, 0.1, mod.Confidence, 1e-9)
	assert.Equal(t, "clarification required; no changes staged", mod.Description)
}
