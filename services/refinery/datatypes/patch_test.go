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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPatch() *Patch {
	return &Patch{
		ID:     "patch-1",
		RackID: "rack-1",
		Metadata: PatchMetadata{
			Title:      "Generative Bleeps",
			Techniques: []string{"generative"},
		},
		Connections: []Connection{
			{
				ID:         "conn-1",
				From:       ConnectionSource{ModuleID: "m1", ModuleName: "Plaits", OutputName: "Out"},
				To:         ConnectionTarget{ModuleID: "m2", ModuleName: "Veils VCA", InputName: "In 1"},
				SignalType: SignalAudio,
				Importance: ImportancePrimary,
			},
		},
		ParameterSuggestions: []ParameterSuggestion{
			{ModuleID: "m3", ModuleName: "Maths Filter", Parameter: "cutoff", Value: "12 o'clock"},
		},
		Tips: []string{"start with the VCA low"},
	}
}

func TestPatch_Clone_Independence(t *testing.T) {
	original := testPatch()
	clone := original.Clone()

	require.NotSame(t, original, clone)
	assert.Equal(t, original, clone)

	clone.Connections[0].ID = "mutated"
	clone.ParameterSuggestions[0].Value = "3 o'clock"
	clone.Tips[0] = "mutated"
	clone.Metadata.Techniques[0] = "mutated"

	assert.Equal(t, "conn-1", original.Connections[0].ID)
	assert.Equal(t, "12 o'clock", original.ParameterSuggestions[0].Value)
	assert.Equal(t, "start with the VCA low", original.Tips[0])
	assert.Equal(t, "generative", original.Metadata.Techniques[0])
}

func TestPatch_Clone_Nil(t *testing.T) {
	var p *Patch
	assert.Nil(t, p.Clone())
}

func TestPatch_FindConnection(t *testing.T) {
	p := testPatch()
	assert.NotNil(t, p.FindConnection("conn-1"))
	assert.Nil(t, p.FindConnection("missing"))
}

func TestRack_FindModules_CaseInsensitive(t *testing.T) {
	rack := &Rack{Modules: []Module{
		{ID: "m1", Name: "Maths Filter", Type: "filter"},
		{ID: "m2", Name: "Clouds", Type: "granular"},
	}}

	assert.Len(t, rack.FindModules("FILTER"), 1)
	assert.Len(t, rack.FindModules("maths"), 1)
	assert.Empty(t, rack.FindModules("reverb"))
	assert.True(t, rack.HasModule("m2"))
	assert.False(t, rack.HasModule("m9"))
}

func TestIntent_IsValid(t *testing.T) {
	for _, intent := range []Intent{IntentAdjust, IntentAdd, IntentRemove, IntentReplace, IntentClarify} {
		assert.True(t, intent.IsValid(), intent)
	}
	assert.False(t, Intent("delete").IsValid())
	assert.False(t, Intent("").IsValid())
}

func TestFallbackFeedback(t *testing.T) {
	fb := FallbackFeedback()
	assert.Equal(t, IntentAdjust, fb.Intent)
	assert.Equal(t, "general", fb.Target)
	assert.Equal(t, SpecificityVague, fb.Specificity)
	assert.InDelta(t, 0.3, fb.Confidence, 1e-9)
}

func TestSession_RecentMessages(t *testing.T) {
	s := NewSession("owner", false, 60)
	for _, text := range []string{"one", "two", "three"} {
		s.AppendMessage(RoleUser, text)
	}

	recent := s.RecentMessages(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Content)
	assert.Equal(t, "three", recent[1].Content)

	assert.Len(t, s.RecentMessages(10), 3)
	assert.Nil(t, s.RecentMessages(0))
}
