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
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchmind/services/llm"
	"github.com/AleutianAI/Patchmind/services/refinery/classify"
	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
	"github.com/AleutianAI/Patchmind/services/refinery/mapping"
	"github.com/AleutianAI/Patchmind/services/refinery/observability"
	"github.com/AleutianAI/Patchmind/services/refinery/store"
)

// scriptedOracle returns canned JSON payloads in order, repeating the last
// one when the script runs out.
type scriptedOracle struct {
	responses []string
	calls     int
}

func (s *scriptedOracle) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], nil
}

const adjustFilterPayload = `{"intent":"adjust","target":"filter","direction":"decrease","specificity":"vague","confidence":0.9,"reasoning":"darker means lower cutoff"}`
const addDelayPayload = `{"intent":"add","target":"delay","specificity":"vague","confidence":0.9}`
const lowConfidencePayload = `{"intent":"adjust","target":"general","specificity":"vague","confidence":0.2}`
const adjustChorusPayload = `{"intent":"adjust","target":"chorus","direction":"increase","specificity":"vague","confidence":0.9}`

func testRack() *datatypes.Rack {
	return &datatypes.Rack{Modules: []datatypes.Module{
		{ID: "m1", Name: "Plaits", Type: "oscillator"},
		{ID: "m2", Name: "Maths Filter", Type: "filter"},
		{ID: "m3", Name: "Veils VCA", Type: "vca"},
	}}
}

// newTestOrchestrator builds an orchestrator over an in-memory store and a
// scripted oracle, plus a session that already has a rack and a patch.
func newTestOrchestrator(t *testing.T, oracle llm.LLMClient) (*Orchestrator, store.SessionStore, *datatypes.Session) {
	t.Helper()

	sessions, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	classifier, err := classify.NewClassifier(oracle, classify.DefaultConfig(), nil)
	require.NoError(t, err)

	orch := NewOrchestrator(sessions, store.NewSessionLocks(), classifier, mapping.NewHolder(nil), nil)

	ctx := context.Background()
	sess, err := sessions.Create(ctx, "tester", false)
	require.NoError(t, err)

	sess.RackSnapshot = testRack()
	PushHistory(sess, &datatypes.Patch{
		ID:     "p0",
		RackID: "rack-1",
		Connections: []datatypes.Connection{{
			ID:         "conn-1",
			From:       datatypes.ConnectionSource{ModuleID: "m1", ModuleName: "Plaits", OutputName: "Out"},
			To:         datatypes.ConnectionTarget{ModuleID: "m3", ModuleName: "Veils VCA", InputName: "In 1"},
			SignalType: datatypes.SignalAudio,
			Importance: datatypes.ImportancePrimary,
		}},
	})
	require.NoError(t, sessions.Update(ctx, sess))
	return orch, sessions, sess
}

func TestRefine_CommitsAdjustment(t *testing.T) {
	orch, sessions, sess := newTestOrchestrator(t, &scriptedOracle{responses: []string{adjustFilterPayload}})
	ctx := context.Background()

	result, err := orch.Refine(ctx, sess.ID, "darker")
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.NotNil(t, result.UpdatedPatch)
	require.NotNil(t, result.Modification)
	require.Len(t, result.Modification.ParameterChanges, 1)
	assert.Equal(t, "Maths Filter", result.Modification.ParameterChanges[0].ModuleName)
	assert.Equal(t, "cutoff", result.Modification.ParameterChanges[0].Parameter)
	assert.NotEmpty(t, result.Message)

	// Committed durably: the stored session carries the new patch version
	// and the conversation turns.
	stored, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, result.UpdatedPatch.ID, stored.CurrentPatch.ID)
	assert.Len(t, stored.PatchHistory, 2)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, "darker", stored.Messages[0].Content)
	assert.Equal(t, int64(1), stored.Version)
}

func TestRefine_LowConfidenceIsIdempotent(t *testing.T) {
	orch, sessions, sess := newTestOrchestrator(t, &scriptedOracle{responses: []string{lowConfidencePayload}})
	ctx := context.Background()

	result, err := orch.Refine(ctx, sess.ID, "hmm, something is off somehow")
	require.NoError(t, err)

	assert.True(t, result.NeedsClarification)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)

	stored, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "p0", stored.CurrentPatch.ID, "failed refinement must not mutate the session")
	assert.Len(t, stored.PatchHistory, 1)
	assert.Empty(t, stored.Messages)
}

func TestRefine_UnmatchedTargetNamesIt(t *testing.T) {
	orch, sessions, sess := newTestOrchestrator(t, &scriptedOracle{responses: []string{adjustChorusPayload}})
	ctx := context.Background()

	result, err := orch.Refine(ctx, sess.ID, "more chorus please")
	require.NoError(t, err)

	// Clear intent with nothing to land on: a no-op, surfaced with the
	// unmatched target named rather than the generic ambiguity prompt.
	assert.True(t, result.NeedsClarification)
	assert.Contains(t, result.Message, `"chorus"`)
	assert.False(t, result.Success)

	stored, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "p0", stored.CurrentPatch.ID)
	assert.Empty(t, stored.Messages)
}

func TestRefine_ImpossibleAddNamesMissingCategory(t *testing.T) {
	orch, sessions, sess := newTestOrchestrator(t, &scriptedOracle{responses: []string{addDelayPayload}})
	ctx := context.Background()

	result, err := orch.Refine(ctx, sess.ID, "add delay")
	require.NoError(t, err)

	assert.True(t, result.ImpossibleRequest)
	assert.Equal(t, "No delay module in rack", result.ImpossibleReason)
	assert.False(t, result.Success)

	stored, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "p0", stored.CurrentPatch.ID)
}

func TestRefine_HistoryStaysBounded(t *testing.T) {
	orch, sessions, sess := newTestOrchestrator(t, &scriptedOracle{responses: []string{adjustFilterPayload}})
	ctx := context.Background()

	for i := 0; i < HistoryCapacity+2; i++ {
		result, err := orch.Refine(ctx, sess.ID, "darker")
		require.NoError(t, err)
		require.True(t, result.Success)
	}

	stored, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, stored.PatchHistory, HistoryCapacity)
}

func TestRefine_UndoRoundTrip(t *testing.T) {
	orch, sessions, sess := newTestOrchestrator(t, &scriptedOracle{responses: []string{adjustFilterPayload}})
	ctx := context.Background()

	result, err := orch.Refine(ctx, sess.ID, "darker")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotEqual(t, "p0", result.UpdatedPatch.ID)

	restored, err := orch.Undo(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "p0", restored.ID)

	stored, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "p0", stored.CurrentPatch.ID)

	_, err = orch.Undo(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestRefine_PrefilterShortCircuits(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{adjustFilterPayload}}
	orch, _, sess := newTestOrchestrator(t, oracle)

	result, err := orch.Refine(context.Background(), sess.ID, "hi")
	require.NoError(t, err)

	assert.True(t, result.NeedsClarification)
	assert.Zero(t, oracle.calls, "greetings must resolve without an oracle call")
}

func TestRefine_NoPatchYet(t *testing.T) {
	orch, sessions, _ := newTestOrchestrator(t, &scriptedOracle{responses: []string{adjustFilterPayload}})
	ctx := context.Background()

	bare, err := sessions.Create(ctx, "", false)
	require.NoError(t, err)

	result, err := orch.Refine(ctx, bare.ID, "darker")
	require.NoError(t, err)
	assert.True(t, result.NeedsClarification)
}

func TestRefine_UnknownSession(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &scriptedOracle{responses: []string{adjustFilterPayload}})

	before := testutil.ToFloat64(observability.RefinementsTotal.WithLabelValues("not_found"))
	errBefore := testutil.ToFloat64(observability.RefinementsTotal.WithLabelValues("error"))

	_, err := orch.Refine(context.Background(), "no-such-id", "darker")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)

	after := testutil.ToFloat64(observability.RefinementsTotal.WithLabelValues("not_found"))
	assert.Equal(t, before+1, after, "a missing session counts as not_found")
	assert.Equal(t, errBefore, testutil.ToFloat64(observability.RefinementsTotal.WithLabelValues("error")),
		"a missing session is not a pipeline error")
}

func TestClear_DropsPatchState(t *testing.T) {
	orch, sessions, sess := newTestOrchestrator(t, &scriptedOracle{responses: []string{adjustFilterPayload}})
	ctx := context.Background()

	require.NoError(t, orch.Clear(ctx, sess.ID))

	stored, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CurrentPatch)
	assert.Empty(t, stored.PatchHistory)
	assert.NotNil(t, stored.RackSnapshot, "the rack snapshot survives a clear")
}

func TestAttachPatch_SeedsHistory(t *testing.T) {
	orch, sessions, sess := newTestOrchestrator(t, &scriptedOracle{responses: []string{adjustFilterPayload}})
	ctx := context.Background()

	require.NoError(t, orch.AttachPatch(ctx, sess.ID, &datatypes.Patch{ID: "fresh"}))

	stored, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.CurrentPatch.ID)
	assert.Len(t, stored.PatchHistory, 1)
	assert.Empty(t, stored.AppliedModifications)
}
