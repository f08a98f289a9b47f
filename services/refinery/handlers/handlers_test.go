// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchmind/services/refinery/classify"
	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
	"github.com/AleutianAI/Patchmind/services/refinery/mapping"
	"github.com/AleutianAI/Patchmind/services/refinery/refine"
	"github.com/AleutianAI/Patchmind/services/refinery/routes"
	"github.com/AleutianAI/Patchmind/services/refinery/store"
)

// newTestRouter wires the full API surface over an in-memory store. No
// oracle is configured: classification resolves via the pre-filter or the
// deterministic fallback.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	classifier, err := classify.NewClassifier(nil, classify.DefaultConfig(), nil)
	require.NoError(t, err)
	orch := refine.NewOrchestrator(sessions, store.NewSessionLocks(), classifier, mapping.NewHolder(nil), nil)

	router := gin.New()
	routes.SetupRoutes(router, sessions, orch)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createTestSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/sessions", map[string]any{"owner": "tester"})
	require.Equal(t, http.StatusCreated, w.Code)

	var session datatypes.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)
	return session.ID
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	router := newTestRouter(t)
	id := createTestSession(t, router)

	w := doJSON(t, router, http.MethodGet, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)

	w = doJSON(t, router, http.MethodDelete, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSession_StoreUnavailableIs503(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sessions, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	classifier, err := classify.NewClassifier(nil, classify.DefaultConfig(), nil)
	require.NoError(t, err)
	orch := refine.NewOrchestrator(sessions, store.NewSessionLocks(), classifier, mapping.NewHolder(nil), nil)

	router := gin.New()
	routes.SetupRoutes(router, sessions, orch)
	id := createTestSession(t, router)

	// Close the store out from under the handlers.
	require.NoError(t, sessions.Close())

	w := doJSON(t, router, http.MethodGet, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")

	w = doJSON(t, router, http.MethodGet, "/v1/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAttachRack_Validation(t *testing.T) {
	router := newTestRouter(t)
	id := createTestSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/rack",
		map[string]any{"modules": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/rack", datatypes.Rack{
		ID:      "rack-1",
		Modules: []datatypes.Module{{ID: "m1", Name: "Maths Filter", Type: "filter"}},
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAttachPatch_RequiresID(t *testing.T) {
	router := newTestRouter(t)
	id := createTestSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/patch", datatypes.Patch{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefineFlow(t *testing.T) {
	router := newTestRouter(t)
	id := createTestSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/rack", datatypes.Rack{
		ID:      "rack-1",
		Modules: []datatypes.Module{{ID: "m1", Name: "Maths Filter", Type: "filter"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/patch",
		datatypes.Patch{ID: "p0", RackID: "rack-1"})
	require.Equal(t, http.StatusOK, w.Code)

	// Empty feedback is rejected before touching the pipeline.
	w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/refine",
		map[string]string{"feedback": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A greeting resolves deterministically to a clarification.
	w = doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/refine",
		map[string]string{"feedback": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	var result datatypes.RefinementResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.NeedsClarification)
	assert.NotEmpty(t, result.Message)
}

func TestUndo_NothingToUndoIsConflict(t *testing.T) {
	router := newTestRouter(t)
	id := createTestSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/v1/sessions/"+id+"/undo", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStats(t *testing.T) {
	router := newTestRouter(t)
	createTestSession(t, router)
	createTestSession(t, router)

	w := doJSON(t, router, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		ActiveSessions int `json:"active_sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 2, out.ActiveSessions)
}
