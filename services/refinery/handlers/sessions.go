// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin HTTP handlers for the refinery API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
	"github.com/AleutianAI/Patchmind/services/refinery/refine"
	"github.com/AleutianAI/Patchmind/services/refinery/store"
)

// createSessionRequest is the body of POST /v1/sessions.
type createSessionRequest struct {
	Owner    string `json:"owner"`
	DemoMode bool   `json:"demo_mode"`
}

// CreateSession creates a fresh refinement session.
func CreateSession(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		// An empty body is a valid anonymous, non-demo session.
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}

		session, err := sessions.Create(c.Request.Context(), req.Owner, req.DemoMode)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

// GetSession returns the full session document.
func GetSession(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sessions.Get(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// ListSessions returns the ids of all live sessions.
func ListSessions(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := sessions.Keys(c.Request.Context())
		if err != nil {
			slog.Error("failed to list sessions", "error", err)
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_ids": ids, "count": len(ids)})
	}
}

// DeleteSession removes a session and all its patch state.
func DeleteSession(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		if err := sessions.Delete(c.Request.Context(), id); err != nil {
			slog.Error("failed to delete session", "session_id", id, "error", err)
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": id})
	}
}

// AttachRack stores a rack inventory snapshot on the session. The snapshot
// comes from the external scraping/vision subsystem; this service treats
// it as read-only ground truth.
func AttachRack(orch *refine.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		var rack datatypes.Rack
		if err := c.ShouldBindJSON(&rack); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rack payload"})
			return
		}
		if len(rack.Modules) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rack has no modules"})
			return
		}
		if err := orch.AttachRack(c.Request.Context(), id, &rack); err != nil {
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "modules": len(rack.Modules)})
	}
}

// AttachPatch installs a patch as the session's current patch, replacing
// any existing patch state and history.
func AttachPatch(orch *refine.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		var patch datatypes.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch payload"})
			return
		}
		if patch.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "patch_id is required"})
			return
		}
		if err := orch.AttachPatch(c.Request.Context(), id, &patch); err != nil {
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "patch_id": patch.ID})
	}
}

// GetStats reports aggregate store statistics. Not on the hot path; the
// key scan is acceptable here.
func GetStats(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := sessions.Keys(c.Request.Context())
		if err != nil {
			slog.Error("failed to collect stats", "error", err)
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"active_sessions": len(ids)})
	}
}

// writeStoreError maps store errors onto HTTP status codes.
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, store.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
