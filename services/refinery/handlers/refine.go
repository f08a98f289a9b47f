// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Patchmind/services/refinery/refine"
)

// refineRequest is the body of POST /v1/sessions/:sessionId/refine.
type refineRequest struct {
	Feedback string `json:"feedback"`
}

// HandleRefine runs one feedback utterance through the refinement
// pipeline and returns the terminal RefinementResult.
func HandleRefine(orch *refine.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")

		var req refineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(req.Feedback) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "feedback is required"})
			return
		}

		result, err := orch.Refine(c.Request.Context(), id, req.Feedback)
		if err != nil {
			slog.Error("refine failed", "session_id", id, "error", err)
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// HandleUndo rolls the session back to its previous patch snapshot.
func HandleUndo(orch *refine.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")

		patch, err := orch.Undo(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, refine.ErrNothingToUndo) {
				c.JSON(http.StatusConflict, gin.H{"error": "nothing to undo"})
				return
			}
			slog.Error("undo failed", "session_id", id, "error", err)
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "current_patch": patch})
	}
}

// HandleClear drops the session's patch and history for a fresh start.
func HandleClear(orch *refine.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")

		if err := orch.Clear(c.Request.Context(), id); err != nil {
			slog.Error("clear failed", "session_id", id, "error", err)
			writeStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
