// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/Patchmind/services/refinery/handlers"
	"github.com/AleutianAI/Patchmind/services/refinery/refine"
	"github.com/AleutianAI/Patchmind/services/refinery/store"
)

// SetupRoutes registers the refinery API surface.
func SetupRoutes(router *gin.Engine, sessions store.SessionStore, orch *refine.Orchestrator) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/stats", handlers.GetStats(sessions))

		sessionRoutes := v1.Group("/sessions")
		{
			sessionRoutes.POST("", handlers.CreateSession(sessions))
			sessionRoutes.GET("", handlers.ListSessions(sessions))
			sessionRoutes.GET("/:sessionId", handlers.GetSession(sessions))
			sessionRoutes.DELETE("/:sessionId", handlers.DeleteSession(sessions))

			sessionRoutes.POST("/:sessionId/rack", handlers.AttachRack(orch))
			sessionRoutes.POST("/:sessionId/patch", handlers.AttachPatch(orch))
			sessionRoutes.POST("/:sessionId/refine", handlers.HandleRefine(orch))
			sessionRoutes.POST("/:sessionId/undo", handlers.HandleUndo(orch))
			sessionRoutes.POST("/:sessionId/clear", handlers.HandleClear(orch))
		}
	}
}
