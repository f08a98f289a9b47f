// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability exposes the refinery's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

var (
	// RefinementsTotal counts refine calls by terminal outcome:
	// committed, clarification, impossible, validation_failed, not_found,
	// error.
	RefinementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_refinements_total",
		Help: "Total refine calls by terminal outcome",
	}, []string{"outcome"})

	// RefinementDuration tracks end-to-end refine latency, oracle included.
	RefinementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "refinery_refinement_duration_seconds",
		Help:    "End-to-end refine duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
	})

	// OracleDuration tracks classification oracle latency by backend result.
	OracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refinery_oracle_duration_seconds",
		Help:    "Classification oracle call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"result"})

	// PrefilterHits counts classifications resolved without an oracle call.
	PrefilterHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_prefilter_hits_total",
		Help: "Classifications resolved by the deterministic pre-filter",
	}, []string{"rule"})

	// StoreOperations counts session store calls by operation and result.
	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_store_operations_total",
		Help: "Session store operations by operation and result",
	}, []string{"operation", "result"})

	// ActiveSessions is the live session count, refreshed by the
	// background sweep.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "refinery_active_sessions",
		Help: "Live sessions currently resolvable in the store",
	})

	// HistoryEvictions counts patch snapshots evicted from bounded
	// per-session history.
	HistoryEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refinery_history_evictions_total",
		Help: "Patch snapshots evicted from bounded session history",
	})
)
