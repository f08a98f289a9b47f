// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/Patchmind/services/llm"
	"github.com/AleutianAI/Patchmind/services/refinery/classify"
	"github.com/AleutianAI/Patchmind/services/refinery/mapping"
	"github.com/AleutianAI/Patchmind/services/refinery/observability"
	"github.com/AleutianAI/Patchmind/services/refinery/refine"
	"github.com/AleutianAI/Patchmind/services/refinery/routes"
	"github.com/AleutianAI/Patchmind/services/refinery/store"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "patchmind-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("refinery-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildOracle selects the classification oracle backend from
// LLM_BACKEND_TYPE. "none" disables the oracle entirely; the classifier
// then relies on the pre-filter plus deterministic fallback.
func buildOracle() (llm.LLMClient, error) {
	switch backend := os.Getenv("LLM_BACKEND_TYPE"); backend {
	case "openai":
		slog.Info("Using OpenAI classification oracle")
		return llm.NewOpenAIClient()
	case "claude", "anthropic":
		slog.Info("Using Anthropic (Claude) classification oracle")
		return llm.NewAnthropicClient()
	case "none":
		slog.Info("Classification oracle disabled")
		return nil, nil
	case "ollama":
		slog.Info("Using Ollama classification oracle")
		return llm.NewOllamaClient()
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama", "value", backend)
		return llm.NewOllamaClient()
	}
}

// sweepSessions refreshes the active-session gauge until ctx is cancelled.
// Badger enforces expiry on its own; this loop only reports.
func sweepSessions(ctx context.Context, sessions store.SessionStore, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ids, err := sessions.Keys(ctx)
			if err != nil {
				slog.Warn("session sweep failed", "error", err)
				continue
			}
			observability.ActiveSessions.Set(float64(len(ids)))
		}
	}
}

func main() {
	port := os.Getenv("REFINERY_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// --- Session store ---
	storeCfg := store.DefaultConfig()
	storeCfg.Path = os.Getenv("PATCHMIND_DATA_DIR")
	if storeCfg.Path == "" {
		storeCfg.Path = "/var/lib/patchmind/badger"
	}
	if raw := os.Getenv("SESSION_TTL_SECONDS"); raw != "" {
		ttl, err := strconv.Atoi(raw)
		if err != nil || ttl <= 0 {
			log.Fatalf("invalid SESSION_TTL_SECONDS: %q", raw)
		}
		storeCfg.TTLSeconds = ttl
	}
	storeCfg.Logger = logger
	sessions, err := store.Open(storeCfg)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer sessions.Close()

	// --- Classification oracle ---
	oracle, err := buildOracle()
	if err != nil {
		log.Fatalf("failed to initialize classification oracle: %v", err)
	}
	classifier, err := classify.NewClassifier(oracle, classify.DefaultConfig(), logger)
	if err != nil {
		log.Fatalf("failed to initialize classifier: %v", err)
	}

	// --- Category vocabulary, with optional hot reload ---
	vocabFile := os.Getenv("VOCAB_FILE")
	var vocab *mapping.Vocabulary
	if vocabFile != "" {
		vocab, err = mapping.LoadVocabulary(vocabFile)
		if err != nil {
			log.Fatalf("failed to load vocabulary: %v", err)
		}
	}
	holder := mapping.NewHolder(vocab)

	orch := refine.NewOrchestrator(sessions, store.NewSessionLocks(), classifier, holder, logger)

	router := gin.Default()
	router.Use(otelgin.Middleware("refinery-service"))
	routes.SetupRoutes(router, sessions, orch)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting the refinery server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweepSessions(gctx, sessions, time.Minute)
	})
	if vocabFile != "" {
		g.Go(func() error {
			err := mapping.Watch(gctx, vocabFile, holder, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("refinery server exited: %v", err)
	}
	slog.Info("refinery server stopped")
}
