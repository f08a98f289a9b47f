// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/Patchmind/services/llm"
	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
	"github.com/AleutianAI/Patchmind/services/refinery/observability"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds classifier tuning knobs.
type Config struct {
	// OracleTimeout bounds a single oracle call. A timeout is treated
	// exactly like malformed output: deterministic fallback.
	OracleTimeout time.Duration

	// MaxContextMessages is how many recent session messages go into the
	// oracle's context summary.
	MaxContextMessages int

	// MaxTokens caps the oracle completion.
	MaxTokens int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		OracleTimeout:      15 * time.Second,
		MaxContextMessages: 4,
		MaxTokens:          512,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("oracle timeout must be positive, got %v", c.OracleTimeout)
	}
	if c.MaxContextMessages < 0 {
		return fmt.Errorf("max context messages must be non-negative, got %d", c.MaxContextMessages)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}

// =============================================================================
// Classifier
// =============================================================================

const oraclePromptTemplate = `You analyze one piece of user feedback about a modular synthesizer patch.

Context:
%s

Feedback: %q

Respond with ONLY a JSON object, no prose, matching exactly:
{
  "intent": "adjust|add|remove|replace|clarify",
  "target": "<module category or parameter the feedback is about, e.g. filter, reverb, delay, distortion, volume>",
  "direction": "increase|decrease (omit if not applicable)",
  "specificity": "vague|specific",
  "value": "<the literal value requested, only when specificity is specific>",
  "confidence": 0.0-1.0,
  "reasoning": "<one sentence>"
}

Notes: "darker"/"muffled" means the filter cutoff should decrease; "brighter" means it should increase. "add X" is intent add with target X. Use intent clarify when the feedback is not actionable.`

// oraclePayload is the wire shape the oracle must produce. Everything is
// validated before any field is trusted.
type oraclePayload struct {
	Intent      string  `json:"intent" validate:"required"`
	Target      string  `json:"target" validate:"required"`
	Direction   string  `json:"direction" validate:"omitempty,oneof=increase decrease"`
	Specificity string  `json:"specificity" validate:"required,oneof=vague specific"`
	Value       string  `json:"value"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning   string  `json:"reasoning"`
}

// Classifier is the two-tier feedback classifier.
//
// # Thread Safety
//
//	Safe for concurrent use; the validator and oracle client are both
//	concurrency-safe and the Classifier holds no mutable state.
type Classifier struct {
	oracle   llm.LLMClient
	cfg      Config
	validate *validator.Validate
	logger   *slog.Logger
}

// NewClassifier creates a Classifier. oracle may be nil (demo deployments
// without a backing model); every non-prefilter input then takes the
// deterministic fallback path.
func NewClassifier(oracle llm.LLMClient, cfg Config, logger *slog.Logger) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("classifier config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		oracle:   oracle,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}, nil
}

// Classify parses text in the context of session. It never returns an
// error: pre-filter hits return immediately, and any oracle failure,
// timeout, or payload that fails validation collapses to
// datatypes.FallbackFeedback.
func (c *Classifier) Classify(ctx context.Context, text string, session *datatypes.Session) datatypes.ParsedFeedback {
	if fb, ok := Prefilter(text); ok {
		c.logger.Debug("prefilter hit", "target", fb.Target, "session_id", session.ID)
		observability.PrefilterHits.WithLabelValues(fb.Target).Inc()
		return fb
	}

	if c.oracle == nil || session.DemoMode {
		c.logger.Debug("oracle skipped", "demo_mode", session.DemoMode, "session_id", session.ID)
		return datatypes.FallbackFeedback()
	}

	prompt := fmt.Sprintf(oraclePromptTemplate, contextSummary(session, c.cfg.MaxContextMessages), text)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.OracleTimeout)
	defer cancel()

	temperature := float32(0.1)
	maxTokens := c.cfg.MaxTokens

	callStart := time.Now()
	raw, err := c.oracle.Generate(callCtx, prompt, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		observability.OracleDuration.WithLabelValues("error").Observe(time.Since(callStart).Seconds())
		c.logger.Warn("oracle call failed, using fallback",
			"session_id", session.ID, "error", err)
		return datatypes.FallbackFeedback()
	}

	fb, err := c.parsePayload(raw)
	if err != nil {
		observability.OracleDuration.WithLabelValues("rejected").Observe(time.Since(callStart).Seconds())
		c.logger.Warn("oracle payload rejected, using fallback",
			"session_id", session.ID, "error", err)
		return datatypes.FallbackFeedback()
	}
	observability.OracleDuration.WithLabelValues("ok").Observe(time.Since(callStart).Seconds())
	return fb
}

// parsePayload extracts, decodes, and validates the oracle's JSON. The
// object may arrive embedded in surrounding prose; everything outside the
// outermost braces is discarded.
func (c *Classifier) parsePayload(raw string) (datatypes.ParsedFeedback, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return datatypes.ParsedFeedback{}, fmt.Errorf("no JSON object in oracle response")
	}

	var payload oraclePayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return datatypes.ParsedFeedback{}, fmt.Errorf("decode oracle payload: %w", err)
	}
	if err := c.validate.Struct(payload); err != nil {
		return datatypes.ParsedFeedback{}, fmt.Errorf("validate oracle payload: %w", err)
	}

	intent := datatypes.Intent(payload.Intent)
	if !intent.IsValid() {
		return datatypes.ParsedFeedback{}, fmt.Errorf("invalid intent %q", payload.Intent)
	}

	conf := payload.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return datatypes.ParsedFeedback{
		Intent:      intent,
		Target:      payload.Target,
		Direction:   datatypes.Direction(payload.Direction),
		Specificity: datatypes.Specificity(payload.Specificity),
		Value:       payload.Value,
		Confidence:  conf,
		Reasoning:   payload.Reasoning,
	}, nil
}

// contextSummary renders the oracle's view of the session: recent turns,
// rack capability flags, and whether a patch exists yet.
func contextSummary(session *datatypes.Session, maxMessages int) string {
	var b strings.Builder

	if session.RackSnapshot != nil && len(session.RackSnapshot.Modules) > 0 {
		types := make(map[string]int)
		for _, m := range session.RackSnapshot.Modules {
			types[strings.ToLower(m.Type)]++
		}
		b.WriteString("Rack module types:")
		for t, n := range types {
			fmt.Fprintf(&b, " %s(%d)", t, n)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Rack: no modules known\n")
	}

	if session.CurrentPatch != nil {
		fmt.Fprintf(&b, "Current patch: %d connections, %d parameter suggestions\n",
			len(session.CurrentPatch.Connections), len(session.CurrentPatch.ParameterSuggestions))
	} else {
		b.WriteString("Current patch: none\n")
	}

	recent := session.RecentMessages(maxMessages)
	if len(recent) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, msg := range recent {
			fmt.Fprintf(&b, "  %s: %s\n", msg.Role, msg.Content)
		}
	}
	return b.String()
}
