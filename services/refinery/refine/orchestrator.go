// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refine drives one feedback utterance through classification,
// feasibility, mapping, validation, and commit.
package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/Patchmind/services/refinery/classify"
	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
	"github.com/AleutianAI/Patchmind/services/refinery/mapping"
	"github.com/AleutianAI/Patchmind/services/refinery/observability"
	"github.com/AleutianAI/Patchmind/services/refinery/store"
	"github.com/AleutianAI/Patchmind/services/refinery/validate"
)

// Orchestrator runs the refinement pipeline for one session at a time.
//
// # Description
//
//	Each Refine call performs one store read, zero-or-one oracle call, and
//	at most one store write. Terminal outcomes other than commit perform
//	no session mutation at all, so a failed or ambiguous refinement is
//	always idempotent. The per-session keyed lock serializes concurrent
//	callers against the read-merge-write store.
//
// # Thread Safety
//
//	Safe for concurrent use across sessions; calls against the same
//	session id serialize on the session lock.
type Orchestrator struct {
	store      store.SessionStore
	locks      *store.SessionLocks
	classifier *classify.Classifier
	mapper     *mapping.Mapper
	vocab      *mapping.Holder
	logger     *slog.Logger
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	sessions store.SessionStore,
	locks *store.SessionLocks,
	classifier *classify.Classifier,
	vocab *mapping.Holder,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:      sessions,
		locks:      locks,
		classifier: classifier,
		mapper:     mapping.NewMapper(vocab, logger),
		vocab:      vocab,
		logger:     logger,
	}
}

// Refine processes one piece of user feedback against the session's
// current patch.
//
// # Outputs
//
//	A RefinementResult with exactly one terminal outcome, and an error
//	only when the session store cannot serve the call. Every other
//	failure mode is resolved into the result itself.
func (o *Orchestrator) Refine(ctx context.Context, sessionID, text string) (datatypes.RefinementResult, error) {
	start := time.Now()
	defer func() {
		observability.RefinementDuration.Observe(time.Since(start).Seconds())
	}()

	unlock := o.locks.Lock(sessionID)
	defer unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		// A missing session is a client condition, not pipeline weather.
		outcome := "error"
		if errors.Is(err, store.ErrSessionNotFound) {
			outcome = "not_found"
		}
		observability.RefinementsTotal.WithLabelValues(outcome).Inc()
		return datatypes.RefinementResult{}, err
	}

	if sess.CurrentPatch == nil || sess.RackSnapshot == nil {
		observability.RefinementsTotal.WithLabelValues("clarification").Inc()
		return datatypes.RefinementResult{
			NeedsClarification: true,
			Message:            "There is no patch to refine yet. Attach a rack and generate or upload a patch first.",
		}, nil
	}

	fb := o.classifier.Classify(ctx, text, sess)
	o.logger.Info("feedback classified",
		"session_id", sessionID,
		"intent", fb.Intent,
		"target", fb.Target,
		"confidence", fb.Confidence)

	threshold := o.vocab.Get().ClarifyThreshold
	if fb.Intent == datatypes.IntentClarify || fb.Confidence < threshold {
		observability.RefinementsTotal.WithLabelValues("clarification").Inc()
		return datatypes.RefinementResult{
			NeedsClarification: true,
			Message:            clarificationMessage(text, fb),
		}, nil
	}

	if reason, impossible := o.checkFeasibility(fb, sess.RackSnapshot); impossible {
		observability.RefinementsTotal.WithLabelValues("impossible").Inc()
		return datatypes.RefinementResult{
			ImpossibleRequest: true,
			ImpossibleReason:  reason,
			Message:           reason + ". Consider adding one to the rack and refreshing the snapshot.",
		}, nil
	}

	mod := o.mapper.Map(fb, sess.CurrentPatch, sess.RackSnapshot)
	if mod.IsEmpty() {
		observability.RefinementsTotal.WithLabelValues("clarification").Inc()
		return datatypes.RefinementResult{
			NeedsClarification: true,
			Message:            noMatchMessage(fb),
		}, nil
	}

	if issues := validate.CheckModification(mod, sess.CurrentPatch, sess.RackSnapshot); len(issues) > 0 {
		o.logger.Error("staged modification failed validation",
			"session_id", sessionID,
			"description", mod.Description,
			"issues", issueStrings(issues))
		observability.RefinementsTotal.WithLabelValues("validation_failed").Inc()
		return datatypes.RefinementResult{
			Message: "Something went wrong preparing that change, so nothing was modified. Please try rephrasing.",
		}, nil
	}

	newPatch := ApplyModification(sess.CurrentPatch, mod)
	PushHistory(sess, newPatch)
	sess.AppliedModifications = append(sess.AppliedModifications, mod)

	message := commitMessage(mod)
	sess.AppendMessage(datatypes.RoleUser, text)
	sess.AppendMessage(datatypes.RoleAssistant, message)
	sess.Version++

	if err := o.store.Update(ctx, sess); err != nil {
		observability.RefinementsTotal.WithLabelValues("error").Inc()
		return datatypes.RefinementResult{}, fmt.Errorf("commit refinement: %w", err)
	}

	observability.RefinementsTotal.WithLabelValues("committed").Inc()
	return datatypes.RefinementResult{
		Success:      true,
		UpdatedPatch: newPatch,
		Modification: &mod,
		Message:      message,
	}, nil
}

// Undo rolls the session back to the previous patch snapshot and persists
// the rollback. ErrNothingToUndo when fewer than two snapshots exist.
func (o *Orchestrator) Undo(ctx context.Context, sessionID string) (*datatypes.Patch, error) {
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	restored, err := Undo(sess)
	if err != nil {
		return nil, err
	}
	sess.AppendMessage(datatypes.RoleAssistant, "Rolled back to the previous patch.")
	sess.Version++

	if err := o.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("commit undo: %w", err)
	}
	return restored, nil
}

// Clear drops the session's patch and history for a fresh start. The
// conversation and rack snapshot survive.
func (o *Orchestrator) Clear(ctx context.Context, sessionID string) error {
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	ClearHistory(sess)
	sess.Version++

	if err := o.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// AttachRack stores a fresh rack inventory snapshot on the session.
func (o *Orchestrator) AttachRack(ctx context.Context, sessionID string, rack *datatypes.Rack) error {
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.RackSnapshot = rack
	sess.Version++
	return o.store.Update(ctx, sess)
}

// AttachPatch installs p as the session's current patch and seeds the
// history with it, discarding any previous patch state.
func (o *Orchestrator) AttachPatch(ctx context.Context, sessionID string, p *datatypes.Patch) error {
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.PatchHistory = nil
	sess.AppliedModifications = nil
	PushHistory(sess, p)
	sess.Version++
	return o.store.Update(ctx, sess)
}

// checkFeasibility rejects add requests for addable categories with no
// representative module in the rack.
func (o *Orchestrator) checkFeasibility(fb datatypes.ParsedFeedback, rack *datatypes.Rack) (string, bool) {
	if fb.Intent != datatypes.IntentAdd {
		return "", false
	}
	cat := o.vocab.Get().CategoryFor(fb.Target)
	if cat == nil || !cat.Addable {
		return "", false
	}
	if len(mapping.ModulesFor(rack, cat)) == 0 {
		return fmt.Sprintf("No %s module in rack", cat.Name), true
	}
	return "", false
}

// clarificationMessage picks a targeted follow-up question when the raw
// feedback pattern-matches a known shape, else a generic prompt.
func clarificationMessage(text string, fb datatypes.ParsedFeedback) string {
	switch fb.Target {
	case "undo":
		return "Nothing was changed. To roll back the last refinement, use the undo operation."
	case "save":
		return "Your patch is saved automatically with the session, so there is nothing extra to do."
	case "greeting":
		return "Hi! Tell me how the patch should sound different, for example 'darker', 'more reverb', or 'remove the delay'."
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "better") || strings.Contains(lower, "nicer"):
		return "Better in what way? For example: 'darker', 'more spacious', or 'less harsh'."
	case strings.Contains(lower, "something") || strings.Contains(lower, "different"):
		return "What would you like to change? You can adjust a sound ('brighter'), add an effect ('add reverb'), or remove a connection ('remove the delay')."
	default:
		return "I couldn't tell what to change. Try something like 'more reverb', 'darker', or 'remove the delay'."
	}
}

// noMatchMessage covers understood feedback that touched nothing in the
// rack or patch. Distinct from clarificationMessage, which handles
// ambiguous feedback; here the request was clear but had no hardware to
// land on, a valid no-op rather than an error.
func noMatchMessage(fb datatypes.ParsedFeedback) string {
	if fb.Target != "" && fb.Target != "general" {
		return fmt.Sprintf("I understood you mean %q, but nothing in your rack or patch matches it. Could you name the module directly?", fb.Target)
	}
	return "That request matched nothing in your rack or patch, so nothing was changed. Could you name the module or effect you mean?"
}

// commitMessage renders the applied modification as plain text for the
// downstream renderer.
func commitMessage(mod datatypes.PatchModification) string {
	var parts []string
	if n := len(mod.ParameterChanges); n > 0 {
		for _, c := range mod.ParameterChanges {
			parts = append(parts, fmt.Sprintf("set %s on %s to %s", c.Parameter, c.ModuleName, c.NewValue))
		}
	}
	if n := len(mod.ConnectionsAdded); n > 0 {
		for _, c := range mod.ConnectionsAdded {
			parts = append(parts, fmt.Sprintf("patched %s %s into %s %s", c.From.ModuleName, c.From.OutputName, c.To.ModuleName, c.To.InputName))
		}
	}
	if n := len(mod.ConnectionsRemoved); n > 0 {
		parts = append(parts, fmt.Sprintf("removed %d connection(s)", n))
	}
	if len(parts) == 0 {
		return "Applied: " + mod.Description
	}
	return "Done: " + strings.Join(parts, "; ") + "."
}

func issueStrings(issues []validate.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.String()
	}
	return out
}
