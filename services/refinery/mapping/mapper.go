// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mapping

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

// Mapper translates parsed feedback into a staged PatchModification.
//
// # Description
//
//	The mapper is deterministic: the same feedback against the same patch
//	and rack always stages the same changes (connection ids excepted,
//	which are regenerated at apply time). It never mutates its inputs and
//	never talks to the oracle; all language understanding happened in
//	the classify stage.
//
// # Thread Safety
//
//	Safe for concurrent use. Vocabulary reads go through the Holder,
//	which serializes against hot-reload swaps.
type Mapper struct {
	vocab  *Holder
	logger *slog.Logger
}

// NewMapper creates a Mapper reading vocabulary from holder.
func NewMapper(holder *Holder, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{vocab: holder, logger: logger}
}

// Map stages the modification implied by fb against the current patch and
// rack. An empty modification (IsEmpty true) means the feedback matched no
// actionable hardware; the orchestrator turns that into a clarification.
func (m *Mapper) Map(fb datatypes.ParsedFeedback, patch *datatypes.Patch, rack *datatypes.Rack) datatypes.PatchModification {
	vocab := m.vocab.Get()
	switch fb.Intent {
	case datatypes.IntentAdjust:
		return m.mapAdjust(vocab, fb, patch, rack)
	case datatypes.IntentAdd:
		return m.mapAdd(vocab, fb, patch, rack)
	case datatypes.IntentRemove:
		return m.mapRemove(vocab, fb, patch)
	case datatypes.IntentReplace:
		return m.mapReplace(vocab, fb, patch, rack)
	case datatypes.IntentClarify:
		return datatypes.PatchModification{
			Description: "clarification required; no changes staged",
			Confidence:  0.1,
		}
	default:
		m.logger.Warn("unknown feedback intent", "intent", fb.Intent)
		return datatypes.PatchModification{
			Description: "clarification required; no changes staged",
			Confidence:  0.1,
		}
	}
}

// mapAdjust produces one parameter change per rack module matching the
// target's category.
func (m *Mapper) mapAdjust(vocab *Vocabulary, fb datatypes.ParsedFeedback, patch *datatypes.Patch, rack *datatypes.Rack) datatypes.PatchModification {
	cat := vocab.CategoryFor(fb.Target)
	if cat == nil {
		m.logger.Debug("adjust target matched no category", "target", fb.Target)
		return datatypes.PatchModification{
			Description: fmt.Sprintf("no module category matches %q", fb.Target),
			Confidence:  fb.Confidence,
		}
	}

	modules := ModulesFor(rack, cat)
	if len(modules) == 0 {
		return datatypes.PatchModification{
			Description: fmt.Sprintf("rack has no %s module to adjust", cat.Name),
			Confidence:  fb.Confidence,
		}
	}

	value := fb.Value
	if fb.Specificity == datatypes.SpecificityVague || value == "" {
		value = cat.ValueFor(string(fb.Direction))
	}

	changes := make([]datatypes.ParameterChange, 0, len(modules))
	for _, mod := range modules {
		changes = append(changes, datatypes.ParameterChange{
			ModuleID:   mod.ID,
			ModuleName: mod.Name,
			Parameter:  cat.Parameter,
			OldValue:   currentSuggestion(patch, mod.ID, cat.Parameter),
			NewValue:   value,
			Reasoning:  fmt.Sprintf("feedback %q maps to %s %s", fb.Target, cat.Name, cat.Parameter),
		})
	}
	return datatypes.PatchModification{
		Description:      fmt.Sprintf("adjust %s on %d %s module(s)", cat.Parameter, len(changes), cat.Name),
		ParameterChanges: changes,
		Confidence:       fb.Confidence,
	}
}

// mapAdd routes an existing primary amplifier-stage output through the
// first rack module matching the requested category.
func (m *Mapper) mapAdd(vocab *Vocabulary, fb datatypes.ParsedFeedback, patch *datatypes.Patch, rack *datatypes.Rack) datatypes.PatchModification {
	cat := vocab.CategoryFor(fb.Target)
	if cat == nil {
		return datatypes.PatchModification{
			Description: fmt.Sprintf("no module category matches %q", fb.Target),
			Confidence:  fb.Confidence,
		}
	}

	modules := ModulesFor(rack, cat)
	if len(modules) == 0 {
		return datatypes.PatchModification{
			Description: fmt.Sprintf("rack has no %s module", cat.Name),
			Confidence:  fb.Confidence,
		}
	}
	effect := modules[0]

	source := m.amplifierSource(vocab, patch, rack)
	if source == nil {
		return datatypes.PatchModification{
			Description: "no amplifier-stage module found to feed the new connection",
			Confidence:  fb.Confidence,
		}
	}

	conn := datatypes.Connection{
		ID: uuid.New().String(),
		From: datatypes.ConnectionSource{
			ModuleID:   source.ID,
			ModuleName: source.Name,
			OutputName: "Out",
		},
		To: datatypes.ConnectionTarget{
			ModuleID:   effect.ID,
			ModuleName: effect.Name,
			InputName:  "In",
		},
		SignalType: datatypes.SignalAudio,
		Importance: datatypes.ImportanceModulation,
		Note:       fmt.Sprintf("route %s through %s", source.Name, effect.Name),
	}
	return datatypes.PatchModification{
		Description:      fmt.Sprintf("add %s: %s -> %s", cat.Name, source.Name, effect.Name),
		ConnectionsAdded: []datatypes.Connection{conn},
		Confidence:       fb.Confidence,
	}
}

// mapRemove stages removal of every connection whose endpoints mention the
// target category.
func (m *Mapper) mapRemove(vocab *Vocabulary, fb datatypes.ParsedFeedback, patch *datatypes.Patch) datatypes.PatchModification {
	terms := removalTerms(vocab, fb.Target)

	var removed []string
	for _, conn := range patch.Connections {
		if connectionMentions(conn, terms) {
			removed = append(removed, conn.ID)
		}
	}
	if len(removed) == 0 {
		return datatypes.PatchModification{
			Description: fmt.Sprintf("no connection touches %q", fb.Target),
			Confidence:  fb.Confidence,
		}
	}
	return datatypes.PatchModification{
		Description:        fmt.Sprintf("remove %d connection(s) touching %q", len(removed), fb.Target),
		ConnectionsRemoved: removed,
		Confidence:         fb.Confidence,
	}
}

// mapReplace is removal plus addition for the same target. Combined
// confidence is the weaker of the two legs.
func (m *Mapper) mapReplace(vocab *Vocabulary, fb datatypes.ParsedFeedback, patch *datatypes.Patch, rack *datatypes.Rack) datatypes.PatchModification {
	removal := m.mapRemove(vocab, fb, patch)
	addition := m.mapAdd(vocab, fb, patch, rack)

	mod := datatypes.PatchModification{
		Description:        fmt.Sprintf("replace %s routing", fb.Target),
		ConnectionsAdded:   addition.ConnectionsAdded,
		ConnectionsRemoved: removal.ConnectionsRemoved,
		Confidence:         fb.Confidence,
	}
	if addition.Confidence < mod.Confidence {
		mod.Confidence = addition.Confidence
	}
	if removal.Confidence < mod.Confidence {
		mod.Confidence = removal.Confidence
	}
	return mod
}

// amplifierSource finds the module feeding the new connection: prefer an
// amplifier-category module already on a primary connection in the patch,
// then any amplifier-category module in the rack.
func (m *Mapper) amplifierSource(vocab *Vocabulary, patch *datatypes.Patch, rack *datatypes.Rack) *datatypes.Module {
	amp := vocab.Amplifier()
	if amp == nil {
		return nil
	}
	candidates := ModulesFor(rack, amp)
	if len(candidates) == 0 {
		return nil
	}
	for _, conn := range patch.Connections {
		if conn.Importance != datatypes.ImportancePrimary {
			continue
		}
		for i := range candidates {
			if candidates[i].ID == conn.From.ModuleID || candidates[i].ID == conn.To.ModuleID {
				return &candidates[i]
			}
		}
	}
	return &candidates[0]
}

// currentSuggestion returns the value a previous refinement staged for the
// same knob, or "current" when the patch has none.
func currentSuggestion(patch *datatypes.Patch, moduleID, parameter string) string {
	for _, s := range patch.ParameterSuggestions {
		if s.ModuleID == moduleID && s.Parameter == parameter {
			return s.Value
		}
	}
	return "current"
}

// ModulesFor returns rack modules whose type or name contains any of the
// category's match terms, deduplicated by id. The feasibility check uses
// the same matching as the mapper so the two can never disagree.
func ModulesFor(rack *datatypes.Rack, cat *Category) []datatypes.Module {
	var out []datatypes.Module
	seen := make(map[string]bool)
	for _, term := range cat.MatchTerms {
		for _, mod := range rack.FindModules(term) {
			if !seen[mod.ID] {
				seen[mod.ID] = true
				out = append(out, mod)
			}
		}
	}
	return out
}

// removalTerms builds the endpoint-name search terms for a removal target:
// the resolved category's name and match terms, or the raw target when no
// category matches.
func removalTerms(vocab *Vocabulary, target string) []string {
	cat := vocab.CategoryFor(target)
	if cat == nil {
		return []string{strings.ToLower(target)}
	}
	terms := make([]string, 0, len(cat.MatchTerms)+1)
	terms = append(terms, strings.ToLower(cat.Name))
	for _, t := range cat.MatchTerms {
		terms = append(terms, strings.ToLower(t))
	}
	return terms
}

func connectionMentions(conn datatypes.Connection, terms []string) bool {
	from := strings.ToLower(conn.From.ModuleName)
	to := strings.ToLower(conn.To.ModuleName)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(from, term) || strings.Contains(to, term) {
			return true
		}
	}
	return false
}
