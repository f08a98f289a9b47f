// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// Intent is what the user wants done to the current patch.
type Intent string

const (
	IntentAdjust  Intent = "adjust"
	IntentAdd     Intent = "add"
	IntentRemove  Intent = "remove"
	IntentReplace Intent = "replace"
	IntentClarify Intent = "clarify"
)

// IsValid reports whether the intent is one of the five enumerated values.
// Oracle output is checked against this before it is trusted.
func (i Intent) IsValid() bool {
	switch i {
	case IntentAdjust, IntentAdd, IntentRemove, IntentReplace, IntentClarify:
		return true
	}
	return false
}

// Direction indicates which way a vague adjustment should move.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// Specificity distinguishes "darker" from "set the cutoff to 2 o'clock".
type Specificity string

const (
	SpecificityVague    Specificity = "vague"
	SpecificitySpecific Specificity = "specific"
)

// IsValid reports whether the specificity is one of the two enumerated values.
func (s Specificity) IsValid() bool {
	return s == SpecificityVague || s == SpecificitySpecific
}

// ParsedFeedback is the classifier's structured reading of a raw utterance.
//
// # Description
//
// Produced either by the deterministic pre-filter (confidence >= 0.9) or by
// the oracle fallback. The Reasoning field is for logging and UX only; no
// control-flow decision may depend on it. Confidence is always within
// [0, 1]; the classifier clamps before returning.
type ParsedFeedback struct {
	Intent      Intent      `json:"intent"`
	Target      string      `json:"target"`
	Direction   Direction   `json:"direction,omitempty"`
	Specificity Specificity `json:"specificity"`
	Value       string      `json:"value,omitempty"`
	Confidence  float64     `json:"confidence"`
	Reasoning   string      `json:"reasoning,omitempty"`
}

// FallbackFeedback is the deterministic value the classifier returns when
// the oracle fails, times out, or produces a payload that does not survive
// boundary validation. The rest of the pipeline always receives a
// well-typed value; the low confidence routes it to clarification.
func FallbackFeedback() ParsedFeedback {
	return ParsedFeedback{
		Intent:      IntentAdjust,
		Target:      "general",
		Specificity: SpecificityVague,
		Confidence:  0.3,
		Reasoning:   "classifier fallback: oracle unavailable or returned malformed output",
	}
}
