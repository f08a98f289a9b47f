// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify turns raw user text into structured ParsedFeedback.
//
// Classification is two-tier: a deterministic pre-filter handles the
// unambiguous cases without spending an oracle call, and everything else
// falls through to the oracle with strict boundary validation on the way
// back. The package never returns an error to its caller; every failure
// mode collapses to a well-typed low-confidence fallback.
package classify

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/AleutianAI/Patchmind/services/refinery/datatypes"
)

// prefilterConfidence is the confidence attached to every pre-filter hit.
// Must stay >= 0.9: pre-filter hits are by definition unambiguous.
const prefilterConfidence = 0.95

var (
	greetingWords = map[string]bool{
		"hi": true, "hello": true, "hey": true, "yo": true,
		"howdy": true, "greetings": true, "sup": true,
	}

	saveRe = regexp.MustCompile(`(?i)\b(save|keep|store)\b.*\b(this|that|it|patch)\b|\bsave\b`)
	undoRe = regexp.MustCompile(`(?i)\bundo\b|\brevert\b|\bgo back\b|\broll ?back\b`)
)

// Prefilter applies the deterministic rules. The second return is true
// when a rule matched and the result should be used without consulting
// the oracle.
//
// Rules, in order: explicit undo keywords, explicit save keywords,
// greetings, gibberish heuristics (length < 3, a repeated-character run of
// 5+, or 5+ consecutive uppercase letters containing no vowel).
func Prefilter(text string) (datatypes.ParsedFeedback, bool) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if undoRe.MatchString(trimmed) {
		return datatypes.ParsedFeedback{
			Intent:      datatypes.IntentClarify,
			Target:      "undo",
			Specificity: datatypes.SpecificitySpecific,
			Confidence:  prefilterConfidence,
			Reasoning:   "explicit undo keyword; handled by the undo operation, not a refinement",
		}, true
	}
	if saveRe.MatchString(trimmed) {
		return datatypes.ParsedFeedback{
			Intent:      datatypes.IntentClarify,
			Target:      "save",
			Specificity: datatypes.SpecificitySpecific,
			Confidence:  prefilterConfidence,
			Reasoning:   "explicit save keyword; the current patch is already persisted with the session",
		}, true
	}
	if isGreeting(lower) {
		return datatypes.ParsedFeedback{
			Intent:      datatypes.IntentClarify,
			Target:      "greeting",
			Specificity: datatypes.SpecificityVague,
			Confidence:  prefilterConfidence,
			Reasoning:   "greeting, no actionable feedback",
		}, true
	}
	if isGibberish(trimmed) {
		return datatypes.ParsedFeedback{
			Intent:      datatypes.IntentClarify,
			Target:      "gibberish",
			Specificity: datatypes.SpecificityVague,
			Confidence:  prefilterConfidence,
			Reasoning:   "input failed gibberish heuristics",
		}, true
	}
	return datatypes.ParsedFeedback{}, false
}

// isGreeting matches one- or two-word openers like "hi" or "hello there".
func isGreeting(lower string) bool {
	fields := strings.Fields(strings.Trim(lower, "!.,?"))
	if len(fields) == 0 || len(fields) > 2 {
		return false
	}
	return greetingWords[strings.Trim(fields[0], "!.,?")]
}

// isGibberish applies length, repeated-run, and caps-run heuristics.
func isGibberish(text string) bool {
	if len([]rune(text)) < 3 {
		return true
	}
	if longestRepeatRun(text) >= 5 {
		return true
	}
	return hasCapsRunWithoutVowel(text, 5)
}

// longestRepeatRun returns the length of the longest run of one repeated
// character.
func longestRepeatRun(text string) int {
	var prev rune
	run, best := 0, 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// hasCapsRunWithoutVowel reports whether text contains a run of at least n
// consecutive uppercase letters with no vowel among them.
func hasCapsRunWithoutVowel(text string, n int) bool {
	var run []rune
	check := func() bool {
		if len(run) < n {
			return false
		}
		for _, r := range run {
			switch unicode.ToLower(r) {
			case 'a', 'e', 'i', 'o', 'u':
				return false
			}
		}
		return true
	}
	for _, r := range text {
		if unicode.IsUpper(r) {
			run = append(run, r)
			continue
		}
		if check() {
			return true
		}
		run = run[:0]
	}
	return check()
}
