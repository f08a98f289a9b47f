// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mapping converts parsed feedback into patch modifications by
// matching against the session's live rack inventory.
//
// The category vocabulary (which words map to which module families, and
// what a vague "more"/"less" means per family) is configuration data, not
// a hard-coded constant, so non-audio rack domains can ship their own
// vocabulary file without code changes.
package mapping

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category describes one module family the mapper can reason about.
type Category struct {
	// Name identifies the category ("filter", "delay", ...). Also used to
	// build user-facing reasons like "No delay module in rack".
	Name string `yaml:"name"`

	// Aliases are feedback words that select this category, matched
	// case-insensitively as substrings of the feedback target and text.
	Aliases []string `yaml:"aliases"`

	// MatchTerms are matched against rack module types and names to find
	// representative hardware ("filter", "vcf").
	MatchTerms []string `yaml:"match_terms"`

	// Parameter is the knob a vague adjustment moves ("cutoff", "mix").
	Parameter string `yaml:"parameter"`

	// IncreaseValue / DecreaseValue are the direction-specific default
	// deltas applied when feedback is vague.
	IncreaseValue string `yaml:"increase_value"`
	DecreaseValue string `yaml:"decrease_value"`

	// Addable subjects the category to the feasibility check: an "add"
	// request for it is rejected up front when the rack has no
	// representative module.
	Addable bool `yaml:"addable"`
}

// Vocabulary is the full category configuration plus pipeline thresholds.
type Vocabulary struct {
	// ClarifyThreshold is the classifier confidence below which the
	// orchestrator short-circuits to a clarification question.
	ClarifyThreshold float64 `yaml:"clarify_threshold"`

	Categories []Category `yaml:"categories"`
}

// DefaultVocabulary returns the built-in audio-domain vocabulary.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		ClarifyThreshold: 0.5,
		Categories: []Category{
			{
				Name:          "filter",
				Aliases:       []string{"filter", "cutoff", "dark", "bright", "tone", "muffled", "harsh"},
				MatchTerms:    []string{"filter", "vcf", "lpf", "hpf"},
				Parameter:     "cutoff",
				IncreaseValue: "open by ~20%",
				DecreaseValue: "close by ~20%",
				Addable:       true,
			},
			{
				Name:          "reverb",
				Aliases:       []string{"reverb", "space", "spacious", "room", "hall", "wash"},
				MatchTerms:    []string{"reverb", "verb"},
				Parameter:     "mix",
				IncreaseValue: "raise by ~15%",
				DecreaseValue: "lower by ~15%",
				Addable:       true,
			},
			{
				Name:          "delay",
				Aliases:       []string{"delay", "echo", "repeats", "bounce"},
				MatchTerms:    []string{"delay", "echo"},
				Parameter:     "feedback",
				IncreaseValue: "raise by ~15%",
				DecreaseValue: "lower by ~15%",
				Addable:       true,
			},
			{
				Name:          "distortion",
				Aliases:       []string{"distortion", "dirty", "grit", "saturate", "crunch", "fuzz"},
				MatchTerms:    []string{"distortion", "drive", "fold", "fuzz", "saturator"},
				Parameter:     "drive",
				IncreaseValue: "raise by ~20%",
				DecreaseValue: "lower by ~20%",
				Addable:       true,
			},
			{
				Name:          "amplifier",
				Aliases:       []string{"volume", "loud", "louder", "quiet", "quieter", "level", "amp"},
				MatchTerms:    []string{"vca", "amplifier", "amp", "output", "mixer"},
				Parameter:     "level",
				IncreaseValue: "raise by ~10%",
				DecreaseValue: "lower by ~10%",
			},
		},
	}
}

// LoadVocabulary parses a yaml vocabulary file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file %s: %w", path, err)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary file %s: %w", path, err)
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vocabulary file %s: %w", path, err)
	}
	return &v, nil
}

// Validate checks the vocabulary is internally consistent.
func (v *Vocabulary) Validate() error {
	if v.ClarifyThreshold < 0 || v.ClarifyThreshold > 1 {
		return fmt.Errorf("clarify_threshold must be in [0,1], got %f", v.ClarifyThreshold)
	}
	if len(v.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	seen := make(map[string]bool, len(v.Categories))
	for _, c := range v.Categories {
		if c.Name == "" {
			return errors.New("category name must not be empty")
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		if len(c.MatchTerms) == 0 {
			return fmt.Errorf("category %q has no match_terms", c.Name)
		}
		if c.Parameter == "" {
			return fmt.Errorf("category %q has no parameter", c.Name)
		}
	}
	return nil
}

// CategoryFor resolves a feedback target (or raw text) to a category by
// alias or name substring, case-insensitive. Returns nil when nothing
// matches; callers treat that as "no category", not an error.
func (v *Vocabulary) CategoryFor(target string) *Category {
	needle := strings.ToLower(target)
	if needle == "" {
		return nil
	}
	for i := range v.Categories {
		c := &v.Categories[i]
		if strings.Contains(needle, strings.ToLower(c.Name)) {
			return c
		}
		for _, alias := range c.Aliases {
			if strings.Contains(needle, strings.ToLower(alias)) {
				return c
			}
		}
	}
	return nil
}

// Amplifier returns the amplifier-stage category, the receiving end for
// newly added effect connections. Nil when the vocabulary has none.
func (v *Vocabulary) Amplifier() *Category {
	for i := range v.Categories {
		if v.Categories[i].Name == "amplifier" {
			return &v.Categories[i]
		}
	}
	return nil
}

// ValueFor returns the direction-specific default delta for vague
// adjustments. An unknown or empty direction falls back to a neutral
// instruction so the mapper never emits an empty value.
func (c *Category) ValueFor(direction string) string {
	switch direction {
	case "increase":
		return c.IncreaseValue
	case "decrease":
		return c.DecreaseValue
	default:
		return "adjust " + c.Parameter + " to taste"
	}
}
