// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the embedded data tables shared by the analyzer and
// the transformation pipeline: the default safety rule patterns and the
// Python standard-library module set.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed safety_rules.yaml
var defaultSafetyRulesYAML []byte

//go:embed stdlib_modules.yaml
var stdlibModulesYAML []byte

// =============================================================================
// Safety Rule Patterns
// =============================================================================

// RuleGroup is one violation kind's pattern set as loaded from YAML.
//
// Thread Safety: immutable after loading; safe for concurrent use.
type RuleGroup struct {
	// Kind is the violation kind tag, e.g. "dangerous_import".
	Kind string `yaml:"kind"`

	// Severity is "error" or "warning".
	Severity string `yaml:"severity"`

	// Message is the violation message template; "{0}" is replaced with
	// the matched text.
	Message string `yaml:"message"`

	// Patterns are line-scoped regexes. Any match fires the rule.
	Patterns []string `yaml:"patterns"`

	// SkipIf, when non-empty, suppresses the whole group if its pattern
	// matches anywhere in the source.
	SkipIf string `yaml:"skip_if,omitempty"`
}

type ruleFile struct {
	Rules []RuleGroup `yaml:"rules"`
}

var (
	safetyOnce   sync.Once
	safetyGroups []RuleGroup
	safetyErr    error
)

// DefaultSafetyPatterns returns the embedded rule groups, loaded and
// validated once per process.
func DefaultSafetyPatterns() ([]RuleGroup, error) {
	safetyOnce.Do(func() {
		groups, err := parseRuleGroups(defaultSafetyRulesYAML)
		if err != nil {
			safetyErr = fmt.Errorf("embedded safety rules are invalid: %w", err)
			return
		}
		safetyGroups = groups
		slog.Debug("loaded default safety rule patterns",
			slog.Int("groups", len(groups)))
	})
	return safetyGroups, safetyErr
}

// LoadRuleOverlay parses additional rule groups from YAML bytes, validated
// the same way as the embedded defaults. Callers append the result to the
// analyzer's rule list.
func LoadRuleOverlay(data []byte) ([]RuleGroup, error) {
	return parseRuleGroups(data)
}

func parseRuleGroups(data []byte) ([]RuleGroup, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule yaml: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rule file defines no rules")
	}
	for i, g := range f.Rules {
		if g.Kind == "" {
			return nil, fmt.Errorf("rule %d: missing kind", i)
		}
		if g.Severity != "error" && g.Severity != "warning" {
			return nil, fmt.Errorf("rule %q: severity must be error or warning, got %q", g.Kind, g.Severity)
		}
		if len(g.Patterns) == 0 {
			return nil, fmt.Errorf("rule %q: no patterns", g.Kind)
		}
		for _, p := range g.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("rule %q: pattern %q: %w", g.Kind, p, err)
			}
		}
		if g.SkipIf != "" {
			if _, err := regexp.Compile(g.SkipIf); err != nil {
				return nil, fmt.Errorf("rule %q: skip_if %q: %w", g.Kind, g.SkipIf, err)
			}
		}
	}
	return f.Rules, nil
}

// =============================================================================
// Standard-Library Module Set
// =============================================================================

type moduleFile struct {
	Modules []string `yaml:"modules"`
}

var (
	stdlibOnce sync.Once
	stdlibSet  map[string]bool
)

// StdlibModules returns the closed set of Python 3.11 standard-library
// top-level module names. The returned map is shared; callers must not
// mutate it.
func StdlibModules() map[string]bool {
	stdlibOnce.Do(func() {
		var f moduleFile
		if err := yaml.Unmarshal(stdlibModulesYAML, &f); err != nil {
			// The file is embedded and covered by tests; a parse failure
			// here is a build defect, not a runtime condition.
			panic(fmt.Sprintf("embedded stdlib module list is invalid: %v", err))
		}
		set := make(map[string]bool, len(f.Modules))
		for _, m := range f.Modules {
			set[m] = true
		}
		stdlibSet = set
		slog.Debug("loaded stdlib module set", slog.Int("modules", len(set)))
	})
	return stdlibSet
}
