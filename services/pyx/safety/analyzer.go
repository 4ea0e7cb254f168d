// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package safety flags dangerous Python code patterns: module imports,
// dynamic execution, filesystem and network access, dunder escapes,
// insecure deserialization, FFI, infinite loops, resource bombs, and
// shell-injection shapes.
//
// Rules are deliberately syntactic, line-scoped regex matchers so reports
// are reproducible; the analyzer itself never fails.
package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/pyx/services/pyx/config"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	analyzeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyx",
		Subsystem: "safety",
		Name:      "analyze_total",
		Help:      "Analysis outcomes: safe, unsafe",
	}, []string{"outcome"})

	violationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyx",
		Subsystem: "safety",
		Name:      "violation_total",
		Help:      "Violations emitted, by kind",
	}, []string{"kind"})

	analyzeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pyx",
		Subsystem: "safety",
		Name:      "analyze_duration_seconds",
		Help:      "Wall time of Analyze calls",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var safetyTracer = otel.Tracer("pyx.safety")

// =============================================================================
// Report Model
// =============================================================================

// Severity grades a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is a single rule match. Line is 1-based, counting
// newline-terminated lines; zero means no line anchor and is omitted from
// JSON.
type Violation struct {
	Kind     string   `json:"type"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
	Severity Severity `json:"severity"`
}

// Report is the analysis result. Safe is true iff Violations is empty.
type Report struct {
	Safe       bool        `json:"safe"`
	Violations []Violation `json:"violations"`
}

// =============================================================================
// Rules
// =============================================================================

// Rule is one violation kind's matcher set.
//
// Thread Safety: immutable after construction; safe for concurrent use.
type Rule struct {
	// Kind is the violation kind tag.
	Kind string

	// Patterns are line-scoped; any match fires the rule for that line.
	Patterns []*regexp.Regexp

	// MessageFn renders the violation message from the matched text.
	MessageFn func(match string) string

	// Severity of every violation this rule emits.
	Severity Severity

	// SkipIf, when non-nil, suppresses the rule entirely if it reports
	// true for the whole source.
	SkipIf func(source string) bool
}

// CompileRules turns validated YAML rule groups into executable rules.
func CompileRules(groups []config.RuleGroup) []Rule {
	rules := make([]Rule, 0, len(groups))
	for _, g := range groups {
		patterns := make([]*regexp.Regexp, 0, len(g.Patterns))
		for _, p := range g.Patterns {
			patterns = append(patterns, regexp.MustCompile(p))
		}
		template := g.Message
		rule := Rule{
			Kind:     g.Kind,
			Patterns: patterns,
			Severity: Severity(g.Severity),
			MessageFn: func(match string) string {
				return strings.ReplaceAll(template, "{0}", match)
			},
		}
		if g.SkipIf != "" {
			skip := regexp.MustCompile(g.SkipIf)
			rule.SkipIf = func(source string) bool {
				return skip.MatchString(source)
			}
		}
		rules = append(rules, rule)
	}
	return rules
}

// DefaultRules returns the embedded rule set. The embedded YAML is covered
// by tests; a load failure is a build defect and panics.
func DefaultRules() []Rule {
	groups, err := config.DefaultSafetyPatterns()
	if err != nil {
		panic(fmt.Sprintf("safety: %v", err))
	}
	return CompileRules(groups)
}

// =============================================================================
// Analyzer
// =============================================================================

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRules appends caller rules after the defaults. Rules run in
// declaration order.
func WithRules(rules ...Rule) Option {
	return func(a *Analyzer) {
		a.rules = append(a.rules, rules...)
	}
}

// Analyzer applies its rule list to sources.
//
// Thread Safety: safe for concurrent use once constructed.
type Analyzer struct {
	rules []Rule
}

// NewAnalyzer creates an Analyzer carrying the default rules plus any
// options.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{rules: DefaultRules()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAnalyzer = NewAnalyzer()

// Analyze runs the default rule set over source.
func Analyze(source string) *Report {
	return defaultAnalyzer.Analyze(context.Background(), source)
}

// Analyze scans source line by line and reports every rule match. It never
// fails: an empty report on empty input is valid.
func (a *Analyzer) Analyze(ctx context.Context, source string) *Report {
	_, span := safetyTracer.Start(ctx, "safety.Analyzer.Analyze",
		trace.WithAttributes(attribute.Int("source_bytes", len(source))))
	defer span.End()

	start := time.Now()
	defer func() { analyzeDuration.Observe(time.Since(start).Seconds()) }()

	lines := strings.Split(source, "\n")
	violations := []Violation{}

	for _, rule := range a.rules {
		if rule.SkipIf != nil && rule.SkipIf(source) {
			continue
		}
		for lineNo, line := range lines {
			for _, pattern := range rule.Patterns {
				match := pattern.FindString(line)
				if match == "" {
					continue
				}
				violations = append(violations, Violation{
					Kind:     rule.Kind,
					Message:  rule.MessageFn(strings.TrimSpace(match)),
					Line:     lineNo + 1,
					Severity: rule.Severity,
				})
				violationTotal.WithLabelValues(rule.Kind).Inc()
				break // one violation per rule per line
			}
		}
	}

	report := &Report{Safe: len(violations) == 0, Violations: violations}
	if report.Safe {
		analyzeTotal.WithLabelValues("safe").Inc()
	} else {
		analyzeTotal.WithLabelValues("unsafe").Inc()
	}
	span.SetAttributes(
		attribute.Int("violations", len(violations)),
		attribute.Bool("safe", report.Safe),
	)
	return report
}

// analyzeAllConcurrency bounds the AnalyzeAll fan-out.
const analyzeAllConcurrency = 8

// AnalyzeAll analyzes several sources concurrently. Inputs are disjoint
// and rules are immutable, so the fan-out needs no coordination beyond the
// result map.
func (a *Analyzer) AnalyzeAll(ctx context.Context, sources map[string]string) map[string]*Report {
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, analyzeAllConcurrency)

	var mu sync.Mutex
	out := make(map[string]*Report, len(sources))

	for name, src := range sources {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			report := a.Analyze(gctx, src)
			mu.Lock()
			out[name] = report
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait is a pure barrier.
	_ = g.Wait()
	return out
}
