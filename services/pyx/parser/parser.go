// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package parser implements a recursive-descent parser for Python 3.12
// source producing the ast package's CPython-shaped tree.
//
// The parser consumes the lexer's token stream. There is no error
// recovery: the first failure aborts with a *lexer.SyntaxError.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/pyx/services/pyx/ast"
	"github.com/AleutianAI/pyx/services/pyx/lexer"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	parseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyx",
		Subsystem: "parser",
		Name:      "parse_total",
		Help:      "Parse outcomes by entry point and result: ok, syntax_error, rejected",
	}, []string{"entry", "result"})

	parseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pyx",
		Subsystem: "parser",
		Name:      "parse_duration_seconds",
		Help:      "Wall time of parse calls",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var parserTracer = otel.Tracer("pyx.parser")

// =============================================================================
// Guards
// =============================================================================

const (
	// DefaultMaxSourceSize is the largest source the parser accepts.
	DefaultMaxSourceSize int64 = 10 * 1024 * 1024

	// WarnSourceSize triggers a slog warning for unusually large sources.
	WarnSourceSize = 1 * 1024 * 1024
)

// Sentinel errors for input validation. Parse failures proper are
// *lexer.SyntaxError values.
var (
	ErrSourceTooLarge = fmt.Errorf("source exceeds maximum size")
	ErrInvalidSource  = fmt.Errorf("source is not valid UTF-8")
)

// =============================================================================
// Parser
// =============================================================================

// Option configures a Parser.
type Option func(*Parser)

// WithMaxSourceSize sets the maximum source size the parser will accept.
// Non-positive values are ignored.
func WithMaxSourceSize(bytes int64) Option {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxSourceSize = bytes
		}
	}
}

// Parser parses Python source into the ast package's tree.
//
// Thread Safety: Parser instances are safe for concurrent use; every parse
// call builds its own token stream and state.
type Parser struct {
	maxSourceSize int64
}

// New creates a Parser with the given options.
func New(opts ...Option) *Parser {
	p := &Parser{maxSourceSize: DefaultMaxSourceSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New()

// Parse parses a complete module with the default parser configuration.
func Parse(src string) (*ast.Module, error) {
	return defaultParser.ParseModule(context.Background(), src)
}

// ParseExpression parses a single expression with the default configuration.
func ParseExpression(src string) (ast.Expr, error) {
	return defaultParser.ParseExpression(context.Background(), src)
}

// ParseModule parses src into a Module.
//
// Inputs:
//   - ctx: checked before and after the parse; the parse itself is not
//     interruptible.
//   - src: UTF-8 Python source.
//
// Outputs:
//   - *ast.Module: never nil on success; empty input yields an empty body.
//   - error: ErrSourceTooLarge, ErrInvalidSource, a context error, or a
//     *lexer.SyntaxError describing the first failure.
func (p *Parser) ParseModule(ctx context.Context, src string) (*ast.Module, error) {
	ctx, span := parserTracer.Start(ctx, "parser.ParseModule",
		trace.WithAttributes(attribute.Int("source_bytes", len(src))))
	defer span.End()

	start := time.Now()
	defer func() { parseDuration.Observe(time.Since(start).Seconds()) }()

	r, err := p.begin(ctx, src, "module")
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	mod, err := r.module()
	if err != nil {
		parseTotal.WithLabelValues("module", "syntax_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		parseTotal.WithLabelValues("module", "rejected").Inc()
		return nil, fmt.Errorf("parse canceled: %w", err)
	}

	parseTotal.WithLabelValues("module", "ok").Inc()
	span.SetAttributes(attribute.Int("statements", len(mod.Body)))
	return mod, nil
}

// ParseExpression parses src as a single expression. Trailing newlines
// are permitted; any other trailing token fails.
func (p *Parser) ParseExpression(ctx context.Context, src string) (ast.Expr, error) {
	ctx, span := parserTracer.Start(ctx, "parser.ParseExpression",
		trace.WithAttributes(attribute.Int("source_bytes", len(src))))
	defer span.End()

	start := time.Now()
	defer func() { parseDuration.Observe(time.Since(start).Seconds()) }()

	r, err := p.begin(ctx, src, "expression")
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	e, err := r.expression()
	if err == nil {
		err = r.expectEnd()
	}
	if err != nil {
		parseTotal.WithLabelValues("expression", "syntax_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	parseTotal.WithLabelValues("expression", "ok").Inc()
	return e, nil
}

// begin validates the input, tokenizes it, and returns a parse run.
func (p *Parser) begin(ctx context.Context, src, entry string) (*run, error) {
	if err := ctx.Err(); err != nil {
		parseTotal.WithLabelValues(entry, "rejected").Inc()
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(src)) > p.maxSourceSize {
		parseTotal.WithLabelValues(entry, "rejected").Inc()
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrSourceTooLarge, len(src), p.maxSourceSize)
	}
	if len(src) > WarnSourceSize {
		slog.Warn("parsing large source",
			slog.String("entry", entry),
			slog.Int("size_bytes", len(src)))
	}
	if !utf8.ValidString(src) {
		parseTotal.WithLabelValues(entry, "rejected").Inc()
		return nil, ErrInvalidSource
	}

	toks, err := lexer.Tokenize(src)
	if err != nil {
		parseTotal.WithLabelValues(entry, "syntax_error").Inc()
		return nil, err
	}
	return &run{toks: toks}, nil
}

// =============================================================================
// Parse run
// =============================================================================

// run is the per-parse state: the materialized token stream and a cursor.
// Deeper lookahead works by saving and restoring the cursor.
type run struct {
	toks []lexer.Token
	pos  int
}

func (r *run) cur() lexer.Token {
	if r.pos >= len(r.toks) {
		return r.toks[len(r.toks)-1] // EndOfInput
	}
	return r.toks[r.pos]
}

func (r *run) peekAt(offset int) lexer.Token {
	i := r.pos + offset
	if i >= len(r.toks) {
		return r.toks[len(r.toks)-1]
	}
	return r.toks[i]
}

func (r *run) advance() lexer.Token {
	tok := r.cur()
	if r.pos < len(r.toks)-1 {
		r.pos++
	}
	return tok
}

func (r *run) save() int        { return r.pos }
func (r *run) restore(mark int) { r.pos = mark }

// isOp reports whether the current token is the given operator.
func (r *run) isOp(lexeme string) bool {
	tok := r.cur()
	return tok.Kind == lexer.KindOp && tok.Lexeme == lexeme
}

// isName reports whether the current token is a Name with the given lexeme.
// Keywords are Names at the token level.
func (r *run) isName(word string) bool {
	tok := r.cur()
	return tok.Kind == lexer.KindName && tok.Lexeme == word
}

func (r *run) matchOp(lexeme string) bool {
	if r.isOp(lexeme) {
		r.advance()
		return true
	}
	return false
}

func (r *run) matchName(word string) bool {
	if r.isName(word) {
		r.advance()
		return true
	}
	return false
}

func (r *run) expectOp(lexeme string) error {
	if !r.matchOp(lexeme) {
		return r.fail(fmt.Sprintf("expected %q", lexeme))
	}
	return nil
}

func (r *run) expectName(word string) error {
	if !r.matchName(word) {
		return r.fail(fmt.Sprintf("expected %q", word))
	}
	return nil
}

// ident consumes a Name token that is not being used as a keyword and
// returns its lexeme.
func (r *run) ident() (string, error) {
	tok := r.cur()
	if tok.Kind != lexer.KindName {
		return "", r.fail("expected identifier")
	}
	r.advance()
	return tok.Lexeme, nil
}

// fail builds the parser's uniform unexpected-token error.
func (r *run) fail(expected string) error {
	tok := r.cur()
	actual := tok.Kind.String()
	if tok.Lexeme != "" && tok.Kind != lexer.KindNewline {
		actual = fmt.Sprintf("%s %q", actual, tok.Lexeme)
	}
	return &lexer.SyntaxError{
		Msg: fmt.Sprintf("%s, found %s", expected, actual),
		Pos: tok.Start,
		Err: lexer.ErrUnexpectedToken,
	}
}

// expectEnd verifies only newline padding remains before EndOfInput.
func (r *run) expectEnd() error {
	for r.cur().Kind == lexer.KindNewline {
		r.advance()
	}
	if r.cur().Kind != lexer.KindEndOfInput {
		return r.fail("expected end of input")
	}
	return nil
}

// spanFrom builds a node span from a start token through the previous token.
func (r *run) spanFrom(start lexer.Token) ast.Span {
	end := start
	if r.pos > 0 {
		end = r.toks[r.pos-1]
	}
	return ast.Span{
		Line:    start.Start.Line,
		Col:     start.Start.Col,
		EndLine: end.End.Line,
		EndCol:  end.End.Col,
	}
}
