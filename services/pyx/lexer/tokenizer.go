// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lexer

import (
	"fmt"
	"strings"
)

// tabWidth is the advancement unit for tabs in indentation: a tab moves the
// column to the next multiple of 8, matching CPython's tokenizer.
const tabWidth = 8

// Tokenizer scans one source string. State is per-instance; instances are
// not safe for concurrent use but are cheap to create, one per source.
type Tokenizer struct {
	src    []rune
	pos    int
	line   int
	col    int
	indent []int
	// pending queues synthetic Indent/Dedent tokens between scans.
	pending     []Token
	atLineStart bool
	parenDepth  int

	peeked    *Token
	peekedErr error
	// err holds the first scan error; once set, no further scanning happens.
	err error
}

// New creates a Tokenizer over src. Line endings are normalized so that
// `\r\n` and `\r` both read as `\n`.
func New(src string) *Tokenizer {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	return &Tokenizer{
		src:         []rune(src),
		line:        1,
		col:         0,
		indent:      []int{0},
		atLineStart: true,
	}
}

// Tokenize materializes the whole stream, EndOfInput included. The parser
// works on this slice so it can save and restore a position index for
// lookahead.
func Tokenize(src string) ([]Token, error) {
	t := New(src)
	var out []Token
	for {
		tok, err := t.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == KindEndOfInput {
			return out, nil
		}
	}
}

// Peek returns the next token without consuming it.
func (t *Tokenizer) Peek() (Token, error) {
	if t.peeked == nil {
		tok, err := t.Next()
		t.peeked = &tok
		t.peekedErr = err
	}
	return *t.peeked, t.peekedErr
}

// Next returns the next token. After the first error every call returns the
// same error; there is no recovery.
func (t *Tokenizer) Next() (Token, error) {
	if t.peeked != nil {
		tok, err := *t.peeked, t.peekedErr
		t.peeked = nil
		t.peekedErr = nil
		return tok, err
	}
	if t.err != nil {
		return Token{Kind: KindError}, t.err
	}
	tok, err := t.scan()
	t.err = err
	return tok, err
}

// =============================================================================
// Character helpers
// =============================================================================

func (t *Tokenizer) cur() rune {
	if t.pos >= len(t.src) {
		return 0
	}
	return t.src[t.pos]
}

func (t *Tokenizer) at(offset int) rune {
	i := t.pos + offset
	if i >= len(t.src) {
		return 0
	}
	return t.src[i]
}

func (t *Tokenizer) advance() {
	if t.pos >= len(t.src) {
		return
	}
	if t.src[t.pos] == '\n' {
		t.line++
		t.col = 0
	} else {
		t.col++
	}
	t.pos++
}

func (t *Tokenizer) here() Position {
	return Position{Line: t.line, Col: t.col}
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

// =============================================================================
// Main scan loop
// =============================================================================

func (t *Tokenizer) scan() (Token, error) {
	for {
		if len(t.pending) > 0 {
			tok := t.pending[0]
			t.pending = t.pending[1:]
			return tok, nil
		}

		if t.atLineStart && t.parenDepth == 0 && t.pos < len(t.src) {
			if err := t.handleLineStart(); err != nil {
				return Token{Kind: KindError, Start: t.here(), End: t.here()}, err
			}
			continue
		}

		for t.cur() == ' ' || t.cur() == '\t' || t.cur() == '\f' {
			t.advance()
		}

		c := t.cur()
		switch {
		case c == 0:
			if !t.atLineStart {
				// The final logical line still needs its terminator.
				tok := Token{Kind: KindNewline, Lexeme: "\n", Start: t.here(), End: t.here()}
				t.atLineStart = true
				return tok, nil
			}
			for len(t.indent) > 1 {
				t.indent = t.indent[:len(t.indent)-1]
				t.pending = append(t.pending, Token{Kind: KindDedent, Start: t.here(), End: t.here()})
			}
			if len(t.pending) > 0 {
				continue
			}
			return Token{Kind: KindEndOfInput, Start: t.here(), End: t.here()}, nil

		case c == '\\' && t.at(1) == '\n':
			t.advance()
			t.advance()

		case c == '#':
			for t.cur() != '\n' && t.cur() != 0 {
				t.advance()
			}

		case c == '\n':
			if t.parenDepth > 0 {
				t.advance()
				continue
			}
			start := t.here()
			t.advance()
			t.atLineStart = true
			return Token{Kind: KindNewline, Lexeme: "\n", Start: start, End: t.here()}, nil

		case isIdentStart(c):
			return t.scanNameOrString()

		case isDigit(c) || (c == '.' && isDigit(t.at(1))):
			return t.scanNumber()

		case c == '"' || c == '\'':
			return t.scanString(t.pos, t.here())

		default:
			return t.scanOperator()
		}
	}
}

// handleLineStart skips blank and comment-only lines, then reconciles the
// new line's indentation against the stack, queueing Indent/Dedent tokens.
func (t *Tokenizer) handleLineStart() error {
	for {
		width := 0
		for {
			switch t.cur() {
			case ' ':
				width++
				t.advance()
			case '\t':
				width = (width/tabWidth + 1) * tabWidth
				t.advance()
			case '\f':
				width = 0
				t.advance()
			default:
				goto scanned
			}
		}
	scanned:
		if t.cur() == '#' {
			for t.cur() != '\n' && t.cur() != 0 {
				t.advance()
			}
		}
		if t.cur() == '\n' {
			t.advance()
			continue
		}
		if t.cur() == 0 {
			return nil
		}

		top := t.indent[len(t.indent)-1]
		switch {
		case width > top:
			t.indent = append(t.indent, width)
			t.pending = append(t.pending, Token{Kind: KindIndent, Start: t.here(), End: t.here()})
		case width < top:
			for len(t.indent) > 1 && t.indent[len(t.indent)-1] > width {
				t.indent = t.indent[:len(t.indent)-1]
				t.pending = append(t.pending, Token{Kind: KindDedent, Start: t.here(), End: t.here()})
			}
			if t.indent[len(t.indent)-1] != width {
				return &SyntaxError{
					Msg: ErrInconsistentDedent.Error(),
					Pos: t.here(),
					Err: ErrInconsistentDedent,
				}
			}
		}
		t.atLineStart = false
		return nil
	}
}

// =============================================================================
// Lexeme scanners
// =============================================================================

// validStringPrefixes is the set of accepted literal prefixes, lowered.
var validStringPrefixes = map[string]bool{
	"r": true, "b": true, "u": true, "f": true,
	"rb": true, "br": true, "rf": true, "fr": true,
}

func (t *Tokenizer) scanNameOrString() (Token, error) {
	start := t.here()
	startIdx := t.pos
	for isIdentCont(t.cur()) {
		t.advance()
	}
	lexeme := string(t.src[startIdx:t.pos])

	if (t.cur() == '"' || t.cur() == '\'') && validStringPrefixes[strings.ToLower(lexeme)] {
		return t.scanString(startIdx, start)
	}
	return Token{Kind: KindName, Lexeme: lexeme, Start: start, End: t.here()}, nil
}

// scanString consumes a string literal whose prefix (possibly empty) began
// at startIdx. The raw lexeme, prefix and quotes included, is retained;
// escapes are not decoded here.
func (t *Tokenizer) scanString(startIdx int, start Position) (Token, error) {
	quote := t.cur()
	triple := t.at(1) == quote && t.at(2) == quote
	t.advance()
	if triple {
		t.advance()
		t.advance()
	}

	for {
		c := t.cur()
		if triple {
			switch {
			case c == 0:
				return Token{Kind: KindError, Start: start, End: t.here()}, &SyntaxError{
					Msg: "EOF while scanning triple-quoted string literal",
					Pos: start,
					Err: ErrUnterminatedString,
				}
			case c == quote && t.at(1) == quote && t.at(2) == quote:
				t.advance()
				t.advance()
				t.advance()
				return Token{Kind: KindString, Lexeme: string(t.src[startIdx:t.pos]), Start: start, End: t.here()}, nil
			case c == '\\':
				t.advance()
				t.advance()
			default:
				t.advance()
			}
			continue
		}

		switch {
		case c == 0 || c == '\n':
			return Token{Kind: KindError, Start: start, End: t.here()}, &SyntaxError{
				Msg: "EOL while scanning string literal",
				Pos: start,
				Err: ErrUnterminatedString,
			}
		case c == quote:
			t.advance()
			return Token{Kind: KindString, Lexeme: string(t.src[startIdx:t.pos]), Start: start, End: t.here()}, nil
		case c == '\\':
			t.advance()
			t.advance()
		default:
			t.advance()
		}
	}
}

func (t *Tokenizer) scanNumber() (Token, error) {
	start := t.here()
	startIdx := t.pos

	consumeDigits := func(pred func(rune) bool) {
		for pred(t.cur()) || t.cur() == '_' {
			t.advance()
		}
	}

	if t.cur() == '0' && (t.at(1) == 'x' || t.at(1) == 'X') {
		t.advance()
		t.advance()
		consumeDigits(func(c rune) bool {
			return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		})
	} else if t.cur() == '0' && (t.at(1) == 'o' || t.at(1) == 'O') {
		t.advance()
		t.advance()
		consumeDigits(func(c rune) bool { return c >= '0' && c <= '7' })
	} else if t.cur() == '0' && (t.at(1) == 'b' || t.at(1) == 'B') {
		t.advance()
		t.advance()
		consumeDigits(func(c rune) bool { return c == '0' || c == '1' })
	} else {
		consumeDigits(isDigit)
		if t.cur() == '.' {
			// `1.method` stays number-then-dot so attribute access on an
			// integer literal tokenizes; `1.5` and `1.` are floats.
			if isDigit(t.at(1)) {
				t.advance()
				consumeDigits(isDigit)
			} else if !isIdentStart(t.at(1)) {
				t.advance()
			}
		}
		if t.cur() == 'e' || t.cur() == 'E' {
			next := t.at(1)
			if isDigit(next) || ((next == '+' || next == '-') && isDigit(t.at(2))) {
				t.advance()
				if t.cur() == '+' || t.cur() == '-' {
					t.advance()
				}
				consumeDigits(isDigit)
			}
		}
	}

	if t.cur() == 'j' || t.cur() == 'J' {
		t.advance()
	}

	return Token{Kind: KindNumber, Lexeme: string(t.src[startIdx:t.pos]), Start: start, End: t.here()}, nil
}

// operators in longest-match order.
var operators = []string{
	"...", "**=", "//=", ">>=", "<<=",
	"==", "!=", "<=", ">=", "<<", ">>", "**", "//", "->",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=", ":=",
	".", ",", ":", ";", "(", ")", "[", "]", "{", "}",
	"+", "-", "*", "/", "%", "&", "|", "^", "~", "<", ">", "=", "@", "!", "?",
}

func (t *Tokenizer) scanOperator() (Token, error) {
	start := t.here()
	for _, op := range operators {
		if t.matchAt(op) {
			for range op {
				t.advance()
			}
			switch op {
			case "(", "[", "{":
				t.parenDepth++
			case ")", "]", "}":
				if t.parenDepth > 0 {
					t.parenDepth--
				}
			}
			return Token{Kind: KindOp, Lexeme: op, Start: start, End: t.here()}, nil
		}
	}
	return Token{Kind: KindError, Start: start, End: t.here()}, &SyntaxError{
		Msg: fmt.Sprintf("invalid character %q", t.cur()),
		Pos: start,
	}
}

func (t *Tokenizer) matchAt(s string) bool {
	for i, c := range s {
		if t.at(i) != c {
			return false
		}
	}
	return true
}
