// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package parser

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/pyx/services/pyx/ast"
	"github.com/AleutianAI/pyx/services/pyx/lexer"
)

// Conversion codepoints for `!s`, `!r`, `!a`; absence is -1.
const (
	convNone  = -1
	convStr   = 115
	convRepr  = 114
	convASCII = 97
)

// fstringValues expands one f-string token into its alternating Constant
// and FormattedValue parts. Interior expressions re-enter the parser over
// their substring; positions inside are local to that substring.
func (r *run) fstringValues(tok lexer.Token) ([]ast.Expr, error) {
	prefix, _, body := splitStringLexeme(tok.Lexeme)
	raw := strings.ContainsAny(prefix, "rR")

	values := []ast.Expr{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() == 0 {
			return
		}
		text := lit.String()
		if !raw {
			text = decodeEscapes(text)
		}
		values = append(values, &ast.Constant{Value: text})
		lit.Reset()
	}

	i := 0
	for i < len(body) {
		c := body[i]
		switch {
		case c == '{' && i+1 < len(body) && body[i+1] == '{':
			lit.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(body) && body[i+1] == '}':
			lit.WriteByte('}')
			i += 2
		case c == '{':
			flush()
			fv, ni, err := fstringPlaceholder(body, i+1, raw, tok.Start)
			if err != nil {
				return nil, err
			}
			values = append(values, fv)
			i = ni
		case c == '}':
			return nil, &lexer.SyntaxError{
				Msg: "f-string: single '}' is not allowed",
				Pos: tok.Start,
			}
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return values, nil
}

// fstringPlaceholder parses one `{expr[!conv][:spec]}` starting just after
// the opening brace; the returned index sits just after the closing brace.
func fstringPlaceholder(body string, i int, raw bool, pos lexer.Position) (*ast.FormattedValue, int, error) {
	exprStart := i
	depth := 1
	conv := convNone
	var spec ast.Expr

	for i < len(body) {
		c := body[i]
		switch c {
		case '\'', '"':
			ni, err := skipStringLiteral(body, i)
			if err != nil {
				return nil, 0, &lexer.SyntaxError{Msg: "f-string: unterminated string", Pos: pos, Err: lexer.ErrUnterminatedString}
			}
			i = ni
			continue

		case '(', '[', '{':
			depth++

		case ')', ']':
			depth--

		case '}':
			depth--
			if depth == 0 {
				fv, err := buildFormattedValue(body[exprStart:i], conv, spec, pos)
				if err != nil {
					return nil, 0, err
				}
				return fv, i + 1, nil
			}

		case '!':
			if depth == 1 && i+1 < len(body) && body[i+1] != '=' {
				ch := body[i+1]
				if (ch == 's' || ch == 'r' || ch == 'a') &&
					i+2 < len(body) && (body[i+2] == '}' || body[i+2] == ':') {
					exprText := body[exprStart:i]
					switch ch {
					case 's':
						conv = convStr
					case 'r':
						conv = convRepr
					case 'a':
						conv = convASCII
					}
					i += 2
					if body[i] == ':' {
						s, ni, err := fstringFormatSpec(body, i+1, raw, pos)
						if err != nil {
							return nil, 0, err
						}
						spec = s
						i = ni
					}
					if i >= len(body) || body[i] != '}' {
						return nil, 0, &lexer.SyntaxError{Msg: "f-string: expecting '}'", Pos: pos}
					}
					fv, err := buildFormattedValue(exprText, conv, spec, pos)
					if err != nil {
						return nil, 0, err
					}
					return fv, i + 1, nil
				}
			}

		case ':':
			if depth == 1 {
				exprText := body[exprStart:i]
				s, ni, err := fstringFormatSpec(body, i+1, raw, pos)
				if err != nil {
					return nil, 0, err
				}
				spec = s
				i = ni
				if i >= len(body) || body[i] != '}' {
					return nil, 0, &lexer.SyntaxError{Msg: "f-string: expecting '}'", Pos: pos}
				}
				fv, err := buildFormattedValue(exprText, conv, spec, pos)
				if err != nil {
					return nil, 0, err
				}
				return fv, i + 1, nil
			}
		}
		i++
	}
	return nil, 0, &lexer.SyntaxError{Msg: "f-string: expecting '}'", Pos: pos}
}

// fstringFormatSpec parses a format spec (itself a JoinedStr, possibly with
// nested placeholders) up to, not consuming, the closing brace.
func fstringFormatSpec(body string, i int, raw bool, pos lexer.Position) (ast.Expr, int, error) {
	values := []ast.Expr{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() == 0 {
			return
		}
		text := lit.String()
		if !raw {
			text = decodeEscapes(text)
		}
		values = append(values, &ast.Constant{Value: text})
		lit.Reset()
	}

	for i < len(body) {
		c := body[i]
		switch {
		case c == '}':
			flush()
			return &ast.JoinedStr{Values: values}, i, nil
		case c == '{' && i+1 < len(body) && body[i+1] == '{':
			lit.WriteByte('{')
			i += 2
		case c == '{':
			flush()
			fv, ni, err := fstringPlaceholder(body, i+1, raw, pos)
			if err != nil {
				return nil, 0, err
			}
			values = append(values, fv)
			i = ni
		default:
			lit.WriteByte(c)
			i++
		}
	}
	return nil, 0, &lexer.SyntaxError{Msg: "f-string: expecting '}' in format spec", Pos: pos}
}

// buildFormattedValue re-parses the placeholder expression text.
func buildFormattedValue(exprText string, conv int, spec ast.Expr, pos lexer.Position) (*ast.FormattedValue, error) {
	text := strings.TrimSpace(strings.ReplaceAll(exprText, "\n", " "))
	if text == "" {
		return nil, &lexer.SyntaxError{Msg: "f-string: empty expression not allowed", Pos: pos}
	}
	value, err := parseSubExpression(text)
	if err != nil {
		return nil, fmt.Errorf("f-string expression: %w", err)
	}
	return &ast.FormattedValue{Value: value, Conversion: conv, FormatSpec: spec}, nil
}

// parseSubExpression runs a nested parse over a placeholder substring.
func parseSubExpression(src string) (ast.Expr, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	sub := &run{toks: toks}
	e, err := sub.expression()
	if err == nil {
		err = sub.expectEnd()
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// skipStringLiteral advances past a quoted string inside an f-string
// placeholder, returning the index after its closing quote.
func skipStringLiteral(body string, i int) (int, error) {
	quote := body[i]
	if i+2 < len(body) && body[i+1] == quote && body[i+2] == quote {
		i += 3
		for i+2 < len(body) {
			if body[i] == '\\' {
				i += 2
				continue
			}
			if body[i] == quote && body[i+1] == quote && body[i+2] == quote {
				return i + 3, nil
			}
			i++
		}
		return 0, fmt.Errorf("unterminated string in f-string expression")
	}
	i++
	for i < len(body) {
		switch body[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1, nil
		default:
			i++
		}
	}
	return 0, fmt.Errorf("unterminated string in f-string expression")
}
