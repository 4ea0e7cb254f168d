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
	"github.com/AleutianAI/pyx/services/pyx/ast"
	"github.com/AleutianAI/pyx/services/pyx/lexer"
)

// matchStmt speculatively parses a match statement. "match" is a soft
// keyword: the parse commits only once `match <subject> :` holds, otherwise
// the cursor rolls back and the caller treats the line as an expression.
func (r *run) matchStmt() (ast.Stmt, bool, error) {
	mark := r.save()
	start := r.advance() // match

	subject, err := r.testListStar()
	if err != nil || !r.isOp(":") {
		r.restore(mark)
		return nil, false, nil
	}

	r.advance() // :
	if r.cur().Kind != lexer.KindNewline {
		return nil, true, r.fail("expected newline after \"match\" subject")
	}
	r.advance()
	if r.cur().Kind != lexer.KindIndent {
		return nil, true, r.fail("expected an indented block of case clauses")
	}
	r.advance()

	cases := []*ast.MatchCase{}
	for {
		for r.cur().Kind == lexer.KindNewline {
			r.advance()
		}
		if r.cur().Kind == lexer.KindDedent {
			r.advance()
			break
		}
		if r.cur().Kind == lexer.KindEndOfInput {
			break
		}
		c, err := r.caseClause()
		if err != nil {
			return nil, true, err
		}
		cases = append(cases, c)
	}
	if len(cases) == 0 {
		return nil, true, r.fail("expected at least one \"case\" clause")
	}

	return &ast.Match{Span: r.spanFrom(start), Subject: subject, Cases: cases}, true, nil
}

func (r *run) caseClause() (*ast.MatchCase, error) {
	if err := r.expectName("case"); err != nil {
		return nil, err
	}
	pattern, err := r.patterns()
	if err != nil {
		return nil, err
	}
	c := &ast.MatchCase{Pattern: pattern}
	if r.matchName("if") {
		guard, err := r.expression()
		if err != nil {
			return nil, err
		}
		c.Guard = guard
	}
	body, err := r.block()
	if err != nil {
		return nil, err
	}
	c.Body = body
	return c, nil
}

// patterns parses the top of a case clause: a single pattern, or an open
// sequence (`case a, b:`) which becomes a MatchSequence.
func (r *run) patterns() (ast.Pattern, error) {
	start := r.cur()
	first, err := r.seqElemPattern()
	if err != nil {
		return nil, err
	}
	if !r.isOp(",") {
		return first, nil
	}
	elems := []ast.Pattern{first}
	for r.matchOp(",") {
		if r.isOp(":") || r.isName("if") {
			break
		}
		p, err := r.seqElemPattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, p)
	}
	return &ast.MatchSequence{Span: r.spanFrom(start), Patterns: elems}, nil
}

// seqElemPattern is a sequence element: a star pattern or an as-pattern.
func (r *run) seqElemPattern() (ast.Pattern, error) {
	if r.isOp("*") {
		return r.starPattern()
	}
	return r.asPattern()
}

func (r *run) starPattern() (ast.Pattern, error) {
	start := r.advance() // *
	name, err := r.ident()
	if err != nil {
		return nil, err
	}
	p := &ast.MatchStar{Span: r.spanFrom(start)}
	if name != "_" {
		p.Name = &name
	}
	return p, nil
}

// asPattern is `or_pattern ['as' name]`.
func (r *run) asPattern() (ast.Pattern, error) {
	start := r.cur()
	p, err := r.orPattern()
	if err != nil {
		return nil, err
	}
	if r.matchName("as") {
		name, err := r.ident()
		if err != nil {
			return nil, err
		}
		return &ast.MatchAs{Span: r.spanFrom(start), Pattern: p, Name: &name}, nil
	}
	return p, nil
}

// orPattern is `closed_pattern ('|' closed_pattern)*`.
func (r *run) orPattern() (ast.Pattern, error) {
	start := r.cur()
	first, err := r.closedPattern()
	if err != nil {
		return nil, err
	}
	if !r.isOp("|") {
		return first, nil
	}
	alts := []ast.Pattern{first}
	for r.matchOp("|") {
		p, err := r.closedPattern()
		if err != nil {
			return nil, err
		}
		alts = append(alts, p)
	}
	return &ast.MatchOr{Span: r.spanFrom(start), Patterns: alts}, nil
}

func (r *run) closedPattern() (ast.Pattern, error) {
	tok := r.cur()

	switch tok.Kind {
	case lexer.KindNumber, lexer.KindString:
		return r.literalPattern()

	case lexer.KindName:
		switch tok.Lexeme {
		case "None":
			r.advance()
			return &ast.MatchSingleton{Span: r.spanFrom(tok), Value: nil}, nil
		case "True":
			r.advance()
			return &ast.MatchSingleton{Span: r.spanFrom(tok), Value: true}, nil
		case "False":
			r.advance()
			return &ast.MatchSingleton{Span: r.spanFrom(tok), Value: false}, nil
		case "_":
			r.advance()
			return &ast.MatchAs{Span: r.spanFrom(tok)}, nil
		}
		return r.namePattern()

	case lexer.KindOp:
		switch tok.Lexeme {
		case "-":
			return r.literalPattern()
		case "(":
			return r.groupOrSequencePattern()
		case "[":
			return r.bracketSequencePattern()
		case "{":
			return r.mappingPattern()
		}
	}
	return nil, r.fail("expected pattern")
}

// literalPattern wraps a (possibly negated) number or string in MatchValue.
func (r *run) literalPattern() (ast.Pattern, error) {
	start := r.cur()
	value, err := r.literalExpr()
	if err != nil {
		return nil, err
	}
	return &ast.MatchValue{Span: r.spanFrom(start), Value: value}, nil
}

// literalExpr parses the expression form of a literal pattern or mapping
// key: a string, a number, or a negated number.
func (r *run) literalExpr() (ast.Expr, error) {
	tok := r.cur()
	switch {
	case tok.Kind == lexer.KindString:
		return r.stringAtom()
	case tok.Kind == lexer.KindNumber:
		r.advance()
		return &ast.Constant{Span: r.spanFrom(tok), Value: numberValue(tok.Lexeme)}, nil
	case tok.Kind == lexer.KindOp && tok.Lexeme == "-":
		r.advance()
		numTok := r.cur()
		if numTok.Kind != lexer.KindNumber {
			return nil, r.fail("expected number after \"-\" in pattern")
		}
		r.advance()
		operand := &ast.Constant{Span: r.spanFrom(numTok), Value: numberValue(numTok.Lexeme)}
		return &ast.UnaryOp{Span: r.spanFrom(tok), Op: ast.USub, Operand: operand}, nil
	}
	return nil, r.fail("expected literal")
}

// namePattern handles the three shapes that begin with an identifier:
// capture (`x`), value (`color.RED`), and class (`Point(...)`).
func (r *run) namePattern() (ast.Pattern, error) {
	start := r.cur()
	name, err := r.ident()
	if err != nil {
		return nil, err
	}

	var value ast.Expr = &ast.Name{Span: r.spanFrom(start), ID: name}
	dotted := false
	for r.isOp(".") && r.peekAt(1).Kind == lexer.KindName {
		r.advance()
		attr, err := r.ident()
		if err != nil {
			return nil, err
		}
		value = &ast.Attribute{Span: r.spanFrom(start), Value: value, Attr: attr}
		dotted = true
	}

	if r.isOp("(") {
		return r.classPattern(start, value)
	}
	if dotted {
		return &ast.MatchValue{Span: r.spanFrom(start), Value: value}, nil
	}
	return &ast.MatchAs{Span: r.spanFrom(start), Name: &name}, nil
}

func (r *run) classPattern(start lexer.Token, cls ast.Expr) (ast.Pattern, error) {
	r.advance() // (
	p := &ast.MatchClass{Cls: cls, Patterns: []ast.Pattern{},
		KwdAttrs: []string{}, KwdPatterns: []ast.Pattern{}}

	for !r.isOp(")") {
		if r.cur().Kind == lexer.KindName &&
			r.peekAt(1).Kind == lexer.KindOp && r.peekAt(1).Lexeme == "=" {
			attr, err := r.ident()
			if err != nil {
				return nil, err
			}
			r.advance() // =
			pat, err := r.asPattern()
			if err != nil {
				return nil, err
			}
			p.KwdAttrs = append(p.KwdAttrs, attr)
			p.KwdPatterns = append(p.KwdPatterns, pat)
		} else {
			pat, err := r.asPattern()
			if err != nil {
				return nil, err
			}
			p.Patterns = append(p.Patterns, pat)
		}
		if !r.matchOp(",") {
			break
		}
	}
	if err := r.expectOp(")"); err != nil {
		return nil, err
	}
	p.Span = r.spanFrom(start)
	return p, nil
}

// groupOrSequencePattern parses `(...)`: a parenthesized group yields the
// inner pattern, a comma makes it a sequence.
func (r *run) groupOrSequencePattern() (ast.Pattern, error) {
	start := r.advance() // (
	if r.matchOp(")") {
		return &ast.MatchSequence{Span: r.spanFrom(start), Patterns: []ast.Pattern{}}, nil
	}

	first, err := r.seqElemPattern()
	if err != nil {
		return nil, err
	}
	if r.matchOp(")") {
		if _, isStar := first.(*ast.MatchStar); !isStar {
			return first, nil
		}
		return &ast.MatchSequence{Span: r.spanFrom(start), Patterns: []ast.Pattern{first}}, nil
	}

	elems := []ast.Pattern{first}
	for r.matchOp(",") {
		if r.isOp(")") {
			break
		}
		p, err := r.seqElemPattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, p)
	}
	if err := r.expectOp(")"); err != nil {
		return nil, err
	}
	return &ast.MatchSequence{Span: r.spanFrom(start), Patterns: elems}, nil
}

func (r *run) bracketSequencePattern() (ast.Pattern, error) {
	start := r.advance() // [
	elems := []ast.Pattern{}
	for !r.isOp("]") {
		p, err := r.seqElemPattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, p)
		if !r.matchOp(",") {
			break
		}
	}
	if err := r.expectOp("]"); err != nil {
		return nil, err
	}
	return &ast.MatchSequence{Span: r.spanFrom(start), Patterns: elems}, nil
}

func (r *run) mappingPattern() (ast.Pattern, error) {
	start := r.advance() // {
	p := &ast.MatchMapping{Keys: []ast.Expr{}, Patterns: []ast.Pattern{}}

	for !r.isOp("}") {
		if r.matchOp("**") {
			rest, err := r.ident()
			if err != nil {
				return nil, err
			}
			p.Rest = &rest
		} else {
			key, err := r.mappingKey()
			if err != nil {
				return nil, err
			}
			if err := r.expectOp(":"); err != nil {
				return nil, err
			}
			pat, err := r.asPattern()
			if err != nil {
				return nil, err
			}
			p.Keys = append(p.Keys, key)
			p.Patterns = append(p.Patterns, pat)
		}
		if !r.matchOp(",") {
			break
		}
	}
	if err := r.expectOp("}"); err != nil {
		return nil, err
	}
	p.Span = r.spanFrom(start)
	return p, nil
}

// mappingKey is a literal or a dotted value reference.
func (r *run) mappingKey() (ast.Expr, error) {
	if r.cur().Kind == lexer.KindName {
		start := r.cur()
		name, err := r.ident()
		if err != nil {
			return nil, err
		}
		var value ast.Expr = &ast.Name{Span: r.spanFrom(start), ID: name}
		for r.isOp(".") && r.peekAt(1).Kind == lexer.KindName {
			r.advance()
			attr, err := r.ident()
			if err != nil {
				return nil, err
			}
			value = &ast.Attribute{Span: r.spanFrom(start), Value: value, Attr: attr}
		}
		return value, nil
	}
	return r.literalExpr()
}
