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
	"strconv"
	"strings"

	"github.com/AleutianAI/pyx/services/pyx/ast"
	"github.com/AleutianAI/pyx/services/pyx/lexer"
)

// =============================================================================
// Expression entry points
// =============================================================================

// expression is the lowest precedence level: walrus bindings and yield.
func (r *run) expression() (ast.Expr, error) {
	if r.isName("yield") {
		return r.yieldExpr()
	}
	start := r.cur()
	e, err := r.test()
	if err != nil {
		return nil, err
	}
	if r.isOp(":=") {
		if _, ok := e.(*ast.Name); !ok {
			return nil, r.fail("expected name as walrus target")
		}
		r.advance()
		value, err := r.expression()
		if err != nil {
			return nil, err
		}
		return &ast.NamedExpr{Span: r.spanFrom(start), Target: e, Value: value}, nil
	}
	return e, nil
}

// test is the conditional-expression level: lambda and ternary.
func (r *run) test() (ast.Expr, error) {
	if r.isName("lambda") {
		return r.lambdaExpr()
	}
	start := r.cur()
	body, err := r.orTest()
	if err != nil {
		return nil, err
	}
	if r.matchName("if") {
		cond, err := r.orTest()
		if err != nil {
			return nil, err
		}
		if err := r.expectName("else"); err != nil {
			return nil, err
		}
		orelse, err := r.test()
		if err != nil {
			return nil, err
		}
		return &ast.IfExp{Span: r.spanFrom(start), Test: cond, Body: body, Orelse: orelse}, nil
	}
	return body, nil
}

func (r *run) lambdaExpr() (ast.Expr, error) {
	start := r.advance() // lambda
	args, err := r.parameters(false, ":")
	if err != nil {
		return nil, err
	}
	if err := r.expectOp(":"); err != nil {
		return nil, err
	}
	body, err := r.test()
	if err != nil {
		return nil, err
	}
	return &ast.Lambda{Span: r.spanFrom(start), Args: args, Body: body}, nil
}

func (r *run) yieldExpr() (ast.Expr, error) {
	start := r.advance() // yield
	if r.matchName("from") {
		value, err := r.test()
		if err != nil {
			return nil, err
		}
		return &ast.YieldFrom{Span: r.spanFrom(start), Value: value}, nil
	}
	y := &ast.Yield{}
	if r.canStartExpr() {
		value, err := r.testListStar()
		if err != nil {
			return nil, err
		}
		y.Value = value
	}
	y.Span = r.spanFrom(start)
	return y, nil
}

// canStartExpr reports whether the current token can begin an expression;
// used for the optional operand of yield and to stop comma-separated lists
// at a trailing comma.
func (r *run) canStartExpr() bool {
	tok := r.cur()
	switch tok.Kind {
	case lexer.KindName, lexer.KindNumber, lexer.KindString:
		return true
	case lexer.KindOp:
		switch tok.Lexeme {
		case "(", "[", "{", "+", "-", "~", "*", "...":
			return true
		}
	}
	return false
}

// =============================================================================
// Star lists and targets
// =============================================================================

// testListStar parses `star_or_expr (',' star_or_expr)* [',']`; a comma
// makes the result a Tuple.
func (r *run) testListStar() (ast.Expr, error) {
	start := r.cur()
	first, err := r.starOrExpr()
	if err != nil {
		return nil, err
	}
	if !r.isOp(",") {
		return first, nil
	}
	elts := []ast.Expr{first}
	for r.matchOp(",") {
		if !r.canStartExpr() {
			break
		}
		e, err := r.starOrExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &ast.Tuple{Span: r.spanFrom(start), Elts: elts}, nil
}

func (r *run) starOrExpr() (ast.Expr, error) {
	if r.isOp("*") {
		start := r.advance()
		value, err := r.orTest()
		if err != nil {
			return nil, err
		}
		return &ast.Starred{Span: r.spanFrom(start), Value: value}, nil
	}
	return r.expression()
}

// target parses a single assignment target: names, attribute and subscript
// trailers, starred unpacking, and parenthesized or bracketed target lists.
// Comparison operators are excluded so `for x in xs` stops at "in".
func (r *run) target() (ast.Expr, error) {
	if r.isOp("*") {
		start := r.advance()
		inner, err := r.target()
		if err != nil {
			return nil, err
		}
		return &ast.Starred{Span: r.spanFrom(start), Value: inner}, nil
	}
	return r.atomTrailers()
}

// targetList parses comma-separated targets; a comma makes it a Tuple.
func (r *run) targetList() (ast.Expr, error) {
	start := r.cur()
	first, err := r.target()
	if err != nil {
		return nil, err
	}
	if !r.isOp(",") {
		return first, nil
	}
	elts := []ast.Expr{first}
	for r.matchOp(",") {
		if r.isName("in") || !r.canStartExpr() {
			break
		}
		e, err := r.target()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &ast.Tuple{Span: r.spanFrom(start), Elts: elts}, nil
}

// =============================================================================
// Boolean and comparison levels
// =============================================================================

func (r *run) orTest() (ast.Expr, error) {
	start := r.cur()
	first, err := r.andTest()
	if err != nil {
		return nil, err
	}
	if !r.isName("or") {
		return first, nil
	}
	values := []ast.Expr{first}
	for r.matchName("or") {
		v, err := r.andTest()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &ast.BoolOp{Span: r.spanFrom(start), Op: ast.Or, Values: values}, nil
}

func (r *run) andTest() (ast.Expr, error) {
	start := r.cur()
	first, err := r.notTest()
	if err != nil {
		return nil, err
	}
	if !r.isName("and") {
		return first, nil
	}
	values := []ast.Expr{first}
	for r.matchName("and") {
		v, err := r.notTest()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &ast.BoolOp{Span: r.spanFrom(start), Op: ast.And, Values: values}, nil
}

func (r *run) notTest() (ast.Expr, error) {
	if r.isName("not") {
		start := r.advance()
		operand, err := r.notTest()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Span: r.spanFrom(start), Op: ast.Not, Operand: operand}, nil
	}
	return r.comparison()
}

// comparison parses chained comparisons into a single Compare node.
func (r *run) comparison() (ast.Expr, error) {
	start := r.cur()
	left, err := r.orExpr()
	if err != nil {
		return nil, err
	}

	var ops []string
	var comparators []ast.Expr
	for {
		op, ok := r.compareOp()
		if !ok {
			break
		}
		right, err := r.orExpr()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comparators = append(comparators, right)
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &ast.Compare{Span: r.spanFrom(start), Left: left, Ops: ops, Comparators: comparators}, nil
}

// compareOp consumes one comparison operator if present.
func (r *run) compareOp() (string, bool) {
	tok := r.cur()
	if tok.Kind == lexer.KindOp {
		switch tok.Lexeme {
		case "==":
			r.advance()
			return ast.Eq, true
		case "!=":
			r.advance()
			return ast.NotEq, true
		case "<":
			r.advance()
			return ast.Lt, true
		case "<=":
			r.advance()
			return ast.LtE, true
		case ">":
			r.advance()
			return ast.Gt, true
		case ">=":
			r.advance()
			return ast.GtE, true
		}
		return "", false
	}
	if tok.Kind == lexer.KindName {
		switch tok.Lexeme {
		case "is":
			r.advance()
			if r.matchName("not") {
				return ast.IsNot, true
			}
			return ast.Is, true
		case "in":
			r.advance()
			return ast.In, true
		case "not":
			if r.peekAt(1).Kind == lexer.KindName && r.peekAt(1).Lexeme == "in" {
				r.advance()
				r.advance()
				return ast.NotIn, true
			}
		}
	}
	return "", false
}

// =============================================================================
// Binary operator ladder
// =============================================================================

// binaryLevel folds a left-associative run of the given operators.
func (r *run) binaryLevel(next func() (ast.Expr, error), ops map[string]string) (ast.Expr, error) {
	start := r.cur()
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := r.cur()
		if tok.Kind != lexer.KindOp {
			return left, nil
		}
		op, ok := ops[tok.Lexeme]
		if !ok {
			return left, nil
		}
		r.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Span: r.spanFrom(start), Left: left, Op: op, Right: right}
	}
}

func (r *run) orExpr() (ast.Expr, error) {
	return r.binaryLevel(r.xorExpr, map[string]string{"|": ast.BitOr})
}

func (r *run) xorExpr() (ast.Expr, error) {
	return r.binaryLevel(r.andExpr, map[string]string{"^": ast.BitXor})
}

func (r *run) andExpr() (ast.Expr, error) {
	return r.binaryLevel(r.shiftExpr, map[string]string{"&": ast.BitAnd})
}

func (r *run) shiftExpr() (ast.Expr, error) {
	return r.binaryLevel(r.arithExpr, map[string]string{"<<": ast.LShift, ">>": ast.RShift})
}

func (r *run) arithExpr() (ast.Expr, error) {
	return r.binaryLevel(r.term, map[string]string{"+": ast.Add, "-": ast.Sub})
}

func (r *run) term() (ast.Expr, error) {
	return r.binaryLevel(r.factor, map[string]string{
		"*": ast.Mult, "/": ast.Div, "//": ast.FloorDiv, "%": ast.Mod, "@": ast.MatMult,
	})
}

func (r *run) factor() (ast.Expr, error) {
	tok := r.cur()
	if tok.Kind == lexer.KindOp {
		var op string
		switch tok.Lexeme {
		case "+":
			op = ast.UAdd
		case "-":
			op = ast.USub
		case "~":
			op = ast.Invert
		}
		if op != "" {
			r.advance()
			operand, err := r.factor()
			if err != nil {
				return nil, err
			}
			return &ast.UnaryOp{Span: r.spanFrom(tok), Op: op, Operand: operand}, nil
		}
	}
	return r.power()
}

func (r *run) power() (ast.Expr, error) {
	start := r.cur()
	base, err := r.awaitPrimary()
	if err != nil {
		return nil, err
	}
	if r.matchOp("**") {
		// Right associative: the exponent re-enters at factor level so that
		// 2 ** -3 and 2 ** 3 ** 4 group the CPython way.
		exp, err := r.factor()
		if err != nil {
			return nil, err
		}
		return &ast.BinOp{Span: r.spanFrom(start), Left: base, Op: ast.Pow, Right: exp}, nil
	}
	return base, nil
}

func (r *run) awaitPrimary() (ast.Expr, error) {
	if r.isName("await") {
		start := r.advance()
		value, err := r.awaitPrimary()
		if err != nil {
			return nil, err
		}
		return &ast.Await{Span: r.spanFrom(start), Value: value}, nil
	}
	return r.atomTrailers()
}

// =============================================================================
// Atoms and trailers
// =============================================================================

func (r *run) atomTrailers() (ast.Expr, error) {
	start := r.cur()
	e, err := r.atom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case r.matchOp("("):
			args, keywords, err := r.callArgs()
			if err != nil {
				return nil, err
			}
			if err := r.expectOp(")"); err != nil {
				return nil, err
			}
			e = &ast.Call{Span: r.spanFrom(start), Func: e, Args: args, Keywords: keywords}
		case r.matchOp("["):
			sl, err := r.subscriptList()
			if err != nil {
				return nil, err
			}
			if err := r.expectOp("]"); err != nil {
				return nil, err
			}
			e = &ast.Subscript{Span: r.spanFrom(start), Value: e, Slice: sl}
		case r.isOp(".") && r.peekAt(1).Kind == lexer.KindName:
			r.advance()
			attr, err := r.ident()
			if err != nil {
				return nil, err
			}
			e = &ast.Attribute{Span: r.spanFrom(start), Value: e, Attr: attr}
		default:
			return e, nil
		}
	}
}

func (r *run) atom() (ast.Expr, error) {
	tok := r.cur()
	switch tok.Kind {
	case lexer.KindNumber:
		r.advance()
		return &ast.Constant{Span: r.spanFrom(tok), Value: numberValue(tok.Lexeme)}, nil

	case lexer.KindString:
		return r.stringAtom()

	case lexer.KindName:
		switch tok.Lexeme {
		case "True":
			r.advance()
			return &ast.Constant{Span: r.spanFrom(tok), Value: true}, nil
		case "False":
			r.advance()
			return &ast.Constant{Span: r.spanFrom(tok), Value: false}, nil
		case "None":
			r.advance()
			return &ast.Constant{Span: r.spanFrom(tok), Value: nil}, nil
		case "lambda":
			return r.lambdaExpr()
		}
		r.advance()
		return &ast.Name{Span: r.spanFrom(tok), ID: tok.Lexeme}, nil

	case lexer.KindOp:
		switch tok.Lexeme {
		case "(":
			return r.parenAtom()
		case "[":
			return r.listAtom()
		case "{":
			return r.dictSetAtom()
		case "...":
			r.advance()
			return &ast.Constant{Span: r.spanFrom(tok), Value: ast.EllipsisValue{Ellipsis: true}}, nil
		}
	}
	return nil, r.fail("expected expression")
}

func (r *run) parenAtom() (ast.Expr, error) {
	start := r.advance() // (
	if r.matchOp(")") {
		return &ast.Tuple{Span: r.spanFrom(start), Elts: []ast.Expr{}}, nil
	}
	if r.isName("yield") {
		y, err := r.yieldExpr()
		if err != nil {
			return nil, err
		}
		if err := r.expectOp(")"); err != nil {
			return nil, err
		}
		return y, nil
	}

	first, err := r.starOrExpr()
	if err != nil {
		return nil, err
	}

	if r.isName("for") || (r.isName("async") && r.peekAt(1).Lexeme == "for") {
		generators, err := r.compClauses()
		if err != nil {
			return nil, err
		}
		if err := r.expectOp(")"); err != nil {
			return nil, err
		}
		return &ast.GeneratorExp{Span: r.spanFrom(start), Elt: first, Generators: generators}, nil
	}

	if r.isOp(",") {
		elts := []ast.Expr{first}
		for r.matchOp(",") {
			if r.isOp(")") {
				break
			}
			e, err := r.starOrExpr()
			if err != nil {
				return nil, err
			}
			elts = append(elts, e)
		}
		if err := r.expectOp(")"); err != nil {
			return nil, err
		}
		return &ast.Tuple{Span: r.spanFrom(start), Elts: elts}, nil
	}

	if err := r.expectOp(")"); err != nil {
		return nil, err
	}
	return first, nil
}

func (r *run) listAtom() (ast.Expr, error) {
	start := r.advance() // [
	if r.matchOp("]") {
		return &ast.List{Span: r.spanFrom(start), Elts: []ast.Expr{}}, nil
	}

	first, err := r.starOrExpr()
	if err != nil {
		return nil, err
	}

	if r.isName("for") || (r.isName("async") && r.peekAt(1).Lexeme == "for") {
		generators, err := r.compClauses()
		if err != nil {
			return nil, err
		}
		if err := r.expectOp("]"); err != nil {
			return nil, err
		}
		return &ast.ListComp{Span: r.spanFrom(start), Elt: first, Generators: generators}, nil
	}

	elts := []ast.Expr{first}
	for r.matchOp(",") {
		if r.isOp("]") {
			break
		}
		e, err := r.starOrExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if err := r.expectOp("]"); err != nil {
		return nil, err
	}
	return &ast.List{Span: r.spanFrom(start), Elts: elts}, nil
}

func (r *run) dictSetAtom() (ast.Expr, error) {
	start := r.advance() // {
	if r.matchOp("}") {
		return &ast.Dict{Span: r.spanFrom(start), Keys: []ast.Expr{}, Values: []ast.Expr{}}, nil
	}

	// `**expr` can only open a dict display.
	if r.matchOp("**") {
		value, err := r.orExpr()
		if err != nil {
			return nil, err
		}
		return r.dictTail(start, []ast.Expr{nil}, []ast.Expr{value})
	}

	if r.isOp("*") {
		// `*expr` can only open a set display.
		first, err := r.starOrExpr()
		if err != nil {
			return nil, err
		}
		return r.setTail(start, []ast.Expr{first})
	}

	first, err := r.expression()
	if err != nil {
		return nil, err
	}

	if r.matchOp(":") {
		value, err := r.test()
		if err != nil {
			return nil, err
		}
		if r.isName("for") || (r.isName("async") && r.peekAt(1).Lexeme == "for") {
			generators, err := r.compClauses()
			if err != nil {
				return nil, err
			}
			if err := r.expectOp("}"); err != nil {
				return nil, err
			}
			return &ast.DictComp{Span: r.spanFrom(start), Key: first, Value: value, Generators: generators}, nil
		}
		return r.dictTail(start, []ast.Expr{first}, []ast.Expr{value})
	}

	if r.isName("for") || (r.isName("async") && r.peekAt(1).Lexeme == "for") {
		generators, err := r.compClauses()
		if err != nil {
			return nil, err
		}
		if err := r.expectOp("}"); err != nil {
			return nil, err
		}
		return &ast.SetComp{Span: r.spanFrom(start), Elt: first, Generators: generators}, nil
	}
	return r.setTail(start, []ast.Expr{first})
}

// dictTail finishes a dict display after its first entry.
func (r *run) dictTail(start lexer.Token, keys, values []ast.Expr) (ast.Expr, error) {
	for r.matchOp(",") {
		if r.isOp("}") {
			break
		}
		if r.matchOp("**") {
			v, err := r.orExpr()
			if err != nil {
				return nil, err
			}
			keys = append(keys, nil)
			values = append(values, v)
			continue
		}
		k, err := r.test()
		if err != nil {
			return nil, err
		}
		if err := r.expectOp(":"); err != nil {
			return nil, err
		}
		v, err := r.test()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	if err := r.expectOp("}"); err != nil {
		return nil, err
	}
	return &ast.Dict{Span: r.spanFrom(start), Keys: keys, Values: values}, nil
}

// setTail finishes a set display after its first element.
func (r *run) setTail(start lexer.Token, elts []ast.Expr) (ast.Expr, error) {
	for r.matchOp(",") {
		if r.isOp("}") {
			break
		}
		e, err := r.starOrExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if err := r.expectOp("}"); err != nil {
		return nil, err
	}
	return &ast.Set{Span: r.spanFrom(start), Elts: elts}, nil
}

// compClauses parses `[async] for target in iter [if cond]*` clauses. The
// iter and if subexpressions sit at or-test level so a trailing ternary
// cannot swallow the next clause.
func (r *run) compClauses() ([]*ast.Comprehension, error) {
	generators := []*ast.Comprehension{}
	for {
		isAsync := 0
		if r.isName("async") && r.peekAt(1).Lexeme == "for" {
			r.advance()
			isAsync = 1
		}
		if !r.matchName("for") {
			break
		}
		target, err := r.targetList()
		if err != nil {
			return nil, err
		}
		if err := r.expectName("in"); err != nil {
			return nil, err
		}
		iter, err := r.orTest()
		if err != nil {
			return nil, err
		}
		comp := &ast.Comprehension{Target: target, Iter: iter, Ifs: []ast.Expr{}, IsAsync: isAsync}
		for r.matchName("if") {
			cond, err := r.orTest()
			if err != nil {
				return nil, err
			}
			comp.Ifs = append(comp.Ifs, cond)
		}
		generators = append(generators, comp)
	}
	if len(generators) == 0 {
		return nil, r.fail("expected \"for\" clause")
	}
	return generators, nil
}

// =============================================================================
// Calls and subscripts
// =============================================================================

// callArgs parses the interior of a call's argument list, stopping before
// the closing parenthesis.
func (r *run) callArgs() ([]ast.Expr, []*ast.Keyword, error) {
	args := []ast.Expr{}
	keywords := []*ast.Keyword{}

	for !r.isOp(")") {
		switch {
		case r.matchOp("**"):
			v, err := r.test()
			if err != nil {
				return nil, nil, err
			}
			keywords = append(keywords, &ast.Keyword{Value: v})

		case r.isOp("*"):
			start := r.advance()
			v, err := r.test()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, &ast.Starred{Span: r.spanFrom(start), Value: v})

		case r.cur().Kind == lexer.KindName &&
			r.peekAt(1).Kind == lexer.KindOp && r.peekAt(1).Lexeme == "=":
			name, err := r.ident()
			if err != nil {
				return nil, nil, err
			}
			r.advance() // =
			v, err := r.test()
			if err != nil {
				return nil, nil, err
			}
			keywords = append(keywords, &ast.Keyword{Arg: &name, Value: v})

		default:
			v, err := r.expression()
			if err != nil {
				return nil, nil, err
			}
			if r.isName("for") || (r.isName("async") && r.peekAt(1).Lexeme == "for") {
				generators, err := r.compClauses()
				if err != nil {
					return nil, nil, err
				}
				v = &ast.GeneratorExp{Elt: v, Generators: generators}
			}
			args = append(args, v)
		}

		if !r.matchOp(",") {
			break
		}
	}
	return args, keywords, nil
}

// subscriptList parses the interior of `[...]`: one subscript, or a
// comma-separated tuple of them (generic forms like Dict[str, int]).
func (r *run) subscriptList() (ast.Expr, error) {
	start := r.cur()
	first, err := r.subscript()
	if err != nil {
		return nil, err
	}
	if !r.isOp(",") {
		return first, nil
	}
	elts := []ast.Expr{first}
	for r.matchOp(",") {
		if r.isOp("]") {
			break
		}
		e, err := r.subscript()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &ast.Tuple{Span: r.spanFrom(start), Elts: elts}, nil
}

func (r *run) subscript() (ast.Expr, error) {
	start := r.cur()
	var lower ast.Expr
	if !r.isOp(":") {
		e, err := r.starOrExpr()
		if err != nil {
			return nil, err
		}
		if !r.isOp(":") {
			return e, nil
		}
		lower = e
	}

	if err := r.expectOp(":"); err != nil {
		return nil, err
	}
	sl := &ast.Slice{Lower: lower}
	if !r.isOp(":") && !r.isOp("]") && !r.isOp(",") {
		upper, err := r.test()
		if err != nil {
			return nil, err
		}
		sl.Upper = upper
	}
	if r.matchOp(":") {
		if !r.isOp("]") && !r.isOp(",") {
			step, err := r.test()
			if err != nil {
				return nil, err
			}
			sl.Step = step
		}
	}
	sl.Span = r.spanFrom(start)
	return sl, nil
}

// =============================================================================
// Literal values
// =============================================================================

// numberValue converts a number lexeme into its constant payload: int64 for
// integers (string fallback on overflow), float64 for floats, Imaginary for
// imaginary literals.
func numberValue(lexeme string) any {
	clean := strings.ReplaceAll(lexeme, "_", "")

	if strings.HasSuffix(clean, "j") || strings.HasSuffix(clean, "J") {
		f, err := strconv.ParseFloat(clean[:len(clean)-1], 64)
		if err != nil {
			return ast.Imaginary{}
		}
		return ast.Imaginary{Imag: f}
	}

	lower := strings.ToLower(clean)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
		base := 16
		switch lower[1] {
		case 'o':
			base = 8
		case 'b':
			base = 2
		}
		if i, err := strconv.ParseInt(clean[2:], base, 64); err == nil {
			return i
		}
		return clean
	}

	if strings.ContainsAny(clean, ".eE") {
		if f, err := strconv.ParseFloat(clean, 64); err == nil {
			return f
		}
		return clean
	}

	if i, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return i
	}
	return clean
}

// stringAtom parses one or more adjacent string tokens. Plain strings
// concatenate into a single Constant; any f-string in the run produces a
// JoinedStr with merged literal chunks.
func (r *run) stringAtom() (ast.Expr, error) {
	start := r.cur()
	var toks []lexer.Token
	for r.cur().Kind == lexer.KindString {
		toks = append(toks, r.advance())
	}

	anyF := false
	for _, tok := range toks {
		if prefix, _, _ := splitStringLexeme(tok.Lexeme); strings.ContainsAny(prefix, "fF") {
			anyF = true
			break
		}
	}

	if !anyF {
		var sb strings.Builder
		for _, tok := range toks {
			sb.WriteString(stringValue(tok.Lexeme))
		}
		return &ast.Constant{Span: r.spanFrom(start), Value: sb.String()}, nil
	}

	values := []ast.Expr{}
	appendLiteral := func(s string) {
		if s == "" {
			return
		}
		if len(values) > 0 {
			if c, ok := values[len(values)-1].(*ast.Constant); ok {
				if prev, ok := c.Value.(string); ok {
					c.Value = prev + s
					return
				}
			}
		}
		values = append(values, &ast.Constant{Value: s})
	}
	for _, tok := range toks {
		prefix, _, _ := splitStringLexeme(tok.Lexeme)
		if strings.ContainsAny(prefix, "fF") {
			parts, err := r.fstringValues(tok)
			if err != nil {
				return nil, err
			}
			for _, p := range parts {
				if c, ok := p.(*ast.Constant); ok {
					if s, ok := c.Value.(string); ok {
						appendLiteral(s)
						continue
					}
				}
				values = append(values, p)
			}
			continue
		}
		appendLiteral(stringValue(tok.Lexeme))
	}
	return &ast.JoinedStr{Span: r.spanFrom(start), Values: values}, nil
}

// splitStringLexeme separates a string token into prefix, quote, and body.
func splitStringLexeme(lexeme string) (prefix, quote, body string) {
	i := 0
	for i < len(lexeme) && lexeme[i] != '"' && lexeme[i] != '\'' {
		i++
	}
	prefix = lexeme[:i]
	rest := lexeme[i:]
	if len(rest) >= 6 && (strings.HasPrefix(rest, `"""`) || strings.HasPrefix(rest, "'''")) {
		return prefix, rest[:3], rest[3 : len(rest)-3]
	}
	if len(rest) >= 2 {
		return prefix, rest[:1], rest[1 : len(rest)-1]
	}
	return prefix, "", rest
}

// stringValue produces the constant payload of a non-f string token: quotes
// and prefix stripped, escapes decoded unless the literal is raw.
func stringValue(lexeme string) string {
	prefix, _, body := splitStringLexeme(lexeme)
	if strings.ContainsAny(prefix, "rR") {
		return body
	}
	return decodeEscapes(body)
}

// decodeEscapes decodes the common backslash escapes. Unknown escapes keep
// the backslash, matching CPython.
func decodeEscapes(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		case '\'':
			sb.WriteByte('\'')
		case '"':
			sb.WriteByte('"')
		case '0':
			sb.WriteByte(0)
		case 'a':
			sb.WriteByte(7)
		case 'b':
			sb.WriteByte(8)
		case 'f':
			sb.WriteByte(12)
		case 'v':
			sb.WriteByte(11)
		case '\n':
			// Escaped newline joins lines inside the literal.
		case 'x':
			if i+2 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					sb.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			sb.WriteString("\\x")
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
