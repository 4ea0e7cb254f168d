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

// augOps maps augmented-assignment operators to their ast tags.
var augOps = map[string]string{
	"+=": ast.Add, "-=": ast.Sub, "*=": ast.Mult, "/=": ast.Div,
	"//=": ast.FloorDiv, "%=": ast.Mod, "**=": ast.Pow,
	"&=": ast.BitAnd, "|=": ast.BitOr, "^=": ast.BitXor,
	">>=": ast.RShift, "<<=": ast.LShift, "@=": ast.MatMult,
}

func (r *run) module() (*ast.Module, error) {
	start := r.cur()
	body := []ast.Stmt{}
	for {
		for r.cur().Kind == lexer.KindNewline {
			r.advance()
		}
		if r.cur().Kind == lexer.KindEndOfInput {
			break
		}
		stmts, err := r.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	m := &ast.Module{Body: body}
	if len(body) > 0 {
		m.Span = r.spanFrom(start)
	}
	return m, nil
}

// statement parses one logical statement. Simple-statement lines may carry
// several `;`-separated statements, hence the slice.
func (r *run) statement() ([]ast.Stmt, error) {
	tok := r.cur()
	if tok.Kind == lexer.KindOp && tok.Lexeme == "@" {
		s, err := r.decorated()
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{s}, nil
	}
	if tok.Kind == lexer.KindName {
		switch tok.Lexeme {
		case "def":
			s, err := r.functionDef(nil, false)
			if err != nil {
				return nil, err
			}
			return []ast.Stmt{s}, nil
		case "class":
			s, err := r.classDef(nil)
			if err != nil {
				return nil, err
			}
			return []ast.Stmt{s}, nil
		case "async":
			s, err := r.asyncStatement(nil)
			if err != nil {
				return nil, err
			}
			return []ast.Stmt{s}, nil
		case "if":
			s, err := r.ifStmt()
			if err != nil {
				return nil, err
			}
			return []ast.Stmt{s}, nil
		case "while":
			s, err := r.whileStmt()
			if err != nil {
				return nil, err
			}
			return []ast.Stmt{s}, nil
		case "for":
			s, err := r.forStmt(false)
			if err != nil {
				return nil, err
			}
			return []ast.Stmt{s}, nil
		case "with":
			s, err := r.withStmt(false)
			if err != nil {
				return nil, err
			}
			return []ast.Stmt{s}, nil
		case "try":
			s, err := r.tryStmt()
			if err != nil {
				return nil, err
			}
			return []ast.Stmt{s}, nil
		case "match":
			// Soft keyword: commit only once `match <subject>:` shape holds.
			if s, ok, err := r.matchStmt(); ok {
				if err != nil {
					return nil, err
				}
				return []ast.Stmt{s}, nil
			}
		case "type":
			if s, ok := r.typeAliasStmt(); ok {
				return []ast.Stmt{s}, nil
			}
		}
	}
	return r.simpleStmtLine()
}

// simpleStmtLine parses `stmt (';' stmt)* [';']` through end of line.
func (r *run) simpleStmtLine() ([]ast.Stmt, error) {
	var out []ast.Stmt
	for {
		s, err := r.simpleStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if !r.matchOp(";") {
			break
		}
		if r.atStatementEnd() {
			break
		}
	}
	if err := r.endOfLine(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *run) atStatementEnd() bool {
	switch r.cur().Kind {
	case lexer.KindNewline, lexer.KindEndOfInput, lexer.KindDedent:
		return true
	}
	return false
}

func (r *run) endOfLine() error {
	switch r.cur().Kind {
	case lexer.KindNewline:
		r.advance()
		return nil
	case lexer.KindEndOfInput, lexer.KindDedent:
		return nil
	}
	return r.fail("expected end of statement")
}

func (r *run) simpleStmt() (ast.Stmt, error) {
	tok := r.cur()
	if tok.Kind == lexer.KindName {
		switch tok.Lexeme {
		case "pass":
			r.advance()
			return &ast.Pass{Span: r.spanFrom(tok)}, nil
		case "break":
			r.advance()
			return &ast.Break{Span: r.spanFrom(tok)}, nil
		case "continue":
			r.advance()
			return &ast.Continue{Span: r.spanFrom(tok)}, nil
		case "return":
			return r.returnStmt()
		case "raise":
			return r.raiseStmt()
		case "del":
			return r.deleteStmt()
		case "global":
			return r.globalStmt()
		case "nonlocal":
			return r.nonlocalStmt()
		case "assert":
			return r.assertStmt()
		case "import":
			return r.importStmt()
		case "from":
			return r.fromImportStmt()
		}
	}
	return r.exprOrAssign()
}

// =============================================================================
// Simple statements
// =============================================================================

func (r *run) returnStmt() (ast.Stmt, error) {
	start := r.advance()
	var value ast.Expr
	if !r.atStatementEnd() && !r.isOp(";") {
		v, err := r.testListStar()
		if err != nil {
			return nil, err
		}
		value = v
	}
	return &ast.Return{Span: r.spanFrom(start), Value: value}, nil
}

func (r *run) raiseStmt() (ast.Stmt, error) {
	start := r.advance()
	stmt := &ast.Raise{}
	if !r.atStatementEnd() && !r.isOp(";") {
		exc, err := r.test()
		if err != nil {
			return nil, err
		}
		stmt.Exc = exc
		if r.matchName("from") {
			cause, err := r.test()
			if err != nil {
				return nil, err
			}
			stmt.Cause = cause
		}
	}
	stmt.Span = r.spanFrom(start)
	return stmt, nil
}

func (r *run) deleteStmt() (ast.Stmt, error) {
	start := r.advance()
	targets := []ast.Expr{}
	for {
		e, err := r.test()
		if err != nil {
			return nil, err
		}
		targets = append(targets, e)
		if !r.matchOp(",") {
			break
		}
	}
	return &ast.Delete{Span: r.spanFrom(start), Targets: targets}, nil
}

func (r *run) globalStmt() (ast.Stmt, error) {
	start := r.advance()
	names, err := r.identList()
	if err != nil {
		return nil, err
	}
	return &ast.Global{Span: r.spanFrom(start), Names: names}, nil
}

func (r *run) nonlocalStmt() (ast.Stmt, error) {
	start := r.advance()
	names, err := r.identList()
	if err != nil {
		return nil, err
	}
	return &ast.Nonlocal{Span: r.spanFrom(start), Names: names}, nil
}

func (r *run) identList() ([]string, error) {
	var names []string
	for {
		name, err := r.ident()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if !r.matchOp(",") {
			break
		}
	}
	return names, nil
}

func (r *run) assertStmt() (ast.Stmt, error) {
	start := r.advance()
	test, err := r.test()
	if err != nil {
		return nil, err
	}
	stmt := &ast.Assert{Test: test}
	if r.matchOp(",") {
		msg, err := r.test()
		if err != nil {
			return nil, err
		}
		stmt.Msg = msg
	}
	stmt.Span = r.spanFrom(start)
	return stmt, nil
}

func (r *run) importStmt() (ast.Stmt, error) {
	start := r.advance()
	names := []*ast.Alias{}
	for {
		a, err := r.importAlias(true)
		if err != nil {
			return nil, err
		}
		names = append(names, a)
		if !r.matchOp(",") {
			break
		}
	}
	return &ast.Import{Span: r.spanFrom(start), Names: names}, nil
}

// importAlias parses `name [as asname]`; dotted controls whether the name
// may be a dotted path.
func (r *run) importAlias(dotted bool) (*ast.Alias, error) {
	start := r.cur()
	var name string
	var err error
	if dotted {
		name, err = r.dottedName()
	} else {
		name, err = r.ident()
	}
	if err != nil {
		return nil, err
	}
	a := &ast.Alias{Name: name}
	if r.matchName("as") {
		asname, err := r.ident()
		if err != nil {
			return nil, err
		}
		a.Asname = &asname
	}
	a.Span = r.spanFrom(start)
	return a, nil
}

func (r *run) dottedName() (string, error) {
	name, err := r.ident()
	if err != nil {
		return "", err
	}
	for r.isOp(".") && r.peekAt(1).Kind == lexer.KindName {
		r.advance()
		part, err := r.ident()
		if err != nil {
			return "", err
		}
		name += "." + part
	}
	return name, nil
}

func (r *run) fromImportStmt() (ast.Stmt, error) {
	start := r.advance()

	level := 0
	for {
		if r.isOp(".") {
			level++
			r.advance()
			continue
		}
		if r.isOp("...") {
			level += 3
			r.advance()
			continue
		}
		break
	}

	var module *string
	if r.cur().Kind == lexer.KindName && !r.isName("import") {
		name, err := r.dottedName()
		if err != nil {
			return nil, err
		}
		module = &name
	}
	if level == 0 && module == nil {
		return nil, r.fail("expected module name")
	}
	if err := r.expectName("import"); err != nil {
		return nil, err
	}

	names := []*ast.Alias{}
	switch {
	case r.matchOp("*"):
		names = append(names, &ast.Alias{Name: "*"})
	case r.matchOp("("):
		for !r.isOp(")") {
			a, err := r.importAlias(false)
			if err != nil {
				return nil, err
			}
			names = append(names, a)
			if !r.matchOp(",") {
				break
			}
		}
		if err := r.expectOp(")"); err != nil {
			return nil, err
		}
	default:
		for {
			a, err := r.importAlias(false)
			if err != nil {
				return nil, err
			}
			names = append(names, a)
			if !r.matchOp(",") {
				break
			}
		}
	}

	return &ast.ImportFrom{Span: r.spanFrom(start), Module: module, Names: names, Level: level}, nil
}

// exprOrAssign disambiguates expression statements, annotated assignments,
// augmented assignments, and assignment chains.
func (r *run) exprOrAssign() (ast.Stmt, error) {
	start := r.cur()
	first, err := r.testListStar()
	if err != nil {
		return nil, err
	}

	if r.matchOp(":") {
		annotation, err := r.test()
		if err != nil {
			return nil, err
		}
		stmt := &ast.AnnAssign{Target: first, Annotation: annotation}
		if _, ok := first.(*ast.Name); ok {
			stmt.Simple = 1
		}
		if r.matchOp("=") {
			value, err := r.assignValue()
			if err != nil {
				return nil, err
			}
			stmt.Value = value
		}
		stmt.Span = r.spanFrom(start)
		return stmt, nil
	}

	if tok := r.cur(); tok.Kind == lexer.KindOp {
		if op, ok := augOps[tok.Lexeme]; ok {
			r.advance()
			value, err := r.assignValue()
			if err != nil {
				return nil, err
			}
			return &ast.AugAssign{Span: r.spanFrom(start), Target: first, Op: op, Value: value}, nil
		}
	}

	if r.isOp("=") {
		targets := []ast.Expr{}
		value := first
		for r.matchOp("=") {
			targets = append(targets, value)
			v, err := r.assignValue()
			if err != nil {
				return nil, err
			}
			value = v
		}
		return &ast.Assign{Span: r.spanFrom(start), Targets: targets, Value: value}, nil
	}

	return &ast.ExprStmt{Span: r.spanFrom(start), Value: first}, nil
}

// assignValue is an assignment right-hand side: a yield expression or a
// star-expression list.
func (r *run) assignValue() (ast.Expr, error) {
	if r.isName("yield") {
		return r.yieldExpr()
	}
	return r.testListStar()
}

// =============================================================================
// Compound statements
// =============================================================================

// block parses `:` followed by an inline statement list or an indented suite.
func (r *run) block() ([]ast.Stmt, error) {
	if err := r.expectOp(":"); err != nil {
		return nil, err
	}
	if r.cur().Kind != lexer.KindNewline {
		return r.simpleStmtLine()
	}
	r.advance()
	if r.cur().Kind != lexer.KindIndent {
		return nil, r.fail("expected an indented block")
	}
	r.advance()

	body := []ast.Stmt{}
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
		stmts, err := r.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	return body, nil
}

func (r *run) decorated() (ast.Stmt, error) {
	decorators := []ast.Expr{}
	for r.matchOp("@") {
		e, err := r.expression()
		if err != nil {
			return nil, err
		}
		decorators = append(decorators, e)
		if r.cur().Kind == lexer.KindNewline {
			r.advance()
		}
	}

	switch {
	case r.isName("def"):
		return r.functionDef(decorators, false)
	case r.isName("class"):
		return r.classDef(decorators)
	case r.isName("async"):
		return r.asyncStatement(decorators)
	}
	return nil, r.fail("expected function or class definition after decorator")
}

func (r *run) asyncStatement(decorators []ast.Expr) (ast.Stmt, error) {
	r.advance() // async
	switch {
	case r.isName("def"):
		return r.functionDef(decorators, true)
	case r.isName("for"):
		return r.forStmt(true)
	case r.isName("with"):
		return r.withStmt(true)
	}
	return nil, r.fail("expected \"def\", \"for\", or \"with\" after \"async\"")
}

func (r *run) functionDef(decorators []ast.Expr, async bool) (ast.Stmt, error) {
	start := r.advance() // def
	name, err := r.ident()
	if err != nil {
		return nil, err
	}

	typeParams := []ast.Node{}
	if r.isOp("[") {
		typeParams, err = r.typeParams()
		if err != nil {
			return nil, err
		}
	}

	if err := r.expectOp("("); err != nil {
		return nil, err
	}
	args, err := r.parameters(true, ")")
	if err != nil {
		return nil, err
	}
	if err := r.expectOp(")"); err != nil {
		return nil, err
	}

	var returns ast.Expr
	if r.matchOp("->") {
		returns, err = r.test()
		if err != nil {
			return nil, err
		}
	}

	body, err := r.block()
	if err != nil {
		return nil, err
	}
	if decorators == nil {
		decorators = []ast.Expr{}
	}

	if async {
		return &ast.AsyncFunctionDef{Span: r.spanFrom(start), Name: name, Args: args,
			Body: body, DecoratorList: decorators, Returns: returns, TypeParams: typeParams}, nil
	}
	return &ast.FunctionDef{Span: r.spanFrom(start), Name: name, Args: args,
		Body: body, DecoratorList: decorators, Returns: returns, TypeParams: typeParams}, nil
}

// parameters parses a parameter list up to (not consuming) terminator.
// annotated controls whether `: annotation` is allowed (def yes, lambda no).
func (r *run) parameters(annotated bool, terminator string) (*ast.Arguments, error) {
	args := &ast.Arguments{
		Posonlyargs: []*ast.Arg{},
		Args:        []*ast.Arg{},
		Kwonlyargs:  []*ast.Arg{},
		KwDefaults:  []ast.Expr{},
		Defaults:    []ast.Expr{},
	}
	seenStar := false

	for !r.isOp(terminator) {
		switch {
		case r.matchOp("/"):
			// Everything so far is positional-only.
			args.Posonlyargs = append(args.Posonlyargs, args.Args...)
			args.Args = []*ast.Arg{}

		case r.matchOp("**"):
			a, err := r.param(annotated)
			if err != nil {
				return nil, err
			}
			args.Kwarg = a

		case r.matchOp("*"):
			seenStar = true
			if r.cur().Kind == lexer.KindName {
				a, err := r.param(annotated)
				if err != nil {
					return nil, err
				}
				args.Vararg = a
			}

		case r.cur().Kind == lexer.KindName:
			a, err := r.param(annotated)
			if err != nil {
				return nil, err
			}
			var def ast.Expr
			if r.matchOp("=") {
				d, err := r.test()
				if err != nil {
					return nil, err
				}
				def = d
			}
			if seenStar {
				args.Kwonlyargs = append(args.Kwonlyargs, a)
				args.KwDefaults = append(args.KwDefaults, def)
			} else {
				args.Args = append(args.Args, a)
				if def != nil {
					args.Defaults = append(args.Defaults, def)
				}
			}

		default:
			return nil, r.fail("expected parameter")
		}

		if !r.matchOp(",") {
			break
		}
	}
	return args, nil
}

func (r *run) param(annotated bool) (*ast.Arg, error) {
	start := r.cur()
	name, err := r.ident()
	if err != nil {
		return nil, err
	}
	a := &ast.Arg{Arg: name}
	if annotated && r.matchOp(":") {
		ann, err := r.test()
		if err != nil {
			return nil, err
		}
		a.Annotation = ann
	}
	a.Span = r.spanFrom(start)
	return a, nil
}

// typeParams parses a PEP 695 `[T, *Ts, **P]` list, bracket included.
func (r *run) typeParams() ([]ast.Node, error) {
	if err := r.expectOp("["); err != nil {
		return nil, err
	}
	params := []ast.Node{}
	for !r.isOp("]") {
		start := r.cur()
		switch {
		case r.matchOp("*"):
			name, err := r.ident()
			if err != nil {
				return nil, err
			}
			params = append(params, &ast.TypeVarTuple{Span: r.spanFrom(start), Name: name})
		case r.matchOp("**"):
			name, err := r.ident()
			if err != nil {
				return nil, err
			}
			params = append(params, &ast.ParamSpec{Span: r.spanFrom(start), Name: name})
		default:
			name, err := r.ident()
			if err != nil {
				return nil, err
			}
			tv := &ast.TypeVar{Name: name}
			if r.matchOp(":") {
				bound, err := r.test()
				if err != nil {
					return nil, err
				}
				tv.Bound = bound
			}
			tv.Span = r.spanFrom(start)
			params = append(params, tv)
		}
		if !r.matchOp(",") {
			break
		}
	}
	if err := r.expectOp("]"); err != nil {
		return nil, err
	}
	return params, nil
}

func (r *run) classDef(decorators []ast.Expr) (ast.Stmt, error) {
	start := r.advance() // class
	name, err := r.ident()
	if err != nil {
		return nil, err
	}

	typeParams := []ast.Node{}
	if r.isOp("[") {
		typeParams, err = r.typeParams()
		if err != nil {
			return nil, err
		}
	}

	bases := []ast.Expr{}
	keywords := []*ast.Keyword{}
	if r.matchOp("(") {
		bases, keywords, err = r.callArgs()
		if err != nil {
			return nil, err
		}
		if err := r.expectOp(")"); err != nil {
			return nil, err
		}
	}

	body, err := r.block()
	if err != nil {
		return nil, err
	}
	if decorators == nil {
		decorators = []ast.Expr{}
	}

	return &ast.ClassDef{Span: r.spanFrom(start), Name: name, Bases: bases,
		Keywords: keywords, Body: body, DecoratorList: decorators, TypeParams: typeParams}, nil
}

func (r *run) ifStmt() (ast.Stmt, error) {
	start := r.advance() // if
	test, err := r.expression()
	if err != nil {
		return nil, err
	}
	body, err := r.block()
	if err != nil {
		return nil, err
	}
	stmt := &ast.If{Test: test, Body: body, Orelse: []ast.Stmt{}}

	switch {
	case r.isName("elif"):
		nested, err := r.ifStmt() // consumes "elif" as its "if"
		if err != nil {
			return nil, err
		}
		stmt.Orelse = []ast.Stmt{nested}
	case r.isName("else"):
		r.advance()
		orelse, err := r.block()
		if err != nil {
			return nil, err
		}
		stmt.Orelse = orelse
	}
	stmt.Span = r.spanFrom(start)
	return stmt, nil
}

func (r *run) whileStmt() (ast.Stmt, error) {
	start := r.advance() // while
	test, err := r.expression()
	if err != nil {
		return nil, err
	}
	body, err := r.block()
	if err != nil {
		return nil, err
	}
	stmt := &ast.While{Test: test, Body: body, Orelse: []ast.Stmt{}}
	if r.matchName("else") {
		orelse, err := r.block()
		if err != nil {
			return nil, err
		}
		stmt.Orelse = orelse
	}
	stmt.Span = r.spanFrom(start)
	return stmt, nil
}

func (r *run) forStmt(async bool) (ast.Stmt, error) {
	start := r.advance() // for
	target, err := r.targetList()
	if err != nil {
		return nil, err
	}
	if err := r.expectName("in"); err != nil {
		return nil, err
	}
	iter, err := r.testListStar()
	if err != nil {
		return nil, err
	}
	body, err := r.block()
	if err != nil {
		return nil, err
	}
	orelse := []ast.Stmt{}
	if r.matchName("else") {
		orelse, err = r.block()
		if err != nil {
			return nil, err
		}
	}

	if async {
		return &ast.AsyncFor{Span: r.spanFrom(start), Target: target, Iter: iter,
			Body: body, Orelse: orelse}, nil
	}
	return &ast.For{Span: r.spanFrom(start), Target: target, Iter: iter,
		Body: body, Orelse: orelse}, nil
}

func (r *run) withStmt(async bool) (ast.Stmt, error) {
	start := r.advance() // with
	items := []*ast.WithItem{}
	for {
		item, err := r.withItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !r.matchOp(",") {
			break
		}
	}
	body, err := r.block()
	if err != nil {
		return nil, err
	}

	if async {
		return &ast.AsyncWith{Span: r.spanFrom(start), Items: items, Body: body}, nil
	}
	return &ast.With{Span: r.spanFrom(start), Items: items, Body: body}, nil
}

func (r *run) withItem() (*ast.WithItem, error) {
	ctx, err := r.test()
	if err != nil {
		return nil, err
	}
	item := &ast.WithItem{ContextExpr: ctx}
	if r.matchName("as") {
		target, err := r.target()
		if err != nil {
			return nil, err
		}
		item.OptionalVars = target
	}
	return item, nil
}

func (r *run) tryStmt() (ast.Stmt, error) {
	start := r.advance() // try
	body, err := r.block()
	if err != nil {
		return nil, err
	}

	stmt := &ast.Try{Body: body, Handlers: []*ast.ExceptHandler{},
		Orelse: []ast.Stmt{}, Finalbody: []ast.Stmt{}}

	for r.isName("except") {
		hstart := r.advance()
		h := &ast.ExceptHandler{}
		if !r.isOp(":") {
			typ, err := r.test()
			if err != nil {
				return nil, err
			}
			h.Type = typ
			if r.matchName("as") {
				name, err := r.ident()
				if err != nil {
					return nil, err
				}
				h.Name = &name
			}
		}
		hbody, err := r.block()
		if err != nil {
			return nil, err
		}
		h.Body = hbody
		h.Span = r.spanFrom(hstart)
		stmt.Handlers = append(stmt.Handlers, h)
	}

	if r.matchName("else") {
		orelse, err := r.block()
		if err != nil {
			return nil, err
		}
		stmt.Orelse = orelse
	}
	if r.matchName("finally") {
		finalbody, err := r.block()
		if err != nil {
			return nil, err
		}
		stmt.Finalbody = finalbody
	}
	if len(stmt.Handlers) == 0 && len(stmt.Finalbody) == 0 {
		return nil, r.fail("expected \"except\" or \"finally\" block")
	}
	stmt.Span = r.spanFrom(start)
	return stmt, nil
}

// typeAliasStmt speculatively parses `type Name[params] = value`. The "type"
// lexeme is a soft keyword, so any mismatch rolls back and reports not-taken.
func (r *run) typeAliasStmt() (ast.Stmt, bool) {
	mark := r.save()
	start := r.advance() // type
	nameTok := r.cur()
	if nameTok.Kind != lexer.KindName {
		r.restore(mark)
		return nil, false
	}
	r.advance()
	name := &ast.Name{Span: r.spanFrom(nameTok), ID: nameTok.Lexeme}

	typeParams := []ast.Node{}
	if r.isOp("[") {
		tp, err := r.typeParams()
		if err != nil {
			r.restore(mark)
			return nil, false
		}
		typeParams = tp
	}
	if !r.matchOp("=") {
		r.restore(mark)
		return nil, false
	}
	value, err := r.test()
	if err != nil {
		r.restore(mark)
		return nil, false
	}
	if err := r.endOfLine(); err != nil {
		r.restore(mark)
		return nil, false
	}
	return &ast.TypeAlias{Span: r.spanFrom(start), Name: name,
		TypeParams: typeParams, Value: value}, true
}
