// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import "iter"

// =============================================================================
// Child Enumeration
// =============================================================================

// Children returns the direct node-valued children of n in field order,
// except that the type parameters of FunctionDef, AsyncFunctionDef and
// ClassDef come first. Scalar fields are ignored; nil optionals and nil list entries (e.g. the
// spread keys of a Dict) are skipped.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if c == nil || isNilNode(c) {
			return
		}
		out = append(out, c)
	}
	addExprs := func(es []Expr) {
		for _, e := range es {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	addStmts := func(ss []Stmt) {
		for _, s := range ss {
			if s != nil {
				out = append(out, s)
			}
		}
	}
	addPatterns := func(ps []Pattern) {
		for _, p := range ps {
			if p != nil {
				out = append(out, p)
			}
		}
	}
	addNodes := func(ns []Node) {
		for _, c := range ns {
			add(c)
		}
	}

	switch v := n.(type) {
	case *Module:
		addStmts(v.Body)
	case *Import:
		for _, a := range v.Names {
			add(a)
		}
	case *ImportFrom:
		for _, a := range v.Names {
			add(a)
		}
	case *FunctionDef:
		addNodes(v.TypeParams)
		add(v.Args)
		addStmts(v.Body)
		addExprs(v.DecoratorList)
		add(v.Returns)
	case *AsyncFunctionDef:
		addNodes(v.TypeParams)
		add(v.Args)
		addStmts(v.Body)
		addExprs(v.DecoratorList)
		add(v.Returns)
	case *ClassDef:
		addNodes(v.TypeParams)
		addExprs(v.Bases)
		for _, k := range v.Keywords {
			add(k)
		}
		addStmts(v.Body)
		addExprs(v.DecoratorList)
	case *Assign:
		addExprs(v.Targets)
		add(v.Value)
	case *AugAssign:
		add(v.Target)
		add(v.Value)
	case *AnnAssign:
		add(v.Target)
		add(v.Annotation)
		add(v.Value)
	case *If:
		add(v.Test)
		addStmts(v.Body)
		addStmts(v.Orelse)
	case *For:
		add(v.Target)
		add(v.Iter)
		addStmts(v.Body)
		addStmts(v.Orelse)
	case *AsyncFor:
		add(v.Target)
		add(v.Iter)
		addStmts(v.Body)
		addStmts(v.Orelse)
	case *While:
		add(v.Test)
		addStmts(v.Body)
		addStmts(v.Orelse)
	case *With:
		for _, it := range v.Items {
			add(it)
		}
		addStmts(v.Body)
	case *AsyncWith:
		for _, it := range v.Items {
			add(it)
		}
		addStmts(v.Body)
	case *Match:
		add(v.Subject)
		for _, c := range v.Cases {
			add(c)
		}
	case *Try:
		addStmts(v.Body)
		for _, h := range v.Handlers {
			add(h)
		}
		addStmts(v.Orelse)
		addStmts(v.Finalbody)
	case *Raise:
		add(v.Exc)
		add(v.Cause)
	case *Return:
		add(v.Value)
	case *Delete:
		addExprs(v.Targets)
	case *Pass, *Break, *Continue, *Global, *Nonlocal:
		// no node children
	case *Assert:
		add(v.Test)
		add(v.Msg)
	case *ExprStmt:
		add(v.Value)
	case *TypeAlias:
		add(v.Name)
		addNodes(v.TypeParams)
		add(v.Value)

	case *BoolOp:
		addExprs(v.Values)
	case *NamedExpr:
		add(v.Target)
		add(v.Value)
	case *BinOp:
		add(v.Left)
		add(v.Right)
	case *UnaryOp:
		add(v.Operand)
	case *Lambda:
		add(v.Args)
		add(v.Body)
	case *IfExp:
		add(v.Test)
		add(v.Body)
		add(v.Orelse)
	case *Dict:
		addExprs(v.Keys)
		addExprs(v.Values)
	case *Set:
		addExprs(v.Elts)
	case *List:
		addExprs(v.Elts)
	case *Tuple:
		addExprs(v.Elts)
	case *ListComp:
		add(v.Elt)
		for _, g := range v.Generators {
			add(g)
		}
	case *SetComp:
		add(v.Elt)
		for _, g := range v.Generators {
			add(g)
		}
	case *DictComp:
		add(v.Key)
		add(v.Value)
		for _, g := range v.Generators {
			add(g)
		}
	case *GeneratorExp:
		add(v.Elt)
		for _, g := range v.Generators {
			add(g)
		}
	case *Await:
		add(v.Value)
	case *Yield:
		add(v.Value)
	case *YieldFrom:
		add(v.Value)
	case *Compare:
		add(v.Left)
		addExprs(v.Comparators)
	case *Call:
		add(v.Func)
		addExprs(v.Args)
		for _, k := range v.Keywords {
			add(k)
		}
	case *FormattedValue:
		add(v.Value)
		add(v.FormatSpec)
	case *JoinedStr:
		addExprs(v.Values)
	case *Constant, *Name:
		// leaves
	case *Attribute:
		add(v.Value)
	case *Subscript:
		add(v.Value)
		add(v.Slice)
	case *Starred:
		add(v.Value)
	case *Slice:
		add(v.Lower)
		add(v.Upper)
		add(v.Step)

	case *Alias:
		// leaf
	case *Arguments:
		for _, a := range v.Posonlyargs {
			add(a)
		}
		for _, a := range v.Args {
			add(a)
		}
		add(v.Vararg)
		for _, a := range v.Kwonlyargs {
			add(a)
		}
		addExprs(v.KwDefaults)
		add(v.Kwarg)
		addExprs(v.Defaults)
	case *Arg:
		add(v.Annotation)
	case *Keyword:
		add(v.Value)
	case *WithItem:
		add(v.ContextExpr)
		add(v.OptionalVars)
	case *Comprehension:
		add(v.Target)
		add(v.Iter)
		addExprs(v.Ifs)
	case *MatchCase:
		add(v.Pattern)
		add(v.Guard)
		addStmts(v.Body)
	case *ExceptHandler:
		add(v.Type)
		addStmts(v.Body)

	case *MatchValue:
		add(v.Value)
	case *MatchSingleton:
		// leaf
	case *MatchSequence:
		addPatterns(v.Patterns)
	case *MatchMapping:
		addExprs(v.Keys)
		addPatterns(v.Patterns)
	case *MatchClass:
		add(v.Cls)
		addPatterns(v.Patterns)
		addPatterns(v.KwdPatterns)
	case *MatchStar:
		// leaf
	case *MatchAs:
		add(v.Pattern)
	case *MatchOr:
		addPatterns(v.Patterns)

	case *TypeVar:
		add(v.Bound)
	case *TypeVarTuple, *ParamSpec:
		// leaves
	}
	return out
}

// isNilNode reports whether a non-nil interface holds a nil concrete pointer.
// Optional fields are stored as typed nils in a few construction paths;
// traversal must not yield them.
func isNilNode(n Node) bool {
	switch v := n.(type) {
	case *Arguments:
		return v == nil
	case *Arg:
		return v == nil
	case *Alias:
		return v == nil
	case *Keyword:
		return v == nil
	case *WithItem:
		return v == nil
	case *Comprehension:
		return v == nil
	case *MatchCase:
		return v == nil
	case *ExceptHandler:
		return v == nil
	}
	return false
}

// =============================================================================
// Walk + Typed Queries
// =============================================================================

// Walk yields root and every descendant exactly once, depth-first preorder.
// The sequence is finite; each range over it starts a fresh pass from root.
func Walk(root Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		var visit func(Node) bool
		visit = func(n Node) bool {
			if !yield(n) {
				return false
			}
			for _, c := range Children(n) {
				if !visit(c) {
					return false
				}
			}
			return true
		}
		if root != nil {
			visit(root)
		}
	}
}

// NodesOfKind collects every node whose tag is one of kinds.
func NodesOfKind(root Node, kinds ...string) []Node {
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []Node
	for n := range Walk(root) {
		if want[n.Kind()] {
			out = append(out, n)
		}
	}
	return out
}

// Find returns the first node (preorder) satisfying pred, or nil.
func Find(root Node, pred func(Node) bool) Node {
	for n := range Walk(root) {
		if pred(n) {
			return n
		}
	}
	return nil
}

// FindAll returns every node satisfying pred, in preorder.
func FindAll(root Node, pred func(Node) bool) []Node {
	var out []Node
	for n := range Walk(root) {
		if pred(n) {
			out = append(out, n)
		}
	}
	return out
}
