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

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownNodeTag is returned by UnmarshalNode for a "type" value outside
// the closed node vocabulary.
var ErrUnknownNodeTag = errors.New("unknown AST node tag")

// MarshalNode encodes a node (and its subtree) into the interop JSON shape:
// every object carries a "type" tag, repeated fields are arrays, missing
// optionals are null.
func MarshalNode(n Node) ([]byte, error) {
	return json.Marshal(n)
}

// =============================================================================
// Tagged encoding
// =============================================================================
//
// Each node type wraps itself with its tag through a local alias so that
// nested nodes serialize through their own MarshalJSON. The alias breaks the
// recursion that a direct json.Marshal(n) would cause.

func (n *Module) MarshalJSON() ([]byte, error) {
	type alias Module
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Module", (*alias)(n)})
}

func (n *Import) MarshalJSON() ([]byte, error) {
	type alias Import
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Import", (*alias)(n)})
}

func (n *ImportFrom) MarshalJSON() ([]byte, error) {
	type alias ImportFrom
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"ImportFrom", (*alias)(n)})
}

func (n *FunctionDef) MarshalJSON() ([]byte, error) {
	type alias FunctionDef
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"FunctionDef", (*alias)(n)})
}

func (n *AsyncFunctionDef) MarshalJSON() ([]byte, error) {
	type alias AsyncFunctionDef
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"AsyncFunctionDef", (*alias)(n)})
}

func (n *ClassDef) MarshalJSON() ([]byte, error) {
	type alias ClassDef
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"ClassDef", (*alias)(n)})
}

func (n *Assign) MarshalJSON() ([]byte, error) {
	type alias Assign
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Assign", (*alias)(n)})
}

func (n *AugAssign) MarshalJSON() ([]byte, error) {
	type alias AugAssign
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"AugAssign", (*alias)(n)})
}

func (n *AnnAssign) MarshalJSON() ([]byte, error) {
	type alias AnnAssign
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"AnnAssign", (*alias)(n)})
}

func (n *If) MarshalJSON() ([]byte, error) {
	type alias If
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"If", (*alias)(n)})
}

func (n *For) MarshalJSON() ([]byte, error) {
	type alias For
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"For", (*alias)(n)})
}

func (n *AsyncFor) MarshalJSON() ([]byte, error) {
	type alias AsyncFor
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"AsyncFor", (*alias)(n)})
}

func (n *While) MarshalJSON() ([]byte, error) {
	type alias While
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"While", (*alias)(n)})
}

func (n *With) MarshalJSON() ([]byte, error) {
	type alias With
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"With", (*alias)(n)})
}

func (n *AsyncWith) MarshalJSON() ([]byte, error) {
	type alias AsyncWith
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"AsyncWith", (*alias)(n)})
}

func (n *Match) MarshalJSON() ([]byte, error) {
	type alias Match
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Match", (*alias)(n)})
}

func (n *Try) MarshalJSON() ([]byte, error) {
	type alias Try
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Try", (*alias)(n)})
}

func (n *Raise) MarshalJSON() ([]byte, error) {
	type alias Raise
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Raise", (*alias)(n)})
}

func (n *Return) MarshalJSON() ([]byte, error) {
	type alias Return
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Return", (*alias)(n)})
}

func (n *Delete) MarshalJSON() ([]byte, error) {
	type alias Delete
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Delete", (*alias)(n)})
}

func (n *Pass) MarshalJSON() ([]byte, error) {
	type alias Pass
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Pass", (*alias)(n)})
}

func (n *Break) MarshalJSON() ([]byte, error) {
	type alias Break
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Break", (*alias)(n)})
}

func (n *Continue) MarshalJSON() ([]byte, error) {
	type alias Continue
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Continue", (*alias)(n)})
}

func (n *Global) MarshalJSON() ([]byte, error) {
	type alias Global
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Global", (*alias)(n)})
}

func (n *Nonlocal) MarshalJSON() ([]byte, error) {
	type alias Nonlocal
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Nonlocal", (*alias)(n)})
}

func (n *Assert) MarshalJSON() ([]byte, error) {
	type alias Assert
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Assert", (*alias)(n)})
}

func (n *ExprStmt) MarshalJSON() ([]byte, error) {
	type alias ExprStmt
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Expr", (*alias)(n)})
}

func (n *TypeAlias) MarshalJSON() ([]byte, error) {
	type alias TypeAlias
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"TypeAlias", (*alias)(n)})
}

func (n *BoolOp) MarshalJSON() ([]byte, error) {
	type alias BoolOp
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"BoolOp", (*alias)(n)})
}

func (n *NamedExpr) MarshalJSON() ([]byte, error) {
	type alias NamedExpr
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"NamedExpr", (*alias)(n)})
}

func (n *BinOp) MarshalJSON() ([]byte, error) {
	type alias BinOp
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"BinOp", (*alias)(n)})
}

func (n *UnaryOp) MarshalJSON() ([]byte, error) {
	type alias UnaryOp
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"UnaryOp", (*alias)(n)})
}

func (n *Lambda) MarshalJSON() ([]byte, error) {
	type alias Lambda
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Lambda", (*alias)(n)})
}

func (n *IfExp) MarshalJSON() ([]byte, error) {
	type alias IfExp
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"IfExp", (*alias)(n)})
}

func (n *Dict) MarshalJSON() ([]byte, error) {
	type alias Dict
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Dict", (*alias)(n)})
}

func (n *Set) MarshalJSON() ([]byte, error) {
	type alias Set
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Set", (*alias)(n)})
}

func (n *List) MarshalJSON() ([]byte, error) {
	type alias List
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"List", (*alias)(n)})
}

func (n *Tuple) MarshalJSON() ([]byte, error) {
	type alias Tuple
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Tuple", (*alias)(n)})
}

func (n *ListComp) MarshalJSON() ([]byte, error) {
	type alias ListComp
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"ListComp", (*alias)(n)})
}

func (n *SetComp) MarshalJSON() ([]byte, error) {
	type alias SetComp
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"SetComp", (*alias)(n)})
}

func (n *DictComp) MarshalJSON() ([]byte, error) {
	type alias DictComp
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"DictComp", (*alias)(n)})
}

func (n *GeneratorExp) MarshalJSON() ([]byte, error) {
	type alias GeneratorExp
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"GeneratorExp", (*alias)(n)})
}

func (n *Await) MarshalJSON() ([]byte, error) {
	type alias Await
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Await", (*alias)(n)})
}

func (n *Yield) MarshalJSON() ([]byte, error) {
	type alias Yield
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Yield", (*alias)(n)})
}

func (n *YieldFrom) MarshalJSON() ([]byte, error) {
	type alias YieldFrom
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"YieldFrom", (*alias)(n)})
}

func (n *Compare) MarshalJSON() ([]byte, error) {
	type alias Compare
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Compare", (*alias)(n)})
}

func (n *Call) MarshalJSON() ([]byte, error) {
	type alias Call
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Call", (*alias)(n)})
}

func (n *FormattedValue) MarshalJSON() ([]byte, error) {
	type alias FormattedValue
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"FormattedValue", (*alias)(n)})
}

func (n *JoinedStr) MarshalJSON() ([]byte, error) {
	type alias JoinedStr
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"JoinedStr", (*alias)(n)})
}

func (n *Constant) MarshalJSON() ([]byte, error) {
	type alias Constant
	if f, ok := n.Value.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e21 {
		// Keep a fraction so constVal reads an integral float back as float64.
		return json.Marshal(struct {
			Type string `json:"type"`
			*alias
			Value json.RawMessage `json:"value"`
		}{"Constant", (*alias)(n), json.RawMessage(strconv.FormatFloat(f, 'f', 1, 64))})
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Constant", (*alias)(n)})
}

func (n *Attribute) MarshalJSON() ([]byte, error) {
	type alias Attribute
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Attribute", (*alias)(n)})
}

func (n *Subscript) MarshalJSON() ([]byte, error) {
	type alias Subscript
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Subscript", (*alias)(n)})
}

func (n *Starred) MarshalJSON() ([]byte, error) {
	type alias Starred
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Starred", (*alias)(n)})
}

func (n *Name) MarshalJSON() ([]byte, error) {
	type alias Name
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Name", (*alias)(n)})
}

func (n *Slice) MarshalJSON() ([]byte, error) {
	type alias Slice
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"Slice", (*alias)(n)})
}

func (n *Alias) MarshalJSON() ([]byte, error) {
	type alias Alias
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"alias", (*alias)(n)})
}

func (n *Arguments) MarshalJSON() ([]byte, error) {
	type alias Arguments
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"arguments", (*alias)(n)})
}

func (n *Arg) MarshalJSON() ([]byte, error) {
	type alias Arg
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"arg", (*alias)(n)})
}

func (n *Keyword) MarshalJSON() ([]byte, error) {
	type alias Keyword
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"keyword", (*alias)(n)})
}

func (n *WithItem) MarshalJSON() ([]byte, error) {
	type alias WithItem
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"withitem", (*alias)(n)})
}

func (n *Comprehension) MarshalJSON() ([]byte, error) {
	type alias Comprehension
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"comprehension", (*alias)(n)})
}

func (n *MatchCase) MarshalJSON() ([]byte, error) {
	type alias MatchCase
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"match_case", (*alias)(n)})
}

func (n *ExceptHandler) MarshalJSON() ([]byte, error) {
	type alias ExceptHandler
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"ExceptHandler", (*alias)(n)})
}

func (n *MatchValue) MarshalJSON() ([]byte, error) {
	type alias MatchValue
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"MatchValue", (*alias)(n)})
}

func (n *MatchSingleton) MarshalJSON() ([]byte, error) {
	type alias MatchSingleton
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"MatchSingleton", (*alias)(n)})
}

func (n *MatchSequence) MarshalJSON() ([]byte, error) {
	type alias MatchSequence
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"MatchSequence", (*alias)(n)})
}

func (n *MatchMapping) MarshalJSON() ([]byte, error) {
	type alias MatchMapping
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"MatchMapping", (*alias)(n)})
}

func (n *MatchClass) MarshalJSON() ([]byte, error) {
	type alias MatchClass
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"MatchClass", (*alias)(n)})
}

func (n *MatchStar) MarshalJSON() ([]byte, error) {
	type alias MatchStar
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"MatchStar", (*alias)(n)})
}

func (n *MatchAs) MarshalJSON() ([]byte, error) {
	type alias MatchAs
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"MatchAs", (*alias)(n)})
}

func (n *MatchOr) MarshalJSON() ([]byte, error) {
	type alias MatchOr
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"MatchOr", (*alias)(n)})
}

func (n *TypeVar) MarshalJSON() ([]byte, error) {
	type alias TypeVar
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"TypeVar", (*alias)(n)})
}

func (n *TypeVarTuple) MarshalJSON() ([]byte, error) {
	type alias TypeVarTuple
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"TypeVarTuple", (*alias)(n)})
}

func (n *ParamSpec) MarshalJSON() ([]byte, error) {
	type alias ParamSpec
	return json.Marshal(struct {
		Type string `json:"type"`
		*alias
	}{"ParamSpec", (*alias)(n)})
}

// =============================================================================
// Decoding
// =============================================================================

// UnmarshalNode decodes the interop JSON shape back into a node tree.
// A "type" tag outside the closed vocabulary fails with ErrUnknownNodeTag,
// anywhere in the tree.
func UnmarshalNode(data []byte) (Node, error) {
	d := &decoder{}
	n := d.node(data)
	if d.err != nil {
		return nil, d.err
	}
	return n, nil
}

// decoder carries a sticky error through the recursive decode so each field
// read stays a one-liner.
type decoder struct {
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (d *decoder) fields(raw json.RawMessage) (map[string]json.RawMessage, string) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		d.fail(fmt.Errorf("decode node object: %w", err))
		return nil, ""
	}
	tagRaw, ok := m["type"]
	if !ok {
		d.fail(fmt.Errorf("%w: missing type field", ErrUnknownNodeTag))
		return nil, ""
	}
	var tag string
	if err := json.Unmarshal(tagRaw, &tag); err != nil {
		d.fail(fmt.Errorf("decode type tag: %w", err))
		return nil, ""
	}
	if !KnownKinds[tag] {
		d.fail(fmt.Errorf("%w: %q", ErrUnknownNodeTag, tag))
		return nil, ""
	}
	return m, tag
}

func (d *decoder) span(m map[string]json.RawMessage) Span {
	var s Span
	s.Line = d.intField(m, "line")
	s.Col = d.intField(m, "col")
	s.EndLine = d.intField(m, "end_line")
	s.EndCol = d.intField(m, "end_col")
	return s
}

func (d *decoder) intField(m map[string]json.RawMessage, key string) int {
	raw, ok := m[key]
	if !ok || isNull(raw) {
		return 0
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		d.fail(fmt.Errorf("decode %s: %w", key, err))
	}
	return v
}

func (d *decoder) str(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		d.fail(fmt.Errorf("decode string: %w", err))
	}
	return s
}

func (d *decoder) strPtr(raw json.RawMessage) *string {
	if isNull(raw) {
		return nil
	}
	s := d.str(raw)
	return &s
}

func (d *decoder) strList(raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		d.fail(fmt.Errorf("decode string list: %w", err))
	}
	return out
}

func (d *decoder) intVal(raw json.RawMessage) int {
	if isNull(raw) {
		return 0
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		d.fail(fmt.Errorf("decode int: %w", err))
	}
	return v
}

// constVal decodes a Constant/MatchSingleton payload. Integers without a
// fractional or exponent part come back as int64 so round-trips preserve the
// parser's representation.
func (d *decoder) constVal(raw json.RawMessage) any {
	if isNull(raw) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		d.fail(fmt.Errorf("decode constant: %w", err))
		return nil
	}
	switch tv := v.(type) {
	case json.Number:
		s := tv.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := tv.Int64(); err == nil {
				return i
			}
		}
		f, err := tv.Float64()
		if err != nil {
			d.fail(fmt.Errorf("decode number constant: %w", err))
			return nil
		}
		return f
	case map[string]any:
		if im, ok := tv["imaginary"]; ok && len(tv) == 1 {
			switch f := im.(type) {
			case json.Number:
				fv, _ := f.Float64()
				return Imaginary{Imag: fv}
			case float64:
				return Imaginary{Imag: f}
			}
		}
		if _, ok := tv["ellipsis"]; ok && len(tv) == 1 {
			return EllipsisValue{Ellipsis: true}
		}
		d.fail(fmt.Errorf("decode constant: unsupported object payload"))
		return nil
	}
	return v
}

func (d *decoder) expr(raw json.RawMessage) Expr {
	if isNull(raw) {
		return nil
	}
	n := d.node(raw)
	if n == nil {
		return nil
	}
	e, ok := n.(Expr)
	if !ok {
		d.fail(fmt.Errorf("node %s is not an expression", n.Kind()))
		return nil
	}
	return e
}

// exprList preserves null entries (Dict spread keys, kw_defaults).
func (d *decoder) exprList(raw json.RawMessage) []Expr {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.fail(fmt.Errorf("decode expression list: %w", err))
		return nil
	}
	out := make([]Expr, 0, len(items))
	for _, it := range items {
		if isNull(it) {
			out = append(out, nil)
			continue
		}
		out = append(out, d.expr(it))
	}
	return out
}

func (d *decoder) stmt(raw json.RawMessage) Stmt {
	n := d.node(raw)
	if n == nil {
		return nil
	}
	s, ok := n.(Stmt)
	if !ok {
		d.fail(fmt.Errorf("node %s is not a statement", n.Kind()))
		return nil
	}
	return s
}

func (d *decoder) stmtList(raw json.RawMessage) []Stmt {
	if isNull(raw) {
		return []Stmt{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.fail(fmt.Errorf("decode statement list: %w", err))
		return nil
	}
	out := make([]Stmt, 0, len(items))
	for _, it := range items {
		if s := d.stmt(it); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (d *decoder) pat(raw json.RawMessage) Pattern {
	if isNull(raw) {
		return nil
	}
	n := d.node(raw)
	if n == nil {
		return nil
	}
	p, ok := n.(Pattern)
	if !ok {
		d.fail(fmt.Errorf("node %s is not a pattern", n.Kind()))
		return nil
	}
	return p
}

func (d *decoder) patList(raw json.RawMessage) []Pattern {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.fail(fmt.Errorf("decode pattern list: %w", err))
		return nil
	}
	out := make([]Pattern, 0, len(items))
	for _, it := range items {
		if p := d.pat(it); p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (d *decoder) nodeList(raw json.RawMessage) []Node {
	if isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.fail(fmt.Errorf("decode node list: %w", err))
		return nil
	}
	out := make([]Node, 0, len(items))
	for _, it := range items {
		if n := d.node(it); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (d *decoder) aliasList(raw json.RawMessage) []*Alias {
	out := []*Alias{}
	for _, n := range d.nodeList(raw) {
		a, ok := n.(*Alias)
		if !ok {
			d.fail(fmt.Errorf("node %s is not an alias", n.Kind()))
			return nil
		}
		out = append(out, a)
	}
	return out
}

func (d *decoder) keywordList(raw json.RawMessage) []*Keyword {
	out := []*Keyword{}
	for _, n := range d.nodeList(raw) {
		k, ok := n.(*Keyword)
		if !ok {
			d.fail(fmt.Errorf("node %s is not a keyword", n.Kind()))
			return nil
		}
		out = append(out, k)
	}
	return out
}

func (d *decoder) argPtr(raw json.RawMessage) *Arg {
	if isNull(raw) {
		return nil
	}
	n := d.node(raw)
	if n == nil {
		return nil
	}
	a, ok := n.(*Arg)
	if !ok {
		d.fail(fmt.Errorf("node %s is not an arg", n.Kind()))
		return nil
	}
	return a
}

func (d *decoder) argList(raw json.RawMessage) []*Arg {
	out := []*Arg{}
	for _, n := range d.nodeList(raw) {
		a, ok := n.(*Arg)
		if !ok {
			d.fail(fmt.Errorf("node %s is not an arg", n.Kind()))
			return nil
		}
		out = append(out, a)
	}
	return out
}

func (d *decoder) argumentsPtr(raw json.RawMessage) *Arguments {
	if isNull(raw) {
		return nil
	}
	n := d.node(raw)
	if n == nil {
		return nil
	}
	a, ok := n.(*Arguments)
	if !ok {
		d.fail(fmt.Errorf("node %s is not arguments", n.Kind()))
		return nil
	}
	return a
}

func (d *decoder) node(raw json.RawMessage) Node {
	if d.err != nil || isNull(raw) {
		return nil
	}
	m, tag := d.fields(raw)
	if d.err != nil {
		return nil
	}
	sp := d.span(m)

	switch tag {
	case "Module":
		return &Module{Span: sp, Body: d.stmtList(m["body"])}

	case "Import":
		return &Import{Span: sp, Names: d.aliasList(m["names"])}
	case "ImportFrom":
		return &ImportFrom{Span: sp, Module: d.strPtr(m["module"]),
			Names: d.aliasList(m["names"]), Level: d.intVal(m["level"])}
	case "FunctionDef":
		return &FunctionDef{Span: sp, Name: d.str(m["name"]), Args: d.argumentsPtr(m["args"]),
			Body: d.stmtList(m["body"]), DecoratorList: d.exprList(m["decorator_list"]),
			Returns: d.expr(m["returns"]), TypeParams: d.nodeList(m["type_params"])}
	case "AsyncFunctionDef":
		return &AsyncFunctionDef{Span: sp, Name: d.str(m["name"]), Args: d.argumentsPtr(m["args"]),
			Body: d.stmtList(m["body"]), DecoratorList: d.exprList(m["decorator_list"]),
			Returns: d.expr(m["returns"]), TypeParams: d.nodeList(m["type_params"])}
	case "ClassDef":
		return &ClassDef{Span: sp, Name: d.str(m["name"]), Bases: d.exprList(m["bases"]),
			Keywords: d.keywordList(m["keywords"]), Body: d.stmtList(m["body"]),
			DecoratorList: d.exprList(m["decorator_list"]), TypeParams: d.nodeList(m["type_params"])}
	case "Assign":
		return &Assign{Span: sp, Targets: d.exprList(m["targets"]), Value: d.expr(m["value"])}
	case "AugAssign":
		return &AugAssign{Span: sp, Target: d.expr(m["target"]), Op: d.str(m["op"]), Value: d.expr(m["value"])}
	case "AnnAssign":
		return &AnnAssign{Span: sp, Target: d.expr(m["target"]), Annotation: d.expr(m["annotation"]),
			Value: d.expr(m["value"]), Simple: d.intVal(m["simple"])}
	case "If":
		return &If{Span: sp, Test: d.expr(m["test"]), Body: d.stmtList(m["body"]), Orelse: d.stmtList(m["orelse"])}
	case "For":
		return &For{Span: sp, Target: d.expr(m["target"]), Iter: d.expr(m["iter"]),
			Body: d.stmtList(m["body"]), Orelse: d.stmtList(m["orelse"])}
	case "AsyncFor":
		return &AsyncFor{Span: sp, Target: d.expr(m["target"]), Iter: d.expr(m["iter"]),
			Body: d.stmtList(m["body"]), Orelse: d.stmtList(m["orelse"])}
	case "While":
		return &While{Span: sp, Test: d.expr(m["test"]), Body: d.stmtList(m["body"]), Orelse: d.stmtList(m["orelse"])}
	case "With":
		return &With{Span: sp, Items: d.withitemList(m["items"]), Body: d.stmtList(m["body"])}
	case "AsyncWith":
		return &AsyncWith{Span: sp, Items: d.withitemList(m["items"]), Body: d.stmtList(m["body"])}
	case "Match":
		return &Match{Span: sp, Subject: d.expr(m["subject"]), Cases: d.matchCaseList(m["cases"])}
	case "Try":
		return &Try{Span: sp, Body: d.stmtList(m["body"]), Handlers: d.handlerList(m["handlers"]),
			Orelse: d.stmtList(m["orelse"]), Finalbody: d.stmtList(m["finalbody"])}
	case "Raise":
		return &Raise{Span: sp, Exc: d.expr(m["exc"]), Cause: d.expr(m["cause"])}
	case "Return":
		return &Return{Span: sp, Value: d.expr(m["value"])}
	case "Delete":
		return &Delete{Span: sp, Targets: d.exprList(m["targets"])}
	case "Pass":
		return &Pass{Span: sp}
	case "Break":
		return &Break{Span: sp}
	case "Continue":
		return &Continue{Span: sp}
	case "Global":
		return &Global{Span: sp, Names: d.strList(m["names"])}
	case "Nonlocal":
		return &Nonlocal{Span: sp, Names: d.strList(m["names"])}
	case "Assert":
		return &Assert{Span: sp, Test: d.expr(m["test"]), Msg: d.expr(m["msg"])}
	case "Expr":
		return &ExprStmt{Span: sp, Value: d.expr(m["value"])}
	case "TypeAlias":
		return &TypeAlias{Span: sp, Name: d.expr(m["name"]),
			TypeParams: d.nodeList(m["type_params"]), Value: d.expr(m["value"])}

	case "BoolOp":
		return &BoolOp{Span: sp, Op: d.str(m["op"]), Values: d.exprList(m["values"])}
	case "NamedExpr":
		return &NamedExpr{Span: sp, Target: d.expr(m["target"]), Value: d.expr(m["value"])}
	case "BinOp":
		return &BinOp{Span: sp, Left: d.expr(m["left"]), Op: d.str(m["op"]), Right: d.expr(m["right"])}
	case "UnaryOp":
		return &UnaryOp{Span: sp, Op: d.str(m["op"]), Operand: d.expr(m["operand"])}
	case "Lambda":
		return &Lambda{Span: sp, Args: d.argumentsPtr(m["args"]), Body: d.expr(m["body"])}
	case "IfExp":
		return &IfExp{Span: sp, Test: d.expr(m["test"]), Body: d.expr(m["body"]), Orelse: d.expr(m["orelse"])}
	case "Dict":
		return &Dict{Span: sp, Keys: d.exprList(m["keys"]), Values: d.exprList(m["values"])}
	case "Set":
		return &Set{Span: sp, Elts: d.exprList(m["elts"])}
	case "List":
		return &List{Span: sp, Elts: d.exprList(m["elts"])}
	case "Tuple":
		return &Tuple{Span: sp, Elts: d.exprList(m["elts"])}
	case "ListComp":
		return &ListComp{Span: sp, Elt: d.expr(m["elt"]), Generators: d.comprehensionList(m["generators"])}
	case "SetComp":
		return &SetComp{Span: sp, Elt: d.expr(m["elt"]), Generators: d.comprehensionList(m["generators"])}
	case "DictComp":
		return &DictComp{Span: sp, Key: d.expr(m["key"]), Value: d.expr(m["value"]),
			Generators: d.comprehensionList(m["generators"])}
	case "GeneratorExp":
		return &GeneratorExp{Span: sp, Elt: d.expr(m["elt"]), Generators: d.comprehensionList(m["generators"])}
	case "Await":
		return &Await{Span: sp, Value: d.expr(m["value"])}
	case "Yield":
		return &Yield{Span: sp, Value: d.expr(m["value"])}
	case "YieldFrom":
		return &YieldFrom{Span: sp, Value: d.expr(m["value"])}
	case "Compare":
		return &Compare{Span: sp, Left: d.expr(m["left"]), Ops: d.strList(m["ops"]),
			Comparators: d.exprList(m["comparators"])}
	case "Call":
		return &Call{Span: sp, Func: d.expr(m["func"]), Args: d.exprList(m["args"]),
			Keywords: d.keywordList(m["keywords"])}
	case "FormattedValue":
		conv := -1
		if raw, ok := m["conversion"]; ok && !isNull(raw) {
			conv = d.intVal(raw)
		}
		return &FormattedValue{Span: sp, Value: d.expr(m["value"]), Conversion: conv,
			FormatSpec: d.expr(m["format_spec"])}
	case "JoinedStr":
		return &JoinedStr{Span: sp, Values: d.exprList(m["values"])}
	case "Constant":
		return &Constant{Span: sp, Value: d.constVal(m["value"])}
	case "Attribute":
		return &Attribute{Span: sp, Value: d.expr(m["value"]), Attr: d.str(m["attr"])}
	case "Subscript":
		return &Subscript{Span: sp, Value: d.expr(m["value"]), Slice: d.expr(m["slice"])}
	case "Starred":
		return &Starred{Span: sp, Value: d.expr(m["value"])}
	case "Name":
		return &Name{Span: sp, ID: d.str(m["id"])}
	case "Slice":
		return &Slice{Span: sp, Lower: d.expr(m["lower"]), Upper: d.expr(m["upper"]), Step: d.expr(m["step"])}

	case "alias":
		return &Alias{Span: sp, Name: d.str(m["name"]), Asname: d.strPtr(m["asname"])}
	case "arguments":
		return &Arguments{
			Posonlyargs: d.argList(m["posonlyargs"]),
			Args:        d.argList(m["args"]),
			Vararg:      d.argPtr(m["vararg"]),
			Kwonlyargs:  d.argList(m["kwonlyargs"]),
			KwDefaults:  d.exprList(m["kw_defaults"]),
			Kwarg:       d.argPtr(m["kwarg"]),
			Defaults:    d.exprList(m["defaults"]),
		}
	case "arg":
		return &Arg{Span: sp, Arg: d.str(m["arg"]), Annotation: d.expr(m["annotation"])}
	case "keyword":
		return &Keyword{Span: sp, Arg: d.strPtr(m["arg"]), Value: d.expr(m["value"])}
	case "withitem":
		return &WithItem{ContextExpr: d.expr(m["context_expr"]), OptionalVars: d.expr(m["optional_vars"])}
	case "comprehension":
		return &Comprehension{Target: d.expr(m["target"]), Iter: d.expr(m["iter"]),
			Ifs: d.exprList(m["ifs"]), IsAsync: d.intVal(m["is_async"])}
	case "match_case":
		return &MatchCase{Pattern: d.pat(m["pattern"]), Guard: d.expr(m["guard"]), Body: d.stmtList(m["body"])}
	case "ExceptHandler":
		return &ExceptHandler{Span: sp, Type: d.expr(m["type_"]), Name: d.strPtr(m["name"]),
			Body: d.stmtList(m["body"])}

	case "MatchValue":
		return &MatchValue{Span: sp, Value: d.expr(m["value"])}
	case "MatchSingleton":
		return &MatchSingleton{Span: sp, Value: d.constVal(m["value"])}
	case "MatchSequence":
		return &MatchSequence{Span: sp, Patterns: d.patList(m["patterns"])}
	case "MatchMapping":
		return &MatchMapping{Span: sp, Keys: d.exprList(m["keys"]),
			Patterns: d.patList(m["patterns"]), Rest: d.strPtr(m["rest"])}
	case "MatchClass":
		return &MatchClass{Span: sp, Cls: d.expr(m["cls"]), Patterns: d.patList(m["patterns"]),
			KwdAttrs: d.strList(m["kwd_attrs"]), KwdPatterns: d.patList(m["kwd_patterns"])}
	case "MatchStar":
		return &MatchStar{Span: sp, Name: d.strPtr(m["name"])}
	case "MatchAs":
		return &MatchAs{Span: sp, Pattern: d.pat(m["pattern"]), Name: d.strPtr(m["name"])}
	case "MatchOr":
		return &MatchOr{Span: sp, Patterns: d.patList(m["patterns"])}

	case "TypeVar":
		return &TypeVar{Span: sp, Name: d.str(m["name"]), Bound: d.expr(m["bound"])}
	case "TypeVarTuple":
		return &TypeVarTuple{Span: sp, Name: d.str(m["name"])}
	case "ParamSpec":
		return &ParamSpec{Span: sp, Name: d.str(m["name"])}
	}

	d.fail(fmt.Errorf("%w: %q", ErrUnknownNodeTag, tag))
	return nil
}

func (d *decoder) withitemList(raw json.RawMessage) []*WithItem {
	out := []*WithItem{}
	for _, n := range d.nodeList(raw) {
		w, ok := n.(*WithItem)
		if !ok {
			d.fail(fmt.Errorf("node %s is not a withitem", n.Kind()))
			return nil
		}
		out = append(out, w)
	}
	return out
}

func (d *decoder) matchCaseList(raw json.RawMessage) []*MatchCase {
	out := []*MatchCase{}
	for _, n := range d.nodeList(raw) {
		c, ok := n.(*MatchCase)
		if !ok {
			d.fail(fmt.Errorf("node %s is not a match_case", n.Kind()))
			return nil
		}
		out = append(out, c)
	}
	return out
}

func (d *decoder) comprehensionList(raw json.RawMessage) []*Comprehension {
	out := []*Comprehension{}
	for _, n := range d.nodeList(raw) {
		c, ok := n.(*Comprehension)
		if !ok {
			d.fail(fmt.Errorf("node %s is not a comprehension", n.Kind()))
			return nil
		}
		out = append(out, c)
	}
	return out
}

func (d *decoder) handlerList(raw json.RawMessage) []*ExceptHandler {
	out := []*ExceptHandler{}
	for _, n := range d.nodeList(raw) {
		h, ok := n.(*ExceptHandler)
		if !ok {
			d.fail(fmt.Errorf("node %s is not an ExceptHandler", n.Kind()))
			return nil
		}
		out = append(out, h)
	}
	return out
}
