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

// Visitor dispatches on node tags through a handler table, with an
// overridable generic fallback for tags that have no handler.
//
// Description:
//
//	Handlers is keyed by node tag ("FunctionDef", "Call", ...). Visit looks
//	up the handler for the node's tag and calls it; when none is registered
//	it calls GenericVisit, which defaults to recursing into every
//	node-valued field and returning the zero value of T. Handlers that want
//	the recursion must call v.GenericVisit themselves, mirroring CPython's
//	NodeVisitor contract.
//
// Thread Safety: a Visitor is not safe for concurrent use; create one per
// goroutine. Construction is cheap.
type Visitor[T any] struct {
	// Handlers maps node tags to visit hooks.
	Handlers map[string]func(*Visitor[T], Node) T

	// Generic, when non-nil, replaces the default generic visit.
	Generic func(*Visitor[T], Node) T
}

// Visit dispatches n to its handler, or to the generic visit when no
// handler is registered for the node's tag.
func (v *Visitor[T]) Visit(n Node) T {
	if h, ok := v.Handlers[n.Kind()]; ok {
		return h(v, n)
	}
	return v.GenericVisit(n)
}

// GenericVisit runs the fallback: the Generic override when set, otherwise
// a recursion into every child with a zero result.
func (v *Visitor[T]) GenericVisit(n Node) T {
	if v.Generic != nil {
		return v.Generic(v, n)
	}
	var zero T
	for _, c := range Children(n) {
		v.Visit(c)
	}
	return zero
}
