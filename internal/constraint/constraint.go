// Copyright (c) 2024 santosr2
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package constraint implements a single symbolic constraint algebra
// shared by the gem and semver/npm ecosystems: a small tree of terminal
// comparisons (GreaterThan, GreaterEqual, LessThan, LessEqual, Exact) and
// And/Or/All nodes, plus simplification and slot-aware compilation to OS
// dependency clauses. Each ecosystem contributes its own parser; both
// parsers build the same tree shape.
package constraint

import (
	"fmt"
	"strings"
)

// Value is anything a Constraint can hold as a leaf bound: a version
// family with a total order and a display form. GemVersion and
// SemverVersion both satisfy this.
type Value[V any] interface {
	Compare(V) int
	String() string
}

// Op identifies a terminal comparison operator.
type Op int

const (
	GreaterThan Op = iota
	GreaterEqual
	LessThan
	LessEqual
	Exact
)

func (o Op) String() string {
	switch o {
	case GreaterThan:
		return ">"
	case GreaterEqual:
		return ">="
	case LessThan:
		return "<"
	case LessEqual:
		return "<="
	case Exact:
		return "="
	default:
		return "?"
	}
}

type kind int

const (
	kindLeaf kind = iota
	kindAnd
	kindOr
	kindAll
)

// Constraint is an immutable constraint tree node: a terminal comparison,
// an And/Or of children, or the distinguished All (unconstrained).
type Constraint[V Value[V]] struct {
	kind     kind
	op       Op
	version  V
	children []Constraint[V]
}

// Leaf builds a terminal comparison node.
func Leaf[V Value[V]](op Op, v V) Constraint[V] {
	return Constraint[V]{kind: kindLeaf, op: op, version: v}
}

// All returns the unconstrained constraint.
func All[V Value[V]]() Constraint[V] {
	return Constraint[V]{kind: kindAll}
}

// AndNode builds an And node directly from already-simplified children,
// without running buildAnd's simplification. Most callers want BuildAnd
// instead.
func AndNode[V Value[V]](children ...Constraint[V]) Constraint[V] {
	return Constraint[V]{kind: kindAnd, children: children}
}

// OrNode builds an Or node directly from already-simplified children.
// Most callers want BuildOr instead.
func OrNode[V Value[V]](children ...Constraint[V]) Constraint[V] {
	return Constraint[V]{kind: kindOr, children: children}
}

// IsAll reports whether c is the unconstrained constraint.
func (c Constraint[V]) IsAll() bool { return c.kind == kindAll }

// IsLeaf reports whether c is a single terminal comparison, returning its
// operator and version when true.
func (c Constraint[V]) IsLeaf() (Op, V, bool) {
	if c.kind == kindLeaf {
		return c.op, c.version, true
	}
	var zero V
	return 0, zero, false
}

// IsAnd reports whether c is an And node, returning its children.
func (c Constraint[V]) IsAnd() ([]Constraint[V], bool) {
	if c.kind == kindAnd {
		return c.children, true
	}
	return nil, false
}

// IsOr reports whether c is an Or node, returning its children.
func (c Constraint[V]) IsOr() ([]Constraint[V], bool) {
	if c.kind == kindOr {
		return c.children, true
	}
	return nil, false
}

// Matches reports whether v satisfies the constraint.
func (c Constraint[V]) Matches(v V) bool {
	switch c.kind {
	case kindAll:
		return true
	case kindLeaf:
		return matchesLeaf(c.op, c.version, v)
	case kindAnd:
		for _, child := range c.children {
			if !child.Matches(v) {
				return false
			}
		}
		return true
	case kindOr:
		for _, child := range c.children {
			if child.Matches(v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchesLeaf[V Value[V]](op Op, bound V, v V) bool {
	cmp := v.Compare(bound)
	switch op {
	case GreaterThan:
		return cmp > 0
	case GreaterEqual:
		return cmp >= 0
	case LessThan:
		return cmp < 0
	case LessEqual:
		return cmp <= 0
	case Exact:
		return cmp == 0
	default:
		return false
	}
}

// Equal reports structural equality: leaves compare by operator and
// version; And nodes compare as a multiset of leaves (order-independent);
// Or nodes and All compare the same way, recursively.
func (c Constraint[V]) Equal(other Constraint[V]) bool {
	if c.kind != other.kind {
		return false
	}
	switch c.kind {
	case kindAll:
		return true
	case kindLeaf:
		return c.op == other.op && c.version.Compare(other.version) == 0
	case kindAnd, kindOr:
		if len(c.children) != len(other.children) {
			return false
		}
		return sameMultiset(c.children, other.children)
	default:
		return false
	}
}

func sameMultiset[V Value[V]](a, b []Constraint[V]) bool {
	used := make([]bool, len(b))
	for _, ca := range a {
		found := false
		for i, cb := range b {
			if used[i] {
				continue
			}
			if ca.Equal(cb) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// String renders the constraint in a debug-readable form, not a
// round-trippable ecosystem syntax.
func (c Constraint[V]) String() string {
	switch c.kind {
	case kindAll:
		return "*"
	case kindLeaf:
		return c.op.String() + " " + c.version.String()
	case kindAnd:
		parts := make([]string, len(c.children))
		for i, child := range c.children {
			parts[i] = child.String()
		}
		return strings.Join(parts, ", ")
	case kindOr:
		parts := make([]string, len(c.children))
		for i, child := range c.children {
			parts[i] = child.String()
		}
		return strings.Join(parts, " || ")
	default:
		return fmt.Sprintf("<unknown constraint kind %d>", c.kind)
	}
}

func leafKey[V Value[V]](op Op, v V) string {
	return op.String() + " " + v.String()
}
