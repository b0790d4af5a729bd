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

package constraint

import "sort"

// BuildAnd simplifies a conjunction of leaves (or already-simplified And
// nodes, which are flattened one level). Leaves are grouped by direction:
// if an Exact leaf is present it dominates (at most one Exact is
// meaningful; callers must not build contradictory constraints). Among
// the `>`/`>=` leaves the strictest (highest version, preferring strict
// `>` on a tie) survives; among `<`/`<=` the strictest (lowest version,
// preferring strict `<` on a tie) survives. Non-leaf children (an Or
// nested inside an And) are kept verbatim and ANDed in alongside the
// surviving bounds. A single surviving term is returned unwrapped.
func BuildAnd[V Value[V]](constraints []Constraint[V]) Constraint[V] {
	var leaves []Constraint[V]
	for _, c := range constraints {
		switch c.kind {
		case kindAll:
			continue
		case kindAnd:
			leaves = append(leaves, c.children...)
		default:
			leaves = append(leaves, c)
		}
	}
	if len(leaves) == 0 {
		return All[V]()
	}

	var exact *Constraint[V]
	var lower *Constraint[V]
	var upper *Constraint[V]
	var opaque []Constraint[V]

	for i := range leaves {
		l := leaves[i]
		op, _, isLeaf := l.IsLeaf()
		if !isLeaf {
			opaque = append(opaque, l)
			continue
		}
		switch op {
		case Exact:
			if exact == nil {
				exact = &l
			}
		case GreaterThan, GreaterEqual:
			lower = pickStrictestLower(lower, l)
		case LessThan, LessEqual:
			upper = pickStrictestUpper(upper, l)
		}
	}

	if exact != nil {
		return *exact
	}

	var survivors []Constraint[V]
	if lower != nil {
		survivors = append(survivors, *lower)
	}
	if upper != nil {
		survivors = append(survivors, *upper)
	}
	survivors = append(survivors, opaque...)

	switch len(survivors) {
	case 0:
		return All[V]()
	case 1:
		return survivors[0]
	default:
		return AndNode(survivors...)
	}
}

// pickStrictestLower keeps the higher-version `>`/`>=` bound; on a tie in
// version it prefers the strict `>`.
func pickStrictestLower[V Value[V]](best *Constraint[V], cand Constraint[V]) *Constraint[V] {
	if best == nil {
		return &cand
	}
	cmp := cand.version.Compare(best.version)
	switch {
	case cmp > 0:
		return &cand
	case cmp < 0:
		return best
	default:
		if cand.op == GreaterThan {
			return &cand
		}
		return best
	}
}

// pickStrictestUpper keeps the lower-version `<`/`<=` bound; on a tie in
// version it prefers the strict `<`.
func pickStrictestUpper[V Value[V]](best *Constraint[V], cand Constraint[V]) *Constraint[V] {
	if best == nil {
		return &cand
	}
	cmp := cand.version.Compare(best.version)
	switch {
	case cmp < 0:
		return &cand
	case cmp > 0:
		return best
	default:
		if cand.op == LessThan {
			return &cand
		}
		return best
	}
}

// interval is the recognized shape BuildOr merges: an optional lower
// bound (inclusive, from GreaterEqual) and an optional upper bound
// (exclusive, from LessThan). Other leaves (GreaterThan, LessEqual,
// Exact, ...) are not recognized.
type interval[V Value[V]] struct {
	lo, hi       V
	hasLo, hasHi bool
	source       Constraint[V]
	recognized   bool
}

func intervalOf[V Value[V]](c Constraint[V]) interval[V] {
	if op, v, ok := c.IsLeaf(); ok {
		switch op {
		case GreaterEqual:
			return interval[V]{lo: v, hasLo: true, recognized: true}
		case LessThan:
			return interval[V]{hi: v, hasHi: true, recognized: true}
		}
	}
	if children, ok := c.IsAnd(); ok && len(children) == 2 {
		a, aok := asBound(children[0])
		b, bok := asBound(children[1])
		if aok && bok && a.isLower != b.isLower {
			lowB, highB := a, b
			if !a.isLower {
				lowB, highB = b, a
			}
			return interval[V]{lo: lowB.v, hi: highB.v, hasLo: true, hasHi: true, recognized: true}
		}
	}
	return interval[V]{source: c, recognized: false}
}

type bound[V Value[V]] struct {
	v       V
	isLower bool
}

func asBound[V Value[V]](c Constraint[V]) (bound[V], bool) {
	op, v, ok := c.IsLeaf()
	if !ok {
		var zero bound[V]
		return zero, false
	}
	switch op {
	case GreaterEqual:
		return bound[V]{v: v, isLower: true}, true
	case LessThan:
		return bound[V]{v: v, isLower: false}, true
	default:
		var zero bound[V]
		return zero, false
	}
}

func (iv interval[V]) render() Constraint[V] {
	switch {
	case iv.hasLo && iv.hasHi:
		return BuildAnd([]Constraint[V]{Leaf[V](GreaterEqual, iv.lo), Leaf[V](LessThan, iv.hi)})
	case iv.hasLo:
		return Leaf[V](GreaterEqual, iv.lo)
	case iv.hasHi:
		return Leaf[V](LessThan, iv.hi)
	default:
		return All[V]()
	}
}

// BuildOr simplifies a disjunction by merging adjacent And-ranges whose
// upper and lower bounds meet or overlap, emitting the hull. Disjuncts
// whose shape isn't a recognized [lo, hi) range (or a bare lower/upper
// leaf) are kept verbatim and OR-ed in alongside the merged ranges. A
// single surviving term is returned unwrapped; an All disjunct makes the
// whole expression All.
func BuildOr[V Value[V]](constraints []Constraint[V]) Constraint[V] {
	var flattened []Constraint[V]
	for _, c := range constraints {
		if c.kind == kindAll {
			return All[V]()
		}
		if children, ok := c.IsOr(); ok {
			flattened = append(flattened, children...)
			continue
		}
		flattened = append(flattened, c)
	}
	if len(flattened) == 0 {
		return All[V]()
	}

	var ranges []interval[V]
	var opaque []Constraint[V]
	for _, c := range flattened {
		iv := intervalOf(c)
		if iv.recognized {
			ranges = append(ranges, iv)
		} else {
			opaque = append(opaque, c)
		}
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		a, b := ranges[i], ranges[j]
		if !a.hasLo {
			return b.hasLo
		}
		if !b.hasLo {
			return false
		}
		return a.lo.Compare(b.lo) < 0
	})

	var merged []interval[V]
	for _, next := range ranges {
		if len(merged) == 0 {
			merged = append(merged, next)
			continue
		}
		cur := &merged[len(merged)-1]
		touches := !cur.hasHi || !next.hasLo || next.lo.Compare(cur.hi) <= 0
		if !touches {
			merged = append(merged, next)
			continue
		}
		if !next.hasHi {
			cur.hasHi = false
		} else if cur.hasHi && next.hi.Compare(cur.hi) > 0 {
			cur.hi = next.hi
		}
	}

	var survivors []Constraint[V]
	for _, iv := range merged {
		survivors = append(survivors, iv.render())
	}
	survivors = append(survivors, opaque...)

	switch len(survivors) {
	case 0:
		return All[V]()
	case 1:
		return survivors[0]
	default:
		return OrNode(survivors...)
	}
}
