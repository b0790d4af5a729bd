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

import (
	"sort"
	"strings"
)

// OSRelation maps a constraint operator to the Debian dependency version
// relation it compiles to.
func (o Op) OSRelation() string {
	switch o {
	case GreaterThan:
		return ">>"
	case GreaterEqual:
		return ">="
	case LessThan:
		return "<<"
	case LessEqual:
		return "<="
	case Exact:
		return "="
	default:
		return "?"
	}
}

// Slot is the part of a catalog Slot that the compiler needs: its
// OS-package-name and the half-open version interval [Min, Max) it
// covers.
type Slot[V Value[V]] struct {
	Key           string
	OSPackageName string
	Min           V
	Max           V
}

// Qualifier is one surviving version restriction on a compiled slot
// dependency.
type Qualifier[V Value[V]] struct {
	Op      Op
	Version V
}

// CompiledDependency is one alternative in the compiled OS dependency
// clause: a slot's package name plus zero or more surviving qualifiers.
type CompiledDependency[V Value[V]] struct {
	Slot       Slot[V]
	Qualifiers []Qualifier[V]
}

// evalLeafOnSlot evaluates a single leaf against a slot's two endpoints,
// per the compilation rule: false at both endpoints eliminates the slot;
// true at both endpoints makes the leaf redundant for the slot; anything
// else makes the leaf survive as a qualifier.
func evalLeafOnSlot[V Value[V]](op Op, bound V, slot Slot[V]) (include bool, qualifier Qualifier[V], hasQualifier bool) {
	atMin := matchesLeaf(op, bound, slot.Min)
	atMax := matchesLeaf(op, bound, slot.Max)
	switch {
	case !atMin && !atMax:
		return false, Qualifier[V]{}, false
	case atMin && atMax:
		return true, Qualifier[V]{}, false
	default:
		return true, Qualifier[V]{Op: op, Version: bound}, true
	}
}

func compileLeavesOnSlot[V Value[V]](leaves []Constraint[V], slot Slot[V]) (include bool, quals []Qualifier[V]) {
	for _, l := range leaves {
		op, bound, isLeaf := l.IsLeaf()
		if !isLeaf {
			// A nested Or/And inside this conjunction has no single
			// two-endpoint evaluation; conservatively keep the slot
			// without contributing a qualifier from this child.
			continue
		}
		ok, q, has := evalLeafOnSlot(op, bound, slot)
		if !ok {
			return false, nil
		}
		if has {
			quals = append(quals, q)
		}
	}
	return true, quals
}

// CompileToSlots compiles a constraint against the known slots of a
// package into the set of slots whose OS-package-name (optionally
// version-qualified) should appear in the OS dependency clause. Exact
// leaves are special-cased to the single slot whose interval contains
// the exact version rather than every slot. All compiles to every known
// slot, unqualified.
func CompileToSlots[V Value[V]](c Constraint[V], slots []Slot[V]) []CompiledDependency[V] {
	switch {
	case c.kind == kindAll:
		out := make([]CompiledDependency[V], len(slots))
		for i, s := range slots {
			out[i] = CompiledDependency[V]{Slot: s}
		}
		return out

	case c.kind == kindLeaf && c.op == Exact:
		for _, s := range slots {
			if matchesLeaf(GreaterEqual, s.Min, c.version) && matchesLeaf(LessThan, s.Max, c.version) {
				return []CompiledDependency[V]{{Slot: s, Qualifiers: []Qualifier[V]{{Op: Exact, Version: c.version}}}}
			}
		}
		return nil

	case c.kind == kindLeaf:
		var out []CompiledDependency[V]
		for _, s := range slots {
			ok, q, has := evalLeafOnSlot(c.op, c.version, s)
			if !ok {
				continue
			}
			cd := CompiledDependency[V]{Slot: s}
			if has {
				cd.Qualifiers = []Qualifier[V]{q}
			}
			out = append(out, cd)
		}
		return out

	case c.kind == kindAnd:
		var out []CompiledDependency[V]
		for _, s := range slots {
			ok, quals := compileLeavesOnSlot(c.children, s)
			if !ok {
				continue
			}
			out = append(out, CompiledDependency[V]{Slot: s, Qualifiers: quals})
		}
		return out

	case c.kind == kindOr:
		seen := make(map[string]bool)
		var out []CompiledDependency[V]
		for _, child := range c.children {
			for _, cd := range CompileToSlots(child, slots) {
				if seen[cd.Slot.Key] {
					continue
				}
				seen[cd.Slot.Key] = true
				out = append(out, cd)
			}
		}
		return out

	default:
		return nil
	}
}

// RenderDependency joins compiled dependencies into a single Debian
// dependency-clause alternative, highest slot first, e.g.
// "bar-1.4 | bar-1.3 | bar-1.2 (>= 1.2.3)".
func RenderDependency[V Value[V]](deps []CompiledDependency[V]) string {
	sorted := make([]CompiledDependency[V], len(deps))
	copy(sorted, deps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Slot.Min.Compare(sorted[j].Slot.Min) > 0
	})

	alternatives := make([]string, len(sorted))
	for i, cd := range sorted {
		var b strings.Builder
		b.WriteString(cd.Slot.OSPackageName)
		for _, q := range cd.Qualifiers {
			b.WriteString(" (")
			b.WriteString(q.Op.OSRelation())
			b.WriteByte(' ')
			b.WriteString(q.Version.String())
			b.WriteByte(')')
		}
		alternatives[i] = b.String()
	}
	return strings.Join(alternatives, " | ")
}
