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
	"fmt"
	"regexp"
	"strings"

	"github.com/debler/debler/internal/pkgversion"
)

type sv = pkgversion.SemverVersion

var (
	mergeOperatorSpace = regexp.MustCompile(`([<>=~^]+)\s+`)
	hyphenRangePattern = regexp.MustCompile(`^(\S+)\s+-\s+(\S+)$`)
)

// ParseSemverConstraints parses an npm/semver-style range string:
// caret (^), tilde (~), plain comparators, partial versions, the hyphen
// range "a - b", implicit AND by whitespace, and disjunction with "||".
// "*" and the empty string denote All.
func ParseSemverConstraints(s string) (Constraint[sv], error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return All[sv](), nil
	}

	var orGroups []Constraint[sv]
	for _, group := range strings.Split(s, "||") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		c, err := parseAndGroup(group)
		if err != nil {
			return Constraint[sv]{}, err
		}
		orGroups = append(orGroups, c)
	}

	return BuildOr(orGroups), nil
}

func parseAndGroup(group string) (Constraint[sv], error) {
	normalized := mergeOperatorSpace.ReplaceAllString(group, "$1")

	if m := hyphenRangePattern.FindStringSubmatch(normalized); m != nil {
		return parseHyphenRange(m[1], m[2])
	}

	fields := strings.Fields(normalized)
	var leaves []Constraint[sv]
	for _, f := range fields {
		c, err := parseTerm(f)
		if err != nil {
			return Constraint[sv]{}, err
		}
		leaves = append(leaves, c)
	}
	return BuildAnd(leaves), nil
}

func parseTerm(tok string) (Constraint[sv], error) {
	switch {
	case tok == "" || tok == "*":
		return All[sv](), nil
	case strings.HasPrefix(tok, "^"):
		v, err := pkgversion.ParseSemverVersion(strings.TrimPrefix(tok, "^"))
		if err != nil {
			return Constraint[sv]{}, fmt.Errorf("constraint: parse caret version %q: %w", tok, err)
		}
		return rangeConstraint(caretLower(v), caretUpper(v)), nil
	case strings.HasPrefix(tok, "~"):
		v, err := pkgversion.ParseSemverVersion(strings.TrimPrefix(tok, "~"))
		if err != nil {
			return Constraint[sv]{}, fmt.Errorf("constraint: parse tilde version %q: %w", tok, err)
		}
		return rangeConstraint(fillVersion(v), tildeUpper(v)), nil
	case strings.HasPrefix(tok, ">="):
		return parseComparator(tok, ">=", GreaterEqual)
	case strings.HasPrefix(tok, "<="):
		return parseComparator(tok, "<=", LessEqual)
	case strings.HasPrefix(tok, ">"):
		return parseComparator(tok, ">", GreaterThan)
	case strings.HasPrefix(tok, "<"):
		return parseComparator(tok, "<", LessThan)
	case strings.HasPrefix(tok, "="):
		return parsePartialOrExact(strings.TrimPrefix(tok, "="))
	default:
		return parsePartialOrExact(tok)
	}
}

func parseComparator(tok, prefix string, op Op) (Constraint[sv], error) {
	v, err := pkgversion.ParseSemverVersion(strings.TrimPrefix(tok, prefix))
	if err != nil {
		return Constraint[sv]{}, fmt.Errorf("constraint: parse %q: %w", tok, err)
	}
	return Leaf(op, fillVersion(v)), nil
}

// parsePartialOrExact expands a bare version per the partial-version
// rule: a version with fewer than 3 explicit components (or a trailing
// wildcard) denotes the range [v, bumped-at-last-explicit-position); a
// fully specified version is an exact match.
func parsePartialOrExact(tok string) (Constraint[sv], error) {
	v, err := pkgversion.ParseSemverVersion(tok)
	if err != nil {
		return Constraint[sv]{}, fmt.Errorf("constraint: parse version %q: %w", tok, err)
	}
	if !v.Partial() && v.NumComponents() >= 3 {
		return Leaf(Exact, fillVersion(v)), nil
	}
	return rangeConstraint(fillVersion(v), partialUpper(v)), nil
}

func parseHyphenRange(lowTok, highTok string) (Constraint[sv], error) {
	lo, err := pkgversion.ParseSemverVersion(lowTok)
	if err != nil {
		return Constraint[sv]{}, fmt.Errorf("constraint: parse hyphen range lower %q: %w", lowTok, err)
	}
	hi, err := pkgversion.ParseSemverVersion(highTok)
	if err != nil {
		return Constraint[sv]{}, fmt.Errorf("constraint: parse hyphen range upper %q: %w", highTok, err)
	}

	lower := Leaf(GreaterEqual, fillVersion(lo))
	if !hi.Partial() && hi.NumComponents() >= 3 {
		return BuildAnd([]Constraint[sv]{lower, Leaf(LessEqual, fillVersion(hi))}), nil
	}
	return BuildAnd([]Constraint[sv]{lower, Leaf(LessThan, partialUpper(hi))}), nil
}

func rangeConstraint(lower, upper sv) Constraint[sv] {
	return BuildAnd([]Constraint[sv]{Leaf(GreaterEqual, lower), Leaf(LessThan, upper)})
}

func fillVersion(v sv) sv {
	return pkgversion.WithComponents(v.Component(0), v.Component(1), v.Component(2))
}

func bumpAt(components [3]int64, pos int) sv {
	out := components
	out[pos]++
	for i := pos + 1; i < 3; i++ {
		out[i] = 0
	}
	return pkgversion.WithComponents(out[0], out[1], out[2])
}

func fillComponents(v sv) [3]int64 {
	return [3]int64{v.Component(0), v.Component(1), v.Component(2)}
}

// caretLower is the inclusive lower bound of "^v": v itself, with any
// missing trailing components treated as zero.
func caretLower(v sv) sv { return fillVersion(v) }

// caretUpper is the exclusive upper bound of "^v": the version is bumped
// at the first nonzero explicit component (zeroing everything after);
// if every explicit component is zero, the bump happens at the deepest
// explicit position ("^0.0" and "^0.0.x" both yield "< 0.1").
func caretUpper(v sv) sv {
	components := fillComponents(v)
	n := v.NumComponents()
	idx := -1
	for i := range n {
		if components[i] != 0 {
			idx = i
			break
		}
	}
	if idx == -1 {
		idx = n - 1
		if idx < 0 {
			idx = 0
		}
	}
	return bumpAt(components, idx)
}

// tildeUpper is the exclusive upper bound of "~v": bumped at the minor
// position when at least two components are explicit, otherwise at the
// major position.
func tildeUpper(v sv) sv {
	components := fillComponents(v)
	pos := 0
	if v.NumComponents() >= 2 {
		pos = 1
	}
	return bumpAt(components, pos)
}

// partialUpper is the exclusive upper bound of a bare partial version:
// bumped at its last explicit component.
func partialUpper(v sv) sv {
	components := fillComponents(v)
	pos := v.NumComponents() - 1
	if pos < 0 {
		pos = 0
	}
	return bumpAt(components, pos)
}
