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
	"strings"

	"github.com/debler/debler/internal/pkgversion"
)

// GemOpVersion is one "op version" pair as it appears in gemspec
// dependency declarations, e.g. {"~>", "1.2.3"}.
type GemOpVersion struct {
	Op      string
	Version string
}

// ParseGemConstraints parses a sequence of gem "op version" pairs into a
// single simplified constraint. An empty sequence yields All.
//
// Known limitation (kept intentionally, not silently fixed): the "!="
// operator is compiled as GreaterThan, which under-constrains the result
// in general. A faithful disjunctive expansion ("< v OR > v") is
// possible but not implemented; this mirrors the behavior being
// preserved rather than a considered design choice.
func ParseGemConstraints(pairs []GemOpVersion) (Constraint[pkgversion.GemVersion], error) {
	var zero Constraint[pkgversion.GemVersion]
	if len(pairs) == 0 {
		return All[pkgversion.GemVersion](), nil
	}

	var leaves []Constraint[pkgversion.GemVersion]
	for _, p := range pairs {
		op := strings.TrimSpace(p.Op)
		verStr := strings.TrimSpace(p.Version)
		v, err := pkgversion.ParseGemVersion(verStr)
		if err != nil {
			return zero, fmt.Errorf("constraint: parse gem version %q: %w", verStr, err)
		}

		switch op {
		case "~>":
			leaves = append(leaves,
				Leaf(GreaterEqual, v),
				Leaf(LessThan, v.PessimisticUpperBound()),
			)
		case "=":
			leaves = append(leaves, Leaf(Exact, v))
		case "!=":
			leaves = append(leaves, Leaf(GreaterThan, v))
		case ">":
			leaves = append(leaves, Leaf(GreaterThan, v))
		case ">=":
			leaves = append(leaves, Leaf(GreaterEqual, v))
		case "<":
			leaves = append(leaves, Leaf(LessThan, v))
		case "<=":
			leaves = append(leaves, Leaf(LessEqual, v))
		default:
			return zero, fmt.Errorf("constraint: unknown gem operator %q", p.Op)
		}
	}

	return BuildAnd(leaves), nil
}

// ParseGemConstraintString parses the comma-separated textual form
// gemspecs store requirements in, e.g. "~> 1.2, < 2.0".
func ParseGemConstraintString(s string) (Constraint[pkgversion.GemVersion], error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return All[pkgversion.GemVersion](), nil
	}

	var pairs []GemOpVersion
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		op, rest := splitGemOperator(part)
		pairs = append(pairs, GemOpVersion{Op: op, Version: strings.TrimSpace(rest)})
	}
	return ParseGemConstraints(pairs)
}

var gemOperators = []string{"~>", "!=", ">=", "<=", ">", "<", "="}

func splitGemOperator(s string) (op, rest string) {
	for _, candidate := range gemOperators {
		if strings.HasPrefix(s, candidate) {
			return candidate, strings.TrimSpace(strings.TrimPrefix(s, candidate))
		}
	}
	return "=", s
}
