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

package pkgversion

import (
	"fmt"
	"strconv"
	"strings"
)

// SemverVersion is a dot-separated, numeric-component version with an
// optional pre-release tail, as used by npm/yarn package.json ranges. A
// wildcard component ("x", "X", or "*") makes the version partial;
// trailing wildcards are simply dropped rather than stored.
type SemverVersion struct {
	original   string
	components []int64
	partial    bool
	prerelease string
}

// ParseSemverVersion parses a dotted numeric version with an optional
// "-prerelease" tail and optional trailing wildcard components.
func ParseSemverVersion(s string) (SemverVersion, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return SemverVersion{}, fmt.Errorf("pkgversion: empty semver version")
	}

	main := trimmed
	prerelease := ""
	if idx := strings.IndexByte(trimmed, '-'); idx >= 0 {
		main = trimmed[:idx]
		prerelease = trimmed[idx+1:]
	}
	// A build-metadata suffix ("+...") is accepted and ignored; it plays
	// no role in ordering.
	if idx := strings.IndexByte(main, '+'); idx >= 0 {
		main = main[:idx]
	}
	if idx := strings.IndexByte(prerelease, '+'); idx >= 0 {
		prerelease = prerelease[:idx]
	}

	var components []int64
	partial := false
	for _, part := range strings.Split(main, ".") {
		if isWildcard(part) {
			partial = true
			break
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return SemverVersion{}, fmt.Errorf("pkgversion: bad semver component %q in %q: %w", part, s, err)
		}
		components = append(components, n)
	}

	if len(components) == 0 && !partial {
		return SemverVersion{}, fmt.Errorf("pkgversion: semver version %q has no numeric components", s)
	}

	return SemverVersion{
		original:   trimmed,
		components: components,
		partial:    partial,
		prerelease: prerelease,
	}, nil
}

func isWildcard(s string) bool {
	return s == "x" || s == "X" || s == "*"
}

// String returns the original, as-parsed representation.
func (v SemverVersion) String() string { return v.original }

// Partial reports whether v had a wildcard component. A version with
// fewer than three numeric components and no wildcard is not partial.
func (v SemverVersion) Partial() bool { return v.partial }

// Component returns the numeric value at index i (0=major, 1=minor,
// 2=patch, ...), treating any component beyond what was parsed as 0.
func (v SemverVersion) Component(i int) int64 {
	if i < 0 || i >= len(v.components) {
		return 0
	}
	return v.components[i]
}

// NumComponents returns the count of explicit (non-wildcard) numeric
// components.
func (v SemverVersion) NumComponents() int { return len(v.components) }

// Prerelease returns the pre-release tail, or "" if none.
func (v SemverVersion) Prerelease() string { return v.prerelease }

// WithComponents returns a new, full (non-partial) version built from
// exactly the three leading components, discarding any pre-release tail.
// It is used by the constraint compiler to build bumped bounds.
func WithComponents(major, minor, patch int64) SemverVersion {
	return SemverVersion{
		original:   fmt.Sprintf("%d.%d.%d", major, minor, patch),
		components: []int64{major, minor, patch},
	}
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than other. Missing trailing components compare as zero. A version
// with a pre-release tail sorts below the same numeric tuple without
// one; two pre-release tails are compared per semver precedence rules
// (dot-separated identifiers, numeric identifiers sort lower than
// alphanumeric ones and numerically among themselves).
func (v SemverVersion) Compare(other SemverVersion) int {
	n := len(v.components)
	if len(other.components) > n {
		n = len(other.components)
	}
	for i := range n {
		if c := v.Component(i) - other.Component(i); c != 0 {
			if c < 0 {
				return -1
			}
			return 1
		}
	}

	switch {
	case v.prerelease == "" && other.prerelease == "":
		return 0
	case v.prerelease == "":
		return 1
	case other.prerelease == "":
		return -1
	default:
		return comparePrerelease(v.prerelease, other.prerelease)
	}
}

func comparePrerelease(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := range n {
		av, aIsNum := parseUintField(as[i])
		bv, bIsNum := parseUintField(bs[i])
		switch {
		case aIsNum && bIsNum:
			if av != bv {
				if av < bv {
					return -1
				}
				return 1
			}
		case aIsNum:
			return -1
		case bIsNum:
			return 1
		default:
			if as[i] != bs[i] {
				if as[i] < bs[i] {
					return -1
				}
				return 1
			}
		}
	}
	switch {
	case len(as) == len(bs):
		return 0
	case len(as) < len(bs):
		return -1
	default:
		return 1
	}
}

func parseUintField(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Equal reports whether v and other are equal under Compare.
func (v SemverVersion) Equal(other SemverVersion) bool { return v.Compare(other) == 0 }

// Less reports whether v sorts strictly before other.
func (v SemverVersion) Less(other SemverVersion) bool { return v.Compare(other) < 0 }
