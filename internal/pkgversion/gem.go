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

// Package pkgversion implements the two version families repackaged
// upstream modules ship with: RubyGems-style versions (dotted segments
// that may carry alphabetic or git-revision tails) and semver-like
// versions (dotted numeric components with an optional pre-release tail
// and wildcard support).
package pkgversion

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type gemKind int

const (
	gemNumeric gemKind = iota
	gemAlpha
	gemGitRev
)

// gemComponent is one parsed component of a GemVersion: a decimal segment,
// an alphabetic segment, or a git-revision segment (the faux version tail
// bundler attaches to a git-sourced dependency).
type gemComponent struct {
	kind gemKind
	num  int64
	str  string
	sha  [20]byte
}

var (
	gitRevPattern = regexp.MustCompile(`^rev([0-9a-fA-F]{40})$`)
	splitPattern  = regexp.MustCompile(`[A-Za-z]+|[0-9]+`)
)

// GemVersion is a parsed RubyGems-style version.
type GemVersion struct {
	original   string
	components []gemComponent
}

// ParseGemVersion parses a RubyGems-style version string such as "1.4.0",
// "1.4.0.beta2", or "1.4.0.revDEADBEEF...".
func ParseGemVersion(s string) (GemVersion, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return GemVersion{}, fmt.Errorf("pkgversion: empty gem version")
	}

	var components []gemComponent
	for _, dotSeg := range strings.Split(trimmed, ".") {
		if dotSeg == "" {
			continue
		}

		if m := gitRevPattern.FindStringSubmatch(dotSeg); m != nil {
			raw, err := hex.DecodeString(m[1])
			if err != nil {
				return GemVersion{}, fmt.Errorf("pkgversion: bad git revision segment %q: %w", dotSeg, err)
			}
			var sha [20]byte
			copy(sha[:], raw)
			components = append(components, gemComponent{kind: gemGitRev, sha: sha})
			continue
		}

		for _, piece := range splitPattern.FindAllString(dotSeg, -1) {
			if n, err := strconv.ParseInt(piece, 10, 64); err == nil {
				components = append(components, gemComponent{kind: gemNumeric, num: n})
			} else {
				components = append(components, gemComponent{kind: gemAlpha, str: piece})
			}
		}
	}

	if len(components) == 0 {
		return GemVersion{}, fmt.Errorf("pkgversion: gem version %q has no components", s)
	}

	return GemVersion{original: trimmed, components: components}, nil
}

// String returns the original, as-parsed representation.
func (v GemVersion) String() string {
	return v.original
}

// Limit returns the version truncated to its first k components, as used
// to derive a package's slot key from a full version.
func (v GemVersion) Limit(k int) GemVersion {
	if k >= len(v.components) {
		return v
	}
	limited := v.components[:k]
	return GemVersion{original: renderComponents(limited), components: limited}
}

func renderComponents(components []gemComponent) string {
	var b strings.Builder
	for i, c := range components {
		if i > 0 {
			b.WriteByte('.')
		}
		switch c.kind {
		case gemNumeric:
			b.WriteString(strconv.FormatInt(c.num, 10))
		case gemAlpha:
			b.WriteString(c.str)
		case gemGitRev:
			b.WriteString("rev")
			b.WriteString(hex.EncodeToString(c.sha[:]))
		}
	}
	return b.String()
}

// StorageInts returns the reversible integer-array encoding used to
// persist a gem version: decimal segments map to themselves; an
// alphabetic segment is introduced by the sentinel -1, followed by its
// character code points, then 0; a git-revision segment is introduced by
// the sentinel -2, followed by the five signed 32-bit halves of its
// SHA-1, then 0.
func (v GemVersion) StorageInts() []int64 {
	var out []int64
	for _, c := range v.components {
		switch c.kind {
		case gemNumeric:
			out = append(out, c.num)
		case gemAlpha:
			out = append(out, -1)
			for _, r := range c.str {
				out = append(out, int64(r))
			}
			out = append(out, 0)
		case gemGitRev:
			out = append(out, -2)
			for i := range 5 {
				half := int32(binary.BigEndian.Uint32(c.sha[i*4 : i*4+4]))
				out = append(out, int64(half))
			}
			out = append(out, 0)
		}
	}
	return out
}

// GemVersionFromStorage reconstructs a GemVersion from the encoding
// produced by StorageInts. It is the inverse of StorageInts and exists so
// the catalog can round-trip a stored version without keeping the
// original string around.
func GemVersionFromStorage(ints []int64) (GemVersion, error) {
	var components []gemComponent
	i := 0
	for i < len(ints) {
		switch {
		case ints[i] >= 0:
			components = append(components, gemComponent{kind: gemNumeric, num: ints[i]})
			i++
		case ints[i] == -1:
			i++
			var b strings.Builder
			for i < len(ints) && ints[i] != 0 {
				b.WriteRune(rune(ints[i]))
				i++
			}
			if i >= len(ints) {
				return GemVersion{}, fmt.Errorf("pkgversion: truncated alpha segment in storage encoding")
			}
			i++ // skip terminating 0
			components = append(components, gemComponent{kind: gemAlpha, str: b.String()})
		case ints[i] == -2:
			i++
			if i+5 > len(ints) {
				return GemVersion{}, fmt.Errorf("pkgversion: truncated git-revision segment in storage encoding")
			}
			var sha [20]byte
			for h := range 5 {
				binary.BigEndian.PutUint32(sha[h*4:h*4+4], uint32(int32(ints[i+h])))
			}
			i += 5
			if i >= len(ints) || ints[i] != 0 {
				return GemVersion{}, fmt.Errorf("pkgversion: missing git-revision terminator in storage encoding")
			}
			i++
			components = append(components, gemComponent{kind: gemGitRev, sha: sha})
		default:
			return GemVersion{}, fmt.Errorf("pkgversion: unknown sentinel %d in storage encoding", ints[i])
		}
	}
	if len(components) == 0 {
		return GemVersion{}, fmt.Errorf("pkgversion: empty storage encoding")
	}
	return GemVersion{original: renderComponents(components), components: components}, nil
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than other. Two versions that agree on a prefix and differ only by
// trailing zeros compare equal (a trailing ".0" is insignificant).
func (v GemVersion) Compare(other GemVersion) int {
	a, b := v.StorageInts(), other.StorageInts()
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := range n {
		var av, bv int64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Equal reports whether v and other are equal under Compare.
func (v GemVersion) Equal(other GemVersion) bool { return v.Compare(other) == 0 }

// Less reports whether v sorts strictly before other.
func (v GemVersion) Less(other GemVersion) bool { return v.Compare(other) < 0 }

// NumericLen returns the count of leading purely-numeric components,
// used by the constraint compiler to form bumped bounds.
func (v GemVersion) NumericLen() int {
	n := 0
	for _, c := range v.components {
		if c.kind != gemNumeric {
			break
		}
		n++
	}
	return n
}

// ComponentAt returns the numeric value of the component at index i and
// whether that component exists and is numeric.
func (v GemVersion) ComponentAt(i int) (int64, bool) {
	if i < 0 || i >= len(v.components) || v.components[i].kind != gemNumeric {
		return 0, false
	}
	return v.components[i].num, true
}

// Len returns the number of parsed components.
func (v GemVersion) Len() int { return len(v.components) }

// PessimisticUpperBound returns the exclusive upper bound of the gem
// "~>" operator applied to v: any non-numeric (pre-release) tail is
// stripped, the last remaining numeric component is dropped, and the new
// last component is incremented. "~> 1.2.3" bounds above at "1.3"; "~>
// 1.2" bounds above at "2".
func (v GemVersion) PessimisticUpperBound() GemVersion {
	n := v.NumericLen()
	if n == 0 {
		return v
	}
	numeric := make([]gemComponent, n)
	copy(numeric, v.components[:n])

	var kept []gemComponent
	if n == 1 {
		kept = numeric
	} else {
		kept = numeric[:n-1]
	}
	out := make([]gemComponent, len(kept))
	copy(out, kept)
	out[len(out)-1].num++
	return GemVersion{original: renderComponents(out), components: out}
}
