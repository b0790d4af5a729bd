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

import "testing"

func TestSemverVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "equal", a: "1.2.3", b: "1.2.3", want: 0},
		{name: "missing trailing is zero", a: "1.2", b: "1.2.0", want: 0},
		{name: "patch less", a: "1.2.3", b: "1.2.4", want: -1},
		{name: "minor greater", a: "1.3.0", b: "1.2.9", want: 1},
		{name: "prerelease below release", a: "1.2.3-beta.1", b: "1.2.3", want: -1},
		{name: "numeric prerelease identifiers compare numerically", a: "1.0.0-alpha.2", b: "1.0.0-alpha.10", want: -1},
		{name: "numeric prerelease identifier below alnum", a: "1.0.0-alpha.1", b: "1.0.0-alpha.beta", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseSemverVersion(tt.a)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.a, err)
			}
			b, err := ParseSemverVersion(tt.b)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.b, err)
			}
			if got := a.Compare(b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSemverVersionPartial(t *testing.T) {
	tests := []struct {
		s            string
		wantPartial  bool
		wantNumComps int
	}{
		{s: "1.2.3", wantPartial: false, wantNumComps: 3},
		{s: "1.2", wantPartial: false, wantNumComps: 2},
		{s: "1.2.x", wantPartial: true, wantNumComps: 2},
		{s: "1.x.x", wantPartial: true, wantNumComps: 1},
		{s: "*", wantPartial: true, wantNumComps: 0},
	}

	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			v, err := ParseSemverVersion(tt.s)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.s, err)
			}
			if v.Partial() != tt.wantPartial {
				t.Errorf("Partial() = %v, want %v", v.Partial(), tt.wantPartial)
			}
			if v.NumComponents() != tt.wantNumComps {
				t.Errorf("NumComponents() = %d, want %d", v.NumComponents(), tt.wantNumComps)
			}
		})
	}
}

func TestParseSemverVersionErrors(t *testing.T) {
	for _, s := range []string{"", "   ", "1.a.3"} {
		if _, err := ParseSemverVersion(s); err == nil {
			t.Errorf("ParseSemverVersion(%q) expected error, got nil", s)
		}
	}
}
