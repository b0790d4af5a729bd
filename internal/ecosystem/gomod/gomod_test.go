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

package gomod

import "testing"

func TestParse(t *testing.T) {
	src := []byte(`module github.com/acme/widget

go 1.22

require (
	github.com/spf13/cobra v1.8.0
	golang.org/x/mod v0.17.0 // indirect
)

replace github.com/spf13/cobra => github.com/acme/cobra-fork v1.8.1
`)
	m, err := Parse("go.mod", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.ModulePath != "github.com/acme/widget" || m.GoVersion != "1.22" {
		t.Fatalf("manifest = %+v", m)
	}
	if len(m.Require) != 2 {
		t.Fatalf("got %d requires, want 2", len(m.Require))
	}
	var cobra *string
	for _, r := range m.Require {
		if r.Name == "github.com/acme/cobra-fork" {
			v := r.ResolvedVersion
			cobra = &v
		}
	}
	if cobra == nil || *cobra != "v1.8.1" {
		t.Errorf("replace directive not applied to require graph: %+v", m.Require)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("go.mod", []byte("not a go.mod file {{{")); err == nil {
		t.Error("expected parse error for malformed go.mod")
	}
}
