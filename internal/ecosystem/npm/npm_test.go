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

package npm

import (
	"strings"
	"testing"
)

func TestParsePackageJSON(t *testing.T) {
	src := `{
		"name": "acme-app",
		"version": "1.0.0",
		"dependencies": {"lodash": "^4.17.0", "@scope/pkg": "~1.2.0"},
		"devDependencies": {"jest": "^29.0.0"}
	}`
	m, err := ParsePackageJSON(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParsePackageJSON: %v", err)
	}
	if m.Name != "acme-app" || len(m.Dependencies) != 3 {
		t.Fatalf("manifest = %+v", m)
	}
}

func TestParseYarnLockScoped(t *testing.T) {
	src := `# THIS IS AN AUTOGENERATED FILE

"@scope/pkg@^1.0.0", "@scope/pkg@^1.2.0":
  version "1.2.3"
  resolved "https://registry.yarnpkg.com/@scope/pkg/-/pkg-1.2.3.tgz#deadbeef"
  dependencies:
    lodash "^4.17.0"

lodash@^4.17.0:
  version "4.17.21"
  resolved "https://registry.yarnpkg.com/lodash/-/lodash-4.17.21.tgz#abc123"
`
	pkgs, err := ParseYarnLock(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseYarnLock: %v", err)
	}
	scoped, ok := pkgs["@scope/pkg@^1.0.0"]
	if !ok {
		t.Fatal("expected scoped descriptor to resolve")
	}
	if scoped.Name != "@scope/pkg" || scoped.Version != "1.2.3" {
		t.Errorf("scoped package = %+v", scoped)
	}
	if scoped.Dependencies["lodash"] != "^4.17.0" {
		t.Errorf("nested dependency = %q", scoped.Dependencies["lodash"])
	}
	alias, ok := pkgs["@scope/pkg@^1.2.0"]
	if !ok || alias.Version != "1.2.3" {
		t.Fatalf("second descriptor alias should resolve to the same package, got %+v ok=%v", alias, ok)
	}
	lodash, ok := pkgs["lodash@^4.17.0"]
	if !ok || lodash.Version != "4.17.21" {
		t.Fatalf("lodash = %+v, ok=%v", lodash, ok)
	}
}

func TestSplitDescriptorScoped(t *testing.T) {
	name, rng := splitDescriptor("@scope/pkg@^1.0.0")
	if name != "@scope/pkg" || rng != "^1.0.0" {
		t.Errorf("splitDescriptor scoped = (%q, %q)", name, rng)
	}
	name, rng = splitDescriptor("lodash@^4.17.0")
	if name != "lodash" || rng != "^4.17.0" {
		t.Errorf("splitDescriptor plain = (%q, %q)", name, rng)
	}
}
