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

package builder

import (
	"strings"
	"testing"
)

func TestCollectorRendersControlAndInstall(t *testing.T) {
	c := NewCollector()
	records := []Record{
		SourceControl(map[string]string{"Source": "rails", "Maintainer": "ops@acme.example", "Description": "Rails web framework\n\nA full MVC stack."}),
		BuildDependency("ruby3.2"),
		Package("ruby3.2-rails", "all", "ruby", "Rails for ruby3.2"),
		Dependency("ruby3.2-rails", "ruby3.2"),
		Provide("ruby3.2-rails", "rails"),
		Install("ruby3.2-rails", "lib/rails.rb", "usr/lib/ruby/vendor_ruby/rails.rb"),
		Symlink("ruby3.2-rails", "/usr/bin/rails", "usr/bin/rails3.2"),
		FastBuild(true),
	}
	for _, r := range records {
		if err := c.Process(r); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if !c.FastBuildPossible() {
		t.Error("FastBuildPossible should be true when every generator agrees")
	}

	tree := c.Render()
	control := string(tree.Files["debian/control"])
	if !strings.Contains(control, "Source: rails") {
		t.Errorf("control missing source stanza: %s", control)
	}
	if !strings.Contains(control, " .\n A full MVC stack.") {
		t.Errorf("control description not normalized: %q", control)
	}
	if !strings.Contains(control, "Package: ruby3.2-rails") {
		t.Errorf("control missing binary stanza: %s", control)
	}
	install := string(tree.Files["debian/ruby3.2-rails.install"])
	if !strings.Contains(install, "lib/rails.rb usr/lib/ruby/vendor_ruby/rails.rb") {
		t.Errorf("install manifest = %q", install)
	}
	links := string(tree.Files["debian/ruby3.2-rails.links"])
	if !strings.Contains(links, "/usr/bin/rails usr/bin/rails3.2") {
		t.Errorf("links manifest = %q", links)
	}
}

func TestCollectorFastBuildVeto(t *testing.T) {
	c := NewCollector()
	must(t, c.Process(Package("pkg", "all", "", "desc")))
	must(t, c.Process(FastBuild(true)))
	must(t, c.Process(FastBuild(false)))
	if c.FastBuildPossible() {
		t.Error("a single false FastBuild signal should veto the fast path")
	}
}

func TestCollectorSpacedInstallFoldsIntoRuleOverride(t *testing.T) {
	c := NewCollector()
	must(t, c.Process(Package("pkg", "all", "", "desc")))
	must(t, c.Process(Install("pkg", "My File.rb", "usr/lib/my file.rb")))

	tree := c.Render()
	if _, ok := tree.Files["debian/pkg.install"]; ok {
		t.Error("a space-containing install should not produce a declarative manifest entry")
	}
	rules := string(tree.Files["debian/rules"])
	if !strings.Contains(rules, "override_dh_auto_install:") || !strings.Contains(rules, "cp ") {
		t.Errorf("rules file missing install workaround: %q", rules)
	}
}

func TestCollectorRejectsUnopenedPackage(t *testing.T) {
	c := NewCollector()
	if err := c.Process(Dependency("ghost", "foo")); err == nil {
		t.Error("a record referencing an unopened package should fail")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
