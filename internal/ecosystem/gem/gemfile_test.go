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

package gem

import (
	"strings"
	"testing"
)

func TestParseGemfile(t *testing.T) {
	src := `source "https://rubygems.org"

gem "rails", "~> 7.0"
gem "pg", ">= 1.1", group: :test
gem "sidekiq", git: "https://github.com/acme/sidekiq.git", branch: "main"

group :development do
  gem "pry"
end
`
	entries, err := ParseGemfile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseGemfile: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	if entries[0].Name != "rails" || entries[0].Constraint != "~> 7.0" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[2].Git == "" || entries[2].Branch != "main" {
		t.Errorf("sidekiq entry missing git metadata: %+v", entries[2])
	}
	if len(entries[3].Groups) == 0 || entries[3].Groups[0] != "development" {
		t.Errorf("pry entry should carry the enclosing group, got %+v", entries[3])
	}
}

func TestParseGemfileEnvFallback(t *testing.T) {
	src := `version = ENV["APP_RUBY_VERSION"] || "3.2.0"
gem "foo", version
`
	entries, err := ParseGemfile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseGemfile: %v", err)
	}
	if entries[0].Constraint != "3.2.0" {
		t.Errorf("expected ENV fallback to resolve to default, got %q", entries[0].Constraint)
	}
}

func TestParseGemfileRejectsUnknownConstruct(t *testing.T) {
	src := `if Gem.ruby_version > Gem::Version.new("3.0")
  gem "foo"
end
`
	if _, err := ParseGemfile(strings.NewReader(src)); err == nil {
		t.Error("expected unrecognized construct to fail loudly")
	}
}

func TestParseGemfileLock(t *testing.T) {
	src := `GEM
  remote: https://rubygems.org/
  specs:
    rails (7.0.4)
      actionpack (= 7.0.4)
    actionpack (7.0.4)

GIT
  remote: https://github.com/acme/sidekiq.git
  revision: deadbeef
  branch: main
  specs:
    sidekiq (7.0.0)

PLATFORMS
  ruby

DEPENDENCIES
  rails (~> 7.0)
  sidekiq!

BUNDLED WITH
   2.4.6
`
	lf, err := ParseGemfileLock(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseGemfileLock: %v", err)
	}
	rails, ok := lf.Specs["rails"]
	if !ok || rails.Version != "7.0.4" {
		t.Fatalf("rails spec = %+v, ok=%v", rails, ok)
	}
	if rails.Dependencies["actionpack"] != "= 7.0.4" {
		t.Errorf("rails nested dependency = %q", rails.Dependencies["actionpack"])
	}
	sidekiq, ok := lf.Specs["sidekiq"]
	if !ok || sidekiq.GitRevision != "deadbeef" || sidekiq.GitBranch != "main" {
		t.Fatalf("sidekiq spec = %+v, ok=%v", sidekiq, ok)
	}
	if lf.DeclaredVersions["rails"] != "~> 7.0" {
		t.Errorf("declared rails constraint = %q", lf.DeclaredVersions["rails"])
	}
	if lf.BundledWith != "2.4.6" {
		t.Errorf("bundled with = %q", lf.BundledWith)
	}
}
