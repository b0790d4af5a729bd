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
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// LockedSpec is one resolved gem from a Gemfile.lock's GEM or GIT
// section.
type LockedSpec struct {
	Name         string
	Version      string
	Remote       string
	GitRevision  string
	GitBranch    string
	Dependencies map[string]string
}

// Lockfile is a fully parsed Gemfile.lock.
type Lockfile struct {
	Specs            map[string]LockedSpec
	DeclaredVersions map[string]string // from the top-level DEPENDENCIES section
	BundledWith      string
}

var specLine = regexp.MustCompile(`^(\S+) \(([^)]*)\)$`)

// ParseGemfileLock parses a Gemfile.lock: the GEM and GIT sections'
// indentation-nested specs trees, the DEPENDENCIES section's declared
// constraints, and the BUNDLED WITH version.
func ParseGemfileLock(r io.Reader) (*Lockfile, error) {
	scanner := bufio.NewScanner(r)
	lf := &Lockfile{Specs: map[string]LockedSpec{}, DeclaredVersions: map[string]string{}}

	var section string
	var remote, revision, branch string
	var currentSpec string

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		if !strings.HasPrefix(raw, " ") {
			section = strings.TrimSpace(raw)
			remote, revision, branch, currentSpec = "", "", "", ""
			continue
		}

		indent := len(raw) - len(strings.TrimLeft(raw, " "))
		trimmed := strings.TrimSpace(raw)

		switch section {
		case "GEM", "GIT", "PATH":
			switch {
			case strings.HasPrefix(trimmed, "remote:"):
				remote = strings.TrimSpace(strings.TrimPrefix(trimmed, "remote:"))
			case strings.HasPrefix(trimmed, "revision:"):
				revision = strings.TrimSpace(strings.TrimPrefix(trimmed, "revision:"))
			case strings.HasPrefix(trimmed, "branch:"):
				branch = strings.TrimSpace(strings.TrimPrefix(trimmed, "branch:"))
			case trimmed == "specs:":
				continue
			case indent == 4:
				m := specLine.FindStringSubmatch(trimmed)
				if m == nil {
					return nil, fmt.Errorf("gem: Gemfile.lock line %d: malformed spec line %q", lineNo, trimmed)
				}
				currentSpec = m[1]
				lf.Specs[currentSpec] = LockedSpec{
					Name: m[1], Version: m[2],
					Remote: remote, GitRevision: revision, GitBranch: branch,
					Dependencies: map[string]string{},
				}
			case indent == 6:
				if currentSpec == "" {
					return nil, fmt.Errorf("gem: Gemfile.lock line %d: nested dependency with no owning spec", lineNo)
				}
				name, constraint := splitLockDependency(trimmed)
				lf.Specs[currentSpec].Dependencies[name] = constraint
			default:
				return nil, fmt.Errorf("gem: Gemfile.lock line %d: unrecognized indentation in %s section", lineNo, section)
			}

		case "DEPENDENCIES":
			name, constraint := splitLockDependency(strings.TrimSuffix(trimmed, "!"))
			lf.DeclaredVersions[name] = constraint

		case "BUNDLED WITH":
			lf.BundledWith = trimmed

		case "PLATFORMS", "RUBY VERSION":
			// informational, not needed for dependency resolution.

		default:
			return nil, fmt.Errorf("gem: Gemfile.lock line %d: unrecognized section %q", lineNo, section)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gem: read Gemfile.lock: %w", err)
	}
	return lf, nil
}

// splitLockDependency splits "name (constraint)" into its two parts; a
// bare name with no parenthesized constraint returns an empty
// constraint.
func splitLockDependency(s string) (name, constraint string) {
	if m := specLine.FindStringSubmatch(s); m != nil {
		return m[1], m[2]
	}
	return s, ""
}
