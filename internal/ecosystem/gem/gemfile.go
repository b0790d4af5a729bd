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
	"strings"

	"github.com/debler/debler/internal/ecosystem"
)

// GemfileEntry is one "gem ..." declaration, resolved against the
// Gemfile's own variable/ENV expression grammar.
type GemfileEntry struct {
	Name       string
	Constraint string
	Groups     []string
	RequireAs  string
	Path       string
	Git        string
	Branch     string
	Ref        string
}

// ParseGemfile parses a Gemfile's declarative "gem" calls, source lines,
// and top-level variable assignments. Control-flow constructs other than
// a bare "group :x do ... end" block are unsupported and fail loudly
// rather than silently skipping dependencies they guard.
func ParseGemfile(r io.Reader) ([]GemfileEntry, error) {
	scanner := bufio.NewScanner(r)
	vars := env{}
	var groupStack []string
	var entries []GemfileEntry

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "source "), strings.HasPrefix(line, "ruby "):
			continue

		case strings.HasPrefix(line, "group ") && strings.HasSuffix(line, "do"):
			groups, err := parseGroupHeader(line)
			if err != nil {
				return nil, fmt.Errorf("gem: Gemfile line %d: %w", lineNo, err)
			}
			groupStack = append(groupStack, groups...)

		case line == "end":
			if len(groupStack) == 0 {
				return nil, fmt.Errorf("gem: Gemfile line %d: unmatched 'end'", lineNo)
			}
			groupStack = groupStack[:0]

		case strings.HasPrefix(line, "gem "):
			entry, err := parseGemCall(strings.TrimPrefix(line, "gem "), vars)
			if err != nil {
				return nil, fmt.Errorf("gem: Gemfile line %d: %w", lineNo, err)
			}
			entry.Groups = append(entry.Groups, groupStack...)
			if len(entry.Groups) == 0 {
				entry.Groups = []string{"default"}
			}
			entries = append(entries, entry)

		case isAssignment(line):
			name, expr, _ := strings.Cut(line, "=")
			v, err := evalExpr(expr, vars)
			if err != nil {
				return nil, fmt.Errorf("gem: Gemfile line %d: %w", lineNo, err)
			}
			vars[strings.TrimSpace(name)] = v

		default:
			return nil, fmt.Errorf("gem: Gemfile line %d: unrecognized construct %q", lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gem: read Gemfile: %w", err)
	}
	return entries, nil
}

// isAssignment recognizes "name = expr" but not "==" comparisons or a
// keyword-argument "key: value" pair, which this grammar never sees at
// top level.
func isAssignment(line string) bool {
	idx := strings.Index(line, "=")
	if idx <= 0 || idx+1 >= len(line) {
		return false
	}
	if line[idx+1] == '=' || (idx > 0 && line[idx-1] == '!') {
		return false
	}
	name := strings.TrimSpace(line[:idx])
	for _, r := range name {
		if !isIdentByte(byte(r)) {
			return false
		}
	}
	return name != ""
}

func parseGroupHeader(line string) ([]string, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(line, "group "), "do")
	body = strings.TrimSpace(body)
	var groups []string
	for _, f := range splitArgs(body) {
		v, err := evalExpr(f, env{})
		if err != nil {
			return nil, err
		}
		groups = append(groups, v.String())
	}
	return groups, nil
}

// parseGemCall parses the argument list of a "gem" call: a positional
// name, an optional positional version constraint, and any of the
// recognized keyword arguments (group:, require:, path:, git:, branch:,
// ref:).
func parseGemCall(args string, vars env) (GemfileEntry, error) {
	fields := splitArgs(args)
	if len(fields) == 0 {
		return GemfileEntry{}, fmt.Errorf("gem call with no arguments")
	}

	nameVal, err := evalExpr(fields[0], vars)
	if err != nil {
		return GemfileEntry{}, err
	}
	entry := GemfileEntry{Name: nameVal.String()}

	for _, f := range fields[1:] {
		key, rest, isKW := strings.Cut(f, ":")
		key = strings.TrimSpace(key)
		if !isKW || !isPlainIdent(key) {
			v, err := evalExpr(f, vars)
			if err != nil {
				return GemfileEntry{}, err
			}
			entry.Constraint = v.String()
			continue
		}
		v, err := evalExpr(rest, vars)
		if err != nil {
			return GemfileEntry{}, fmt.Errorf("keyword %q: %w", key, err)
		}
		switch key {
		case "group", "groups":
			entry.Groups = append(entry.Groups, v.String())
		case "require":
			entry.RequireAs = v.String()
		case "path":
			entry.Path = v.String()
		case "git":
			entry.Git = v.String()
		case "branch":
			entry.Branch = v.String()
		case "ref", "tag":
			entry.Ref = v.String()
		default:
			return GemfileEntry{}, fmt.Errorf("unrecognized gem keyword argument %q", key)
		}
	}
	return entry, nil
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isIdentByte(byte(r)) {
			return false
		}
	}
	return true
}

// splitArgs splits a comma-separated argument list respecting quotes and
// bracket nesting, so "ENV[\"A\"], foo: 1" splits into two fields, not
// three.
func splitArgs(s string) []string {
	var fields []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
		case c == ',' && depth == 0:
			fields = append(fields, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		fields = append(fields, tail)
	}
	return fields
}

// ToDependencies converts a runtime-group subset of Gemfile entries into
// the uniform dependency model.
func ToDependencies(entries []GemfileEntry) []ecosystem.Dependency {
	out := make([]ecosystem.Dependency, 0, len(entries))
	for _, e := range entries {
		kind := ecosystem.Runtime
		if !hasGroup(e.Groups, "default") && !hasGroup(e.Groups, "production") {
			kind = ecosystem.Development
		}
		out = append(out, ecosystem.Dependency{
			Name:        e.Name,
			Constraint:  e.Constraint,
			Kind:        kind,
			GitRevision: e.Ref,
		})
	}
	return out
}

func hasGroup(groups []string, want string) bool {
	for _, g := range groups {
		if g == want {
			return true
		}
	}
	return false
}
