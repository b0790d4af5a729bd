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
	"bufio"
	"fmt"
	"io"
	"strings"
)

// LockedPackage is one resolved entry in a yarn.lock: the set of
// "name@range" descriptors that all resolved to it, its pinned version,
// download location, and its own nested dependency constraints.
type LockedPackage struct {
	Descriptors  []string
	Name         string
	Version      string
	Resolved     string
	Dependencies map[string]string
}

// ParseYarnLock parses a classic (v1) yarn.lock into its resolved
// packages, keyed by each of their raw descriptors. Scoped packages
// ("@scope/name@range") are parsed like any other: the descriptor is
// split on the last "@", not the first, so the leading "@scope/" stays
// part of the name.
func ParseYarnLock(r io.Reader) (map[string]LockedPackage, error) {
	scanner := bufio.NewScanner(r)
	packages := map[string]LockedPackage{}

	var current *LockedPackage
	var currentDescriptors []string
	inDependencies := false

	flush := func() {
		if current == nil {
			return
		}
		current.Descriptors = currentDescriptors
		for _, d := range currentDescriptors {
			packages[d] = *current
		}
		current = nil
		currentDescriptors = nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " "))

		switch {
		case indent == 0:
			flush()
			inDependencies = false
			descriptors, err := parseDescriptorHeader(strings.TrimSuffix(trimmed, ":"))
			if err != nil {
				return nil, fmt.Errorf("npm: yarn.lock line %d: %w", lineNo, err)
			}
			currentDescriptors = descriptors
			name, _ := splitDescriptor(descriptors[0])
			current = &LockedPackage{Name: name, Dependencies: map[string]string{}}

		case current == nil:
			return nil, fmt.Errorf("npm: yarn.lock line %d: field before any descriptor header", lineNo)

		case indent == 2 && trimmed == "dependencies:":
			inDependencies = true

		case indent == 2 && trimmed == "optionalDependencies:":
			inDependencies = true

		case indent == 2 && strings.HasPrefix(trimmed, "version "):
			inDependencies = false
			current.Version = unquote(strings.TrimPrefix(trimmed, "version "))

		case indent == 2 && strings.HasPrefix(trimmed, "resolved "):
			inDependencies = false
			current.Resolved = unquote(strings.TrimPrefix(trimmed, "resolved "))

		case indent == 2:
			inDependencies = false
			// integrity, and other scalar fields this system does not need.

		case indent == 4 && inDependencies:
			name, constraint, err := parseDependencyField(trimmed)
			if err != nil {
				return nil, fmt.Errorf("npm: yarn.lock line %d: %w", lineNo, err)
			}
			current.Dependencies[name] = constraint

		default:
			return nil, fmt.Errorf("npm: yarn.lock line %d: unrecognized indentation", lineNo)
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("npm: read yarn.lock: %w", err)
	}
	return packages, nil
}

// parseDescriptorHeader splits a comma-separated list of quoted or bare
// descriptors, e.g. `"@scope/pkg@^1.0.0", "@scope/pkg@^1.2.0"`.
func parseDescriptorHeader(header string) ([]string, error) {
	var out []string
	for _, part := range splitTopLevelCommas(header) {
		d := unquote(strings.TrimSpace(part))
		if d == "" {
			return nil, fmt.Errorf("empty descriptor in header %q", header)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no descriptors in header %q", header)
	}
	return out, nil
}

func splitTopLevelCommas(s string) []string {
	var out []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ',':
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// splitDescriptor splits "name@range" into its two parts, treating a
// leading "@" (a scope marker) as part of the name rather than the
// separator.
func splitDescriptor(desc string) (name, rangeStr string) {
	body := desc
	scoped := strings.HasPrefix(desc, "@")
	if scoped {
		body = desc[1:]
	}
	idx := strings.LastIndex(body, "@")
	if idx < 0 {
		if scoped {
			return desc, ""
		}
		return body, ""
	}
	if scoped {
		return "@" + body[:idx], body[idx+1:]
	}
	return body[:idx], body[idx+1:]
}

func parseDependencyField(line string) (name, constraint string, err error) {
	if strings.HasPrefix(line, "\"") {
		rest := line[1:]
		end := strings.Index(rest, "\"")
		if end < 0 {
			return "", "", fmt.Errorf("unterminated quoted dependency name in %q", line)
		}
		name = rest[:end]
		constraint = unquote(strings.TrimSpace(rest[end+1:]))
		return name, constraint, nil
	}
	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("malformed dependency field %q", line)
	}
	return fields[0], unquote(fields[1]), nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
