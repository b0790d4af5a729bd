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

// Package gem parses RubyGems artifacts: the gzipped YAML gemspec
// metadata carried inside a .gem archive, and Bundler's Gemfile /
// Gemfile.lock pair.
package gem

import (
	"compress/gzip"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/debler/debler/internal/ecosystem"
)

// Metadata is the subset of a Gem::Specification this system needs to
// repackage a gem as an OS package.
type Metadata struct {
	Name         string
	Version      string
	Platform     string
	RequirePaths []string
	Bindir       string
	Authors      []string
	Email        []string
	Date         string
	Summary      string
	Description  string
	Licenses     []string
	Homepage     string
	Extensions   []string
	Dependencies []ecosystem.Dependency
}

// ParseMetadata reads a gzip-compressed YAML gemspec (metadata.gz, as
// stored inside a .gem archive) and extracts the fields needed for
// packaging. Ruby's "!ruby/object:..." YAML tags are not resolved to Go
// types; the mapping nodes underneath them are walked directly, which is
// enough since gemspecs carry no custom marshalling behavior beyond tags.
func ParseMetadata(r io.Reader) (*Metadata, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gem: open metadata gzip: %w", err)
	}
	defer gz.Close()

	var doc yaml.Node
	if err := yaml.NewDecoder(gz).Decode(&doc); err != nil {
		return nil, fmt.Errorf("gem: decode metadata yaml: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("gem: metadata document is not a mapping")
	}

	m := &Metadata{
		Name:        mapString(root, "name"),
		Platform:    mapString(root, "platform"),
		Bindir:      mapString(root, "bindir"),
		Date:        mapString(root, "date"),
		Summary:     mapString(root, "summary"),
		Description: mapString(root, "description"),
		Homepage:    mapString(root, "homepage"),
	}
	if v := mapNode(root, "version"); v != nil {
		m.Version = versionString(v)
	}
	m.RequirePaths = mapStringList(root, "require_paths")
	m.Authors = mapStringList(root, "authors")
	m.Email = mapStringList(root, "email")
	m.Licenses = mapStringList(root, "licenses")
	m.Extensions = mapStringList(root, "extensions")

	if deps := mapNode(root, "dependencies"); deps != nil && deps.Kind == yaml.SequenceNode {
		for _, d := range deps.Content {
			dep, err := parseDependencyNode(d)
			if err != nil {
				return nil, err
			}
			m.Dependencies = append(m.Dependencies, dep)
		}
	}
	return m, nil
}

func parseDependencyNode(n *yaml.Node) (ecosystem.Dependency, error) {
	if n.Kind != yaml.MappingNode {
		return ecosystem.Dependency{}, fmt.Errorf("gem: dependency entry is not a mapping")
	}
	kind := ecosystem.Runtime
	if mapString(n, "type") == ":development" {
		kind = ecosystem.Development
	}
	dep := ecosystem.Dependency{
		Name: mapString(n, "name"),
		Kind: kind,
	}
	if req := mapNode(n, "requirement"); req != nil {
		dep.Constraint = requirementString(req)
	}
	return dep, nil
}

// requirementString renders a Gem::Requirement node's nested
// requirements list as a single comma-joined constraint string, e.g.
// ">= 1.0, < 2.0".
func requirementString(req *yaml.Node) string {
	reqs := mapNode(req, "requirements")
	if reqs == nil || reqs.Kind != yaml.SequenceNode {
		return ""
	}
	var parts []string
	for _, pair := range reqs.Content {
		if pair.Kind != yaml.SequenceNode || len(pair.Content) != 2 {
			continue
		}
		op := pair.Content[0].Value
		parts = append(parts, op+" "+versionString(pair.Content[1]))
	}
	return joinComma(parts)
}

func versionString(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	return mapString(n, "version")
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// mapNode finds the value node for key in a YAML mapping node, nil if
// absent.
func mapNode(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func mapString(n *yaml.Node, key string) string {
	v := mapNode(n, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return ""
	}
	return v.Value
}

func mapStringList(n *yaml.Node, key string) []string {
	v := mapNode(n, key)
	if v == nil || v.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(v.Content))
	for _, item := range v.Content {
		if item.Kind == yaml.ScalarNode {
			out = append(out, item.Value)
		}
	}
	return out
}
