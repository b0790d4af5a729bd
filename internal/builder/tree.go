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
	"fmt"
	"sort"
	"strings"
)

type linkEntry struct{ Dest, Src string }
type installEntry struct{ Obj, Dest, Dir string }
type auxFile struct {
	Content []byte
	Mode    uint32
}

type packageStanza struct {
	Name, Arch, Section, Description string
	Depends                          []string
	Provides                         []string
	Links                            []linkEntry
	Installs                         []installEntry
}

// Collector accumulates Records in order and renders them into a
// deterministic in-memory debian/ tree.
type Collector struct {
	sourceControl map[string]string
	buildDeps     []string

	packages []*packageStanza
	byName   map[string]*packageStanza

	auxFiles map[string]auxFile
	auxOrder []string

	ruleOrder     []string
	ruleOverrides map[string][]string

	fastBuildPossible bool
}

// NewCollector returns an empty Collector. FastBuild defaults to true:
// the fast path is used unless some generator vetoes it.
func NewCollector() *Collector {
	return &Collector{
		sourceControl:     map[string]string{},
		byName:            map[string]*packageStanza{},
		auxFiles:          map[string]auxFile{},
		ruleOverrides:     map[string][]string{},
		fastBuildPossible: true,
	}
}

// Process folds one Record into the collector's state. Records must
// arrive in the order generators yielded them: a Dependency/Provide/
// Symlink/Install referencing a package name requires that name's
// Package record to have already been processed.
func (c *Collector) Process(r Record) error {
	switch r.kind {
	case kindSourceControl:
		for k, v := range r.ControlFields {
			c.sourceControl[k] = v
		}
	case kindBuildDependency:
		c.buildDeps = append(c.buildDeps, r.BuildDep)
	case kindPackage:
		if _, exists := c.byName[r.PackageName]; exists {
			return fmt.Errorf("builder: package %q opened twice", r.PackageName)
		}
		st := &packageStanza{Name: r.PackageName, Arch: r.Arch, Section: r.Section, Description: r.Description}
		c.byName[r.PackageName] = st
		c.packages = append(c.packages, st)
	case kindDependency:
		st, err := c.stanza(r.PackageName)
		if err != nil {
			return err
		}
		st.Depends = append(st.Depends, r.Dep)
	case kindProvide:
		st, err := c.stanza(r.PackageName)
		if err != nil {
			return err
		}
		st.Provides = append(st.Provides, r.Provide)
	case kindSymlink:
		st, err := c.stanza(r.PackageName)
		if err != nil {
			return err
		}
		st.Links = append(st.Links, linkEntry{Dest: r.LinkDest, Src: r.LinkSrc})
	case kindInstall:
		st, err := c.stanza(r.PackageName)
		if err != nil {
			return err
		}
		st.Installs = append(st.Installs, installEntry{Obj: r.Obj, Dest: r.Dest})
	case kindInstallInto:
		st, err := c.stanza(r.PackageName)
		if err != nil {
			return err
		}
		st.Installs = append(st.Installs, installEntry{Obj: r.Obj, Dir: r.Dir})
	case kindInstallContent:
		st, err := c.stanza(r.PackageName)
		if err != nil {
			return err
		}
		c.putAux(r.ContentName, r.Content, r.Mode)
		st.Installs = append(st.Installs, installEntry{Obj: r.ContentName, Dest: r.Dest})
	case kindDebianContent:
		c.putAux(r.ContentName, r.Content, r.Mode)
	case kindRuleOverride:
		if _, ok := c.ruleOverrides[r.RuleTarget]; !ok {
			c.ruleOrder = append(c.ruleOrder, r.RuleTarget)
		}
		c.ruleOverrides[r.RuleTarget] = nil
	case kindRuleAction:
		if _, ok := c.ruleOverrides[r.RuleTarget]; !ok {
			c.ruleOrder = append(c.ruleOrder, r.RuleTarget)
		}
		c.ruleOverrides[r.RuleTarget] = append(c.ruleOverrides[r.RuleTarget], r.RuleCmd)
	case kindFastBuild:
		if !r.FastBuildPossible {
			c.fastBuildPossible = false
		}
	default:
		return fmt.Errorf("builder: unrecognized record kind %d", r.kind)
	}
	return nil
}

func (c *Collector) stanza(name string) (*packageStanza, error) {
	st, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("builder: record references unopened package %q", name)
	}
	return st, nil
}

func (c *Collector) putAux(name string, content []byte, mode uint32) {
	if _, exists := c.auxFiles[name]; !exists {
		c.auxOrder = append(c.auxOrder, name)
	}
	c.auxFiles[name] = auxFile{Content: content, Mode: mode}
}

// FastBuildPossible reports the conjunctive FastBuild signal aggregated
// across every generator.
func (c *Collector) FastBuildPossible() bool { return c.fastBuildPossible }

// Tree is the fully materialized debian/ tree: relative path to content,
// plus the set of paths that need the executable bit.
type Tree struct {
	Files      map[string][]byte
	Executable map[string]bool
}

// Render fans out the collected records into a deterministic debian/
// tree: the source stanza first, then binary stanzas in insertion
// order; .install manifests use the declarative form when no installed
// object path contains a space, otherwise the install is folded into an
// override_dh_auto_install rule action as a workaround; .links per
// package; the rules file assembled from collected overrides.
func (c *Collector) Render() Tree {
	t := Tree{Files: map[string][]byte{}, Executable: map[string]bool{}}

	for _, pkg := range c.packages {
		plain, spaced := partitionInstalls(pkg.Installs)
		if len(plain) > 0 {
			t.Files[fmt.Sprintf("debian/%s.install", pkg.Name)] = []byte(renderInstallManifest(plain))
		}
		for _, e := range spaced {
			c.appendInstallWorkaround(pkg.Name, e)
		}
		if len(pkg.Links) > 0 {
			t.Files[fmt.Sprintf("debian/%s.links", pkg.Name)] = []byte(renderLinksManifest(pkg.Links))
		}
	}

	t.Files["debian/control"] = []byte(c.renderControl())
	t.Files["debian/rules"] = []byte(c.renderRules())
	t.Executable["debian/rules"] = true

	for _, name := range c.auxOrder {
		f := c.auxFiles[name]
		path := "debian/" + name
		t.Files[path] = f.Content
		if f.Mode&0o111 != 0 {
			t.Executable[path] = true
		}
	}
	return t
}

func (c *Collector) renderControl() string {
	var b strings.Builder
	keys := make([]string, 0, len(c.sourceControl))
	for k := range c.sourceControl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "Description" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", k, c.sourceControl[k])
	}
	if len(c.buildDeps) > 0 {
		fmt.Fprintf(&b, "Build-Depends: %s\n", strings.Join(dedupStable(c.buildDeps), ", "))
	}
	if d, ok := c.sourceControl["Description"]; ok {
		fmt.Fprintf(&b, "Description: %s\n", formatDescription(d))
	}

	for _, pkg := range c.packages {
		b.WriteString("\n")
		fmt.Fprintf(&b, "Package: %s\n", pkg.Name)
		fmt.Fprintf(&b, "Architecture: %s\n", pkg.Arch)
		if pkg.Section != "" {
			fmt.Fprintf(&b, "Section: %s\n", pkg.Section)
		}
		if len(pkg.Depends) > 0 {
			fmt.Fprintf(&b, "Depends: %s\n", strings.Join(dedupStable(pkg.Depends), ", "))
		}
		if len(pkg.Provides) > 0 {
			fmt.Fprintf(&b, "Provides: %s\n", strings.Join(dedupStable(pkg.Provides), ", "))
		}
		fmt.Fprintf(&b, "Description: %s\n", formatDescription(pkg.Description))
	}
	return b.String()
}

// formatDescription applies the control-file long-description rule: a
// blank line within the body becomes a lone "." line, and every line
// after the first (the synopsis) is indented with a single leading space.
func formatDescription(desc string) string {
	normalized := strings.ReplaceAll(desc, "\n\n", "\n.\n")
	lines := strings.Split(normalized, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] == "" {
			lines[i] = "."
		}
		lines[i] = " " + lines[i]
	}
	return strings.Join(lines, "\n")
}

func (c *Collector) renderRules() string {
	var b strings.Builder
	b.WriteString("#!/usr/bin/make -f\n\n%:\n\tdh $@\n")
	for _, target := range c.ruleOrder {
		fmt.Fprintf(&b, "\noverride_dh_auto_%s:\n", target)
		for _, cmd := range c.ruleOverrides[target] {
			fmt.Fprintf(&b, "\t%s\n", cmd)
		}
	}
	return b.String()
}

// partitionInstalls splits install entries into the ones that can use
// the declarative .install manifest and the ones whose object path
// contains a space, which the manifest format cannot express.
func partitionInstalls(installs []installEntry) (plain, spaced []installEntry) {
	for _, e := range installs {
		if strings.Contains(e.Obj, " ") {
			spaced = append(spaced, e)
		} else {
			plain = append(plain, e)
		}
	}
	return plain, spaced
}

func renderInstallManifest(installs []installEntry) string {
	var b strings.Builder
	for _, e := range installs {
		if e.Dest != "" {
			fmt.Fprintf(&b, "%s %s\n", e.Obj, e.Dest)
		} else {
			fmt.Fprintf(&b, "%s %s\n", e.Obj, e.Dir)
		}
	}
	return b.String()
}

// appendInstallWorkaround folds a space-containing install entry into an
// override_dh_auto_install rule action using cp, working around the
// declarative .install format's inability to quote a path.
func (c *Collector) appendInstallWorkaround(pkg string, e installEntry) {
	target := "install"
	if _, ok := c.ruleOverrides[target]; !ok {
		c.ruleOrder = append(c.ruleOrder, target)
	}
	dest := e.Dest
	if dest == "" {
		dest = e.Dir
	}
	cmd := fmt.Sprintf("cp %q debian/%s/%s", e.Obj, pkg, dest)
	c.ruleOverrides[target] = append(c.ruleOverrides[target], cmd)
}

func renderLinksManifest(links []linkEntry) string {
	var b strings.Builder
	for _, l := range links {
		fmt.Fprintf(&b, "%s %s\n", l.Dest, l.Src)
	}
	return b.String()
}

func dedupStable(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
