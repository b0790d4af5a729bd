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

// Package ecosystem defines the uniform dependency model that every
// per-ecosystem parser (gem, npm, gomod) normalizes into, so the
// catalog, constraint engine, and builder never need ecosystem-specific
// branches.
package ecosystem

// DependencyKind distinguishes a runtime dependency from one only
// needed at development/test time.
type DependencyKind string

const (
	Runtime     DependencyKind = "runtime"
	Development DependencyKind = "development"
)

// Dependency is one edge in a manifest's dependency graph: a name plus
// its declared constraint string in the ecosystem's own syntax.
type Dependency struct {
	Name       string
	Constraint string
	Kind       DependencyKind

	// ResolvedVersion is set once a lockfile or registry answer pins an
	// exact version for this edge.
	ResolvedVersion string
	// Resolved is the download/source location the lockfile recorded,
	// when present (a tarball URL, git remote, or path).
	Resolved string
	// GitRevision is set when the dependency is sourced from a VCS
	// ref rather than a published version.
	GitRevision string
}

// Manifest is one parsed package description: its own identity plus the
// flat dependency edges declared for it.
type Manifest struct {
	Name         string
	Version      string
	Dependencies []Dependency
}
