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

// Package gomod reads a first-party application's own go.mod/go.sum to
// resolve its pinned toolchain and module graph. It does not recurse
// into a dependency's own go.mod: only the declared application's
// manifest is read.
package gomod

import (
	"fmt"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/sumdb/dirhash"

	"github.com/debler/debler/internal/ecosystem"
)

// Manifest is the subset of an application's go.mod this system needs:
// its module path, Go toolchain directive, and require graph, with
// replace directives applied.
type Manifest struct {
	ModulePath string
	GoVersion  string
	Require    []ecosystem.Dependency
}

// Parse reads raw go.mod content (as returned by os.ReadFile) and
// resolves it into a Manifest, applying the file's own replace
// directives to the require graph so the produced dependency model
// reflects what actually builds.
func Parse(filename string, data []byte) (*Manifest, error) {
	f, err := modfile.Parse(filename, data, nil)
	if err != nil {
		return nil, fmt.Errorf("gomod: parse %s: %w", filename, err)
	}

	replace := make(map[string]*modfile.Replace, len(f.Replace))
	for _, r := range f.Replace {
		replace[r.Old.Path] = r
	}

	m := &Manifest{ModulePath: f.Module.Mod.Path}
	if f.Go != nil {
		m.GoVersion = f.Go.Version
	}

	for _, req := range f.Require {
		path, version := req.Mod.Path, req.Mod.Version
		if r, ok := replace[path]; ok {
			path, version = r.New.Path, r.New.Version
		}
		kind := ecosystem.Runtime
		if req.Indirect {
			kind = ecosystem.Development
		}
		m.Require = append(m.Require, ecosystem.Dependency{
			Name:            path,
			Constraint:      version,
			ResolvedVersion: version,
			Kind:            kind,
		})
	}
	return m, nil
}

// VerifySum checks that a module zip's dirhash matches the recorded
// go.sum entry, using the same h1: hash family `go mod verify` uses.
func VerifySum(modulePath, version string, zipHash string, sumEntries map[string]string) error {
	want, ok := sumEntries[modulePath+"@"+version]
	if !ok {
		return fmt.Errorf("gomod: no go.sum entry for %s@%s", modulePath, version)
	}
	if want != zipHash {
		return fmt.Errorf("gomod: %s@%s: go.sum hash mismatch: want %s, got %s", modulePath, version, want, zipHash)
	}
	return nil
}

// HashZip computes the h1: dirhash of a module zip archive's file list
// and per-file hashes, delegating to golang.org/x/mod/sumdb/dirhash so
// the result matches what go.sum records.
func HashZip(modulePath, version string, zipPath string) (string, error) {
	h, err := dirhash.HashZip(zipPath, dirhash.Hash1)
	if err != nil {
		return "", fmt.Errorf("gomod: hash %s@%s: %w", modulePath, version, err)
	}
	return h, nil
}
