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

// Package npm parses package.json manifests and yarn.lock files into the
// uniform dependency model, including scoped ("@scope/name") packages
// that the upstream yarn-lock parser this was adapted from used to drop.
package npm

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/debler/debler/internal/ecosystem"
)

// PackageJSON is the subset of package.json this system reads.
type PackageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// ParsePackageJSON decodes a package.json document and flattens its
// runtime and dev dependency maps into the uniform model.
func ParsePackageJSON(r io.Reader) (*ecosystem.Manifest, error) {
	var pkg PackageJSON
	if err := json.NewDecoder(r).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("npm: decode package.json: %w", err)
	}
	m := &ecosystem.Manifest{Name: pkg.Name, Version: pkg.Version}
	for name, constraint := range pkg.Dependencies {
		m.Dependencies = append(m.Dependencies, ecosystem.Dependency{
			Name: name, Constraint: constraint, Kind: ecosystem.Runtime,
		})
	}
	for name, constraint := range pkg.DevDependencies {
		m.Dependencies = append(m.Dependencies, ecosystem.Dependency{
			Name: name, Constraint: constraint, Kind: ecosystem.Development,
		})
	}
	return m, nil
}
