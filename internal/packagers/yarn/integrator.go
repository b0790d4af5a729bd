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

// Package yarn implements the npm/yarn packager: repackaging a single
// published npm package as a Debian source+binary package. Unlike
// bundler, there is no native-extension build step modeled here — npm
// native addons are a Non-goal (see SPEC_FULL.md).
package yarn

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/debler/debler/internal/builder"
	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/constraint"
	"github.com/debler/debler/internal/ecosystem"
	"github.com/debler/debler/internal/ecosystem/npm"
	"github.com/debler/debler/internal/pkgversion"
	"github.com/debler/debler/internal/registry"
)

// Integrator implements builder.Packager for a single npm package.
type Integrator struct {
	NPM   *registry.NPMClient
	Store *catalog.Store
}

func NewIntegrator(store *catalog.Store) *Integrator {
	return &Integrator{NPM: registry.NewNPMClient(), Store: store}
}

func (i *Integrator) Name() string { return "yarn" }

// FetchSource downloads the package's published tarball and unpacks it;
// npm tarballs nest everything under a single "package/" directory,
// which is stripped so sourceDir is the package root.
func (i *Integrator) FetchSource(ctx context.Context, data catalog.BuildData, cacheDir string) (string, error) {
	name, version := data.Package.Name, data.Version.Version

	tgzPath := filepath.Join(cacheDir, "npm", fmt.Sprintf("%s-%s.tgz", flattenScope(name), version))
	if _, err := os.Stat(tgzPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(tgzPath), 0o755); err != nil {
			return "", err
		}
		f, err := os.Create(tgzPath)
		if err != nil {
			return "", err
		}
		if err := i.NPM.DownloadTarball(ctx, name, version, f); err != nil {
			f.Close()
			os.Remove(tgzPath)
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	sourceDir := filepath.Join(cacheDir, "src", flattenScope(name), version)
	if err := os.RemoveAll(sourceDir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.Open(tgzPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := extractNpmTarball(f, sourceDir); err != nil {
		return "", fmt.Errorf("yarn: extract %s: %w", tgzPath, err)
	}
	return sourceDir, nil
}

// ParseMetadata reads the unpacked package's package.json.
func (i *Integrator) ParseMetadata(ctx context.Context, sourceDir string) (map[string]any, error) {
	f, err := os.Open(filepath.Join(sourceDir, "package.json"))
	if err != nil {
		return nil, fmt.Errorf("yarn: open package.json: %w", err)
	}
	defer f.Close()
	m, err := npm.ParsePackageJSON(f)
	if err != nil {
		return nil, err
	}
	return map[string]any{"manifest": m}, nil
}

// Generate emits a single binary package installing the tarball's
// content under /usr/lib/node_modules/<name>, with a Dependency per
// runtime dependency compiled against tracked slots.
func (i *Integrator) Generate(ctx context.Context, data catalog.BuildData, metadata map[string]any, buildRoot string) ([]builder.Record, error) {
	osName := data.Slot.OSPackageName

	var records []builder.Record
	records = append(records,
		builder.SourceControl(map[string]string{
			"Source":            osName,
			"Section":           "javascript",
			"Priority":          "optional",
			"Standards-Version": "4.6.2",
			"Description":       fmt.Sprintf("%s npm package", data.Package.Name),
		}),
		builder.BuildDependency("debhelper-compat (= 13)"),
		builder.Package(osName, "all", "javascript", fmt.Sprintf("%s npm package", data.Package.Name)),
		builder.InstallInto(osName, "*", "/usr/lib/node_modules/"+data.Package.Name),
	)

	if m := manifestOf(metadata); m != nil {
		for _, dep := range m.Dependencies {
			if dep.Kind != ecosystem.Runtime {
				continue
			}
			clause, err := i.compileDependency(ctx, dep.Name, dep.Constraint)
			if err != nil {
				records = append(records, builder.Dependency(osName, dep.Name))
				continue
			}
			records = append(records, builder.Dependency(osName, clause))
		}
	}

	records = append(records, builder.FastBuild(true))
	return records, nil
}

func (i *Integrator) compileDependency(ctx context.Context, name, constraintStr string) (string, error) {
	if i.Store == nil {
		return "", fmt.Errorf("yarn: no catalog store configured")
	}
	packager, err := i.Store.GetPackager(ctx, "yarn")
	if err != nil {
		return "", err
	}
	pkg, err := i.Store.PackageInfo(ctx, packager.ID, name)
	if err != nil {
		return "", err
	}
	if len(pkg.Slots) == 0 {
		return "", fmt.Errorf("yarn: %s has no tracked slots", name)
	}

	slots := make([]constraint.Slot[pkgversion.SemverVersion], 0, len(pkg.Slots))
	for _, sl := range pkg.Slots {
		minV, err := pkgversion.ParseSemverVersion(sl.Key)
		if err != nil {
			continue
		}
		slots = append(slots, constraint.Slot[pkgversion.SemverVersion]{
			Key:           sl.Key,
			OSPackageName: sl.OSPackageName,
			Min:           minV,
			Max:           bumpSemverSlot(minV),
		})
	}

	c, err := constraint.ParseSemverConstraints(constraintStr)
	if err != nil {
		return "", err
	}
	compiled := constraint.CompileToSlots(c, slots)
	if len(compiled) == 0 {
		return "", fmt.Errorf("yarn: %s: constraint %q matches no tracked slot", name, constraintStr)
	}
	return constraint.RenderDependency(compiled), nil
}

func manifestOf(metadata map[string]any) *ecosystem.Manifest {
	m, _ := metadata["manifest"].(*ecosystem.Manifest)
	return m
}

// bumpSemverSlot computes a slot's upper bound from its key: the key's
// last numeric component incremented by one, matching the level-prefix
// slotting rule used for gem slots.
func bumpSemverSlot(v pkgversion.SemverVersion) pkgversion.SemverVersion {
	n := v.NumComponents()
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		c := v.Component(i)
		if i == n-1 {
			c++
		}
		parts[i] = strconv.FormatInt(c, 10)
	}
	bumped, err := pkgversion.ParseSemverVersion(strings.Join(parts, "."))
	if err != nil {
		return v
	}
	return bumped
}

func flattenScope(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == '@' {
			continue
		}
		out = append(out, name[i])
	}
	return string(out)
}

func extractNpmTarball(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		rel := stripPackagePrefix(hdr.Name)
		if rel == "" {
			continue
		}
		target := filepath.Join(destDir, rel)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}

func stripPackagePrefix(name string) string {
	const prefix = "package/"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return ""
}
