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

// Package gomod implements the app-integrator for a Go-built
// application: it reads the app's own go.mod to resolve its pinned
// toolchain and module graph, but never packages a third-party Go
// module as its own OS package. A Go binary already vendors its
// dependencies at compile time, so there is nothing for the catalog to
// track or schedule; the module graph instead becomes changelog
// metadata describing what the shipped binary was built against.
package gomod

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/debler/debler/internal/builder"
	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/ecosystem/gomod"
)

// AppIntegrator packages a first-party Go application as a single
// binary OS package. Unlike bundler/yarn, it never calls
// store.ScheduleBuild: nothing it depends on is separately built.
type AppIntegrator struct{}

func (a *AppIntegrator) Name() string { return "gomod" }

// ScheduleDepBuilds is a no-op: Go modules are statically linked into
// the produced binary, not packaged as separate OS dependencies.
func (a *AppIntegrator) ScheduleDepBuilds(ctx context.Context, store *catalog.Store, app builder.AppDescription, now time.Time) error {
	return nil
}

// Generate emits one binary package installing the built Go binary
// plus any configured data directories/files, with the resolved module
// graph recorded as a changelog-readable manifest rather than as
// Dependency records.
func (a *AppIntegrator) Generate(ctx context.Context, app builder.AppDescription) ([]builder.Record, error) {
	manifest, err := a.readManifest(app)
	if err != nil {
		return nil, err
	}

	pkgName := app.Name
	var records []builder.Record
	records = append(records,
		builder.SourceControl(map[string]string{
			"Source":            pkgName,
			"Section":           "devel",
			"Priority":          "optional",
			"Standards-Version": "4.6.2",
			"Description":       app.Description,
		}),
		builder.BuildDependency("debhelper-compat (= 13)"),
		builder.BuildDependency(goToolchainDependency(manifest.GoVersion)),
		builder.Package(pkgName, "any", "devel", app.Description),
		builder.InstallInto(pkgName, "bin/"+app.Name, "/usr/bin"),
	)

	records = append(records, builder.InstallContent(pkgName, pkgName+".modules",
		fmt.Sprintf("/usr/share/doc/%s/modules.txt", pkgName),
		[]byte(renderModuleList(manifest)), 0o644))

	for _, dir := range app.Directories {
		records = append(records, builder.InstallInto(pkgName, dir+"/*", "/usr/share/"+pkgName+"/"+dir))
	}
	for _, file := range app.Files {
		records = append(records, builder.Install(pkgName, file, "/usr/share/"+pkgName+"/"+filepath.Base(file)))
	}

	records = append(records, builder.FastBuild(true))
	return records, nil
}

func (a *AppIntegrator) readManifest(app builder.AppDescription) (*gomod.Manifest, error) {
	path := filepath.Join(app.SourceDir, "go.mod")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gomod: read go.mod: %w", err)
	}
	return gomod.Parse(path, data)
}

// renderModuleList produces a stable, sorted changelog-style listing of
// the app's resolved module graph: what the shipped binary was built
// against, for anyone diffing one revision's packaging against the next.
func renderModuleList(m *gomod.Manifest) string {
	entries := make([]string, 0, len(m.Require))
	for _, dep := range m.Require {
		entries = append(entries, fmt.Sprintf("%s %s", dep.Name, dep.ResolvedVersion))
	}
	sort.Strings(entries)
	out := fmt.Sprintf("module %s\ngo %s\n\n", m.ModulePath, m.GoVersion)
	for _, e := range entries {
		out += e + "\n"
	}
	return out
}

func goToolchainDependency(goVersion string) string {
	if goVersion == "" {
		return "golang-go"
	}
	return fmt.Sprintf("golang-go (>= 2:%s~)", goVersion)
}
