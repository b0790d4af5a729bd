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

package bundler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/debler/debler/internal/builder"
	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/ecosystem/gem"
	"github.com/debler/debler/internal/pkgversion"
)

// AppIntegrator composes bundler-family packaging rules over a first
// party application that ships a Gemfile.lock: every locked gem with a
// published version becomes a Dependency on that gem's already-built OS
// package with the locked version as its floor, and the gems'
// vendor_ruby directories are listed in one load-path file for the app.
// Load paths are not split per interpreter, and no launcher wrapper is
// generated.
type AppIntegrator struct {
	Store *catalog.Store
}

func (a *AppIntegrator) Name() string { return "bundler" }

// ScheduleDepBuilds walks the app's Gemfile.lock and ensures every
// locked gem has a scheduled build: an already-tracked package whose
// slot lacks this exact version gets "Update to version used in
// application"; a name never seen before is registered with a
// best-effort level-2 slotting and scheduled with "Import newly into
// debler".
func (a *AppIntegrator) ScheduleDepBuilds(ctx context.Context, store *catalog.Store, app builder.AppDescription, now time.Time) error {
	lock, err := a.readLock(app)
	if err != nil {
		return err
	}

	packager, err := store.RegisterPackager(ctx, "bundler", nil)
	if err != nil {
		return err
	}
	dist, err := store.RegisterDistribution(ctx, defaultDistribution(app))
	if err != nil {
		return err
	}

	var firstErr error
	for name, spec := range lock.Specs {
		if spec.Version == "" {
			continue // git-sourced dependency tracked by revision, not a published version
		}
		level := 2
		key := slotKey(spec.Version, level)
		_, lookupErr := store.PackageInfo(ctx, packager.ID, name)
		wasTracked := lookupErr == nil
		pkg, err := store.RegisterPackage(ctx, packager.ID, name, map[string]any{"level": level})
		if err != nil {
			firstErr = firstMissingErr(firstErr, err)
			continue
		}
		slot, err := store.RegisterSlot(ctx, pkg.ID, key, osPackageName(name, key), nil)
		if err != nil {
			firstErr = firstMissingErr(firstErr, err)
			continue
		}
		if _, err := store.GetVersion(ctx, slot.ID, spec.Version); err == nil {
			continue // already tracked
		}
		v, err := store.RegisterVersion(ctx, slot.ID, spec.Version, nil, now)
		if err != nil {
			firstErr = firstMissingErr(firstErr, err)
			continue
		}
		changelog := "Update to version used in application"
		if !wasTracked {
			changelog = "Import newly into debler"
		}
		if _, err := store.ScheduleBuild(ctx, v.ID, dist.ID, changelog, now); err != nil {
			firstErr = firstMissingErr(firstErr, err)
		}
	}
	return firstErr
}

// Generate emits one binary package per app, depending on each locked
// gem's OS package and a load-path file listing every gem's vendor_ruby
// directory, in gem-name order.
func (a *AppIntegrator) Generate(ctx context.Context, app builder.AppDescription) ([]builder.Record, error) {
	lock, err := a.readLock(app)
	if err != nil {
		return nil, err
	}

	pkgName := app.Name
	var records []builder.Record
	records = append(records,
		builder.SourceControl(map[string]string{
			"Source":            pkgName,
			"Section":           "ruby",
			"Priority":          "optional",
			"Standards-Version": "4.6.2",
			"Description":       app.Description,
		}),
		builder.BuildDependency("debhelper-compat (= 13)"),
		builder.Package(pkgName, "all", "ruby", app.Description),
	)

	names := make([]string, 0, len(lock.Specs))
	for name := range lock.Specs {
		names = append(names, name)
	}
	sort.Strings(names)

	var loadPath []string
	for _, name := range names {
		spec := lock.Specs[name]
		if spec.GitRevision != "" {
			records = append(records, builder.Dependency(pkgName, fmt.Sprintf("%s-git%s", name, spec.GitRevision[:8])))
			continue
		}
		if spec.Version == "" {
			continue
		}
		key := slotKey(spec.Version, 2)
		records = append(records, builder.Dependency(pkgName, fmt.Sprintf("%s (>= %s)", osPackageName(name, key), spec.Version)))
		loadPath = append(loadPath, fmt.Sprintf("/usr/lib/ruby/vendor_ruby/%s-%s", name, spec.Version))
	}

	records = append(records, builder.InstallContent(pkgName, pkgName+".loadpath",
		fmt.Sprintf("/usr/lib/%s/loadpath", pkgName),
		[]byte(joinLines(loadPath)), 0o644))

	for _, dir := range app.Directories {
		records = append(records, builder.InstallInto(pkgName, dir+"/*", "/usr/share/"+pkgName+"/"+dir))
	}
	for _, file := range app.Files {
		records = append(records, builder.Install(pkgName, file, "/usr/share/"+pkgName+"/"+filepath.Base(file)))
	}

	records = append(records, builder.FastBuild(true))
	return records, nil
}

func (a *AppIntegrator) readLock(app builder.AppDescription) (*gem.Lockfile, error) {
	data, err := os.ReadFile(filepath.Join(app.SourceDir, "Gemfile.lock"))
	if err != nil {
		return nil, fmt.Errorf("bundler: read Gemfile.lock: %w", err)
	}
	lock, err := gem.ParseGemfileLock(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// slotKey derives the level-prefix slot key from a locked version,
// falling back to the raw version string if it doesn't parse as a gem
// version (a defensively tolerant path; Gemfile.lock versions are
// expected to always parse).
func slotKey(version string, level int) string {
	v, err := pkgversion.ParseGemVersion(version)
	if err != nil {
		return version
	}
	return v.Limit(level).String()
}

func osPackageName(gemName, key string) string {
	return fmt.Sprintf("ruby-%s-%s", gemName, key)
}

func defaultDistribution(app builder.AppDescription) string {
	cfg := app.PackagerConfig["bundler"]
	if d, ok := cfg["distribution"].(string); ok && d != "" {
		return d
	}
	return "unstable"
}

func firstMissingErr(first, next error) error {
	if first != nil {
		return first
	}
	return next
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
