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

package yarn

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/debler/debler/internal/builder"
	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/ecosystem/npm"
	"github.com/debler/debler/internal/pkgversion"
)

// AppIntegrator composes the yarn/npm packager's rules over a first
// party application that ships a yarn.lock: each locked package becomes
// a Dependency on that package's already-built OS package.
type AppIntegrator struct {
	Store *catalog.Store
}

func (a *AppIntegrator) Name() string { return "yarn" }

func (a *AppIntegrator) ScheduleDepBuilds(ctx context.Context, store *catalog.Store, app builder.AppDescription, now time.Time) error {
	locked, err := a.readLock(app)
	if err != nil {
		return err
	}
	packager, err := store.RegisterPackager(ctx, "yarn", nil)
	if err != nil {
		return err
	}
	dist, err := store.RegisterDistribution(ctx, defaultDistribution(app))
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	var firstErr error
	for _, locked := range locked {
		if seen[locked.Name+"@"+locked.Version] {
			continue
		}
		seen[locked.Name+"@"+locked.Version] = true

		level := 1
		key := slotKeyFor(locked.Version, level)
		_, lookupErr := store.PackageInfo(ctx, packager.ID, locked.Name)
		wasTracked := lookupErr == nil

		pkg, err := store.RegisterPackage(ctx, packager.ID, locked.Name, map[string]any{"level": level})
		if err != nil {
			firstErr = firstMissingErr(firstErr, err)
			continue
		}
		slot, err := store.RegisterSlot(ctx, pkg.ID, key, osPackageName(locked.Name, key), nil)
		if err != nil {
			firstErr = firstMissingErr(firstErr, err)
			continue
		}
		if _, err := store.GetVersion(ctx, slot.ID, locked.Version); err == nil {
			continue
		}
		v, err := store.RegisterVersion(ctx, slot.ID, locked.Version, nil, now)
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

func (a *AppIntegrator) Generate(ctx context.Context, app builder.AppDescription) ([]builder.Record, error) {
	locked, err := a.readLock(app)
	if err != nil {
		return nil, err
	}

	pkgName := app.Name
	var records []builder.Record
	records = append(records,
		builder.SourceControl(map[string]string{
			"Source":            pkgName,
			"Section":           "javascript",
			"Priority":          "optional",
			"Standards-Version": "4.6.2",
			"Description":       app.Description,
		}),
		builder.BuildDependency("debhelper-compat (= 13)"),
		builder.Package(pkgName, "all", "javascript", app.Description),
	)

	seen := map[string]bool{}
	for _, pkg := range locked {
		if seen[pkg.Name] {
			continue
		}
		seen[pkg.Name] = true
		key := slotKeyFor(pkg.Version, 1)
		records = append(records, builder.Dependency(pkgName, fmt.Sprintf("%s (>= %s)", osPackageName(pkg.Name, key), pkg.Version)))
	}

	for _, dir := range app.Directories {
		records = append(records, builder.InstallInto(pkgName, dir+"/*", "/usr/share/"+pkgName+"/"+dir))
	}
	for _, file := range app.Files {
		records = append(records, builder.Install(pkgName, file, "/usr/share/"+pkgName+"/"+filepath.Base(file)))
	}

	records = append(records, builder.FastBuild(true))
	return records, nil
}

func (a *AppIntegrator) readLock(app builder.AppDescription) ([]npm.LockedPackage, error) {
	f, err := os.Open(filepath.Join(app.SourceDir, "yarn.lock"))
	if err != nil {
		return nil, fmt.Errorf("yarn: read yarn.lock: %w", err)
	}
	defer f.Close()
	byDescriptor, err := npm.ParseYarnLock(f)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]npm.LockedPackage, 0, len(byDescriptor))
	for _, pkg := range byDescriptor {
		key := pkg.Name + "@" + pkg.Version
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, pkg)
	}
	return out, nil
}

func defaultDistribution(app builder.AppDescription) string {
	cfg := app.PackagerConfig["yarn"]
	if d, ok := cfg["distribution"].(string); ok && d != "" {
		return d
	}
	return "unstable"
}

func slotKeyFor(version string, level int) string {
	v, err := pkgversion.ParseSemverVersion(version)
	if err != nil {
		return version
	}
	n := v.NumComponents()
	if level > n {
		level = n
	}
	parts := make([]string, level)
	for i := 0; i < level; i++ {
		parts[i] = fmt.Sprintf("%d", v.Component(i))
	}
	return joinDots(parts)
}

func joinDots(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

func osPackageName(name, key string) string {
	return fmt.Sprintf("node-%s-%s", sanitizeName(name), key)
}

func firstMissingErr(first, next error) error {
	if first != nil {
		return first
	}
	return next
}

func sanitizeName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' || c == '@' {
			out = append(out, '-')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
