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

// Package bundler implements the RubyGems/Bundler packager: fetching and
// repackaging a single gem as a Debian source+binary package, plus the
// bundler-family app-integrator used by the app builder (see app.go).
package bundler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/debler/debler/internal/builder"
	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/constraint"
	"github.com/debler/debler/internal/ecosystem/gem"
	"github.com/debler/debler/internal/pkgversion"
	"github.com/debler/debler/internal/registry"
)

// Integrator implements builder.Packager for a single gem slot: it
// downloads the .gem from rubygems.org, parses its gzipped YAML
// metadata, and emits the source+binary control records for one OS
// package, including one extra binary package per configured native
// interpreter variant when the gem ships C extensions.
type Integrator struct {
	Gems  *registry.RubyGemsClient
	Store *catalog.Store
}

// NewIntegrator builds an Integrator with a default RubyGems client.
func NewIntegrator(store *catalog.Store) *Integrator {
	return &Integrator{Gems: registry.NewRubyGemsClient(), Store: store}
}

func (i *Integrator) Name() string { return "bundler" }

// FetchSource downloads the gem archive into cacheDir (content-addressed
// by name+version so a rebuild of the same Revision skips the network)
// and unpacks its data.tar.gz payload into a fresh source directory.
func (i *Integrator) FetchSource(ctx context.Context, data catalog.BuildData, cacheDir string) (string, error) {
	name, version := data.Package.Name, data.Version.Version

	gemPath := filepath.Join(cacheDir, "gems", fmt.Sprintf("%s-%s.gem", name, version))
	if _, err := os.Stat(gemPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(gemPath), 0o755); err != nil {
			return "", err
		}
		f, err := os.Create(gemPath)
		if err != nil {
			return "", err
		}
		if err := i.Gems.DownloadGem(ctx, name, version, f); err != nil {
			f.Close()
			os.Remove(gemPath)
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	sourceDir := filepath.Join(cacheDir, "src", name, version)
	if err := os.RemoveAll(sourceDir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.Open(gemPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := gem.ExtractData(f, sourceDir); err != nil {
		return "", fmt.Errorf("bundler: extract %s-%s.gem: %w", name, version, err)
	}
	return sourceDir, nil
}

// ParseMetadata re-opens the outer .gem archive cached by FetchSource
// and reads its metadata.gz member.
func (i *Integrator) ParseMetadata(ctx context.Context, sourceDir string) (map[string]any, error) {
	// sourceDir is cacheDir/src/<name>/<version>; the sibling gem archive
	// lives at cacheDir/gems/<name>-<version>.gem.
	name := filepath.Base(filepath.Dir(sourceDir))
	version := filepath.Base(sourceDir)
	cacheDir := filepath.Dir(filepath.Dir(filepath.Dir(sourceDir)))
	gemPath := filepath.Join(cacheDir, "gems", fmt.Sprintf("%s-%s.gem", name, version))

	f, err := os.Open(gemPath)
	if err != nil {
		return nil, fmt.Errorf("bundler: open %s for metadata: %w", gemPath, err)
	}
	defer f.Close()

	raw, err := gem.ReadMetadataGz(f)
	if err != nil {
		return nil, err
	}
	md, err := gem.ParseMetadata(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return map[string]any{"gem": md}, nil
}

// Generate emits the control stanzas for one gem: a source package
// declaring the required Ruby build-deps, one architecture-independent
// main binary package with the gem's lib/ installed under
// /usr/lib/ruby/vendor_ruby, and one additional native-extension binary
// package per configured interpreter when the gem declares extensions
// and the package isn't configured with native=false.
func (i *Integrator) Generate(ctx context.Context, data catalog.BuildData, metadata map[string]any, buildRoot string) ([]builder.Record, error) {
	md, _ := metadata["gem"].(*gem.Metadata)
	if md == nil {
		return nil, fmt.Errorf("bundler: metadata missing gem.Metadata")
	}

	osName := data.Slot.OSPackageName
	var records []builder.Record

	records = append(records,
		builder.SourceControl(map[string]string{
			"Source":            osName,
			"Section":           "ruby",
			"Priority":          "optional",
			"Standards-Version": "4.6.2",
			"Description":       md.Summary,
		}),
		builder.BuildDependency("debhelper-compat (= 13)"),
		builder.BuildDependency("ruby"),
	)

	rubies := stringConfigList(data.Packager.Config, "rubies")
	native := nativeFlag(data.Package.Config)
	skipExts := stringSet(data.Package.Config, "skip_exts")

	section := "ruby"
	records = append(records, builder.Package(osName, "all", section, md.Description))
	records = append(records, builder.InstallInto(osName, "lib/*", "/usr/lib/ruby/vendor_ruby"))

	for _, dep := range md.Dependencies {
		if dep.Kind != "runtime" {
			continue
		}
		clause, err := i.compileDependency(ctx, dep.Name, dep.Constraint)
		if err != nil {
			// A dependency this system doesn't track yet: depend on the
			// bare gem name so dpkg still records intent, and let
			// scheduleDepBuilds (driven from the app side) catch up.
			records = append(records, builder.Dependency(osName, dep.Name))
			continue
		}
		records = append(records, builder.Dependency(osName, clause))
	}

	if len(md.Extensions) > 0 && native != false {
		for _, ruby := range rubies {
			if skipExts[ruby] {
				continue
			}
			extPkg := fmt.Sprintf("%s-ext-%s", osName, sanitizeRubyTag(ruby))
			records = append(records, builder.Package(extPkg, "any", section,
				fmt.Sprintf("%s (native extension, ruby %s)", md.Summary, ruby)))
			records = append(records, builder.RuleOverride("build"))
			for _, ext := range md.Extensions {
				dir := fmt.Sprintf("build-%s", sanitizeRubyTag(ruby))
				records = append(records, builder.RuleAction("build",
					fmt.Sprintf("ruby%s %s --with-cflags=\"$(CFLAGS)\" -o %s", ruby, ext, dir)))
				records = append(records, builder.RuleAction("build", fmt.Sprintf("$(MAKE) -C %s", dir)))
			}
			soSubdir := stringConfig(data.Package.Config, "so_subdir")
			if soSubdir == "" {
				soSubdir = fmt.Sprintf("/usr/lib/%s/ruby/vendor_ruby", "x86_64-linux-gnu")
			}
			records = append(records, builder.InstallInto(extPkg, fmt.Sprintf("build-%s/*.so", sanitizeRubyTag(ruby)), soSubdir))
		}
	}

	records = append(records, builder.FastBuild(len(md.Extensions) == 0))
	return records, nil
}

// compileDependency resolves a gem dependency name to its tracked slots
// in the catalog (if any) and compiles the constraint string into an OS
// dependency clause via the shared constraint engine.
func (i *Integrator) compileDependency(ctx context.Context, name, constraintStr string) (string, error) {
	if i.Store == nil {
		return "", fmt.Errorf("bundler: no catalog store configured")
	}
	packager, err := i.Store.GetPackager(ctx, "bundler")
	if err != nil {
		return "", err
	}
	pkg, err := i.Store.PackageInfo(ctx, packager.ID, name)
	if err != nil {
		return "", err
	}
	if len(pkg.Slots) == 0 {
		return "", fmt.Errorf("bundler: %s has no tracked slots", name)
	}

	slots := make([]constraint.Slot[pkgversion.GemVersion], 0, len(pkg.Slots))
	for _, sl := range pkg.Slots {
		minV, err := pkgversion.ParseGemVersion(sl.Key)
		if err != nil {
			continue
		}
		// Appending ".0" makes PessimisticUpperBound bump the key's own
		// last component: "1.4" -> "1.5", "1" -> "2".
		keyV, err := pkgversion.ParseGemVersion(sl.Key + ".0")
		if err != nil {
			continue
		}
		slots = append(slots, constraint.Slot[pkgversion.GemVersion]{
			Key:           sl.Key,
			OSPackageName: sl.OSPackageName,
			Min:           minV,
			Max:           keyV.PessimisticUpperBound(),
		})
	}

	c, err := constraint.ParseGemConstraintString(constraintStr)
	if err != nil {
		return "", err
	}
	compiled := constraint.CompileToSlots(c, slots)
	if len(compiled) == 0 {
		return "", fmt.Errorf("bundler: %s: constraint %q matches no tracked slot", name, constraintStr)
	}
	return constraint.RenderDependency(compiled), nil
}

func nativeFlag(cfg map[string]any) interface{} {
	switch v := cfg["native"].(type) {
	case bool:
		return v
	default:
		return nil
	}
}

func stringConfig(cfg map[string]any, key string) string {
	v, _ := cfg[key].(string)
	return v
}

func stringConfigList(cfg map[string]any, key string) []string {
	raw, _ := cfg[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringSet(cfg map[string]any, key string) map[string]bool {
	out := map[string]bool{}
	for _, s := range stringConfigList(cfg, key) {
		out[s] = true
	}
	return out
}

func sanitizeRubyTag(ruby string) string {
	return strings.ReplaceAll(ruby, ".", "")
}
