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

// Package core holds the business logic behind every debler command.
// Cobra command files in cmd/debler/cmd parse flags and call exactly one
// function here; nothing in cmd/debler touches catalog, builder, or
// scheduler types directly.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/debler/debler/internal/builder"
	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/config"
	"github.com/debler/debler/internal/packagers/bundler"
	"github.com/debler/debler/internal/packagers/gomod"
	"github.com/debler/debler/internal/packagers/yarn"
	"github.com/debler/debler/internal/registry"
	"github.com/debler/debler/internal/scheduler"
)

// OpenStore opens the catalog database named in cfg.Database, applying
// the schema if it does not exist yet.
func OpenStore(ctx context.Context, cfg *config.Config) (*catalog.Store, error) {
	return catalog.Open(ctx, cfg.Database)
}

// PipelineFor builds a builder.Pipeline wired for one ecosystem
// ("bundler" or "yarn"). gomod apps use AppBuilder instead; there is no single-package Pipeline for them since Go
// modules are only ever built as part of an application.
func PipelineFor(ecosystem string, store *catalog.Store, cfg *config.Config, logger *slog.Logger) (*builder.Pipeline, error) {
	var packager builder.Packager
	var cacheDir, uploadURL string

	switch ecosystem {
	case "bundler":
		packager = bundler.NewIntegrator(store)
		cacheDir = cfg.GemDir
		uploadURL = cfg.PackageUploads.Gem
	case "yarn":
		packager = yarn.NewIntegrator(store)
		cacheDir = cfg.NPMDir
		uploadURL = cfg.PackageUploads.NPM
	default:
		return nil, fmt.Errorf("core: unknown packager %q", ecosystem)
	}

	var uploader builder.Uploader
	if uploadURL != "" {
		uploader = registry.NewPackageUploadClient(uploadURL)
	}

	return &builder.Pipeline{
		WorkRoot:   os.TempDir(),
		CacheDir:   cacheDir,
		Store:      store,
		Maintainer: cfg.Maintainer,
		Packager:   packager,
		Uploader:   uploader,
		GitHub:     registry.NewGitHubClient(os.Getenv("GITHUB_TOKEN")),
		Logger:     logger,
	}, nil
}

// AppBuilder returns a builder.AppBuilder composing every known
// AppIntegrator; callers filter by AppDescription.PackagerConfig, so
// passing the full set here is harmless for apps that only use some of
// them.
func AppBuilder(store *catalog.Store) *builder.AppBuilder {
	return &builder.AppBuilder{
		Integrators: []builder.AppIntegrator{
			&bundler.AppIntegrator{Store: store},
			&yarn.AppIntegrator{Store: store},
			&gomod.AppIntegrator{},
		},
	}
}

// RunBuild drives the scheduler over store using pipeline.Build as the
// BuildFunc, selecting revisions by mode unless explicit revision ids
// are given.
func RunBuild(ctx context.Context, store *catalog.Store, pipeline *builder.Pipeline, mode catalog.SelectionMode, explicitIDs []int64, opts scheduler.Options, now time.Time) (scheduler.Summary, error) {
	if len(explicitIDs) > 0 {
		return scheduler.RunExplicit(ctx, store, explicitIDs, opts, now, pipeline.Build)
	}
	return scheduler.Run(ctx, store, mode, opts, now, pipeline.Build)
}

// ConfigurePackage mutates a package's stored configuration and
// schedules a rebuild of its every slot's latest version with the given
// changelog message, implementing the `gem`/`pkg` config command.
func ConfigurePackage(ctx context.Context, store *catalog.Store, packagerName, packageName string, patch map[string]any, changelog string, now time.Time) ([]catalog.Revision, error) {
	packager, err := store.GetPackager(ctx, packagerName)
	if err != nil {
		return nil, fmt.Errorf("core: configure %s: %w", packageName, err)
	}
	pkg, err := store.PackageInfo(ctx, packager.ID, packageName)
	if err != nil {
		return nil, fmt.Errorf("core: configure %s: %w", packageName, err)
	}
	if err := store.SetPackageConfig(ctx, pkg.ID, patch); err != nil {
		return nil, fmt.Errorf("core: configure %s: %w", packageName, err)
	}

	var revisions []catalog.Revision
	for _, slot := range pkg.Slots {
		version, err := store.LatestVersion(ctx, slot.ID)
		if err != nil {
			continue
		}
		rev, err := scheduleForEveryDistribution(ctx, store, version.ID, changelog, now)
		if err != nil {
			return revisions, err
		}
		revisions = append(revisions, rev...)
	}
	return revisions, nil
}

func scheduleForEveryDistribution(ctx context.Context, store *catalog.Store, versionID int64, changelog string, now time.Time) ([]catalog.Revision, error) {
	// A version can have prior revisions across several distributions;
	// rebuild each one the version has already been scheduled into.
	all, err := store.ListRevisions(ctx, catalog.SelectAll, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	seen := make(map[int64]bool)
	var out []catalog.Revision
	for _, r := range all {
		if r.VersionID != versionID || seen[r.DistributionID] {
			continue
		}
		seen[r.DistributionID] = true
		rev, err := store.ScheduleRebuild(ctx, versionID, r.DistributionID, changelog, now)
		if err != nil {
			return out, fmt.Errorf("core: schedule rebuild: %w", err)
		}
		out = append(out, rev)
	}
	return out, nil
}

// BuildApp runs an AppDescription through the AppBuilder: it schedules
// dependency builds for every active ecosystem, generates and writes the
// debian/ tree, and reports whether a fast (no dependency changes)
// rebuild was possible.
func BuildApp(ctx context.Context, store *catalog.Store, app builder.AppDescription, destRoot string, now time.Time) (fastBuild bool, err error) {
	ab := AppBuilder(store)
	if err := ab.ScheduleDepBuilds(ctx, store, app, now); err != nil {
		return false, fmt.Errorf("core: schedule app deps: %w", err)
	}
	tree, fast, err := ab.Build(ctx, app)
	if err != nil {
		return false, fmt.Errorf("core: build app: %w", err)
	}
	if err := builder.WriteTree(destRoot, tree); err != nil {
		return false, fmt.Errorf("core: write app tree: %w", err)
	}
	return fast, nil
}

// outdatedSlot pairs a slot with the version a format-upgrade rebuild
// should target.
type outdatedSlot struct {
	slot    catalog.Slot
	version catalog.Version
}

// scanConcurrency bounds the fan-out used to scan a packager's slot
// tree; mirrors the teacher's Engine.Scan bounded worker-pool shape,
// rebuilt on errgroup since the catalog is read concurrently here,
// never written.
const scanConcurrency = 8

// RebuildOutdatedFormat schedules a rebuild for every slot in packagerName
// whose stored gem_format metadata does not match cfg.GemFormat. The
// scan across a packager's whole slot tree (LatestVersion per slot) runs
// concurrently since it is read-only; the resulting rebuilds are
// scheduled sequentially since sqlite serializes writes anyway.
func RebuildOutdatedFormat(ctx context.Context, store *catalog.Store, cfg *config.Config, packagerName string, now time.Time) ([]catalog.Revision, error) {
	packager, err := store.GetPackager(ctx, packagerName)
	if err != nil {
		return nil, fmt.Errorf("core: rebuild: %w", err)
	}
	packages, err := store.ListPackages(ctx, packager.ID)
	if err != nil {
		return nil, fmt.Errorf("core: rebuild: %w", err)
	}

	dist, err := store.RegisterDistribution(ctx, cfg.Distribution)
	if err != nil {
		return nil, fmt.Errorf("core: rebuild: %w", err)
	}

	var slots []catalog.Slot
	for _, pkg := range packages {
		for _, slot := range pkg.Slots {
			if !formatUpToDate(slot, cfg.GemFormat) {
				slots = append(slots, slot)
			}
		}
	}

	found := make([]*outdatedSlot, len(slots))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(scanConcurrency)
	for i, slot := range slots {
		i, slot := i, slot
		group.Go(func() error {
			version, err := store.LatestVersion(gctx, slot.ID)
			if err != nil {
				return nil // no version yet; nothing to rebuild
			}
			found[i] = &outdatedSlot{slot: slot, version: version}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("core: rebuild: scan slots: %w", err)
	}

	var out []catalog.Revision
	for _, item := range found {
		if item == nil {
			continue
		}
		rev, err := store.ScheduleRebuild(ctx, item.version.ID, dist.ID, "Rebuild for gem format upgrade", now)
		if err != nil {
			return out, fmt.Errorf("core: rebuild: %w", err)
		}
		if err := store.SetSlotMetadata(ctx, item.slot.ID, map[string]any{"gem_format": []any{cfg.GemFormat[0], cfg.GemFormat[1]}}); err != nil {
			return out, fmt.Errorf("core: rebuild: %w", err)
		}
		out = append(out, rev)
	}
	return out, nil
}

func formatUpToDate(slot catalog.Slot, target [2]int) bool {
	raw, ok := slot.Metadata["gem_format"]
	if !ok {
		return false
	}
	pair, ok := raw.([]any)
	if !ok || len(pair) != 2 {
		return false
	}
	major, ok1 := toInt(pair[0])
	minor, ok2 := toInt(pair[1])
	return ok1 && ok2 && major == target[0] && minor == target[1]
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// RebuildExplicit schedules a rebuild of the given revision ids' versions
// in their original distribution.
func RebuildExplicit(ctx context.Context, store *catalog.Store, ids []int64, now time.Time) ([]catalog.Revision, error) {
	var out []catalog.Revision
	for _, id := range ids {
		data, err := store.BuildData(ctx, id)
		if err != nil {
			return out, fmt.Errorf("core: rebuild revision %d: %w", id, err)
		}
		rev, err := store.ScheduleRebuild(ctx, data.Version.ID, data.Distribution.ID, "Manual rebuild", now)
		if err != nil {
			return out, fmt.Errorf("core: rebuild revision %d: %w", id, err)
		}
		out = append(out, rev)
	}
	return out, nil
}
