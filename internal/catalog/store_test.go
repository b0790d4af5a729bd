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

package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// openTestStore gives each test its own named shared-cache in-memory
// database: an unnamed "file::memory:?cache=shared" is shared across
// every connection in the process under shared-cache mode, which would
// leak state between test functions (and trip unique constraints on
// their shared rows). Naming the cache per test keeps the connection-
// pooling benefit of shared cache without the cross-test leakage.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterAndGetPackager(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	p, err := s.RegisterPackager(ctx, "bundler", map[string]any{"rubies": []any{"3.2"}})
	if err != nil {
		t.Fatalf("RegisterPackager: %v", err)
	}
	if p.Name != "bundler" || !p.Enabled {
		t.Fatalf("packager = %+v", p)
	}

	again, err := s.RegisterPackager(ctx, "bundler", map[string]any{"rubies": []any{"3.3"}})
	if err != nil {
		t.Fatalf("RegisterPackager (idempotent): %v", err)
	}
	if again.ID != p.ID {
		t.Errorf("re-registering should not create a new row")
	}
	if rubies, _ := again.Config["rubies"].([]any); len(rubies) != 1 || rubies[0] != "3.2" {
		t.Errorf("second call should not overwrite existing config, got %+v", again.Config)
	}
}

func TestSlotRevisionClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	packager, err := s.RegisterPackager(ctx, "bundler", nil)
	if err != nil {
		t.Fatalf("RegisterPackager: %v", err)
	}
	pkg, err := s.RegisterPackage(ctx, packager.ID, "rails", nil)
	if err != nil {
		t.Fatalf("RegisterPackage: %v", err)
	}
	slot, err := s.RegisterSlot(ctx, pkg.ID, "7.0", "rails-7.0", nil)
	if err != nil {
		t.Fatalf("RegisterSlot: %v", err)
	}
	version, err := s.RegisterVersion(ctx, slot.ID, "7.0.4", nil, now)
	if err != nil {
		t.Fatalf("RegisterVersion: %v", err)
	}
	dist, err := s.RegisterDistribution(ctx, "bookworm")
	if err != nil {
		t.Fatalf("RegisterDistribution: %v", err)
	}
	rev, err := s.ScheduleBuild(ctx, version.ID, dist.ID, "initial release", now)
	if err != nil {
		t.Fatalf("ScheduleBuild: %v", err)
	}
	if rev.RevisionVersion != 1 {
		t.Fatalf("first scheduled revision should be revision 1, got %d", rev.RevisionVersion)
	}

	staleBefore := now.Add(-time.Hour)
	claimed, err := s.ClaimBuild(ctx, rev.ID, "worker-a", now, staleBefore)
	if err != nil {
		t.Fatalf("ClaimBuild: %v", err)
	}
	if claimed.ClaimedBy != "worker-a" {
		t.Fatalf("claimed.ClaimedBy = %q", claimed.ClaimedBy)
	}

	if _, err := s.ClaimBuild(ctx, rev.ID, "worker-b", now, staleBefore); err == nil {
		t.Fatal("a second worker should not be able to claim an already-claimed fresh revision")
	}

	if err := s.FinalizeBuild(ctx, rev.ID, "worker-a", ResultFinished, now); err != nil {
		t.Fatalf("FinalizeBuild: %v", err)
	}

	pending, err := s.ListRevisions(ctx, SelectPending, staleBefore)
	if err != nil {
		t.Fatalf("ListRevisions: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("finalized revision should no longer be pending, got %d", len(pending))
	}

	rebuild, err := s.ScheduleRebuild(ctx, version.ID, dist.ID, "follow-up fix", now)
	if err != nil {
		t.Fatalf("ScheduleRebuild: %v", err)
	}
	if rebuild.RevisionVersion != 2 {
		t.Errorf("rebuild should be revision 2, got %d", rebuild.RevisionVersion)
	}

	entries, err := s.ChangelogEntries(ctx, rebuild.ID)
	if err != nil {
		t.Fatalf("ChangelogEntries: %v", err)
	}
	if len(entries) != 2 || entries[0] != "initial release" || entries[1] != "follow-up fix" {
		t.Errorf("changelog entries = %v, want ascending (oldest first)", entries)
	}

	if olderOnly, err := s.ChangelogEntries(ctx, rev.ID); err != nil {
		t.Fatalf("ChangelogEntries: %v", err)
	} else if len(olderOnly) != 1 || olderOnly[0] != "initial release" {
		t.Errorf("changelog entries for the original revision = %v, want only itself", olderOnly)
	}
}

func TestGetVersionDistinguishesNewFromExisting(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	packager, _ := s.RegisterPackager(ctx, "bundler", nil)
	pkg, _ := s.RegisterPackage(ctx, packager.ID, "puma", nil)
	slot, _ := s.RegisterSlot(ctx, pkg.ID, "6", "puma-6", nil)

	if _, err := s.GetVersion(ctx, slot.ID, "6.1.0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetVersion on an untracked version should return ErrNotFound, got %v", err)
	}

	registered, err := s.RegisterVersion(ctx, slot.ID, "6.1.0", nil, now)
	if err != nil {
		t.Fatalf("RegisterVersion: %v", err)
	}
	found, err := s.GetVersion(ctx, slot.ID, "6.1.0")
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if found.ID != registered.ID {
		t.Errorf("GetVersion returned a different row than RegisterVersion")
	}
}

func TestClaimByStaleWorkerSucceeds(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	packager, _ := s.RegisterPackager(ctx, "bundler", nil)
	pkg, _ := s.RegisterPackage(ctx, packager.ID, "rails", nil)
	slot, _ := s.RegisterSlot(ctx, pkg.ID, "7.0", "rails-7.0", nil)
	version, _ := s.RegisterVersion(ctx, slot.ID, "7.0.4", nil, now)
	dist, _ := s.RegisterDistribution(ctx, "bookworm")
	rev, err := s.ScheduleBuild(ctx, version.ID, dist.ID, "initial release", now)
	if err != nil {
		t.Fatalf("ScheduleBuild: %v", err)
	}

	freshCutoff := now.Add(-time.Hour)
	if _, err := s.ClaimBuild(ctx, rev.ID, "worker-a", now.Add(-2*time.Hour), freshCutoff); err != nil {
		t.Fatalf("initial claim: %v", err)
	}

	staleCutoff := now
	claimed, err := s.ClaimBuild(ctx, rev.ID, "worker-b", now, staleCutoff)
	if err != nil {
		t.Fatalf("a stale claim should be reclaimable: %v", err)
	}
	if claimed.ClaimedBy != "worker-b" {
		t.Errorf("ClaimedBy = %q, want worker-b", claimed.ClaimedBy)
	}
}

func TestSetPackageConfigMergesOverExisting(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	packager, _ := s.RegisterPackager(ctx, "bundler", nil)
	pkg, err := s.RegisterPackage(ctx, packager.ID, "nokogiri", map[string]any{"buildgem": false})
	if err != nil {
		t.Fatalf("RegisterPackage: %v", err)
	}

	if err := s.SetPackageConfig(ctx, pkg.ID, map[string]any{"buildgem": true}); err != nil {
		t.Fatalf("SetPackageConfig: %v", err)
	}

	// RegisterPackage is insert-if-absent, so it must not clobber the
	// update just made.
	again, err := s.RegisterPackage(ctx, packager.ID, "nokogiri", map[string]any{"buildgem": false})
	if err != nil {
		t.Fatalf("RegisterPackage (idempotent): %v", err)
	}
	if v, _ := again.Config["buildgem"].(bool); !v {
		t.Errorf("SetPackageConfig's update should stick, got config = %+v", again.Config)
	}
}

func TestListPackagesJoinsSlots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	packager, _ := s.RegisterPackager(ctx, "bundler", nil)
	pkg, _ := s.RegisterPackage(ctx, packager.ID, "rails", nil)
	if _, err := s.RegisterSlot(ctx, pkg.ID, "7.0", "rails-7.0", nil); err != nil {
		t.Fatalf("RegisterSlot: %v", err)
	}
	if _, err := s.RegisterSlot(ctx, pkg.ID, "7.1", "rails-7.1", nil); err != nil {
		t.Fatalf("RegisterSlot: %v", err)
	}

	packages, err := s.ListPackages(ctx, packager.ID)
	if err != nil {
		t.Fatalf("ListPackages: %v", err)
	}
	if len(packages) != 1 || len(packages[0].Slots) != 2 {
		t.Fatalf("ListPackages = %+v, want 1 package with 2 slots", packages)
	}
}

func TestListVersionsAndRevisionsForVersion(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	packager, _ := s.RegisterPackager(ctx, "bundler", nil)
	pkg, _ := s.RegisterPackage(ctx, packager.ID, "rails", nil)
	slot, _ := s.RegisterSlot(ctx, pkg.ID, "7.0", "rails-7.0", nil)
	v1, _ := s.RegisterVersion(ctx, slot.ID, "7.0.3", nil, now)
	v2, _ := s.RegisterVersion(ctx, slot.ID, "7.0.4", nil, now.Add(time.Hour))

	versions, err := s.ListVersions(ctx, slot.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 || versions[0].ID != v1.ID || versions[1].ID != v2.ID {
		t.Fatalf("ListVersions = %+v, want [%d, %d] oldest first", versions, v1.ID, v2.ID)
	}

	distBookworm, _ := s.RegisterDistribution(ctx, "bookworm")
	distTrixie, _ := s.RegisterDistribution(ctx, "trixie")
	if _, err := s.ScheduleBuild(ctx, v2.ID, distBookworm.ID, "initial", now); err != nil {
		t.Fatalf("ScheduleBuild: %v", err)
	}
	if _, err := s.ScheduleBuild(ctx, v2.ID, distTrixie.ID, "initial", now); err != nil {
		t.Fatalf("ScheduleBuild: %v", err)
	}

	revisions, err := s.ListRevisionsForVersion(ctx, v2.ID)
	if err != nil {
		t.Fatalf("ListRevisionsForVersion: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("ListRevisionsForVersion = %+v, want 2 revisions", revisions)
	}
}

func TestLatestVersionPicksMostRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	packager, _ := s.RegisterPackager(ctx, "bundler", nil)
	pkg, _ := s.RegisterPackage(ctx, packager.ID, "rails", nil)
	slot, _ := s.RegisterSlot(ctx, pkg.ID, "7.0", "rails-7.0", nil)
	if _, err := s.RegisterVersion(ctx, slot.ID, "7.0.3", nil, now); err != nil {
		t.Fatalf("RegisterVersion: %v", err)
	}
	latest, err := s.RegisterVersion(ctx, slot.ID, "7.0.4", nil, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("RegisterVersion: %v", err)
	}

	got, err := s.LatestVersion(ctx, slot.ID)
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if got.ID != latest.ID {
		t.Errorf("LatestVersion = %+v, want %+v", got, latest)
	}
}
