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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/debler/debler/internal/catalog"
)

// setupRevisions gives each test its own named shared-cache in-memory
// database; an unnamed "file::memory:?cache=shared" is shared across
// every connection in the process under shared-cache mode, which would
// leak registered packages and slots between test functions.
func setupRevisions(t *testing.T, n int) (*catalog.Store, time.Time) {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := catalog.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	packager, _ := s.RegisterPackager(ctx, "bundler", nil)
	pkg, _ := s.RegisterPackage(ctx, packager.ID, "rails", nil)
	slot, _ := s.RegisterSlot(ctx, pkg.ID, "7.0", "rails-7.0", nil)
	dist, _ := s.RegisterDistribution(ctx, "bookworm")
	for i := 0; i < n; i++ {
		version, err := s.RegisterVersion(ctx, slot.ID, versionLabel(i), nil, now)
		if err != nil {
			t.Fatalf("RegisterVersion: %v", err)
		}
		if _, err := s.ScheduleBuild(ctx, version.ID, dist.ID, "new release", now); err != nil {
			t.Fatalf("ScheduleBuild: %v", err)
		}
	}
	return s, now
}

func versionLabel(i int) string {
	return string(rune('a' + i))
}

func TestRunProcessesAllPending(t *testing.T) {
	ctx := context.Background()
	store, now := setupRevisions(t, 3)

	var built []int64
	sum, err := Run(ctx, store, catalog.SelectPending, Options{HostIdentity: "host-a", StaleAfter: time.Hour}, now,
		func(ctx context.Context, data catalog.BuildData) error {
			built = append(built, data.Revision.ID)
			return nil
		})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Successful != 3 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(built) != 3 {
		t.Fatalf("built %d revisions, want 3", len(built))
	}

	remaining, err := store.ListRevisions(ctx, catalog.SelectPending, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListRevisions: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected no pending revisions left, got %d", len(remaining))
	}
}

func TestRunFailFastStopsAfterFirstFailure(t *testing.T) {
	ctx := context.Background()
	store, now := setupRevisions(t, 3)

	attempts := 0
	sum, err := Run(ctx, store, catalog.SelectPending, Options{HostIdentity: "host-a", StaleAfter: time.Hour, FailFast: true}, now,
		func(ctx context.Context, data catalog.BuildData) error {
			attempts++
			return &BuildFail{Cause: errors.New("dpkg-buildpackage exited 1")}
		})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("fail-fast should stop after the first failure, got %d attempts", attempts)
	}
	if sum.Failed != 1 || sum.Successful != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if !sum.ExitNonZero() {
		t.Error("a failed build should cause a non-zero exit")
	}
}

func TestRunIncognitoLeavesCatalogUntouched(t *testing.T) {
	ctx := context.Background()
	store, now := setupRevisions(t, 1)

	sum, err := Run(ctx, store, catalog.SelectPending, Options{HostIdentity: "host-a", StaleAfter: time.Hour, Incognito: true}, now,
		func(ctx context.Context, data catalog.BuildData) error { return nil })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	_ = sum

	revisions, err := store.ListRevisions(ctx, catalog.SelectAll, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListRevisions: %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("expected exactly one revision, got %d", len(revisions))
	}
	if revisions[0].Result != catalog.ResultPending || revisions[0].Builder != "" {
		t.Errorf("incognito build should leave result and builder unset, got %+v", revisions[0])
	}
}

func TestRunExplicitSkipsAlreadyClaimedRevisionWithoutCountingItFailed(t *testing.T) {
	ctx := context.Background()
	store, now := setupRevisions(t, 1)

	revisions, err := store.ListRevisions(ctx, catalog.SelectPending, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListRevisions: %v", err)
	}
	if _, err := store.ClaimBuild(ctx, revisions[0].ID, "host-b", now, now.Add(-time.Hour)); err != nil {
		t.Fatalf("ClaimBuild: %v", err)
	}

	attempts := 0
	sum, err := RunExplicit(ctx, store, []int64{revisions[0].ID}, Options{HostIdentity: "host-a", StaleAfter: time.Hour}, now,
		func(ctx context.Context, data catalog.BuildData) error {
			attempts++
			return nil
		})
	if err != nil {
		t.Fatalf("RunExplicit: %v", err)
	}
	if attempts != 0 {
		t.Fatalf("a revision claimed by another worker should never reach build, got %d attempts", attempts)
	}
	if sum.Failed != 0 || sum.Successful != 0 {
		t.Errorf("a claim-race loss must not be reported as a failure, summary = %+v", sum)
	}
	if sum.ExitNonZero() {
		t.Error("a claim-race loss alone should not force a non-zero exit")
	}
}

func TestBuildFailUnwraps(t *testing.T) {
	cause := errors.New("signer unavailable")
	err := &BuildFail{Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("BuildFail should unwrap to its cause")
	}
}
