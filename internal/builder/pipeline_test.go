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

package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/debler/debler/internal/catalog"
)

type fakePackager struct {
	sourceDir string
}

func (f *fakePackager) FetchSource(ctx context.Context, data catalog.BuildData, cacheDir string) (string, error) {
	return f.sourceDir, nil
}

func (f *fakePackager) ParseMetadata(ctx context.Context, sourceDir string) (map[string]any, error) {
	return map[string]any{"name": "widget"}, nil
}

func (f *fakePackager) Generate(ctx context.Context, data catalog.BuildData, metadata map[string]any, buildRoot string) ([]Record, error) {
	return []Record{
		SourceControl(map[string]string{"Source": data.Slot.OSPackageName, "Maintainer": "ops@acme.example"}),
		Package(data.Slot.OSPackageName, "all", "ruby", "widget for "+metadata["name"].(string)),
		FastBuild(true),
	}, nil
}

// testBuildData schedules a real revision in store so
// Pipeline.changelogRecords has something to stitch into
// debian/changelog.
func testBuildData(t *testing.T, store *catalog.Store) catalog.BuildData {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	packager, err := store.RegisterPackager(ctx, "bundler", nil)
	if err != nil {
		t.Fatalf("RegisterPackager: %v", err)
	}
	pkg, err := store.RegisterPackage(ctx, packager.ID, "widget", nil)
	if err != nil {
		t.Fatalf("RegisterPackage: %v", err)
	}
	slot, err := store.RegisterSlot(ctx, pkg.ID, "1", "ruby3.2-widget", nil)
	if err != nil {
		t.Fatalf("RegisterSlot: %v", err)
	}
	version, err := store.RegisterVersion(ctx, slot.ID, "1.0.0", nil, now)
	if err != nil {
		t.Fatalf("RegisterVersion: %v", err)
	}
	dist, err := store.RegisterDistribution(ctx, "unstable")
	if err != nil {
		t.Fatalf("RegisterDistribution: %v", err)
	}
	rev, err := store.ScheduleBuild(ctx, version.ID, dist.ID, "initial release", now)
	if err != nil {
		t.Fatalf("ScheduleBuild: %v", err)
	}

	return catalog.BuildData{
		Revision:     rev,
		Package:      pkg,
		Slot:         slot,
		Version:      version,
		Distribution: dist,
	}
}

func TestGenDebianPackageAndOrigTarRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "widget.gemspec"), []byte("# gemspec\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	store, err := catalog.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	work := t.TempDir()
	p := &Pipeline{WorkRoot: work, CacheDir: t.TempDir(), Store: store, Maintainer: "ops <ops@acme.example>", Packager: &fakePackager{sourceDir: src}}
	data := testBuildData(t, store)

	workDir, buildRoot, err := p.createDirs(data)
	if err != nil {
		t.Fatalf("createDirs: %v", err)
	}

	metadata, err := p.Packager.ParseMetadata(context.Background(), src)
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}

	origTarPath, err := p.buildOrigTar(workDir, data, src)
	if err != nil {
		t.Fatalf("buildOrigTar: %v", err)
	}
	if _, err := os.Stat(origTarPath); err != nil {
		t.Fatalf("orig tar not written: %v", err)
	}

	if err := p.extractOrigTar(origTarPath, buildRoot); err != nil {
		t.Fatalf("extractOrigTar: %v", err)
	}
	if _, err := os.Stat(filepath.Join(buildRoot, "widget.gemspec")); err != nil {
		t.Fatalf("extracted gemspec missing: %v", err)
	}

	fastBuild, err := p.genDebianPackage(context.Background(), data, metadata, buildRoot, p.logger())
	if err != nil {
		t.Fatalf("genDebianPackage: %v", err)
	}
	if !fastBuild {
		t.Error("expected fast build to be possible")
	}
	control, err := os.ReadFile(filepath.Join(buildRoot, "debian", "control"))
	if err != nil {
		t.Fatalf("debian/control missing: %v", err)
	}
	if len(control) == 0 {
		t.Error("debian/control is empty")
	}

	changelog, err := os.ReadFile(filepath.Join(buildRoot, "debian", "changelog"))
	if err != nil {
		t.Fatalf("debian/changelog missing: %v", err)
	}
	if !strings.HasPrefix(string(changelog), "ruby3.2-widget (1.0.0-1) unstable; urgency=low") {
		t.Errorf("debian/changelog = %q", changelog)
	}

	if _, err := os.ReadFile(filepath.Join(buildRoot, "debian", "copyright")); err != nil {
		t.Fatalf("debian/copyright missing: %v", err)
	}
	format, err := os.ReadFile(filepath.Join(buildRoot, "debian", "source", "format"))
	if err != nil {
		t.Fatalf("debian/source/format missing: %v", err)
	}
	if string(format) != "3.0 (quilt)\n" {
		t.Errorf("debian/source/format = %q", format)
	}
}

func TestGitSource(t *testing.T) {
	if _, _, ok := gitSource(map[string]any{}); ok {
		t.Error("empty config should not report a git source")
	}
	repo, rev, ok := gitSource(map[string]any{"git_repository": "acme/widget", "git_revision": "main"})
	if !ok || repo != "acme/widget" || rev != "main" {
		t.Errorf("gitSource = %q, %q, %v", repo, rev, ok)
	}
}

func TestHasScheme(t *testing.T) {
	cases := map[string]bool{
		"https://github.com/acme/widget.git": true,
		"acme/widget":                        false,
		"git@github.com:acme/widget.git":     true,
	}
	for in, want := range cases {
		if got := hasScheme(in); got != want {
			t.Errorf("hasScheme(%q) = %v, want %v", in, got, want)
		}
	}
}
