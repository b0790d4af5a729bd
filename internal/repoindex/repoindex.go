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

// Package repoindex renders the APT repository metadata (per-ecosystem
// Packages stanzas and the distribution's Release file) from the
// catalog's finished revisions. The index is plain text, built the same
// way builder/tree.go renders debian/control: direct formatting rather
// than a control-file encoding library, since nothing else in this repo
// exercises one.
package repoindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/debler/debler/internal/catalog"
)

// Index is the set of rendered files for one publish pass, keyed by
// path relative to the repository root (e.g. "dists/unstable/Release").
type Index struct {
	Files map[string][]byte
}

// Generate walks every package registered under packagerName, takes each
// slot's latest version and that version's latest finished revision in
// distribution (a slot whose latest version has none there is left
// out), and renders one Packages file plus the distribution's Release
// file referencing it.
func Generate(ctx context.Context, store *catalog.Store, packagerName, distribution string) (Index, error) {
	packager, err := store.GetPackager(ctx, packagerName)
	if err != nil {
		return Index{}, fmt.Errorf("repoindex: %w", err)
	}
	dist, err := store.RegisterDistribution(ctx, distribution)
	if err != nil {
		return Index{}, fmt.Errorf("repoindex: %w", err)
	}

	packages, err := store.ListPackages(ctx, packager.ID)
	if err != nil {
		return Index{}, fmt.Errorf("repoindex: %w", err)
	}

	var stanzas []string
	for _, pkg := range packages {
		for _, slot := range pkg.Slots {
			version, err := store.LatestVersion(ctx, slot.ID)
			if err != nil {
				continue
			}
			revisions, err := finishedRevisions(ctx, store, version.ID, dist.ID)
			if err != nil {
				return Index{}, err
			}
			if len(revisions) == 0 {
				continue
			}
			stanzas = append(stanzas, renderStanza(slot, version, revisions[len(revisions)-1]))
		}
	}
	sort.Strings(stanzas)

	packagesFile := strings.Join(stanzas, "\n")
	packagesPath := fmt.Sprintf("dists/%s/%s/binary-amd64/Packages", distribution, packagerName)

	release := renderRelease(distribution, map[string][]byte{packagesPath: []byte(packagesFile)})
	releasePath := fmt.Sprintf("dists/%s/Release", distribution)

	return Index{Files: map[string][]byte{
		packagesPath: []byte(packagesFile),
		releasePath:  release,
	}}, nil
}

func finishedRevisions(ctx context.Context, store *catalog.Store, versionID, distributionID int64) ([]catalog.Revision, error) {
	all, err := store.ListRevisions(ctx, catalog.SelectAll, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("repoindex: list revisions: %w", err)
	}
	var out []catalog.Revision
	for _, r := range all {
		if r.VersionID == versionID && r.DistributionID == distributionID && r.Result == catalog.ResultFinished {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RevisionVersion < out[j].RevisionVersion })
	return out, nil
}

func renderStanza(slot catalog.Slot, version catalog.Version, revision catalog.Revision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", slot.OSPackageName)
	fmt.Fprintf(&b, "Version: %s-%d\n", version.Version, revision.RevisionVersion)
	fmt.Fprintf(&b, "Architecture: amd64\n")
	return b.String()
}

func renderRelease(distribution string, files map[string][]byte) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Suite: %s\n", distribution)
	fmt.Fprintf(&b, "Codename: %s\n", distribution)
	fmt.Fprintf(&b, "Date: %s\n", nowRFC1123())
	b.WriteString("SHA256:\n")

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sum := sha256.Sum256(files[name])
		fmt.Fprintf(&b, " %s %d %s\n", hex.EncodeToString(sum[:]), len(files[name]), name)
	}
	return []byte(b.String())
}

func nowRFC1123() string {
	return time.Now().UTC().Format(time.RFC1123)
}
