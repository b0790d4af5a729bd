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
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/registry"
	"github.com/debler/debler/internal/rewrite"
)

// Packager is the per-ecosystem collaborator the pipeline calls into for
// the three steps that are genuinely ecosystem-specific: resolving and
// fetching the upstream artifact, reading its native manifest, and
// emitting the debian/ tree's Records.
type Packager interface {
	// FetchSource resolves data's Version to an upstream source tree,
	// using cacheDir as a content-addressed cache keyed by package name
	// and version, and returns the path to the (already unpacked)
	// upstream source directory.
	FetchSource(ctx context.Context, data catalog.BuildData, cacheDir string) (sourceDir string, err error)
	// ParseMetadata reads the packager-native manifest out of the
	// fetched source tree (a gemspec, a package.json, a go.mod).
	ParseMetadata(ctx context.Context, sourceDir string) (map[string]any, error)
	// Generate yields the Records describing this build's debian/ tree.
	Generate(ctx context.Context, data catalog.BuildData, metadata map[string]any, buildRoot string) ([]Record, error)
}

// Uploader pushes the finished source and binary changes files to the
// configured package-upload endpoint.
type Uploader interface {
	Upload(ctx context.Context, changesFiles []string) error
}

// Pipeline runs the nine-step build for one Revision. A Pipeline value
// is reused across builds; WorkRoot and CacheDir are shared, content-
// addressed working directories keyed per (package, version).
type Pipeline struct {
	WorkRoot string
	CacheDir string

	Store      *catalog.Store
	Maintainer string

	Packager Packager
	Uploader Uploader
	GitHub   *registry.GitHubClient

	Logger *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Build runs the full createDirs -> upload pipeline for one revision.
// It satisfies scheduler.BuildFunc.
func (p *Pipeline) Build(ctx context.Context, data catalog.BuildData) error {
	log := p.logger().With(
		"package", data.Package.Name,
		"slot", data.Slot.OSPackageName,
		"version", data.Version.Version,
		"distribution", data.Distribution.Name,
	)

	workDir, buildRoot, err := p.createDirs(data)
	if err != nil {
		return err
	}

	sourceDir, err := p.fetchSource(ctx, data, log)
	if err != nil {
		return err
	}

	metadata, err := p.Packager.ParseMetadata(ctx, sourceDir)
	if err != nil {
		return fmt.Errorf("builder: parseMetadata: %w", err)
	}

	origTarPath, err := p.buildOrigTar(workDir, data, sourceDir)
	if err != nil {
		return err
	}

	if err := p.extractOrigTar(origTarPath, buildRoot); err != nil {
		return err
	}

	fastBuild, err := p.genDebianPackage(ctx, data, metadata, buildRoot, log)
	if err != nil {
		return err
	}

	if err := p.createSourcePackage(ctx, workDir, buildRoot, origTarPath); err != nil {
		return err
	}

	changesFiles, err := p.run(ctx, workDir, buildRoot, fastBuild, log)
	if err != nil {
		return err
	}

	return p.upload(ctx, changesFiles)
}

// createDirs ensures the per-package working tree exists: workDir holds
// the orig tarball and the resulting .changes/.dsc files, buildRoot is
// the extracted "<name>-<version>" tree dpkg-source expects.
func (p *Pipeline) createDirs(data catalog.BuildData) (workDir, buildRoot string, err error) {
	workDir = filepath.Join(p.WorkRoot, data.Slot.OSPackageName, data.Version.Version)
	buildRoot = filepath.Join(workDir, fmt.Sprintf("%s-%s", data.Slot.OSPackageName, data.Version.Version))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", "", fmt.Errorf("builder: createDirs %s: %w", workDir, err)
	}
	return workDir, buildRoot, nil
}

// fetchSource downloads the upstream archive into the content-addressed
// cache, or for a git-sourced Version resolves the configured ref to a
// commit SHA and clones+resets to it, before delegating to the
// packager to actually materialize a source directory.
func (p *Pipeline) fetchSource(ctx context.Context, data catalog.BuildData, log *slog.Logger) (string, error) {
	if repo, revision, ok := gitSource(data.Version.Config); ok {
		owner, repoName, err := registry.ParseGitHubURL(repo)
		if err != nil {
			return "", fmt.Errorf("builder: fetchSource: %w", err)
		}
		sha := revision
		if p.GitHub != nil {
			resolved, err := p.GitHub.ResolveRef(ctx, owner, repoName, revision)
			if err == nil {
				sha = resolved
			} else {
				log.Warn("could not resolve git ref via GitHub API, using it literally", "ref", revision, "error", err)
			}
		}
		return p.cloneAndReset(ctx, data, repo, sha)
	}

	sourceDir, err := p.Packager.FetchSource(ctx, data, p.CacheDir)
	if err != nil {
		return "", fmt.Errorf("builder: fetchSource: %w", err)
	}
	return sourceDir, nil
}

// gitSource reads a Version's git_repository/git_revision config keys,
// the §3 per-version escape hatch for packages pinned to a VCS ref
// instead of a registry-published release.
func gitSource(config map[string]any) (repo, revision string, ok bool) {
	r, hasRepo := config["git_repository"].(string)
	rev, hasRev := config["git_revision"].(string)
	if !hasRepo || !hasRev || r == "" || rev == "" {
		return "", "", false
	}
	return r, rev, true
}

func (p *Pipeline) cloneAndReset(ctx context.Context, data catalog.BuildData, repo, sha string) (string, error) {
	dest := filepath.Join(p.CacheDir, "git", data.Slot.OSPackageName, sha)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("builder: fetchSource: mkdir %s: %w", filepath.Dir(dest), err)
	}

	url := repo
	if !hasScheme(url) {
		url = "https://github.com/" + repo + ".git"
	}
	if err := runCommand(ctx, "", "git", "clone", url, dest); err != nil {
		return "", fmt.Errorf("builder: fetchSource: clone %s: %w", repo, err)
	}
	if err := runCommand(ctx, dest, "git", "reset", "--hard", sha); err != nil {
		return "", fmt.Errorf("builder: fetchSource: reset to %s: %w", sha, err)
	}
	return dest, nil
}

func hasScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ':':
			return i > 0
		case '/':
			return false
		}
	}
	return false
}

// buildOrigTar produces the deterministic "<name>_<version>.orig.tar.xz"
// dpkg-source expects.
func (p *Pipeline) buildOrigTar(workDir string, data catalog.BuildData, sourceDir string) (string, error) {
	path := filepath.Join(workDir, fmt.Sprintf("%s_%s.orig.tar.xz", data.Slot.OSPackageName, data.Version.Version))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("builder: buildOrigTar: create %s: %w", path, err)
	}
	defer f.Close()

	if err := BuildOrigTar(f, sourceDir); err != nil {
		return "", fmt.Errorf("builder: buildOrigTar: %w", err)
	}
	return path, nil
}

func (p *Pipeline) extractOrigTar(origTarPath, buildRoot string) error {
	f, err := os.Open(origTarPath)
	if err != nil {
		return fmt.Errorf("builder: extractOrigTar: open %s: %w", origTarPath, err)
	}
	defer f.Close()

	if err := os.MkdirAll(buildRoot, 0o755); err != nil {
		return fmt.Errorf("builder: extractOrigTar: mkdir %s: %w", buildRoot, err)
	}
	if err := ExtractOrigTar(f, buildRoot); err != nil {
		return fmt.Errorf("builder: extractOrigTar: %w", err)
	}
	return nil
}

// genDebianPackage asks the packager to describe the debian/ tree via
// the emitter protocol, folds the Records into a Collector, diffs the
// rendered result against whatever debian/control previously existed in
// buildRoot, logs the diff at debug level, and writes the tree to disk.
// It returns whether the fast build path is possible.
func (p *Pipeline) genDebianPackage(ctx context.Context, data catalog.BuildData, metadata map[string]any, buildRoot string, log *slog.Logger) (bool, error) {
	records, err := p.Packager.Generate(ctx, data, metadata, buildRoot)
	if err != nil {
		return false, fmt.Errorf("builder: genDebianPackage: %w", err)
	}

	changelogRecords, err := p.changelogRecords(ctx, data)
	if err != nil {
		return false, fmt.Errorf("builder: genDebianPackage: %w", err)
	}
	records = append(records, changelogRecords...)

	c := NewCollector()
	for _, r := range records {
		if err := c.Process(r); err != nil {
			return false, fmt.Errorf("builder: genDebianPackage: %w", err)
		}
	}
	tree := c.Render()

	previous, err := ReadTree(buildRoot)
	if err != nil {
		return false, fmt.Errorf("builder: genDebianPackage: %w", err)
	}
	if old, ok := previous.Files["debian/control"]; ok {
		if diff, err := rewrite.GenerateUnifiedDiff("debian/control", string(old), string(tree.Files["debian/control"])); err == nil && diff != "" {
			additions, deletions := rewrite.CountChanges(diff)
			log.Debug("debian/control changed", "diff", diff, "additions", additions, "deletions", deletions)
		}
	}

	if err := WriteTree(buildRoot, tree); err != nil {
		return false, fmt.Errorf("builder: genDebianPackage: %w", err)
	}
	return c.FastBuildPossible(), nil
}

// changelogRecords assembles debian/changelog, debian/copyright, and
// debian/source/format as DebianContent records. These are the same
// for every packager, so the pipeline generates them itself rather than
// asking each Packager.Generate to repeat the logic.
func (p *Pipeline) changelogRecords(ctx context.Context, data catalog.BuildData) ([]Record, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("pipeline has no Store: cannot assemble debian/changelog")
	}
	revisions, err := p.Store.RevisionsThrough(ctx, data.Revision.ID)
	if err != nil {
		return nil, fmt.Errorf("changelog: %w", err)
	}
	changelog := RenderChangelog(data.Slot.OSPackageName, data.Version.Version, p.Maintainer, data.Distribution.Name, revisions)
	copyright := RenderCopyright(data.Package.Name, data.Revision.ScheduledAt.Year())

	return []Record{
		DebianContent("changelog", changelog, 0o644),
		DebianContent("copyright", copyright, 0o644),
		DebianContent("source/format", []byte(sourceFormatQuilt), 0o644),
	}, nil
}

func (p *Pipeline) createSourcePackage(ctx context.Context, workDir, buildRoot, origTarPath string) error {
	if err := runCommand(ctx, workDir, "dpkg-source", "-b", buildRoot); err != nil {
		return fmt.Errorf("builder: createSourcePackage: %w", err)
	}
	return nil
}

// run executes the fast (native dpkg build on the host) or hermetic
// (chroot builder) path depending on the FastBuild signal aggregated
// from the packager's generators, then returns the produced .changes
// files for upload.
func (p *Pipeline) run(ctx context.Context, workDir, buildRoot string, fastBuild bool, log *slog.Logger) ([]string, error) {
	if fastBuild {
		log.Info("running fast build", "build_root", buildRoot)
		if err := runCommand(ctx, buildRoot, "dpkg-buildpackage", "-us", "-uc", "-b"); err != nil {
			return nil, fmt.Errorf("builder: run (fast): %w", err)
		}
	} else {
		log.Info("running hermetic build", "build_root", buildRoot)
		if err := runCommand(ctx, workDir, "sbuild", "--dist=unstable", buildRoot); err != nil {
			return nil, fmt.Errorf("builder: run (hermetic): %w", err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(workDir, "*.changes"))
	if err != nil {
		return nil, fmt.Errorf("builder: run: glob changes files: %w", err)
	}
	return matches, nil
}

func (p *Pipeline) upload(ctx context.Context, changesFiles []string) error {
	if p.Uploader == nil || len(changesFiles) == 0 {
		return nil
	}
	if err := p.Uploader.Upload(ctx, changesFiles); err != nil {
		return fmt.Errorf("builder: upload: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}
