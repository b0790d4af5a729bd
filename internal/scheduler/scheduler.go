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

// Package scheduler drives the dequeue/claim/build/finalize loop over
// the catalog: it decides which revisions to attempt, claims them so
// concurrent workers don't race the same one, runs the caller-supplied
// builder, and records the terminal result.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/debler/debler/internal/catalog"
)

// BuildFail distinguishes a packaging-toolchain failure (dpkg-buildpackage,
// chroot builder, signer) from an ordinary programming error, so the loop
// can report which kind took down a revision without conflating
// infrastructure trouble with a bug in a generator.
type BuildFail struct {
	Cause error
}

func (e *BuildFail) Error() string { return fmt.Sprintf("scheduler: build failed: %v", e.Cause) }
func (e *BuildFail) Unwrap() error { return e.Cause }

// Selection chooses which revisions Run considers, mirroring the
// catalog's selection modes plus a scheduler-only explicit list of
// revision IDs. Canceling is chosen through Options.Cancel, not here.
type Selection struct {
	Mode     catalog.SelectionMode
	Explicit []int64 // revision IDs, in order; only meaningful when Mode is unused
}

// Options configures one scheduler run.
type Options struct {
	HostIdentity string
	FailFast     bool
	Incognito    bool // skip claim/finalize; build runs without catalog effects
	Cancel       bool // mark selected revisions canceled without building
	StaleAfter   time.Duration
	Logger       *slog.Logger
}

// BuildFunc executes one revision's build pipeline.
type BuildFunc func(ctx context.Context, data catalog.BuildData) error

// Summary is the loop's aggregate report.
type Summary struct {
	Successful int
	Failed     int
	Canceled   int
}

// ExitNonZero reports whether the run should cause the process to exit
// non-zero, per the error-handling design's "any build failed" rule.
func (s Summary) ExitNonZero() bool { return s.Failed > 0 }

func (s Summary) String() string {
	return fmt.Sprintf("Built %d packages: %d successful, %d failed", s.Successful+s.Failed, s.Successful, s.Failed)
}

// RunExplicit builds exactly the given revision IDs, in order, without
// re-querying the catalog between them.
func RunExplicit(ctx context.Context, store *catalog.Store, ids []int64, opts Options, now time.Time, build BuildFunc) (Summary, error) {
	var sum Summary
	for _, id := range ids {
		rev, err := store.BuildData(ctx, id)
		if err != nil {
			return sum, fmt.Errorf("scheduler: load revision %d: %w", id, err)
		}
		outcome, err := attempt(ctx, store, rev, opts, now, build)
		if err != nil {
			return sum, err
		}
		switch outcome {
		case attemptSkippedClaimed:
			continue
		case attemptCanceled:
			sum.Canceled++
		case attemptSucceeded:
			sum.Successful++
		case attemptFailed:
			sum.Failed++
			if opts.FailFast {
				return sum, nil
			}
		}
	}
	return sum, nil
}

// Run streams the Pending or Failed selection: after each revision is
// claimed, built, and finalized, the pending set is re-queried, so
// revisions scheduled mid-run (e.g. by a concurrent webhook) are picked
// up without restarting the process, and a revision another worker just
// claimed is skipped rather than double-built.
func Run(ctx context.Context, store *catalog.Store, mode catalog.SelectionMode, opts Options, now time.Time, build BuildFunc) (Summary, error) {
	if mode == catalog.SelectAll {
		return Summary{}, errors.New("scheduler: All is a listing mode; use store.ListRevisions directly")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sum Summary
	staleBefore := now.Add(-opts.StaleAfter)
	// Incognito and cancel modes never change a revision's claimed/result
	// state, so a re-query would hand back the same head of the pending
	// list forever; track what this run has already attempted so the
	// streaming dequeue still terminates.
	attempted := map[int64]bool{}
	for {
		pending, err := store.ListRevisions(ctx, mode, staleBefore)
		if err != nil {
			return sum, fmt.Errorf("scheduler: list revisions: %w", err)
		}
		var next *catalog.Revision
		for i := range pending {
			if !attempted[pending[i].ID] {
				next = &pending[i]
				break
			}
		}
		if next == nil {
			break
		}
		attempted[next.ID] = true

		data, err := store.BuildData(ctx, next.ID)
		if err != nil {
			return sum, fmt.Errorf("scheduler: load revision %d: %w", next.ID, err)
		}

		outcome, err := attempt(ctx, store, data, opts, now, build)
		if err != nil {
			return sum, err
		}
		switch outcome {
		case attemptSkippedClaimed:
			logger.Debug("revision claimed by another worker, skipping", "revision_id", next.ID)
		case attemptCanceled:
			sum.Canceled++
			logger.Info("revision canceled", "revision_id", next.ID)
		case attemptSucceeded:
			sum.Successful++
			logger.Info("build finished", "revision_id", next.ID)
		case attemptFailed:
			sum.Failed++
			logger.Error("build failed", "revision_id", next.ID)
			if opts.FailFast {
				return sum, nil
			}
		}
	}
	return sum, nil
}

// attemptOutcome distinguishes why attempt stopped pursuing a revision:
// a benign claim-race loss must not count against the run's failure
// tally the way an actual build failure does.
type attemptOutcome int

const (
	attemptFailed attemptOutcome = iota
	attemptSucceeded
	attemptCanceled
	attemptSkippedClaimed
)

// attempt claims (unless incognito or canceling), builds, and finalizes
// a single revision.
func attempt(ctx context.Context, store *catalog.Store, data catalog.BuildData, opts Options, now time.Time, build BuildFunc) (attemptOutcome, error) {
	if opts.Cancel {
		if !opts.Incognito {
			if err := store.FinalizeBuild(ctx, data.Revision.ID, opts.HostIdentity, catalog.ResultCanceled, now); err != nil {
				return attemptFailed, fmt.Errorf("scheduler: finalize canceled revision %d: %w", data.Revision.ID, err)
			}
		}
		return attemptCanceled, nil
	}

	if !opts.Incognito {
		staleBefore := now.Add(-opts.StaleAfter)
		claimed, err := store.ClaimBuild(ctx, data.Revision.ID, opts.HostIdentity, now, staleBefore)
		if err != nil {
			if errors.Is(err, catalog.ErrAlreadyClaimed) {
				return attemptSkippedClaimed, nil
			}
			return attemptFailed, fmt.Errorf("scheduler: claim revision %d: %w", data.Revision.ID, err)
		}
		data.Revision = claimed
	}

	buildErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("scheduler: panic building revision %d: %v", data.Revision.ID, r)
			}
		}()
		return build(ctx, data)
	}()

	if opts.Incognito {
		if buildErr != nil {
			return attemptFailed, nil
		}
		return attemptSucceeded, nil
	}

	result := catalog.ResultFinished
	if buildErr != nil {
		result = catalog.ResultFailed
	}
	if err := store.FinalizeBuild(ctx, data.Revision.ID, opts.HostIdentity, result, now); err != nil {
		return attemptFailed, fmt.Errorf("scheduler: finalize revision %d: %w", data.Revision.ID, err)
	}
	if buildErr != nil {
		return attemptFailed, nil
	}
	return attemptSucceeded, nil
}
