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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/core"
	"github.com/debler/debler/internal/scheduler"
)

var (
	buildEcosystem   string
	buildRetryFailed bool
	buildLimit       int
	buildIncognito   bool
	buildExplicitIDs []string
	buildCancel      bool
	buildListOnly    bool
	buildFailFast    bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Drive the build scheduler over pending (or explicit) revisions",
	Long: `build claims and runs every pending revision for one packager,
or a specific set of revision ids. Exits 1 if any revision failed.`,
	Example: `  # Build everything pending for bundler
  debler build --packager bundler

  # Retry failed revisions only
  debler build --packager bundler --retry

  # Build specific revisions
  debler build --packager bundler --explicit-ids 12,13

  # Preview what would be built without claiming anything
  debler build --packager bundler --list-only`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildEcosystem, "packager", "", "packager ecosystem to build (bundler, yarn)")
	buildCmd.Flags().BoolVar(&buildRetryFailed, "retry", false, "select failed revisions instead of pending ones")
	buildCmd.Flags().IntVar(&buildLimit, "limit", 0, "stop after this many revisions (0 = unlimited)")
	buildCmd.Flags().BoolVar(&buildIncognito, "incognito", false, "build without claiming or recording results")
	buildCmd.Flags().StringSliceVar(&buildExplicitIDs, "explicit-ids", nil, "comma-separated revision ids to build, instead of selecting")
	buildCmd.Flags().BoolVar(&buildCancel, "cancel", false, "mark selected revisions canceled instead of building them")
	buildCmd.Flags().BoolVar(&buildListOnly, "list-only", false, "print the selected revisions and exit without building")
	buildCmd.Flags().BoolVar(&buildFailFast, "fail-fast", false, "stop at the first failed revision")
	_ = buildCmd.MarkFlagRequired("packager")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := setupStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := setupPipeline(buildEcosystem, store)
	if err != nil {
		return err
	}

	ids, err := parseIDs(buildExplicitIDs)
	if err != nil {
		return err
	}

	mode := catalog.SelectPending
	if buildRetryFailed {
		mode = catalog.SelectFailed
	}

	if buildLimit > 0 && len(ids) == 0 {
		selected, err := store.ListRevisions(ctx, mode, time.Now().Add(-time.Hour))
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}
		if len(selected) > buildLimit {
			selected = selected[:buildLimit]
		}
		for _, r := range selected {
			ids = append(ids, r.ID)
		}
	}

	if buildListOnly {
		return listSelectedRevisions(ctx, store, mode, ids)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: GetLogLevel()}))
	opts := scheduler.Options{
		HostIdentity: hostIdentity(),
		FailFast:     buildFailFast,
		Incognito:    buildIncognito,
		Cancel:       buildCancel,
		StaleAfter:   time.Hour,
		Logger:       logger,
	}

	summary, err := core.RunBuild(ctx, store, pipeline, mode, ids, opts, time.Now())
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	fmt.Printf("Built %d packages: %d successful, %d failed\n",
		summary.Successful+summary.Failed, summary.Successful, summary.Failed)

	if summary.ExitNonZero() {
		os.Exit(1)
	}
	return nil
}

func listSelectedRevisions(ctx context.Context, store *catalog.Store, mode catalog.SelectionMode, ids []int64) error {
	if len(ids) > 0 {
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}
	revisions, err := store.ListRevisions(ctx, mode, time.Now().Add(-time.Hour))
	if err != nil {
		return fmt.Errorf("build --list-only: %w", err)
	}
	for _, r := range revisions {
		fmt.Printf("%d\tversion=%d\tdistribution=%d\n", r.ID, r.VersionID, r.DistributionID)
	}
	return nil
}

func hostIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		return "debler"
	}
	return host
}
