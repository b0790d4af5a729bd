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
	"time"

	"github.com/spf13/cobra"

	"github.com/debler/debler/internal/core"
)

var (
	rebuildPackager     string
	rebuildAll          bool
	rebuildExplicitIDs []string
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild packages with an outdated gem format, or explicit revisions",
	Long: `rebuild either schedules a rebuild for every package whose stored
gem_format metadata no longer matches the configured value (--all), or
reschedules a specific set of revision ids in their original
distribution (--explicit-ids).`,
	Example: `  debler rebuild --all --packager bundler
  debler rebuild --explicit-ids 41,42`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)

	rebuildCmd.Flags().StringVar(&rebuildPackager, "packager", "", "packager ecosystem, required with --all")
	rebuildCmd.Flags().BoolVar(&rebuildAll, "all", false, "rebuild every slot with an outdated gem_format")
	rebuildCmd.Flags().StringSliceVar(&rebuildExplicitIDs, "explicit-ids", nil, "comma-separated revision ids to rebuild")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := setupStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	switch {
	case rebuildAll:
		if rebuildPackager == "" {
			return fmt.Errorf("rebuild --all requires --packager")
		}
		scheduled, err := core.RebuildOutdatedFormat(ctx, store, cfg, rebuildPackager, time.Now())
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		fmt.Printf("Scheduled %d rebuild(s) for outdated gem_format\n", len(scheduled))
	case len(rebuildExplicitIDs) > 0:
		ids, err := parseIDs(rebuildExplicitIDs)
		if err != nil {
			return err
		}
		scheduled, err := core.RebuildExplicit(ctx, store, ids, time.Now())
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		fmt.Printf("Scheduled %d rebuild(s)\n", len(scheduled))
	default:
		return fmt.Errorf("rebuild requires either --all or --explicit-ids")
	}
	return nil
}
