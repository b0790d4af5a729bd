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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/debler/debler/internal/catalog"
)

const infoScanConcurrency = 8

// slotSubtree is one slot's versions, each with its scheduled revisions.
type slotSubtree struct {
	slot     catalog.Slot
	versions []versionSubtree
}

type versionSubtree struct {
	version   catalog.Version
	revisions []catalog.Revision
}

var infoPackager string

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Print a package's full subtree: slots, versions, and revisions",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringVar(&infoPackager, "packager", "", "packager the package belongs to")
	_ = infoCmd.MarkFlagRequired("packager")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := setupStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	packager, err := store.GetPackager(ctx, infoPackager)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	pkg, err := store.PackageInfo(ctx, packager.ID, args[0])
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	subtrees := make([]slotSubtree, len(pkg.Slots))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(infoScanConcurrency)
	for i, slot := range pkg.Slots {
		i, slot := i, slot
		group.Go(func() error {
			tree, err := loadSlotSubtree(gctx, store, slot)
			if err != nil {
				return err
			}
			subtrees[i] = tree
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("info: %w", err)
	}

	fmt.Printf("%s/%s (config: %v)\n", infoPackager, pkg.Name, pkg.Config)
	for _, tree := range subtrees {
		fmt.Printf("  slot %s (os package: %s)\n", tree.slot.Key, tree.slot.OSPackageName)
		for _, v := range tree.versions {
			fmt.Printf("    version %s (populated: %t)\n", v.version.Version, v.version.Populated)
			for _, rev := range v.revisions {
				fmt.Printf("      revision %d rev=%d distribution=%d result=%s\n",
					rev.ID, rev.RevisionVersion, rev.DistributionID, rev.Result)
			}
		}
	}
	return nil
}

func loadSlotSubtree(ctx context.Context, store *catalog.Store, slot catalog.Slot) (slotSubtree, error) {
	versions, err := store.ListVersions(ctx, slot.ID)
	if err != nil {
		return slotSubtree{}, err
	}
	tree := slotSubtree{slot: slot, versions: make([]versionSubtree, len(versions))}
	for i, version := range versions {
		revisions, err := store.ListRevisionsForVersion(ctx, version.ID)
		if err != nil {
			return slotSubtree{}, err
		}
		tree.versions[i] = versionSubtree{version: version, revisions: revisions}
	}
	return tree, nil
}
