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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/debler/debler/internal/core"
)

var (
	pkgPackager  string
	pkgSet       []string
	pkgChangelog string
)

// pkgCmd implements the `gem`/`pkg` config command. The name is "pkg"
// here since it applies to any ecosystem, not just gems; an alias keeps
// the gem-specific spelling operators are used to.
var pkgCmd = &cobra.Command{
	Use:     "pkg <name>",
	Aliases: []string{"gem"},
	Short:   "Mutate a package's stored configuration and schedule a rebuild",
	Args:    cobra.ExactArgs(1),
	Example: `  debler pkg nokogiri --packager bundler --set buildgem=true --changelog "Mark as build dependency"`,
	RunE:    runPkgConfig,
}

func init() {
	rootCmd.AddCommand(pkgCmd)

	pkgCmd.Flags().StringVar(&pkgPackager, "packager", "", "packager the package belongs to")
	pkgCmd.Flags().StringSliceVar(&pkgSet, "set", nil, "key=value config overrides, repeatable")
	pkgCmd.Flags().StringVar(&pkgChangelog, "changelog", "Configuration change", "changelog message recorded on the scheduled rebuild")
	_ = pkgCmd.MarkFlagRequired("packager")
}

func runPkgConfig(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := setupStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	patch, err := parseConfigPatch(pkgSet)
	if err != nil {
		return err
	}

	revisions, err := core.ConfigurePackage(ctx, store, pkgPackager, args[0], patch, pkgChangelog, time.Now())
	if err != nil {
		return fmt.Errorf("pkg config: %w", err)
	}

	fmt.Printf("Scheduled %d rebuild(s) for %s\n", len(revisions), args[0])
	return nil
}

func parseConfigPatch(assignments []string) (map[string]any, error) {
	patch := make(map[string]any, len(assignments))
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", a)
		}
		patch[key] = coerceConfigValue(value)
	}
	return patch, nil
}

func coerceConfigValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	default:
		return raw
	}
}
