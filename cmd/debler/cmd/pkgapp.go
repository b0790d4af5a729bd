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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/debler/debler/internal/builder"
	"github.com/debler/debler/internal/core"
	"github.com/debler/debler/internal/secureio"
)

const exitAppBuildFailed = 5

var (
	pkgappDescription string
	pkgappDestRoot     string
	pkgappBuild        bool
)

var pkgappCmd = &cobra.Command{
	Use:   "pkgapp",
	Short: "Process an application description and optionally build it",
	Long: `pkgapp reads an application description (name, version, bundled
files, and per-ecosystem packager config), schedules a build for every
dependency it names, and, unless --build=false is given, generates and
writes the application's debian/ tree.`,
	RunE: runPkgApp,
}

func init() {
	rootCmd.AddCommand(pkgappCmd)

	pkgappCmd.Flags().StringVar(&pkgappDescription, "description", "", "path to the app description JSON file")
	pkgappCmd.Flags().StringVar(&pkgappDestRoot, "dest", ".", "directory to write the generated debian/ tree into")
	pkgappCmd.Flags().BoolVar(&pkgappBuild, "build", true, "build the app after scheduling dependency builds")
	_ = pkgappCmd.MarkFlagRequired("description")
}

func runPkgApp(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := setupStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	app, err := loadAppDescription(pkgappDescription)
	if err != nil {
		return err
	}

	if !pkgappBuild {
		ab := core.AppBuilder(store)
		if err := ab.ScheduleDepBuilds(ctx, store, app, time.Now()); err != nil {
			return fmt.Errorf("pkgapp: schedule dep builds: %w", err)
		}
		fmt.Printf("Scheduled dependency builds for %s %s\n", app.Name, app.Version)
		return nil
	}

	fast, err := core.BuildApp(ctx, store, app, pkgappDestRoot, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "pkgapp: build failed: %v\n", err)
		os.Exit(exitAppBuildFailed)
	}

	fmt.Printf("Built %s %s (fast build: %t)\n", app.Name, app.Version, fast)
	return nil
}

func loadAppDescription(path string) (builder.AppDescription, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return builder.AppDescription{}, fmt.Errorf("pkgapp: resolve %s: %w", path, err)
	}
	data, err := secureio.ReadFile(abs)
	if err != nil {
		return builder.AppDescription{}, fmt.Errorf("pkgapp: read %s: %w", path, err)
	}
	var app builder.AppDescription
	if err := json.Unmarshal(data, &app); err != nil {
		return builder.AppDescription{}, fmt.Errorf("pkgapp: parse %s: %w", path, err)
	}
	return app, nil
}
