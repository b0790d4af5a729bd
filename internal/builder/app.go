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
	"errors"
	"fmt"
	"time"

	"github.com/debler/debler/internal/catalog"
)

// AppDescription is the input to the app builder: a first-party
// application's identity plus one configuration section per active
// packager family.
type AppDescription struct {
	Name        string
	Version     string
	Directories []string
	Files       []string
	Homepage    string
	Description string

	// PackagerConfig is keyed by packager name (e.g. "bundler", "gomod").
	PackagerConfig map[string]map[string]any

	// SourceDir is the already-fetched application checkout or unpack.
	SourceDir string
}

// AppIntegrator composes one ecosystem's packaging rules over an
// AppDescription. The base builder holds a slice of these and never
// branches on which one it is running.
type AppIntegrator interface {
	Name() string

	// ScheduleDepBuilds walks the app's locked dependencies and ensures
	// every needed slot+version has a scheduled build: a new release of
	// an already-tracked package schedules "Update to version used in
	// application"; an entirely new package is registered and scheduled
	// with "Import newly into debler".
	ScheduleDepBuilds(ctx context.Context, store *catalog.Store, app AppDescription, now time.Time) error

	// Generate yields the emitter records describing the app's own
	// package(s): dependency clauses on the already-built slots, load
	// paths, per-interpreter shims, launcher wrappers.
	Generate(ctx context.Context, app AppDescription) ([]Record, error)
}

// AppBuilder composes registered AppIntegrators over one AppDescription,
// the same way Pipeline composes a single Packager over one Version.
type AppBuilder struct {
	Integrators []AppIntegrator
}

// ScheduleDepBuilds runs every integrator's dependency-scheduling pass.
// An error from one integrator does not stop the others; all errors are
// joined so a broken feed for one ecosystem doesn't mask another's.
func (b *AppBuilder) ScheduleDepBuilds(ctx context.Context, store *catalog.Store, app AppDescription, now time.Time) error {
	var errs []error
	for _, integrator := range b.Integrators {
		if _, ok := app.PackagerConfig[integrator.Name()]; !ok {
			continue
		}
		if err := integrator.ScheduleDepBuilds(ctx, store, app, now); err != nil {
			errs = append(errs, fmt.Errorf("app builder: %s: %w", integrator.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Build fans every active integrator's records through one Collector and
// renders the resulting debian/ tree, exactly as Pipeline.genDebianPackage
// does for a single-packager build.
func (b *AppBuilder) Build(ctx context.Context, app AppDescription) (Tree, bool, error) {
	c := NewCollector()
	for _, integrator := range b.Integrators {
		if _, ok := app.PackagerConfig[integrator.Name()]; !ok {
			continue
		}
		records, err := integrator.Generate(ctx, app)
		if err != nil {
			return Tree{}, false, fmt.Errorf("app builder: %s: generate: %w", integrator.Name(), err)
		}
		for _, r := range records {
			if err := c.Process(r); err != nil {
				return Tree{}, false, fmt.Errorf("app builder: %s: %w", integrator.Name(), err)
			}
		}
	}
	return c.Render(), c.FastBuildPossible(), nil
}
