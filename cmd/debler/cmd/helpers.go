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

	"github.com/debler/debler/internal/builder"
	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/core"
)

// setupStore opens the catalog named in the loaded config.
func setupStore(ctx context.Context) (*catalog.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no config loaded")
	}
	return core.OpenStore(ctx, cfg)
}

// setupPipeline builds a builder.Pipeline for one ecosystem, logging to
// the process's default slog handler at the level set by --quiet/--verbose.
func setupPipeline(ecosystem string, store *catalog.Store) (*builder.Pipeline, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: GetLogLevel()}))
	return core.PipelineFor(ecosystem, store, cfg, logger)
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		var id int64
		if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid revision id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
