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

package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/debler/debler/internal/catalog"
	"github.com/debler/debler/internal/policy/guards"
)

// NoPendingFailedBuildsGuard blocks publish while the target
// distribution has any build stuck in the failed state.
type NoPendingFailedBuildsGuard struct{}

func init() {
	guards.Register(&NoPendingFailedBuildsGuard{})
}

func (g *NoPendingFailedBuildsGuard) Name() string { return "no-pending-failed-builds" }

func (g *NoPendingFailedBuildsGuard) Description() string {
	return "Blocks publish while any revision in the target distribution is in the failed state"
}

func (g *NoPendingFailedBuildsGuard) Check(ctx context.Context, env *guards.Environment) (bool, error) {
	store, ok := env.Store.(*catalog.Store)
	if !ok || store == nil {
		return false, fmt.Errorf("no-pending-failed-builds: no catalog store in environment")
	}

	failed, err := store.ListRevisions(ctx, catalog.SelectFailed, time.Now())
	if err != nil {
		return false, fmt.Errorf("no-pending-failed-builds: %w", err)
	}
	for _, rev := range failed {
		data, err := store.BuildData(ctx, rev.ID)
		if err != nil {
			continue
		}
		if data.Distribution.Name == env.Distribution {
			return false, nil
		}
	}
	return true, nil
}
