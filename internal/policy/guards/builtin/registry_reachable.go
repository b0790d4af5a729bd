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
	"net/http"
	"time"

	"github.com/debler/debler/internal/policy/guards"
)

// RegistryReachableGuard probes the configured package-upload endpoint
// with a cheap HEAD request before publish commits to signing and
// indexing an archive it may not be able to push.
type RegistryReachableGuard struct {
	Client *http.Client
}

func init() {
	guards.Register(&RegistryReachableGuard{})
}

func (g *RegistryReachableGuard) Name() string { return "registry-reachable" }

func (g *RegistryReachableGuard) Description() string {
	return "Probes the configured upload endpoint with HEAD before publish"
}

func (g *RegistryReachableGuard) Check(ctx context.Context, env *guards.Environment) (bool, error) {
	if env.UploadURL == "" {
		return false, fmt.Errorf("registry-reachable: no upload URL configured")
	}
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, env.UploadURL, nil)
	if err != nil {
		return false, fmt.Errorf("registry-reachable: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500, nil
}
