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

	"github.com/debler/debler/internal/policy/guards"
)

// SigningKeyPresentGuard wraps the config-load-time keyring resolution
// (internal/signing) as a publish-time guard, so a key that went
// missing between process start and publish is still caught.
type SigningKeyPresentGuard struct{}

func init() {
	guards.Register(&SigningKeyPresentGuard{})
}

func (g *SigningKeyPresentGuard) Name() string { return "signing-key-present" }

func (g *SigningKeyPresentGuard) Description() string {
	return "Requires the configured signing key to resolve in the local keyring"
}

func (g *SigningKeyPresentGuard) Check(ctx context.Context, env *guards.Environment) (bool, error) {
	return env.KeyringResolved, nil
}
