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

// Package guards implements named pre-flight checks gating the publish
// command. There is no PR/auto-merge concept in this domain, so unlike
// the guard protocol this package is modeled on, a guard here runs
// against a build catalog and signing environment rather than a GitHub
// pull request.
package guards

import (
	"context"
	"fmt"
	"sync"
)

// Environment carries whatever a guard needs to evaluate a publish
// attempt: the catalog, the distribution being published, and the
// resolved signing/upload configuration.
type Environment struct {
	Store          any // *catalog.Store; typed any to avoid an import cycle with catalog's guard-unaware callers
	Distribution   string
	KeyID          string
	KeyringResolved bool
	UploadURL      string
}

// Guard is one named pre-flight check. Check returns false, nil for an
// ordinary failed check (reported to the operator) and a non-nil error
// only when the check itself could not run.
type Guard interface {
	Name() string
	Description() string
	Check(ctx context.Context, env *Environment) (bool, error)
}

// Registry holds the set of guards known to a process.
type Registry struct {
	mu     sync.RWMutex
	guards map[string]Guard
}

// Register adds a guard, panicking on a duplicate name since that
// indicates two init() functions collided on the same identifier.
func (r *Registry) Register(g Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.guards == nil {
		r.guards = make(map[string]Guard)
	}
	if _, exists := r.guards[g.Name()]; exists {
		panic(fmt.Sprintf("guards: duplicate guard registered: %s", g.Name()))
	}
	r.guards[g.Name()] = g
}

// Get returns the guard registered under name, if any.
func (r *Registry) Get(name string) (Guard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guards[name]
	return g, ok
}

// List returns every registered guard's name.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.guards))
	for name := range r.guards {
		names = append(names, name)
	}
	return names
}

// CheckGuard runs the named guard, returning an error if no guard is
// registered under that name.
func (r *Registry) CheckGuard(ctx context.Context, name string, env *Environment) (bool, error) {
	g, ok := r.Get(name)
	if !ok {
		return false, fmt.Errorf("guards: unknown guard %q", name)
	}
	return g.Check(ctx, env)
}

var global = &Registry{guards: make(map[string]Guard)}

// Register adds g to the process-wide guard registry; built-in guards
// call this from their package's init().
func Register(g Guard) { global.Register(g) }

// Get looks up a guard in the process-wide registry.
func Get(name string) (Guard, bool) { return global.Get(name) }

// List returns every guard name in the process-wide registry.
func List() []string { return global.List() }

// CheckGuard runs a named guard from the process-wide registry.
func CheckGuard(ctx context.Context, name string, env *Environment) (bool, error) {
	return global.CheckGuard(ctx, name, env)
}
