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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/debler/debler/internal/policy/guards"
)

func TestNoPendingFailedBuildsGuard_Name(t *testing.T) {
	g := &NoPendingFailedBuildsGuard{}
	if got := g.Name(); got != "no-pending-failed-builds" {
		t.Errorf("Name() = %q, want %q", got, "no-pending-failed-builds")
	}
}

func TestNoPendingFailedBuildsGuard_NoStore(t *testing.T) {
	g := &NoPendingFailedBuildsGuard{}
	_, err := g.Check(context.Background(), &guards.Environment{Distribution: "unstable"})
	if err == nil {
		t.Fatal("Check() with no catalog store should error")
	}
}

func TestSigningKeyPresentGuard(t *testing.T) {
	g := &SigningKeyPresentGuard{}
	if got := g.Name(); got != "signing-key-present" {
		t.Errorf("Name() = %q, want %q", got, "signing-key-present")
	}

	ok, err := g.Check(context.Background(), &guards.Environment{KeyringResolved: true})
	if err != nil || !ok {
		t.Errorf("Check() = %v, %v, want true, nil", ok, err)
	}

	ok, err = g.Check(context.Background(), &guards.Environment{KeyringResolved: false})
	if err != nil || ok {
		t.Errorf("Check() = %v, %v, want false, nil", ok, err)
	}
}

func TestRegistryReachableGuard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := &RegistryReachableGuard{Client: srv.Client()}
	ok, err := g.Check(context.Background(), &guards.Environment{UploadURL: srv.URL})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !ok {
		t.Error("Check() = false, want true for a reachable 200 endpoint")
	}
}

func TestRegistryReachableGuard_NoURL(t *testing.T) {
	g := &RegistryReachableGuard{}
	_, err := g.Check(context.Background(), &guards.Environment{})
	if err == nil {
		t.Fatal("Check() with no upload URL should error")
	}
}
