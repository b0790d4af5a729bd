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

// Package webhook implements the authenticated HTTP intake that turns an
// upstream release notification into a scheduled build Revision.
package webhook

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/debler/debler/internal/catalog"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Server serves the /debler/updatetrigger/{packager} endpoint.
type Server struct {
	Store *catalog.Store

	// Now returns the current time; overridable in tests.
	Now func() time.Time
	// HookTimeout bounds the optional post-schedule exec hook.
	HookTimeout time.Duration

	Logger *slog.Logger
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) hookTimeout() time.Duration {
	if s.HookTimeout > 0 {
		return s.HookTimeout
	}
	return 60 * time.Second
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Router builds the chi router serving the webhook endpoint, with
// request-ID, request-logging and panic-recovery middleware. The 1 MiB
// body limit is enforced inside handleUpdateTrigger, not by middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Post("/debler/updatetrigger/{packager}", s.handleUpdateTrigger)
	return r
}

type updateTriggerBody struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// handleUpdateTrigger implements the six validation steps in order, then
// the package/slot/version classification and scheduling described
// alongside it: an unknown package or slot is logged and silently
// dropped (the release belongs to something we don't track), a version
// already present for its slot is logged as a duplicate, and otherwise a
// new Revision is scheduled with changelog "New upstream release".
func (s *Server) handleUpdateTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	packagerName := chi.URLParam(r, "packager")

	packager, err := s.Store.GetPackager(ctx, packagerName)
	if errors.Is(err, catalog.ErrNotFound) || !declaresWebhook(packager) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger().Error("webhook: packager lookup failed", "packager", packagerName, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
		return
	}

	if r.ContentLength < 0 {
		http.Error(w, "length required", http.StatusLengthRequired)
		return
	}
	if r.ContentLength > maxBodyBytes {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body updateTriggerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" || body.Version == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if apiKey := apiKeyOf(packager); apiKey != "" {
		want := expectedAuthorization(body.Name, body.Version, apiKey)
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")

	s.schedule(ctx, packager, body.Name, body.Version)
}

// expectedAuthorization is the SHA-256 hex digest of name||version||apikey.
func expectedAuthorization(name, version, apiKey string) string {
	sum := sha256.Sum256([]byte(name + version + apiKey))
	return hex.EncodeToString(sum[:])
}

func declaresWebhook(p catalog.Packager) bool {
	v, ok := p.Config["webhook"].(bool)
	return ok && v
}

func apiKeyOf(p catalog.Packager) string {
	v, _ := p.Config["api_key"].(string)
	return v
}

func hookCommandOf(p catalog.Packager) string {
	v, _ := p.Config["hook_command"].(string)
	return v
}

func defaultDistributionOf(p catalog.Packager) string {
	v, _ := p.Config["distribution"].(string)
	return v
}

func levelOf(cfg map[string]any) (int, bool) {
	switch v := cfg["level"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// slotKeyPrefix returns the leading "level" dot-separated components of
// version, the slot key law from the data model: a slot's key is the
// level-prefix of every version it contains.
func slotKeyPrefix(version string, level int) string {
	parts := strings.Split(version, ".")
	if level > len(parts) {
		level = len(parts)
	}
	return strings.Join(parts[:level], ".")
}

func (s *Server) schedule(ctx context.Context, packager catalog.Packager, name, version string) {
	log := s.logger().With("packager", packager.Name, "name", name, "version", version)

	pkg, err := s.Store.PackageInfo(ctx, packager.ID, name)
	if errors.Is(err, catalog.ErrNotFound) {
		log.Info("webhook: unknown package, ignoring")
		return
	}
	if err != nil {
		log.Error("webhook: package lookup failed", "error", err)
		return
	}

	level, ok := levelOf(pkg.Config)
	if !ok {
		log.Warn("webhook: package has no level configured, ignoring")
		return
	}
	key := slotKeyPrefix(version, level)

	var slot *catalog.Slot
	for i := range pkg.Slots {
		if pkg.Slots[i].Key == key {
			slot = &pkg.Slots[i]
			break
		}
	}
	if slot == nil {
		log.Info("webhook: no tracked slot for release, ignoring", "slot_key", key)
		return
	}

	if _, err := s.Store.GetVersion(ctx, slot.ID, version); err == nil {
		log.Warn("webhook: version already tracked for slot, ignoring duplicate release")
		return
	} else if !errors.Is(err, catalog.ErrNotFound) {
		log.Error("webhook: version lookup failed", "error", err)
		return
	}

	now := s.now()
	v, err := s.Store.RegisterVersion(ctx, slot.ID, version, nil, now)
	if err != nil {
		log.Error("webhook: register version failed", "error", err)
		return
	}

	distName := defaultDistributionOf(packager)
	if distName == "" {
		log.Error("webhook: packager has no default distribution configured")
		return
	}
	dist, err := s.Store.RegisterDistribution(ctx, distName)
	if err != nil {
		log.Error("webhook: register distribution failed", "error", err)
		return
	}

	rev, err := s.Store.ScheduleBuild(ctx, v.ID, dist.ID, "New upstream release", now)
	if err != nil {
		log.Error("webhook: schedule build failed", "error", err)
		return
	}
	log.Info("webhook: scheduled build", "revision_id", rev.ID)

	if cmd := hookCommandOf(packager); cmd != "" {
		s.runHook(cmd, name, slot.Key, version, log)
	}
}

// runHook executes the configured hook command with {gem, slot, version}
// placeholders substituted, bounded by HookTimeout. There is no
// cooperative cancellation beyond the context deadline: a hook that
// ignores it will be killed when the deadline fires.
func (s *Server) runHook(command, gem, slot, version string, log *slog.Logger) {
	substituted := strings.NewReplacer(
		"{gem}", gem,
		"{slot}", slot,
		"{version}", version,
	).Replace(command)

	ctx, cancel := context.WithTimeout(context.Background(), s.hookTimeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", substituted)
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Error("webhook: hook command failed", "command", substituted, "error", err, "output", string(out))
	}
}
