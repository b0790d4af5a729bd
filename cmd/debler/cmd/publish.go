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
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/debler/debler/internal/policy/guards"
	_ "github.com/debler/debler/internal/policy/guards/builtin" // registers the built-in publish guards
	"github.com/debler/debler/internal/repoindex"
	"github.com/debler/debler/internal/signing"
)

var (
	publishPackager string
	publishDestDir  string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Emit the signed repository indexes for one ecosystem",
	Long: `publish renders Packages and Release files for the configured
distribution, runs every configured org_policy guard, and signs the
Release file with debsign before verifying the signature.`,
	Example: `  debler publish --packager bundler --dest /srv/apt`,
	RunE:    runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&publishPackager, "packager", "", "packager ecosystem to publish")
	publishCmd.Flags().StringVar(&publishDestDir, "dest", ".", "directory to write Packages/Release into")
	_ = publishCmd.MarkFlagRequired("packager")
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := setupStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	keyring, keyringResolved := loadKeyringQuiet()

	env := &guards.Environment{
		Store:           store,
		Distribution:    cfg.Distribution,
		KeyID:           cfg.KeyID,
		KeyringResolved: keyringResolved,
		UploadURL:       cfg.PackageUploads.App,
	}

	for _, name := range cfg.PublishGuards() {
		ok, err := guards.CheckGuard(ctx, name, env)
		if err != nil {
			return fmt.Errorf("publish: guard %s: %w", name, err)
		}
		if !ok {
			return fmt.Errorf("publish: guard %q rejected this publish", name)
		}
	}

	index, err := repoindex.Generate(ctx, store, publishPackager, cfg.Distribution)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	var releasePath string
	for name, data := range index.Files {
		full := filepath.Join(publishDestDir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return fmt.Errorf("publish: write %s: %w", name, err)
		}
		if filepath.Base(name) == "Release" {
			releasePath = full
		}
	}
	if releasePath == "" {
		return fmt.Errorf("publish: repoindex did not produce a Release file")
	}
	if err := signRelease(releasePath, cfg.KeyID); err != nil {
		return fmt.Errorf("publish: sign: %w", err)
	}
	if keyring != nil {
		if err := verifyRelease(keyring, releasePath); err != nil {
			return fmt.Errorf("publish: verify signature: %w", err)
		}
	}

	fmt.Printf("Published %s (%s) to %s\n", publishPackager, cfg.Distribution, publishDestDir)
	return nil
}

func loadKeyringQuiet() (*signing.Keyring, bool) {
	keyring, err := signing.Load(cfg.Keyring, cfg.KeyID)
	if err != nil {
		return nil, false
	}
	return keyring, keyring.Resolved()
}

// signRelease shells out to debsign, matching dpkg-buildpackage's
// external-tool invocation in the builder pipeline; signing itself is
// never reimplemented in Go.
func signRelease(path, keyID string) error {
	args := []string{"--re-sign"}
	if keyID != "" {
		args = append(args, "-k"+keyID)
	}
	args = append(args, path)
	c := exec.Command("debsign", args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func verifyRelease(keyring *signing.Keyring, path string) error {
	signed, err := os.Open(path)
	if err != nil {
		return err
	}
	defer signed.Close()
	sig, err := os.Open(path + ".gpg")
	if err != nil {
		return err
	}
	defer sig.Close()
	_, err = keyring.VerifyDetached(signed, sig)
	return err
}
