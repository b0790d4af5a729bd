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
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/debler/debler/internal/config"
	"github.com/debler/debler/internal/signing"
	"github.com/debler/debler/internal/version"
)

var (
	quietFlag   bool
	verboseFlag bool
	configPath  string
	logLevel    = slog.LevelInfo

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "debler",
		Short: "Package and publish repackaged Ruby gems, npm packages, and debler apps",
		Long: `debler tracks upstream releases of Ruby gems and npm/Yarn packages,
schedules Debian source+binary package builds for them, builds first-party
applications against the packages it maintains, and publishes a signed
APT repository.`,
		Version: version.Get(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if quietFlag {
				logLevel = slog.LevelError
			} else if verboseFlag {
				logLevel = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

			if cmd.Name() == "completion" {
				return nil
			}
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded

			if cfg.RequiresSigningKey() {
				keyring, err := signing.Load(cfg.Keyring, cfg.KeyID)
				if err != nil || !keyring.Resolved() {
					return fmt.Errorf("org_policy.signing.require_key is set but signing key %q does not resolve in %s", cfg.KeyID, cfg.Keyring)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress informational output (errors only)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose debug output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "debler.yaml", "path to the operator config file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetLogLevel returns the current log level based on flags.
func GetLogLevel() slog.Level {
	return logLevel
}
