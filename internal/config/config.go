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

// Package config handles debler.yaml operator configuration: catalog
// connection, per-ecosystem cache roots, signing identity, and the
// optional org_policy governance document that gates publish.
package config

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/debler/debler/internal/secureio"
)

// Config is the complete debler.yaml document.
type Config struct {
	Database   string `yaml:"database"`
	AppDir     string `yaml:"appdir"`
	GemDir     string `yaml:"gemdir"`
	NPMDir     string `yaml:"npmdir"`
	KeyID      string `yaml:"keyid"`
	Keyring    string `yaml:"keyring,omitempty"`
	Maintainer string `yaml:"maintainer"`

	Rubies     []string `yaml:"rubies,omitempty"`
	GemFormat  [2]int   `yaml:"gem_format,omitempty"`
	Distribution string `yaml:"distribution"`

	PackageUploads PackageUploads `yaml:"package_uploads,omitempty"`
	RubyGems       string         `yaml:"rubygems,omitempty"`

	OrgPolicy *OrgPolicy `yaml:"org_policy,omitempty"`
}

// PackageUploads names the upload endpoint used per ecosystem.
type PackageUploads struct {
	Gem string `yaml:"gem,omitempty"`
	App string `yaml:"app,omitempty"`
	NPM string `yaml:"npm,omitempty"`
}

// OrgPolicy carries organization-level governance that gates publish
// rather than individual builds.
type OrgPolicy struct {
	RequireSignoffFrom []string       `yaml:"require_signoff_from,omitempty"`
	Signing            SigningPolicy  `yaml:"signing,omitempty"`
	Guards             []string       `yaml:"guards,omitempty"`
}

// SigningPolicy controls whether publish requires a resolvable signing key.
type SigningPolicy struct {
	RequireKey bool `yaml:"require_key"`
}

// Load reads and validates a debler.yaml document at path.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	data, err := secureio.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks the required fields are present.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Maintainer == "" {
		return fmt.Errorf("maintainer is required")
	}
	if c.Distribution == "" {
		c.Distribution = "unstable"
	}
	if c.RubyGems == "" {
		c.RubyGems = "https://rubygems.org"
	}
	return nil
}

// RequiresSigningKey reports whether org_policy demands a resolvable
// signing key before publish may proceed.
func (c *Config) RequiresSigningKey() bool {
	return c.OrgPolicy != nil && c.OrgPolicy.Signing.RequireKey
}

// PublishGuards returns the configured guard names, if any.
func (c *Config) PublishGuards() []string {
	if c.OrgPolicy == nil {
		return nil
	}
	return c.OrgPolicy.Guards
}
