// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the control plane's own settings from the process
// environment, optionally overlaid with values from an INI profile at
// ~/.launchpad/config.ini. Values from the environment always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Environment variable names read at boot.
const (
	envGitHubOrg        = "GITHUB_ORG"
	envTemplateRepo     = "GITHUB_TEMPLATE_REPO"
	envGitHubAppID      = "GITHUB_APP_ID"
	envGitHubPrivateKey = "GITHUB_APP_PRIVATE_KEY"
	envCFAccountID      = "CLOUDFLARE_ACCOUNT_ID"
	envCFAPIToken       = "CLOUDFLARE_API_TOKEN"
	envAppsDomain       = "APPS_DOMAIN"
	envRuntimeEnv       = "RUNTIME_ENV"
	envDatabaseDSN      = "DATABASE_URL"
	envSupabaseURL      = "SUPABASE_URL"
	envSupabaseAnonKey  = "SUPABASE_ANON_KEY"
	envAPIBaseURL       = "OVERSKILL_API_BASE_URL"
)

// defaultAPIBaseURL is the platform API tenants call back into when no
// override is configured.
const defaultAPIBaseURL = "https://api.overskill.app/api/v1"

// profileRelPath is the INI profile location under the user's home directory.
const profileRelPath = ".launchpad/config.ini"

// Config holds every knob the control plane needs at runtime.
type Config struct {
	// Source host settings.
	GitHubOrg        string // organization that owns tenant repositories.
	TemplateRepo     string // "org/repo" forked on bootstrap; empty creates fresh repositories.
	GitHubAppID      int64  // numeric id of the source-host app.
	GitHubPrivateKey []byte // PEM-encoded RSA signing key for the app.

	// Edge platform settings.
	CloudflareAccountID string
	CloudflareAPIToken  string
	// AppsDomain is the apex domain tenant apps are served under, e.g.
	// "overskill.app". When empty, public URLs fall back to the
	// workers.dev path style.
	AppsDomain string

	// Control plane settings.
	RuntimeEnv  string // instance label: development, staging, or production.
	DatabaseDSN string // relational store for deployment records.

	// Tenant runtime settings injected into rendered configs and bindings.
	SupabaseURL     string
	SupabaseAnonKey string
	APIBaseURL      string
}

// lookupEnv is stubbed in tests.
var lookupEnv = os.LookupEnv

// userHomeDir is stubbed in tests.
var userHomeDir = os.UserHomeDir

// Load builds a Config from the environment and the optional INI profile.
// It returns a single error naming every missing required input.
func Load() (*Config, error) {
	profile, err := loadProfile()
	if err != nil {
		return nil, err
	}
	get := func(key string) string {
		if v, ok := lookupEnv(key); ok {
			return v
		}
		return profile[strings.ToLower(key)]
	}

	c := &Config{
		GitHubOrg:           get(envGitHubOrg),
		TemplateRepo:        get(envTemplateRepo),
		CloudflareAccountID: get(envCFAccountID),
		CloudflareAPIToken:  get(envCFAPIToken),
		AppsDomain:          get(envAppsDomain),
		RuntimeEnv:          get(envRuntimeEnv),
		DatabaseDSN:         get(envDatabaseDSN),
		SupabaseURL:         get(envSupabaseURL),
		SupabaseAnonKey:     get(envSupabaseAnonKey),
		APIBaseURL:          get(envAPIBaseURL),
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if raw := get(envGitHubPrivateKey); raw != "" {
		c.GitHubPrivateKey = []byte(raw)
	}
	if raw := get(envGitHubAppID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", envGitHubAppID, raw, err)
		}
		c.GitHubAppID = id
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// validate returns one error naming all missing required inputs so that an
// operator can fix their environment in a single pass.
func (c *Config) validate() error {
	var missing []string
	for _, check := range []struct {
		name string
		ok   bool
	}{
		{envGitHubOrg, c.GitHubOrg != ""},
		{envGitHubAppID, c.GitHubAppID != 0},
		{envGitHubPrivateKey, len(c.GitHubPrivateKey) > 0},
		{envCFAccountID, c.CloudflareAccountID != ""},
		{envCFAPIToken, c.CloudflareAPIToken != ""},
		{envRuntimeEnv, c.RuntimeEnv != ""},
		{envDatabaseDSN, c.DatabaseDSN != ""},
	} {
		if !check.ok {
			missing = append(missing, check.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	switch c.RuntimeEnv {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("%s %q must be one of development, staging, or production", envRuntimeEnv, c.RuntimeEnv)
	}
	return nil
}

// loadProfile parses the INI profile if present. A missing file is not an
// error; any section named after the runtime environment overrides the
// defaults in the top-level section.
func loadProfile() (map[string]string, error) {
	home, err := userHomeDir()
	if err != nil {
		// No resolvable home directory means no profile to read.
		return map[string]string{}, nil
	}
	path := filepath.Join(home, profileRelPath)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", path, err)
	}

	values := make(map[string]string)
	for _, key := range file.Section(ini.DefaultSection).Keys() {
		values[strings.ToLower(key.Name())] = key.Value()
	}
	// The runtime env must come from the process environment or the default
	// section before its named section can be applied.
	runtimeEnv, ok := lookupEnv(envRuntimeEnv)
	if !ok {
		runtimeEnv = values[strings.ToLower(envRuntimeEnv)]
	}
	if runtimeEnv == "" {
		return values, nil
	}
	if section, err := file.GetSection(runtimeEnv); err == nil {
		for _, key := range section.Keys() {
			values[strings.ToLower(key.Name())] = key.Value()
		}
	}
	return values, nil
}
