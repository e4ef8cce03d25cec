// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package workspace reads a tenant app from a local directory: the
// launchpad.yml manifest describing the app, and the source file tree that
// becomes the next commit.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/overskill/launchpad/internal/pkg/apps"
)

// ManifestFileName is the workspace marker and app manifest.
const ManifestFileName = "launchpad.yml"

// skipGlobs are path patterns never collected into a commit, matching the
// restore skip list.
var skipGlobs = []string{
	".git/**",
	".github/workflows/**",
	"node_modules/**",
	"dist/**",
	"build/**",
	"*.map",
	".env*",
}

// Manifest is the parsed launchpad.yml.
type Manifest struct {
	// AppID is the app's opaque public id.
	AppID string `yaml:"app_id"`
	// Name is the human-readable app name.
	Name string `yaml:"name"`
	// TeamID identifies the owning team.
	TeamID string `yaml:"team_id"`
	// Subdomain is the optional production vanity slug.
	Subdomain string `yaml:"subdomain,omitempty"`
	// Env holds per-app plain-text variables injected into script bindings.
	Env map[string]string `yaml:"env,omitempty"`
}

// Validate returns an error when required manifest fields are missing.
func (m *Manifest) Validate() error {
	var missing []string
	if m.AppID == "" {
		missing = append(missing, "app_id")
	}
	if m.Name == "" {
		missing = append(missing, "name")
	}
	if m.TeamID == "" {
		missing = append(missing, "team_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("manifest is missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// App converts the manifest into the domain model.
func (m *Manifest) App() *apps.App {
	return &apps.App{
		PublicID:  m.AppID,
		Name:      m.Name,
		TeamID:    m.TeamID,
		Subdomain: m.Subdomain,
	}
}

// Workspace is a local app directory.
type Workspace struct {
	dir string
	fs  afero.Fs
}

// New returns a Workspace rooted at dir, which must contain launchpad.yml.
func New(dir string) (*Workspace, error) {
	return newWithFs(dir, afero.NewOsFs())
}

func newWithFs(dir string, fsys afero.Fs) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace directory %s: %w", dir, err)
	}
	exists, err := afero.Exists(fsys, filepath.Join(abs, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("probe workspace %s: %w", abs, err)
	}
	if !exists {
		return nil, &ErrManifestNotFound{Dir: abs}
	}
	return &Workspace{dir: abs, fs: fsys}, nil
}

// Dir returns the workspace root directory.
func (ws *Workspace) Dir() string {
	return ws.dir
}

// Manifest reads and validates launchpad.yml.
func (ws *Workspace) Manifest() (*Manifest, error) {
	raw, err := afero.ReadFile(ws.fs, filepath.Join(ws.dir, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ManifestFileName, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFileName, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Files collects the app's source tree as repository-relative paths. The
// manifest itself and every skip-listed path are excluded; the result is
// sorted for stable commit messages.
func (ws *Workspace) Files() (map[string]string, error) {
	files := make(map[string]string)
	err := afero.Walk(ws.fs, ws.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(ws.dir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel != "." && Skipped(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == ManifestFileName || Skipped(rel) {
			return nil
		}
		if err := apps.ValidateFilePath(rel); err != nil {
			return err
		}
		raw, readErr := afero.ReadFile(ws.fs, path)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", rel, readErr)
		}
		files[rel] = string(raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect workspace files: %w", err)
	}
	return files, nil
}

// SortedPaths returns the file set's paths in lexical order.
func SortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Skipped reports whether a repository-relative path matches the skip list.
func Skipped(rel string) bool {
	for _, glob := range skipGlobs {
		if matchGlob(glob, rel) {
			return true
		}
	}
	return false
}

// matchGlob matches rel against one skip pattern. A trailing "/**" matches
// the directory itself and everything below it; other patterns match the
// base name or the full path.
func matchGlob(glob, rel string) bool {
	if strings.HasSuffix(glob, "/**") {
		prefix := strings.TrimSuffix(glob, "/**")
		return rel == prefix || rel == prefix+"/" || strings.HasPrefix(rel, prefix+"/")
	}
	if ok, _ := filepath.Match(glob, filepath.Base(rel)); ok {
		return true
	}
	ok, _ := filepath.Match(glob, rel)
	return ok
}
