// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package apps

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// App is the tenant unit of the control plane. Apps are created by the
// upstream product; this system mutates them only while provisioning a
// repository or recording a deploy.
type App struct {
	// PublicID is the short, URL-safe, case-insensitive identifier exposed
	// to users. It is lowercased wherever it appears in a hostname.
	PublicID string
	// Name is the human-readable application name.
	Name string
	// TeamID identifies the owning team.
	TeamID string
	// Subdomain is the optional vanity slug; unique across live production
	// apps when set.
	Subdomain string
	// RepositoryFullName is "org/repo" of the app's source repository.
	// Immutable once set.
	RepositoryFullName string
	// RepositoryID is the source host's numeric id for the repository.
	RepositoryID int64
	// LastDeployedAt records the most recent successful deploy per environment.
	LastDeployedAt map[Environment]time.Time
}

// ErrRepositoryAssigned is returned when a caller attempts to overwrite an
// app's repository binding.
var ErrRepositoryAssigned = errors.New("app already has a repository assigned")

// ScriptName returns the identifier under which the app's compiled worker is
// stored in env's dispatch namespace: the subdomain slug for production when
// one is set, otherwise the lowercased public id. The environment itself is
// encoded in the namespace, never in the script name.
func (a *App) ScriptName(env Environment) string {
	if env == EnvProduction && a.Subdomain != "" {
		return strings.ToLower(a.Subdomain)
	}
	return strings.ToLower(a.PublicID)
}

// AssignRepository binds the app to its source repository. The binding is
// write-once.
func (a *App) AssignRepository(fullName string, id int64) error {
	if a.RepositoryFullName != "" {
		return ErrRepositoryAssigned
	}
	if _, _, err := SplitRepository(fullName); err != nil {
		return err
	}
	a.RepositoryFullName = fullName
	a.RepositoryID = id
	return nil
}

// HasRepository reports whether the app has been bound to a source repository.
func (a *App) HasRepository() bool {
	return a.RepositoryFullName != ""
}

// SplitRepository splits an "org/repo" full name into its two components.
func SplitRepository(fullName string) (owner, repo string, err error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository name %q must be of the form org/repo", fullName)
	}
	return parts[0], parts[1], nil
}

// AppFile is one source file owned by an App. The set of (app, path) pairs
// is unique; the full file set at any moment is the authoritative input for
// the next commit.
type AppFile struct {
	Path     string
	Content  string
	FileType string
}

// ValidateFilePath enforces the path rules for app files: POSIX separators,
// relative, no empty or ".." segments.
func ValidateFilePath(p string) error {
	if p == "" {
		return errors.New("file path must not be empty")
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("file path %q must be relative", p)
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("file path %q must use POSIX separators", p)
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return fmt.Errorf("file path %q contains an empty segment", p)
		case "..":
			return fmt.Errorf("file path %q must not traverse upwards", p)
		}
	}
	return nil
}
