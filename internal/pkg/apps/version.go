// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package apps

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// RestoredSuffix marks a version number that was materialized from a git tag
// rather than authored forward.
const RestoredSuffix = "-restored"

// FileAction describes how a file changed between two versions.
type FileAction string

const (
	FileCreated FileAction = "created"
	FileUpdated FileAction = "updated"
	FileDeleted FileAction = "deleted"
)

// AppVersion is an immutable snapshot of an app at a point in time. The
// commit SHA is write-once: it is set when the snapshot is pushed and never
// changes afterwards.
type AppVersion struct {
	AppPublicID   string
	VersionNumber string
	Changelog     string
	UserID        string
	Environment   Environment
	CommitSHA     string
	TagName       string
	Files         []AppVersionFile
}

// AppVersionFile records one file change captured by a version.
type AppVersionFile struct {
	Path   string
	Action FileAction
}

// ErrCommitAssigned is returned when a caller attempts to overwrite a
// version's commit SHA.
var ErrCommitAssigned = errors.New("app version already references a commit")

// AssignCommit binds the version to the commit that captured it. Write-once.
func (v *AppVersion) AssignCommit(sha string) error {
	if v.CommitSHA != "" {
		return ErrCommitAssigned
	}
	if sha == "" {
		return errors.New("commit sha must not be empty")
	}
	v.CommitSHA = sha
	return nil
}

// Restored reports whether the version was produced by a tag restore.
func (v *AppVersion) Restored() bool {
	return strings.HasSuffix(v.VersionNumber, RestoredSuffix)
}

// ValidateVersionNumber enforces the version format: a bare semver triple
// such as "1.2.3", optionally carrying the "-restored" suffix.
func ValidateVersionNumber(version string) error {
	base := strings.TrimSuffix(version, RestoredSuffix)
	v := "v" + base
	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return fmt.Errorf("version %q must be a MAJOR.MINOR.PATCH triple with an optional %q suffix", version, RestoredSuffix)
	}
	if semver.Canonical(v) != v {
		return fmt.Errorf("version %q must spell out all three components", version)
	}
	return nil
}

// CompareVersions orders two version numbers, ignoring any restored suffix.
// It returns -1, 0, or +1 following the usual comparison contract.
func CompareVersions(a, b string) int {
	va := "v" + strings.TrimSuffix(a, RestoredSuffix)
	vb := "v" + strings.TrimSuffix(b, RestoredSuffix)
	return semver.Compare(va, vb)
}
