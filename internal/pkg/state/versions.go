// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/overskill/launchpad/internal/pkg/apps"
)

// AppVersion is the persisted form of one immutable app snapshot.
type AppVersion struct {
	ID            uint   `gorm:"primarykey"`
	AppID         string `gorm:"size:64;index"`
	VersionNumber string `gorm:"size:32"`
	Changelog     string
	UserID        string `gorm:"size:64"`
	Environment   string `gorm:"size:16"`
	// CommitSHA is write-once, set when the snapshot is pushed.
	CommitSHA string `gorm:"size:64"`
	// TagName is write-once, set when the snapshot is tagged.
	TagName   string           `gorm:"size:64"`
	Files     []AppVersionFile `gorm:"foreignKey:AppVersionID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppVersionFile records one file change captured by a version.
type AppVersionFile struct {
	ID           uint   `gorm:"primarykey"`
	AppVersionID uint   `gorm:"index"`
	Path         string `gorm:"size:512"`
	Action       string `gorm:"size:16"`
}

// SaveVersion validates and persists a new version snapshot with its file
// rows.
func (s *Store) SaveVersion(ctx context.Context, v *AppVersion) error {
	if err := apps.ValidateVersionNumber(v.VersionNumber); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("save version %s of app %s: %w", v.VersionNumber, v.AppID, err)
	}
	return nil
}

// AssignVersionCommit binds a version to the commit that captured it. The
// binding is write-once.
func (s *Store) AssignVersionCommit(ctx context.Context, versionID uint, sha string) error {
	return s.assignOnce(ctx, versionID, "commit_sha", sha)
}

// AssignVersionTag binds a version to its annotated tag. Write-once.
func (s *Store) AssignVersionTag(ctx context.Context, versionID uint, tagName string) error {
	return s.assignOnce(ctx, versionID, "tag_name", tagName)
}

func (s *Store) assignOnce(ctx context.Context, versionID uint, column, value string) error {
	var row AppVersion
	if err := s.db.WithContext(ctx).First(&row, versionID).Error; err != nil {
		return fmt.Errorf("load version %d: %w", versionID, err)
	}
	res := s.db.WithContext(ctx).Model(&AppVersion{}).
		Where(fmt.Sprintf("id = ? AND (%s = '' OR %s IS NULL)", column, column), versionID).
		Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("assign %s of version %d: %w", column, versionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &ErrVersionImmutable{VersionNumber: row.VersionNumber, Field: column}
	}
	return nil
}

// LatestVersion returns the app's most recent version snapshot, or nil.
func (s *Store) LatestVersion(ctx context.Context, appID string) (*AppVersion, error) {
	var row AppVersion
	err := s.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("created_at DESC, id DESC").
		Preload("Files").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest version of %s: %w", appID, err)
	}
	return &row, nil
}

// VersionByTag resolves a version snapshot by its tag name.
func (s *Store) VersionByTag(ctx context.Context, appID, tagName string) (*AppVersion, error) {
	var row AppVersion
	err := s.db.WithContext(ctx).
		Where("app_id = ? AND tag_name = ?", appID, tagName).
		Preload("Files").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("version %s of %s: %w", tagName, appID, err)
	}
	return &row, nil
}
