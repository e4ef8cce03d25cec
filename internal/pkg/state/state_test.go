// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/overskill/launchpad/internal/pkg/apps"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s, err := NewWithDB(db)
	require.NoError(t, err)
	return s
}

func TestStore_DeploymentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	h, err := s.Begin(ctx, "ab12cd", apps.EnvProduction, "countmaster", "user-1", map[string]interface{}{"commit_sha": "abc123"})
	require.NoError(t, err)
	require.NotEmpty(t, h.AuditID)

	require.NoError(t, s.Complete(ctx, h, "https://countmaster.overskill.app"))

	latest, err := s.Latest(ctx, "ab12cd", apps.EnvProduction)
	require.NoError(t, err)
	require.Equal(t, StatusDeployed, latest.Status)
	require.Equal(t, "https://countmaster.overskill.app", latest.URL)
	meta, err := latest.DecodeMetadata()
	require.NoError(t, err)
	require.Equal(t, "abc123", meta["commit_sha"])
}

func TestStore_TerminalRowsAreImmutable(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	h, err := s.Begin(ctx, "ab12cd", apps.EnvPreview, "ab12cd", "user-1", nil)
	require.NoError(t, err)
	require.NoError(t, s.Fail(ctx, h, errors.New("build failed"), map[string]interface{}{"failed_jobs": []string{"build"}}))

	var illegal *ErrIllegalTransition
	require.ErrorAs(t, s.Complete(ctx, h, "https://x"), &illegal)
	require.ErrorAs(t, s.Fail(ctx, h, errors.New("again"), nil), &illegal)

	latest, err := s.Latest(ctx, "ab12cd", apps.EnvPreview)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, latest.Status)
	meta, err := latest.DecodeMetadata()
	require.NoError(t, err)
	require.Equal(t, "build failed", meta["error"])
}

func TestStore_SecondBeginOnSameKeyIsRejected(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	first, err := s.Begin(ctx, "ab12cd", apps.EnvStaging, "ab12cd", "user-1", nil)
	require.NoError(t, err)

	var inflight *ErrDeploymentInFlight
	_, err = s.Begin(ctx, "ab12cd", apps.EnvStaging, "ab12cd", "user-2", nil)
	require.ErrorAs(t, err, &inflight)

	// A terminal transition frees the key.
	require.NoError(t, s.Fail(ctx, first, errors.New("boom"), nil))
	_, err = s.Begin(ctx, "ab12cd", apps.EnvStaging, "ab12cd", "user-2", nil)
	require.NoError(t, err)
}

func TestStore_DistinctEnvsDeployIndependently(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, env := range []apps.Environment{apps.EnvPreview, apps.EnvProduction} {
		env := env
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := s.Begin(ctx, "ab12cd", env, "ab12cd", "user-1", nil)
			if err != nil {
				errs <- err
				return
			}
			errs <- s.Complete(ctx, h, "https://example.test")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	byEnv, err := s.StatusByEnv(ctx, "ab12cd")
	require.NoError(t, err)
	require.Len(t, byEnv, 2)
	require.Equal(t, StatusDeployed, byEnv[apps.EnvPreview].Status)
	require.Equal(t, StatusDeployed, byEnv[apps.EnvProduction].Status)
	require.False(t, byEnv[apps.EnvProduction].LastDeployed.IsZero())
}

func TestStore_Versions(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	v := &AppVersion{
		AppID:         "ab12cd",
		VersionNumber: "1.2.3",
		Changelog:     "Add counter",
		UserID:        "user-1",
		Environment:   string(apps.EnvProduction),
		Files: []AppVersionFile{
			{Path: "src/App.tsx", Action: string(apps.FileUpdated)},
		},
	}
	require.NoError(t, s.SaveVersion(ctx, v))
	require.NotZero(t, v.ID)

	require.NoError(t, s.AssignVersionCommit(ctx, v.ID, "abc123"))
	var immutable *ErrVersionImmutable
	require.ErrorAs(t, s.AssignVersionCommit(ctx, v.ID, "def456"), &immutable)

	require.NoError(t, s.AssignVersionTag(ctx, v.ID, "v1.2.3-20260825120000"))

	latest, err := s.LatestVersion(ctx, "ab12cd")
	require.NoError(t, err)
	require.Equal(t, "abc123", latest.CommitSHA)
	require.Len(t, latest.Files, 1)

	byTag, err := s.VersionByTag(ctx, "ab12cd", "v1.2.3-20260825120000")
	require.NoError(t, err)
	require.Equal(t, v.ID, byTag.ID)

	require.Error(t, s.SaveVersion(ctx, &AppVersion{AppID: "ab12cd", VersionNumber: "not-semver"}))
}
