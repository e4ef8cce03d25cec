// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/deploy"
	"github.com/overskill/launchpad/internal/pkg/github"
	"github.com/overskill/launchpad/internal/pkg/repo"
	"github.com/overskill/launchpad/internal/pkg/term/progress"
)

type wsDouble struct {
	filesFn func() (map[string]string, error)
}

func (d *wsDouble) Files() (map[string]string, error) {
	return d.filesFn()
}

type deployerDouble struct {
	deployFn func(ctx context.Context, in deploy.Input) (*deploy.Outcome, error)
}

func (d *deployerDouble) Deploy(ctx context.Context, in deploy.Input) (*deploy.Outcome, error) {
	return d.deployFn(ctx, in)
}

type repoGetterDouble struct {
	getRepoFn func(ctx context.Context, name string) (*github.Repository, error)
}

func (d *repoGetterDouble) GetRepo(ctx context.Context, name string) (*github.Repository, error) {
	return d.getRepoFn(ctx, name)
}

type bootDouble struct {
	bootstrapFn func(ctx context.Context, app *apps.App) (*repo.BootstrapResult, error)
}

func (d *bootDouble) Bootstrap(ctx context.Context, app *apps.App) (*repo.BootstrapResult, error) {
	return d.bootstrapFn(ctx, app)
}

// drainSink consumes progress updates like the terminal renderer would.
func drainSink(_ context.Context, sink *progress.Sink) {
	for range sink.Updates() {
	}
}

func cliTestApp() *apps.App {
	return &apps.App{PublicID: "Ab12Cd", Name: "CountMaster", TeamID: "team-9"}
}

func TestDeployOpts_Validate(t *testing.T) {
	testCases := map[string]struct {
		envName string
		version string

		wantedErr string
	}{
		"valid environment": {
			envName: "staging",
		},
		"unknown environment": {
			envName:   "qa",
			wantedErr: `environment "qa" must be one of preview, staging, or production`,
		},
		"valid version": {
			envName: "preview",
			version: "1.2.0",
		},
		"malformed version": {
			envName:   "preview",
			version:   "1.2",
			wantedErr: "must spell out all three components",
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			opts := &deployOpts{
				deployVars: deployVars{
					GlobalOpts: &GlobalOpts{},
					envName:    tc.envName,
					version:    tc.version,
				},
			}

			err := opts.Validate()

			if tc.wantedErr != "" {
				require.ErrorContains(t, err, tc.wantedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, apps.Environment(tc.envName), opts.env)
		})
	}
}

func TestDeployOpts_Execute(t *testing.T) {
	t.Run("deploys the workspace files to the target environment", func(t *testing.T) {
		app := cliTestApp()
		require.NoError(t, app.AssignRepository("overskill-apps/app-ab12cd", 77))
		var gotInput deploy.Input
		opts := &deployOpts{
			deployVars: deployVars{GlobalOpts: &GlobalOpts{}, actor: "user-1"},
			env:        apps.EnvPreview,
			ws: &wsDouble{filesFn: func() (map[string]string, error) {
				return map[string]string{"index.html": "<html/>", "src/main.tsx": "render()"}, nil
			}},
			app: app,
			deployer: &deployerDouble{deployFn: func(_ context.Context, in deploy.Input) (*deploy.Outcome, error) {
				gotInput = in
				return &deploy.Outcome{AuditID: "dep-1", RunID: 7, URL: "https://preview-ab12cd.overskill.app", Attempts: 1}, nil
			}},
			renderProgress: drainSink,
		}

		require.NoError(t, opts.Execute())

		require.Equal(t, app, gotInput.App)
		require.Equal(t, apps.EnvPreview, gotInput.Env)
		require.Len(t, gotInput.Files, 2)
		require.Equal(t, "user-1", gotInput.Actor)
		require.Nil(t, gotInput.Version)
		require.NotNil(t, gotInput.Sink)
	})

	t.Run("records a version snapshot when --version is set", func(t *testing.T) {
		app := cliTestApp()
		require.NoError(t, app.AssignRepository("overskill-apps/app-ab12cd", 77))
		var gotInput deploy.Input
		opts := &deployOpts{
			deployVars: deployVars{
				GlobalOpts: &GlobalOpts{},
				version:    "1.2.0",
				changelog:  "Dark mode",
				actor:      "user-1",
			},
			env: apps.EnvStaging,
			ws: &wsDouble{filesFn: func() (map[string]string, error) {
				return map[string]string{"index.html": "<html/>"}, nil
			}},
			app: app,
			deployer: &deployerDouble{deployFn: func(_ context.Context, in deploy.Input) (*deploy.Outcome, error) {
				gotInput = in
				return &deploy.Outcome{URL: "https://staging-ab12cd.overskill.app", Attempts: 1, TagName: "v1.2.0-20240514093000"}, nil
			}},
			renderProgress: drainSink,
		}

		require.NoError(t, opts.Execute())

		require.NotNil(t, gotInput.Version)
		require.Equal(t, "1.2.0", gotInput.Version.VersionNumber)
		require.Equal(t, "Dark mode", gotInput.Version.Changelog)
		require.Equal(t, apps.EnvStaging, gotInput.Version.Environment)
	})

	t.Run("binds an existing repository before deploying", func(t *testing.T) {
		app := cliTestApp()
		opts := &deployOpts{
			deployVars: deployVars{GlobalOpts: &GlobalOpts{}},
			env:        apps.EnvPreview,
			ws: &wsDouble{filesFn: func() (map[string]string, error) {
				return map[string]string{"index.html": "<html/>"}, nil
			}},
			app: app,
			repos: &repoGetterDouble{getRepoFn: func(_ context.Context, name string) (*github.Repository, error) {
				require.Equal(t, "app-ab12cd", name)
				return &github.Repository{ID: 77, FullName: "overskill-apps/app-ab12cd", DefaultBranch: "main"}, nil
			}},
			deployer: &deployerDouble{deployFn: func(_ context.Context, in deploy.Input) (*deploy.Outcome, error) {
				return &deploy.Outcome{URL: "https://preview-ab12cd.overskill.app", Attempts: 1}, nil
			}},
			renderProgress: drainSink,
		}

		require.NoError(t, opts.Execute())

		require.Equal(t, "overskill-apps/app-ab12cd", app.RepositoryFullName)
	})

	t.Run("bootstraps a repository on the first deploy", func(t *testing.T) {
		app := cliTestApp()
		bootstrapped := false
		opts := &deployOpts{
			deployVars: deployVars{GlobalOpts: &GlobalOpts{}},
			env:        apps.EnvPreview,
			ws: &wsDouble{filesFn: func() (map[string]string, error) {
				return map[string]string{"index.html": "<html/>"}, nil
			}},
			app: app,
			repos: &repoGetterDouble{getRepoFn: func(_ context.Context, _ string) (*github.Repository, error) {
				return nil, &github.ErrNotFound{Resource: "repository overskill-apps/app-ab12cd"}
			}},
			boot: &bootDouble{bootstrapFn: func(_ context.Context, got *apps.App) (*repo.BootstrapResult, error) {
				bootstrapped = true
				require.NoError(t, got.AssignRepository("overskill-apps/app-ab12cd", 77))
				return &repo.BootstrapResult{
					Repository: &github.Repository{ID: 77, FullName: "overskill-apps/app-ab12cd", DefaultBranch: "main"},
					CommitSHA:  "sha-0",
				}, nil
			}},
			deployer: &deployerDouble{deployFn: func(_ context.Context, in deploy.Input) (*deploy.Outcome, error) {
				return &deploy.Outcome{URL: "https://preview-ab12cd.overskill.app", Attempts: 1}, nil
			}},
			renderProgress: drainSink,
		}

		require.NoError(t, opts.Execute())

		require.True(t, bootstrapped)
	})
}

func TestFileTree(t *testing.T) {
	out := fileTree(map[string]string{
		"index.html":             "",
		"src/main.tsx":           "",
		"src/components/App.tsx": "",
	})

	require.Contains(t, out, "index.html")
	require.Contains(t, out, "src")
	require.Contains(t, out, "components")
	require.Contains(t, out, "App.tsx")
}
