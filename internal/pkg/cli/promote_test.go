// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/deploy"
	"github.com/overskill/launchpad/internal/pkg/term/prompt"
)

type promoterDouble struct {
	promoteFn func(ctx context.Context, app *apps.App, from, to apps.Environment, actor string) (*deploy.PromoteOutcome, error)
}

func (d *promoterDouble) Promote(ctx context.Context, app *apps.App, from, to apps.Environment, actor string) (*deploy.PromoteOutcome, error) {
	return d.promoteFn(ctx, app, from, to, actor)
}

type promptDouble struct {
	getFn     func(message, help string, validator prompt.ValidatorFunc, opts ...prompt.Option) (string, error)
	confirmFn func(message, help string, opts ...prompt.Option) (bool, error)
}

func (d *promptDouble) Get(message, help string, validator prompt.ValidatorFunc, opts ...prompt.Option) (string, error) {
	return d.getFn(message, help, validator, opts...)
}

func (d *promptDouble) Confirm(message, help string, opts ...prompt.Option) (bool, error) {
	return d.confirmFn(message, help, opts...)
}

func TestPromoteOpts_Validate(t *testing.T) {
	testCases := map[string]struct {
		fromName string
		toName   string

		wantedErr string
	}{
		"staging to production": {
			fromName: "staging",
			toName:   "production",
		},
		"preview to staging": {
			fromName: "preview",
			toName:   "staging",
		},
		"skipping an environment": {
			fromName:  "preview",
			toName:    "production",
			wantedErr: "cannot promote from preview to production",
		},
		"demotion": {
			fromName:  "production",
			toName:    "staging",
			wantedErr: "cannot promote from production to staging",
		},
		"unknown environment": {
			fromName:  "qa",
			toName:    "production",
			wantedErr: `environment "qa"`,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			opts := &promoteOpts{
				promoteVars: promoteVars{
					GlobalOpts: &GlobalOpts{},
					fromName:   tc.fromName,
					toName:     tc.toName,
				},
			}

			err := opts.Validate()

			if tc.wantedErr != "" {
				require.ErrorContains(t, err, tc.wantedErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPromoteOpts_Ask(t *testing.T) {
	t.Run("confirms production promotions", func(t *testing.T) {
		asked := false
		opts := &promoteOpts{
			promoteVars: promoteVars{GlobalOpts: &GlobalOpts{
				prompt: &promptDouble{confirmFn: func(message, _ string, _ ...prompt.Option) (bool, error) {
					asked = true
					require.Contains(t, message, "CountMaster")
					return true, nil
				}},
			}},
			from: apps.EnvStaging,
			to:   apps.EnvProduction,
			app:  cliTestApp(),
		}

		require.NoError(t, opts.Ask())
		require.True(t, asked)
	})

	t.Run("declining the prompt cancels the promotion", func(t *testing.T) {
		opts := &promoteOpts{
			promoteVars: promoteVars{GlobalOpts: &GlobalOpts{
				prompt: &promptDouble{confirmFn: func(_, _ string, _ ...prompt.Option) (bool, error) {
					return false, nil
				}},
			}},
			from: apps.EnvStaging,
			to:   apps.EnvProduction,
			app:  cliTestApp(),
		}

		require.ErrorIs(t, opts.Ask(), errPromoteCancelled)
	})

	t.Run("--yes skips the prompt", func(t *testing.T) {
		opts := &promoteOpts{
			promoteVars: promoteVars{
				GlobalOpts: &GlobalOpts{prompt: &promptDouble{confirmFn: func(_, _ string, _ ...prompt.Option) (bool, error) {
					t.Fatal("prompt must not be shown with --yes")
					return false, nil
				}}},
				skipConfirmation: true,
			},
			from: apps.EnvStaging,
			to:   apps.EnvProduction,
			app:  cliTestApp(),
		}

		require.NoError(t, opts.Ask())
	})

	t.Run("non-production promotions are not confirmed", func(t *testing.T) {
		opts := &promoteOpts{
			promoteVars: promoteVars{GlobalOpts: &GlobalOpts{}},
			from:        apps.EnvPreview,
			to:          apps.EnvStaging,
			app:         cliTestApp(),
		}

		require.NoError(t, opts.Ask())
	})
}

func TestPromoteOpts_Execute(t *testing.T) {
	t.Run("promotes and reports the target URL", func(t *testing.T) {
		app := cliTestApp()
		opts := &promoteOpts{
			promoteVars: promoteVars{GlobalOpts: &GlobalOpts{}, actor: "user-1"},
			from:        apps.EnvStaging,
			to:          apps.EnvProduction,
			app:         app,
			promoter: &promoterDouble{promoteFn: func(_ context.Context, got *apps.App, from, to apps.Environment, actor string) (*deploy.PromoteOutcome, error) {
				require.Equal(t, app, got)
				require.Equal(t, apps.EnvStaging, from)
				require.Equal(t, apps.EnvProduction, to)
				require.Equal(t, "user-1", actor)
				return &deploy.PromoteOutcome{AuditID: "dep-9", URL: "https://ab12cd.overskill.app", Digest: "abc123"}, nil
			}},
		}

		require.NoError(t, opts.Execute())
	})

	t.Run("surfaces promotion errors", func(t *testing.T) {
		opts := &promoteOpts{
			promoteVars: promoteVars{GlobalOpts: &GlobalOpts{}},
			from:        apps.EnvStaging,
			to:          apps.EnvProduction,
			app:         cliTestApp(),
			promoter: &promoterDouble{promoteFn: func(_ context.Context, _ *apps.App, _, _ apps.Environment, _ string) (*deploy.PromoteOutcome, error) {
				return nil, errors.New("no script in staging")
			}},
		}

		require.ErrorContains(t, opts.Execute(), "no script in staging")
	})
}
