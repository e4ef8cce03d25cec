// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/deploy"
	"github.com/overskill/launchpad/internal/pkg/term/color"
	"github.com/overskill/launchpad/internal/pkg/term/log"
)

const (
	promoteConfirmPrompt     = "Are you sure you want to promote %s to production?"
	promoteConfirmHelpPrompt = "Production promotion swaps the script your users are served. There is no rebuild; the exact staging bytes go live."
)

// errPromoteCancelled means the user declined the confirmation prompt.
var errPromoteCancelled = fmt.Errorf("promotion cancelled")

type promoteVars struct {
	*GlobalOpts
	fromName         string
	toName           string
	actor            string
	skipConfirmation bool
}

type promoteOpts struct {
	promoteVars
	from apps.Environment
	to   apps.Environment

	app      *apps.App
	promoter promoter
}

type promoter interface {
	Promote(ctx context.Context, app *apps.App, from, to apps.Environment, actor string) (*deploy.PromoteOutcome, error)
}

func newPromoteOpts(vars promoteVars) (*promoteOpts, error) {
	deps, err := buildDeps()
	if err != nil {
		return nil, err
	}
	_, app, _, err := loadWorkspaceApp(vars.workspaceDir)
	if err != nil {
		return nil, err
	}
	return &promoteOpts{
		promoteVars: vars,
		app:         app,
		promoter:    deps.coordinator,
	}, nil
}

// Validate returns an error if the environment pair is not a legal promotion.
func (o *promoteOpts) Validate() error {
	from, err := parseEnv(o.fromName)
	if err != nil {
		return err
	}
	to, err := parseEnv(o.toName)
	if err != nil {
		return err
	}
	if !from.CanPromoteTo(to) {
		return fmt.Errorf("cannot promote from %s to %s; promotions move preview→staging and staging→production", from, to)
	}
	o.from, o.to = from, to
	return nil
}

// Ask confirms production promotions unless --yes was passed.
func (o *promoteOpts) Ask() error {
	if o.to != apps.EnvProduction || o.skipConfirmation {
		return nil
	}
	confirmed, err := o.prompt.Confirm(
		fmt.Sprintf(promoteConfirmPrompt, color.HighlightUserInput(o.app.Name)),
		promoteConfirmHelpPrompt)
	if err != nil {
		return fmt.Errorf("promote confirmation prompt: %w", err)
	}
	if !confirmed {
		return errPromoteCancelled
	}
	return nil
}

// Execute copies the compiled script between environments and reports the
// resulting URL.
func (o *promoteOpts) Execute() error {
	outcome, err := o.promoter.Promote(context.Background(), o.app, o.from, o.to, o.actor)
	if err != nil {
		return err
	}
	log.Successf("Promoted %s from %s to %s: %s\n",
		color.HighlightUserInput(o.app.Name), string(o.from), string(o.to), color.HighlightResource(outcome.URL))
	log.Debugf("Script digest %s recorded on deployment %s.\n", outcome.Digest, outcome.AuditID)
	return nil
}

// BuildPromoteCmd builds the command for promoting an app between environments.
func BuildPromoteCmd() *cobra.Command {
	vars := promoteVars{
		GlobalOpts: NewGlobalOpts(),
	}
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Copy an app's compiled script to the next environment.",
		Long: `Copy an app's compiled script to the next environment.
No rebuild happens; the exact bytes serving the source environment go live in the target.`,
		Example: `
  Promote the staging script to production.
  /code $ launchpad promote --from staging --to production`,
		RunE: runCmdE(func(cmd *cobra.Command, args []string) error {
			opts, err := newPromoteOpts(vars)
			if err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			if err := opts.Ask(); err != nil {
				return err
			}
			return opts.Execute()
		}),
	}
	cmd.Flags().StringVar(&vars.fromName, fromFlag, string(apps.EnvStaging), fromFlagDescription)
	cmd.Flags().StringVar(&vars.toName, toFlag, string(apps.EnvProduction), toFlagDescription)
	cmd.Flags().StringVarP(&vars.workspaceDir, dirFlag, dirFlagShort, ".", dirFlagDescription)
	cmd.Flags().StringVar(&vars.actor, actorFlag, "", actorFlagDescription)
	cmd.Flags().BoolVar(&vars.skipConfirmation, yesFlag, false, yesFlagDescription)
	return cmd
}
