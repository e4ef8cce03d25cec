// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/overskill/launchpad/internal/pkg/describe"
	"github.com/overskill/launchpad/internal/pkg/term/log"
)

type statusVars struct {
	*GlobalOpts
	shouldOutputJSON bool
	withAnalytics    bool
}

type statusOpts struct {
	statusVars

	w         io.Writer
	describer statusDescriber
}

type statusDescriber interface {
	Describe(ctx context.Context) (*describe.AppStatus, error)
}

func newStatusOpts(vars statusVars) (*statusOpts, error) {
	deps, err := buildDeps()
	if err != nil {
		return nil, err
	}
	_, app, _, err := loadWorkspaceApp(vars.workspaceDir)
	if err != nil {
		return nil, err
	}
	var analytics describe.AnalyticsGetter
	if vars.withAnalytics {
		analytics = deps.edgeAPI
	}
	return &statusOpts{
		statusVars: vars,
		w:          log.OutputWriter,
		describer:  describe.NewAppStatusDescriber(app, deps.store, deps.edge, analytics),
	}, nil
}

// Validate is a no-op; status takes no constrained inputs.
func (o *statusOpts) Validate() error {
	return nil
}

// Ask is a no-op; status runs unattended.
func (o *statusOpts) Ask() error {
	return nil
}

// Execute prints the app's deployment status per environment.
func (o *statusOpts) Execute() error {
	status, err := o.describer.Describe(context.Background())
	if err != nil {
		return err
	}
	if o.shouldOutputJSON {
		data, err := status.JSONString()
		if err != nil {
			return err
		}
		fmt.Fprint(o.w, data)
		return nil
	}
	fmt.Fprint(o.w, status.HumanString())
	return nil
}

// BuildStatusCmd builds the command for showing an app's deployment status.
func BuildStatusCmd() *cobra.Command {
	vars := statusVars{
		GlobalOpts: NewGlobalOpts(),
	}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Shows the deployment status of the workspace's app.",
		Example: `
  Shows status of the app in the current directory as JSON.
  /code $ launchpad status --json`,
		RunE: runCmdE(func(cmd *cobra.Command, args []string) error {
			opts, err := newStatusOpts(vars)
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
	cmd.Flags().StringVarP(&vars.workspaceDir, dirFlag, dirFlagShort, ".", dirFlagDescription)
	cmd.Flags().BoolVar(&vars.shouldOutputJSON, jsonFlag, false, jsonFlagDescription)
	cmd.Flags().BoolVar(&vars.withAnalytics, analyticsFlag, false, analyticsFlagDescription)
	return cmd
}
