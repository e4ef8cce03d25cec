// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/deploy"
	"github.com/overskill/launchpad/internal/pkg/github"
	"github.com/overskill/launchpad/internal/pkg/repo"
	"github.com/overskill/launchpad/internal/pkg/state"
	"github.com/overskill/launchpad/internal/pkg/term/color"
	"github.com/overskill/launchpad/internal/pkg/term/log"
	"github.com/overskill/launchpad/internal/pkg/term/progress"
)

type restoreVars struct {
	*GlobalOpts
	tagName string
	envName string
	actor   string
}

type restoreOpts struct {
	restoreVars
	env apps.Environment

	ws       wsFileReader
	app      *apps.App
	restorer restorer
	deployer deployer
	repos    repoGetter
	versions versionGetter

	// renderProgress consumes the sink for the lifetime of a deployment.
	// Overridden in tests.
	renderProgress func(ctx context.Context, sink *progress.Sink)
}

type restorer interface {
	Restore(ctx context.Context, app *apps.App, tagName string, current map[string]string) (map[string]string, []repo.RestoredFile, error)
}

type versionGetter interface {
	VersionByTag(ctx context.Context, appID, tagName string) (*state.AppVersion, error)
}

func newRestoreOpts(vars restoreVars) (*restoreOpts, error) {
	deps, err := buildDeps()
	if err != nil {
		return nil, err
	}
	ws, app, _, err := loadWorkspaceApp(vars.workspaceDir)
	if err != nil {
		return nil, err
	}
	opts := &restoreOpts{
		restoreVars: vars,
		ws:          ws,
		app:         app,
		restorer:    deps.orchestrator,
		deployer:    deps.coordinator,
		repos:       deps.source,
		versions:    deps.store,
	}
	opts.renderProgress = func(ctx context.Context, sink *progress.Sink) {
		component := progress.ListenDeployment(app.Name, string(opts.env), sink)
		_, _ = progress.Render(ctx, progress.NewTabbedFileWriter(os.Stderr), component)
	}
	return opts, nil
}

// Validate returns an error if the flag values are invalid.
func (o *restoreOpts) Validate() error {
	if o.tagName == "" {
		return fmt.Errorf("--%s is required", tagFlag)
	}
	env, err := parseEnv(o.envName)
	if err != nil {
		return err
	}
	o.env = env
	return nil
}

// Ask is a no-op; restores run unattended.
func (o *restoreOpts) Ask() error {
	return nil
}

// Execute materializes the tagged snapshot, reports the file changes, and
// redeploys the restored tree.
func (o *restoreOpts) Execute() error {
	ctx := context.Background()
	if err := o.bindRepository(ctx); err != nil {
		return err
	}
	current, err := o.ws.Files()
	if err != nil {
		return err
	}
	restored, changes, err := o.restorer.Restore(ctx, o.app, o.tagName, current)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		log.Infof("The workspace already matches tag %s; nothing to restore.\n", color.HighlightResource(o.tagName))
		return nil
	}
	for _, change := range changes {
		log.Infof("  %s %s\n", actionColor(change.Action), change.Path)
	}

	version, err := o.restoredVersion(ctx)
	if err != nil {
		return err
	}

	sink := progress.NewSink()
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		o.renderProgress(ctx, sink)
	}()
	outcome, err := o.deployer.Deploy(ctx, deploy.Input{
		App:     o.app,
		Env:     o.env,
		Files:   restored,
		Actor:   o.actor,
		Version: version,
		Sink:    sink,
	})
	sink.Close()
	<-rendered
	if err != nil {
		return err
	}
	log.Successf("Restored %s from tag %s: %s\n",
		color.HighlightUserInput(o.app.Name), color.HighlightResource(o.tagName), color.HighlightResource(outcome.URL))
	return nil
}

// bindRepository resolves the app's repository; restore never bootstraps.
func (o *restoreOpts) bindRepository(ctx context.Context) error {
	if o.app.HasRepository() {
		return nil
	}
	repository, err := o.repos.GetRepo(ctx, repo.RepoName(o.app))
	if err != nil {
		var notFound *github.ErrNotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("app %s has no repository; deploy it before restoring", o.app.PublicID)
		}
		return err
	}
	return o.app.AssignRepository(repository.FullName, repository.ID)
}

// restoredVersion builds the version snapshot recorded with a restore. When
// the tag has no stored version row the deploy proceeds without one.
func (o *restoreOpts) restoredVersion(ctx context.Context) (*apps.AppVersion, error) {
	row, err := o.versions.VersionByTag(ctx, o.app.PublicID, o.tagName)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &apps.AppVersion{
		AppPublicID:   o.app.PublicID,
		VersionNumber: row.VersionNumber + apps.RestoredSuffix,
		Changelog:     fmt.Sprintf("Restored from tag %s", o.tagName),
		UserID:        o.actor,
		Environment:   o.env,
	}, nil
}

func actionColor(action apps.FileAction) string {
	switch action {
	case apps.FileCreated:
		return color.Green.Sprint(string(action))
	case apps.FileDeleted:
		return color.Red.Sprint(string(action))
	default:
		return color.Yellow.Sprint(string(action))
	}
}

// BuildRestoreCmd builds the command for restoring a tagged version.
func BuildRestoreCmd() *cobra.Command {
	vars := restoreVars{
		GlobalOpts: NewGlobalOpts(),
	}
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Redeploy the app's files as captured by a version tag.",
		Long: `Redeploy the app's files as captured by a version tag.
Reads the tagged tree from the repository, reports what changes against the
workspace, and deploys the restored file set.`,
		Example: `
  Restore the preview environment to version 3.
  /code $ launchpad restore --tag v3.0.0-20240514093000`,
		RunE: runCmdE(func(cmd *cobra.Command, args []string) error {
			opts, err := newRestoreOpts(vars)
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
	cmd.Flags().StringVar(&vars.tagName, tagFlag, "", tagFlagDescription)
	cmd.Flags().StringVarP(&vars.envName, envFlag, envFlagShort, string(apps.EnvPreview), envFlagDescription)
	cmd.Flags().StringVarP(&vars.workspaceDir, dirFlag, dirFlagShort, ".", dirFlagDescription)
	cmd.Flags().StringVar(&vars.actor, actorFlag, "", actorFlagDescription)
	return cmd
}
