// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/deploy"
	"github.com/overskill/launchpad/internal/pkg/github"
	"github.com/overskill/launchpad/internal/pkg/repo"
	"github.com/overskill/launchpad/internal/pkg/term/color"
	"github.com/overskill/launchpad/internal/pkg/term/log"
	"github.com/overskill/launchpad/internal/pkg/term/progress"
	"github.com/overskill/launchpad/internal/pkg/workspace"
)

type deployVars struct {
	*GlobalOpts
	envName   string
	version   string
	changelog string
	actor     string
}

type deployOpts struct {
	deployVars
	env apps.Environment

	ws       wsFileReader
	app      *apps.App
	deployer deployer
	repos    repoGetter
	boot     bootstrapper

	// renderProgress consumes the sink for the lifetime of a deployment.
	// Overridden in tests.
	renderProgress func(ctx context.Context, sink *progress.Sink)
}

type wsFileReader interface {
	Files() (map[string]string, error)
}

type deployer interface {
	Deploy(ctx context.Context, in deploy.Input) (*deploy.Outcome, error)
}

type repoGetter interface {
	GetRepo(ctx context.Context, name string) (*github.Repository, error)
}

type bootstrapper interface {
	Bootstrap(ctx context.Context, app *apps.App) (*repo.BootstrapResult, error)
}

func newDeployOpts(vars deployVars) (*deployOpts, error) {
	deps, err := buildDeps()
	if err != nil {
		return nil, err
	}
	ws, app, _, err := loadWorkspaceApp(vars.workspaceDir)
	if err != nil {
		return nil, err
	}
	opts := &deployOpts{
		deployVars: vars,
		ws:         ws,
		app:        app,
		deployer:   deps.coordinator,
		repos:      deps.source,
		boot:       deps.orchestrator,
	}
	opts.renderProgress = func(ctx context.Context, sink *progress.Sink) {
		component := progress.ListenDeployment(app.Name, string(opts.env), sink)
		_, _ = progress.Render(ctx, progress.NewTabbedFileWriter(os.Stderr), component)
	}
	return opts, nil
}

// Validate returns an error if the flag values are invalid.
func (o *deployOpts) Validate() error {
	env, err := parseEnv(o.envName)
	if err != nil {
		return err
	}
	o.env = env
	if o.version != "" {
		if err := apps.ValidateVersionNumber(o.version); err != nil {
			return err
		}
	}
	return nil
}

// Ask is a no-op; deploys run unattended.
func (o *deployOpts) Ask() error {
	return nil
}

// Execute collects the workspace files, makes sure the app has a repository,
// and runs the deployment while rendering its progress.
func (o *deployOpts) Execute() error {
	ctx := context.Background()
	files, err := o.ws.Files()
	if err != nil {
		return err
	}
	if err := o.ensureRepository(ctx); err != nil {
		return err
	}
	log.Infof("Deploying %s files to %s.\n", color.HighlightResource(fmt.Sprintf("%d", len(files))), color.HighlightResource(string(o.env)))
	log.Debugln(fileTree(files))

	sink := progress.NewSink()
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		o.renderProgress(ctx, sink)
	}()

	in := deploy.Input{
		App:   o.app,
		Env:   o.env,
		Files: files,
		Actor: o.actor,
		Sink:  sink,
	}
	if o.version != "" {
		in.Version = &apps.AppVersion{
			AppPublicID:   o.app.PublicID,
			VersionNumber: o.version,
			Changelog:     o.changelog,
			UserID:        o.actor,
			Environment:   o.env,
		}
	}
	outcome, err := o.deployer.Deploy(ctx, in)
	sink.Close()
	<-rendered
	if err != nil {
		return err
	}

	log.Successf("Deployed %s to %s: %s\n", color.HighlightUserInput(o.app.Name), string(o.env), color.HighlightResource(outcome.URL))
	if outcome.Attempts > 1 {
		log.Infof("The build needed %d attempts; fixes were committed to the repository.\n", outcome.Attempts)
	}
	if outcome.TagName != "" {
		log.Infof("Recorded version %s as tag %s.\n", o.version, color.HighlightResource(outcome.TagName))
	}
	return nil
}

// ensureRepository binds the app to its repository, bootstrapping one on the
// first deploy.
func (o *deployOpts) ensureRepository(ctx context.Context) error {
	if o.app.HasRepository() {
		return nil
	}
	repository, err := o.repos.GetRepo(ctx, repo.RepoName(o.app))
	if err == nil {
		return o.app.AssignRepository(repository.FullName, repository.ID)
	}
	var notFound *github.ErrNotFound
	if !errors.As(err, &notFound) {
		return err
	}

	log.Infof("App %s has no repository yet; creating one.\n", color.HighlightUserInput(o.app.Name))
	result, err := o.boot.Bootstrap(ctx, o.app)
	if err != nil {
		return err
	}
	if len(result.FailedSecrets) > 0 {
		log.Warningf("Could not install secrets %s; CI runs will fail until they are set.\n", strings.Join(result.FailedSecrets, ", "))
	}
	log.Successf("Created repository %s.\n", color.HighlightResource(result.Repository.FullName))
	return nil
}

// fileTree renders the commit's file set as a tree for verbose output.
func fileTree(files map[string]string) string {
	tree := treeprint.New()
	tree.SetValue(".")
	branches := map[string]treeprint.Tree{"": tree}
	for _, path := range workspace.SortedPaths(files) {
		parts := strings.Split(path, "/")
		prefix := ""
		for _, part := range parts[:len(parts)-1] {
			next := prefix + part + "/"
			if _, ok := branches[next]; !ok {
				branches[next] = branches[prefix].AddBranch(part)
			}
			prefix = next
		}
		branches[prefix].AddNode(parts[len(parts)-1])
	}
	return tree.String()
}

// BuildDeployCmd builds the command for deploying a workspace.
func BuildDeployCmd() *cobra.Command {
	vars := deployVars{
		GlobalOpts: NewGlobalOpts(),
	}
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Publish the workspace's app to an environment.",
		Long: `Publish the workspace's app to an environment.
Pushes the app's files in a single commit, watches the CI run it triggers,
and retries with automatic fixes when the build fails with a known error.`,
		Example: `
  Deploy the current directory to the preview environment.
  /code $ launchpad deploy --env preview
  Deploy and record version 1.2.0.
  /code $ launchpad deploy --env staging --version 1.2.0 --changelog "Dark mode"`,
		RunE: runCmdE(func(cmd *cobra.Command, args []string) error {
			opts, err := newDeployOpts(vars)
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
	cmd.Flags().StringVarP(&vars.envName, envFlag, envFlagShort, string(apps.EnvPreview), envFlagDescription)
	cmd.Flags().StringVarP(&vars.workspaceDir, dirFlag, dirFlagShort, ".", dirFlagDescription)
	cmd.Flags().StringVar(&vars.version, versionFlag, "", versionFlagDescription)
	cmd.Flags().StringVar(&vars.changelog, changelogFlag, "", changelogFlagDescription)
	cmd.Flags().StringVar(&vars.actor, actorFlag, "", actorFlagDescription)
	return cmd
}
