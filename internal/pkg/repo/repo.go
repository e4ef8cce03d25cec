// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package repo orchestrates tenant repositories on the source host:
// bootstrap of new or forked repositories, atomic file-tree publishes,
// version tagging, and restore from tags.
package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/github"
	"github.com/overskill/launchpad/internal/pkg/template"
	"github.com/overskill/launchpad/internal/pkg/workspace"
)

// Mode selects how Bootstrap obtains a repository.
type Mode int

const (
	// ModeNewRepo creates a fresh private repository and pushes the
	// rendered template file set.
	ModeNewRepo Mode = iota
	// ModeFork forks the designated template repository and overlays the
	// app-specific files.
	ModeFork
)

// WorkflowFileName is the CI workflow installed into every tenant repo.
const WorkflowFileName = "deploy.yml"

// workflowRepoPath is where the rendered workflow lands in the repository.
const workflowRepoPath = ".github/workflows/" + WorkflowFileName

// wranglerRepoPath is where the rendered edge-platform config lands.
const wranglerRepoPath = "wrangler.toml"

// deployMarkerPrefix is the stable commit-message line the build monitor uses
// to correlate a commit with the workflow run it triggered.
const deployMarkerPrefix = "Deploy-Id: "

// envMarkerPrefix is the commit-message line the CI workflow reads to pick
// the wrangler environment it deploys into.
const envMarkerPrefix = "Deploy-Env: "

// AutoFixMessagePrefix marks commits produced by the auto-fix loop.
const AutoFixMessagePrefix = "🔧 Auto-fix build errors"

// Secret names pushed into every tenant repository.
const (
	secretAPIToken  = "CLOUDFLARE_API_TOKEN"
	secretAccountID = "CLOUDFLARE_ACCOUNT_ID"
)

// sourceClient is the subset of the source-host client the orchestrator
// needs.
type sourceClient interface {
	CreateRepo(ctx context.Context, name, description string) (*github.Repository, error)
	ForkRepo(ctx context.Context, templateOwner, templateRepo, newName string) (*github.Repository, error)
	EnableWorkflow(ctx context.Context, repo, workflowFileName string) error
	BatchCommit(ctx context.Context, repo string, files map[string]string, message, branch string) (*github.Commit, error)
	PutSecret(ctx context.Context, repo, name, value string) error
	CreateAnnotatedTag(ctx context.Context, repo, tagName, message, commitSHA string) error
	GetTreeEntries(ctx context.Context, repo, ref string) ([]github.TreeEntry, error)
	GetBlob(ctx context.Context, repo, sha string) ([]byte, error)
}

// Config holds the orchestrator's knobs.
type Config struct {
	Mode Mode
	// TemplateRepo is "org/repo" of the template forked in ModeFork.
	TemplateRepo string
	// RuntimeEnv labels the control-plane instance, used in namespace names.
	RuntimeEnv string

	// Values rendered into tenant configs.
	SupabaseURL     string
	SupabaseAnonKey string

	// Secret values installed on bootstrap. Empty values are skipped.
	CloudflareAPIToken  string
	CloudflareAccountID string
}

// Orchestrator provisions and updates tenant repositories.
type Orchestrator struct {
	cfg    Config
	source sourceClient
	tpl    *template.Template

	now func() time.Time
}

// New returns an Orchestrator using the given source-host client.
func New(cfg Config, source sourceClient) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		source: source,
		tpl:    template.New(),
		now:    time.Now,
	}
}

// BootstrapResult reports what Bootstrap provisioned.
type BootstrapResult struct {
	Repository *github.Repository
	CommitSHA  string
	// FailedSecrets names the secrets that could not be installed. The
	// bootstrap still counts as successful; callers decide whether to
	// surface the partial failure.
	FailedSecrets []string
}

// Bootstrap provisions a repository for an app that has none: it creates or
// forks the repo, renders the CI workflow and the edge-platform config,
// pushes the full template file set in one atomic commit, and installs the
// deployment secrets. Failures after repository creation surface as
// ErrPartialBootstrap and leave the repository as-is; there is no rollback.
func (o *Orchestrator) Bootstrap(ctx context.Context, app *apps.App) (*BootstrapResult, error) {
	if app.HasRepository() {
		return nil, fmt.Errorf("app %s already has repository %s", app.PublicID, app.RepositoryFullName)
	}
	repoName := RepoName(app)

	var (
		repository *github.Repository
		err        error
	)
	switch o.cfg.Mode {
	case ModeFork:
		tmplOwner, tmplRepo, splitErr := apps.SplitRepository(o.cfg.TemplateRepo)
		if splitErr != nil {
			return nil, splitErr
		}
		repository, err = o.source.ForkRepo(ctx, tmplOwner, tmplRepo, repoName)
	default:
		repository, err = o.source.CreateRepo(ctx, repoName, fmt.Sprintf("Source for %s", app.Name))
	}
	if err != nil {
		return nil, fmt.Errorf("provision repository for app %s: %w", app.PublicID, err)
	}
	_, shortName, err := apps.SplitRepository(repository.FullName)
	if err != nil {
		return nil, err
	}

	files, err := o.renderBootstrapFiles(app)
	if err != nil {
		return nil, &ErrPartialBootstrap{Step: "render templates", Err: err}
	}

	// Private forks do not run workflows until they are enabled; do it
	// before the first push so the bootstrap commit triggers a build.
	if o.cfg.Mode == ModeFork {
		if err := o.source.EnableWorkflow(ctx, shortName, WorkflowFileName); err != nil {
			return nil, &ErrPartialBootstrap{Step: "enable workflows", Err: err}
		}
	}

	message := commitMessage(files, "Bootstrap "+app.Name, "", "")
	commit, err := o.source.BatchCommit(ctx, shortName, files, message, repository.DefaultBranch)
	if err != nil {
		return nil, &ErrPartialBootstrap{Step: "push template files", Err: err}
	}

	if err := app.AssignRepository(repository.FullName, repository.ID); err != nil {
		return nil, err
	}

	result := &BootstrapResult{Repository: repository, CommitSHA: commit.CommitSHA}
	result.FailedSecrets = o.installSecrets(ctx, shortName)
	return result, nil
}

// installSecrets pushes the deployment secrets, skipping unset values.
// Failing names are collected rather than aborting the bootstrap.
func (o *Orchestrator) installSecrets(ctx context.Context, repoName string) []string {
	secrets := map[string]string{
		secretAPIToken:  o.cfg.CloudflareAPIToken,
		secretAccountID: o.cfg.CloudflareAccountID,
	}
	var failed []string
	for _, name := range []string{secretAPIToken, secretAccountID} {
		value := secrets[name]
		if value == "" {
			continue
		}
		if err := o.source.PutSecret(ctx, repoName, name, value); err != nil {
			failed = append(failed, name)
		}
	}
	return failed
}

// PublishFiles pushes the app's file tree as one atomic commit on the
// default branch. The generated message carries the Deploy-Id marker line
// the build monitor correlates runs with and the Deploy-Env line the CI
// workflow deploys into.
func (o *Orchestrator) PublishFiles(ctx context.Context, app *apps.App, env apps.Environment, files map[string]string, deploymentID string) (*github.Commit, error) {
	return o.publish(ctx, app, env, files, "", deploymentID)
}

// CommitFixes pushes auto-fix patches with the structured fix message.
func (o *Orchestrator) CommitFixes(ctx context.Context, app *apps.App, env apps.Environment, files map[string]string, deploymentID string) (*github.Commit, error) {
	return o.publish(ctx, app, env, files, AutoFixMessagePrefix, deploymentID)
}

func (o *Orchestrator) publish(ctx context.Context, app *apps.App, env apps.Environment, files map[string]string, headline, deploymentID string) (*github.Commit, error) {
	if !app.HasRepository() {
		return nil, fmt.Errorf("app %s has no repository to publish to", app.PublicID)
	}
	for path := range files {
		if err := apps.ValidateFilePath(path); err != nil {
			return nil, err
		}
	}
	_, shortName, err := apps.SplitRepository(app.RepositoryFullName)
	if err != nil {
		return nil, err
	}
	message := commitMessage(files, headline, deploymentID, env)
	commit, err := o.source.BatchCommit(ctx, shortName, files, message, "main")
	if err != nil {
		return nil, fmt.Errorf("publish %d files for app %s: %w", len(files), app.PublicID, err)
	}
	return commit, nil
}

// TagVersion creates the annotated tag "v{version}-{timestamp}" at the
// given commit and returns the tag name.
func (o *Orchestrator) TagVersion(ctx context.Context, app *apps.App, version *apps.AppVersion, commitSHA string) (string, error) {
	if err := apps.ValidateVersionNumber(version.VersionNumber); err != nil {
		return "", err
	}
	_, shortName, err := apps.SplitRepository(app.RepositoryFullName)
	if err != nil {
		return "", err
	}
	tagName := fmt.Sprintf("v%s-%s", version.VersionNumber, o.now().UTC().Format("20060102150405"))
	message := fmt.Sprintf("Version %s of %s", version.VersionNumber, app.Name)
	if version.Changelog != "" {
		message += "\n\n" + version.Changelog
	}
	if err := o.source.CreateAnnotatedTag(ctx, shortName, tagName, message, commitSHA); err != nil {
		return "", err
	}
	return tagName, nil
}

// RestoredFile is one file change computed by Restore.
type RestoredFile struct {
	Path   string
	Action apps.FileAction
}

// Restore resolves the tag's tree, fetches every non-skipped blob, and
// returns the file set to rewrite the app with plus the per-file changes
// relative to current.
func (o *Orchestrator) Restore(ctx context.Context, app *apps.App, tagName string, current map[string]string) (map[string]string, []RestoredFile, error) {
	_, shortName, err := apps.SplitRepository(app.RepositoryFullName)
	if err != nil {
		return nil, nil, err
	}
	entries, err := o.source.GetTreeEntries(ctx, shortName, tagName)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve tag %s of app %s: %w", tagName, app.PublicID, err)
	}

	restored := make(map[string]string)
	for _, entry := range entries {
		if workspace.Skipped(entry.Path) {
			continue
		}
		blob, err := o.source.GetBlob(ctx, shortName, entry.SHA)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch %s at tag %s: %w", entry.Path, tagName, err)
		}
		restored[entry.Path] = string(blob)
	}

	var changes []RestoredFile
	for _, path := range workspace.SortedPaths(restored) {
		prior, existed := current[path]
		switch {
		case !existed:
			changes = append(changes, RestoredFile{Path: path, Action: apps.FileCreated})
		case prior != restored[path]:
			changes = append(changes, RestoredFile{Path: path, Action: apps.FileUpdated})
		}
	}
	for _, path := range workspace.SortedPaths(current) {
		if _, kept := restored[path]; !kept {
			changes = append(changes, RestoredFile{Path: path, Action: apps.FileDeleted})
		}
	}
	return restored, changes, nil
}

// targetEnv is one wrangler environment block rendered into the tenant's
// config: its script name and the dispatch namespace it uploads into.
type targetEnv struct {
	Name      string
	Script    string
	Namespace string
}

// renderBootstrapFiles renders the template file set plus the CI workflow
// and the edge-platform config for the app. The config carries one wrangler
// environment per deployable environment so the workflow can upload into
// the namespace matching the deploy target.
func (o *Orchestrator) renderBootstrapFiles(app *apps.App) (map[string]string, error) {
	environments := make([]targetEnv, 0, len(apps.Environments))
	for _, env := range apps.Environments {
		environments = append(environments, targetEnv{
			Name:      string(env),
			Script:    app.ScriptName(env),
			Namespace: env.NamespaceName(o.cfg.RuntimeEnv),
		})
	}
	data := map[string]interface{}{
		"AppID":           app.PublicID,
		"AppName":         app.Name,
		"OwnerID":         app.TeamID,
		"SupabaseURL":     o.cfg.SupabaseURL,
		"SupabaseAnonKey": o.cfg.SupabaseAnonKey,
		"ScriptName":      app.ScriptName(apps.EnvProduction),
		"Environments":    environments,
	}

	files, err := o.tpl.ParseBootstrap(data)
	if err != nil {
		return nil, err
	}
	workflow, err := o.tpl.Parse(template.WorkflowPath, data)
	if err != nil {
		return nil, err
	}
	files[workflowRepoPath] = workflow.String()
	wrangler, err := o.tpl.Parse(template.WranglerPath, data)
	if err != nil {
		return nil, err
	}
	files[wranglerRepoPath] = wrangler.String()
	return files, nil
}

// commitMessage summarizes the file set: count, up to three representative
// paths, and the Deploy-Id and Deploy-Env marker lines when a deployment id
// is given.
func commitMessage(files map[string]string, headline, deploymentID string, env apps.Environment) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	shown := paths
	if len(shown) > 3 {
		shown = shown[:3]
	}
	summary := fmt.Sprintf("Deploy %d files: %s", len(paths), strings.Join(shown, ", "))
	if len(paths) > 3 {
		summary += fmt.Sprintf(" (+%d more)", len(paths)-3)
	}

	var b strings.Builder
	if headline != "" {
		b.WriteString(headline)
		b.WriteString("\n\n")
	}
	b.WriteString(summary)
	if deploymentID != "" {
		b.WriteString("\n\n")
		b.WriteString(deployMarkerPrefix)
		b.WriteString(deploymentID)
		if env != "" {
			b.WriteString("\n")
			b.WriteString(envMarkerPrefix)
			b.WriteString(string(env))
		}
	}
	return b.String()
}

// DeployMarker returns the marker line for a deployment id, used by the
// build monitor to match commits to runs.
func DeployMarker(deploymentID string) string {
	return deployMarkerPrefix + deploymentID
}

// RepoName derives the repository name an app's sources live under.
func RepoName(app *apps.App) string {
	return "app-" + strings.ToLower(app.PublicID)
}
