// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package deploy drives a deployment end to end: push the file tree, watch
// the CI run it triggers, auto-fix build failures within the retry budget,
// and record the terminal outcome in the deployment store.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/buildfix"
	"github.com/overskill/launchpad/internal/pkg/dispatch"
	"github.com/overskill/launchpad/internal/pkg/github"
	"github.com/overskill/launchpad/internal/pkg/state"
	"github.com/overskill/launchpad/internal/pkg/stream"
	"github.com/overskill/launchpad/internal/pkg/term/progress"
)

// Monitoring tuning.
const (
	// WallDeadline bounds one CI run watch, discovery included.
	WallDeadline = 600 * time.Second
	// estimatedBuildSeconds sizes the progress bar; typical tenant builds
	// finish around two minutes.
	estimatedBuildSeconds = 120
	// logTailLines bounds how much of each failed job's log feeds the
	// classifier. Build tools print errors last.
	logTailLines = 20
)

// sourcePublisher pushes commits and tags to the app's repository.
type sourcePublisher interface {
	PublishFiles(ctx context.Context, app *apps.App, env apps.Environment, files map[string]string, deploymentID string) (*github.Commit, error)
	CommitFixes(ctx context.Context, app *apps.App, env apps.Environment, files map[string]string, deploymentID string) (*github.Commit, error)
	TagVersion(ctx context.Context, app *apps.App, version *apps.AppVersion, commitSHA string) (string, error)
}

// buildHost observes CI runs on the source host.
type buildHost interface {
	stream.RunStatusGetter
	ListJobs(ctx context.Context, repo string, runID int64) ([]*github.Job, error)
	JobLogs(ctx context.Context, repo string, jobID int64) ([]byte, error)
}

// edgePublisher provisions the shared edge infrastructure, makes deployed
// scripts routable, and moves compiled scripts between environments.
type edgePublisher interface {
	EnsureInfrastructure(ctx context.Context) error
	EnsureRoute(ctx context.Context, app *apps.App, env apps.Environment) (string, error)
	Promote(ctx context.Context, app *apps.App, from, to apps.Environment, info dispatch.PublishInfo) (*dispatch.PublishResult, []byte, error)
}

// deploymentStore records deployment rows and version snapshots.
type deploymentStore interface {
	Begin(ctx context.Context, appID string, env apps.Environment, deploymentID, actor string, metadata map[string]interface{}) (*state.Handle, error)
	Complete(ctx context.Context, h *state.Handle, url string) error
	Fail(ctx context.Context, h *state.Handle, cause error, summary map[string]interface{}) error
	SaveVersion(ctx context.Context, v *state.AppVersion) error
	AssignVersionTag(ctx context.Context, versionID uint, tagName string) error
}

// Coordinator runs deployments. One Deploy call owns one (app, env) key for
// its whole lifetime; concurrent deploys of other keys are independent.
type Coordinator struct {
	source sourcePublisher
	host   buildHost
	edge   edgePublisher
	store  deploymentStore

	wallDeadline time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// New returns a Coordinator wired to the given collaborators.
func New(source sourcePublisher, host buildHost, edge edgePublisher, store deploymentStore) *Coordinator {
	return &Coordinator{
		source:       source,
		host:         host,
		edge:         edge,
		store:        store,
		wallDeadline: WallDeadline,
		sleep:        sleepCtx,
		now:          time.Now,
	}
}

// Input describes one deployment request.
type Input struct {
	App   *apps.App
	Env   apps.Environment
	Files map[string]string
	Actor string
	// Version, when set, snapshots the deploy: the version row is persisted
	// and an annotated tag is created at the pushed commit.
	Version *apps.AppVersion
	// Sink receives progress updates; nil disables them.
	Sink *progress.Sink
}

// Outcome reports a successful deployment.
type Outcome struct {
	AuditID  string
	RunID    int64
	URL      string
	ElapsedS int
	// Attempts counts CI runs, the initial one included.
	Attempts int
	TagName  string
}

// Deploy pushes the app's files, watches the triggered CI run, and retries
// with auto-fix commits while the budget allows. On success the deployment
// row records the public URL; on failure it records the error summary.
// Cancellation aborts promptly and leaves the in-flight row untouched.
func (c *Coordinator) Deploy(ctx context.Context, in Input) (*Outcome, error) {
	if !in.Env.IsValid() {
		return nil, fmt.Errorf("environment %q is not deployable", in.Env)
	}
	if !in.App.HasRepository() {
		return nil, fmt.Errorf("app %s has no repository; bootstrap it first", in.App.PublicID)
	}
	if len(in.Files) == 0 {
		return nil, fmt.Errorf("app %s has no files to deploy", in.App.PublicID)
	}

	// Namespaces and the dispatch worker must exist before CI can upload
	// the script anywhere.
	if err := c.edge.EnsureInfrastructure(ctx); err != nil {
		return nil, err
	}

	handle, err := c.store.Begin(ctx, in.App.PublicID, in.Env, in.App.ScriptName(in.Env), in.Actor, map[string]interface{}{
		"file_count": len(in.Files),
	})
	if err != nil {
		return nil, err
	}

	outcome, err := c.run(ctx, in, handle)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation leaves the row deploying; a later deploy attempt
			// or an operator resolves it.
			return nil, fmt.Errorf("deployment %s cancelled: %w", handle.AuditID, ctx.Err())
		}
		var summary map[string]interface{}
		var buildErr *ErrBuildFailed
		if errors.As(err, &buildErr) {
			summary = buildErr.Summary()
		}
		if failErr := c.store.Fail(ctx, handle, err, summary); failErr != nil {
			return nil, fmt.Errorf("%w (additionally: %v)", err, failErr)
		}
		return nil, err
	}
	outcome.AuditID = handle.AuditID
	return outcome, nil
}

// run executes the push-watch-fix loop for one open deployment row.
func (c *Coordinator) run(ctx context.Context, in Input, handle *state.Handle) (*Outcome, error) {
	_, repoName, err := apps.SplitRepository(in.App.RepositoryFullName)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	commit, err := c.source.PublishFiles(ctx, in.App, in.Env, in.Files, handle.AuditID)
	if err != nil {
		return nil, err
	}

	var tagName string
	if in.Version != nil {
		tagName, err = c.recordVersion(ctx, in, commit.CommitSHA)
		if err != nil {
			return nil, err
		}
	}

	// Working copy for cumulative auto-fixes across attempts.
	files := make(map[string]string, len(in.Files))
	for path, content := range in.Files {
		files[path] = content
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last, err := c.watchRun(ctx, repoName, commit.CommitSHA, handle.AuditID, in.Sink)
		if err != nil {
			return nil, err
		}
		if last.Conclusion == "success" {
			url, err := c.edge.EnsureRoute(ctx, in.App, in.Env)
			if err != nil {
				return nil, err
			}
			if err := c.store.Complete(ctx, handle, url); err != nil {
				return nil, err
			}
			c.push(in.Sink, progress.Update{
				RunID:           last.RunID,
				Status:          progress.StatusCompleted,
				ElapsedS:        float64(last.ElapsedS),
				EstimatedTotalS: estimatedBuildSeconds,
				Message:         fmt.Sprintf("Deployed to %s", url),
			})
			return &Outcome{
				RunID:    last.RunID,
				URL:      url,
				ElapsedS: last.ElapsedS,
				Attempts: attempt,
				TagName:  tagName,
			}, nil
		}

		buildErrs, failedJobs, classifyErr := c.classifyFailure(ctx, repoName, last.RunID)
		if classifyErr != nil {
			return nil, classifyErr
		}
		failure := &ErrBuildFailed{RunID: last.RunID, Conclusion: last.Conclusion, Errors: buildErrs, Jobs: failedJobs}

		budget := buildfix.RetryBudget(buildErrs)
		if attempt > budget {
			c.pushFailure(in.Sink, last, failure)
			return nil, failure
		}
		patches := appliedPatches(buildfix.Fix(files, buildErrs))
		if len(patches) == 0 {
			// No fix landed; retrying would replay the same failure.
			c.pushFailure(in.Sink, last, failure)
			return nil, failure
		}
		for path, content := range patches {
			files[path] = content
		}
		commit, err = c.source.CommitFixes(ctx, in.App, in.Env, patches, handle.AuditID)
		if err != nil {
			return nil, err
		}
		if err := c.sleep(ctx, buildfix.RetryDelay(attempt)); err != nil {
			return nil, err
		}
	}
}

// recordVersion persists the snapshot and tags the pushed commit.
func (c *Coordinator) recordVersion(ctx context.Context, in Input, commitSHA string) (string, error) {
	v := in.Version
	if err := v.AssignCommit(commitSHA); err != nil {
		return "", err
	}
	row := &state.AppVersion{
		AppID:         in.App.PublicID,
		VersionNumber: v.VersionNumber,
		Changelog:     v.Changelog,
		UserID:        in.Actor,
		Environment:   string(in.Env),
		CommitSHA:     commitSHA,
	}
	for _, f := range v.Files {
		row.Files = append(row.Files, state.AppVersionFile{Path: f.Path, Action: string(f.Action)})
	}
	if err := c.store.SaveVersion(ctx, row); err != nil {
		return "", err
	}
	tagName, err := c.source.TagVersion(ctx, in.App, v, commitSHA)
	if err != nil {
		return "", err
	}
	if err := c.store.AssignVersionTag(ctx, row.ID, tagName); err != nil {
		return "", err
	}
	return tagName, nil
}

// classifyFailure gathers the failed jobs' log tails and classifies them.
// The raw per-job data is returned alongside the classified errors so the
// failure summary can carry it.
func (c *Coordinator) classifyFailure(ctx context.Context, repoName string, runID int64) ([]buildfix.BuildError, []buildfix.JobLog, error) {
	jobs, err := c.host.ListJobs(ctx, repoName, runID)
	if err != nil {
		return nil, nil, err
	}
	var logs []buildfix.JobLog
	for _, job := range jobs {
		if !job.Failed() {
			continue
		}
		raw, err := c.host.JobLogs(ctx, repoName, job.ID)
		if err != nil {
			return nil, nil, err
		}
		logs = append(logs, buildfix.JobLog{
			JobName:     job.Name,
			JobID:       job.ID,
			Logs:        tailLines(string(raw), logTailLines),
			FailedSteps: job.FailedSteps(),
		})
	}
	return buildfix.Classify(logs), logs, nil
}

func (c *Coordinator) push(sink *progress.Sink, u progress.Update) {
	if sink != nil {
		sink.Push(u)
	}
}

func (c *Coordinator) pushFailure(sink *progress.Sink, last *stream.RunEvent, failure *ErrBuildFailed) {
	c.push(sink, progress.Update{
		RunID:           last.RunID,
		Status:          progress.StatusCompleted,
		ElapsedS:        float64(last.ElapsedS),
		EstimatedTotalS: estimatedBuildSeconds,
		Message:         failure.Error(),
	})
}

// appliedPatches filters the fixer's output down to the files it changed.
func appliedPatches(patches []buildfix.Patch) map[string]string {
	out := make(map[string]string, len(patches))
	for _, p := range patches {
		out[p.Path] = p.Content
	}
	return out
}

// tailLines keeps the last n lines of a log.
func tailLines(s string, n int) string {
	end := len(s)
	for i := 0; i < n; i++ {
		idx := lastNewline(s[:end])
		if idx < 0 {
			return s
		}
		end = idx
	}
	return s[end+1:]
}

func lastNewline(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
