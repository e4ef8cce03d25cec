// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-github/v45/github"
)

// Run is one workflow run on the source host.
type Run struct {
	ID      int64
	Name    string
	HeadSHA string
	// CommitMessage is the head commit's message; deploy commits carry the
	// Deploy-Id marker line used to correlate a run with its deployment.
	CommitMessage string
	Status        string // queued, in_progress, completed
	Conclusion    string // success, failure, cancelled, ... (empty until completed)
	HTMLURL       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Completed reports whether the run reached a terminal status.
func (r *Run) Completed() bool {
	return r.Status == "completed"
}

// Succeeded reports whether the run completed successfully.
func (r *Run) Succeeded() bool {
	return r.Completed() && r.Conclusion == "success"
}

// Job is one job within a workflow run.
type Job struct {
	ID         int64
	Name       string
	Status     string
	Conclusion string
	Steps      []Step
}

// Step is one step within a job.
type Step struct {
	Name       string
	Status     string
	Conclusion string
}

// Failed reports whether the job concluded unsuccessfully.
func (j *Job) Failed() bool {
	return j.Status == "completed" && j.Conclusion != "success" && j.Conclusion != "skipped"
}

// FailedSteps returns the names of the job's unsuccessful steps.
func (j *Job) FailedSteps() []string {
	var names []string
	for _, s := range j.Steps {
		if s.Status == "completed" && s.Conclusion == "failure" {
			names = append(names, s.Name)
		}
	}
	return names
}

// RunFilter narrows ListRuns. Zero values mean "any".
type RunFilter struct {
	Branch string
	Status string // queued, in_progress, completed
	// CreatedAfter narrows to runs created at or after the given time.
	CreatedAfter time.Time
}

// ListRuns returns the repository's workflow runs, most recent first.
func (c *Client) ListRuns(ctx context.Context, repo string, filter RunFilter) ([]*Run, error) {
	opts := &github.ListWorkflowRunsOptions{
		Branch:      filter.Branch,
		Status:      filter.Status,
		ListOptions: github.ListOptions{PerPage: 30},
	}
	if !filter.CreatedAfter.IsZero() {
		opts.Created = ">=" + filter.CreatedAfter.UTC().Format(time.RFC3339)
	}
	runs, resp, err := c.actions.ListRepositoryWorkflowRuns(ctx, c.org, repo, opts)
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("list workflow runs in %s/%s", c.org, repo), resp, err)
	}
	out := make([]*Run, 0, len(runs.WorkflowRuns))
	for _, r := range runs.WorkflowRuns {
		out = append(out, toRun(r))
	}
	return out, nil
}

// GetRun fetches a single workflow run by id.
func (c *Client) GetRun(ctx context.Context, repo string, runID int64) (*Run, error) {
	run, resp, err := c.actions.GetWorkflowRunByID(ctx, c.org, repo, runID)
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("workflow run %d in %s/%s", runID, c.org, repo), resp, err)
	}
	return toRun(run), nil
}

// ListJobs returns every job of a workflow run.
func (c *Client) ListJobs(ctx context.Context, repo string, runID int64) ([]*Job, error) {
	opts := &github.ListWorkflowJobsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var out []*Job
	for {
		jobs, resp, err := c.actions.ListWorkflowJobs(ctx, c.org, repo, runID, opts)
		if err != nil {
			return nil, c.mapErr(fmt.Sprintf("jobs of run %d in %s/%s", runID, c.org, repo), resp, err)
		}
		for _, j := range jobs.Jobs {
			out = append(out, toJob(j))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// JobLogs downloads the plain-text log of one job. The source host answers
// the logs endpoint with a redirect to a short-lived archive URL; the
// download itself runs on the long-timeout client.
func (c *Client) JobLogs(ctx context.Context, repo string, jobID int64) ([]byte, error) {
	op := fmt.Sprintf("logs of job %d in %s/%s", jobID, c.org, repo)
	logURL, resp, err := c.actions.GetWorkflowJobLogs(ctx, c.org, repo, jobID, false)
	if err != nil {
		return nil, c.mapErr(op, resp, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request for %s: %w", op, err)
	}
	res, err := c.logHTTP.Do(req)
	if err != nil {
		return nil, &ErrTransient{Op: op, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, &ErrTransient{Op: op, Err: fmt.Errorf("log archive returned status %d", res.StatusCode)}
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &ErrTransient{Op: op, Err: err}
	}
	return body, nil
}

func toRun(r *github.WorkflowRun) *Run {
	return &Run{
		ID:            r.GetID(),
		Name:          r.GetName(),
		HeadSHA:       r.GetHeadSHA(),
		CommitMessage: r.GetHeadCommit().GetMessage(),
		Status:        r.GetStatus(),
		Conclusion:    r.GetConclusion(),
		HTMLURL:       r.GetHTMLURL(),
		CreatedAt:     r.GetCreatedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
	}
}

func toJob(j *github.WorkflowJob) *Job {
	job := &Job{
		ID:         j.GetID(),
		Name:       j.GetName(),
		Status:     j.GetStatus(),
		Conclusion: j.GetConclusion(),
	}
	for _, s := range j.Steps {
		job.Steps = append(job.Steps, Step{
			Name:       s.GetName(),
			Status:     s.GetStatus(),
			Conclusion: s.GetConclusion(),
		})
	}
	return job
}
