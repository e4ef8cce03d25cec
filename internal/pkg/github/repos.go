// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-github/v45/github"
)

const (
	// forkReadyAttempts bounds the wait for an asynchronous fork to become
	// queryable. Forks of small template repos are usually ready within
	// seconds.
	forkReadyAttempts = 10
	forkReadyDelay    = 2 * time.Second
)

// Repository describes a repository this client created or forked.
type Repository struct {
	ID            int64
	FullName      string
	DefaultBranch string
}

// CreateRepo creates a new private repository in the client's organization.
// The repository is auto-initialized so that its default branch exists and
// the first BatchCommit has a HEAD to build on.
func (c *Client) CreateRepo(ctx context.Context, name, description string) (*Repository, error) {
	repo, resp, err := c.repos.Create(ctx, c.org, &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(true),
		AutoInit:    github.Bool(true),
	})
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("create repository %s/%s", c.org, name), resp, err)
	}
	return toRepository(repo), nil
}

// ForkRepo forks the template repository templateOwner/templateRepo into the
// client's organization, waits for the asynchronous fork to become ready, and
// renames it to newName. The fork starts out private with workflows disabled;
// callers must enable the deploy workflow before the first push.
func (c *Client) ForkRepo(ctx context.Context, templateOwner, templateRepo, newName string) (*Repository, error) {
	op := fmt.Sprintf("fork %s/%s into %s", templateOwner, templateRepo, c.org)
	fork, resp, err := c.repos.CreateFork(ctx, templateOwner, templateRepo, &github.RepositoryCreateForkOptions{
		Organization: c.org,
	})
	// The fork endpoint answers 202 while the fork is created asynchronously.
	var accepted *github.AcceptedError
	if err != nil && !errors.As(err, &accepted) {
		return nil, c.mapErr(op, resp, err)
	}

	forkName := templateRepo
	if fork != nil && fork.GetName() != "" {
		forkName = fork.GetName()
	}
	ready, err := c.waitRepoReady(ctx, forkName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if forkName != newName {
		renamed, resp, err := c.repos.Edit(ctx, c.org, forkName, &github.Repository{Name: github.String(newName)})
		if err != nil {
			return nil, c.mapErr(fmt.Sprintf("rename fork %s/%s to %s", c.org, forkName, newName), resp, err)
		}
		ready = renamed
	}
	return toRepository(ready), nil
}

// GetRepo fetches a repository in the client's organization by name.
func (c *Client) GetRepo(ctx context.Context, name string) (*Repository, error) {
	repo, resp, err := c.repos.Get(ctx, c.org, name)
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("repository %s/%s", c.org, name), resp, err)
	}
	return toRepository(repo), nil
}

// EnableWorkflow turns on the named workflow file. Private forks do not run
// workflows until they are explicitly enabled.
func (c *Client) EnableWorkflow(ctx context.Context, repo, workflowFileName string) error {
	resp, err := c.actions.EnableWorkflowByFileName(ctx, c.org, repo, workflowFileName)
	if err != nil {
		return c.mapErr(fmt.Sprintf("enable workflow %s in %s/%s", workflowFileName, c.org, repo), resp, err)
	}
	return nil
}

// waitRepoReady polls until the repository answers GET requests.
func (c *Client) waitRepoReady(ctx context.Context, name string) (*github.Repository, error) {
	var lastErr error
	for attempt := 0; attempt < forkReadyAttempts; attempt += 1 {
		if attempt > 0 {
			if err := c.sleep(ctx, forkReadyDelay); err != nil {
				return nil, err
			}
		}
		repo, resp, err := c.repos.Get(ctx, c.org, name)
		if err == nil {
			return repo, nil
		}
		lastErr = c.mapErr(fmt.Sprintf("repository %s/%s", c.org, name), resp, err)
		if !isNotFoundErr(lastErr) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("fork did not become ready: %w", lastErr)
}

func toRepository(repo *github.Repository) *Repository {
	branch := repo.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}
	return &Repository{
		ID:            repo.GetID(),
		FullName:      repo.GetFullName(),
		DefaultBranch: branch,
	}
}
