// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package github is the typed client for the source host. It wraps the
// provider's REST surface with the minimum set of operations the control
// plane needs: file reads and writes with SHA handling, atomic multi-file
// commits through the low-level git data API, repository bootstrap, sealed
// repository secrets, and workflow-run inspection.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/go-github/v45/github"

	"github.com/overskill/launchpad/internal/pkg/github/credentials"
	"github.com/overskill/launchpad/internal/pkg/httpclient"
)

// Service identity stamped as author and committer on every commit this
// system creates.
const (
	commitAuthorName  = "OverSkill Deploy"
	commitAuthorEmail = "deploy@overskill.app"
)

const (
	// putFileAttempts bounds refetch-and-retry cycles on SHA conflicts.
	putFileAttempts = 3
	// putFileRetryUnit scales linearly with the attempt number.
	putFileRetryUnit = 500 * time.Millisecond

	fileMode = "100644"
	blobType = "blob"
)

type reposAPI interface {
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
	Create(ctx context.Context, org string, repo *github.Repository) (*github.Repository, *github.Response, error)
	CreateFork(ctx context.Context, owner, repo string, opts *github.RepositoryCreateForkOptions) (*github.Repository, *github.Response, error)
	Edit(ctx context.Context, owner, repo string, repository *github.Repository) (*github.Repository, *github.Response, error)
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
	CreateFile(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentFileOptions) (*github.RepositoryContentResponse, *github.Response, error)
	UpdateFile(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentFileOptions) (*github.RepositoryContentResponse, *github.Response, error)
}

type gitAPI interface {
	GetRef(ctx context.Context, owner, repo, ref string) (*github.Reference, *github.Response, error)
	CreateRef(ctx context.Context, owner, repo string, ref *github.Reference) (*github.Reference, *github.Response, error)
	UpdateRef(ctx context.Context, owner, repo string, ref *github.Reference, force bool) (*github.Reference, *github.Response, error)
	CreateBlob(ctx context.Context, owner, repo string, blob *github.Blob) (*github.Blob, *github.Response, error)
	GetBlobRaw(ctx context.Context, owner, repo, sha string) ([]byte, *github.Response, error)
	CreateTree(ctx context.Context, owner, repo, baseTree string, entries []*github.TreeEntry) (*github.Tree, *github.Response, error)
	GetTree(ctx context.Context, owner, repo, sha string, recursive bool) (*github.Tree, *github.Response, error)
	CreateCommit(ctx context.Context, owner, repo string, commit *github.Commit) (*github.Commit, *github.Response, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*github.Commit, *github.Response, error)
	CreateTag(ctx context.Context, owner, repo string, tag *github.Tag) (*github.Tag, *github.Response, error)
}

type actionsAPI interface {
	ListRepositoryWorkflowRuns(ctx context.Context, owner, repo string, opts *github.ListWorkflowRunsOptions) (*github.WorkflowRuns, *github.Response, error)
	GetWorkflowRunByID(ctx context.Context, owner, repo string, runID int64) (*github.WorkflowRun, *github.Response, error)
	ListWorkflowJobs(ctx context.Context, owner, repo string, runID int64, opts *github.ListWorkflowJobsOptions) (*github.Jobs, *github.Response, error)
	GetWorkflowJobLogs(ctx context.Context, owner, repo string, jobID int64, followRedirects bool) (*url.URL, *github.Response, error)
	GetRepoPublicKey(ctx context.Context, owner, repo string) (*github.PublicKey, *github.Response, error)
	CreateOrUpdateRepoSecret(ctx context.Context, owner, repo string, eSecret *github.EncryptedSecret) (*github.Response, error)
	EnableWorkflowByFileName(ctx context.Context, owner, repo, workflowFileName string) (*github.Response, error)
}

// Client is a per-organization source host client. All requests authenticate
// with a timely installation token minted by the credential provider.
type Client struct {
	org string

	repos   reposAPI
	git     gitAPI
	actions actionsAPI

	// logHTTP downloads job log archives; these are large, so the client
	// carries a longer per-attempt timeout than the REST client.
	logHTTP *http.Client

	sleep func(context.Context, time.Duration) error
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL string
}

// WithBaseURL points the client at a different API host, e.g. a test server.
// The url must end with a trailing slash.
func WithBaseURL(raw string) Option {
	return func(c *clientConfig) {
		c.baseURL = raw
	}
}

// New returns a Client for repositories under org, authenticating through the
// given credential provider.
func New(provider *credentials.Provider, org string, opts ...Option) (*Client, error) {
	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	rest := httpclient.New(httpclient.WithTransport(provider.Transport(org)))
	gh := github.NewClient(rest)
	if cfg.baseURL != "" {
		base, err := gh.BaseURL.Parse(cfg.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url %q: %w", cfg.baseURL, err)
		}
		gh.BaseURL = base
	}
	return &Client{
		org:     org,
		repos:   gh.Repositories,
		git:     gh.Git,
		actions: gh.Actions,
		// The log archive URLs handed back by the source host are
		// pre-signed, so the download client carries no credentials.
		logHTTP: httpclient.New(httpclient.WithTimeout(httpclient.LogDownloadTimeout)),
		sleep: sleepCtx,
	}, nil
}

// File is the content and blob SHA of one repository file.
type File struct {
	Content string
	SHA     string
}

// Commit identifies a commit created through BatchCommit.
type Commit struct {
	CommitSHA string
	TreeSHA   string
}

// GetFile fetches and base64-decodes a file at ref (empty for the default
// branch). A missing file surfaces as ErrNotFound.
func (c *Client) GetFile(ctx context.Context, repo, path, ref string) (*File, error) {
	op := fmt.Sprintf("file %s/%s:%s", repo, path, refOrDefault(ref))
	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}
	content, _, resp, err := c.repos.GetContents(ctx, c.org, repo, path, opts)
	if err != nil {
		return nil, c.mapErr(op, resp, err)
	}
	if content == nil {
		return nil, &ErrPermanent{Op: op, Code: http.StatusOK, Body: "path is a directory, not a file"}
	}
	decoded, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", op, err)
	}
	return &File{Content: decoded, SHA: content.GetSHA()}, nil
}

// PutFile creates or updates a single file on branch. When the server rejects
// the write because the expected SHA moved, the current SHA is refetched and
// the write retried up to three times with linear, jittered delays; exhaustion
// surfaces as ErrConflict.
func (c *Client) PutFile(ctx context.Context, repo, path, content, message, branch, expectedSHA string) (sha string, err error) {
	sha = expectedSHA
	for attempt := 1; attempt <= putFileAttempts; attempt += 1 {
		if attempt > 1 {
			if err := c.sleep(ctx, httpclient.Jitter(putFileRetryUnit*time.Duration(attempt-1))); err != nil {
				return "", err
			}
			current, err := c.GetFile(ctx, repo, path, branch)
			switch {
			case err == nil:
				sha = current.SHA
			case isNotFoundErr(err):
				sha = ""
			default:
				return "", err
			}
		}

		opts := &github.RepositoryContentFileOptions{
			Message:   github.String(message),
			Content:   []byte(content),
			Branch:    github.String(branch),
			Author:    serviceAuthor(),
			Committer: serviceAuthor(),
		}
		var (
			written *github.RepositoryContentResponse
			resp    *github.Response
		)
		if sha == "" {
			written, resp, err = c.repos.CreateFile(ctx, c.org, repo, path, opts)
		} else {
			opts.SHA = github.String(sha)
			written, resp, err = c.repos.UpdateFile(ctx, c.org, repo, path, opts)
		}
		if err == nil {
			return written.Content.GetSHA(), nil
		}
		if !isConflict(resp) {
			return "", c.mapErr(fmt.Sprintf("put file %s/%s", repo, path), resp, err)
		}
	}
	return "", &ErrConflict{Path: fmt.Sprintf("%s/%s", repo, path)}
}

// BatchCommit publishes every file in files as a single commit on branch and
// fast-forwards the branch ref to it. Either the ref advances to a commit
// whose tree holds every file, or the ref is left untouched: blob, tree, and
// commit creation are invisible until the final ref update, and any failed
// step aborts the sequence.
//
// A conflicting ref update is not retried here; it surfaces as ErrConflict
// and the caller decides whether to re-read and re-commit.
func (c *Client) BatchCommit(ctx context.Context, repo string, files map[string]string, message, branch string) (*Commit, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("batch commit to %s: no files given", repo)
	}
	refName := "heads/" + branch

	ref, resp, err := c.git.GetRef(ctx, c.org, repo, refName)
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("ref %s/%s", repo, refName), resp, err)
	}
	head, resp, err := c.git.GetCommit(ctx, c.org, repo, ref.GetObject().GetSHA())
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("head commit of %s/%s", repo, branch), resp, err)
	}

	entries := make([]*github.TreeEntry, 0, len(files))
	for _, path := range sortedPaths(files) {
		blob, resp, err := c.git.CreateBlob(ctx, c.org, repo, &github.Blob{
			Content:  github.String(files[path]),
			Encoding: github.String("utf-8"),
		})
		if err != nil {
			return nil, c.mapErr(fmt.Sprintf("create blob for %s in %s", path, repo), resp, err)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.String(path),
			Mode: github.String(fileMode),
			Type: github.String(blobType),
			SHA:  github.String(blob.GetSHA()),
		})
	}

	tree, resp, err := c.git.CreateTree(ctx, c.org, repo, head.GetTree().GetSHA(), entries)
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("create tree in %s", repo), resp, err)
	}
	commit, resp, err := c.git.CreateCommit(ctx, c.org, repo, &github.Commit{
		Message: github.String(message),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: head.SHA}},
		Author:  serviceAuthor(),
	})
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("create commit in %s", repo), resp, err)
	}

	ref.Object.SHA = commit.SHA
	if _, resp, err := c.git.UpdateRef(ctx, c.org, repo, ref, false); err != nil {
		if isConflict(resp) || isUnprocessable(resp) {
			return nil, &ErrConflict{Path: fmt.Sprintf("%s/%s", repo, refName)}
		}
		return nil, c.mapErr(fmt.Sprintf("fast-forward %s/%s", repo, refName), resp, err)
	}
	return &Commit{CommitSHA: commit.GetSHA(), TreeSHA: tree.GetSHA()}, nil
}

// mapErr converts a go-github failure into this package's error taxonomy.
func (c *Client) mapErr(op string, resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &ErrRateLimited{RetryAfter: time.Until(rateErr.Rate.Reset.Time)}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &ErrRateLimited{RetryAfter: abuseErr.GetRetryAfter()}
	}
	if resp == nil {
		return &ErrTransient{Op: op, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &ErrNotFound{Resource: op}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &ErrUnauthorized{Op: op}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ErrRateLimited{RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &ErrTransient{Op: op, Err: err}
	default:
		return &ErrPermanent{Op: op, Code: resp.StatusCode, Body: errBody(err)}
	}
}

func serviceAuthor() *github.CommitAuthor {
	return &github.CommitAuthor{
		Name:  github.String(commitAuthorName),
		Email: github.String(commitAuthorEmail),
	}
}

func sortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func refOrDefault(ref string) string {
	if ref == "" {
		return "HEAD"
	}
	return ref
}

func isConflict(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusConflict
}

func isUnprocessable(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusUnprocessableEntity
}

func isNotFoundErr(err error) bool {
	var notFound *ErrNotFound
	return errors.As(err, &notFound)
}

func retryAfter(resp *github.Response) time.Duration {
	if raw := resp.Header.Get("Retry-After"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}

func errBody(err error) string {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Message
	}
	return err.Error()
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
