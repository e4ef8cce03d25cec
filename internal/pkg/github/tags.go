// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v45/github"
)

// CreateAnnotatedTag creates a tag object pointing at commitSHA and the
// refs/tags entry that makes it reachable.
func (c *Client) CreateAnnotatedTag(ctx context.Context, repo, tagName, message, commitSHA string) error {
	op := fmt.Sprintf("tag %s in %s/%s", tagName, c.org, repo)

	tag, resp, err := c.git.CreateTag(ctx, c.org, repo, &github.Tag{
		Tag:     github.String(tagName),
		Message: github.String(message),
		Object: &github.GitObject{
			SHA:  github.String(commitSHA),
			Type: github.String("commit"),
		},
		Tagger: serviceAuthor(),
	})
	if err != nil {
		return c.mapErr("create "+op, resp, err)
	}

	_, resp, err = c.git.CreateRef(ctx, c.org, repo, &github.Reference{
		Ref:    github.String("refs/tags/" + tagName),
		Object: &github.GitObject{SHA: tag.SHA},
	})
	if err != nil {
		return c.mapErr("create ref for "+op, resp, err)
	}
	return nil
}

// TreeEntry is one blob reachable from a tree, as needed by the restore path.
type TreeEntry struct {
	Path string
	SHA  string
	Size int
}

// GetTreeEntries resolves ref (a tag name, branch, or commit SHA) to its tree
// and returns every blob in it, recursively.
func (c *Client) GetTreeEntries(ctx context.Context, repo, ref string) ([]TreeEntry, error) {
	tree, resp, err := c.git.GetTree(ctx, c.org, repo, ref, true)
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("tree %s in %s/%s", ref, c.org, repo), resp, err)
	}
	var entries []TreeEntry
	for _, e := range tree.Entries {
		if e.GetType() != blobType {
			continue
		}
		entries = append(entries, TreeEntry{
			Path: e.GetPath(),
			SHA:  e.GetSHA(),
			Size: e.GetSize(),
		})
	}
	return entries, nil
}

// GetBlob fetches the raw bytes of one blob.
func (c *Client) GetBlob(ctx context.Context, repo, sha string) ([]byte, error) {
	raw, resp, err := c.git.GetBlobRaw(ctx, c.org, repo, sha)
	if err != nil {
		return nil, c.mapErr(fmt.Sprintf("blob %s in %s/%s", sha, c.org, repo), resp, err)
	}
	return raw, nil
}
