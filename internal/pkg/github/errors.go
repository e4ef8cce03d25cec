// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"fmt"
	"time"
)

// ErrNotFound means the requested resource does not exist on the source host.
type ErrNotFound struct {
	Resource string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s does not exist on the source host", e.Resource)
}

// ErrConflict means an optimistic-concurrency check failed: either a file's
// SHA moved underneath a put after all retries, or a branch ref advanced
// between reading HEAD and fast-forwarding it.
type ErrConflict struct {
	Path string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s was modified concurrently", e.Path)
}

// ErrUnauthorized means the source host rejected the installation token.
type ErrUnauthorized struct {
	Op string
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("%s: source host rejected the installation token", e.Op)
}

// ErrRateLimited means the source host throttled us past the transport's
// Retry-After handling.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("source host rate limit exceeded, retry after %v", e.RetryAfter)
}

// ErrPermanent is any other client error the source host will keep returning
// for the same request.
type ErrPermanent struct {
	Op   string
	Code int
	Body string
}

func (e *ErrPermanent) Error() string {
	return fmt.Sprintf("%s: source host returned status %d: %s", e.Op, e.Code, e.Body)
}

// ErrTransient is a server or network failure that survived the transport's
// bounded retries. Callers may try again later.
type ErrTransient struct {
	Op  string
	Err error
}

func (e *ErrTransient) Error() string {
	return fmt.Sprintf("%s: transient source host failure: %v", e.Op, e.Err)
}

func (e *ErrTransient) Unwrap() error {
	return e.Err
}
