// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cloudflare

import (
	"fmt"
	"strings"
)

// ErrNotFound means the requested resource does not exist on the edge platform.
type ErrNotFound struct {
	Resource string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s does not exist on the edge platform", e.Resource)
}

// ErrUnauthorized means the edge platform rejected the account API token.
type ErrUnauthorized struct {
	Op string
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("%s: edge platform rejected the api token", e.Op)
}

// ErrPermanent is a client error the edge platform will keep returning for
// the same request.
type ErrPermanent struct {
	Op     string
	Code   int
	Errors []APIError
}

func (e *ErrPermanent) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, apiErr := range e.Errors {
		msgs = append(msgs, apiErr.Error())
	}
	detail := strings.Join(msgs, "; ")
	if detail == "" {
		detail = "no error detail"
	}
	return fmt.Sprintf("%s: edge platform returned status %d: %s", e.Op, e.Code, detail)
}

// ErrTransient is a server or network failure that survived the transport's
// bounded retries.
type ErrTransient struct {
	Op  string
	Err error
}

func (e *ErrTransient) Error() string {
	return fmt.Sprintf("%s: transient edge platform failure: %v", e.Op, e.Err)
}

func (e *ErrTransient) Unwrap() error {
	return e.Err
}
