// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package credentials

import (
	"fmt"
)

// ErrMissingCredential means the app's RSA signing key is not configured, so
// no installation token can ever be minted.
type ErrMissingCredential struct{}

func (e *ErrMissingCredential) Error() string {
	return "github app signing key is not configured"
}

// ErrInstallationNotFound means the app is not installed on the requested
// organization.
type ErrInstallationNotFound struct {
	Org string
}

func (e *ErrInstallationNotFound) Error() string {
	return fmt.Sprintf("no installation of the github app found for organization %q", e.Org)
}

// ErrUnauthorized means the source host rejected the app's credentials.
type ErrUnauthorized struct {
	Op   string
	Code int
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("%s: source host rejected the app credentials with status %d", e.Op, e.Code)
}
