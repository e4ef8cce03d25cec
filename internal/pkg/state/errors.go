// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"fmt"

	"github.com/overskill/launchpad/internal/pkg/apps"
)

// ErrDeploymentInFlight means another deployment of the same (app, env) key
// has not reached a terminal state yet.
type ErrDeploymentInFlight struct {
	AppID string
	Env   apps.Environment
}

func (e *ErrDeploymentInFlight) Error() string {
	return fmt.Sprintf("a deployment of app %s to %s is already in flight", e.AppID, e.Env)
}

// ErrIllegalTransition means a caller tried to move a deployment row out of a
// terminal state.
type ErrIllegalTransition struct {
	AuditID string
	From    Status
	To      Status
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("deployment %s cannot transition from %s to %s", e.AuditID, e.From, e.To)
}

// ErrVersionImmutable means a caller tried to overwrite a version's commit
// binding.
type ErrVersionImmutable struct {
	VersionNumber string
	Field         string
}

func (e *ErrVersionImmutable) Error() string {
	return fmt.Sprintf("version %s already has %s set", e.VersionNumber, e.Field)
}
