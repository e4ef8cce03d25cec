// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"fmt"
	"strings"

	"github.com/overskill/launchpad/internal/pkg/buildfix"
)

// ErrBuildFailed means the CI run concluded unsuccessfully and the auto-fix
// loop could not, or was not allowed to, recover it.
type ErrBuildFailed struct {
	RunID      int64
	Conclusion string
	Errors     []buildfix.BuildError
	// Jobs carries each failed job's name, failed steps, and log tail so
	// the deployment row keeps enough context to debug the failure later.
	Jobs []buildfix.JobLog
}

func (e *ErrBuildFailed) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("build run %d concluded %s with no classifiable errors", e.RunID, e.Conclusion)
	}
	descriptions := make([]string, 0, len(e.Errors))
	for _, be := range e.Errors {
		descriptions = append(descriptions, describeError(be))
	}
	return fmt.Sprintf("build run %d concluded %s: %s", e.RunID, e.Conclusion, strings.Join(descriptions, "; "))
}

// Summary flattens the failure for the deployment row's metadata blob.
func (e *ErrBuildFailed) Summary() map[string]interface{} {
	errs := make([]string, 0, len(e.Errors))
	for _, be := range e.Errors {
		errs = append(errs, describeError(be))
	}
	jobs := make([]map[string]interface{}, 0, len(e.Jobs))
	for _, j := range e.Jobs {
		jobs = append(jobs, map[string]interface{}{
			"name":         j.JobName,
			"failed_steps": j.FailedSteps,
			"log_tail":     j.Logs,
		})
	}
	return map[string]interface{}{
		"run_id":       e.RunID,
		"conclusion":   e.Conclusion,
		"build_errors": errs,
		"failed_jobs":  jobs,
	}
}

func describeError(be buildfix.BuildError) string {
	if be.File == "" {
		return fmt.Sprintf("%s: %s", be.Kind, be.Message)
	}
	return fmt.Sprintf("%s at %s:%d: %s", be.Kind, be.File, be.Line, be.Message)
}
