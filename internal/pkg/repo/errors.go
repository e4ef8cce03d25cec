// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import "fmt"

// ErrPartialBootstrap means the repository exists but a later bootstrap step
// failed. The repository is left as-is; re-running the bootstrap against it
// is not safe and the failure must be resolved by an operator.
type ErrPartialBootstrap struct {
	Step string
	Err  error
}

func (e *ErrPartialBootstrap) Error() string {
	return fmt.Sprintf("bootstrap incomplete at step %q: %v", e.Step, e.Err)
}

func (e *ErrPartialBootstrap) Unwrap() error {
	return e.Err
}
