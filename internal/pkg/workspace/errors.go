// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package workspace

import "fmt"

// ErrManifestNotFound means the directory holds no launchpad.yml and is not
// an app workspace.
type ErrManifestNotFound struct {
	Dir string
}

func (e *ErrManifestNotFound) Error() string {
	return fmt.Sprintf("no %s found in %s", ManifestFileName, e.Dir)
}
