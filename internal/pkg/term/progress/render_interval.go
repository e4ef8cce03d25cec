//go:build !windows

// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"os"
	"time"
)

var (
	renderInterval = 100 * time.Millisecond // How frequently Render should be invoked.
)

func init() {
	if os.Getenv("CI") == "true" {
		renderInterval = 30 * time.Second
	}
}
