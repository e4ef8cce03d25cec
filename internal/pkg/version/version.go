// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package version holds variables for generating version information.
package version

// Version is this binary's version. Set with linker flags when building launchpad.
var Version string

// UserAgent identifies this binary in requests against the source host and
// the edge platform.
func UserAgent() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	return "launchpad/" + v
}
