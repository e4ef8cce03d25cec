// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package templates holds the static assets embedded in the launchpad
// binary: the tenant CI workflow, the edge platform config, the shared
// dispatch worker source, and the bootstrap file set for fresh repositories.
package templates

import "embed"

//go:embed workflows wrangler dispatch bootstrap
var FS embed.FS
