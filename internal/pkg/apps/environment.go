// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package apps holds the tenant domain model shared across the deployment
// control plane: applications, their source files, immutable version
// snapshots, and the deployment environments they target.
package apps

import (
	"fmt"
)

// Environment is one of the three deployment targets an app can be
// published to. Each environment maps to exactly one dispatch namespace.
type Environment string

const (
	// EnvPreview hosts throwaway builds addressable under a "preview-" host prefix.
	EnvPreview Environment = "preview"
	// EnvStaging hosts release candidates addressable under a "staging-" host prefix.
	EnvStaging Environment = "staging"
	// EnvProduction hosts live tenant apps on their bare subdomain.
	EnvProduction Environment = "production"
)

// Environments lists all deployment environments in promotion order.
var Environments = []Environment{EnvPreview, EnvStaging, EnvProduction}

// ParseEnvironment converts a user-supplied string into an Environment.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvPreview, EnvStaging, EnvProduction:
		return Environment(s), nil
	default:
		return "", fmt.Errorf("environment %q must be one of preview, staging, or production", s)
	}
}

// IsValid reports whether env is a member of the closed environment set.
func (env Environment) IsValid() bool {
	_, err := ParseEnvironment(string(env))
	return err == nil
}

// NamespaceName returns the dispatch namespace that hosts scripts for env on
// the given control-plane instance, e.g. "overskill-production-preview".
func (env Environment) NamespaceName(runtimeEnv string) string {
	return fmt.Sprintf("overskill-%s-%s", runtimeEnv, env)
}

// HostPrefix returns the label prefix that encodes env in tenant hostnames:
// "preview-" and "staging-" for the non-production environments, empty for
// production.
func (env Environment) HostPrefix() string {
	switch env {
	case EnvPreview:
		return "preview-"
	case EnvStaging:
		return "staging-"
	default:
		return ""
	}
}

// CanPromoteTo reports whether a compiled script may be copied from env into
// target without a rebuild. Only preview→staging and staging→production are
// allowed.
func (env Environment) CanPromoteTo(target Environment) bool {
	switch {
	case env == EnvPreview && target == EnvStaging:
		return true
	case env == EnvStaging && target == EnvProduction:
		return true
	default:
		return false
	}
}
