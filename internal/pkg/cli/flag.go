// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cli

// Long flag names.
const (
	envFlag       = "env"
	dirFlag       = "dir"
	yesFlag       = "yes"
	jsonFlag      = "json"
	analyticsFlag = "analytics"
	tagFlag       = "tag"
	fromFlag      = "from"
	toFlag        = "to"
	versionFlag   = "version"
	changelogFlag = "changelog"
	actorFlag     = "actor"
)

// Short flag names.
const (
	envFlagShort = "e"
	dirFlagShort = "d"
)

// Descriptions for flags.
const (
	envFlagDescription       = `Target environment: preview, staging, or production.`
	dirFlagDescription       = `Workspace directory holding launchpad.yml and the app's sources.`
	yesFlagDescription       = `Skips confirmation prompt.`
	jsonFlagDescription      = `Optional. Outputs in JSON format.`
	analyticsFlagDescription = `Optional. Includes edge traffic figures for the last 24 hours.`
	tagFlagDescription       = `Version tag to restore, such as "v3-20240514093000".`
	fromFlagDescription      = `Environment to promote from.`
	toFlagDescription        = `Environment to promote to.`
	versionFlagDescription   = `Optional. Records the deploy as a numbered version and tags the commit.`
	changelogFlagDescription = `Optional. Changelog text stored with the version.`
	actorFlagDescription     = `Optional. Identity recorded on the deployment's audit trail.`
)
