//go:build windows

// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package log

// Log message prefixes, spelled with characters every console codepage renders.
const (
	successPrefix = "√ Success!"
	errorPrefix   = "X Error!"
)
