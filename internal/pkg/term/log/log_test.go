// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuccess(t *testing.T) {
	// GIVEN
	b := &strings.Builder{}
	DiagnosticWriter = b

	// WHEN
	Success("hello", " world")

	// THEN
	require.Contains(t, b.String(), "Success!")
	require.Contains(t, b.String(), "hello world")
}

func TestSuccessln(t *testing.T) {
	// GIVEN
	b := &strings.Builder{}
	DiagnosticWriter = b

	// WHEN
	Successln("hello", " world")

	// THEN
	require.Contains(t, b.String(), "Success!")
	require.Contains(t, b.String(), "hello world\n")
}

func TestSuccessf(t *testing.T) {
	// GIVEN
	b := &strings.Builder{}
	DiagnosticWriter = b

	// WHEN
	Successf("%s %s\n", "hello", "world")

	// THEN
	require.Contains(t, b.String(), "Success!")
	require.Contains(t, b.String(), "hello world\n")
}

func TestError(t *testing.T) {
	// GIVEN
	b := &strings.Builder{}
	DiagnosticWriter = b

	// WHEN
	Error("whoops")

	// THEN
	require.Contains(t, b.String(), "Error!")
	require.Contains(t, b.String(), "whoops")
}

func TestErrorln(t *testing.T) {
	// GIVEN
	b := &strings.Builder{}
	DiagnosticWriter = b

	// WHEN
	Errorln("whoops")

	// THEN
	require.Contains(t, b.String(), "Error!")
	require.Contains(t, b.String(), "whoops\n")
}

func TestWarningln(t *testing.T) {
	// GIVEN
	b := &strings.Builder{}
	DiagnosticWriter = b

	// WHEN
	Warningln("beware")

	// THEN
	require.Contains(t, b.String(), "Note:")
	require.Contains(t, b.String(), "beware")
}

func TestInfoln(t *testing.T) {
	// GIVEN
	b := &strings.Builder{}
	DiagnosticWriter = b

	// WHEN
	Infoln("plain text")

	// THEN
	require.Equal(t, "plain text\n", b.String())
}

func TestDebugf(t *testing.T) {
	// GIVEN
	b := &strings.Builder{}
	DiagnosticWriter = b

	// WHEN
	Debugf("attempt %d\n", 2)

	// THEN
	require.Contains(t, b.String(), "attempt 2")
}

func TestLogger(t *testing.T) {
	// GIVEN
	b := &strings.Builder{}
	l := New(b)

	// WHEN
	l.Successln("created repository")
	l.Warningln("route creation degraded")

	// THEN
	require.Contains(t, b.String(), "Success!")
	require.Contains(t, b.String(), "created repository\n")
	require.Contains(t, b.String(), "Note:")
	require.Contains(t, b.String(), "route creation degraded")
}
