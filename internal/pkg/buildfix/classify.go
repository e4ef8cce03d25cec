// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package buildfix

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// classifierRule matches one log format variant. The first matching rule per
// line wins; extract turns the submatches into a BuildError.
type classifierRule struct {
	name    string
	pattern *regexp.Regexp
	extract func(match []string) BuildError
}

// rules is the classification table, one entry per log format variant
// observed in tenant CI runs.
var rules = []classifierRule{
	{
		// Modern compiler output surfaced through the CI runner:
		// ##[error]src/App.tsx(12,5): error TS2304: Cannot find name 'foo'.
		name:    "annotated compiler error",
		pattern: regexp.MustCompile(`##\[error\]([^()\s]+)\((\d+),(\d+)\): error TS(\d+): (.+)`),
		extract: func(m []string) BuildError {
			e := BuildError{
				File:    normalizePath(m[1]),
				Line:    atoi(m[2]),
				Column:  atoi(m[3]),
				Message: strings.TrimSpace(m[5]),
			}
			e.Kind, e.Severity = classifyCompilerMessage(e.Message)
			return e
		},
	},
	{
		// Legacy single-line form: Error: src/App.tsx:12:5: message.
		name:    "legacy compiler error",
		pattern: regexp.MustCompile(`Error: ([^:\s]+):(\d+):(\d+): (.+)`),
		extract: func(m []string) BuildError {
			e := BuildError{
				File:    normalizePath(m[1]),
				Line:    atoi(m[2]),
				Column:  atoi(m[3]),
				Message: strings.TrimSpace(m[4]),
			}
			e.Kind, e.Severity = classifyCompilerMessage(e.Message)
			return e
		},
	},
	{
		// Bundler module resolution: Cannot resolve module 'x' from 'src/App.tsx'.
		name:    "module resolution",
		pattern: regexp.MustCompile(`Cannot resolve module '([^']+)' from '([^']+)'`),
		extract: func(m []string) BuildError {
			return BuildError{
				Kind:     KindModuleNotFound,
				File:     normalizePath(m[2]),
				Message:  "cannot resolve module '" + m[1] + "'",
				Severity: SeverityHigh,
			}
		},
	},
	{
		// Package manager failures: npm ERR! ...
		name:    "npm error",
		pattern: regexp.MustCompile(`npm ERR! (.+)`),
		extract: func(m []string) BuildError {
			msg := strings.TrimSpace(m[1])
			kind := KindDependencyResolve
			if strings.Contains(msg, "ERESOLVE") || strings.Contains(msg, "peer dep") || strings.Contains(msg, "conflicting") {
				kind = KindDependencyConflict
			}
			return BuildError{Kind: kind, Message: msg, Severity: SeverityHigh}
		},
	},
	{
		// Tailwind's unknown-utility warning.
		name:    "tailwind warning",
		pattern: regexp.MustCompile(`warn - The utility '([^']+)' is not available`),
		extract: func(m []string) BuildError {
			return BuildError{
				Kind:     KindInvalidTailwind,
				Message:  "unknown tailwind utility '" + m[1] + "'",
				Severity: SeverityLow,
			}
		},
	},
}

// workspaceMarkers anchor path normalization: everything up to and including
// "workspace/", or up to the first known source directory, is runner noise.
var (
	workspaceMarker = "workspace/"
	sourceMarkers   = []string{"src/", "app/", "components/", "pages/", "lib/", "utils/"}
)

// Classify scans every job's logs and returns the deduplicated, classified
// error list. Errors at the same (file, line) are merged keeping the
// highest-severity classification.
func Classify(jobs []JobLog) []BuildError {
	var found []BuildError
	for _, job := range jobs {
		for _, line := range strings.Split(job.Logs, "\n") {
			for _, rule := range rules {
				m := rule.pattern.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				e := rule.extract(m)
				e.Context = strings.TrimSpace(line)
				e.AutoFixable = fixable(e)
				found = append(found, e)
				break
			}
		}
	}
	return dedupe(found)
}

// classifyCompilerMessage maps a compiler message to its kind and severity.
func classifyCompilerMessage(msg string) (ErrorKind, Severity) {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no corresponding closing tag"),
		strings.Contains(lower, "unterminated jsx"):
		return KindJSXUnclosedTag, SeverityMedium
	case strings.Contains(lower, "expected corresponding jsx closing tag"),
		strings.Contains(lower, "closing tag") && strings.Contains(lower, "does not match"):
		return KindJSXTagMismatch, SeverityMedium
	case strings.Contains(lower, "jsx expression"):
		return KindJSXExpressionError, SeverityMedium
	case strings.Contains(lower, "jsx"):
		return KindJSXSyntaxError, SeverityMedium
	case strings.Contains(lower, "'react' refers to a umd global"),
		strings.Contains(lower, "react must be in scope"):
		return KindMissingReactImport, SeverityMedium
	case strings.Contains(lower, "';' expected"),
		strings.Contains(lower, "missing semicolon"):
		return KindMissingSemicolon, SeverityLow
	case strings.Contains(lower, "')' expected"),
		strings.Contains(lower, "'(' expected"):
		return KindMissingParenthesis, SeverityLow
	case strings.Contains(lower, "unterminated string"):
		return KindUnterminatedString, SeverityLow
	case strings.Contains(lower, "cannot find module"):
		return KindModuleNotFound, SeverityHigh
	case strings.Contains(lower, "is declared but") && strings.Contains(lower, "import"):
		return KindMissingImport, SeverityLow
	case strings.Contains(lower, "cannot find name"):
		return KindUndefinedVariable, SeverityMedium
	case strings.Contains(lower, "does not exist on type"):
		return KindPropertyNotFound, SeverityMedium
	case strings.Contains(lower, "cannot read properties of undefined"),
		strings.Contains(lower, "cannot read property"):
		return KindUndefinedPropAccess, SeverityMedium
	case strings.Contains(lower, "is not assignable to"):
		return KindTypeMismatch, SeverityMedium
	case strings.Contains(lower, "arguments, but got"):
		return KindArgumentCount, SeverityMedium
	case strings.Contains(lower, "unexpected token"):
		return KindUnexpectedToken, SeverityMedium
	case strings.Contains(lower, "expression expected"):
		return KindInvalidExpression, SeverityMedium
	case strings.Contains(lower, "statement expected"):
		return KindInvalidStatement, SeverityMedium
	case strings.Contains(lower, "csssyntaxerror"), strings.Contains(lower, "unclosed block"):
		return KindCSSSyntaxError, SeverityLow
	default:
		return KindTypeScriptError, SeverityMedium
	}
}

// normalizePath trims runner prefixes so paths are repo-relative. Everything
// before "workspace/" goes first; failing that, the path is cut at the first
// known source directory.
func normalizePath(p string) string {
	if i := strings.Index(p, workspaceMarker); i >= 0 {
		return p[i+len(workspaceMarker):]
	}
	for _, marker := range sourceMarkers {
		if i := strings.Index(p, marker); i >= 0 {
			return p[i:]
		}
	}
	return strings.TrimPrefix(p, "./")
}

// dedupe merges errors reported at the same (file, line), keeping the
// highest-severity classification. Errors without a file stay as-is.
func dedupe(errs []BuildError) []BuildError {
	type key struct {
		file string
		line int
	}
	seen := make(map[key]int)
	var out []BuildError
	for _, e := range errs {
		if e.File == "" {
			out = append(out, e)
			continue
		}
		k := key{file: e.File, line: e.Line}
		if i, ok := seen[k]; ok {
			if e.Severity > out[i].Severity {
				out[i] = e
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
