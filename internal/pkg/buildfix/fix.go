// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package buildfix

import (
	"regexp"
	"strings"
)

// fixable implements the terminal auto-fixability matrix. The conditional
// kinds are fixable only when the message pins the failure to a mechanical
// attribute problem.
func fixable(e BuildError) bool {
	switch e.Kind {
	case KindJSXUnclosedTag, KindJSXTagMismatch,
		KindMissingSemicolon, KindMissingParenthesis,
		KindUnterminatedString, KindMissingReactImport:
		return true
	case KindJSXExpressionError:
		return strings.Contains(e.Message, "className") || strings.Contains(e.Message, "style")
	case KindJSXSyntaxError:
		return strings.Contains(e.Message, "className") || strings.Contains(e.Message, "class=")
	default:
		return false
	}
}

// Patch is one proposed file rewrite.
type Patch struct {
	Path    string
	Content string
	Err     BuildError
}

// Fix applies every fixable error to the given file set and returns the
// resulting patches. Errors whose file is absent from the set, or whose fix
// strategy cannot find its anchor, are skipped; callers decide what to do
// when no patch could be produced.
func Fix(files map[string]string, errs []BuildError) []Patch {
	// Patches apply cumulatively so that two errors in the same file both land.
	current := make(map[string]string, len(files))
	for path, content := range files {
		current[path] = content
	}

	var patches []Patch
	for _, e := range errs {
		if !e.AutoFixable {
			continue
		}
		content, ok := current[e.File]
		if !ok {
			continue
		}
		fixed, ok := applyFix(content, e)
		if !ok || fixed == content {
			continue
		}
		current[e.File] = fixed
		patches = append(patches, Patch{Path: e.File, Content: fixed, Err: e})
	}
	return patches
}

// applyFix is a pure transformation of one file's content for one error.
func applyFix(content string, e BuildError) (string, bool) {
	switch e.Kind {
	case KindJSXUnclosedTag, KindJSXTagMismatch:
		return fixJSXClosingTag(content, e)
	case KindMissingSemicolon:
		return insertAtColumn(content, e.Line, e.Column, ";")
	case KindMissingParenthesis:
		return insertAtColumn(content, e.Line, e.Column, ")")
	case KindUnterminatedString:
		return closeString(content, e.Line)
	case KindMissingReactImport:
		return addReactImport(content)
	case KindJSXExpressionError, KindJSXSyntaxError:
		return fixClassAttribute(content, e.Line)
	default:
		return content, false
	}
}

// tagNamePattern pulls the offending tag name out of compiler messages such
// as "JSX element 'span' has no corresponding closing tag" or "Expected
// corresponding JSX closing tag for <span>".
var tagNamePattern = regexp.MustCompile(`'<?/?([A-Za-z][A-Za-z0-9]*)>?'|<([A-Za-z][A-Za-z0-9]*)>|<?/?([A-Za-z][A-Za-z0-9]*)>?'?[.]?\s*$`)

// fixJSXClosingTag inserts or rewrites the closing tag named in the message.
// When the reported line already holds a different closing tag, the matching
// one is inserted in front of it so both elements end up balanced; otherwise
// the closing tag is appended at the end of the reported line.
func fixJSXClosingTag(content string, e BuildError) (string, bool) {
	tag := extractTagName(e.Message)
	if tag == "" {
		return content, false
	}
	lines := strings.Split(content, "\n")
	idx := e.Line - 1
	if idx < 0 || idx >= len(lines) {
		// No usable position; close the element at the end of the file body.
		return content + "</" + tag + ">", true
	}
	line := lines[idx]
	closing := "</" + tag + ">"
	if strings.Contains(line, closing) {
		return content, false
	}
	if pos := strings.Index(line, "</"); pos >= 0 {
		lines[idx] = line[:pos] + closing + line[pos:]
	} else {
		lines[idx] = line + closing
	}
	return strings.Join(lines, "\n"), true
}

func extractTagName(message string) string {
	m := tagNamePattern.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	for _, group := range m[1:] {
		if group != "" {
			return group
		}
	}
	return ""
}

// insertAtColumn inserts token at the 1-based (line, column) position,
// falling back to the end of the line when the column is out of range.
func insertAtColumn(content string, line, column int, token string) (string, bool) {
	lines := strings.Split(content, "\n")
	idx := line - 1
	if idx < 0 || idx >= len(lines) {
		return content, false
	}
	l := lines[idx]
	pos := column - 1
	if pos < 0 || pos > len(l) {
		pos = len(l)
	}
	lines[idx] = l[:pos] + token + l[pos:]
	return strings.Join(lines, "\n"), true
}

// closeString appends the unbalanced quote character at the end of the
// reported line.
func closeString(content string, line int) (string, bool) {
	lines := strings.Split(content, "\n")
	idx := line - 1
	if idx < 0 || idx >= len(lines) {
		return content, false
	}
	l := lines[idx]
	for _, quote := range []string{`"`, `'`, "`"} {
		if strings.Count(l, quote)%2 == 1 {
			lines[idx] = l + quote
			return strings.Join(lines, "\n"), true
		}
	}
	return content, false
}

// addReactImport prepends the default React import when the file lacks one.
func addReactImport(content string) (string, bool) {
	if strings.Contains(content, "import React") {
		return content, false
	}
	return "import React from 'react';\n" + content, true
}

// classAttrPattern matches the HTML attribute spelling that JSX rejects.
var classAttrPattern = regexp.MustCompile(`\bclass=`)

// fixClassAttribute rewrites class= to className= on the reported line, the
// one attribute confusion worth fixing mechanically.
func fixClassAttribute(content string, line int) (string, bool) {
	lines := strings.Split(content, "\n")
	idx := line - 1
	if idx < 0 || idx >= len(lines) {
		return content, false
	}
	fixed := classAttrPattern.ReplaceAllString(lines[idx], "className=")
	if fixed == lines[idx] {
		return content, false
	}
	lines[idx] = fixed
	return strings.Join(lines, "\n"), true
}
