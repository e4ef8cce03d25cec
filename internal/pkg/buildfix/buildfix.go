// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package buildfix turns CI failure logs into a typed error list and, for the
// mechanically fixable classes, into patched source files. Classification is
// regex-driven: failure lines are externally defined and stable, so the
// patterns live in one first-class rule table rather than scattered call
// sites.
package buildfix

// ErrorKind is the closed taxonomy of build failures the classifier can
// produce.
type ErrorKind string

const (
	KindJSXTagMismatch      ErrorKind = "jsx_tag_mismatch"
	KindJSXUnclosedTag      ErrorKind = "jsx_unclosed_tag"
	KindJSXExpressionError  ErrorKind = "jsx_expression_error"
	KindJSXSyntaxError      ErrorKind = "jsx_syntax_error"
	KindMissingReactImport  ErrorKind = "missing_react_import"
	KindPropertyNotFound    ErrorKind = "property_not_found"
	KindUndefinedVariable   ErrorKind = "undefined_variable"
	KindTypeMismatch        ErrorKind = "type_mismatch"
	KindArgumentCount       ErrorKind = "argument_count_mismatch"
	KindTypeScriptError     ErrorKind = "typescript_error"
	KindMissingSemicolon    ErrorKind = "missing_semicolon"
	KindMissingParenthesis  ErrorKind = "missing_parenthesis"
	KindUnterminatedString  ErrorKind = "unterminated_string"
	KindUnexpectedToken     ErrorKind = "unexpected_token"
	KindInvalidExpression   ErrorKind = "invalid_expression"
	KindInvalidStatement    ErrorKind = "invalid_statement"
	KindModuleNotFound      ErrorKind = "module_not_found"
	KindMissingImport       ErrorKind = "missing_import"
	KindCSSSyntaxError      ErrorKind = "css_syntax_error"
	KindInvalidTailwind     ErrorKind = "invalid_tailwind_class"
	KindDependencyResolve   ErrorKind = "dependency_resolution_error"
	KindDependencyConflict  ErrorKind = "dependency_conflict"
	KindUndefinedPropAccess ErrorKind = "undefined_property_access"
)

// Severity ranks how disruptive an error is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// BuildError is one classified failure from a CI log. It is transient state;
// nothing persists it beyond the failure summary.
type BuildError struct {
	Kind        ErrorKind
	File        string
	Line        int
	Column      int
	Message     string
	Context     string
	Severity    Severity
	AutoFixable bool
}

// JobLog is the classifier input for one failed CI job.
type JobLog struct {
	JobName     string
	JobID       int64
	Logs        string
	FailedSteps []string
}

// nonRetryable are the kinds that make a deployment not worth retrying:
// dependency problems need a human or a new generation, not a mechanical
// patch.
var nonRetryable = map[ErrorKind]bool{
	KindDependencyConflict: true,
	KindDependencyResolve:  true,
}

// NonRetryable reports whether kind forbids an auto-fix retry cycle.
func NonRetryable(kind ErrorKind) bool {
	return nonRetryable[kind]
}

// HasNonRetryable reports whether any detected error forbids retrying.
func HasNonRetryable(errs []BuildError) bool {
	for _, e := range errs {
		if nonRetryable[e.Kind] {
			return true
		}
	}
	return false
}
