// Package qerr defines the error taxonomy shared by the qb pipeline.
//
// Every failure surfaced to a caller is an *Error carrying the abstract
// kind, the originating component, a single human message, and (for
// executor failures) the offending SQL fragment verbatim.
package qerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInvalidModel       Kind = "invalid_model"
	KindUnresolvableDiff   Kind = "unresolvable_diff"
	KindDialectUnsupported Kind = "dialect_unsupported"
	KindExecutorFailure    Kind = "executor_failure"
	KindSnapshotCorrupt    Kind = "snapshot_corrupt"
)

// Error is the concrete error type for all pipeline failures.
type Error struct {
	Kind      Kind
	Component string // "plan", "diff", "dialect", "executor", "snapshot"
	Message   string
	SQL       string // failing SQL fragment, executor failures only
	Err       error  // wrapped cause, if any
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Component, e.Message)
	if e.SQL != "" {
		msg += fmt.Sprintf("\n  sql: %s", e.SQL)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidModel reports a malformed or inconsistent model set.
func InvalidModel(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidModel, Component: "plan", Message: fmt.Sprintf(format, args...)}
}

// UnresolvableDiff reports a diff that cannot be made safe without a policy.
func UnresolvableDiff(format string, args ...any) *Error {
	return &Error{Kind: KindUnresolvableDiff, Component: "diff", Message: fmt.Sprintf(format, args...)}
}

// DialectUnsupported reports a missing dialect capability.
func DialectUnsupported(format string, args ...any) *Error {
	return &Error{Kind: KindDialectUnsupported, Component: "dialect", Message: fmt.Sprintf(format, args...)}
}

// ExecutorFailure wraps an error from the injected SQL executor.
func ExecutorFailure(sqlText string, err error) *Error {
	return &Error{
		Kind:      KindExecutorFailure,
		Component: "executor",
		Message:   "statement execution failed",
		SQL:       sqlText,
		Err:       err,
	}
}

// SnapshotCorrupt reports a snapshot file that exists but fails validation.
func SnapshotCorrupt(path string, err error) *Error {
	return &Error{
		Kind:      KindSnapshotCorrupt,
		Component: "snapshot",
		Message:   fmt.Sprintf("snapshot file %s is not structurally valid", path),
		Err:       err,
	}
}

// KindOf extracts the Kind from an error chain. Returns "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
