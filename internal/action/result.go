package action

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call for the caller.
type Kind string

const (
	KindConnection        Kind = "connection_error"
	KindInvalidIdentifier Kind = "invalid_identifier"
	KindInvalidArgument   Kind = "invalid_argument"
	KindSyntax            Kind = "syntax_error"
	KindConstraint        Kind = "constraint_violation"
	KindUnknownAction     Kind = "unknown_action"
	KindUnknown           Kind = "unknown_error"
)

// Error is the failure variant of the envelope. The engine's own message is
// preserved verbatim in Message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsError converts any handler failure into the envelope error shape,
// keeping an already-classified *Error as is.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Errorf(KindUnknown, "%v", err)
}

// Result is the envelope returned from every action. Exactly one variant is
// populated: the success fields (with OK set) or Err.
type Result struct {
	OK           bool             `json:"ok"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int64            `json:"row_count,omitempty"`
	LastInsertID int64            `json:"last_insert_id,omitempty"`
	Err          *Error           `json:"error,omitempty"`
}

// OK is the plain success result used by ping and DDL actions.
func OK() *Result {
	return &Result{OK: true}
}

// Rows wraps a result set.
func Rows(rows []map[string]any) *Result {
	return &Result{OK: true, Rows: rows, RowCount: int64(len(rows))}
}

// Count wraps an affected-row count.
func Count(n int64) *Result {
	return &Result{OK: true, RowCount: n}
}

// Fail wraps a classified error into the envelope.
func Fail(err *Error) *Result {
	return &Result{Err: err}
}

func (r *Result) IsError() bool {
	return r.Err != nil
}
