// Package poaerr carries the closed error-kind set spec'd for this
// system as a typed error rather than an out-of-band exception: every
// component boundary returns (T, error), and callers that need to branch
// on the failure kind use errors.As to recover a *poaerr.Error.
package poaerr

import (
	"fmt"
	"strings"
)

// Kind is the closed set of error kinds this system distinguishes.
type Kind string

const (
	KindConfigError             Kind = "config_error"
	KindUnrecognizedDatabaseAPI Kind = "unrecognized_database_api"
	KindConnectionError         Kind = "connection_error"
	KindTableDoesntExist        Kind = "table_doesnt_exist"
	KindUnsupportedType         Kind = "unsupported_type"
	KindPkMismatch              Kind = "pk_mismatch"
	KindDuplicateKey            Kind = "duplicate_key"
	KindSqlInjectionRefused     Kind = "sql_injection_refused"
	KindIoError                 Kind = "io_error"
	KindLogicError              Kind = "logic_error"
)

// Error is a structured error carrying a Kind, a free-text message, and
// an argument map for diagnostics, mirroring the source's Error
// dataclass (original_source/src/data/error.py).
type Error struct {
	Kind    Kind
	Message string
	Args    map[string]any
	Cause   error
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string, args map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Args: args}
}

// Wrap constructs an *Error of the given kind around an underlying
// driver/IO error.
func Wrap(kind Kind, cause error, message string, args map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Args: args, Cause: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Message)
	if len(e.Args) > 0 {
		b.WriteString(" (")
		first := true
		for k, v := range e.Args {
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, v)
			first = false
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports kind equality so errors.Is(err, poaerr.KindTableDoesntExist)
// style checks are not the idiom here — callers use errors.As and read
// Kind directly. Is is provided only for the degenerate case of
// comparing two *Error values built with the same Kind and no Args.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
