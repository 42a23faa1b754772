package walredo

import (
	"errors"
	"fmt"
)

// ErrorKind is one of the three kinds callers of the redo manager can
// observe. It is a closed set: routing and transport failures are surfaced
// as one of these, with finer detail available only via the Sub field and
// its predicate methods, or in the log stream.
type ErrorKind string

const (
	// KindIO covers any failure originating in the child process transport
	// or filesystem: poll failure, read/write error, pipe hang-up, timeout.
	KindIO ErrorKind = "io"
	// KindInvalidState means the manager is not prepared to serve at all,
	// as with the dummy manager.
	KindInvalidState ErrorKind = "invalid state"
	// KindInvalidRequest means a routing precondition was violated, e.g. a
	// relation tag reached the in-process redo path.
	KindInvalidRequest ErrorKind = "invalid request"
)

// Error is the structured error type returned throughout this module.
type Error struct {
	Op    string    // operation that failed, e.g. "ApplyWALRecords"
	Kind  ErrorKind // high-level category
	Sub   string    // optional detail tag: "timeout", "broken_pipe"
	Msg   string    // human-readable message
	Inner error     // wrapped error, if any
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("walredo: %s: %s (op=%s)", e.Kind, e.Msg, e.Op)
	}
	return fmt.Sprintf("walredo: %s: %s", e.Kind, e.Msg)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison by Kind against another *Error.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// IsTimeout reports whether this error is the 20-second redo deadline
// firing.
func (e *Error) IsTimeout() bool {
	return e.Sub == "timeout"
}

// IsBrokenPipe reports whether this error is an unexpected child pipe
// hang-up.
func (e *Error) IsBrokenPipe() bool {
	return e.Sub == "broken_pipe"
}

// NewError constructs a structured error with no wrapped cause.
func NewError(op string, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// newSubError constructs a KindIO error carrying a detail sub-tag.
func newSubError(op, sub, msg string) *Error {
	return &Error{Op: op, Kind: KindIO, Sub: sub, Msg: msg}
}

// WrapIOError wraps an underlying transport or filesystem error as KindIO.
func WrapIOError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if e, ok := inner.(*Error); ok {
		return e
	}
	return &Error{Op: op, Kind: KindIO, Msg: inner.Error(), Inner: inner}
}

// ErrInvalidState matches, via errors.Is, every KindInvalidState error, such
// as the one the dummy manager returns.
var ErrInvalidState = &Error{Kind: KindInvalidState, Msg: "cannot perform WAL redo now"}

// ErrInvalidRequest matches, via errors.Is, every KindInvalidRequest error,
// such as the one returned when a request's tag does not match the path it
// was routed to.
var ErrInvalidRequest = &Error{Kind: KindInvalidRequest, Msg: "cannot perform WAL redo for this request"}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
