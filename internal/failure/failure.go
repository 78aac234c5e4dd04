// Package failure defines the error taxonomy shared by every verification
// component.
//
// Each assertion, registry lookup, or flow step that does not hold returns a
// *Error carrying a Kind plus expected-versus-actual context. The scenario
// orchestrator converts these into per-scenario failure entries instead of
// aborting the run, so Kind is the only thing callers should switch on.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a verification failure.
type Kind string

const (
	// KindUnknownEndpoint indicates a registry lookup for a name (or arity)
	// that was never declared.
	KindUnknownEndpoint Kind = "UNKNOWN_ENDPOINT"

	// KindStatusMismatch indicates the status code or the ok flag disagrees
	// with the expected status.
	KindStatusMismatch Kind = "STATUS_MISMATCH"

	// KindShapeMismatch indicates a field does not match its expectation.
	KindShapeMismatch Kind = "SHAPE_MISMATCH"

	// KindNotACollection indicates a value expected to be a sequence is not.
	KindNotACollection Kind = "NOT_A_COLLECTION"

	// KindTooShort indicates a collection has fewer items than required.
	KindTooShort Kind = "TOO_SHORT"

	// KindParseError indicates a response body could not be decoded.
	KindParseError Kind = "PARSE_ERROR"

	// KindTimingViolation indicates an observed duration outside its window.
	KindTimingViolation Kind = "TIMING_VIOLATION"

	// KindInvariantViolation indicates a UI state observable did not hold.
	KindInvariantViolation Kind = "INVARIANT_VIOLATION"

	// KindTimeout indicates an operation was cancelled by a deadline.
	KindTimeout Kind = "TIMEOUT"

	// KindFlowError indicates a UI interaction failed for a reason other
	// than a timeout.
	KindFlowError Kind = "FLOW_ERROR"

	// KindTransport indicates the HTTP transport itself failed (no response).
	KindTransport Kind = "TRANSPORT_ERROR"

	// KindInvalidScenario indicates a declaration error found at load time.
	KindInvalidScenario Kind = "INVALID_SCENARIO"
)

// Error is a verification failure with diagnostic context.
type Error struct {
	// Kind identifies the failure category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Key locates the failing field for shape mismatches ("data.email").
	Key string

	// Expected and Actual are human-readable renderings of both sides.
	Expected string
	Actual   string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString(string(e.Kind))
	if e.Message != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Message)
	}
	if e.Key != "" {
		fmt.Fprintf(&buf, " (key=%s)", e.Key)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&buf, " [expected %s, actual %s]", e.Expected, e.Actual)
	}
	if e.Err != nil {
		fmt.Fprintf(&buf, ": %v", e.Err)
	}
	return buf.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a failure of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Mismatch creates a failure with expected and actual renderings.
func Mismatch(kind Kind, message, expected, actual string) *Error {
	return &Error{Kind: kind, Message: message, Expected: expected, Actual: actual}
}

// Wrap creates a failure that preserves err as its cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// List collects several failures produced by one assertion.
// The first entry is the primary failure.
type List []*Error

// Error implements the error interface.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no failures"
	case 1:
		return l[0].Error()
	}
	parts := make([]string, len(l))
	for i, e := range l {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d failures: %s", len(l), strings.Join(parts, "; "))
}

// Unwrap exposes every entry to errors.Is and errors.As.
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

// OrNil returns nil for an empty list so callers can return it directly.
func (l List) OrNil() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// timeoutSignal is implemented by capability errors that report a timeout
// without wrapping context.DeadlineExceeded.
type timeoutSignal interface {
	Timeout() bool
}

// KindOf classifies any error. Failures report their own kind, deadline
// expiry is a timeout, and everything else is treated as a flow error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if IsTimeout(err) {
		return KindTimeout
	}
	return KindFlowError
}

// Is reports whether err carries a failure of the given kind.
// Uses errors.As to handle wrapped errors.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// IsTimeout reports whether err signals an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ts timeoutSignal
	if errors.As(err, &ts) {
		return ts.Timeout()
	}
	return Is(err, KindTimeout)
}

// Flatten returns every *Error reachable from err in order. The outermost
// failure wins: a List is expanded only when no kinded *Error wraps it.
// Errors that are not failures are classified with KindOf and wrapped.
func Flatten(err error) []*Error {
	if err == nil {
		return nil
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case List:
			return v
		case *Error:
			if v.Kind == "" && v.Err != nil {
				return Flatten(v.Err)
			}
			return []*Error{v}
		}
	}

	// Multi-error wrappers such as errors.Join.
	var l List
	if errors.As(err, &l) {
		return l
	}
	var fe *Error
	if errors.As(err, &fe) {
		return []*Error{fe}
	}
	return []*Error{Wrap(KindOf(err), "", err)}
}
