// Package ui defines the browser capability consumed by UI flows.
//
// The flow state machine only ever talks to these interfaces, so a flow
// graph can be exercised against the in-memory SauceDemo model as well as
// a real browser driven by package chrome.
package ui

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout is returned (possibly wrapped) when an interaction does not
// complete before its deadline. It reports Timeout() == true, so drivers
// may wrap it with %w and still be classified as a timeout.
var ErrTimeout error = timeoutErr{}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "ui: operation timed out" }
func (timeoutErr) Timeout() bool { return true }

// ErrNotFound is returned when a selector matches no element.
var ErrNotFound = errors.New("ui: element not found")

// Page is one browser tab owned by a single scenario.
type Page interface {
	// Goto navigates to url and waits for the load to finish.
	Goto(ctx context.Context, url string) error

	// Locate returns a lazy handle; nothing is queried until a method on the
	// element is called.
	Locate(selector string) Element

	// CurrentURL returns the page location.
	CurrentURL(ctx context.Context) (string, error)

	// Title returns the document title.
	Title(ctx context.Context) (string, error)
}

// Element is a lazily resolved handle to the first node matching a selector.
type Element interface {
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error

	// IsVisible reports visibility without waiting; a missing element is
	// not visible and not an error.
	IsVisible(ctx context.Context) (bool, error)

	// Text returns the element's rendered text.
	Text(ctx context.Context) (string, error)

	// Attribute returns the named attribute and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
}

// TimeoutError wraps ErrTimeout with the operation that timed out.
type TimeoutError struct {
	Op       string
	Selector string
	Err      error
}

func (e *TimeoutError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Selector, ErrTimeout)
	}
	return fmt.Sprintf("%s: %v", e.Op, ErrTimeout)
}

// Unwrap exposes both ErrTimeout and the driver's own error.
func (e *TimeoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Err}
}

// Timeout marks the error as a timeout signal.
func (e *TimeoutError) Timeout() bool {
	return true
}

// Classify converts a context deadline error from a driver into a
// *TimeoutError and leaves every other error untouched.
func Classify(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return &TimeoutError{Op: op, Selector: selector, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, selector, err)
}
