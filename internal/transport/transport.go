// Package transport is the HTTP capability consumed by API scenarios.
//
// Transport is deliberately small: four verbs returning an Outcome. Paths
// are passed through verbatim, query strings included, so a delayed
// endpoint is requested as "/api/users?delay=2".
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Outcome is the result of one transport call.
type Outcome struct {
	// OK reports whether the transport considered the call successful.
	// NewOutcome derives it from Status; the assertion engine checks both.
	OK bool

	// Status is the HTTP status code.
	Status int

	// Body is the raw response body.
	Body []byte

	// Duration is the wall-clock time of the round trip.
	Duration time.Duration
}

// NewOutcome builds an Outcome with OK derived from the status class.
func NewOutcome(status int, body []byte) Outcome {
	return Outcome{
		OK:     status >= 200 && status < 300,
		Status: status,
		Body:   body,
	}
}

// Transport issues JSON requests against a base URL.
type Transport interface {
	Get(ctx context.Context, path string) (Outcome, error)
	Post(ctx context.Context, path string, body any) (Outcome, error)
	Put(ctx context.Context, path string, body any) (Outcome, error)
	Delete(ctx context.Context, path string) (Outcome, error)
}

// Do dispatches to the Transport method matching method (case-insensitive).
func Do(ctx context.Context, t Transport, method, path string, body any) (Outcome, error) {
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return t.Get(ctx, path)
	case http.MethodPost:
		return t.Post(ctx, path, body)
	case http.MethodPut:
		return t.Put(ctx, path, body)
	case http.MethodDelete:
		return t.Delete(ctx, path)
	default:
		return Outcome{}, fmt.Errorf("unsupported method %q", method)
	}
}

// ValidMethod reports whether method is one of the supported verbs.
func ValidMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}
