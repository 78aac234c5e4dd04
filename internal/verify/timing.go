package verify

import (
	"fmt"
	"time"

	"github.com/roach88/conformer/internal/failure"
)

// DefaultTolerance is added to a requested delay to form the upper bound of
// a timing window when a scenario does not set its own.
const DefaultTolerance = 500 * time.Millisecond

// Window returns the [delay, delay+tolerance] bounds for a delayed endpoint.
func Window(delay, tolerance time.Duration) (lower, upper time.Duration) {
	return delay, delay + tolerance
}

// WithinWindow checks that lower <= observed <= upper.
func WithinWindow(observed, lower, upper time.Duration) error {
	if observed >= lower && observed <= upper {
		return nil
	}
	return &failure.Error{
		Kind:     failure.KindTimingViolation,
		Message:  fmt.Sprintf("observed %dms outside window", observed.Milliseconds()),
		Expected: fmt.Sprintf("(%d,%d)", lower.Milliseconds(), upper.Milliseconds()),
		Actual:   fmt.Sprintf("%d", observed.Milliseconds()),
	}
}
