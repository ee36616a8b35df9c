package builder

import (
	"errors"
	"fmt"
)

// ErrBuildInFlight is returned when a build is requested while another run
// is using the engine. The engine's namespace is shared, so runs must not
// interleave.
var ErrBuildInFlight = errors.New("a build is already in progress")

// fallbackErrorMessage is the terminal message used when the underlying
// cause carries no message of its own.
const fallbackErrorMessage = "failed to build video"

// InitError wraps an engine initialization failure. The session stays
// uninitialized, so a later build may retry.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("engine initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// FetchError wraps a failure to retrieve a segment's source bytes.
type FetchError struct {
	Index int
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch clip %d: %v", e.Index+1, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ProcessError wraps an engine failure while trimming a segment.
type ProcessError struct {
	Index int
	Err   error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("cut segment %d: %v", e.Index+1, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ConcatError wraps a failure in the join step or final artifact read.
type ConcatError struct {
	Err error
}

func (e *ConcatError) Error() string {
	return fmt.Sprintf("concatenate segments: %v", e.Err)
}

func (e *ConcatError) Unwrap() error { return e.Err }

// ErrorMessage returns the human-readable terminal message for a failed run:
// the underlying cause's message, or a generic fallback.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallbackErrorMessage
}
