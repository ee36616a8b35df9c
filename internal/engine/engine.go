// Package engine wraps the external media-encoding engine (ffmpeg) behind a
// narrow command interface: named input/output resources in a private
// workspace plus argument-vector execution with progress and log callbacks.
package engine

import (
	"context"
	"math"
)

// Engine is the minimal contract the pipeline needs from the encoder.
type Engine interface {
	// Initialize prepares the engine for use. It is idempotent once it has
	// succeeded; a failed initialization may be retried.
	Initialize(ctx context.Context) error

	// WriteInput stores bytes under a name in the engine's namespace.
	WriteInput(name string, data []byte) error

	// ReadOutput returns the bytes of a named resource.
	ReadOutput(name string) ([]byte, error)

	// DeleteNamed removes a named resource. Deleting a resource that does
	// not exist is not an error.
	DeleteNamed(name string) error

	// Execute runs one encoder invocation described by an argument vector.
	// Resource names in args are resolved against the engine's namespace.
	Execute(ctx context.Context, args []string, opts ExecOpts) error
}

// ExecOpts carries per-invocation execution hints.
type ExecOpts struct {
	// ExpectedDuration is the output duration in seconds used to derive a
	// progress fraction. Zero means no fraction can be derived; only
	// completion is reported.
	ExpectedDuration float64
}

// Observers are the passive callbacks wired into an engine instance.
// OnProgress receives a raw fraction in [0,1] during Execute; OnLog receives
// the engine's log-message stream after noise filtering.
type Observers struct {
	OnProgress func(fraction float64)
	OnLog      func(line string)
}

// PercentOf maps a raw progress fraction to an integer percentage clamped
// to [0,100].
func PercentOf(fraction float64) int {
	if math.IsNaN(fraction) {
		return 0
	}
	p := int(math.Round(fraction * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
