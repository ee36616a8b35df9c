// Package segment defines clip descriptors and validation of user-supplied
// segment lists into an executable plan.
package segment

import (
	"errors"
	"math"

	"github.com/google/uuid"
)

// MinTrimSeconds is the floor applied to a segment's trim duration. It guards
// against degenerate zero-length cuts from equal or near-equal timestamps.
const MinTrimSeconds = 0.1

// ErrEmptyPlan is returned when no descriptor survives validation.
var ErrEmptyPlan = errors.New("no valid segment with URL and times")

// Segment is one user-specified clip request: a remote source plus a
// start/end range in seconds. Title is display-only and never consumed by
// the pipeline.
type Segment struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Title    string  `json:"title,omitempty"`
}

// TrimDuration returns the trim length in seconds, floored at MinTrimSeconds.
func (s Segment) TrimDuration() float64 {
	return math.Max(MinTrimSeconds, s.EndSec-s.StartSec)
}

// valid reports whether the descriptor can be executed: non-empty URL,
// finite non-negative times, and end strictly after start.
func (s Segment) valid() bool {
	if s.URL == "" {
		return false
	}
	if math.IsNaN(s.StartSec) || math.IsInf(s.StartSec, 0) {
		return false
	}
	if math.IsNaN(s.EndSec) || math.IsInf(s.EndSec, 0) {
		return false
	}
	if s.StartSec < 0 || s.EndSec < 0 {
		return false
	}
	return s.EndSec > s.StartSec
}

// Plan is the validated, ordered list of segments for one build run.
// Order is significant: it defines the output's clip order.
type Plan struct {
	Segments []Segment
}

// TotalDuration returns the summed trim duration of the plan in seconds.
func (p Plan) TotalDuration() float64 {
	var total float64
	for _, s := range p.Segments {
		total += s.TrimDuration()
	}
	return total
}

// Validate filters raw descriptors into an execution plan. Invalid
// descriptors are dropped silently; only an entirely empty result is an
// error. The relative order of kept descriptors is preserved. Validate is a
// pure function over its input.
func Validate(raw []Segment) (Plan, error) {
	kept := make([]Segment, 0, len(raw))
	for _, s := range raw {
		if !s.valid() {
			continue
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		kept = append(kept, s)
	}

	if len(kept) == 0 {
		return Plan{}, ErrEmptyPlan
	}
	return Plan{Segments: kept}, nil
}
