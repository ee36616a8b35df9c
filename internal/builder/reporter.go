package builder

import "sync"

// Reporter is the passive sink the pipeline pushes progress and phase
// updates to. Writes never block; last write wins.
type Reporter interface {
	Progress(percent int)
	Status(text string)
}

// RunState is the process-wide Reporter implementation. It keeps only the
// latest percentage and status text for observers to snapshot.
type RunState struct {
	mu      sync.RWMutex
	percent int
	status  string
}

func NewRunState() *RunState {
	return &RunState{}
}

func (s *RunState) Progress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	s.mu.Lock()
	s.percent = percent
	s.mu.Unlock()
}

func (s *RunState) Status(text string) {
	s.mu.Lock()
	s.status = text
	s.mu.Unlock()
}

// Snapshot returns the latest progress percentage and status text.
func (s *RunState) Snapshot() (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.percent, s.status
}
