package engine

import (
	"context"
	"log/slog"
	"sync"
)

// StatusSink receives mapped progress percentages and status text from the
// engine's observers. The builder's run state satisfies it.
type StatusSink interface {
	Progress(percent int)
	Status(text string)
}

// Factory constructs an engine instance with the given observers wired.
type Factory func(Observers) Engine

// Sessions manages the process-wide engine session: a guarded lazy singleton
// initialized on first use and reused for the process lifetime. A failed
// initialization caches nothing, so a later call retries from scratch.
type Sessions struct {
	factory Factory
	sink    StatusSink
	logger  *slog.Logger

	mu     sync.Mutex
	engine Engine
}

// NewSessions creates a session manager. The sink is wired into every engine
// the factory constructs: raw progress fractions are clamped to integer
// percentages, and filtered log lines become status text.
func NewSessions(factory Factory, sink StatusSink, logger *slog.Logger) *Sessions {
	return &Sessions{factory: factory, sink: sink, logger: logger}
}

// Ensure returns the engine session, initializing it on first call.
// Concurrent first calls are serialized; only one initialization runs.
func (s *Sessions) Ensure(ctx context.Context) (Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return s.engine, nil
	}

	eng := s.factory(Observers{
		OnProgress: func(fraction float64) {
			s.sink.Progress(PercentOf(fraction))
		},
		OnLog: func(line string) {
			s.sink.Status(line)
		},
	})

	if err := eng.Initialize(ctx); err != nil {
		s.logger.Warn("engine initialization failed", "error", err)
		return nil, err
	}

	s.engine = eng
	return eng, nil
}

// Ready reports whether a session has been successfully initialized.
func (s *Sessions) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine != nil
}
