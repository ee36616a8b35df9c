package builder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clipforge/clipforge-agent/internal/artifacts"
	"github.com/clipforge/clipforge-agent/internal/history"
	"github.com/clipforge/clipforge-agent/internal/logging"
	"github.com/clipforge/clipforge-agent/internal/segment"
)

// Service owns the build lifecycle around the pipeline: it records runs in
// history, executes them one at a time in the background, and persists the
// finished artifact.
type Service struct {
	builder  *Builder
	repo     history.Repository
	store    *artifacts.Store
	reporter *TrackingReporter
	logger   *slog.Logger
}

func NewService(b *Builder, repo history.Repository, store *artifacts.Store, reporter *TrackingReporter, logger *slog.Logger) *Service {
	return &Service{
		builder:  b,
		repo:     repo,
		store:    store,
		reporter: reporter,
		logger:   logger,
	}
}

// InFlight reports whether a run is currently executing.
func (s *Service) InFlight() bool {
	return s.builder.InFlight()
}

// State returns the latest progress percentage and status text.
func (s *Service) State() (int, string) {
	return s.reporter.Snapshot()
}

// StartBuild validates the request, records a pending run, and launches it
// in the background. It rejects requests while another run is in flight and
// surfaces segment.ErrEmptyPlan without touching the engine.
func (s *Service) StartBuild(ctx context.Context, raw []segment.Segment) (*history.Build, error) {
	if s.builder.InFlight() {
		return nil, ErrBuildInFlight
	}

	// Validation is pure; running it here keeps unbuildable requests out of
	// the history table. The pipeline validates again when it runs.
	plan, err := segment.Validate(raw)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	build := &history.Build{
		ID:           history.NewID(),
		Status:       history.BuildStatusPending,
		SegmentCount: len(plan.Segments),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateBuild(ctx, build); err != nil {
		return nil, err
	}

	go s.run(build.ID, raw)

	s.logger.Info("build accepted", "build_id", build.ID, "segments", len(plan.Segments))
	return build, nil
}

// run executes one build to completion. It owns the run's history record:
// running → completed with an artifact, or failed with a terminal message.
func (s *Service) run(buildID string, raw []segment.Segment) {
	ctx := context.Background()
	log := logging.WithBuildID(s.logger, buildID)

	s.reporter.setActive(buildID)
	defer s.reporter.clearActive()

	if err := s.repo.UpdateBuildStatus(ctx, buildID, history.BuildStatusRunning, ""); err != nil {
		log.Warn("failed to mark build running", "error", err)
	}

	artifact, err := s.builder.Build(ctx, raw)
	if err != nil {
		msg := ErrorMessage(err)
		if uerr := s.repo.UpdateBuildStatus(ctx, buildID, history.BuildStatusFailed, msg); uerr != nil {
			log.Warn("failed to record build failure", "error", uerr)
		}
		log.Error("build failed", "error", err)
		return
	}

	path, err := s.store.Save(buildID, artifact.Data)
	if err != nil {
		s.repo.UpdateBuildStatus(ctx, buildID, history.BuildStatusFailed, ErrorMessage(err))
		log.Error("failed to persist artifact", "error", err)
		return
	}

	if err := s.repo.UpdateBuildArtifact(ctx, buildID, path, artifact.MediaType, int64(len(artifact.Data))); err != nil {
		log.Warn("failed to record artifact", "error", err)
	}
	if err := s.repo.UpdateBuildProgress(ctx, buildID, 100, "done"); err != nil {
		log.Warn("failed to record final progress", "error", err)
	}
	if err := s.repo.UpdateBuildStatus(ctx, buildID, history.BuildStatusCompleted, ""); err != nil {
		log.Warn("failed to mark build completed", "error", err)
	}

	log.Info("build completed",
		"artifact", logging.SanitizePath(path),
		"bytes", len(artifact.Data),
	)
}

// TrackingReporter forwards every update to the in-memory run state and
// mirrors it, best effort, onto the active build's history row.
type TrackingReporter struct {
	state  *RunState
	repo   history.Repository
	logger *slog.Logger

	mu            sync.Mutex
	buildID       string
	lastPersisted int
}

func NewTrackingReporter(state *RunState, repo history.Repository, logger *slog.Logger) *TrackingReporter {
	return &TrackingReporter{state: state, repo: repo, logger: logger, lastPersisted: -1}
}

func (r *TrackingReporter) Progress(percent int) {
	r.state.Progress(percent)
	r.persist(true)
}

func (r *TrackingReporter) Status(text string) {
	r.state.Status(text)
	r.persist(false)
}

// Snapshot returns the latest progress percentage and status text.
func (r *TrackingReporter) Snapshot() (int, string) {
	return r.state.Snapshot()
}

func (r *TrackingReporter) setActive(buildID string) {
	r.mu.Lock()
	r.buildID = buildID
	r.lastPersisted = -1
	r.mu.Unlock()
}

func (r *TrackingReporter) clearActive() {
	r.mu.Lock()
	r.buildID = ""
	r.mu.Unlock()
}

// persist mirrors the current snapshot onto the history row. Progress-only
// updates are skipped when the integer percentage has not moved, which keeps
// engine progress ticks from hammering the database.
func (r *TrackingReporter) persist(fromProgress bool) {
	r.mu.Lock()
	buildID := r.buildID
	percent, status := r.state.Snapshot()
	if buildID == "" || (fromProgress && percent == r.lastPersisted) {
		r.mu.Unlock()
		return
	}
	r.lastPersisted = percent
	r.mu.Unlock()

	if err := r.repo.UpdateBuildProgress(context.Background(), buildID, percent, status); err != nil {
		r.logger.Debug("failed to persist progress", "build_id", buildID, "error", err)
	}
}
