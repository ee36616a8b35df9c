package builder

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipforge/clipforge-agent/internal/artifacts"
	"github.com/clipforge/clipforge-agent/internal/db"
	"github.com/clipforge/clipforge-agent/internal/engine"
	"github.com/clipforge/clipforge-agent/internal/history"
	"github.com/clipforge/clipforge-agent/internal/segment"
)

func setupService(t *testing.T, eng *fakeEngine, fetcher Fetcher) (*Service, history.Repository) {
	t.Helper()
	tmpDir := t.TempDir()

	database, err := db.New(filepath.Join(tmpDir, "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := history.NewRepository(database.Conn())

	store, err := artifacts.NewStore(filepath.Join(tmpDir, "artifacts"), slog.Default())
	if err != nil {
		t.Fatalf("artifacts.NewStore() error = %v", err)
	}

	reporter := NewTrackingReporter(NewRunState(), repo, slog.Default())
	sessions := engine.NewSessions(func(obs engine.Observers) engine.Engine {
		return eng
	}, reporter, slog.Default())

	b := New(sessions, fetcher, reporter, testSettings(), slog.Default())
	return NewService(b, repo, store, reporter, slog.Default()), repo
}

func waitForTerminal(t *testing.T, repo history.Repository, id string) *history.Build {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		build, err := repo.GetBuild(context.Background(), id)
		if err != nil {
			t.Fatalf("GetBuild() error = %v", err)
		}
		if build != nil && (build.Status == history.BuildStatusCompleted || build.Status == history.BuildStatusFailed) {
			return build
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("build did not reach a terminal state")
	return nil
}

func TestService_StartBuild_Completes(t *testing.T) {
	svc, repo := setupService(t, newFakeEngine(), &fakeFetcher{})

	build, err := svc.StartBuild(context.Background(), threeSegments())
	if err != nil {
		t.Fatalf("StartBuild() error = %v", err)
	}
	if build.SegmentCount != 3 {
		t.Errorf("build.SegmentCount = %d, want 3", build.SegmentCount)
	}

	final := waitForTerminal(t, repo, build.ID)
	if final.Status != history.BuildStatusCompleted {
		t.Fatalf("build.Status = %s (%s), want completed", final.Status, final.Error)
	}
	if final.ArtifactPath == "" {
		t.Error("completed build should record an artifact path")
	}
	if final.MediaType != "video/mp4" {
		t.Errorf("build.MediaType = %q", final.MediaType)
	}
	if final.Progress != 100 {
		t.Errorf("build.Progress = %d, want 100", final.Progress)
	}

	percent, status := svc.State()
	if percent != 100 || status != "done" {
		t.Errorf("State() = %d %q, want 100 done", percent, status)
	}
}

func TestService_StartBuild_EmptyPlan(t *testing.T) {
	eng := newFakeEngine()
	svc, repo := setupService(t, eng, &fakeFetcher{})

	_, err := svc.StartBuild(context.Background(), []segment.Segment{{URL: ""}})
	if !errors.Is(err, segment.ErrEmptyPlan) {
		t.Fatalf("StartBuild() error = %v, want ErrEmptyPlan", err)
	}

	builds, err := repo.ListBuilds(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListBuilds() error = %v", err)
	}
	if len(builds) != 0 {
		t.Error("rejected requests should not create history records")
	}
	if eng.initCalls != 0 {
		t.Error("engine should not be touched for an empty plan")
	}
}

func TestService_StartBuild_RecordsFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.execErr = func(call int, args []string) error {
		return errors.New("corrupt source")
	}
	svc, repo := setupService(t, eng, &fakeFetcher{})

	build, err := svc.StartBuild(context.Background(), threeSegments())
	if err != nil {
		t.Fatalf("StartBuild() error = %v", err)
	}

	final := waitForTerminal(t, repo, build.ID)
	if final.Status != history.BuildStatusFailed {
		t.Fatalf("build.Status = %s, want failed", final.Status)
	}
	if final.Error == "" {
		t.Error("failed build should carry the terminal error message")
	}
	if final.Progress == 100 {
		t.Error("failed build progress must not be forced to 100")
	}
}

func TestService_StartBuild_RejectsWhileInFlight(t *testing.T) {
	fetcher := &fakeFetcher{block: make(chan struct{})}
	svc, repo := setupService(t, newFakeEngine(), fetcher)

	build, err := svc.StartBuild(context.Background(), threeSegments())
	if err != nil {
		t.Fatalf("StartBuild() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !svc.InFlight() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_, err = svc.StartBuild(context.Background(), threeSegments())
	if !errors.Is(err, ErrBuildInFlight) {
		t.Errorf("second StartBuild() error = %v, want ErrBuildInFlight", err)
	}

	close(fetcher.block)
	waitForTerminal(t, repo, build.ID)
}
