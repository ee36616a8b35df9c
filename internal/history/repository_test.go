package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/clipforge/clipforge-agent/internal/db"
)

func setupTestRepo(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRepository(database.Conn())
	return database, repo
}

func newTestBuild(segments int) *Build {
	now := time.Now()
	return &Build{
		ID:           NewID(),
		Status:       BuildStatusPending,
		SegmentCount: segments,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestRepository_CreateAndGetBuild(t *testing.T) {
	database, repo := setupTestRepo(t)
	defer database.Close()

	ctx := context.Background()
	build := newTestBuild(3)

	if err := repo.CreateBuild(ctx, build); err != nil {
		t.Fatalf("CreateBuild() error = %v", err)
	}

	got, err := repo.GetBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("GetBuild() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetBuild() returned nil")
	}
	if got.Status != BuildStatusPending {
		t.Errorf("build.Status = %s, want pending", got.Status)
	}
	if got.SegmentCount != 3 {
		t.Errorf("build.SegmentCount = %d, want 3", got.SegmentCount)
	}
}

func TestRepository_GetBuild_NotFound(t *testing.T) {
	database, repo := setupTestRepo(t)
	defer database.Close()

	got, err := repo.GetBuild(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetBuild() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetBuild() = %+v, want nil for missing id", got)
	}
}

func TestRepository_UpdateBuildLifecycle(t *testing.T) {
	database, repo := setupTestRepo(t)
	defer database.Close()

	ctx := context.Background()
	build := newTestBuild(2)
	if err := repo.CreateBuild(ctx, build); err != nil {
		t.Fatalf("CreateBuild() error = %v", err)
	}

	if err := repo.UpdateBuildStatus(ctx, build.ID, BuildStatusRunning, ""); err != nil {
		t.Fatalf("UpdateBuildStatus() error = %v", err)
	}
	if err := repo.UpdateBuildProgress(ctx, build.ID, 40, "cutting segment 1/2"); err != nil {
		t.Fatalf("UpdateBuildProgress() error = %v", err)
	}
	if err := repo.UpdateBuildArtifact(ctx, build.ID, "/tmp/out.mp4", "video/mp4", 1024); err != nil {
		t.Fatalf("UpdateBuildArtifact() error = %v", err)
	}
	if err := repo.UpdateBuildStatus(ctx, build.ID, BuildStatusCompleted, ""); err != nil {
		t.Fatalf("UpdateBuildStatus() error = %v", err)
	}

	got, err := repo.GetBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("GetBuild() error = %v", err)
	}
	if got.Status != BuildStatusCompleted {
		t.Errorf("build.Status = %s, want completed", got.Status)
	}
	if got.Progress != 40 {
		t.Errorf("build.Progress = %d, want 40", got.Progress)
	}
	if got.StatusText != "cutting segment 1/2" {
		t.Errorf("build.StatusText = %q", got.StatusText)
	}
	if got.ArtifactPath != "/tmp/out.mp4" || got.MediaType != "video/mp4" || got.ArtifactSize != 1024 {
		t.Errorf("artifact fields = %q %q %d", got.ArtifactPath, got.MediaType, got.ArtifactSize)
	}
}

func TestRepository_UpdateBuildStatus_Failure(t *testing.T) {
	database, repo := setupTestRepo(t)
	defer database.Close()

	ctx := context.Background()
	build := newTestBuild(1)
	if err := repo.CreateBuild(ctx, build); err != nil {
		t.Fatalf("CreateBuild() error = %v", err)
	}

	if err := repo.UpdateBuildStatus(ctx, build.ID, BuildStatusFailed, "fetch clip 1: connection refused"); err != nil {
		t.Fatalf("UpdateBuildStatus() error = %v", err)
	}

	got, _ := repo.GetBuild(ctx, build.ID)
	if got.Status != BuildStatusFailed {
		t.Errorf("build.Status = %s, want failed", got.Status)
	}
	if got.Error != "fetch clip 1: connection refused" {
		t.Errorf("build.Error = %q", got.Error)
	}
}

func TestRepository_ListBuilds(t *testing.T) {
	database, repo := setupTestRepo(t)
	defer database.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		b := newTestBuild(1)
		b.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		b.UpdatedAt = b.CreatedAt
		if err := repo.CreateBuild(ctx, b); err != nil {
			t.Fatalf("CreateBuild() error = %v", err)
		}
	}

	builds, err := repo.ListBuilds(ctx, 2)
	if err != nil {
		t.Fatalf("ListBuilds() error = %v", err)
	}
	if len(builds) != 2 {
		t.Errorf("ListBuilds() returned %d builds, want 2", len(builds))
	}
}

func TestRepository_ConfigRoundTrip(t *testing.T) {
	database, repo := setupTestRepo(t)
	defer database.Close()

	ctx := context.Background()

	got, err := repo.GetConfig(ctx, "auth_token")
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}
	if got != "" {
		t.Errorf("GetConfig() = %q, want empty for missing key", got)
	}

	if err := repo.SetConfig(ctx, "auth_token", "abc123"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	if err := repo.SetConfig(ctx, "auth_token", "def456"); err != nil {
		t.Fatalf("SetConfig() upsert error = %v", err)
	}

	got, err = repo.GetConfig(ctx, "auth_token")
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}
	if got != "def456" {
		t.Errorf("GetConfig() = %q, want def456", got)
	}
}
