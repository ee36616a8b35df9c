package history

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateBuild(ctx context.Context, build *Build) error
	GetBuild(ctx context.Context, id string) (*Build, error)
	ListBuilds(ctx context.Context, limit int) ([]*Build, error)
	UpdateBuildStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateBuildProgress(ctx context.Context, id string, progress int, statusText string) error
	UpdateBuildArtifact(ctx context.Context, id, artifactPath, mediaType string, size int64) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateBuild(ctx context.Context, b *Build) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO builds (id, status, progress, status_text, error, segment_count, artifact_path, artifact_size, media_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Status, b.Progress, b.StatusText, nullString(b.Error), b.SegmentCount,
		nullString(b.ArtifactPath), b.ArtifactSize, nullString(b.MediaType),
		b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetBuild(ctx context.Context, id string) (*Build, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, progress, status_text, error, segment_count, artifact_path, artifact_size, media_type, created_at, updated_at
		FROM builds WHERE id = ?
	`, id)
	return r.scanBuild(row)
}

func (r *SQLiteRepository) scanBuild(row *sql.Row) (*Build, error) {
	var b Build
	var errMsg, artifactPath, mediaType sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&b.ID, &b.Status, &b.Progress, &b.StatusText, &errMsg, &b.SegmentCount,
		&artifactPath, &b.ArtifactSize, &mediaType, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.Error = errMsg.String
	b.ArtifactPath = artifactPath.String
	b.MediaType = mediaType.String
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}

func (r *SQLiteRepository) ListBuilds(ctx context.Context, limit int) ([]*Build, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, progress, status_text, error, segment_count, artifact_path, artifact_size, media_type, created_at, updated_at
		FROM builds ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []*Build
	for rows.Next() {
		var b Build
		var errMsg, artifactPath, mediaType sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&b.ID, &b.Status, &b.Progress, &b.StatusText, &errMsg, &b.SegmentCount,
			&artifactPath, &b.ArtifactSize, &mediaType, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		b.Error = errMsg.String
		b.ArtifactPath = artifactPath.String
		b.MediaType = mediaType.String
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		builds = append(builds, &b)
	}
	return builds, rows.Err()
}

func (r *SQLiteRepository) UpdateBuildStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE builds SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateBuildProgress(ctx context.Context, id string, progress int, statusText string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE builds SET progress = ?, status_text = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, statusText, id)
	return err
}

func (r *SQLiteRepository) UpdateBuildArtifact(ctx context.Context, id, artifactPath, mediaType string, size int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE builds SET artifact_path = ?, media_type = ?, artifact_size = ?, updated_at = datetime('now') WHERE id = ?
	`, artifactPath, mediaType, size, id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
