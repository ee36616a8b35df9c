// Package history records build runs and agent configuration in SQLite.
// Segment lists are deliberately never persisted; only run outcomes are.
package history

import (
	"time"

	"github.com/google/uuid"
)

const (
	BuildStatusPending   = "pending"
	BuildStatusRunning   = "running"
	BuildStatusCompleted = "completed"
	BuildStatusFailed    = "failed"
)

type Build struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	StatusText   string    `json:"status_text"`
	Error        string    `json:"error,omitempty"`
	SegmentCount int       `json:"segment_count"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	ArtifactSize int64     `json:"artifact_size"`
	MediaType    string    `json:"media_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewID() string {
	return uuid.NewString()
}
