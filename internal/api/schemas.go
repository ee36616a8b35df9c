package api

import (
	"time"

	"github.com/clipforge/clipforge-agent/internal/history"
	"github.com/clipforge/clipforge-agent/internal/segment"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	AgentID string `json:"agent_id"`
}

type StatusResponse struct {
	State       string         `json:"state"`
	Progress    int            `json:"progress"`
	StatusText  string         `json:"status_text,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	EngineReady bool           `json:"engine_ready"`
	ActiveBuild *BuildResponse `json:"active_build,omitempty"`
}

type BuildRequest struct {
	Segments []segment.Segment `json:"segments"`
}

type BuildAcceptedResponse struct {
	BuildID string `json:"build_id"`
}

type BuildResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	StatusText   string `json:"status_text,omitempty"`
	Error        string `json:"error,omitempty"`
	SegmentCount int    `json:"segment_count"`
	ArtifactSize int64  `json:"artifact_size,omitempty"`
	MediaType    string `json:"media_type,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type BuildsResponse struct {
	Builds []BuildResponse `json:"builds"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func BuildToResponse(b *history.Build) BuildResponse {
	return BuildResponse{
		ID:           b.ID,
		Status:       b.Status,
		Progress:     b.Progress,
		StatusText:   b.StatusText,
		Error:        b.Error,
		SegmentCount: b.SegmentCount,
		ArtifactSize: b.ArtifactSize,
		MediaType:    b.MediaType,
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    b.UpdatedAt.Format(time.RFC3339),
	}
}
