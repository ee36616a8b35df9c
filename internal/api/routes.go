package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge-agent/internal/builder"
	"github.com/clipforge/clipforge-agent/internal/config"
	"github.com/clipforge/clipforge-agent/internal/history"
	"github.com/clipforge/clipforge-agent/internal/segment"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/build", buildHandler(cfg))
		r.Get("/builds", listBuildsHandler(cfg))
		r.Get("/builds/{id}", getBuildHandler(cfg))
		r.Get("/builds/{id}/artifact", artifactHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
			AgentID: cfg.AgentID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		progress, statusText := cfg.BuildService.State()

		resp := StatusResponse{
			State:      "idle",
			Progress:   progress,
			StatusText: statusText,
		}
		if cfg.Sessions != nil {
			resp.EngineReady = cfg.Sessions.Ready()
		}

		builds, _ := cfg.Repository.ListBuilds(ctx, 10)
		for _, b := range builds {
			if b.Status == history.BuildStatusRunning || b.Status == history.BuildStatusPending {
				resp.State = "building"
				active := BuildToResponse(b)
				resp.ActiveBuild = &active
				break
			}
			if b.Status == history.BuildStatusFailed && resp.LastError == "" {
				resp.LastError = b.Error
			}
		}

		if resp.LastError != "" && resp.State == "idle" {
			resp.State = "error"
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func buildHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BuildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		build, err := cfg.BuildService.StartBuild(r.Context(), req.Segments)
		if err != nil {
			switch {
			case errors.Is(err, builder.ErrBuildInFlight):
				WriteError(w, http.StatusConflict, err.Error(), "BUILD_IN_FLIGHT")
			case errors.Is(err, segment.ErrEmptyPlan):
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "EMPTY_PLAN")
			default:
				WriteError(w, http.StatusInternalServerError, "failed to start build", "INTERNAL_ERROR")
			}
			return
		}

		WriteJSON(w, http.StatusAccepted, BuildAcceptedResponse{BuildID: build.ID})
	}
}

func listBuildsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		builds, err := cfg.Repository.ListBuilds(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list builds", "INTERNAL_ERROR")
			return
		}

		resp := BuildsResponse{Builds: make([]BuildResponse, len(builds))}
		for i, b := range builds {
			resp.Builds[i] = BuildToResponse(b)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getBuildHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "build id required", "BAD_REQUEST")
			return
		}

		build, err := cfg.Repository.GetBuild(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if build == nil {
			WriteError(w, http.StatusNotFound, "build not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, BuildToResponse(build))
	}
}

func artifactHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "build id required", "BAD_REQUEST")
			return
		}

		build, err := cfg.Repository.GetBuild(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if build == nil {
			WriteError(w, http.StatusNotFound, "build not found", "NOT_FOUND")
			return
		}
		if build.Status != history.BuildStatusCompleted || build.ArtifactPath == "" {
			WriteError(w, http.StatusNotFound, "build has no artifact", "NOT_FOUND")
			return
		}

		if err := cfg.Artifacts.ServeFile(w, r, build.ArtifactPath, build.MediaType); err != nil {
			cfg.Logger.Error("artifact serve error", "error", err, "build_id", id)
		}
	}
}
