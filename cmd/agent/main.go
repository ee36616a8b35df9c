package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/clipforge/clipforge-agent/internal/api"
	"github.com/clipforge/clipforge-agent/internal/artifacts"
	"github.com/clipforge/clipforge-agent/internal/builder"
	"github.com/clipforge/clipforge-agent/internal/config"
	"github.com/clipforge/clipforge-agent/internal/db"
	"github.com/clipforge/clipforge-agent/internal/engine"
	"github.com/clipforge/clipforge-agent/internal/history"
	"github.com/clipforge/clipforge-agent/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkspaceDir(), 0755); err != nil {
		return fmt.Errorf("failed to create workspace dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipforge agent", "version", config.Version, "data_dir", cfg.DataDir())

	lock := flock.New(filepath.Join(cfg.DataDir(), "agent.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return errors.New("another clipforge agent instance is already running")
	}
	defer lock.Unlock()

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := history.NewRepository(database.Conn())

	agentID, err := ensureAgentID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure agent ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   CLIPFORGE AGENT v0.1.0                  ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Agent ID:   %-45s ║\n", agentID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	store, err := artifacts.NewStore(cfg.ArtifactsDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize artifacts store: %w", err)
	}

	reporter := builder.NewTrackingReporter(builder.NewRunState(), repo, logger)

	sessions := engine.NewSessions(func(obs engine.Observers) engine.Engine {
		return engine.NewFFmpeg(engine.Config{
			Binary:       cfg.FFmpegBinary(),
			WorkspaceDir: cfg.WorkspaceDir(),
			InitTimeout:  cfg.EngineInitTimeout(),
			Logger:       logger,
		}, obs)
	}, reporter, logger)

	fetcher := builder.NewHTTPFetcher(cfg.FetchTimeout(), cfg.FetchMaxBytes(), logger)

	pipeline := builder.New(sessions, fetcher, reporter, builder.Settings{
		TargetWidth:  cfg.TargetWidth(),
		VideoPreset:  cfg.VideoPreset(),
		VideoCRF:     cfg.VideoCRF(),
		AudioBitrate: cfg.AudioBitrate(),
	}, logger)

	buildSvc := builder.NewService(pipeline, repo, store, reporter, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		BuildService: buildSvc,
		Repository:   repo,
		Artifacts:    store,
		Sessions:     sessions,
		Logger:       logger,
		StartTime:    startTime,
		AgentID:      agentID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAgentID(repo history.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "agent_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	agentID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "agent_id", agentID); err != nil {
		return "", err
	}

	return agentID, nil
}

func ensureAuthToken(repo history.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
