// Package config provides configuration management for the Clipforge Agent.
// Configuration is loaded from an optional TOML file and environment
// variables, with sensible defaults. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort     = 8995
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipforge"

	// Environment variable names
	EnvPort       = "CLIPFORGE_PORT"
	EnvLogLevel   = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir    = "CLIPFORGE_DATA_DIR"
	EnvConfigFile = "CLIPFORGE_CONFIG"

	// Engine environment variable names
	EnvFFmpegBinary = "CLIPFORGE_FFMPEG"

	// Database filename
	DBFilename = "clipforge.db"

	// Engine defaults
	DefaultFFmpegBinary = "ffmpeg"
	DefaultTargetWidth  = 640
	DefaultVideoPreset  = "veryfast"
	DefaultVideoCRF     = 23
	DefaultAudioBitrate = "128k"

	DefaultEngineInitTimeout = 15 // seconds

	// Fetch defaults
	DefaultFetchTimeout  = 300                     // seconds
	DefaultFetchMaxBytes = 2 * 1024 * 1024 * 1024 // 2GB per source clip
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	WorkspaceDir() string
	ArtifactsDir() string
	FFmpegBinary() string
	TargetWidth() int
	VideoPreset() string
	VideoCRF() int
	AudioBitrate() string
	EngineInitTimeout() time.Duration
	FetchTimeout() time.Duration
	FetchMaxBytes() int64
}

// fileConfig mirrors the optional TOML configuration file.
type fileConfig struct {
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
	DataDir  string `toml:"data_dir"`

	Engine struct {
		Binary       string `toml:"binary"`
		TargetWidth  int    `toml:"target_width"`
		VideoPreset  string `toml:"video_preset"`
		VideoCRF     int    `toml:"video_crf"`
		AudioBitrate string `toml:"audio_bitrate"`
	} `toml:"engine"`

	Fetch struct {
		TimeoutSeconds int   `toml:"timeout_seconds"`
		MaxBytes       int64 `toml:"max_bytes"`
	} `toml:"fetch"`
}

// EnvConfig reads configuration from the config file and environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	ffmpegBinary string
	targetWidth  int
	videoPreset  string
	videoCRF     int
	audioBitrate string

	fetchTimeout  time.Duration
	fetchMaxBytes int64
}

// New creates a new EnvConfig with defaults, config file values, and
// environment variable overrides applied in that order.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		ffmpegBinary:  DefaultFFmpegBinary,
		targetWidth:   DefaultTargetWidth,
		videoPreset:   DefaultVideoPreset,
		videoCRF:      DefaultVideoCRF,
		audioBitrate:  DefaultAudioBitrate,
		fetchTimeout:  DefaultFetchTimeout * time.Second,
		fetchMaxBytes: DefaultFetchMaxBytes,
	}

	if err := cfg.applyFile(os.Getenv(EnvConfigFile)); err != nil {
		return nil, err
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if fb := os.Getenv(EnvFFmpegBinary); fb != "" {
		cfg.ffmpegBinary = fb
	}

	if cfg.targetWidth < 2 {
		return nil, fmt.Errorf("invalid target width %d: must be at least 2", cfg.targetWidth)
	}

	return cfg, nil
}

// applyFile overlays values from a TOML config file. A missing file is only
// an error when the path was set explicitly.
func (c *EnvConfig) applyFile(path string) error {
	explicit := path != ""
	if path == "" {
		path = filepath.Join(c.dataDir, "config.toml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("cannot read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.Engine.Binary != "" {
		c.ffmpegBinary = fc.Engine.Binary
	}
	if fc.Engine.TargetWidth != 0 {
		c.targetWidth = fc.Engine.TargetWidth
	}
	if fc.Engine.VideoPreset != "" {
		c.videoPreset = fc.Engine.VideoPreset
	}
	if fc.Engine.VideoCRF != 0 {
		c.videoCRF = fc.Engine.VideoCRF
	}
	if fc.Engine.AudioBitrate != "" {
		c.audioBitrate = fc.Engine.AudioBitrate
	}
	if fc.Fetch.TimeoutSeconds != 0 {
		c.fetchTimeout = time.Duration(fc.Fetch.TimeoutSeconds) * time.Second
	}
	if fc.Fetch.MaxBytes != 0 {
		c.fetchMaxBytes = fc.Fetch.MaxBytes
	}

	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// WorkspaceDir returns the engine's named-resource workspace directory
func (c *EnvConfig) WorkspaceDir() string {
	return filepath.Join(c.dataDir, "workspace")
}

// ArtifactsDir returns the directory finished build artifacts are stored in
func (c *EnvConfig) ArtifactsDir() string {
	return filepath.Join(c.dataDir, "artifacts")
}

func (c *EnvConfig) FFmpegBinary() string {
	return c.ffmpegBinary
}

func (c *EnvConfig) TargetWidth() int {
	return c.targetWidth
}

func (c *EnvConfig) VideoPreset() string {
	return c.videoPreset
}

func (c *EnvConfig) VideoCRF() int {
	return c.videoCRF
}

func (c *EnvConfig) AudioBitrate() string {
	return c.audioBitrate
}

func (c *EnvConfig) EngineInitTimeout() time.Duration {
	return DefaultEngineInitTimeout * time.Second
}

func (c *EnvConfig) FetchTimeout() time.Duration {
	return c.fetchTimeout
}

func (c *EnvConfig) FetchMaxBytes() int64 {
	return c.fetchMaxBytes
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
