package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	os.Unsetenv(EnvPort)
	os.Unsetenv(EnvConfigFile)
	os.Unsetenv(EnvFFmpegBinary)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("default Port = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.FFmpegBinary() != DefaultFFmpegBinary {
		t.Errorf("default FFmpegBinary = %q, want %q", cfg.FFmpegBinary(), DefaultFFmpegBinary)
	}
	if cfg.TargetWidth() != DefaultTargetWidth {
		t.Errorf("default TargetWidth = %d, want %d", cfg.TargetWidth(), DefaultTargetWidth)
	}
}

func TestNew_PortFromEnv(t *testing.T) {
	os.Setenv(EnvPort, "9001")
	defer os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Port())
	}
}

func TestNew_InvalidPort(t *testing.T) {
	os.Setenv(EnvPort, "not-a-port")
	defer os.Unsetenv(EnvPort)

	if _, err := New(); err == nil {
		t.Error("New() should fail for a non-numeric port")
	}
}

func TestNew_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	content := `
port = 9100
log_level = "debug"

[engine]
binary = "/opt/ffmpeg/bin/ffmpeg"
target_width = 1280

[fetch]
timeout_seconds = 30
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	os.Setenv(EnvConfigFile, path)
	defer os.Unsetenv(EnvConfigFile)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel())
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegBinary = %q", cfg.FFmpegBinary())
	}
	if cfg.TargetWidth() != 1280 {
		t.Errorf("TargetWidth = %d, want 1280", cfg.TargetWidth())
	}
	if cfg.FetchTimeout().Seconds() != 30 {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.FetchTimeout())
	}
}

func TestNew_EnvWinsOverFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte("port = 9100\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	os.Setenv(EnvConfigFile, path)
	os.Setenv(EnvPort, "9200")
	defer os.Unsetenv(EnvConfigFile)
	defer os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9200 {
		t.Errorf("Port = %d, want 9200 (env should win)", cfg.Port())
	}
}

func TestNew_MissingExplicitConfigFile(t *testing.T) {
	os.Setenv(EnvConfigFile, "/nonexistent/config.toml")
	defer os.Unsetenv(EnvConfigFile)

	if _, err := New(); err == nil {
		t.Error("New() should fail when an explicit config file is missing")
	}
}
