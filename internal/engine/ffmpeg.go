package engine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"context"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Config holds the ffmpeg engine's configuration.
type Config struct {
	Binary       string        // path or name of the ffmpeg binary; empty = auto-detect
	WorkspaceDir string        // the engine's named-resource namespace
	InitTimeout  time.Duration // timeout for the version probe on Initialize
	Logger       *slog.Logger
}

// FFmpeg executes ffmpeg as a subprocess. Named resources are files inside a
// private workspace directory; Execute runs with that directory as the
// working directory so argument vectors can reference bare resource names.
type FFmpeg struct {
	cfg       Config
	observers Observers

	binary      string // resolved binary path
	initialized bool
}

// NewFFmpeg creates an ffmpeg engine with the given passive observers.
// Initialization is deferred to Initialize.
func NewFFmpeg(cfg Config, observers Observers) *FFmpeg {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FFmpeg{cfg: cfg, observers: observers}
}

// Initialize resolves the ffmpeg binary, probes it, and creates the
// workspace. Calling it again after success is a no-op.
func (f *FFmpeg) Initialize(ctx context.Context) error {
	if f.initialized {
		return nil
	}

	binary, err := resolveBinary(f.cfg.Binary)
	if err != nil {
		return fmt.Errorf("cannot locate ffmpeg: %w", err)
	}

	if f.cfg.InitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.InitTimeout)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg version probe failed: %w", err)
	}

	if err := os.MkdirAll(f.cfg.WorkspaceDir, 0755); err != nil {
		return fmt.Errorf("cannot create engine workspace: %w", err)
	}

	version := ""
	if i := bytes.IndexByte(out, '\n'); i > 0 {
		version = string(out[:i])
	}

	f.binary = binary
	f.initialized = true

	f.cfg.Logger.Info("engine initialised",
		"binary", binary,
		"version", version,
		"workspace", f.cfg.WorkspaceDir,
	)
	return nil
}

func (f *FFmpeg) WriteInput(name string, data []byte) error {
	path, err := f.resourcePath(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (f *FFmpeg) ReadOutput(name string) ([]byte, error) {
	path, err := f.resourcePath(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// DeleteNamed removes a named resource. Absence is distinguished from other
// failures and is not an error.
func (f *FFmpeg) DeleteNamed(name string) error {
	path, err := f.resourcePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Execute runs one ffmpeg invocation inside the workspace. Progress lines
// from -progress pipe:1 are mapped to a fraction against the expected
// duration; stderr lines are forwarded to the log observer after filtering.
func (f *FFmpeg) Execute(ctx context.Context, args []string, opts ExecOpts) error {
	if !f.initialized {
		return errors.New("engine not initialized")
	}

	full := append([]string{"-hide_banner", "-nostdin", "-nostats", "-progress", "pipe:1"}, args...)
	cmd := exec.CommandContext(ctx, f.binary, full...)
	cmd.Dir = f.cfg.WorkspaceDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("cannot open progress pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("cannot open log pipe: %w", err)
	}

	f.cfg.Logger.Info("executing engine command", "args", args)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cannot start ffmpeg: %w", err)
	}

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		f.consumeProgress(stdout, opts.ExpectedDuration)
	}()

	tail := f.consumeLogs(stderr)
	<-progressDone

	err = cmd.Wait()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		f.cfg.Logger.Warn("engine command failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(tail, 512),
		)
		return fmt.Errorf("ffmpeg exited %d: %s", exitCode, truncate(tail, 512))
	}

	f.cfg.Logger.Info("engine command succeeded", "duration_ms", elapsed.Milliseconds())
	return nil
}

// consumeProgress parses key=value lines from -progress pipe:1 and emits
// fractions in [0,1] to the progress observer.
func (f *FFmpeg) consumeProgress(r io.Reader, expectedSeconds float64) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if line == "progress=end" {
			f.emitProgress(1)
			continue
		}

		if expectedSeconds <= 0 {
			continue
		}

		if v, ok := strings.CutPrefix(line, "out_time_us="); ok {
			us, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil || us < 0 {
				continue
			}
			fraction := (float64(us) / 1e6) / expectedSeconds
			if fraction > 1 {
				fraction = 1
			}
			f.emitProgress(fraction)
		}
	}
}

func (f *FFmpeg) emitProgress(fraction float64) {
	if f.observers.OnProgress != nil {
		f.observers.OnProgress(fraction)
	}
}

// consumeLogs forwards filtered stderr lines to the log observer and returns
// a bounded tail of everything read, for diagnostics on failure.
func (f *FFmpeg) consumeLogs(r io.Reader) string {
	var tail []byte
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		tail = append(tail, line...)
		tail = append(tail, '\n')
		if len(tail) > maxStderrBytes {
			tail = tail[len(tail)-maxStderrBytes:]
		}

		if isNoise(line) {
			continue
		}
		if f.observers.OnLog != nil {
			f.observers.OnLog(line)
		}
	}
	return string(tail)
}

// noisePrefixes are high-frequency, low-value ffmpeg log categories that are
// dropped before the stream reaches the status sink.
var noisePrefixes = []string{
	"frame=",
	"size=",
	"video:",
	"  ",
	"[AVIOContext",
	"Input #",
	"Output #",
	"Stream mapping",
	"Press [q]",
	"Last message repeated",
}

func isNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	for _, p := range noisePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	// Demuxer per-open diagnostics, e.g. "Opening 'segment-0.mp4' for reading"
	if strings.HasPrefix(trimmed, "Opening '") {
		return true
	}
	return false
}

// resourcePath maps a resource name to a workspace file path. Names must be
// bare, without path separators.
func (f *FFmpeg) resourcePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("invalid resource name %q", name)
	}
	return filepath.Join(f.cfg.WorkspaceDir, name), nil
}

// resolveBinary finds a usable ffmpeg binary.
func resolveBinary(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffmpeg %q not found", preferred)
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	return "", errors.New("no ffmpeg binary found on PATH")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
