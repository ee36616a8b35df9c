// Package builder drives the segment-assembly pipeline: validate the
// requested segments, acquire the engine session, fetch and trim each clip
// in order, join the results, and hand back a single playable artifact.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/clipforge/clipforge-agent/internal/engine"
	"github.com/clipforge/clipforge-agent/internal/logging"
	"github.com/clipforge/clipforge-agent/internal/segment"
)

// Well-known resource names. These are cleared before every run so a prior
// run's leftovers cannot leak into the next output.
const (
	manifestName    = "manifest.txt"
	outputName      = "output.mp4"
	outputMediaType = "video/mp4"
)

func inputName(i int) string   { return fmt.Sprintf("input-%d.mp4", i) }
func segmentName(i int) string { return fmt.Sprintf("segment-%d.mp4", i) }

// Artifact is the final produced output video.
type Artifact struct {
	Data      []byte
	MediaType string
}

// Settings are the fixed, source-agnostic encode parameters applied to every
// segment. Uniform re-encoding here is what makes the final stream-copy
// concat safe.
type Settings struct {
	TargetWidth  int
	VideoPreset  string
	VideoCRF     int
	AudioBitrate string
}

// Builder executes one pipeline run at a time over the shared engine
// session.
type Builder struct {
	sessions *engine.Sessions
	fetcher  Fetcher
	reporter Reporter
	settings Settings
	logger   *slog.Logger

	inFlight atomic.Bool
}

func New(sessions *engine.Sessions, fetcher Fetcher, reporter Reporter, settings Settings, logger *slog.Logger) *Builder {
	return &Builder{
		sessions: sessions,
		fetcher:  fetcher,
		reporter: reporter,
		settings: settings,
		logger:   logger,
	}
}

// InFlight reports whether a run is currently executing.
func (b *Builder) InFlight() bool {
	return b.inFlight.Load()
}

// Build turns raw segment descriptors into a single concatenated video.
// Steps run strictly in sequence; any failure is fatal to the run and no
// partial output is produced. A second concurrent call is rejected with
// ErrBuildInFlight.
func (b *Builder) Build(ctx context.Context, raw []segment.Segment) (*Artifact, error) {
	if !b.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBuildInFlight
	}
	defer b.inFlight.Store(false)

	b.reporter.Progress(0)
	b.reporter.Status("")

	plan, err := segment.Validate(raw)
	if err != nil {
		return nil, err
	}
	if dropped := len(raw) - len(plan.Segments); dropped > 0 {
		b.logger.Debug("dropped invalid segment descriptors", "count", dropped)
	}

	eng, err := b.sessions.Ensure(ctx)
	if err != nil {
		return nil, &InitError{Err: err}
	}

	b.cleanupStale(eng)

	total := len(plan.Segments)
	names := make([]string, 0, total)

	for i, seg := range plan.Segments {
		b.reporter.Status(fmt.Sprintf("downloading clip %d", i+1))

		data, err := b.fetcher.Fetch(ctx, seg.URL)
		if err != nil {
			return nil, &FetchError{Index: i, URL: seg.URL, Err: err}
		}
		if err := eng.WriteInput(inputName(i), data); err != nil {
			return nil, &ProcessError{Index: i, Err: err}
		}

		b.reporter.Status(fmt.Sprintf("cutting segment %d/%d", i+1, total))

		err = eng.Execute(ctx, b.trimArgs(i, seg), engine.ExecOpts{
			ExpectedDuration: seg.TrimDuration(),
		})
		if err != nil {
			return nil, &ProcessError{Index: i, Err: err}
		}

		names = append(names, segmentName(i))
		b.logger.Info("segment cut",
			"index", i,
			"url", logging.SanitizeURL(seg.URL),
			"duration_sec", seg.TrimDuration(),
		)
	}

	var manifest bytes.Buffer
	for _, name := range names {
		fmt.Fprintf(&manifest, "file '%s'\n", name)
	}
	if err := eng.WriteInput(manifestName, manifest.Bytes()); err != nil {
		return nil, &ConcatError{Err: err}
	}

	b.reporter.Status("concatenating")

	err = eng.Execute(ctx, concatArgs(), engine.ExecOpts{
		ExpectedDuration: plan.TotalDuration(),
	})
	if err != nil {
		return nil, &ConcatError{Err: err}
	}

	data, err := eng.ReadOutput(outputName)
	if err != nil {
		return nil, &ConcatError{Err: err}
	}

	b.reporter.Progress(100)
	b.reporter.Status("done")

	b.logger.Info("build complete", "segments", total, "artifact_bytes", len(data))
	return &Artifact{Data: data, MediaType: outputMediaType}, nil
}

// cleanupStale removes the well-known named resources a previous run may
// have left behind. Best effort: failures are logged and ignored.
func (b *Builder) cleanupStale(eng engine.Engine) {
	for _, name := range []string{manifestName, outputName} {
		if err := eng.DeleteNamed(name); err != nil {
			b.logger.Debug("stale resource cleanup failed", "name", name, "error", err)
		}
	}
}

// trimArgs builds the trim-and-reencode argument vector for one segment.
// Every source is re-encoded to the same codec and scale; arbitrary
// heterogeneous inputs cannot be cut byte-accurately by container copy.
func (b *Builder) trimArgs(i int, seg segment.Segment) []string {
	return []string{
		"-ss", formatSeconds(seg.StartSec),
		"-i", inputName(i),
		"-t", formatSeconds(seg.TrimDuration()),
		"-vf", fmt.Sprintf("scale=%d:-2", b.settings.TargetWidth),
		"-c:v", "libx264",
		"-preset", b.settings.VideoPreset,
		"-crf", strconv.Itoa(b.settings.VideoCRF),
		"-c:a", "aac",
		"-b:a", b.settings.AudioBitrate,
		"-y", segmentName(i),
	}
}

// concatArgs builds the stream-copy join over the manifest. Safe without a
// re-encode because every segment output shares the trim step's uniform
// format.
func concatArgs() []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", manifestName,
		"-c", "copy",
		"-y", outputName,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
