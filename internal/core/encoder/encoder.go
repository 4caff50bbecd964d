// Package encoder shrinks and normalizes audio/video into AI-ingestible
// containers (mp3/mp4) using an external ffmpeg subprocess. Bitrate is
// derived from a byte-size target; output that still exceeds the hard
// ceiling gets exactly one reduced retry.
package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/core"
)

// muxOverhead leaves 5% headroom for container/muxing bytes on top of the
// raw stream size the bitrate math accounts for.
const muxOverhead = 0.95

type Config struct {
	FFmpegPath  string
	FFprobePath string
	TempDir     string

	// Timeout bounds one whole encode call, both passes included.
	Timeout time.Duration

	// TargetBytes is what the first pass aims for; CeilingBytes is the hard
	// limit the output must stay under.
	TargetBytes  int64
	CeilingBytes int64

	AudioMinKbps int
	AudioMaxKbps int
	VideoMinKbps int
	VideoMaxKbps int

	// RetryReduction scales the ceiling down for the second pass target.
	RetryReduction float64
}

// Result is the normalized media ready for AI ingestion.
type Result struct {
	Bytes     []byte
	MediaType string
}

type kind int

const (
	kindAudio kind = iota
	kindVideo
)

type Encoder struct {
	cfg    Config
	logger *zap.Logger

	// Overridable in tests so passes run without a real ffmpeg.
	probe   func(ctx context.Context, path string) (float64, error)
	runPass func(ctx context.Context, inPath, outPath string, k kind, bitrateKbps int, durationSec float64, onProgress core.ProgressFunc) error
}

func New(cfg Config, logger *zap.Logger) *Encoder {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	e := &Encoder{cfg: cfg, logger: logger}
	e.probe = e.ffprobeDuration
	e.runPass = e.ffmpegPass
	return e
}

// Encode transcodes data to mp3 (audio) or mp4 (video), aiming for
// cfg.TargetBytes. Temporary files are removed on every exit path.
func (e *Encoder) Encode(ctx context.Context, data []byte, mediaType string, onProgress core.ProgressFunc) (Result, error) {
	var k kind
	var outMime, outExt string
	switch {
	case strings.HasPrefix(mediaType, "audio/"):
		k, outMime, outExt = kindAudio, "audio/mpeg", ".mp3"
	case strings.HasPrefix(mediaType, "video/"):
		k, outMime, outExt = kindVideo, "video/mp4", ".mp4"
	default:
		return Result{}, fmt.Errorf("%w: cannot encode %s", core.ErrUnsupportedFormat, mediaType)
	}

	inPath := e.tempPath("in", ".tmp")
	outPath := e.tempPath("out", outExt)
	defer func() {
		_ = os.Remove(inPath)
		_ = os.Remove(outPath)
	}()

	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return Result{}, fmt.Errorf("stage encoder input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	duration, err := e.probe(ctx, inPath)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("%w after %s", core.ErrEncodingTimeout, e.cfg.Timeout)
		}
		return Result{}, fmt.Errorf("%w: %v", core.ErrProbeFailed, err)
	}
	if duration <= 0 {
		return Result{}, fmt.Errorf("%w: reported duration %.3fs", core.ErrProbeFailed, duration)
	}

	bitrate := e.targetBitrateKbps(duration, e.cfg.TargetBytes, k)

	e.logger.Info("Starting encode",
		zap.String("media_type", mediaType),
		zap.Float64("duration_sec", duration),
		zap.Int("bitrate_kbps", bitrate),
		zap.Int("input_bytes", len(data)),
	)

	if err := e.runPass(ctx, inPath, outPath, k, bitrate, duration, onProgress); err != nil {
		return Result{}, e.passError(ctx, err)
	}

	size, err := fileSize(outPath)
	if err != nil {
		return Result{}, err
	}

	if size > e.cfg.CeilingBytes {
		reducedTarget := int64(float64(e.cfg.CeilingBytes) * e.cfg.RetryReduction)
		reduced := e.targetBitrateKbps(duration, reducedTarget, k)

		e.logger.Warn("Encoded output above ceiling, retrying once",
			zap.Int64("output_bytes", size),
			zap.Int64("ceiling_bytes", e.cfg.CeilingBytes),
			zap.Int("reduced_bitrate_kbps", reduced),
		)

		_ = os.Remove(outPath)
		if err := e.runPass(ctx, inPath, outPath, k, reduced, duration, onProgress); err != nil {
			return Result{}, e.passError(ctx, err)
		}
		if size, err = fileSize(outPath); err != nil {
			return Result{}, err
		}
		if size > e.cfg.CeilingBytes {
			return Result{}, fmt.Errorf("%w: %.1fMB after retry", core.ErrEncodedFileTooLarge, float64(size)/(1<<20))
		}
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("read encoder output: %w", err)
	}
	return Result{Bytes: out, MediaType: outMime}, nil
}

// targetBitrateKbps derives the bitrate that lands targetBytes over the
// clip's duration, clamped to the sane band for the media kind.
func (e *Encoder) targetBitrateKbps(durationSec float64, targetBytes int64, k kind) int {
	kbps := int(float64(targetBytes) * muxOverhead * 8 / (durationSec * 1000))

	minK, maxK := e.cfg.AudioMinKbps, e.cfg.AudioMaxKbps
	if k == kindVideo {
		minK, maxK = e.cfg.VideoMinKbps, e.cfg.VideoMaxKbps
	}
	if kbps < minK {
		return minK
	}
	if kbps > maxK {
		return maxK
	}
	return kbps
}

func (e *Encoder) passError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", core.ErrEncodingTimeout, e.cfg.Timeout)
	}
	return fmt.Errorf("encode pass: %w", err)
}

func (e *Encoder) tempPath(prefix, ext string) string {
	return filepath.Join(e.cfg.TempDir, fmt.Sprintf("encode-%s-%s%s", prefix, uuid.NewString(), ext))
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat encoder output: %w", err)
	}
	return fi.Size(), nil
}

// ffprobeDuration asks ffprobe for the container duration in seconds.
func (e *Encoder) ffprobeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return d, nil
}

// ffmpegPass runs one encode, parsing -progress output into throttled,
// monotonically increasing percentage ticks.
func (e *Encoder) ffmpegPass(ctx context.Context, inPath, outPath string, k kind, bitrateKbps int, durationSec float64, onProgress core.ProgressFunc) error {
	args := []string{"-y", "-i", inPath}
	switch k {
	case kindAudio:
		args = append(args,
			"-vn",
			"-acodec", "libmp3lame",
			"-b:a", fmt.Sprintf("%dk", bitrateKbps),
			"-ac", "2",
			"-ar", "44100",
			"-f", "mp3",
		)
	case kindVideo:
		args = append(args,
			"-c:v", "libx264",
			"-b:v", fmt.Sprintf("%dk", bitrateKbps),
			"-preset", "fast",
			"-movflags", "+faststart",
			"-c:a", "aac",
			"-b:a", "128k",
			"-f", "mp4",
		)
	}
	args = append(args, "-progress", "pipe:1", "-nostats", outPath)

	cmd := exec.CommandContext(ctx, e.cfg.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	started := time.Now()
	var lastPercent int
	var lastEmit time.Time

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		us, ok := parseOutTime(scanner.Text())
		if !ok || onProgress == nil {
			continue
		}
		percent := int(float64(us) / 1e6 / durationSec * 100)
		if percent > 100 {
			percent = 100
		}
		now := time.Now()
		// Suppress regressed/duplicate ticks and cap the update rate.
		if percent <= lastPercent || now.Sub(lastEmit) < time.Second {
			continue
		}
		lastPercent = percent
		lastEmit = now

		eta := -1
		if percent > 0 {
			elapsed := now.Sub(started).Seconds()
			eta = int(elapsed / float64(percent) * float64(100-percent))
		}
		onProgress(core.Progress{Percent: percent, ETASeconds: eta})
	}

	return cmd.Wait()
}

// parseOutTime extracts the current encode position in microseconds from one
// line of ffmpeg -progress output.
func parseOutTime(line string) (int64, bool) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	// out_time_ms is microseconds despite the name; out_time_us is explicit.
	if key != "out_time_us" && key != "out_time_ms" {
		return 0, false
	}
	us, err := strconv.ParseInt(val, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return us, true
}
