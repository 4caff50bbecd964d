package encoder

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/doc2md/doc2md/internal/core"
)

func testConfig(t *testing.T) Config {
	return Config{
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		TempDir:        t.TempDir(),
		Timeout:        5 * time.Second,
		TargetBytes:    95_000_000,
		CeilingBytes:   100_000_000,
		AudioMinKbps:   64,
		AudioMaxKbps:   320,
		VideoMinKbps:   256,
		VideoMaxKbps:   8000,
		RetryReduction: 0.85,
	}
}

func TestTargetBitrate_Clamps(t *testing.T) {
	e := New(testConfig(t), zaptest.NewLogger(t))

	cases := []struct {
		name        string
		durationSec float64
		targetBytes int64
		k           kind
		want        int
	}{
		// 95MB over 120s computes to 6016 kbps, far above the audio band.
		{"audio clamp high", 120, 95_000_000, kindAudio, 320},
		// Same target over an hour lands inside the band untouched.
		{"audio in band", 3600, 95_000_000, kindAudio, 200},
		// A tiny target over a long clip under-runs the band floor.
		{"audio clamp low", 36000, 95_000_000, kindAudio, 64},
		{"video clamp high", 60, 95_000_000, kindVideo, 8000},
		{"video in band", 1800, 95_000_000, kindVideo, 401},
		{"video clamp low", 86400, 95_000_000, kindVideo, 256},
	}

	for _, tc := range cases {
		if got := e.targetBitrateKbps(tc.durationSec, tc.targetBytes, tc.k); got != tc.want {
			t.Errorf("%s: expected %d kbps, got %d", tc.name, tc.want, got)
		}
	}
}

// stubPasses makes each encode pass write an output file of the given sizes
// in order, recording the bitrates requested.
func stubPasses(e *Encoder, t *testing.T, sizes []int, bitrates *[]int) {
	call := 0
	e.runPass = func(_ context.Context, _, outPath string, _ kind, bitrateKbps int, _ float64, _ core.ProgressFunc) error {
		if call >= len(sizes) {
			t.Fatalf("unexpected pass %d", call+1)
		}
		*bitrates = append(*bitrates, bitrateKbps)
		data := make([]byte, sizes[call])
		call++
		return os.WriteFile(outPath, data, 0o600)
	}
}

func TestEncode_SecondPassRescuesOversizeOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.CeilingBytes = 1000
	cfg.TargetBytes = 950
	e := New(cfg, zaptest.NewLogger(t))
	e.probe = func(context.Context, string) (float64, error) { return 10, nil }

	var bitrates []int
	stubPasses(e, t, []int{1100, 900}, &bitrates)

	res, err := e.Encode(context.Background(), []byte("x"), "audio/flac", nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(res.Bytes) != 900 {
		t.Errorf("expected second pass output, got %d bytes", len(res.Bytes))
	}
	if res.MediaType != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %s", res.MediaType)
	}
	if len(bitrates) != 2 {
		t.Fatalf("expected 2 passes, got %d", len(bitrates))
	}
	wantReduced := e.targetBitrateKbps(10, int64(float64(cfg.CeilingBytes)*cfg.RetryReduction), kindAudio)
	if bitrates[1] != wantReduced {
		t.Errorf("expected reduced bitrate %d on second pass, got %d", wantReduced, bitrates[1])
	}
}

func TestEncode_FailsAfterTwoOversizePasses(t *testing.T) {
	cfg := testConfig(t)
	cfg.CeilingBytes = 1000
	e := New(cfg, zaptest.NewLogger(t))
	e.probe = func(context.Context, string) (float64, error) { return 10, nil }

	var bitrates []int
	stubPasses(e, t, []int{1100, 1100}, &bitrates)

	_, err := e.Encode(context.Background(), []byte("x"), "audio/flac", nil)
	if !errors.Is(err, core.ErrEncodedFileTooLarge) {
		t.Fatalf("expected ErrEncodedFileTooLarge, got %v", err)
	}
	if len(bitrates) != 2 {
		t.Errorf("expected exactly 2 passes and no third attempt, got %d", len(bitrates))
	}
}

func TestEncode_ProbeFailure(t *testing.T) {
	e := New(testConfig(t), zaptest.NewLogger(t))
	e.probe = func(context.Context, string) (float64, error) { return 0, errors.New("no duration") }

	_, err := e.Encode(context.Background(), []byte("x"), "audio/flac", nil)
	if !errors.Is(err, core.ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}
}

func TestEncode_ZeroDurationProbe(t *testing.T) {
	e := New(testConfig(t), zaptest.NewLogger(t))
	e.probe = func(context.Context, string) (float64, error) { return 0, nil }

	_, err := e.Encode(context.Background(), []byte("x"), "audio/flac", nil)
	if !errors.Is(err, core.ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "duration") {
		t.Errorf("error %q should name the bad duration", err)
	}
}

func TestEncode_TimeoutDuringProbe(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timeout = 20 * time.Millisecond
	e := New(cfg, zaptest.NewLogger(t))
	e.probe = func(ctx context.Context, _ string) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	_, err := e.Encode(context.Background(), []byte("x"), "audio/flac", nil)
	if !errors.Is(err, core.ErrEncodingTimeout) {
		t.Fatalf("expected ErrEncodingTimeout, got %v", err)
	}
}

func TestEncode_NonMediaType(t *testing.T) {
	e := New(testConfig(t), zaptest.NewLogger(t))
	_, err := e.Encode(context.Background(), []byte("x"), "application/pdf", nil)
	if !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestEncode_Timeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timeout = 20 * time.Millisecond
	e := New(cfg, zaptest.NewLogger(t))
	e.probe = func(context.Context, string) (float64, error) { return 10, nil }
	e.runPass = func(ctx context.Context, _, _ string, _ kind, _ int, _ float64, _ core.ProgressFunc) error {
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := e.Encode(context.Background(), []byte("x"), "video/webm", nil)
	if !errors.Is(err, core.ErrEncodingTimeout) {
		t.Fatalf("expected ErrEncodingTimeout, got %v", err)
	}
}

func TestEncode_TempFilesRemoved(t *testing.T) {
	cfg := testConfig(t)
	e := New(cfg, zaptest.NewLogger(t))
	e.probe = func(context.Context, string) (float64, error) { return 10, nil }

	var bitrates []int
	stubPasses(e, t, []int{500}, &bitrates)
	if _, err := e.Encode(context.Background(), []byte("x"), "audio/ogg", nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	entries, err := os.ReadDir(cfg.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected temp dir cleaned, found %d entries", len(entries))
	}
}

func TestParseOutTime(t *testing.T) {
	if us, ok := parseOutTime("out_time_us=1500000"); !ok || us != 1500000 {
		t.Errorf("out_time_us: got %d ok=%v", us, ok)
	}
	if us, ok := parseOutTime("out_time_ms=2500000"); !ok || us != 2500000 {
		t.Errorf("out_time_ms: got %d ok=%v", us, ok)
	}
	for _, line := range []string{"frame=12", "progress=continue", "out_time=00:00:01.5", "garbage", "out_time_us=-5"} {
		if _, ok := parseOutTime(line); ok {
			t.Errorf("parseOutTime(%q): expected no match", line)
		}
	}
}
