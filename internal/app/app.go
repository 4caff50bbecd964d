package app

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/config"
	"github.com/doc2md/doc2md/internal/core"
	"github.com/doc2md/doc2md/internal/core/drive"
	"github.com/doc2md/doc2md/internal/core/encoder"
	"github.com/doc2md/doc2md/internal/core/llm"
	"github.com/doc2md/doc2md/internal/core/objectstore"
	"github.com/doc2md/doc2md/internal/core/pipeline"
	"github.com/doc2md/doc2md/internal/core/task"
	"github.com/doc2md/doc2md/internal/core/uploadcache"
)

// App owns every long-lived component. Components that depend on missing
// credentials come up in a degraded state and report it per request, so a
// bare `go run` still serves the endpoints that need no cloud access.
type App struct {
	Cache  *uploadcache.Cache
	Store  *task.Store
	Gemini *llm.Gemini
	Server *Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	cache, err := uploadcache.New(filepath.Join(cfg.CacheDir, "doc2md-uploads"), cfg.CacheTTL,
		core.SystemClock, core.SystemScheduler, logger)
	if err != nil {
		return nil, err
	}

	store := task.NewStore(cfg.TaskRetention, core.SystemClock, core.SystemScheduler, logger)

	enc := encoder.New(encoder.Config{
		FFmpegPath:     cfg.FFmpegPath,
		FFprobePath:    cfg.FFprobePath,
		Timeout:        cfg.EncodeTimeout,
		TargetBytes:    cfg.EncodeTargetBytes,
		CeilingBytes:   cfg.EncodeCeilingBytes,
		AudioMinKbps:   cfg.AudioBitrateMinKbps,
		AudioMaxKbps:   cfg.AudioBitrateMaxKbps,
		VideoMinKbps:   cfg.VideoBitrateMinKbps,
		VideoMaxKbps:   cfg.VideoBitrateMaxKbps,
		RetryReduction: cfg.RetryReduction,
	}, logger)

	driveClient, err := drive.NewClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	objects, err := objectstore.NewS3Store(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, logger)
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(driveClient, enc, logger)
	runner := task.NewRunner(store, cache, pipe, gemini, logger)
	server := NewServer(cfg, runner, store, pipe, gemini, objects, driveClient, cache, logger)

	return &App{
		Cache:  cache,
		Store:  store,
		Gemini: gemini,
		Server: server,
	}, nil
}

func (a *App) Close() {
	if a.Gemini != nil {
		a.Gemini.Close()
	}
}
