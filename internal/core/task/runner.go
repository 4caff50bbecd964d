package task

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/core"
	"github.com/doc2md/doc2md/internal/core/pipeline"
	"github.com/doc2md/doc2md/internal/core/uploadcache"
)

// Progress milestones for the conversion phases. Cached reads fill
// readStart..prepareStart, preparation fills prepareStart..streamStart, and
// streaming nudges toward the cap until completion jumps to 100.
const (
	readStart    = 10
	prepareStart = 30
	streamStart  = 60
)

// FileSource resolves upload references into bytes. Satisfied by
// *uploadcache.Cache.
type FileSource interface {
	Get(id string) ([]byte, uploadcache.Entry, error)
}

// Preparer normalizes raw files for AI ingestion. Satisfied by
// *pipeline.Pipeline.
type Preparer interface {
	Prepare(ctx context.Context, files []pipeline.File, onProgress core.ProgressFunc) ([]core.PreparedFile, error)
}

// Runner starts background jobs against the store. Jobs run on a fresh
// background context: the HTTP request that started a job returns
// immediately and its cancellation must not kill the work.
type Runner struct {
	store  *Store
	files  FileSource
	pipe   Preparer
	ai     core.AIBackend
	logger *zap.Logger
}

func NewRunner(store *Store, files FileSource, pipe Preparer, ai core.AIBackend, logger *zap.Logger) *Runner {
	return &Runner{store: store, files: files, pipe: pipe, ai: ai, logger: logger}
}

// StartConversion validates the request, registers a task, and kicks off
// the conversion in the background. The returned id is pollable at once.
func (r *Runner) StartConversion(fileIDs []string, model string) (string, error) {
	if len(fileIDs) == 0 {
		return "", fmt.Errorf("no file ids given: %w", core.ErrInvalidInput)
	}
	for _, id := range fileIDs {
		if strings.TrimSpace(id) == "" {
			return "", fmt.Errorf("empty file id: %w", core.ErrInvalidInput)
		}
	}

	taskID := r.store.Create(model)
	r.logger.Info("Conversion task started",
		zap.String("task_id", taskID),
		zap.Int("files", len(fileIDs)),
		zap.String("model", model),
	)
	go r.runConversion(taskID, fileIDs, model)
	return taskID, nil
}

// StartSummary registers a summarization task over already-converted
// markdown and runs it in the background.
func (r *Runner) StartSummary(text, model string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text: %w", core.ErrInvalidInput)
	}

	taskID := r.store.Create(model)
	r.logger.Info("Summary task started",
		zap.String("task_id", taskID),
		zap.String("model", model),
	)
	go r.runSummary(taskID, text, model)
	return taskID, nil
}

func (r *Runner) runConversion(taskID string, fileIDs []string, model string) {
	ctx := context.Background()
	r.store.SetProcessing(taskID)
	r.store.SetProgress(taskID, readStart, -1)

	raw := make([]pipeline.File, 0, len(fileIDs))
	for i, fid := range fileIDs {
		data, entry, err := r.files.Get(fid)
		if err != nil {
			r.fail(taskID, err)
			return
		}
		raw = append(raw, pipeline.File{Bytes: data, MediaType: entry.MediaType, Name: entry.Name})
		pct := readStart + (i+1)*(prepareStart-readStart)/len(fileIDs)
		r.store.SetProgress(taskID, pct, -1)
	}

	prepared, err := r.pipe.Prepare(ctx, raw, func(p core.Progress) {
		pct := prepareStart + p.Percent*(streamStart-prepareStart)/100
		r.store.SetProgress(taskID, pct, p.ETASeconds)
	})
	if err != nil {
		r.fail(taskID, err)
		return
	}
	r.store.SetProgress(taskID, streamStart, -1)

	result, err := r.ai.ConvertFiles(ctx, prepared, model, func(chunk string) {
		r.store.AppendChunk(taskID, chunk)
	})
	if err != nil {
		r.fail(taskID, err)
		return
	}

	r.store.Complete(taskID, result)
	r.logger.Info("Conversion task completed", zap.String("task_id", taskID))
}

func (r *Runner) runSummary(taskID, text, model string) {
	ctx := context.Background()
	r.store.SetProcessing(taskID)
	r.store.SetProgress(taskID, readStart, -1)

	result, err := r.ai.Summarize(ctx, text, model, func(chunk string) {
		r.store.AppendChunk(taskID, chunk)
	})
	if err != nil {
		r.fail(taskID, err)
		return
	}

	r.store.Complete(taskID, result)
	r.logger.Info("Summary task completed", zap.String("task_id", taskID))
}

func (r *Runner) fail(taskID string, err error) {
	r.logger.Error("Task failed", zap.String("task_id", taskID), zap.Error(err))
	r.store.Fail(taskID, err)
}
