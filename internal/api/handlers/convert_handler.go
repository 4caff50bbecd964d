package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/config"
	"github.com/doc2md/doc2md/internal/core"
	"github.com/doc2md/doc2md/internal/core/format"
	"github.com/doc2md/doc2md/internal/core/pipeline"
	"github.com/doc2md/doc2md/internal/core/task"
)

// maxSyncFiles bounds the synchronous conversion endpoint; bigger batches
// belong on the task API.
const maxSyncFiles = 10

type ConvertHandler struct {
	runner *task.Runner
	store  *task.Store
	pipe   task.Preparer
	ai     core.AIBackend
	cfg    *config.Config
	logger *zap.Logger
}

func NewConvertHandler(runner *task.Runner, store *task.Store, pipe task.Preparer, ai core.AIBackend, cfg *config.Config, logger *zap.Logger) *ConvertHandler {
	return &ConvertHandler{runner: runner, store: store, pipe: pipe, ai: ai, cfg: cfg, logger: logger}
}

// uploadRef points at one cached upload. Filename and mimetype ride along
// for logging; the cache entry remains the source of truth for both.
type uploadRef struct {
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
}

type startConversionRequest struct {
	Files []uploadRef `json:"files"`
	Model string      `json:"model"`
}

// Start launches a background conversion over cached uploads and returns
// the task id for polling.
func (h *ConvertHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, h.logger, fmt.Errorf("invalid body: %w", core.ErrInvalidInput))
		return
	}
	if req.Model == "" {
		req.Model = h.cfg.GenModel
	}

	fileIDs := make([]string, len(req.Files))
	for i, f := range req.Files {
		fileIDs[i] = f.FileID
	}

	taskID, err := h.runner.StartConversion(fileIDs, req.Model)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"taskId": taskID,
		"status": string(task.StatusPending),
	})
}

type startSummaryRequest struct {
	Markdown string `json:"markdown"`
	Model    string `json:"model"`
}

// SummarizeStart launches a background summarization task over
// already-converted markdown.
func (h *ConvertHandler) SummarizeStart(w http.ResponseWriter, r *http.Request) {
	var req startSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, h.logger, fmt.Errorf("invalid body: %w", core.ErrInvalidInput))
		return
	}
	if req.Model == "" {
		req.Model = h.cfg.GenModel
	}

	taskID, err := h.runner.StartSummary(req.Markdown, req.Model)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"taskId": taskID,
		"status": string(task.StatusPending),
	})
}

// Status reports a conversion task snapshot. Completed tasks carry the
// markdown, failed ones the error text; in-flight ones carry progress,
// eta, and streaming throughput.
func (h *ConvertHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, "markdown")
}

// SummarizeStatus is Status with the summary payload key.
func (h *ConvertHandler) SummarizeStatus(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, "summary")
}

func (h *ConvertHandler) status(w http.ResponseWriter, r *http.Request, resultKey string) {
	taskID := chi.URLParam(r, "taskId")

	snap, err := h.store.Snapshot(taskID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	resp := map[string]any{
		"taskId":   snap.ID,
		"status":   string(snap.Status),
		"progress": snap.Progress,
		"model":    snap.Model,
	}
	switch snap.Status {
	case task.StatusCompleted:
		resp[resultKey] = snap.Result
	case task.StatusFailed:
		resp["error"] = snap.Err.Error()
	case task.StatusProcessing:
		if snap.ETASeconds >= 0 {
			resp["eta"] = snap.ETASeconds
		}
		if snap.ThroughputBps > 0 {
			resp["throughput"] = snap.ThroughputBps
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Convert handles the synchronous path: multipart files in, markdown out in
// one round trip. Meant for small documents; media uploads should go
// through the task API instead.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxMediaBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		handleError(w, h.logger, fmt.Errorf("invalid multipart body: %w", core.ErrInvalidInput))
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		handleError(w, h.logger, fmt.Errorf("no files given: %w", core.ErrInvalidInput))
		return
	}
	if len(fileHeaders) > maxSyncFiles {
		handleError(w, h.logger, fmt.Errorf("%d files, limit %d: %w", len(fileHeaders), maxSyncFiles, core.ErrInvalidInput))
		return
	}

	raw := make([]pipeline.File, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		mediaType := fh.Header.Get("Content-Type")
		if !format.Supported(mediaType) {
			handleError(w, h.logger, format.Unsupported(fh.Filename, mediaType))
			return
		}

		f, err := fh.Open()
		if err != nil {
			handleError(w, h.logger, fmt.Errorf("open upload %s: %w", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			handleError(w, h.logger, fmt.Errorf("read upload %s: %w", fh.Filename, err))
			return
		}
		raw = append(raw, pipeline.File{Bytes: data, MediaType: mediaType, Name: fh.Filename})
	}

	model := r.FormValue("model")
	if model == "" {
		model = h.cfg.GenModel
	}

	prepared, err := h.pipe.Prepare(r.Context(), raw, nil)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	markdown, err := h.ai.ConvertFiles(r.Context(), prepared, model, nil)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"markdown": markdown})
}

// Formats lists every supported input type and how it is handled.
func (h *ConvertHandler) Formats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"formats": format.List()})
}
