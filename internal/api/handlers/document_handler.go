package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/config"
	"github.com/doc2md/doc2md/internal/core"
	"github.com/doc2md/doc2md/internal/core/drive"
	"github.com/doc2md/doc2md/internal/core/objectstore"
	"github.com/doc2md/doc2md/internal/core/pdfrender"
)

// DocumentHandler serves everything that happens after conversion: naming
// the document, exporting it as PDF, and saving or fetching copies.
type DocumentHandler struct {
	ai      core.AIBackend
	objects core.ObjectStore
	drive   *drive.Client
	cfg     *config.Config
	logger  *zap.Logger
}

func NewDocumentHandler(ai core.AIBackend, objects core.ObjectStore, driveClient *drive.Client, cfg *config.Config, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{ai: ai, objects: objects, drive: driveClient, cfg: cfg, logger: logger}
}

type markdownRequest struct {
	Markdown string `json:"markdown"`
	Title    string `json:"title"`
	Model    string `json:"model"`
}

func decodeMarkdownRequest(r *http.Request) (markdownRequest, error) {
	var req markdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid body: %w", core.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Markdown) == "" {
		return req, fmt.Errorf("empty markdown: %w", core.ErrInvalidInput)
	}
	return req, nil
}

// GenerateTitle asks the backend for a filename-safe title. A backend
// failure degrades to a random name rather than failing the request; the
// client is about to save a file and always needs something.
func (h *DocumentHandler) GenerateTitle(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMarkdownRequest(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if req.Model == "" {
		req.Model = h.cfg.TitleModel
	}

	title, err := h.ai.GenerateTitle(r.Context(), req.Markdown, req.Model)
	if err != nil {
		h.logger.Warn("Title generation failed, falling back to random name", zap.Error(err))
		title = "document-" + uuid.New().String()[:8]
	}
	respondJSON(w, http.StatusOK, map[string]string{"title": title})
}

// Pdf renders the markdown to PDF and stores it as a downloadable artifact.
func (h *DocumentHandler) Pdf(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMarkdownRequest(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if req.Title == "" {
		req.Title = "document"
	}

	pdf, err := pdfrender.Render(req.Markdown, req.Title)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	key := objectstore.Key("pdfs", req.Title+".pdf")
	if err := h.objects.Put(r.Context(), key, pdf, "application/pdf"); err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"url":  "/api/files/" + key,
		"key":  key,
		"size": len(pdf),
	})
}

// SaveMarkdown writes the markdown to the configured Drive folder.
func (h *DocumentHandler) SaveMarkdown(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMarkdownRequest(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if req.Title == "" {
		req.Title = "document-" + uuid.New().String()[:8]
	}

	fileID, link, err := h.drive.Upload(r.Context(), []byte(req.Markdown), req.Title+".md", "text/markdown", h.cfg.DriveMdFolderID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"fileId": fileID,
		"url":    link,
	})
}

// Download proxies a saved Drive file back to the client.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	rc, filename, mimeType, err := h.drive.Download(r.Context(), fileID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Drive download interrupted", zap.String("file_id", fileID), zap.Error(err))
	}
}

// Files proxies stored artifacts out of the bucket, so clients never need
// bucket credentials or presigned URLs.
func (h *DocumentHandler) Files(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		handleError(w, h.logger, fmt.Errorf("missing object key: %w", core.ErrInvalidInput))
		return
	}

	data, contentType, err := h.objects.Get(r.Context(), key)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	disposition := "inline"
	if r.URL.Query().Get("download") == "1" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, key[strings.LastIndex(key, "/")+1:]))
	w.Write(data)
}

// Health is the liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
