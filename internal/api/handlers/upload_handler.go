package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/config"
	"github.com/doc2md/doc2md/internal/core"
	"github.com/doc2md/doc2md/internal/core/format"
	"github.com/doc2md/doc2md/internal/core/uploadcache"
)

type UploadHandler struct {
	cache  *uploadcache.Cache
	cfg    *config.Config
	logger *zap.Logger
}

func NewUploadHandler(cache *uploadcache.Cache, cfg *config.Config, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{cache: cache, cfg: cfg, logger: logger}
}

// Upload accepts one multipart file, validates its declared type and size,
// and parks it in the cache for a later conversion request.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxMediaBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		handleError(w, h.logger, fmt.Errorf("missing multipart field %q: %w", "file", core.ErrInvalidInput))
		return
	}
	defer file.Close()

	mediaType := header.Header.Get("Content-Type")
	if !format.Supported(mediaType) {
		respondError(w, h.logger, http.StatusBadRequest, format.Unsupported(header.Filename, mediaType))
		return
	}

	limit := h.cfg.MaxDocumentBytes
	if format.IsMedia(mediaType) {
		limit = h.cfg.MaxMediaBytes
	}
	if header.Size > limit {
		respondError(w, h.logger, http.StatusRequestEntityTooLarge,
			fmt.Errorf("%s is %d bytes, limit %d: %w", header.Filename, header.Size, limit, core.ErrInvalidInput))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		handleError(w, h.logger, fmt.Errorf("read upload: %w", err))
		return
	}

	entry, err := h.cache.Put(data, header.Filename, mediaType)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"fileId":    entry.ID,
		"filename":  entry.Name,
		"size":      entry.Size,
		"mimetype":  entry.MediaType,
		"expiresIn": int(h.cfg.CacheTTL.Seconds()),
	})
}

// Delete drops a cached upload ahead of its expiry. Always succeeds.
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")
	h.cache.Delete(fileID)
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
