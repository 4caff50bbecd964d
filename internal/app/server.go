package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/doc2md/doc2md/internal/api/handlers"
	"github.com/doc2md/doc2md/internal/config"
	"github.com/doc2md/doc2md/internal/core"
	"github.com/doc2md/doc2md/internal/core/drive"
	"github.com/doc2md/doc2md/internal/core/task"
	"github.com/doc2md/doc2md/internal/core/uploadcache"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes. There is deliberately no global
// request timeout middleware: the synchronous convert endpoint and large
// media uploads can legitimately run for minutes.
func NewServer(cfg *config.Config, runner *task.Runner, store *task.Store, pipe task.Preparer,
	ai core.AIBackend, objects core.ObjectStore, driveClient *drive.Client,
	cache *uploadcache.Cache, logger *zap.Logger) *Server {

	uploadHandler := handlers.NewUploadHandler(cache, cfg, logger)
	convertHandler := handlers.NewConvertHandler(runner, store, pipe, ai, cfg, logger)
	docHandler := handlers.NewDocumentHandler(ai, objects, driveClient, cfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handlers.Health)

		api.Post("/upload", uploadHandler.Upload)
		api.Delete("/upload/{fileId}", uploadHandler.Delete)

		api.Post("/convert", convertHandler.Convert)
		api.Get("/convert/formats", convertHandler.Formats)
		api.Post("/convert/start", convertHandler.Start)
		api.Get("/convert/status/{taskId}", convertHandler.Status)

		api.Post("/summarize/start", convertHandler.SummarizeStart)
		api.Get("/summarize/status/{taskId}", convertHandler.SummarizeStatus)

		api.Post("/generate-title", docHandler.GenerateTitle)
		api.Post("/pdf", docHandler.Pdf)
		api.Post("/save/markdown", docHandler.SaveMarkdown)
		api.Get("/download/{fileId}", docHandler.Download)
		api.Get("/files/*", docHandler.Files)
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
