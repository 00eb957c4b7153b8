// Package server implements the Request Ingest & SSE Surface (S2): the
// HTTP boundary that accepts batch submissions, streams their events, and
// exposes cancellation, synchronous classification, and the library view
// derived from sidecar documents.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/dropcrate/config"
	"github.com/jaki95/dropcrate/internal/audio"
	"github.com/jaki95/dropcrate/internal/classify"
	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/jaki95/dropcrate/internal/extractor"
	"github.com/jaki95/dropcrate/internal/fingerprint"
	"github.com/jaki95/dropcrate/internal/jobs"
	"github.com/jaki95/dropcrate/internal/mirror"
	"github.com/jaki95/dropcrate/internal/pipeline"
	"github.com/jaki95/dropcrate/internal/scheduler"
	"github.com/jaki95/dropcrate/internal/toolprovisioner"
)

// Server owns the gin engine and every collaborator the HTTP handlers need.
type Server struct {
	cfg       *config.Config
	registry  *jobs.Registry
	deps      pipeline.Dependencies
	scheduler *scheduler.Scheduler
	library   *libraryCache
	router    *gin.Engine
}

// New wires L1-L7 into a pipeline.Dependencies using the already-resolved
// tools (the caller, cmd/server/main.go, runs the Tool Provisioner before
// constructing the server, since binary resolution needs platform-specific
// download URLs that belong to the entry point, not the HTTP layer). The
// optional GCS mirror sink is built from mirrorSink, which may be nil.
func New(cfg *config.Config, tools toolprovisioner.Tools, mirrorSink *mirror.Sink) *Server {
	var llmClient *classify.Client
	if cfg.LLM.APIKey != "" {
		llmClient = classify.NewClient(cfg.LLM.APIKey, cfg.LLM.Model)
	}

	deps := pipeline.Dependencies{
		Extractor:   extractor.New(tools.ExtractorPath),
		LLM:         llmClient,
		Fingerprint: fingerprint.NewMatcher(tools.FingerprintCalcPath, cfg.Fingerprint.AcoustIDKey, cfg.Fingerprint.UserAgent, cfg.Fingerprint.CachePath),
		Audio:       audio.New(tools.FFmpegPath),
		OutputDir:   cfg.Storage.OutputDir,
	}
	// Avoid assigning a nil *mirror.Sink to the pipeline.Mirror interface
	// field: a typed nil there would be a non-nil interface value.
	if mirrorSink != nil {
		deps.Mirror = mirrorSink
	}

	registry := jobs.NewRegistry()
	runItem := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		return pipeline.RunItem(ctx, deps, jobID, item, preset, emit)
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		deps:     deps,
		library:  newLibraryCache(cfg.Storage.OutputDir),
	}
	s.scheduler = scheduler.New(registry, runItem, cfg.Server.MaxConcurrent, cfg.Server.MaxRetries)

	if err := s.library.start(); err != nil {
		slog.Warn("library cache watcher failed to start, falling back to per-request scans", "error", err)
	}

	s.router = gin.Default()
	s.router.Use(s.recoverMiddleware())
	s.setupRoutes()
	return s
}

// Start runs the HTTP server until it exits or fails.
func (s *Server) Start() error {
	slog.Info("starting server", "port", s.cfg.Server.Port)
	return s.router.Run(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

// recoverMiddleware guarantees an unexpected panic in a handler surfaces
// as a 500 instead of killing the process, per §4.11's "unexpected crashes
// must never kill the process" requirement.
func (s *Server) recoverMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered from panic in handler", "panic", r, "path", c.Request.URL.Path)
				writeError(c, http.StatusInternalServerError, "internal error", "")
				c.Abort()
			}
		}()
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	{
		api.POST("/batches", s.startBatch)
		api.GET("/batches/:id/events", s.eventStream)
		api.POST("/batches/:id/cancel", s.cancelBatch)
		api.POST("/classify", s.classify)
		api.GET("/library", s.listLibrary)
		api.GET("/library/download", s.downloadLibraryFile)
	}
}
