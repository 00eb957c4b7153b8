package server

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/dropcrate/config"
	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/jaki95/dropcrate/internal/jobs"
	"github.com/jaki95/dropcrate/internal/pipeline"
	"github.com/jaki95/dropcrate/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testPreset() domain.ProcessingPreset {
	return domain.ProcessingPreset{
		Mode:             domain.ModeDJSafe,
		AudioFormat:      domain.FormatAIFF,
		NormalizeEnabled: true,
		Loudness:         domain.LoudnessTarget{I: -14, TP: -1, LRA: 11},
	}
}

func testConfig(outputDir string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 0, MaxConcurrent: 2, MaxRetries: 0},
		Preset:  testPreset(),
		Storage: config.StorageConfig{OutputDir: outputDir},
	}
}

// newTestServer builds a Server by hand, bypassing New, so tests never need
// a real extractor/ffmpeg binary on PATH: runItem is supplied directly and
// deps are left zero-valued unless a test sets them itself.
func newTestServer(t *testing.T, cfg *config.Config, runItem scheduler.RunItemFunc) *Server {
	t.Helper()
	registry := jobs.NewRegistry()
	s := &Server{
		cfg:      cfg,
		registry: registry,
		library:  newLibraryCache(cfg.Storage.OutputDir),
	}
	s.scheduler = scheduler.New(registry, runItem, cfg.Server.MaxConcurrent, cfg.Server.MaxRetries)
	s.router = gin.New()
	s.router.Use(s.recoverMiddleware())
	s.setupRoutes()
	return s
}

// succeedingRunItem reports every item as immediately done, never touching
// the pipeline's real dependencies.
func succeedingRunItem() scheduler.RunItemFunc {
	return func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		emit(domain.NewItemDone(jobID, item.ID))
		return domain.ItemOutcome{ID: item.ID, Status: domain.StatusDone}
	}
}

func writeFakeExtractor(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake extractor script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fakeyt")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
