package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/dropcrate/internal/domain"
)

// startBatch accepts a batch submission, validates it, and begins work
// asynchronously, returning the jobId immediately per §4.11.
func (s *Server) startBatch(c *gin.Context) {
	var req StartBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if len(req.Items) == 0 {
		writeError(c, http.StatusBadRequest, "items must not be empty", "")
		return
	}

	items := make([]domain.TrackRequest, len(req.Items))
	seen := make(map[string]bool, len(req.Items))
	for i, item := range req.Items {
		if item.ID == "" || item.URL == "" {
			writeError(c, http.StatusBadRequest, "every item requires id and url", "")
			return
		}
		if seen[item.ID] {
			writeError(c, http.StatusBadRequest, "duplicate item id", item.ID)
			return
		}
		seen[item.ID] = true
		items[i] = domain.TrackRequest{ID: item.ID, URL: item.URL}
	}

	preset := req.Preset
	if preset.Mode == "" {
		preset = s.cfg.Preset
	}
	preset = preset.Normalize()
	if !preset.Loudness.InRange() {
		writeError(c, http.StatusBadRequest, "loudness target out of range", "")
		return
	}

	jobID, ctx := s.registry.CreateJob(preset)
	go func() {
		s.scheduler.RunBatch(ctx, jobID, preset, items)
		s.registry.ReapJob(jobID)
	}()

	c.JSON(http.StatusAccepted, StartBatchResponse{JobID: jobID})
}

// cancelBatch requests cancellation of an in-flight batch. Idempotent:
// cancelling an already-cancelled or already-finished job still returns
// 200, since the flag itself is what's being set, not a state transition
// the caller needs to observe.
func (s *Server) cancelBatch(c *gin.Context) {
	jobID := c.Param("id")
	if !s.registry.Exists(jobID) {
		writeError(c, http.StatusNotFound, "job not found", jobID)
		return
	}

	s.registry.Cancel(jobID)
	c.JSON(http.StatusOK, MessageResponse{Message: "cancellation requested"})
}
