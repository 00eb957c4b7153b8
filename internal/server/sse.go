package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/dropcrate/internal/domain"
)

// eventStream serves a job's event history followed by live events as
// UTF-8 text/event-stream, one JSON object per "data:" line, per §4.11 and
// §6. The stream closes itself once queue-done is observed; otherwise it
// runs until the client disconnects.
func (s *Server) eventStream(c *gin.Context) {
	jobID := c.Param("id")
	ctx := c.Request.Context()

	events, ok := s.registry.Subscribe(ctx, jobID)
	if !ok {
		writeError(c, http.StatusNotFound, "job not found", jobID)
		return
	}

	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		writeError(c, http.StatusInternalServerError, "streaming unsupported", "")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case event, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			if event.Type == domain.EventQueueDone {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
