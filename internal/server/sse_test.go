package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestEventStream_ReplaysHistoryAndClosesOnQueueDone(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()), succeedingRunItem())
	jobID, _ := s.registry.CreateJob(testPreset())
	s.registry.Emit(jobID, domain.NewQueueStart(jobID))
	s.registry.Emit(jobID, domain.NewItemStart(jobID, "a"))
	s.registry.Emit(jobID, domain.NewItemDone(jobID, "a"))
	s.registry.Emit(jobID, domain.NewQueueDone(jobID))

	req := httptest.NewRequest(http.MethodGet, "/api/batches/"+jobID+"/events", nil)
	rec := newTestRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"queue-start"`)
	assert.Contains(t, body, `"type":"item-start"`)
	assert.Contains(t, body, `"type":"item-done"`)
	assert.Contains(t, body, `"type":"queue-done"`)
}

func TestEventStream_UnknownJobReturns404(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()), succeedingRunItem())

	req := httptest.NewRequest(http.MethodGet, "/api/batches/does-not-exist/events", nil)
	rec := newTestRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
