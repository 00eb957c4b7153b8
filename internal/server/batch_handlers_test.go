package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/jaki95/dropcrate/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := newTestRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestStartBatch_RejectsEmptyItems(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()), succeedingRunItem())
	rec := doJSON(t, s, http.MethodPost, "/api/batches", StartBatchRequest{Items: nil})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartBatch_RejectsDuplicateItemIDs(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()), succeedingRunItem())
	req := StartBatchRequest{Items: []BatchItemRequest{
		{ID: "a", URL: "https://example.invalid/1"},
		{ID: "a", URL: "https://example.invalid/2"},
	}}
	rec := doJSON(t, s, http.MethodPost, "/api/batches", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartBatch_RejectsMissingIDOrURL(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()), succeedingRunItem())
	req := StartBatchRequest{Items: []BatchItemRequest{{ID: "", URL: "https://example.invalid/1"}}}
	rec := doJSON(t, s, http.MethodPost, "/api/batches", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartBatch_RejectsLoudnessOutOfRange(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()), succeedingRunItem())
	preset := testPreset()
	preset.Loudness.I = 10 // way outside any sane LUFS target
	req := StartBatchRequest{
		Items:  []BatchItemRequest{{ID: "a", URL: "https://example.invalid/1"}},
		Preset: preset,
	}
	rec := doJSON(t, s, http.MethodPost, "/api/batches", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartBatch_FallsBackToConfiguredPresetWhenOmitted(t *testing.T) {
	var gotPreset domain.ProcessingPreset
	var mu sync.Mutex
	runItem := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		mu.Lock()
		gotPreset = preset
		mu.Unlock()
		emit(domain.NewItemDone(jobID, item.ID))
		return domain.ItemOutcome{ID: item.ID, Status: domain.StatusDone}
	}

	s := newTestServer(t, testConfig(t.TempDir()), runItem)
	req := StartBatchRequest{Items: []BatchItemRequest{{ID: "a", URL: "https://example.invalid/1"}}}
	rec := doJSON(t, s, http.MethodPost, "/api/batches", req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotPreset.Mode != ""
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.ModeDJSafe, gotPreset.Mode)
}

func TestStartBatch_AcceptsValidRequestAndReturnsJobID(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()), succeedingRunItem())
	req := StartBatchRequest{Items: []BatchItemRequest{{ID: "a", URL: "https://example.invalid/1"}}}
	rec := doJSON(t, s, http.MethodPost, "/api/batches", req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp StartBatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
}

func TestCancelBatch_UnknownJobReturns404(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()), succeedingRunItem())
	rec := doJSON(t, s, http.MethodPost, "/api/batches/does-not-exist/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelBatch_KnownJobIsIdempotent(t *testing.T) {
	runItem := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		<-ctx.Done()
		return domain.ItemOutcome{ID: item.ID, Status: domain.StatusError, ErrorKind: domain.ErrKindCancelled}
	}

	s := newTestServer(t, testConfig(t.TempDir()), runItem)
	startReq := StartBatchRequest{Items: []BatchItemRequest{{ID: "a", URL: "https://example.invalid/1"}}}
	startRec := doJSON(t, s, http.MethodPost, "/api/batches", startReq)
	require.Equal(t, http.StatusAccepted, startRec.Code)

	var started StartBatchResponse
	require.NoError(t, json.Unmarshal(startRec.Body.Bytes(), &started))

	rec1 := doJSON(t, s, http.MethodPost, "/api/batches/"+started.JobID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := doJSON(t, s, http.MethodPost, "/api/batches/"+started.JobID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, rec2.Code)
}
