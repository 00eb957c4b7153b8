package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jaki95/dropcrate/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return newClientWithConfig(cfg, "gpt-4o-mini")
}

func toolCallResponse(args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{
					ID:   "call_1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "classify_dj_tags",
						Arguments: args,
					},
				}},
			},
		}},
	}
}

func TestClassify_ParsesToolCallResults(t *testing.T) {
	results := `{"results":[{"id":"a","kind":"track","genre":"House","energy":"3/5","time":"","vibe":"Driving","confidence":0.9,"notes":""}]}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toolCallResponse(results))
	})

	items := []Item{{ID: "a", Info: domain.ExtractedInfo{Title: "Artist - Song"}}}
	out, err := client.Classify(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindTrack, out[0].Kind)
	assert.Equal(t, "House", out[0].Tags.Genre)
	assert.Equal(t, domain.SourceLLM, out[0].Source)
}

func TestClassify_MissingItemResultBecomesUnknown(t *testing.T) {
	results := `{"results":[]}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toolCallResponse(results))
	})

	items := []Item{{ID: "a", Info: domain.ExtractedInfo{Title: "Artist - Song"}}}
	out, err := client.Classify(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindUnknown, out[0].Kind)
	assert.Equal(t, 0.0, out[0].Confidence)
	assert.Equal(t, "No classification returned.", out[0].Notes)
}

func TestClassify_TransportErrorReturnsError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Classify(context.Background(), []Item{{ID: "a"}})
	assert.Error(t, err)
}

func TestClassify_NilClientReturnsError(t *testing.T) {
	var client *Client
	_, err := client.Classify(context.Background(), []Item{{ID: "a"}})
	assert.Error(t, err)
}

func TestTruncate_LimitsRuneLength(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "he", truncate("hello", 2))
}
