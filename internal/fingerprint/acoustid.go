package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const acoustidLookupURL = "https://api.acoustid.org/v2/lookup"
const lookupTimeout = 25 * time.Second

// acoustidResult is one scored candidate from the identity service.
type acoustidResult struct {
	Score     float64 `json:"score"`
	RecordingID string `json:"id"`
}

type acoustidResponse struct {
	Status  string           `json:"status"`
	Results []acoustidResult `json:"results"`
}

// acoustidClient wraps the AcoustID-style fingerprint identity service.
type acoustidClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

func newAcoustidClient(apiKey string) *acoustidClient {
	return &acoustidClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: lookupTimeout},
		baseURL:    acoustidLookupURL,
	}
}

// lookup performs the POST lookup from §4.7 step 3 and returns the raw
// response body alongside the decoded form, so the caller can cache the
// exact bytes returned by the service.
func (c *acoustidClient) lookup(ctx context.Context, duration float64, fingerprint string) (acoustidResponse, []byte, error) {
	form := url.Values{}
	form.Set("client", c.apiKey)
	form.Set("duration", fmt.Sprintf("%.0f", duration))
	form.Set("fingerprint", fingerprint)
	form.Set("meta", "recordings")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, nil)
	if err != nil {
		return acoustidResponse{}, nil, fmt.Errorf("build acoustid request: %w", err)
	}
	req.URL.RawQuery = form.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return acoustidResponse{}, nil, fmt.Errorf("acoustid request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return acoustidResponse{}, nil, fmt.Errorf("read acoustid response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return acoustidResponse{}, nil, fmt.Errorf("acoustid returned status %d", resp.StatusCode)
	}

	var parsed acoustidResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return acoustidResponse{}, nil, fmt.Errorf("decode acoustid response: %w", err)
	}
	return parsed, body, nil
}

// bestMatch picks the highest-scoring result that carries a recording id,
// per §4.7 step 4.
func bestMatch(resp acoustidResponse) (acoustidResult, bool) {
	var best acoustidResult
	found := false
	for _, r := range resp.Results {
		if r.RecordingID == "" {
			continue
		}
		if !found || r.Score > best.Score {
			best = r
			found = true
		}
	}
	return best, found
}
