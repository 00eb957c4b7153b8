package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const musicbrainzBaseURL = "https://musicbrainz.org/ws/2/recording"
const metadataTimeout = 25 * time.Second
const defaultUserAgent = "dropcrate/1.0 (+https://example.invalid)"

type mbArtistCredit struct {
	Name string `json:"name"`
}

type mbLabelInfo struct {
	Label *struct {
		Name string `json:"name"`
	} `json:"label"`
}

type mbRelease struct {
	Date       string        `json:"date"`
	Status     string        `json:"status"`
	Title      string        `json:"title"`
	LabelInfo  []mbLabelInfo `json:"label-info"`
}

type mbRecording struct {
	Title         string           `json:"title"`
	ArtistCredit  []mbArtistCredit `json:"artist-credit"`
	Releases      []mbRelease      `json:"releases"`
}

// metadataClient resolves a recording id against a MusicBrainz-style
// metadata service, per §4.7 step 5.
type metadataClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

func newMetadataClient(userAgent string) *metadataClient {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &metadataClient{
		httpClient: &http.Client{Timeout: metadataTimeout},
		baseURL:    musicbrainzBaseURL,
		userAgent:  userAgent,
	}
}

type resolvedRecording struct {
	Artist string
	Title  string
	Album  *string
	Year   *string
	Label  *string
}

func (c *metadataClient) resolve(ctx context.Context, recordingID string) (resolvedRecording, error) {
	reqURL := fmt.Sprintf("%s/%s?fmt=json&inc=artist-credits+releases+labels", c.baseURL, recordingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return resolvedRecording{}, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return resolvedRecording{}, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resolvedRecording{}, fmt.Errorf("read metadata response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return resolvedRecording{}, fmt.Errorf("metadata service returned status %d", resp.StatusCode)
	}

	var rec mbRecording
	if err := json.Unmarshal(body, &rec); err != nil {
		return resolvedRecording{}, fmt.Errorf("decode metadata response: %w", err)
	}

	names := make([]string, 0, len(rec.ArtistCredit))
	for _, a := range rec.ArtistCredit {
		names = append(names, a.Name)
	}

	out := resolvedRecording{
		Artist: strings.Join(names, " & "),
		Title:  rec.Title,
	}

	release := pickRelease(rec.Releases)
	if release != nil {
		album := release.Title
		out.Album = &album
		if len(release.Date) >= 4 {
			year := release.Date[:4]
			out.Year = &year
		}
		for _, li := range release.LabelInfo {
			if li.Label != nil && li.Label.Name != "" {
				label := li.Label.Name
				out.Label = &label
				break
			}
		}
	}

	return out, nil
}

// pickRelease returns the first release with status "Official", else the
// first release, else nil.
func pickRelease(releases []mbRelease) *mbRelease {
	if len(releases) == 0 {
		return nil
	}
	for i := range releases {
		if releases[i].Status == "Official" {
			return &releases[i]
		}
	}
	return &releases[0]
}
