package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestThumbnail_PicksMaxAreaPlusPreference(t *testing.T) {
	thumbs := []domain.Thumbnail{
		{URL: "a", Width: 100, Height: 100, Preference: 0},
		{URL: "b", Width: 200, Height: 200, Preference: -10},
		{URL: "c", Width: 50, Height: 50, Preference: 100},
	}
	best, ok := bestThumbnail(thumbs)
	require.True(t, ok)
	assert.Equal(t, "b", best.URL)
}

func TestBestThumbnail_EmptyReturnsNotFound(t *testing.T) {
	_, ok := bestThumbnail(nil)
	assert.False(t, ok)
}

func TestDownloadBestThumbnail_WritesFileOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("jpeg bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := downloadBestThumbnail(context.Background(), dir, []domain.Thumbnail{{URL: srv.URL, Width: 10, Height: 10}})
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestDownloadBestThumbnail_FailureReturnsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := downloadBestThumbnail(context.Background(), dir, []domain.Thumbnail{{URL: srv.URL}})
	assert.Empty(t, path)
}

func TestFinalFilename_SanitizesAndAppendsExtension(t *testing.T) {
	m := domain.NormalizedMetadata{Artist: "DJ: Test", Title: "Track/Name"}
	name := finalFilename(m, domain.FormatAIFF)
	assert.Equal(t, "DJ Test - Track Name.aiff", name)
}

func TestDisplayTitle_AppendsVersionWhenPresent(t *testing.T) {
	v := "Extended Mix"
	m := domain.NormalizedMetadata{Title: "My Track", Version: &v}
	assert.Equal(t, "My Track (Extended Mix)", displayTitle(m))
}

func TestDisplayTitle_NoVersionReturnsBareTitle(t *testing.T) {
	m := domain.NormalizedMetadata{Title: "My Track"}
	assert.Equal(t, "My Track", displayTitle(m))
}

func TestNeedsTranscode_ComparesExtensionToTarget(t *testing.T) {
	assert.True(t, needsTranscode("/tmp/x.webm", domain.FormatAIFF))
	assert.False(t, needsTranscode("/tmp/x.aiff", domain.FormatAIFF))
}

func TestBuildAndWriteSidecar_RoundTrips(t *testing.T) {
	req := domain.TrackRequest{ID: "1", URL: "https://example.invalid/x"}
	info := domain.ExtractedInfo{SourceID: "abc123", Title: "Raw Title", Uploader: "uploader", DurationS: 300}
	normalized := domain.NormalizedMetadata{Artist: "Artist", Title: "Title"}
	tags := domain.DJTags{Genre: "House", Energy: "3/5"}
	preset := domain.ProcessingPreset{Mode: domain.ModeDJSafe, AudioFormat: domain.FormatAIFF, NormalizeEnabled: true, Loudness: domain.LoudnessTarget{I: -14, TP: -1, LRA: 11}}

	doc := buildSidecar(req, info, normalized, nil, tags, preset, "/out/Artist - Title.aiff")

	dir := t.TempDir()
	path := filepath.Join(dir, "Artist - Title.dropcrate.json")
	require.NoError(t, writeSidecar(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sourceId": "abc123"`)
	assert.Contains(t, string(data), `"genre": "House"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSanitizeDirComponent_EmptyFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "unknown", sanitizeDirComponent(""))
	assert.Equal(t, "abc123", sanitizeDirComponent("abc123"))
}

func TestSourceLabel_DefaultsToYouTube(t *testing.T) {
	assert.Equal(t, "YouTube", sourceLabel(""))
	assert.Equal(t, "SoundCloud", sourceLabel("SoundCloud"))
}
