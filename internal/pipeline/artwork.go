package pipeline

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jaki95/dropcrate/internal/domain"
)

const thumbnailDownloadTimeout = 15 * time.Second

// bestThumbnail picks the candidate maximizing width*height plus the
// extractor's own preference score, per §4.8 step 7.
func bestThumbnail(thumbnails []domain.Thumbnail) (domain.Thumbnail, bool) {
	var best domain.Thumbnail
	found := false
	bestScore := 0
	for _, t := range thumbnails {
		score := t.Width*t.Height + t.Preference
		if !found || score > bestScore {
			best, bestScore, found = t, score, true
		}
	}
	return best, found
}

// downloadBestThumbnail fetches the best candidate into workDir, returning
// "" (never an error) on any failure since artwork is optional.
func downloadBestThumbnail(ctx context.Context, workDir string, thumbnails []domain.Thumbnail) string {
	thumb, ok := bestThumbnail(thumbnails)
	if !ok || thumb.URL == "" {
		return ""
	}

	dctx, cancel := context.WithTimeout(ctx, thumbnailDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dctx, http.MethodGet, thumb.URL, nil)
	if err != nil {
		return ""
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	dest := filepath.Join(workDir, "artwork.jpg")
	f, err := os.Create(dest)
	if err != nil {
		return ""
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return ""
	}
	return dest
}
