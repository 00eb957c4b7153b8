package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jaki95/dropcrate/internal/domain"
)

const (
	titleMaxLen       = 220
	descriptionMaxLen = 800
)

// Mode selects the format expression passed to the extractor for
// downloadMedia.
type Mode string

const (
	ModeBestAudio Mode = "audio"
	ModeBestVideo Mode = "video"
	ModeBoth      Mode = "both"
)

// Driver wraps the extractor CLI tool (a yt-dlp-alike). It is grounded on
// the teacher's exec.CommandContext + done-channel + select pattern for
// cancellable external process invocation.
type Driver struct {
	binPath string
}

func New(binPath string) *Driver {
	return &Driver{binPath: binPath}
}

type rawInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Uploader    string   `json:"uploader"`
	Duration    float64  `json:"duration"`
	WebpageURL  string   `json:"webpage_url"`
	Description string   `json:"description"`
	Thumbnail   string   `json:"thumbnail"`
	Thumbnails  []struct {
		URL        string `json:"url"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Preference int    `json:"preference"`
	} `json:"thumbnails"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
}

// FetchInfo invokes the extractor requesting single-JSON metadata with no
// playlist expansion, per §4.2.
func (d *Driver) FetchInfo(ctx context.Context, url string, timeout time.Duration) (domain.ExtractedInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"--dump-single-json",
		"--no-playlist",
		"--socket-timeout", "10",
		"--retries", "1",
		url,
	}
	args = appendAuthArgs(args)

	stdout, _, err := d.run(ctx, args)
	if err != nil {
		return domain.ExtractedInfo{}, err
	}

	var raw rawInfo
	if jsonErr := json.Unmarshal(stdout, &raw); jsonErr != nil {
		return domain.ExtractedInfo{}, domain.NewExtractorError(domain.ErrKindExtractorUnknown, "could not parse extractor metadata", "", jsonErr)
	}

	info := domain.ExtractedInfo{
		SourceID:    raw.ID,
		Title:       truncate(raw.Title, titleMaxLen),
		Uploader:    raw.Uploader,
		DurationS:   raw.Duration,
		WebpageURL:  raw.WebpageURL,
		Description: truncate(raw.Description, descriptionMaxLen),
		Categories:  raw.Categories,
		Tags:        raw.Tags,
	}
	for _, t := range raw.Thumbnails {
		info.Thumbnails = append(info.Thumbnails, domain.Thumbnail{
			URL: t.URL, Width: t.Width, Height: t.Height, Preference: t.Preference,
		})
	}
	if len(info.Thumbnails) == 0 && raw.Thumbnail != "" {
		info.Thumbnails = append(info.Thumbnails, domain.Thumbnail{URL: raw.Thumbnail})
	}
	return info, nil
}

// DownloadMedia downloads url into destTemplate's directory using the
// format expression selected by mode. A timeout of 0 means no hard
// deadline is applied; the call still honors ctx's own cancellation, per
// §4.8's "ffmpeg/extractor download calls inherit parent cancellation with
// no hard timeout" rule.
func (d *Driver) DownloadMedia(ctx context.Context, url string, mode Mode, destTemplate string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := []string{
		"--no-playlist",
		"-f", formatExpr(mode),
		"-o", destTemplate,
		"--print", "after_move:filepath",
		url,
	}
	args = appendAuthArgs(args)

	stdout, _, err := d.run(ctx, args)
	if err != nil {
		return "", err
	}

	path := strings.TrimSpace(lastLine(string(stdout)))
	if path == "" {
		return "", domain.NewExtractorError(domain.ErrKindExtractorUnknown, "extractor did not report an output path", "", nil)
	}
	return path, nil
}

func formatExpr(mode Mode) string {
	switch mode {
	case ModeBestVideo:
		return "bestvideo+bestaudio/best"
	case ModeBoth:
		return "bestvideo+bestaudio/best"
	case ModeBestAudio:
		fallthrough
	default:
		return "bestaudio/best"
	}
}

// appendAuthArgs injects cookie options from the environment, per §6.
func appendAuthArgs(args []string) []string {
	if browser := os.Getenv("EXTRACTOR_COOKIES_FROM_BROWSER"); browser != "" {
		args = append(args, "--cookies-from-browser", browser)
	}
	if cookiePath := os.Getenv("EXTRACTOR_COOKIES_PATH"); cookiePath != "" {
		args = append(args, "--cookies", cookiePath)
	}
	return args
}

// run executes the extractor binary, translating a non-zero exit into a
// classified PipelineError and honoring context cancellation.
func (d *Driver) run(ctx context.Context, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, d.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, domain.NewToolUnavailable("could not start extractor", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, domain.NewCancelled("extractor cancelled")
			}
			kind, hint := classifyStderr(stderr.String())
			return nil, nil, domain.NewExtractorError(kind, fmt.Sprintf("extractor failed: %v", err), hint, err)
		}
		return stdout.Bytes(), stderr.Bytes(), nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return nil, nil, domain.NewCancelled("extractor cancelled")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	return lines[len(lines)-1]
}
