package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStderr_MatchesKnownSignals(t *testing.T) {
	cases := []struct {
		stderr string
		want   domain.ErrorKind
	}{
		{"ERROR: [youtube] abc: Private video", domain.ErrKindPrivate},
		{"HTTP Error 429: Too Many Requests", domain.ErrKindRateLimited},
		{"ERROR: Video unavailable. This video has been removed", domain.ErrKindUnavailable},
		{"ERROR: Sign in to confirm your age", domain.ErrKindLoginRequired},
		{"nonsense unrelated output", domain.ErrKindExtractorUnknown},
	}
	for _, c := range cases {
		kind, hint := classifyStderr(c.stderr)
		assert.Equal(t, c.want, kind, c.stderr)
		assert.NotEmpty(t, hint)
	}
}

func writeFakeExtractor(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake extractor script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fakeyt")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestFetchInfo_ParsesAndTruncates(t *testing.T) {
	longTitle := ""
	for i := 0; i < 300; i++ {
		longTitle += "x"
	}
	script := fmt.Sprintf("#!/bin/sh\ncat <<'EOF'\n{\"id\":\"abc123\",\"title\":\"%s\",\"uploader\":\"Someone\",\"duration\":180.5}\nEOF\n", longTitle)
	d := New(writeFakeExtractor(t, script))

	info, err := d.FetchInfo(context.Background(), "https://example.invalid/x", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.SourceID)
	assert.Len(t, []rune(info.Title), titleMaxLen)
}

func TestFetchInfo_ClassifiesFailure(t *testing.T) {
	script := "#!/bin/sh\necho 'ERROR: Private video' 1>&2\nexit 1\n"
	d := New(writeFakeExtractor(t, script))

	_, err := d.FetchInfo(context.Background(), "https://example.invalid/x", 5*time.Second)
	require.Error(t, err)
	pe := domain.AsPipelineError(err)
	assert.Equal(t, domain.ErrKindPrivate, pe.Kind)
	assert.NotEmpty(t, pe.Hint)
}

func TestDownloadMedia_ReturnsReportedPath(t *testing.T) {
	script := "#!/bin/sh\necho /tmp/fake/output.m4a\n"
	d := New(writeFakeExtractor(t, script))

	path, err := d.DownloadMedia(context.Background(), "https://example.invalid/x", ModeBestAudio, "/tmp/fake/%(id)s.%(ext)s", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/fake/output.m4a", path)
}

func TestFetchInfo_RespectsCancellation(t *testing.T) {
	script := "#!/bin/sh\nsleep 5\n"
	d := New(writeFakeExtractor(t, script))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := d.FetchInfo(ctx, "https://example.invalid/x", 5*time.Second)
	require.Error(t, err)
	pe := domain.AsPipelineError(err)
	assert.Equal(t, domain.ErrKindCancelled, pe.Kind)
}
