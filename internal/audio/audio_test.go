package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecFor_KnownFormats(t *testing.T) {
	codec, container, err := codecFor(domain.FormatAIFF)
	require.NoError(t, err)
	assert.Equal(t, "pcm_s16be", codec)
	assert.Equal(t, "aiff", container)

	_, _, err = codecFor(domain.FormatAuto)
	assert.Error(t, err)
}

func TestLastJSONObject_ExtractsFinalObjectFromNoisyOutput(t *testing.T) {
	stderr := `[Parsed_loudnorm_0 @ 0x0] some log line
{"input_i" : "-20.0"}
more noise here
{
  "input_i" : "-18.5",
  "input_tp" : "-1.2",
  "input_lra" : "7.0",
  "input_thresh" : "-28.5",
  "target_offset" : "0.3"
}
`
	obj, err := lastJSONObject(stderr)
	require.NoError(t, err)
	assert.Contains(t, obj, `"input_tp" : "-1.2"`)
}

func TestLastJSONObject_NoObjectReturnsError(t *testing.T) {
	_, err := lastJSONObject("no json here at all")
	assert.Error(t, err)
}

func TestBuildComment_RendersExpectedBlock(t *testing.T) {
	comment := BuildComment("4/5", "Peak", "Driving", "YouTube", "https://example.invalid/x", "abc123")
	assert.Contains(t, comment, "ENERGY: 4/5")
	assert.Contains(t, comment, "TIME: Peak")
	assert.Contains(t, comment, "VIBE: Driving")
	assert.Contains(t, comment, "SOURCE: YouTube")
	assert.Contains(t, comment, "URL: https://example.invalid/x")
	assert.Contains(t, comment, "YOUTUBE_ID: abc123")
}

func TestWriteViaTempAndRename_CommitsOnSuccess(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "Artist - Title.aiff")

	err := writeViaTempAndRename(final, func(tempPath string) error {
		return os.WriteFile(tempPath, []byte("audio bytes"), 0644)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "audio bytes", string(data))
}

func TestWriteViaTempAndRename_LeavesNoPartialOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "Artist - Title.aiff")

	err := writeViaTempAndRename(final, func(tempPath string) error {
		os.WriteFile(tempPath, []byte("partial"), 0644)
		return assertError()
	})
	require.Error(t, err)

	_, statErr := os.Stat(final)
	assert.True(t, os.IsNotExist(statErr))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func assertError() error {
	return os.ErrInvalid
}

func TestValidateFile_RejectsMissingAndEmpty(t *testing.T) {
	p := New("ffmpeg")
	dir := t.TempDir()

	assert.Error(t, p.validateFile(filepath.Join(dir, "missing.wav")))

	emptyPath := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0644))
	assert.Error(t, p.validateFile(emptyPath))

	nonEmptyPath := filepath.Join(dir, "ok.wav")
	require.NoError(t, os.WriteFile(nonEmptyPath, []byte("x"), 0644))
	assert.NoError(t, p.validateFile(nonEmptyPath))
}
