// Package audio wraps ffmpeg for the three Media Processor operations:
// two-pass loudness normalization, one-pass transcode, and tag/artwork
// application with an atomic temp+rename commit.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jaki95/dropcrate/internal/domain"
)

var codecTable = map[domain.AudioFormat]struct {
	codec     string
	container string
}{
	domain.FormatAIFF: {"pcm_s16be", "aiff"},
	domain.FormatWAV:  {"pcm_s16le", "wav"},
	domain.FormatFLAC: {"flac", "flac"},
	domain.FormatMP3:  {"libmp3lame", "mp3"},
	domain.FormatM4A:  {"aac", "mp4"},
}

// sampleRateHz is the output sample rate passed to every normalize/transcode write.
const sampleRateHz = "44100"

// ffmpegError wraps ffmpeg command failures with truncated command/output
// context, adapted from the teacher's idiom.
type ffmpegError struct {
	cmd     string
	output  string
	wrapped error
}

func (e *ffmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %s\ncommand: %s\noutput: %s", e.wrapped, e.cmd, e.output)
}

func (e *ffmpegError) Unwrap() error { return e.wrapped }

func newFFmpegError(cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	return &ffmpegError{cmd: cmdStr, output: string(output), wrapped: err}
}

// Processor wraps the ffmpeg binary.
type Processor struct {
	Path string
}

func New(path string) *Processor {
	if path == "" {
		path = "ffmpeg"
	}
	return &Processor{Path: path}
}

func (p *Processor) validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
		return fmt.Errorf("unable to access file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	return nil
}

func codecFor(format domain.AudioFormat) (codec, container string, err error) {
	entry, ok := codecTable[format]
	if !ok {
		return "", "", fmt.Errorf("unsupported audio format: %s", format)
	}
	return entry.codec, entry.container, nil
}

// run invokes ffmpeg with args, translating failure into a ProcessingError
// for the named stage.
func (p *Processor) run(ctx context.Context, stage domain.Stage, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.Path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewCancelled("ffmpeg cancelled")
		}
		return nil, domain.NewProcessingError(stage, "ffmpeg command failed", newFFmpegError(cmd, output, err))
	}
	return output, nil
}

// writeViaTempAndRename runs fn to produce content at a temp path in the
// same directory as finalPath, then renames into place, so a failure
// leaves no partial output and the commit is atomic.
func writeViaTempAndRename(finalPath string, fn func(tempPath string) error) error {
	dir := filepath.Dir(finalPath)
	ext := filepath.Ext(finalPath)
	base := strings.TrimSuffix(filepath.Base(finalPath), ext)
	tmp, err := os.CreateTemp(dir, base+".tmp.*"+ext)
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tempPath := tmp.Name()
	tmp.Close()
	os.Remove(tempPath) // ffmpeg must create the file itself

	if err := fn(tempPath); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("commit output: %w", err)
	}
	return nil
}
