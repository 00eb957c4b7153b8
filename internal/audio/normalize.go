package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaki95/dropcrate/internal/domain"
)

// loudnormMeasurement is the JSON object ffmpeg's loudnorm filter prints to
// stderr in measure-only mode.
type loudnormMeasurement struct {
	InputI       string `json:"input_i"`
	InputTP      string `json:"input_tp"`
	InputLRA     string `json:"input_lra"`
	InputThresh  string `json:"input_thresh"`
	TargetOffset string `json:"target_offset"`
}

// Normalize runs the two-pass loudnorm procedure from §4.3: measure, then
// re-encode with linear=true using the measured parameters plus target.
func (p *Processor) Normalize(ctx context.Context, inputPath, outputPath string, format domain.AudioFormat, target domain.LoudnessTarget) error {
	if err := p.validateFile(inputPath); err != nil {
		return domain.NewProcessingError(domain.StageNormalize, "input file invalid", err)
	}
	codec, _, err := codecFor(format)
	if err != nil {
		return domain.NewProcessingError(domain.StageNormalize, err.Error(), err)
	}

	measurement, err := p.measureLoudness(ctx, inputPath, target)
	if err != nil {
		return err
	}

	return writeViaTempAndRename(outputPath, func(tempPath string) error {
		filter := fmt.Sprintf(
			"loudnorm=I=%.1f:TP=%.1f:LRA=%.1f:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true:print_format=summary",
			target.I, target.TP, target.LRA,
			measurement.InputI, measurement.InputTP, measurement.InputLRA, measurement.InputThresh, measurement.TargetOffset,
		)
		args := []string{
			"-y",
			"-i", inputPath,
			"-map", "0:a",
			"-af", filter,
			"-ar", sampleRateHz,
			"-c:a", codec,
			tempPath,
		}
		_, err := p.run(ctx, domain.StageNormalize, args)
		return err
	})
}

// measureLoudness runs pass 1 of loudnorm, parsing the last JSON object
// ffmpeg prints to stderr.
func (p *Processor) measureLoudness(ctx context.Context, inputPath string, target domain.LoudnessTarget) (loudnormMeasurement, error) {
	filter := fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f:print_format=json", target.I, target.TP, target.LRA)
	args := []string{
		"-i", inputPath,
		"-map", "0:a",
		"-af", filter,
		"-f", "null",
		"-",
	}

	output, err := p.run(ctx, domain.StageNormalize, args)
	if err != nil {
		return loudnormMeasurement{}, err
	}

	obj, err := lastJSONObject(string(output))
	if err != nil {
		return loudnormMeasurement{}, domain.NewProcessingError(domain.StageNormalize, "could not parse loudnorm measurement", err)
	}

	var m loudnormMeasurement
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return loudnormMeasurement{}, domain.NewProcessingError(domain.StageNormalize, "could not decode loudnorm measurement", err)
	}
	return m, nil
}

// lastJSONObject scans s for the final top-level {...} object, since
// ffmpeg's stderr interleaves the measurement JSON with other log lines.
func lastJSONObject(s string) (string, error) {
	end := strings.LastIndex(s, "}")
	if end == -1 {
		return "", fmt.Errorf("no JSON object found in ffmpeg output")
	}
	depth := 0
	start := -1
	for i := end; i >= 0; i-- {
		switch s[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				start = i
			}
		}
		if start != -1 {
			break
		}
	}
	if start == -1 {
		return "", fmt.Errorf("unbalanced JSON object in ffmpeg output")
	}
	return s[start : end+1], nil
}
