package audio

import (
	"context"

	"github.com/jaki95/dropcrate/internal/domain"
)

// Transcode performs a one-pass, audio-only format change with no
// loudness adjustment, used when normalize is disabled but the target
// format differs from the source container.
func (p *Processor) Transcode(ctx context.Context, inputPath, outputPath string, format domain.AudioFormat) error {
	if err := p.validateFile(inputPath); err != nil {
		return domain.NewProcessingError(domain.StageTranscode, "input file invalid", err)
	}
	codec, _, err := codecFor(format)
	if err != nil {
		return domain.NewProcessingError(domain.StageTranscode, err.Error(), err)
	}

	return writeViaTempAndRename(outputPath, func(tempPath string) error {
		args := []string{
			"-y",
			"-i", inputPath,
			"-map", "0:a",
			"-ar", sampleRateHz,
			"-c:a", codec,
			tempPath,
		}
		_, err := p.run(ctx, domain.StageTranscode, args)
		return err
	})
}
