package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaki95/dropcrate/internal/domain"
)

const defaultID3Version = "3"

// id3v2Formats writes tags via id3v2 (mp3, aiff, wav); flac instead uses
// Vorbis comments, which ffmpeg selects automatically for that muxer.
var id3v2Formats = map[domain.AudioFormat]bool{
	domain.FormatMP3:  true,
	domain.FormatAIFF: true,
	domain.FormatWAV:  true,
}

// ApplyTagsAndArtwork remuxes mediaPath in place (temp+rename) writing the
// given tags and, if artworkPath is non-empty, embedding it as a second
// stream per §4.3.
func (p *Processor) ApplyTagsAndArtwork(ctx context.Context, mediaPath string, format domain.AudioFormat, tags map[string]string, artworkPath string) error {
	if err := p.validateFile(mediaPath); err != nil {
		return domain.NewProcessingError(domain.StageTag, "input file invalid", err)
	}
	_, container, err := codecFor(format)
	if err != nil {
		return domain.NewProcessingError(domain.StageTag, err.Error(), err)
	}

	return writeViaTempAndRename(mediaPath, func(tempPath string) error {
		args := []string{"-y", "-i", mediaPath}

		hasArtwork := artworkPath != ""
		if hasArtwork {
			args = append(args, "-i", artworkPath,
				"-map", "0:a",
				"-map", "1:v",
				"-c:a", "copy",
				"-c:v", "mjpeg",
				"-disposition:v:0", "attached_pic",
			)
		} else {
			args = append(args, "-map", "0:a", "-c:a", "copy")
		}

		args = append(args, "-f", container)

		if id3v2Formats[format] {
			args = append(args, "-id3v2_version", defaultID3Version)
		}

		for k, v := range tags {
			args = append(args, "-metadata", fmt.Sprintf("%s=%s", k, v))
		}
		for k, v := range tags {
			args = append(args, "-metadata:s:a:0", fmt.Sprintf("%s=%s", k, v))
		}
		if hasArtwork {
			args = append(args,
				"-metadata:s:v", "title=Album cover",
				"-metadata:s:v", "comment=Cover (front)",
			)
		}

		args = append(args, tempPath)

		_, err := p.run(ctx, domain.StageTag, args)
		return err
	})
}

// BuildComment renders the multi-line comment block from §4.8 step 7.
func BuildComment(energy, timeOfDay, vibe, sourceName, url, sourceID string) string {
	prefix := strings.ToUpper(strings.ReplaceAll(sourceName, " ", ""))
	return fmt.Sprintf(
		"ENERGY: %s\nTIME: %s\nVIBE: %s\nSOURCE: %s\nURL: %s\n%s_ID: %s",
		energy, timeOfDay, vibe, sourceName, url, prefix, sourceID,
	)
}
