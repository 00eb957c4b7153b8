// Package pipeline implements the Per-Item Pipeline (M1): the eight-stage
// state machine that turns one source URL into a finished, tagged audio
// file plus its sidecar document.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jaki95/dropcrate/internal/audio"
	"github.com/jaki95/dropcrate/internal/classify"
	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/jaki95/dropcrate/internal/extractor"
	"github.com/jaki95/dropcrate/internal/fingerprint"
	"github.com/jaki95/dropcrate/internal/titlenorm"
)

// Mirror archives a finished item's output files; the only implementation
// is internal/mirror.Sink, but the pipeline depends on this narrow
// interface so it never imports the storage SDK directly.
type Mirror interface {
	MirrorFinalized(ctx context.Context, audioPath, sidecarPath string)
}

const (
	metadataTimeout    = 45 * time.Second
	fingerprintTimeout = 25 * time.Second
)

// Dependencies wires the leaf components (L1-L7) an item run needs. LLM and
// Fingerprint are optional: a nil LLM falls back to the heuristic
// classifier, a nil Fingerprint matcher skips step 4 entirely.
type Dependencies struct {
	Extractor   *extractor.Driver
	LLM         *classify.Client
	Fingerprint *fingerprint.Matcher
	Audio       *audio.Processor
	OutputDir   string
	SourceName  string
	Mirror      Mirror
}

// EmitFunc receives one event at a time, in stage order, for a single item.
type EmitFunc func(domain.Event)

// RunItem executes the full §4.8 state machine for one request and returns
// its terminal outcome. The caller (scheduler) is responsible for retrying
// retryable outcomes; RunItem itself never retries.
func RunItem(ctx context.Context, deps Dependencies, jobID string, req domain.TrackRequest, preset domain.ProcessingPreset, emit EmitFunc) domain.ItemOutcome {
	emit(domain.NewItemStart(jobID, req.ID))

	if err := checkCancelled(ctx); err != nil {
		return failOutcome(jobID, req.ID, emit, err)
	}

	emit(domain.NewItemProgress(jobID, req.ID, domain.StageMetadata))
	mctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	info, err := deps.Extractor.FetchInfo(mctx, req.URL, metadataTimeout)
	cancel()
	if err != nil {
		return failOutcome(jobID, req.ID, emit, err)
	}

	workDir := filepath.Join(deps.OutputDir, ".dropcrate_tmp_"+sanitizeDirComponent(info.SourceID))
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return failOutcome(jobID, req.ID, emit, domain.NewInternal("could not create working directory", err))
	}
	defer os.RemoveAll(workDir)

	if err := checkCancelled(ctx); err != nil {
		return failOutcome(jobID, req.ID, emit, err)
	}

	emit(domain.NewItemProgress(jobID, req.ID, domain.StageClassify))
	classification := classifyItem(ctx, deps, req, info)
	tags := classify.Merge(domain.DJTags{}, classification)

	if err := checkCancelled(ctx); err != nil {
		return failOutcome(jobID, req.ID, emit, err)
	}

	emit(domain.NewItemProgress(jobID, req.ID, domain.StageDownload))
	destTemplate := filepath.Join(workDir, "source.%(ext)s")
	downloadedPath, err := deps.Extractor.DownloadMedia(ctx, req.URL, extractor.ModeBestAudio, destTemplate, 0)
	if err != nil {
		return failOutcome(jobID, req.ID, emit, err)
	}

	normTitle := titlenorm.Normalize(info.Title, info.Uploader)
	normalized := toNormalizedMetadata(normTitle)

	var fpMatch *domain.FingerprintMatch
	if deps.Fingerprint != nil {
		if err := checkCancelled(ctx); err != nil {
			return failOutcome(jobID, req.ID, emit, err)
		}
		emit(domain.NewItemProgress(jobID, req.ID, domain.StageFingerprint))
		fctx, fcancel := context.WithTimeout(ctx, fingerprintTimeout)
		fpMatch, normalized = deps.Fingerprint.Match(fctx, downloadedPath, normalized, titlenorm.HasSeparator(info.Title))
		fcancel()
	}

	artworkPath := downloadBestThumbnail(ctx, workDir, info.Thumbnails)

	preset = preset.Normalize()
	finalFormat := preset.AudioFormat
	if finalFormat == domain.FormatAuto {
		finalFormat = domain.FormatAIFF
	}

	processedPath := downloadedPath
	if preset.NormalizeEnabled {
		if err := checkCancelled(ctx); err != nil {
			return failOutcome(jobID, req.ID, emit, err)
		}
		emit(domain.NewItemProgress(jobID, req.ID, domain.StageNormalize))
		tmpOut := filepath.Join(workDir, "normalized.tmp."+string(finalFormat))
		if err := deps.Audio.Normalize(ctx, downloadedPath, tmpOut, finalFormat, preset.Loudness); err != nil {
			return failOutcome(jobID, req.ID, emit, err)
		}
		processedPath = tmpOut
	} else if needsTranscode(downloadedPath, finalFormat) {
		if err := checkCancelled(ctx); err != nil {
			return failOutcome(jobID, req.ID, emit, err)
		}
		emit(domain.NewItemProgress(jobID, req.ID, domain.StageTranscode))
		tmpOut := filepath.Join(workDir, "transcoded.tmp."+string(finalFormat))
		if err := deps.Audio.Transcode(ctx, downloadedPath, tmpOut, finalFormat); err != nil {
			return failOutcome(jobID, req.ID, emit, err)
		}
		processedPath = tmpOut
	}

	if err := checkCancelled(ctx); err != nil {
		return failOutcome(jobID, req.ID, emit, err)
	}

	emit(domain.NewItemProgress(jobID, req.ID, domain.StageTag))
	comment := audio.BuildComment(tags.Energy, tags.Time, tags.Vibe, sourceLabel(deps.SourceName), info.WebpageURL, info.SourceID)
	fileTags := map[string]string{
		"artist":  normalized.Artist,
		"title":   displayTitle(normalized),
		"genre":   tags.Genre,
		"comment": comment,
	}
	if normalized.Album != nil {
		fileTags["album"] = *normalized.Album
	}
	if normalized.Year != nil {
		fileTags["date"] = *normalized.Year
	}
	if normalized.Label != nil {
		fileTags["publisher"] = *normalized.Label
	}
	if err := deps.Audio.ApplyTagsAndArtwork(ctx, processedPath, finalFormat, fileTags, artworkPath); err != nil {
		return failOutcome(jobID, req.ID, emit, err)
	}

	if err := checkCancelled(ctx); err != nil {
		return failOutcome(jobID, req.ID, emit, err)
	}

	emit(domain.NewItemProgress(jobID, req.ID, domain.StageFinalize))
	finalName := finalFilename(normalized, finalFormat)
	finalPath := filepath.Join(deps.OutputDir, finalName)
	if err := os.Rename(processedPath, finalPath); err != nil {
		return failOutcome(jobID, req.ID, emit, domain.NewProcessingError(domain.StageFinalize, "could not move finished file into place", err))
	}

	sidecar := buildSidecar(req, info, normalized, fpMatch, tags, preset, finalPath)
	sidecarPath := filepath.Join(deps.OutputDir, sidecarFilename(normalized))
	if err := writeSidecar(sidecarPath, sidecar); err != nil {
		return failOutcome(jobID, req.ID, emit, domain.NewInternal("could not write sidecar document", err))
	}

	if deps.Mirror != nil {
		deps.Mirror.MirrorFinalized(ctx, finalPath, sidecarPath)
	}

	emit(domain.NewItemDone(jobID, req.ID))
	return domain.ItemOutcome{
		ID:     req.ID,
		Status: domain.StatusDone,
		Outputs: &domain.Outputs{
			AudioPath: finalPath,
		},
	}
}

func classifyItem(ctx context.Context, deps Dependencies, req domain.TrackRequest, info domain.ExtractedInfo) domain.Classification {
	if deps.LLM != nil {
		results, err := deps.LLM.Classify(ctx, []classify.Item{{ID: req.ID, URL: req.URL, Info: info}})
		if err == nil && len(results) == 1 {
			return results[0]
		}
	}
	return classify.Classify(info)
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return domain.NewCancelled("item processing was cancelled")
	default:
		return nil
	}
}

func failOutcome(jobID, itemID string, emit EmitFunc, err error) domain.ItemOutcome {
	pe := domain.AsPipelineError(err)
	emit(domain.NewItemError(jobID, itemID, pe.Kind, pe.Message, pe.Hint))
	return domain.ItemOutcome{
		ID:        itemID,
		Status:    domain.StatusError,
		ErrorKind: pe.Kind,
		Message:   pe.Message,
	}
}

func toNormalizedMetadata(r titlenorm.Result) domain.NormalizedMetadata {
	out := domain.NormalizedMetadata{Artist: r.Artist, Title: r.Title}
	if r.Version != "" {
		v := r.Version
		out.Version = &v
	}
	return out
}

func displayTitle(m domain.NormalizedMetadata) string {
	version := ""
	if m.Version != nil {
		version = *m.Version
	}
	return titlenorm.Render(m.Title, version)
}

func needsTranscode(sourcePath string, target domain.AudioFormat) bool {
	ext := filepath.Ext(sourcePath)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	return domain.AudioFormat(ext) != target
}

func finalFilename(m domain.NormalizedMetadata, format domain.AudioFormat) string {
	base := fmt.Sprintf("%s - %s", m.Artist, displayTitle(m))
	return titlenorm.SanitizeFilename(base) + "." + string(format)
}

func sidecarFilename(m domain.NormalizedMetadata) string {
	base := fmt.Sprintf("%s - %s", m.Artist, displayTitle(m))
	return titlenorm.SanitizeFilename(base) + ".dropcrate.json"
}

func sanitizeDirComponent(s string) string {
	if s == "" {
		return "unknown"
	}
	return titlenorm.SanitizeFilename(s)
}

func sourceLabel(sourceName string) string {
	if sourceName == "" {
		return "YouTube"
	}
	return sourceName
}
