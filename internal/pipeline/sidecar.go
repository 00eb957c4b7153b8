package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jaki95/dropcrate/internal/domain"
)

// buildSidecar assembles the persisted JSON document written alongside a
// finished item, per §6's sidecar schema.
func buildSidecar(
	req domain.TrackRequest,
	info domain.ExtractedInfo,
	normalized domain.NormalizedMetadata,
	fpMatch *domain.FingerprintMatch,
	tags domain.DJTags,
	preset domain.ProcessingPreset,
	finalPath string,
) domain.SidecarDocument {
	title := info.Title
	uploader := info.Uploader
	duration := info.DurationS

	return domain.SidecarDocument{
		SourceURL:        req.URL,
		SourceID:         info.SourceID,
		Title:            &title,
		Uploader:         &uploader,
		Duration:         &duration,
		DownloadedAt:     time.Now(),
		Normalized:       normalized,
		FingerprintMatch: fpMatch,
		DJDefaults:       tags,
		Processing: domain.SidecarProcessing{
			AudioFormat: preset.AudioFormat,
			Normalize: domain.SidecarNormalize{
				Enabled:   preset.NormalizeEnabled,
				TargetI:   preset.Loudness.I,
				TargetTP:  preset.Loudness.TP,
				TargetLRA: preset.Loudness.LRA,
			},
		},
		Outputs: domain.Outputs{AudioPath: finalPath},
	}
}

// writeSidecar commits doc to path via temp-file-then-rename, matching the
// durable-write discipline used throughout this codebase for any file a
// reader might observe mid-write.
func writeSidecar(path string, doc domain.SidecarDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sidecar_*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
