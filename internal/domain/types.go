// Package domain holds the shared data model for the acquisition and
// finalization pipeline: track requests, DJ tags, classification results,
// processing presets and the job/event shapes that tie a batch together.
package domain

import (
	"encoding/json"
	"time"
)

// TrackRequest is a single caller-supplied item to acquire.
type TrackRequest struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// DJTags is the finite four-field classification consumed by downstream
// DJ tooling. Empty strings denote "unspecified".
type DJTags struct {
	Genre  string `json:"genre"`
	Energy string `json:"energy"`
	Time   string `json:"time"`
	Vibe   string `json:"vibe"`
}

const GenreOther = "Other"

const (
	TimeWarmup  = "Warmup"
	TimePeak    = "Peak"
	TimeClosing = "Closing"
)

// Kind is the coarse classification of a source item.
type Kind string

const (
	KindTrack   Kind = "track"
	KindSet     Kind = "set"
	KindPodcast Kind = "podcast"
	KindVideo   Kind = "video"
	KindUnknown Kind = "unknown"
)

// ClassificationSource identifies which layer produced a Classification.
type ClassificationSource string

const (
	SourceHeuristic ClassificationSource = "heuristic"
	SourceLLM       ClassificationSource = "llm"
)

// Classification is the output of the heuristic or LLM classifier.
type Classification struct {
	Kind       Kind                 `json:"kind"`
	Tags       DJTags               `json:"tags"`
	Confidence float64              `json:"confidence"`
	Notes      string               `json:"notes"`
	Source     ClassificationSource `json:"source"`
}

// Thumbnail is one candidate artwork image reported by the extractor.
type Thumbnail struct {
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Preference int    `json:"preference"`
}

// ExtractedInfo is the subset of extractor output used downstream.
type ExtractedInfo struct {
	SourceID    string      `json:"sourceId"`
	Title       string      `json:"title"`
	Uploader    string      `json:"uploader"`
	DurationS   float64     `json:"duration_s"`
	WebpageURL  string      `json:"webpage_url"`
	Description string      `json:"description"`
	Thumbnails  []Thumbnail `json:"thumbnails"`
	Categories  []string    `json:"categories"`
	Tags        []string    `json:"tags"`
}

// LoudnessTarget bounds are enforced at preset-construction time.
type LoudnessTarget struct {
	I  float64 `json:"i"`
	TP float64 `json:"tp"`
	LRA float64 `json:"lra"`
}

const (
	LoudnessIMin   = -23.0
	LoudnessIMax   = -8.0
	LoudnessTPMin  = -5.0
	LoudnessTPMax  = 0.0
	LoudnessLRAMin = 5.0
	LoudnessLRAMax = 20.0
)

// InRange reports whether every field of the target is within the bounds
// fixed by the specification.
func (lt LoudnessTarget) InRange() bool {
	return lt.I >= LoudnessIMin && lt.I <= LoudnessIMax &&
		lt.TP >= LoudnessTPMin && lt.TP <= LoudnessTPMax &&
		lt.LRA >= LoudnessLRAMin && lt.LRA <= LoudnessLRAMax
}

// Mode selects the processing profile for a batch.
type Mode string

const (
	ModeDJSafe Mode = "dj-safe"
	ModeFast   Mode = "fast"
)

// AudioFormat is the target container/codec for finalized audio.
type AudioFormat string

const (
	FormatAIFF AudioFormat = "aiff"
	FormatWAV  AudioFormat = "wav"
	FormatFLAC AudioFormat = "flac"
	FormatMP3  AudioFormat = "mp3"
	FormatM4A  AudioFormat = "m4a"
	FormatAuto AudioFormat = "auto"
)

// DJSafeFormats are the only formats permitted when Mode is ModeDJSafe.
var DJSafeFormats = map[AudioFormat]bool{
	FormatAIFF: true,
	FormatWAV:  true,
	FormatFLAC: true,
}

// ProcessingPreset captures the caller's desired output shape for a batch.
type ProcessingPreset struct {
	Mode             Mode           `json:"mode"`
	AudioFormat      AudioFormat    `json:"audio_format"`
	NormalizeEnabled bool           `json:"normalize_enabled"`
	Loudness         LoudnessTarget `json:"loudness"`
}

// Normalize enforces the preset invariants from the data model: fast mode
// never normalizes, and dj-safe mode is restricted to lossless containers.
func (p ProcessingPreset) Normalize() ProcessingPreset {
	out := p
	if out.Mode == ModeFast {
		out.NormalizeEnabled = false
	}
	if out.Mode == ModeDJSafe && !DJSafeFormats[out.AudioFormat] {
		out.AudioFormat = FormatAIFF
	}
	return out
}

// NormalizedMetadata is the Title Normalizer's output, possibly later
// replaced in part by a FingerprintMatch.
type NormalizedMetadata struct {
	Artist  string  `json:"artist"`
	Title   string  `json:"title"`
	Version *string `json:"version,omitempty"`
	Album   *string `json:"album,omitempty"`
	Year    *string `json:"year,omitempty"`
	Label   *string `json:"label,omitempty"`
}

// FingerprintMatch is the canonical metadata resolved via acoustic
// fingerprinting, if any.
type FingerprintMatch struct {
	Provider    string  `json:"provider"`
	Score       float64 `json:"score"`
	RecordingID string  `json:"recordingId"`
	Artist      string  `json:"artist"`
	Title       string  `json:"title"`
	Album       *string `json:"album,omitempty"`
	Year        *string `json:"year,omitempty"`
	Label       *string `json:"label,omitempty"`
	Applied     bool    `json:"applied"`
}

// Status is the lifecycle state of a single item within a job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Stage names one step of the per-item pipeline.
type Stage string

const (
	StageMetadata   Stage = "metadata"
	StageClassify   Stage = "classify"
	StageDownload   Stage = "download"
	StageFingerprint Stage = "fingerprint"
	StageNormalize  Stage = "normalize"
	StageTranscode  Stage = "transcode"
	StageTag        Stage = "tag"
	StageFinalize   Stage = "finalize"
)

// ErrorKind is the closed taxonomy of error identities surfaced to callers.
type ErrorKind string

const (
	ErrKindToolUnavailable       ErrorKind = "ToolUnavailable"
	ErrKindInputInvalid          ErrorKind = "InputInvalid"
	ErrKindRateLimited           ErrorKind = "RateLimited"
	ErrKindGeoBlocked            ErrorKind = "GeoBlocked"
	ErrKindAgeRestricted         ErrorKind = "AgeRestricted"
	ErrKindPrivate               ErrorKind = "Private"
	ErrKindUnavailable           ErrorKind = "Unavailable"
	ErrKindLoginRequired         ErrorKind = "LoginRequired"
	ErrKindCopyright             ErrorKind = "Copyright"
	ErrKindNetworkError          ErrorKind = "NetworkError"
	ErrKindUnsupported           ErrorKind = "Unsupported"
	ErrKindExtractorUnknown      ErrorKind = "Unknown"
	ErrKindFingerprintUnavailable ErrorKind = "FingerprintUnavailable"
	ErrKindProcessingError       ErrorKind = "ProcessingError"
	ErrKindCancelled             ErrorKind = "Cancelled"
	ErrKindInternal              ErrorKind = "Internal"
)

// Retryable reports whether the scheduler should retry an item whose
// pipeline run failed with this error kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindRateLimited, ErrKindNetworkError:
		return true
	default:
		return false
	}
}

// Outputs records the paths written for a finished item.
type Outputs struct {
	AudioPath string `json:"audioPath,omitempty"`
	VideoPath string `json:"videoPath,omitempty"`
}

// ItemOutcome is the current state of one item within a job.
type ItemOutcome struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Stage     Stage     `json:"stage,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Outputs   *Outputs  `json:"outputs,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// SidecarDocument is the persisted JSON written next to every finalized
// media file; it is the library's source of truth.
type SidecarDocument struct {
	SourceURL        string               `json:"sourceUrl"`
	SourceID         string               `json:"sourceId"`
	Title            *string              `json:"title"`
	Uploader         *string              `json:"uploader"`
	Duration         *float64             `json:"duration"`
	DownloadedAt     time.Time            `json:"downloadedAt"`
	Normalized       NormalizedMetadata   `json:"normalized"`
	FingerprintMatch *FingerprintMatch    `json:"fingerprintMatch"`
	DJDefaults       DJTags               `json:"djDefaults"`
	Processing       SidecarProcessing    `json:"processing"`
	Outputs          Outputs              `json:"outputs"`
}

// SidecarProcessing records the preset actually applied to a finished item.
type SidecarProcessing struct {
	AudioFormat AudioFormat        `json:"audioFormat"`
	Normalize   SidecarNormalize   `json:"normalize"`
}

type SidecarNormalize struct {
	Enabled  bool    `json:"enabled"`
	TargetI  float64 `json:"targetI"`
	TargetTP float64 `json:"targetTP"`
	TargetLRA float64 `json:"targetLRA"`
}

// MarshalJSON renders DownloadedAt as RFC3339, matching the ISO-8601
// requirement in the persisted sidecar schema.
func (s SidecarDocument) MarshalJSON() ([]byte, error) {
	type alias SidecarDocument
	return json.Marshal(struct {
		alias
		DownloadedAt string `json:"downloadedAt"`
	}{
		alias:        alias(s),
		DownloadedAt: s.DownloadedAt.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON parses DownloadedAt from RFC3339.
func (s *SidecarDocument) UnmarshalJSON(data []byte) error {
	type alias SidecarDocument
	aux := struct {
		*alias
		DownloadedAt string `json:"downloadedAt"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.DownloadedAt != "" {
		t, err := time.Parse(time.RFC3339, aux.DownloadedAt)
		if err != nil {
			return err
		}
		s.DownloadedAt = t
	}
	return nil
}
