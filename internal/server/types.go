package server

import "github.com/jaki95/dropcrate/internal/domain"

// StartBatchRequest is the wire shape for the start-batch endpoint.
type StartBatchRequest struct {
	InboxDir string                  `json:"inbox_dir"`
	Preset   domain.ProcessingPreset `json:"preset"`
	Items    []BatchItemRequest      `json:"items" binding:"required"`
}

// BatchItemRequest is one item of a batch submission. PresetSnapshot is
// accepted for wire compatibility with the spec's illustrative schema but
// is not applied: the Batch Scheduler's runBatch contract (§4.9) takes a
// single preset for the whole batch, so per-item overrides have no
// component to flow through to in this implementation.
type BatchItemRequest struct {
	ID             string                   `json:"id" binding:"required"`
	URL            string                   `json:"url" binding:"required"`
	PresetSnapshot *domain.ProcessingPreset `json:"preset_snapshot,omitempty"`
}

// StartBatchResponse is returned once a batch has been accepted and queued.
type StartBatchResponse struct {
	JobID string `json:"job_id"`
}

// MessageResponse is a generic acknowledgement payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// ClassifyRequest is the wire shape for the synchronous classify endpoint.
type ClassifyRequest struct {
	Items []ClassifyItemRequest `json:"items" binding:"required"`
}

type ClassifyItemRequest struct {
	ID  string `json:"id" binding:"required"`
	URL string `json:"url" binding:"required"`
}

// ClassifyResult pairs a requested item id with its resolved classification.
type ClassifyResult struct {
	ID             string                `json:"id"`
	Classification domain.Classification `json:"classification"`
}

// ClassifySource names which classifier actually produced the batch result.
type ClassifySource string

const (
	ClassifySourceHeuristic ClassifySource = "heuristic"
	ClassifySourceLLM       ClassifySource = "llm"
)

// ClassifyResponse is the synchronous classify endpoint's response body.
type ClassifyResponse struct {
	Source  ClassifySource   `json:"source"`
	Results []ClassifyResult `json:"results"`
	Ms      int64            `json:"ms"`
}

// LibraryRow is one entry in the library listing response, derived purely
// from a sidecar document (§3's "Sidecar Document is the library's source
// of truth").
type LibraryRow struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	Artist       string `json:"artist"`
	Title        string `json:"title"`
	Genre        string `json:"genre"`
	DownloadedAt string `json:"downloadedAt"`
}

// LibraryResponse wraps the sorted listing.
type LibraryResponse struct {
	Items []LibraryRow `json:"items"`
}
