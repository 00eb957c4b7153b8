// Package mirror implements the optional GCS archival sink: once an item
// finalizes, its audio file and sidecar are copied to a bucket so the
// local inbox directory can be treated as disposable. Disabled entirely
// when GCS_BUCKET is unset.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const uploadTimeout = 5 * time.Minute

// Sink uploads finalized files to a bucket, keyed by object name.
type Sink struct {
	client *storage.Client
	bucket string
}

// New builds a Sink backed by bucket, authenticating with credentialsFile
// if set or application-default credentials otherwise. Returns nil,nil
// when bucket is empty, so callers can wire the result straight into
// pipeline.Dependencies without a separate "is mirroring enabled" check.
func New(ctx context.Context, bucket, credentialsFile string) (*Sink, error) {
	if bucket == "" {
		return nil, nil
	}

	var client *storage.Client
	var err error
	if credentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &Sink{client: client, bucket: bucket}, nil
}

// Upload copies localPath to the bucket under objectName. Failures are
// returned to the caller to log; mirroring is archival and must never
// fail or block the pipeline's own outcome.
func (s *Sink) Upload(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(wc, f); err != nil {
		return fmt.Errorf("failed to copy %s to GCS: %w", objectName, err)
	}
	return wc.Close()
}

// MirrorFinalized uploads a finished item's audio file and sidecar,
// logging (never returning) failures — per §6 the mirror sink is a
// best-effort archival copy, not a pipeline dependency.
func (s *Sink) MirrorFinalized(ctx context.Context, audioPath, sidecarPath string) {
	if s == nil {
		return
	}
	for _, path := range []string{audioPath, sidecarPath} {
		if path == "" {
			continue
		}
		if err := s.Upload(ctx, path, filepath.Base(path)); err != nil {
			slog.Warn("mirror upload failed", "path", path, "error", err)
		}
	}
}
