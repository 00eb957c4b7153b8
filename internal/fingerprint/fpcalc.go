// Package fingerprint implements the acoustic fingerprint matcher (L7):
// compute a fingerprint, look it up against an identity service, resolve
// the match's recording against a metadata service, and merge the result
// with the Title Normalizer's fallback under a conservative override
// policy.
package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// fpcalcResult is the JSON shape emitted on stdout by the external
// fingerprint-calculator tool.
type fpcalcResult struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

// runFpcalc computes the acoustic fingerprint for audioPath. Any failure
// (tool missing, non-zero exit, bad JSON) is reported to the caller, which
// per §4.7 step 1 treats it as "skip fingerprinting for this item", not as
// a pipeline-fatal error.
func runFpcalc(ctx context.Context, fpcalcPath, audioPath string) (fpcalcResult, error) {
	cmd := exec.CommandContext(ctx, fpcalcPath, "-json", audioPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fpcalcResult{}, fmt.Errorf("fpcalc failed: %w: %s", err, stderr.String())
	}

	var result fpcalcResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return fpcalcResult{}, fmt.Errorf("fpcalc produced invalid json: %w", err)
	}
	return result, nil
}
