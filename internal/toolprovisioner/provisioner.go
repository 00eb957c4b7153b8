// Package toolprovisioner resolves the external binaries the pipeline
// shells out to (extractor, ffmpeg, fingerprint calculator): environment
// override, then a cached local bin directory, then a --version smoke
// test, falling back to an HTTPS download when the binary is missing or
// non-functional.
package toolprovisioner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/jaki95/dropcrate/internal/domain"
)

const versionCheckTimeout = 10 * time.Second
const downloadTimeout = 5 * time.Minute

// Tools is the resolved set of binary paths. FingerprintCalcPath is empty
// when no fingerprint calculator could be resolved — fingerprinting is
// then skipped, which §4.7 treats as a soft condition, not a failure.
type Tools struct {
	ExtractorPath       string
	FFmpegPath          string
	FingerprintCalcPath string
}

// Spec describes one binary to resolve.
type Spec struct {
	// Name identifies the tool for logging and cache-dir naming.
	Name string
	// EnvVar, if set in the environment, is used verbatim without a
	// --version smoke test (the operator has asserted it is correct).
	EnvVar string
	// Required marks whether failure to resolve this tool is fatal.
	Required bool
	// DownloadURL builds the HTTPS URL for the platform-appropriate
	// release asset. May be empty if no fallback download exists.
	DownloadURL func() (string, error)
	// PortableArchiveURL builds the URL for an interpreter-hosted
	// portable form, used only if the native binary download is
	// unavailable or fails its --version smoke test.
	PortableArchiveURL func() (string, error)
}

// Provisioner resolves and caches tool paths for the lifetime of the
// process — a per-process global singleton is appropriate here per
// SPEC_FULL.md §9, but it is modeled as an explicit struct with its own
// init rather than package-level state, so it can be constructed fresh in
// tests.
type Provisioner struct {
	binDir string

	mu      sync.Mutex
	resolved map[string]string
}

// New creates a Provisioner that caches downloaded binaries under binDir
// (typically "<inbox_dir>/../.dropcrate/bin").
func New(binDir string) *Provisioner {
	return &Provisioner{binDir: binDir, resolved: map[string]string{}}
}

// Resolve resolves all of specs, returning ToolUnavailable for the first
// required tool that cannot be resolved.
func (p *Provisioner) Resolve(ctx context.Context, specs []Spec) (map[string]string, error) {
	out := map[string]string{}
	for _, spec := range specs {
		path, err := p.resolveOne(ctx, spec)
		if err != nil {
			if spec.Required {
				return nil, domain.NewToolUnavailable(fmt.Sprintf("could not resolve %s", spec.Name), err)
			}
			continue
		}
		out[spec.Name] = path
	}
	return out, nil
}

func (p *Provisioner) resolveOne(ctx context.Context, spec Spec) (string, error) {
	p.mu.Lock()
	if cached, ok := p.resolved[spec.Name]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	path, err := p.resolveUncached(ctx, spec)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.resolved[spec.Name] = path
	p.mu.Unlock()
	return path, nil
}

func (p *Provisioner) resolveUncached(ctx context.Context, spec Spec) (string, error) {
	if spec.EnvVar != "" {
		if v := os.Getenv(spec.EnvVar); v != "" {
			return v, nil
		}
	}

	cachedPath := filepath.Join(p.binDir, spec.Name)
	if fileExists(cachedPath) && versionCheckPasses(ctx, cachedPath) {
		return cachedPath, nil
	}

	if versionCheckPasses(ctx, spec.Name) {
		if resolved, err := exec.LookPath(spec.Name); err == nil {
			return resolved, nil
		}
	}

	if spec.DownloadURL != nil {
		url, err := spec.DownloadURL()
		if err == nil {
			path, err := p.downloadAndInstall(ctx, spec.Name, url)
			if err == nil && versionCheckPasses(ctx, path) {
				return path, nil
			}
		}
	}

	if spec.PortableArchiveURL != nil {
		archiveURL, err := spec.PortableArchiveURL()
		if err == nil {
			return p.installLauncher(ctx, spec.Name, archiveURL)
		}
	}

	return "", fmt.Errorf("%s unavailable: no working native binary or portable launcher", spec.Name)
}

func versionCheckPasses(ctx context.Context, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, versionCheckTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, "--version")
	return cmd.Run() == nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// downloadAndInstall fetches url over HTTPS (following redirects, which
// net/http does by default), writes to a temp file in binDir, then
// renames into place and sets the executable bit.
func (p *Provisioner) downloadAndInstall(ctx context.Context, name, url string) (string, error) {
	if err := os.MkdirAll(p.binDir, 0755); err != nil {
		return "", fmt.Errorf("create bin dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %d", name, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(p.binDir, name+"_*.download")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write downloaded file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	finalPath := filepath.Join(p.binDir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("install %s: %w", name, err)
	}
	if err := os.Chmod(finalPath, 0755); err != nil {
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}

	return finalPath, nil
}
