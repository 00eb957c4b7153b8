package toolprovisioner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// scriptingRuntimes lists candidate interpreters, most preferred first,
// for the portable-archive launcher fallback.
var scriptingRuntimes = []struct {
	bin        string
	minVersion string
}{
	{"python3", "3.8"},
	{"python", "3.8"},
}

// installLauncher downloads a portable, interpreter-hosted form of the
// tool (e.g. a zipapp) and writes a thin shell launcher that delegates to
// a detected scripting runtime, per §4.1's fallback path. Returns the
// launcher's path.
func (p *Provisioner) installLauncher(ctx context.Context, name, portableArchiveURL string) (string, error) {
	runtime, err := detectScriptingRuntime(ctx)
	if err != nil {
		return "", fmt.Errorf("no usable scripting runtime for %s launcher: %w", name, err)
	}

	archivePath, err := p.downloadAndInstall(ctx, name+".pyz", portableArchiveURL)
	if err != nil {
		return "", fmt.Errorf("download portable archive for %s: %w", name, err)
	}

	launcherPath := filepath.Join(p.binDir, name+"-launcher")
	script := fmt.Sprintf("#!/bin/sh\nexec %s %s \"$@\"\n", runtime, archivePath)
	if err := os.WriteFile(launcherPath, []byte(script), 0755); err != nil {
		return "", fmt.Errorf("write launcher: %w", err)
	}
	return launcherPath, nil
}

func detectScriptingRuntime(ctx context.Context) (string, error) {
	for _, rt := range scriptingRuntimes {
		path, err := exec.LookPath(rt.bin)
		if err != nil {
			continue
		}
		if versionCheckPasses(ctx, path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %v found on PATH", runtimeNames())
}

func runtimeNames() []string {
	names := make([]string, 0, len(scriptingRuntimes))
	for _, rt := range scriptingRuntimes {
		names = append(names, rt.bin)
	}
	return names
}
