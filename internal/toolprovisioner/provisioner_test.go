package toolprovisioner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_EnvOverrideWinsWithoutVersionCheck(t *testing.T) {
	t.Setenv("FAKE_TOOL_PATH", "/does/not/exist/but/unchecked")

	p := New(t.TempDir())
	specs := []Spec{{Name: "faketool", EnvVar: "FAKE_TOOL_PATH", Required: true}}

	resolved, err := p.Resolve(context.Background(), specs)
	require.NoError(t, err)
	assert.Equal(t, "/does/not/exist/but/unchecked", resolved["faketool"])
}

func TestResolve_CachesAcrossCalls(t *testing.T) {
	t.Setenv("FAKE_TOOL_PATH", "/cached/path")
	p := New(t.TempDir())
	specs := []Spec{{Name: "faketool", EnvVar: "FAKE_TOOL_PATH", Required: true}}

	first, err := p.Resolve(context.Background(), specs)
	require.NoError(t, err)
	os.Unsetenv("FAKE_TOOL_PATH")

	second, err := p.Resolve(context.Background(), specs)
	require.NoError(t, err)
	assert.Equal(t, first["faketool"], second["faketool"])
}

func TestResolve_RequiredToolMissingReturnsToolUnavailable(t *testing.T) {
	p := New(t.TempDir())
	specs := []Spec{{
		Name:     "ghosttool",
		Required: true,
	}}

	_, err := p.Resolve(context.Background(), specs)
	require.Error(t, err)
	pe := domain.AsPipelineError(err)
	assert.Equal(t, domain.ErrKindToolUnavailable, pe.Kind)
}

func TestResolve_OptionalToolMissingIsSkippedNotFatal(t *testing.T) {
	p := New(t.TempDir())
	specs := []Spec{{Name: "ghosttool", Required: false}}

	resolved, err := p.Resolve(context.Background(), specs)
	require.NoError(t, err)
	_, present := resolved["ghosttool"]
	assert.False(t, present)
}

func TestDownloadAndInstall_WritesExecutableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit semantics differ on windows")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#!/bin/sh\necho ok\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := New(dir)
	path, err := p.downloadAndInstall(context.Background(), "downloaded-tool", srv.URL)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0111, "installed binary should be executable")
	assert.Equal(t, filepath.Join(dir, "downloaded-tool"), path)
}
