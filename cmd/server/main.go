// Package main is the process entry point for the HTTP/SSE surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/jaki95/dropcrate/config"
	"github.com/jaki95/dropcrate/internal/mirror"
	"github.com/jaki95/dropcrate/internal/server"
	"github.com/jaki95/dropcrate/internal/toolprovisioner"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Server port (overrides config and BRIDGE_PORT when set)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx := context.Background()

	tools, err := resolveTools(ctx, cfg)
	if err != nil {
		slog.Error("failed to resolve tools", "error", err)
		os.Exit(1)
	}

	mirrorSink, err := mirror.New(ctx, cfg.Mirror.Bucket, cfg.Mirror.CredentialsFile)
	if err != nil {
		slog.Error("failed to initialize mirror sink", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, tools, mirrorSink)

	slog.Info("starting dropcrate server", "port", cfg.Server.Port)
	if err := srv.Start(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// resolveTools honors explicit config/env overrides first (§6's
// <EXTRACTOR>_PATH/FFMPEG_PATH/FPCALC_PATH), falling back to the Tool
// Provisioner only for whichever binary has no explicit path.
func resolveTools(ctx context.Context, cfg *config.Config) (toolprovisioner.Tools, error) {
	tools := toolprovisioner.Tools{
		ExtractorPath:       cfg.Tools.ExtractorPath,
		FFmpegPath:          cfg.Tools.FFmpegPath,
		FingerprintCalcPath: cfg.Tools.FingerprintCalcPath,
	}

	var specs []toolprovisioner.Spec
	if tools.ExtractorPath == "" {
		specs = append(specs, toolprovisioner.Spec{
			Name:        "yt-dlp",
			EnvVar:      "EXTRACTOR_PATH",
			Required:    true,
			DownloadURL: extractorDownloadURL,
		})
	}
	if tools.FFmpegPath == "" {
		// ffmpeg is distributed as an archive on every platform, which the
		// provisioner's direct-file download can't unpack; it's expected to
		// already be on PATH or pointed at via FFMPEG_PATH.
		specs = append(specs, toolprovisioner.Spec{
			Name:     "ffmpeg",
			EnvVar:   "FFMPEG_PATH",
			Required: true,
		})
	}
	if tools.FingerprintCalcPath == "" {
		// Same archive-distribution caveat as ffmpeg; fingerprinting is a
		// soft dependency so this one isn't Required.
		specs = append(specs, toolprovisioner.Spec{
			Name:     "fpcalc",
			EnvVar:   "FPCALC_PATH",
			Required: false,
		})
	}

	if len(specs) == 0 {
		return tools, nil
	}

	prov := toolprovisioner.New(cfg.Tools.BinDir)
	resolved, err := prov.Resolve(ctx, specs)
	if err != nil {
		return toolprovisioner.Tools{}, err
	}
	if p, ok := resolved["yt-dlp"]; ok {
		tools.ExtractorPath = p
	}
	if p, ok := resolved["ffmpeg"]; ok {
		tools.FFmpegPath = p
	}
	if p, ok := resolved["fpcalc"]; ok {
		tools.FingerprintCalcPath = p
	}
	return tools, nil
}

// extractorDownloadURL picks the single-file yt-dlp release asset for the
// running platform; yt-dlp is the only tool here published as one binary
// per OS rather than an archive.
func extractorDownloadURL() (string, error) {
	const base = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/"
	switch runtime.GOOS {
	case "linux":
		return base + "yt-dlp", nil
	case "darwin":
		return base + "yt-dlp_macos", nil
	case "windows":
		return base + "yt-dlp.exe", nil
	default:
		return "", fmt.Errorf("no yt-dlp release published for %s", runtime.GOOS)
	}
}
