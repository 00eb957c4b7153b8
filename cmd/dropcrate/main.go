// Package main is the process entry point for the CLI batch entry point:
// a synchronous, stdout-rendered run over 1-10 URLs with no HTTP/SSE layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	ansi "github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/jaki95/dropcrate/config"
	"github.com/jaki95/dropcrate/internal/audio"
	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/jaki95/dropcrate/internal/extractor"
	"github.com/jaki95/dropcrate/internal/fingerprint"
	"github.com/jaki95/dropcrate/internal/jobs"
	"github.com/jaki95/dropcrate/internal/mirror"
	"github.com/jaki95/dropcrate/internal/pipeline"
	"github.com/jaki95/dropcrate/internal/scheduler"
	"github.com/jaki95/dropcrate/internal/toolprovisioner"
)

const (
	minURLs = 1
	maxURLs = 10
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dropcrate", flag.ContinueOnError)
	configPath := fs.String("config", "./config/config.yaml", "Path to config file")
	mode := fs.String("mode", "", "Processing mode: dj-safe|fast (default from config)")
	audioFormat := fs.String("audio-format", "", "Output audio format: aiff|wav|flac|mp3|m4a|auto (default from config)")
	normalize := fs.Bool("normalize", false, "Enable loudness normalization")
	noNormalize := fs.Bool("no-normalize", false, "Disable loudness normalization")
	lufs := fs.Float64("lufs", 0, "Target integrated loudness (LUFS, default from config)")
	truePeak := fs.Float64("true-peak", 0, "Target true peak (dBTP, default from config)")
	lra := fs.Float64("lra", 0, "Target loudness range (LU, default from config)")
	inbox := fs.String("inbox", "", "Output directory (default from config)")
	concurrent := fs.Int("concurrent", scheduler.DefaultCLIConcurrency, "Number of items to process concurrently (1-5)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	urls := fs.Args()
	if len(urls) < minURLs || len(urls) > maxURLs {
		fmt.Fprintf(os.Stderr, "expected between %d and %d URLs, got %d\n", minURLs, maxURLs, len(urls))
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	preset, err := buildPreset(cfg.Preset, *mode, *audioFormat, *normalize, *noNormalize, *lufs, *truePeak, *lra)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid preset: %v\n", err)
		return 2
	}

	outputDir := cfg.Storage.OutputDir
	if *inbox != "" {
		outputDir = *inbox
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output directory: %v\n", err)
		return 1
	}

	if *concurrent < scheduler.MinConcurrency || *concurrent > scheduler.MaxConcurrency {
		fmt.Fprintf(os.Stderr, "--concurrent must be between %d and %d\n", scheduler.MinConcurrency, scheduler.MaxConcurrency)
		return 2
	}

	ctx := context.Background()

	tools, err := resolveTools(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve tools: %v\n", err)
		return 1
	}

	mirrorSink, err := mirror.New(ctx, cfg.Mirror.Bucket, cfg.Mirror.CredentialsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize mirror sink: %v\n", err)
		return 1
	}

	deps := pipeline.Dependencies{
		Extractor:   extractor.New(tools.ExtractorPath),
		Fingerprint: fingerprint.NewMatcher(tools.FingerprintCalcPath, cfg.Fingerprint.AcoustIDKey, cfg.Fingerprint.UserAgent, cfg.Fingerprint.CachePath),
		Audio:       audio.New(tools.FFmpegPath),
		OutputDir:   outputDir,
	}
	if mirrorSink != nil {
		deps.Mirror = mirrorSink
	}

	items := make([]domain.TrackRequest, len(urls))
	for i, u := range urls {
		items[i] = domain.TrackRequest{ID: fmt.Sprintf("item-%d", i+1), URL: u}
	}

	registry := jobs.NewRegistry()
	jobID, jobCtx := registry.CreateJob(preset)

	runItem := func(ctx context.Context, jobID string, item domain.TrackRequest, preset domain.ProcessingPreset, emit pipeline.EmitFunc) domain.ItemOutcome {
		return pipeline.RunItem(ctx, deps, jobID, item, preset, emit)
	}
	sched := scheduler.New(registry, runItem, *concurrent, scheduler.DefaultMaxRetries)

	sub, ok := registry.Subscribe(jobCtx, jobID)
	if !ok {
		fmt.Fprintln(os.Stderr, "failed to subscribe to batch progress")
		return 1
	}

	failures := make(chan int, 1)
	go renderProgress(sub, len(items), failures)

	sched.RunBatch(jobCtx, jobID, preset, items)

	failureCount := <-failures
	if failureCount > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d items failed\n", failureCount, len(items))
	}
	return 0
}

// renderProgress drives a progress bar from the job's event stream, in the
// teacher's go-ansi/progressbar idiom, advancing one unit per finished item
// rather than parsing subprocess stdout (there is no single subprocess here:
// each item runs several external tools in sequence). It sends the number
// of failed items on failures when queue-done or queue-cancelled arrives,
// or when the stream closes first.
func renderProgress(events <-chan domain.Event, total int, failures chan<- int) {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Processing tracks...[reset]"),
	)

	failed := 0
	for e := range events {
		switch e.Type {
		case domain.EventItemProgress:
			bar.Describe(fmt.Sprintf("[cyan]%s: %s[reset]", e.ItemID, e.Stage))
		case domain.EventItemDone:
			bar.Add(1)
			fmt.Println()
			fmt.Printf("done: %s\n", e.ItemID)
		case domain.EventItemError:
			failed++
			bar.Add(1)
			fmt.Println()
			fmt.Printf("failed: %s (%s): %s\n", e.ItemID, e.ErrorKind, e.Message)
		case domain.EventQueueDone, domain.EventQueueCancelled:
			fmt.Println()
			failures <- failed
			return
		}
	}
	failures <- failed
}

// buildPreset overlays CLI flags onto the configured default preset, then
// validates and normalizes the result exactly as the server's startBatch
// handler does for a submitted batch.
func buildPreset(base domain.ProcessingPreset, mode, audioFormat string, normalizeFlag, noNormalizeFlag bool, lufs, truePeak, lra float64) (domain.ProcessingPreset, error) {
	preset := base

	if mode != "" {
		m := domain.Mode(mode)
		if m != domain.ModeDJSafe && m != domain.ModeFast {
			return domain.ProcessingPreset{}, fmt.Errorf("unknown mode %q", mode)
		}
		preset.Mode = m
	}

	if audioFormat != "" {
		f := domain.AudioFormat(audioFormat)
		switch f {
		case domain.FormatAIFF, domain.FormatWAV, domain.FormatFLAC, domain.FormatMP3, domain.FormatM4A, domain.FormatAuto:
			preset.AudioFormat = f
		default:
			return domain.ProcessingPreset{}, fmt.Errorf("unknown audio format %q", audioFormat)
		}
	}

	if normalizeFlag && noNormalizeFlag {
		return domain.ProcessingPreset{}, fmt.Errorf("--normalize and --no-normalize are mutually exclusive")
	}
	if normalizeFlag {
		preset.NormalizeEnabled = true
	}
	if noNormalizeFlag {
		preset.NormalizeEnabled = false
	}

	if lufs != 0 {
		preset.Loudness.I = lufs
	}
	if truePeak != 0 {
		preset.Loudness.TP = truePeak
	}
	if lra != 0 {
		preset.Loudness.LRA = lra
	}

	if !preset.Loudness.InRange() {
		return domain.ProcessingPreset{}, fmt.Errorf("loudness target out of range: %+v", preset.Loudness)
	}

	return preset.Normalize(), nil
}

// resolveTools mirrors cmd/server/main.go's resolution order: explicit
// config/env overrides first, the Tool Provisioner for whatever is left.
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
		specs = append(specs, toolprovisioner.Spec{
			Name:     "ffmpeg",
			EnvVar:   "FFMPEG_PATH",
			Required: true,
		})
	}
	if tools.FingerprintCalcPath == "" {
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
