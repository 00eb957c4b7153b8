package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jaki95/dropcrate/internal/domain"
	"github.com/jaki95/dropcrate/internal/scheduler"
	"gopkg.in/yaml.v3"
)

const defaultUserAgent = "dropcrate/1.0 (+https://github.com/jaki95/dropcrate)"

type Config struct {
	LogLevel int           `yaml:"log_level"`
	InboxDir string        `yaml:"inbox_dir"`
	Server   ServerConfig  `yaml:"server"`
	Tools    ToolsConfig   `yaml:"tools"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	LLM      LLMConfig     `yaml:"llm"`
	Mirror   MirrorConfig  `yaml:"mirror"`
	Preset   domain.ProcessingPreset `yaml:"default_preset"`
	Storage  StorageConfig `yaml:"storage"`
}

// ServerConfig controls the HTTP/SSE surface (S2).
type ServerConfig struct {
	Port          int `yaml:"port"`
	MaxConcurrent int `yaml:"max_concurrent"`
	MaxRetries    int `yaml:"max_retries"`
}

// ToolsConfig holds explicit path overrides and download locations for the
// externally-provisioned binaries (L1).
type ToolsConfig struct {
	ExtractorPath       string `yaml:"extractor_path"`
	FFmpegPath          string `yaml:"ffmpeg_path"`
	FingerprintCalcPath string `yaml:"fpcalc_path"`
	BinDir              string `yaml:"bin_dir"`
}

// FingerprintConfig holds the AcoustID/MusicBrainz credentials for L7.
type FingerprintConfig struct {
	AcoustIDKey  string `yaml:"acoustid_key"`
	UserAgent    string `yaml:"musicbrainz_user_agent"`
	CachePath    string `yaml:"cache_path"`
}

// LLMConfig holds the OpenAI-compatible credentials for L6.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// MirrorConfig enables the optional GCS archival sink.
type MirrorConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

// StorageConfig is retained from the original local/GCS output split; the
// output directory now defaults to InboxDir when unset.
type StorageConfig struct {
	Type            string `yaml:"type"`
	DataDir         string `yaml:"data_dir"`
	OutputDir       string `yaml:"output_dir"`
	BucketName      string `yaml:"bucket_name"`
	ObjectPrefix    string `yaml:"object_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Load seeds defaults, optionally overlays a YAML file, then applies
// environment variable overrides per §6 — in that order, so the
// environment always wins.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel: 0,
		InboxDir: "output",
		Server:   ServerConfig{Port: 8080, MaxConcurrent: scheduler.DefaultServerConcurrency, MaxRetries: scheduler.DefaultMaxRetries},
		Tools:    ToolsConfig{BinDir: ".dropcrate/bin"},
		Fingerprint: FingerprintConfig{
			UserAgent: defaultUserAgent,
			CachePath: ".dropcrate/cache/acoustid.json",
		},
		LLM: LLMConfig{Model: "gpt-4o-mini"},
		Preset: domain.ProcessingPreset{
			Mode:             domain.ModeDJSafe,
			AudioFormat:      domain.FormatAIFF,
			NormalizeEnabled: true,
			Loudness:         domain.LoudnessTarget{I: -14, TP: -1, LRA: 11},
		},
		Storage: StorageConfig{
			Type:    "local",
			DataDir: "storage",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = cfg.InboxDir
	}

	return cfg, nil
}

// applyEnvOverrides mutates cfg in place with every environment variable
// recognized in §6. Unset variables leave the existing value untouched.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INBOX_DIR"); v != "" {
		cfg.InboxDir = v
	}
	if v := os.Getenv("BRIDGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EXTRACTOR_PATH"); v != "" {
		cfg.Tools.ExtractorPath = v
	}
	if v := os.Getenv("FFMPEG_PATH"); v != "" {
		cfg.Tools.FFmpegPath = v
	}
	if v := os.Getenv("FPCALC_PATH"); v != "" {
		cfg.Tools.FingerprintCalcPath = v
	}
	if v := os.Getenv("ACOUSTID_KEY"); v != "" {
		cfg.Fingerprint.AcoustIDKey = v
	}
	if v := os.Getenv("MUSICBRAINZ_UA"); v != "" {
		cfg.Fingerprint.UserAgent = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("GCS_BUCKET"); v != "" {
		cfg.Mirror.Bucket = v
	}
	if v := os.Getenv("GCS_CREDENTIALS_FILE"); v != "" {
		cfg.Mirror.CredentialsFile = v
	}
}
