package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"hirelens/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HIRELENS_BASE_URL", "")
	t.Setenv("HIRELENS_TOKEN", "")
	return tempHome
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "hirelens")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LockDir != filepath.Join(wantData, "locks") {
		t.Fatalf("unexpected lock dir: %q", cfg.Paths.LockDir)
	}
	if cfg.Auth.TokenPath != filepath.Join(wantData, "token.json") {
		t.Fatalf("unexpected token path: %q", cfg.Auth.TokenPath)
	}
	if cfg.Service.BaseURL != "http://localhost:5000" {
		t.Fatalf("unexpected base url: %q", cfg.Service.BaseURL)
	}
	if cfg.Interview.QuestionCount != 3 || cfg.Interview.MaxAttempts != 3 {
		t.Fatalf("unexpected interview defaults: %+v", cfg.Interview)
	}
	if cfg.AttemptDuration() != 90*time.Second {
		t.Fatalf("unexpected attempt duration: %s", cfg.AttemptDuration())
	}
	if cfg.FrameInterval() != 100*time.Millisecond {
		t.Fatalf("unexpected frame interval: %s", cfg.FrameInterval())
	}
	if cfg.HTTPTimeout() != 30*time.Second {
		t.Fatalf("unexpected http timeout: %s", cfg.HTTPTimeout())
	}
	if cfg.Interview.FallbackScore != 50 {
		t.Fatalf("unexpected fallback score: %v", cfg.Interview.FallbackScore)
	}
	if cfg.ArchivePath() != filepath.Join(wantData, "results.db") {
		t.Fatalf("unexpected archive path: %q", cfg.ArchivePath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := isolateEnv(t)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[service]
base_url = "https://api.example.com/"
timeout_seconds = 12

[capture]
backend = "file"
frame_dir = "~/frames"

[interview]
attempt_seconds = 45
audio_chunk_seconds = 2

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Service.BaseURL != "https://api.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Service.BaseURL)
	}
	if cfg.HTTPTimeout() != 12*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.HTTPTimeout())
	}
	if cfg.Capture.FrameDir != filepath.Join(tempHome, "frames") {
		t.Fatalf("unexpected frame dir: %q", cfg.Capture.FrameDir)
	}
	if cfg.AttemptDuration() != 45*time.Second {
		t.Fatalf("unexpected attempt duration: %s", cfg.AttemptDuration())
	}
	if cfg.AudioChunkInterval() != 2*time.Second {
		t.Fatalf("unexpected chunk interval: %s", cfg.AudioChunkInterval())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased log format, got %q", cfg.Logging.Format)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("HIRELENS_BASE_URL", "https://scoring.internal:8443")
	t.Setenv("HIRELENS_TOKEN", "  abc.def.ghi  ")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Service.BaseURL != "https://scoring.internal:8443" {
		t.Fatalf("unexpected base url: %q", cfg.Service.BaseURL)
	}
	if cfg.Auth.Token != "abc.def.ghi" {
		t.Fatalf("unexpected token: %q", cfg.Auth.Token)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"scheme", func(c *config.Config) { c.Service.BaseURL = "ftp://example.com" }, "service.base_url"},
		{"provider", func(c *config.Config) { c.Auth.Provider = "myspace" }, "auth.provider"},
		{"backend", func(c *config.Config) { c.Capture.Backend = "gstreamer" }, "capture.backend"},
		{"file backend sources", func(c *config.Config) { c.Capture.Backend = "file" }, "capture.frame_dir"},
		{"attempts", func(c *config.Config) { c.Interview.MaxAttempts = 5 }, "interview.max_attempts"},
		{"chunk", func(c *config.Config) { c.Interview.AudioChunkSeconds = 10 }, "interview.audio_chunk_seconds"},
		{"fallback", func(c *config.Config) { c.Interview.FallbackScore = 120 }, "interview.fallback_score"},
		{"retry", func(c *config.Config) { c.Retry.MaxDelayMS = 10 }, "retry.max_delay_ms"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleIsParseable(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if decoded.Interview.AttemptSeconds != 90 {
		t.Fatalf("unexpected sample attempt seconds: %d", decoded.Interview.AttemptSeconds)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Capture.Backend != "ffmpeg" {
		t.Fatalf("unexpected backend: %q", cfg.Capture.Backend)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.LockDir = filepath.Join(base, "data", "locks")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.LockDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestExpandPathTilde(t *testing.T) {
	home := isolateEnv(t)
	got, err := config.ExpandPath("~/x/y")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "x", "y") {
		t.Fatalf("unexpected expansion: %q", got)
	}
}
