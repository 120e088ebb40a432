package testsupport

import (
	"path/filepath"
	"testing"

	"hirelens/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Capture defaults to the file backend so no hardware is touched.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Service.BaseURL = "http://127.0.0.1:0"
	cfgVal.Auth.TokenPath = filepath.Join(base, "token.json")
	cfgVal.Auth.CallbackBind = "127.0.0.1:0"
	cfgVal.Capture.Backend = "file"
	cfgVal.Capture.FrameDir = filepath.Join(base, "frames")
	cfgVal.Capture.AudioFile = filepath.Join(base, "answer.wav")
	cfgVal.Capture.MonitorDevice = false
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Retry.BaseDelayMS = 1
	cfgVal.Retry.MaxDelayMS = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the scoring client at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.BaseURL = url
	}
}

// WithCaptureFixtures writes frameCount PNG stills and a one-second WAV
// clip into the configured capture paths.
func WithCaptureFixtures(frameCount int) ConfigOption {
	return func(b *configBuilder) {
		WriteFrames(b.t, b.cfg.Capture.FrameDir, frameCount)
		WriteWAV(b.t, b.cfg.Capture.AudioFile, b.cfg.Capture.SampleRate, b.cfg.Capture.SampleRate)
	}
}

// WithAttemptSeconds overrides the countdown length.
func WithAttemptSeconds(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Interview.AttemptSeconds = seconds
	}
}

// WithQuestionCount overrides the number of questions fetched per session.
func WithQuestionCount(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Interview.QuestionCount = count
	}
}

// BaseDir returns the temp directory that backs the config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
