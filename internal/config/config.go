package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"hirelens/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Service contains the scoring backend connection settings.
type Service struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Auth contains login flow settings.
type Auth struct {
	Provider     string `toml:"provider"`
	TokenPath    string `toml:"token_path"`
	CallbackBind string `toml:"callback_bind"`
	Token        string `toml:"token"`
}

// Capture contains camera and microphone settings.
type Capture struct {
	Backend       string `toml:"backend"`
	VideoDevice   string `toml:"video_device"`
	AudioDevice   string `toml:"audio_device"`
	AudioFormat   string `toml:"audio_format"`
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
	SampleRate    int    `toml:"sample_rate"`
	FrameDir      string `toml:"frame_dir"`
	AudioFile     string `toml:"audio_file"`
	MonitorDevice bool   `toml:"monitor_devices"`
}

// Interview contains the session timing and scoring knobs.
type Interview struct {
	QuestionCount     int     `toml:"question_count"`
	MaxAttempts       int     `toml:"max_attempts"`
	AttemptSeconds    int     `toml:"attempt_seconds"`
	FrameIntervalMS   int     `toml:"frame_interval_ms"`
	JPEGQuality       int     `toml:"jpeg_quality"`
	AudioChunkSeconds int     `toml:"audio_chunk_seconds"`
	FallbackScore     float64 `toml:"fallback_score"`
}

// Retry contains the retry policy applied to scoring calls that may be retried.
type Retry struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
}

// Paths contains data and log directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	LockDir string `toml:"lock_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for HireLens.
//
// Configuration sections by subsystem:
//   - Service: scoring backend URL and HTTP timeout
//   - Auth: OAuth provider, token storage and local callback listener
//   - Capture: capture backend, devices and frame geometry
//   - Interview: question count, attempts, countdown and sampling cadence
//   - Retry: retry policy for audio upload and scoring calls
//   - Paths: data, log and device lock directories
//   - Logging: log format and level
type Config struct {
	Service   Service   `toml:"service"`
	Auth      Auth      `toml:"auth"`
	Capture   Capture   `toml:"capture"`
	Interview Interview `toml:"interview"`
	Retry     Retry     `toml:"retry"`
	Paths     Paths     `toml:"paths"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	// .env is optional; values it provides only fill environment gaps.
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hirelens.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log and lock directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.LockDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used by the capture backend.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// ArchivePath returns the SQLite database holding completed interviews.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.Paths.DataDir, "results.db")
}

// HTTPTimeout returns the per-request timeout for scoring calls.
func (c *Config) HTTPTimeout() time.Duration {
	if c.Service.TimeoutSeconds <= 0 {
		return time.Duration(defaultServiceTimeoutSeconds) * time.Second
	}
	return time.Duration(c.Service.TimeoutSeconds) * time.Second
}

// AttemptDuration returns the countdown length for one attempt.
func (c *Config) AttemptDuration() time.Duration {
	return time.Duration(c.Interview.AttemptSeconds) * time.Second
}

// FrameInterval returns the cadence of the frame sampler.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Interview.FrameIntervalMS) * time.Millisecond
}

// AudioChunkInterval returns how often buffered audio is flushed into a chunk.
func (c *Config) AudioChunkInterval() time.Duration {
	return time.Duration(c.Interview.AudioChunkSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "hirelens")
	}
	return "~/.local/share/hirelens"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
