package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeService()
	if err := c.normalizeAuth(); err != nil {
		return err
	}
	if err := c.normalizeCapture(); err != nil {
		return err
	}
	c.normalizeInterview()
	c.normalizeRetry()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir()
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockDir) == "" {
		c.Paths.LockDir = filepath.Join(c.Paths.DataDir, "locks")
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeService() {
	if value, ok := os.LookupEnv("HIRELENS_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Service.BaseURL = value
	}
	c.Service.BaseURL = strings.TrimRight(strings.TrimSpace(c.Service.BaseURL), "/")
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = defaultBaseURL
	}
	if c.Service.TimeoutSeconds <= 0 {
		c.Service.TimeoutSeconds = defaultServiceTimeoutSeconds
	}
}

func (c *Config) normalizeAuth() error {
	c.Auth.Provider = strings.ToLower(strings.TrimSpace(c.Auth.Provider))
	if c.Auth.Provider == "" {
		c.Auth.Provider = defaultAuthProvider
	}
	if c.Auth.Token == "" {
		if value, ok := os.LookupEnv("HIRELENS_TOKEN"); ok {
			c.Auth.Token = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Auth.TokenPath) == "" {
		c.Auth.TokenPath = filepath.Join(c.Paths.DataDir, defaultTokenFile)
	}
	var err error
	if c.Auth.TokenPath, err = expandPath(c.Auth.TokenPath); err != nil {
		return fmt.Errorf("auth.token_path: %w", err)
	}
	c.Auth.CallbackBind = strings.TrimSpace(c.Auth.CallbackBind)
	if c.Auth.CallbackBind == "" {
		c.Auth.CallbackBind = defaultCallbackBind
	}
	return nil
}

func (c *Config) normalizeCapture() error {
	c.Capture.Backend = strings.ToLower(strings.TrimSpace(c.Capture.Backend))
	if c.Capture.Backend == "" {
		c.Capture.Backend = defaultCaptureBackend
	}
	c.Capture.AudioFormat = strings.ToLower(strings.TrimSpace(c.Capture.AudioFormat))
	if c.Capture.AudioFormat == "" {
		c.Capture.AudioFormat = defaultAudioFormat
	}
	c.Capture.VideoDevice = strings.TrimSpace(c.Capture.VideoDevice)
	c.Capture.AudioDevice = strings.TrimSpace(c.Capture.AudioDevice)
	if c.Capture.Width <= 0 {
		c.Capture.Width = defaultCaptureWidth
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = defaultCaptureHeight
	}
	if c.Capture.SampleRate <= 0 {
		c.Capture.SampleRate = defaultSampleRate
	}
	var err error
	if c.Capture.FrameDir != "" {
		if c.Capture.FrameDir, err = expandPath(c.Capture.FrameDir); err != nil {
			return fmt.Errorf("capture.frame_dir: %w", err)
		}
	}
	if c.Capture.AudioFile != "" {
		if c.Capture.AudioFile, err = expandPath(c.Capture.AudioFile); err != nil {
			return fmt.Errorf("capture.audio_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeInterview() {
	if c.Interview.QuestionCount <= 0 {
		c.Interview.QuestionCount = defaultQuestionCount
	}
	if c.Interview.MaxAttempts <= 0 {
		c.Interview.MaxAttempts = defaultMaxAttempts
	}
	if c.Interview.AttemptSeconds <= 0 {
		c.Interview.AttemptSeconds = defaultAttemptSeconds
	}
	if c.Interview.FrameIntervalMS <= 0 {
		c.Interview.FrameIntervalMS = defaultFrameIntervalMS
	}
	if c.Interview.JPEGQuality <= 0 {
		c.Interview.JPEGQuality = defaultJPEGQuality
	}
	if c.Interview.AudioChunkSeconds <= 0 {
		c.Interview.AudioChunkSeconds = defaultAudioChunkSeconds
	}
}

func (c *Config) normalizeRetry() {
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = defaultRetryAttempts
	}
	if c.Retry.BaseDelayMS <= 0 {
		c.Retry.BaseDelayMS = defaultRetryBaseDelayMS
	}
	if c.Retry.MaxDelayMS <= 0 {
		c.Retry.MaxDelayMS = defaultRetryMaxDelayMS
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
