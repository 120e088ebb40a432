package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateInterview(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateService() error {
	parsed, err := url.Parse(c.Service.BaseURL)
	if err != nil {
		return fmt.Errorf("service.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("service.base_url must use http or https, got %q", c.Service.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("service.base_url must include a host, got %q", c.Service.BaseURL)
	}
	return nil
}

func (c *Config) validateAuth() error {
	switch c.Auth.Provider {
	case "google", "github", "linkedin":
	default:
		return fmt.Errorf("auth.provider must be google, github or linkedin, got %q", c.Auth.Provider)
	}
	return nil
}

func (c *Config) validateCapture() error {
	switch c.Capture.Backend {
	case "ffmpeg":
		switch c.Capture.AudioFormat {
		case "alsa", "pulse":
		default:
			return fmt.Errorf("capture.audio_format must be alsa or pulse, got %q", c.Capture.AudioFormat)
		}
	case "file":
		if c.Capture.FrameDir == "" && c.Capture.AudioFile == "" {
			return errors.New("capture.backend \"file\" requires capture.frame_dir or capture.audio_file")
		}
	default:
		return fmt.Errorf("capture.backend must be ffmpeg or file, got %q", c.Capture.Backend)
	}
	return nil
}

func (c *Config) validateInterview() error {
	if c.Interview.MaxAttempts > 3 {
		return errors.New("interview.max_attempts must be between 1 and 3")
	}
	if c.Interview.JPEGQuality > 100 {
		return errors.New("interview.jpeg_quality must be between 1 and 100")
	}
	if c.Interview.AudioChunkSeconds < 2 || c.Interview.AudioChunkSeconds > 3 {
		return errors.New("interview.audio_chunk_seconds must be 2 or 3")
	}
	if c.Interview.FallbackScore < 0 || c.Interview.FallbackScore > 100 {
		return errors.New("interview.fallback_score must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.New("retry.max_delay_ms must not be smaller than retry.base_delay_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
