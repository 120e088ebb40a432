package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"hirelens/internal/config"
	"hirelens/internal/logging"
	"hirelens/internal/services"
)

// ErrNoFrame is returned by Snapshot before the first frame has arrived.
var ErrNoFrame = errors.New("no frame available yet")

// Constraints selects which tracks Acquire opens.
type Constraints struct {
	Video      bool
	Audio      bool
	Width      int
	Height     int
	SampleRate int
}

// VideoTrack serves the most recent camera frame.
type VideoTrack interface {
	Device() string
	Snapshot() (image.Image, error)
	Close() error
}

// AudioTrack produces 16-bit little-endian mono PCM. Each Open starts a fresh
// stream; closing the stream releases the microphone until the next Open.
type AudioTrack interface {
	Device() string
	SampleRate() int
	Open(ctx context.Context) (io.ReadCloser, error)
	Close() error
}

// Provider acquires capture handles.
type Provider interface {
	Acquire(ctx context.Context, c Constraints) (*Handle, error)
}

// Handle owns the tracks and device locks of one acquisition.
type Handle struct {
	Video VideoTrack
	Audio AudioTrack

	mu       sync.Mutex
	locks    []*flock.Flock
	devices  []string
	released bool
}

// Devices lists the device identifiers held by the handle.
func (h *Handle) Devices() []string {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.devices...)
}

// ActiveTracks reports how many tracks are still live.
func (h *Handle) ActiveTracks() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return 0
	}
	n := 0
	if h.Video != nil {
		n++
	}
	if h.Audio != nil {
		n++
	}
	return n
}

// Released reports whether Release has run.
func (h *Handle) Released() bool {
	if h == nil {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Release stops every track and unlocks the devices. Nil and already
// released handles are no-ops.
func Release(h *Handle) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true

	var errs []error
	if h.Video != nil {
		if err := h.Video.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close video %s: %w", h.Video.Device(), err))
		}
	}
	if h.Audio != nil {
		if err := h.Audio.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audio %s: %w", h.Audio.Device(), err))
		}
	}
	for _, lock := range h.locks {
		if err := lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlock %s: %w", lock.Path(), err))
		}
	}
	h.locks = nil
	return errors.Join(errs...)
}

func (h *Handle) hold(device string, lock *flock.Flock) {
	h.devices = append(h.devices, device)
	if lock != nil {
		h.locks = append(h.locks, lock)
	}
}

// NewProvider builds the provider selected by the capture backend setting.
func NewProvider(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "capture", "provider", "config is required", nil)
	}
	logger = logging.NewComponentLogger(logger, "capture")
	switch strings.ToLower(strings.TrimSpace(cfg.Capture.Backend)) {
	case "", "ffmpeg":
		return NewFFmpegProvider(cfg, logger), nil
	case "file":
		return NewFileProvider(cfg.Capture.FrameDir, cfg.Capture.AudioFile, cfg.Paths.LockDir, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "capture", "provider",
			fmt.Sprintf("unknown backend %q", cfg.Capture.Backend), nil)
	}
}

// ConstraintsFromConfig returns the configured capture size and rate.
func ConstraintsFromConfig(cfg *config.Config, video, audio bool) Constraints {
	c := Constraints{Video: video, Audio: audio}
	if cfg != nil {
		c.Width = cfg.Capture.Width
		c.Height = cfg.Capture.Height
		c.SampleRate = cfg.Capture.SampleRate
	}
	return c
}
