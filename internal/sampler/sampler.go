// Package sampler turns a live camera track into a fixed-cadence stream of
// JPEG data URLs.
package sampler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hirelens/internal/capture"
	"hirelens/internal/logging"
)

// DataURLPrefix tags every frame handed to the scoring service.
const DataURLPrefix = "data:image/jpeg;base64,"

const (
	DefaultInterval = 100 * time.Millisecond
	DefaultQuality  = 80
)

// ErrInvalidFrame marks an encoded frame that failed validation.
var ErrInvalidFrame = errors.New("invalid frame")

// Source yields the current camera image.
type Source interface {
	Snapshot() (image.Image, error)
}

// Frame is one encoded still ready for upload.
type Frame struct {
	Token      string
	Sequence   uint64
	DataURL    string
	CapturedAt time.Time
}

// DeliverFunc uploads a frame. Errors are logged and never retried.
type DeliverFunc func(ctx context.Context, frame Frame) error

// Stats counts what happened to captured frames.
type Stats struct {
	Captured  uint64
	Delivered uint64
	Dropped   uint64
	Invalid   uint64
	Failed    uint64
}

// Options configures a Sampler.
type Options struct {
	Token    string
	Interval time.Duration
	Quality  int
	Logger   *slog.Logger
}

// Sampler captures, encodes and delivers frames until stopped.
type Sampler struct {
	source   Source
	deliver  DeliverFunc
	token    string
	interval time.Duration
	quality  int
	logger   *slog.Logger

	box      mailbox
	sequence uint64

	captured  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	invalid   atomic.Uint64
	failed    atomic.Uint64

	mu       sync.Mutex
	started  bool
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	warned   bool
}

// New builds a sampler over source. Zero option values fall back to 10 Hz
// and JPEG quality 80.
func New(source Source, deliver DeliverFunc, opts Options) *Sampler {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Sampler{
		source:   source,
		deliver:  deliver,
		token:    opts.Token,
		interval: interval,
		quality:  quality,
		logger:   logging.NewComponentLogger(opts.Logger, "frame-sampler"),
		box:      mailbox{notify: make(chan struct{}, 1)},
		stop:     make(chan struct{}),
	}
}

// Start launches the tick and delivery loops. Calling Start twice has no
// effect.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.wg.Add(2)
	go s.tickLoop(ctx)
	go s.deliverLoop(ctx)
	s.logger.Debug("frame sampler started",
		logging.Duration("interval", s.interval),
		logging.Int("quality", s.quality),
	)
}

// Stop ends future ticks and discards any frame still waiting in the
// mailbox. It does not wait for an in-flight delivery.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.box.clear()
	})
}

// Wait blocks until both loops have exited.
func (s *Sampler) Wait() {
	s.wg.Wait()
}

// Stats returns a snapshot of the frame counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Captured:  s.captured.Load(),
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Invalid:   s.invalid.Load(),
		Failed:    s.failed.Load(),
	}
}

func (s *Sampler) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Sampler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-ticker.C:
			if s.stopped() {
				return
			}
			s.tick(now)
		}
	}
}

func (s *Sampler) tick(now time.Time) {
	img, err := s.source.Snapshot()
	if err != nil {
		s.invalid.Add(1)
		s.logSnapshotError(err)
		return
	}
	dataURL, err := EncodeDataURL(img, s.quality)
	if err == nil {
		err = ValidateDataURL(dataURL)
	}
	if err != nil {
		s.invalid.Add(1)
		s.logger.Debug("dropping invalid frame", logging.Error(err))
		return
	}
	s.sequence++
	s.captured.Add(1)
	frame := Frame{Token: s.token, Sequence: s.sequence, DataURL: dataURL, CapturedAt: now}
	if s.box.put(frame) {
		s.dropped.Add(1)
	}
}

func (s *Sampler) logSnapshotError(err error) {
	if errors.Is(err, capture.ErrNoFrame) {
		s.logger.Debug("camera warming up", logging.Error(err))
		return
	}
	s.mu.Lock()
	first := !s.warned
	s.warned = true
	s.mu.Unlock()
	if first {
		logging.WarnWithContext(s.logger, "camera snapshot failed", "frame_snapshot_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the camera connection"),
			logging.String(logging.FieldImpact, "frames are skipped until the camera recovers"),
		)
		return
	}
	s.logger.Debug("camera snapshot failed", logging.Error(err))
}

func (s *Sampler) deliverLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-s.box.notify:
			frame, ok := s.box.take()
			if !ok || s.stopped() {
				continue
			}
			if s.deliver == nil {
				s.delivered.Add(1)
				continue
			}
			if err := s.deliver(ctx, frame); err != nil {
				s.failed.Add(1)
				s.logger.Debug("frame delivery failed",
					logging.Uint64("sequence", frame.Sequence),
					logging.Error(err),
				)
				continue
			}
			s.delivered.Add(1)
		}
	}
}

// EncodeDataURL encodes img as a JPEG data URL.
func EncodeDataURL(img image.Image, quality int) (string, error) {
	if img == nil {
		return "", fmt.Errorf("%w: nil image", ErrInvalidFrame)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ValidateDataURL checks that a frame is non-empty and tagged as a base64
// JPEG.
func ValidateDataURL(dataURL string) error {
	if dataURL == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFrame)
	}
	if !strings.HasPrefix(dataURL, DataURLPrefix) {
		return fmt.Errorf("%w: missing %q prefix", ErrInvalidFrame, DataURLPrefix)
	}
	if len(dataURL) == len(DataURLPrefix) {
		return fmt.Errorf("%w: empty payload", ErrInvalidFrame)
	}
	return nil
}
