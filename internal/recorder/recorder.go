// Package recorder buffers microphone PCM for one attempt and hands back a
// single WAV clip when the attempt stops.
package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"hirelens/internal/capture"
	"hirelens/internal/logging"
	"hirelens/internal/services"
)

// DefaultChunkInterval is how often buffered PCM is sealed into a chunk.
const DefaultChunkInterval = 3 * time.Second

// ErrAlreadyRecording is returned by Start while a recording is active.
var ErrAlreadyRecording = errors.New("recorder already running")

// Clip is one finished recording.
type Clip struct {
	WAV        []byte
	SampleRate int
	Chunks     int
	Duration   time.Duration
}

// PCMBytes is the length of the audio payload without the header.
func (c Clip) PCMBytes() int {
	if len(c.WAV) <= wavHeaderSize {
		return 0
	}
	return len(c.WAV) - wavHeaderSize
}

// Validate reports ErrEmptyRecording for a clip without audio.
func (c Clip) Validate() error {
	if c.PCMBytes() == 0 {
		return services.Wrap(services.ErrEmptyRecording, "recorder", "validate", "clip has no audio", nil)
	}
	return nil
}

// Options configures a Recorder.
type Options struct {
	ChunkInterval time.Duration
	Logger        *slog.Logger
}

// Recorder captures one clip at a time.
type Recorder struct {
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	recording bool
	stream    io.ReadCloser
	rate      int
	pending   []byte
	chunks    [][]byte
	stopFlush chan struct{}
	readDone  chan struct{}
	flushDone chan struct{}
	readErr   error
}

// New creates an idle recorder. Chunk intervals outside 2-3 s fall back to
// the default.
func New(opts Options) *Recorder {
	interval := opts.ChunkInterval
	if interval < 2*time.Second || interval > 3*time.Second {
		interval = DefaultChunkInterval
	}
	return &Recorder{
		interval: interval,
		logger:   logging.NewComponentLogger(opts.Logger, "audio-recorder"),
	}
}

// Recording reports whether Start has been called without a matching Stop.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start opens a stream on track and begins buffering.
func (r *Recorder) Start(ctx context.Context, track capture.AudioTrack) error {
	if track == nil {
		return services.Wrap(services.ErrDeviceUnavailable, "recorder", "start", "no microphone", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrAlreadyRecording
	}
	stream, err := track.Open(ctx)
	if err != nil {
		return err
	}
	r.recording = true
	r.stream = stream
	r.rate = track.SampleRate()
	r.pending = nil
	r.chunks = nil
	r.readErr = nil
	r.stopFlush = make(chan struct{})
	r.readDone = make(chan struct{})
	r.flushDone = make(chan struct{})
	go r.readLoop(stream, r.readDone)
	go r.flushLoop(r.stopFlush, r.flushDone)
	r.logger.Debug("recording started",
		logging.String("device", track.Device()),
		logging.Int("sample_rate", r.rate),
		logging.Duration("chunk_interval", r.interval),
	)
	return nil
}

func (r *Recorder) readLoop(stream io.Reader, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 32*1024)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			r.mu.Lock()
			r.pending = append(r.pending, buf[:n]...)
			r.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.mu.Lock()
				stopping := !r.recording
				if !stopping {
					r.readErr = err
				}
				r.mu.Unlock()
			}
			return
		}
	}
}

func (r *Recorder) flushLoop(stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.flushLocked()
			r.mu.Unlock()
		}
	}
}

func (r *Recorder) flushLocked() {
	if len(r.pending) == 0 {
		return
	}
	r.chunks = append(r.chunks, r.pending)
	r.pending = nil
}

// Stop flushes the final chunk, closes the stream and returns the clip.
func (r *Recorder) Stop() (Clip, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return Clip{}, services.Wrap(services.ErrNotRecording, "recorder", "stop", "", nil)
	}
	r.recording = false
	stream := r.stream
	r.stream = nil
	close(r.stopFlush)
	readDone, flushDone := r.readDone, r.flushDone
	r.mu.Unlock()

	closeErr := stream.Close()
	<-readDone
	<-flushDone

	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
	total := 0
	for _, chunk := range r.chunks {
		total += len(chunk)
	}
	pcm := make([]byte, 0, total)
	for _, chunk := range r.chunks {
		pcm = append(pcm, chunk...)
	}
	pcm = pcm[:len(pcm)-len(pcm)%bytesPerSample]
	clip := Clip{
		WAV:        EncodeWAV(pcm, r.rate),
		SampleRate: r.rate,
		Chunks:     len(r.chunks),
	}
	if r.rate > 0 {
		clip.Duration = time.Duration(len(pcm)/bytesPerSample) * time.Second / time.Duration(r.rate)
	}
	r.chunks = nil

	r.logger.Debug("recording stopped",
		logging.Int("chunks", clip.Chunks),
		logging.Int("audio_bytes", len(pcm)),
		logging.Duration("duration", clip.Duration),
	)
	if r.readErr != nil {
		logging.WarnWithContext(r.logger, "microphone stream failed during recording", "audio_stream_failed",
			logging.Error(r.readErr),
			logging.String(logging.FieldErrorHint, "check the microphone connection"),
			logging.String(logging.FieldImpact, "the clip may be truncated"),
		)
	}
	if closeErr != nil {
		r.logger.Debug("closing microphone stream failed", logging.Error(closeErr))
	}
	return clip, nil
}
