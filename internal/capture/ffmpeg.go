package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"hirelens/internal/config"
	"hirelens/internal/logging"
	"hirelens/internal/services"
)

const (
	defaultWidth      = 640
	defaultHeight     = 480
	defaultSampleRate = 16000
)

// FFmpegProvider captures from v4l2 and ALSA/PulseAudio devices through
// ffmpeg subprocesses.
type FFmpegProvider struct {
	binary      string
	videoDevice string
	audioDevice string
	audioFormat string
	lockDir     string
	logger      *slog.Logger
}

// NewFFmpegProvider configures the ffmpeg backend from cfg.
func NewFFmpegProvider(cfg *config.Config, logger *slog.Logger) *FFmpegProvider {
	return &FFmpegProvider{
		binary:      cfg.FFmpegBinary(),
		videoDevice: strings.TrimSpace(cfg.Capture.VideoDevice),
		audioDevice: strings.TrimSpace(cfg.Capture.AudioDevice),
		audioFormat: strings.TrimSpace(cfg.Capture.AudioFormat),
		lockDir:     cfg.Paths.LockDir,
		logger:      logger,
	}
}

// Acquire opens the requested tracks. Partially opened tracks are released
// before an error is returned.
func (p *FFmpegProvider) Acquire(ctx context.Context, c Constraints) (*Handle, error) {
	if !c.Video && !c.Audio {
		return nil, services.Wrap(services.ErrConfiguration, "capture", "acquire", "no track requested", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := &Handle{}
	if c.Video {
		if err := p.acquireVideo(h, c); err != nil {
			_ = Release(h)
			return nil, err
		}
	}
	if c.Audio {
		if err := p.acquireAudio(h, c); err != nil {
			_ = Release(h)
			return nil, err
		}
	}
	return h, nil
}

func (p *FFmpegProvider) acquireVideo(h *Handle, c Constraints) error {
	device := p.videoDevice
	if err := CheckAccess(device); err != nil {
		return err
	}
	lock, err := lockDevice(p.lockDir, device)
	if err != nil {
		return err
	}
	width, height := orDefault(c.Width, defaultWidth), orDefault(c.Height, defaultHeight)
	track, err := startFFmpegVideo(p.binary, device, width, height, p.logger)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return err
	}
	h.Video = track
	h.hold(device, lock)
	p.logger.Info("camera acquired",
		logging.String(logging.FieldEventType, "camera_acquired"),
		logging.String("device", device),
		logging.String("size", fmt.Sprintf("%dx%d", width, height)),
	)
	return nil
}

func (p *FFmpegProvider) acquireAudio(h *Handle, c Constraints) error {
	device := p.audioDevice
	if err := CheckAccess(device); err != nil {
		return err
	}
	identity := p.audioFormat + ":" + device
	lock, err := lockDevice(p.lockDir, identity)
	if err != nil {
		return err
	}
	h.Audio = &ffmpegAudio{
		binary: p.binary,
		format: p.audioFormat,
		device: device,
		rate:   orDefault(c.SampleRate, defaultSampleRate),
		logger: p.logger,
		closed: make(chan struct{}),
	}
	h.hold(identity, lock)
	p.logger.Info("microphone acquired",
		logging.String(logging.FieldEventType, "microphone_acquired"),
		logging.String("device", identity),
	)
	return nil
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func videoArgs(device string, width, height int) []string {
	size := fmt.Sprintf("%dx%d", width, height)
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "v4l2", "-video_size", size, "-i", device,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo", "-pix_fmt", "rgb24", "-",
	}
}

func audioArgs(format, device string, rate int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", format, "-i", device,
		"-ac", "1", "-ar", strconv.Itoa(rate),
		"-f", "s16le", "-",
	}
}

type ffmpegVideo struct {
	device string
	width  int
	height int
	cancel context.CancelFunc
	done   chan struct{}
	stderr *bytes.Buffer

	mu      sync.Mutex
	latest  []byte
	exitErr error
	once    sync.Once
}

func startFFmpegVideo(binary, device string, width, height int, logger *slog.Logger) (*ffmpegVideo, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, binary, videoArgs(device, width, height)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "video", "open pipe", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "video", "start ffmpeg", err)
	}
	v := &ffmpegVideo{
		device: device,
		width:  width,
		height: height,
		cancel: cancel,
		done:   make(chan struct{}),
		stderr: stderr,
	}
	go func() {
		defer close(v.done)
		readErr := readFrames(stdout, width*height*3, v.store)
		waitErr := cmd.Wait()
		if ctx.Err() != nil {
			return
		}
		err := readErr
		if err == nil || errors.Is(err, io.EOF) {
			err = waitErr
		}
		if err == nil {
			err = io.EOF
		}
		v.mu.Lock()
		v.exitErr = err
		v.mu.Unlock()
		logging.WarnWithContext(logger, "camera stream ended", "camera_stream_ended",
			logging.String("device", device),
			logging.Error(err),
			logging.String("stderr", strings.TrimSpace(v.stderr.String())),
			logging.String(logging.FieldErrorHint, "check the camera connection and that no other program is using it"),
			logging.String(logging.FieldImpact, "frame uploads stop for this session"),
		)
	}()
	return v, nil
}

func (v *ffmpegVideo) store(frame []byte) {
	v.mu.Lock()
	if v.latest == nil {
		v.latest = make([]byte, len(frame))
	}
	copy(v.latest, frame)
	v.mu.Unlock()
}

func (v *ffmpegVideo) Device() string { return v.device }

func (v *ffmpegVideo) Snapshot() (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.latest == nil {
		if v.exitErr != nil {
			return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "snapshot", v.device, v.exitErr)
		}
		return nil, ErrNoFrame
	}
	if v.exitErr != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "snapshot", v.device, v.exitErr)
	}
	return rgbImage(v.latest, v.width, v.height), nil
}

func (v *ffmpegVideo) Close() error {
	v.once.Do(func() {
		v.cancel()
		<-v.done
	})
	return nil
}

// readFrames reads fixed-size frames from r until it fails, handing each to
// store. The buffer passed to store is reused.
func readFrames(r io.Reader, frameSize int, store func([]byte)) error {
	if frameSize <= 0 {
		return fmt.Errorf("invalid frame size %d", frameSize)
	}
	buf := make([]byte, frameSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return io.EOF
			}
			return err
		}
		store(buf)
	}
}

// rgbImage converts packed rgb24 pixels to an RGBA image.
func rgbImage(pix []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i+2 < len(pix) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = pix[i]
		img.Pix[j+1] = pix[i+1]
		img.Pix[j+2] = pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

type ffmpegAudio struct {
	binary string
	format string
	device string
	rate   int
	logger *slog.Logger

	mu      sync.Mutex
	streams map[*pcmStream]struct{}
	closed  chan struct{}
	once    sync.Once
}

func (a *ffmpegAudio) Device() string  { return a.format + ":" + a.device }
func (a *ffmpegAudio) SampleRate() int { return a.rate }

func (a *ffmpegAudio) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-a.closed:
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "audio", "track released", nil)
	default:
	}
	streamCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(streamCtx, a.binary, audioArgs(a.format, a.device, a.rate)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "audio", "open pipe", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "audio", "start ffmpeg", err)
	}
	stream := &pcmStream{ReadCloser: stdout, cmd: cmd, cancel: cancel, owner: a}
	a.mu.Lock()
	if a.streams == nil {
		a.streams = make(map[*pcmStream]struct{})
	}
	a.streams[stream] = struct{}{}
	a.mu.Unlock()
	a.logger.Debug("microphone stream opened", logging.String("device", a.Device()))
	return stream, nil
}

func (a *ffmpegAudio) forget(s *pcmStream) {
	a.mu.Lock()
	delete(a.streams, s)
	a.mu.Unlock()
}

func (a *ffmpegAudio) Close() error {
	a.once.Do(func() {
		close(a.closed)
		a.mu.Lock()
		streams := make([]*pcmStream, 0, len(a.streams))
		for s := range a.streams {
			streams = append(streams, s)
		}
		a.mu.Unlock()
		for _, s := range streams {
			_ = s.Close()
		}
	})
	return nil
}

type pcmStream struct {
	io.ReadCloser
	cmd    *exec.Cmd
	cancel context.CancelFunc
	owner  *ffmpegAudio
	once   sync.Once
}

func (s *pcmStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		_ = s.cmd.Wait()
		s.owner.forget(s)
	})
	return nil
}
