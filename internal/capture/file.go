package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"hirelens/internal/logging"
	"hirelens/internal/services"
)

// FileProvider replays still images and a WAV recording.
type FileProvider struct {
	frameDir  string
	audioFile string
	lockDir   string
	logger    *slog.Logger
}

// NewFileProvider returns a provider reading frames from frameDir and audio
// from audioFile. Either may be empty when the matching track is never
// requested.
func NewFileProvider(frameDir, audioFile, lockDir string, logger *slog.Logger) *FileProvider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileProvider{
		frameDir:  strings.TrimSpace(frameDir),
		audioFile: strings.TrimSpace(audioFile),
		lockDir:   lockDir,
		logger:    logger,
	}
}

func (p *FileProvider) Acquire(ctx context.Context, c Constraints) (*Handle, error) {
	if !c.Video && !c.Audio {
		return nil, services.Wrap(services.ErrConfiguration, "capture", "acquire", "no track requested", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := &Handle{}
	if c.Video {
		track, err := openFrameDir(p.frameDir)
		if err != nil {
			return nil, err
		}
		lock, err := lockDevice(p.lockDir, p.frameDir)
		if err != nil {
			return nil, err
		}
		h.Video = track
		h.hold(p.frameDir, lock)
		p.logger.Info("camera acquired",
			logging.String(logging.FieldEventType, "camera_acquired"),
			logging.String("device", p.frameDir),
			logging.Int("frames", len(track.paths)),
		)
	}
	if c.Audio {
		track, err := openWAVFile(p.audioFile)
		if err != nil {
			_ = Release(h)
			return nil, err
		}
		lock, err := lockDevice(p.lockDir, p.audioFile)
		if err != nil {
			_ = Release(h)
			return nil, err
		}
		h.Audio = track
		h.hold(p.audioFile, lock)
		p.logger.Info("microphone acquired",
			logging.String(logging.FieldEventType, "microphone_acquired"),
			logging.String("device", p.audioFile),
			logging.Int("sample_rate", track.rate),
		)
	}
	return h, nil
}

func classifyFileError(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return services.Wrap(services.ErrPermissionDenied, "capture", op, path, err)
	default:
		return services.Wrap(services.ErrDeviceUnavailable, "capture", op, path, err)
	}
}

type fileVideo struct {
	dir   string
	paths []string

	mu     sync.Mutex
	next   int
	closed bool
}

func openFrameDir(dir string) (*fileVideo, error) {
	if dir == "" {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "video", "no frame directory configured", nil)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, classifyFileError("video", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "video", dir+" contains no images", nil)
	}
	sort.Strings(paths)
	return &fileVideo{dir: dir, paths: paths}, nil
}

func (v *fileVideo) Device() string { return v.dir }

// Snapshot decodes the next still, cycling through the directory in name
// order.
func (v *fileVideo) Snapshot() (image.Image, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "snapshot", "track released", nil)
	}
	path := v.paths[v.next]
	v.next = (v.next + 1) % len(v.paths)
	v.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, classifyFileError("snapshot", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func (v *fileVideo) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

type fileAudio struct {
	path string
	rate int
	pcm  []byte

	mu     sync.Mutex
	closed bool
}

func openWAVFile(path string) (*fileAudio, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "audio", "no audio file configured", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyFileError("audio", path, err)
	}
	rate, pcm, err := decodeWAV(data)
	if err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "audio", path, err)
	}
	return &fileAudio{path: path, rate: rate, pcm: pcm}, nil
}

func (a *fileAudio) Device() string  { return a.path }
func (a *fileAudio) SampleRate() int { return a.rate }

func (a *fileAudio) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "audio", "track released", nil)
	}
	return io.NopCloser(bytes.NewReader(a.pcm)), nil
}

func (a *fileAudio) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

// decodeWAV extracts 16-bit PCM from a RIFF/WAVE file. Multi-channel input is
// reduced to its first channel.
func decodeWAV(data []byte) (int, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, nil, errors.New("not a RIFF/WAVE file")
	}
	var (
		rate     int
		channels int
		bits     int
		pcm      []byte
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}
		switch id {
		case "fmt ":
			if end-body < 16 {
				return 0, nil, errors.New("short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(data[body:]); format != 1 {
				return 0, nil, fmt.Errorf("unsupported wav format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			rate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
		case "data":
			pcm = data[body:end]
		}
		off = body + size + size%2
	}
	if rate == 0 || channels == 0 {
		return 0, nil, errors.New("missing fmt chunk")
	}
	if bits != 16 {
		return 0, nil, fmt.Errorf("unsupported bit depth %d", bits)
	}
	if pcm == nil {
		return 0, nil, errors.New("missing data chunk")
	}
	if channels > 1 {
		frame := channels * 2
		mono := make([]byte, 0, len(pcm)/channels)
		for i := 0; i+frame <= len(pcm); i += frame {
			mono = append(mono, pcm[i], pcm[i+1])
		}
		pcm = mono
	}
	return rate, pcm, nil
}
