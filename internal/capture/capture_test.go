package capture

import (
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"hirelens/internal/services"
	"hirelens/internal/testsupport"
)

type fakeVideo struct{ closes int }

func (f *fakeVideo) Device() string { return "/dev/video9" }
func (f *fakeVideo) Snapshot() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}
func (f *fakeVideo) Close() error { f.closes++; return nil }

type fakeAudio struct{ closes int }

func (f *fakeAudio) Device() string  { return "pulse:default" }
func (f *fakeAudio) SampleRate() int { return 16000 }
func (f *fakeAudio) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}
func (f *fakeAudio) Close() error { f.closes++; return nil }

func TestReleaseIsIdempotent(t *testing.T) {
	if err := Release(nil); err != nil {
		t.Fatalf("Release(nil) = %v", err)
	}

	video, audio := &fakeVideo{}, &fakeAudio{}
	h := &Handle{Video: video, Audio: audio}
	if got := h.ActiveTracks(); got != 2 {
		t.Fatalf("expected 2 active tracks, got %d", got)
	}
	for i := 0; i < 3; i++ {
		if err := Release(h); err != nil {
			t.Fatalf("Release #%d: %v", i+1, err)
		}
	}
	if video.closes != 1 || audio.closes != 1 {
		t.Fatalf("tracks closed %d/%d times, want 1/1", video.closes, audio.closes)
	}
	if got := h.ActiveTracks(); got != 0 {
		t.Fatalf("expected 0 active tracks after release, got %d", got)
	}
	if !h.Released() {
		t.Fatal("expected handle to report released")
	}
}

func TestReleaseUnlocksDevices(t *testing.T) {
	dir := t.TempDir()
	lock, err := lockDevice(dir, "/dev/video0")
	if err != nil {
		t.Fatalf("lockDevice: %v", err)
	}
	h := &Handle{Video: &fakeVideo{}}
	h.hold("/dev/video0", lock)

	if _, err := lockDevice(dir, "/dev/video0"); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected second lock to fail with ErrDeviceUnavailable, got %v", err)
	}

	if err := Release(h); err != nil {
		t.Fatalf("Release: %v", err)
	}
	other := flock.New(LockPath(dir, "/dev/video0"))
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("expected lock to be free after release, ok=%v err=%v", ok, err)
	}
	_ = other.Unlock()
}

func TestLockPathSanitizesDevice(t *testing.T) {
	got := LockPath("/tmp/locks", "/dev/video0")
	if got != "/tmp/locks/dev_video0.lock" {
		t.Fatalf("unexpected lock path %q", got)
	}
}

func TestClassifyAccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"eacces", unix.EACCES, services.ErrPermissionDenied},
		{"eperm", unix.EPERM, services.ErrPermissionDenied},
		{"enoent", unix.ENOENT, services.ErrDeviceUnavailable},
		{"enodev", unix.ENODEV, services.ErrDeviceUnavailable},
		{"other", unix.EIO, services.ErrDeviceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyAccess("/dev/video0", tc.err)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected cause %v to be preserved, got %v", tc.err, err)
			}
		})
	}
	if err := classifyAccess("/dev/video0", nil); err != nil {
		t.Fatalf("expected nil for nil error, got %v", err)
	}
}

func TestCheckAccess(t *testing.T) {
	if err := CheckAccess("default"); err != nil {
		t.Fatalf("non-path devices should pass, got %v", err)
	}
	if err := CheckAccess(""); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for empty device, got %v", err)
	}
	missing := t.TempDir() + "/video42"
	if err := CheckAccess(missing); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for missing node, got %v", err)
	}
}

func TestNewProviderSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	p, err := NewProvider(cfg, nil)
	if err != nil {
		t.Fatalf("NewProvider(file): %v", err)
	}
	if _, ok := p.(*FileProvider); !ok {
		t.Fatalf("expected *FileProvider, got %T", p)
	}

	cfg.Capture.Backend = "ffmpeg"
	p, err = NewProvider(cfg, nil)
	if err != nil {
		t.Fatalf("NewProvider(ffmpeg): %v", err)
	}
	if _, ok := p.(*FFmpegProvider); !ok {
		t.Fatalf("expected *FFmpegProvider, got %T", p)
	}

	cfg.Capture.Backend = "gstreamer"
	if _, err := NewProvider(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unknown backend, got %v", err)
	}
	if _, err := NewProvider(nil, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for nil config, got %v", err)
	}
}

func TestConstraintsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	c := ConstraintsFromConfig(cfg, true, false)
	if !c.Video || c.Audio {
		t.Fatalf("unexpected track selection %+v", c)
	}
	if c.Width != cfg.Capture.Width || c.Height != cfg.Capture.Height || c.SampleRate != cfg.Capture.SampleRate {
		t.Fatalf("constraints %+v do not mirror config", c)
	}
}
