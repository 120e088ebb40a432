package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"hirelens/internal/services"
	"hirelens/internal/testsupport"
)

func TestFileProviderAcquireBothTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCaptureFixtures(2))
	p := NewFileProvider(cfg.Capture.FrameDir, cfg.Capture.AudioFile, cfg.Paths.LockDir, nil)

	h, err := p.Acquire(context.Background(), Constraints{Video: true, Audio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer Release(h)

	if got := h.ActiveTracks(); got != 2 {
		t.Fatalf("expected 2 active tracks, got %d", got)
	}
	if len(h.Devices()) != 2 {
		t.Fatalf("expected 2 held devices, got %v", h.Devices())
	}

	first, err := h.Video.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	second, _ := h.Video.Snapshot()
	third, _ := h.Video.Snapshot()
	r1, _, _, _ := first.At(0, 0).RGBA()
	r2, _, _, _ := second.At(0, 0).RGBA()
	r3, _, _, _ := third.At(0, 0).RGBA()
	if r1 == r2 {
		t.Fatal("expected consecutive snapshots to cycle through frames")
	}
	if r1 != r3 {
		t.Fatal("expected snapshots to wrap around to the first frame")
	}

	if h.Audio.SampleRate() != cfg.Capture.SampleRate {
		t.Fatalf("unexpected sample rate %d", h.Audio.SampleRate())
	}
	stream, err := h.Audio.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pcm, err := io.ReadAll(stream)
	_ = stream.Close()
	if err != nil {
		t.Fatalf("read pcm: %v", err)
	}
	if len(pcm) != cfg.Capture.SampleRate*2 {
		t.Fatalf("expected %d pcm bytes, got %d", cfg.Capture.SampleRate*2, len(pcm))
	}
}

func TestFileProviderReleaseStopsTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCaptureFixtures(1))
	p := NewFileProvider(cfg.Capture.FrameDir, cfg.Capture.AudioFile, cfg.Paths.LockDir, nil)

	h, err := p.Acquire(context.Background(), Constraints{Video: true, Audio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := Release(h); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := h.Video.Snapshot(); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected released video to fail, got %v", err)
	}
	if _, err := h.Audio.Open(context.Background()); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected released audio to fail, got %v", err)
	}

	again, err := p.Acquire(context.Background(), Constraints{Video: true})
	if err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
	_ = Release(again)
}

func TestFileProviderExclusiveAccess(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCaptureFixtures(1))
	p := NewFileProvider(cfg.Capture.FrameDir, cfg.Capture.AudioFile, cfg.Paths.LockDir, nil)

	h, err := p.Acquire(context.Background(), Constraints{Video: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer Release(h)

	if _, err := p.Acquire(context.Background(), Constraints{Video: true}); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected busy camera to be unavailable, got %v", err)
	}
}

func TestFileProviderMissingInputs(t *testing.T) {
	dir := t.TempDir()
	p := NewFileProvider(filepath.Join(dir, "missing"), filepath.Join(dir, "missing.wav"), filepath.Join(dir, "locks"), nil)

	if _, err := p.Acquire(context.Background(), Constraints{Video: true}); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for missing frame dir, got %v", err)
	}
	if _, err := p.Acquire(context.Background(), Constraints{Audio: true}); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for missing wav, got %v", err)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	p = NewFileProvider(empty, "", "", nil)
	if _, err := p.Acquire(context.Background(), Constraints{Video: true}); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable for empty frame dir, got %v", err)
	}
	if _, err := p.Acquire(context.Background(), Constraints{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without tracks, got %v", err)
	}
}

func TestDecodeWAV(t *testing.T) {
	rate, pcm, err := decodeWAV(testsupport.WAV(8000, 10))
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if rate != 8000 || len(pcm) != 20 {
		t.Fatalf("unexpected rate=%d len=%d", rate, len(pcm))
	}

	if _, _, err := decodeWAV([]byte("not a wav file at all")); err == nil {
		t.Fatal("expected error for non-wav input")
	}
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	wav := testsupport.WAV(8000, 4)
	// Rewrite the header as a 2-channel file holding 2 stereo frames.
	binary.LittleEndian.PutUint16(wav[22:], 2)
	binary.LittleEndian.PutUint32(wav[28:], 8000*4)
	binary.LittleEndian.PutUint16(wav[32:], 4)

	_, pcm, err := decodeWAV(wav)
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if len(pcm) != 4 {
		t.Fatalf("expected 2 mono samples (4 bytes), got %d bytes", len(pcm))
	}
	if pcm[0] != wav[44] || pcm[1] != wav[45] || pcm[2] != wav[48] || pcm[3] != wav[49] {
		t.Fatalf("expected left channel samples, got %v", pcm)
	}
}
