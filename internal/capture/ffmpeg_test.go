package capture

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hirelens/internal/logging"
	"hirelens/internal/services"
)

func TestVideoArgs(t *testing.T) {
	args := strings.Join(videoArgs("/dev/video0", 320, 240), " ")
	for _, want := range []string{"-f v4l2", "-video_size 320x240", "-i /dev/video0", "scale=320:240", "-pix_fmt rgb24", "-f rawvideo -"} {
		if !strings.Contains(args, want) {
			t.Fatalf("video args %q missing %q", args, want)
		}
	}
}

func TestAudioArgs(t *testing.T) {
	args := strings.Join(audioArgs("pulse", "default", 16000), " ")
	for _, want := range []string{"-f pulse", "-i default", "-ac 1", "-ar 16000", "-f s16le -"} {
		if !strings.Contains(args, want) {
			t.Fatalf("audio args %q missing %q", args, want)
		}
	}
}

func TestReadFrames(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
	var frames [][]byte
	err := readFrames(bytes.NewReader(data), 6, func(frame []byte) {
		frames = append(frames, append([]byte(nil), frame...))
	})
	if err == nil {
		t.Fatal("expected an error at end of stream")
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 complete frames, got %d", len(frames))
	}
	if frames[1][0] != 7 {
		t.Fatalf("unexpected second frame %v", frames[1])
	}

	if err := readFrames(bytes.NewReader(data), 0, func([]byte) {}); err == nil {
		t.Fatal("expected error for zero frame size")
	}
}

func TestRGBImage(t *testing.T) {
	img := rgbImage([]byte{10, 20, 30, 40, 50, 60}, 2, 1)
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 1 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	px := img.RGBAAt(1, 0)
	if px.R != 40 || px.G != 50 || px.B != 60 || px.A != 0xff {
		t.Fatalf("unexpected pixel %+v", px)
	}
}

// stubFFmpeg writes a shell script that prints two 2x2 rgb24 frames and then
// blocks until killed.
func stubFFmpeg(t *testing.T) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nhead -c 24 /dev/zero\nexec sleep 30\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestFFmpegVideoServesLatestFrame(t *testing.T) {
	binary := stubFFmpeg(t)
	v, err := startFFmpegVideo(binary, "/dev/video0", 2, 2, logging.NewNop())
	if err != nil {
		t.Fatalf("startFFmpegVideo: %v", err)
	}
	defer v.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		img, err := v.Snapshot()
		if err == nil {
			if img.Bounds().Dx() != 2 {
				t.Fatalf("unexpected frame bounds %v", img.Bounds())
			}
			break
		}
		if !errors.Is(err, ErrNoFrame) {
			t.Fatalf("unexpected snapshot error: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for first frame")
		}
		time.Sleep(10 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		_ = v.Close()
		_ = v.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not stop the ffmpeg process")
	}
}

func TestFFmpegVideoReportsExitedProcess(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	v, err := startFFmpegVideo(path, "/dev/video0", 2, 2, logging.NewNop())
	if err != nil {
		t.Fatalf("startFFmpegVideo: %v", err)
	}
	defer v.Close()

	select {
	case <-v.done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not finish after process exit")
	}
	if _, err := v.Snapshot(); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable after exit, got %v", err)
	}
}

func TestFFmpegAudioStreamsAndCloses(t *testing.T) {
	binary := stubFFmpeg(t)
	a := &ffmpegAudio{binary: binary, format: "pulse", device: "default", rate: 16000, logger: logging.NewNop(), closed: make(chan struct{})}

	stream, err := a.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 24)
	if _, err := stream.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := a.Open(context.Background()); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable after close, got %v", err)
	}
	if a.Device() != "pulse:default" {
		t.Fatalf("unexpected device %q", a.Device())
	}
}
