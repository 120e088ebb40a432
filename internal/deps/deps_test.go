package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hirelens/internal/config"
)

const ffmpegDevices = `Devices:
 D. = Demuxing supported
 .E = Muxing supported
 ---
 DE alsa            ALSA audio output
  E fbdev           Linux framebuffer
 D  lavfi           Libavfilter virtual input device
 DE pulse           Pulse audio output
 D  v4l2            Video4Linux2 device grab
`

func writeStub(t *testing.T, devices string) string {
	t.Helper()
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" +
		"case \"$2\" in\n" +
		"-version) echo 'ffmpeg version 7.1 Copyright (c) 2000-2024'; echo 'built with gcc' ;;\n" +
		"-devices) cat <<'OUT'\n" + devices + "OUT\n;;\n" +
		"esac\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return stub
}

func TestCheckReportsVersionWhenInputsPresent(t *testing.T) {
	stub := writeStub(t, ffmpegDevices)
	statuses := Check(context.Background(), []Requirement{{
		Name:    "FFmpeg",
		Command: stub,
		Inputs:  []string{"v4l2", "pulse"},
	}})
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	status := statuses[0]
	if !status.Available {
		t.Fatalf("expected ffmpeg available, got %#v", status)
	}
	if status.Detail != "ffmpeg version 7.1 Copyright (c) 2000-2024" {
		t.Fatalf("unexpected version detail %q", status.Detail)
	}
}

func TestCheckFlagsMissingInputDevices(t *testing.T) {
	stub := writeStub(t, " D  lavfi   Libavfilter\n DE alsa   ALSA\n")
	status := Check(context.Background(), []Requirement{{
		Name:    "FFmpeg",
		Command: stub,
		Inputs:  []string{"v4l2", "alsa"},
	}})[0]
	if status.Available {
		t.Fatal("a build without v4l2 cannot capture video")
	}
	if !strings.Contains(status.Detail, "v4l2") || strings.Contains(status.Detail, "alsa") {
		t.Fatalf("detail should name only the missing input, got %q", status.Detail)
	}
}

func TestCheckOutputOnlyDeviceDoesNotCount(t *testing.T) {
	stub := writeStub(t, ffmpegDevices)
	status := Check(context.Background(), []Requirement{{Name: "FFmpeg", Command: stub, Inputs: []string{"fbdev"}}})[0]
	if status.Available {
		t.Fatalf("fbdev only muxes, got %#v", status)
	}
}

func TestCheckVersionFailure(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	status := Check(context.Background(), []Requirement{{Name: "FFmpeg", Command: stub}})[0]
	if status.Available {
		t.Fatal("expected failing probe to mark ffmpeg unavailable")
	}
	if !strings.HasPrefix(status.Detail, "version probe failed") {
		t.Fatalf("unexpected detail %q", status.Detail)
	}
}

func TestCheckMissingAndUnconfigured(t *testing.T) {
	t.Setenv("PATH", "")
	statuses := Check(context.Background(), []Requirement{
		{Name: "FFmpeg", Command: "ffmpeg"},
		{Name: "Blank", Command: "  ", Optional: true},
	})
	if statuses[0].Available || statuses[0].Detail != `binary "ffmpeg" not found` {
		t.Fatalf("unexpected status %#v", statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail != "command not configured" || !statuses[1].Optional {
		t.Fatalf("unexpected status %#v", statuses[1])
	}
}

func TestCaptureRequirements(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Backend = "ffmpeg"
	cfg.Capture.AudioFormat = "pulse"
	reqs := CaptureRequirements(&cfg)
	if len(reqs) != 1 || reqs[0].Command != "ffmpeg" {
		t.Fatalf("unexpected requirements %#v", reqs)
	}
	if got := strings.Join(reqs[0].Inputs, ","); got != "v4l2,pulse" {
		t.Fatalf("inputs = %q", got)
	}

	cfg.Capture.Backend = "file"
	if reqs := CaptureRequirements(&cfg); len(reqs) != 0 {
		t.Fatalf("file backend should need no binaries, got %#v", reqs)
	}
	if CaptureRequirements(nil) != nil {
		t.Fatal("nil config should yield no requirements")
	}
}
