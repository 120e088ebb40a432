package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"hirelens/internal/deps"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Scoring service", statusError, "unreachable", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Scoring service:", "[ERROR] unreachable")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Camera", statusOK, "Ready", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Command: "ffmpeg", Available: true, Detail: "ffmpeg version 7.1"},
		{Name: "v4l2-ctl", Command: "v4l2-ctl", Optional: true, Detail: "binary \"v4l2-ctl\" not found"},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[OK] Ready (ffmpeg version 7.1)") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN]") {
		t.Fatalf("optional dependency should warn, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "Missing dependencies") {
		t.Fatalf("expected missing summary, got %q", lines[2])
	}

	empty := dependencyLines(nil, false)
	if len(empty) != 1 || !strings.Contains(empty[0], "No external binaries required") {
		t.Fatalf("unexpected empty summary %q", empty)
	}
}

func TestCountdownKindThresholds(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      statusKind
	}{
		{90 * time.Second, statusOK},
		{31 * time.Second, statusOK},
		{30 * time.Second, statusWarn},
		{11 * time.Second, statusWarn},
		{10 * time.Second, statusError},
		{0, statusError},
	}
	for _, tt := range tests {
		if got := countdownKind(tt.remaining); got != tt.want {
			t.Fatalf("countdownKind(%s) = %d, want %d", tt.remaining, got, tt.want)
		}
	}
}

func TestRenderCountdown(t *testing.T) {
	got := renderCountdown(45*time.Second, 90*time.Second, false)
	want := "● REC 00:45 [" + strings.Repeat("#", 15) + strings.Repeat("-", 15) + "]"
	if got != want {
		t.Fatalf("renderCountdown = %q, want %q", got, want)
	}
	if got := renderCountdown(-time.Second, 90*time.Second, false); !strings.HasPrefix(got, "● REC 00:00 [---") {
		t.Fatalf("negative remaining should clamp, got %q", got)
	}
	if got := renderCountdown(5*time.Second, 90*time.Second, true); !strings.HasPrefix(got, ansiRed) {
		t.Fatalf("final seconds should be red, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
