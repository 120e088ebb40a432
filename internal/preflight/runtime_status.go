package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hirelens/internal/capture"
	"hirelens/internal/config"
	"hirelens/internal/services"
)

// CheckCaptureFromConfig evaluates the configured camera and microphone
// without opening them.
func CheckCaptureFromConfig(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	if cfg.Capture.Backend == "file" {
		return []Result{
			CheckFrameFixtures(cfg.Capture.FrameDir),
			CheckAudioFixture(cfg.Capture.AudioFile),
		}
	}
	return []Result{
		CheckDevice("Camera", cfg.Capture.VideoDevice),
		CheckDevice("Microphone", cfg.Capture.AudioDevice),
	}
}

// CheckDevice reports whether device can be opened by the current user.
func CheckDevice(name, device string) Result {
	device = strings.TrimSpace(device)
	if err := capture.CheckAccess(device); err != nil {
		return Result{Name: name, Detail: describeAccessError(device, err)}
	}
	if !filepath.IsAbs(device) {
		return Result{Name: name, Passed: true, Detail: device + " (resolved by sound server)"}
	}
	return Result{Name: name, Passed: true, Detail: device + " (read/write ok)"}
}

func describeAccessError(device string, err error) string {
	switch {
	case device == "":
		return "no device configured"
	case errors.Is(err, services.ErrPermissionDenied):
		return fmt.Sprintf("%s (permission denied; add your user to the video/audio group)", device)
	default:
		return fmt.Sprintf("%s (not available)", device)
	}
}

// CheckFrameFixtures verifies the file backend has frames to replay.
func CheckFrameFixtures(dir string) Result {
	const name = "Camera fixtures"
	if strings.TrimSpace(dir) == "" {
		return Result{Name: name, Detail: "frame_dir not configured"}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dir, err)}
	}
	count := 0
	for _, entry := range entries {
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			count++
		}
	}
	if count == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no .jpg or .png frames)", dir)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d frames)", dir, count)}
}

// CheckAudioFixture verifies the file backend's answer recording exists.
func CheckAudioFixture(path string) Result {
	const name = "Microphone fixture"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "audio_file not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d bytes)", path, info.Size())}
}
