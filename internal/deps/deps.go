package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"hirelens/internal/config"
)

const probeTimeout = 3 * time.Second

// Requirement is an external tool a capture backend drives.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Inputs names the ffmpeg input devices the build must be able to read.
	Inputs []string
}

// Status reports whether a requirement can be used for capture.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CaptureRequirements lists what the configured capture backend needs.
// The file backend replays fixtures and needs nothing.
func CaptureRequirements(cfg *config.Config) []Requirement {
	if cfg == nil || cfg.Capture.Backend == "file" {
		return nil
	}
	audio := strings.TrimSpace(cfg.Capture.AudioFormat)
	if audio == "" {
		audio = "alsa"
	}
	return []Requirement{{
		Name:        "FFmpeg",
		Command:     cfg.FFmpegBinary(),
		Description: fmt.Sprintf("Reads the camera through v4l2 and the microphone through %s", audio),
		Inputs:      []string{"v4l2", audio},
	}}
}

// Check resolves each requirement, records the tool's version line and
// confirms the input devices it must read are compiled in.
func Check(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(ctx, req))
	}
	return results
}

func check(ctx context.Context, req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	version, err := versionLine(ctx, path)
	if err != nil {
		status.Detail = fmt.Sprintf("version probe failed: %v", err)
		return status
	}
	if len(req.Inputs) > 0 {
		available, err := inputDevices(ctx, path)
		if err != nil {
			status.Detail = fmt.Sprintf("device probe failed: %v", err)
			return status
		}
		var missing []string
		for _, input := range req.Inputs {
			if _, ok := available[input]; !ok {
				missing = append(missing, input)
			}
		}
		if len(missing) > 0 {
			status.Detail = fmt.Sprintf("built without input devices: %s", strings.Join(missing, ", "))
			return status
		}
	}
	status.Available = true
	status.Detail = version
	return status
}

func versionLine(ctx context.Context, binary string) (string, error) {
	out, err := probe(ctx, binary, "-hide_banner", "-version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("empty version output")
	}
	return line, nil
}

// inputDevices parses `ffmpeg -devices`, keeping entries flagged D (demux).
func inputDevices(ctx context.Context, binary string) (map[string]struct{}, error) {
	out, err := probe(ctx, binary, "-hide_banner", "-devices")
	if err != nil {
		return nil, err
	}
	devices := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "D") || strings.Contains(fields[0], ".") {
			continue
		}
		for _, name := range strings.Split(fields[1], ",") {
			devices[name] = struct{}{}
		}
	}
	return devices, scanner.Err()
}

func probe(ctx context.Context, binary string, args ...string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, binary, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
