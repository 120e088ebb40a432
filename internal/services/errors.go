package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrDeviceUnavailable  = errors.New("device unavailable")
	ErrNetworkUnavailable = errors.New("scoring service unreachable")
	ErrInvalidResponse    = errors.New("invalid response")
	ErrEmptyRecording     = errors.New("empty recording")
	ErrNotRecording       = errors.New("not recording")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConfiguration      = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetworkUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Banner maps a classified error onto the short, non-blocking message shown to
// the user. Unclassified errors fall back to their own text.
func Banner(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Device access denied. Please grant camera and microphone permissions."
	case errors.Is(err, ErrDeviceUnavailable):
		return "No usable capture device found. Check that the camera or microphone is connected."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Run `hirelens login` to sign in again."
	case errors.Is(err, ErrNetworkUnavailable):
		return "Scoring service unavailable. Results for this attempt use neutral scores."
	case errors.Is(err, ErrInvalidResponse):
		return "Scoring service returned an unexpected response. Results for this attempt use neutral scores."
	case errors.Is(err, ErrEmptyRecording):
		return "No audio was captured for this attempt."
	case errors.Is(err, ErrNotRecording):
		return "No recording is in progress."
	default:
		return err.Error()
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "client failure"
	}
	return strings.Join(parts, ": ")
}
