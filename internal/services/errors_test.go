package services_test

import (
	"errors"
	"strings"
	"testing"

	"hirelens/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrNetworkUnavailable, "scoring", "stop", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrNetworkUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"scoring", "stop", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToNetwork(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrNetworkUnavailable) {
		t.Fatalf("expected network marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "client failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestBannerMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{services.Wrap(services.ErrPermissionDenied, "capture", "acquire", "camera", nil), "permissions"},
		{services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", "camera", nil), "capture device"},
		{services.Wrap(services.ErrUnauthorized, "scoring", "questions", "", nil), "hirelens login"},
		{services.Wrap(services.ErrInvalidResponse, "scoring", "stop", "", nil), "neutral scores"},
		{services.ErrEmptyRecording, "No audio"},
		{errors.New("plain failure"), "plain failure"},
	}
	for _, tc := range cases {
		if got := services.Banner(tc.err); !strings.Contains(got, tc.want) {
			t.Fatalf("Banner(%v) = %q, want substring %q", tc.err, got, tc.want)
		}
	}
	if services.Banner(nil) != "" {
		t.Fatal("expected empty banner for nil error")
	}
}
