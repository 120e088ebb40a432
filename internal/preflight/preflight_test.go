package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hirelens/internal/auth"
	"hirelens/internal/services"
	"hirelens/internal/testsupport"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckScoringService(t *testing.T) {
	ok := CheckScoringService(context.Background(), pingFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got %s", ok.Detail)
	}

	down := CheckScoringService(context.Background(), pingFunc(func(context.Context) error {
		return services.Wrap(services.ErrNetworkUnavailable, "scoring", "ping", "connection refused", nil)
	}))
	if down.Passed || !strings.Contains(down.Detail, "connection refused") {
		t.Fatalf("unexpected result %+v", down)
	}

	slow := CheckScoringService(context.Background(), pingFunc(func(context.Context) error {
		return context.DeadlineExceeded
	}))
	if slow.Passed || !strings.Contains(slow.Detail, "timed out") {
		t.Fatalf("unexpected result %+v", slow)
	}

	denied := CheckScoringService(context.Background(), pingFunc(func(context.Context) error {
		return services.Wrap(services.ErrUnauthorized, "scoring", "ping", "", nil)
	}))
	if denied.Passed || !strings.Contains(denied.Detail, "login") {
		t.Fatalf("unexpected result %+v", denied)
	}
}

func TestCheckScoringServiceAppliesTimeout(t *testing.T) {
	result := CheckScoringService(context.Background(), pingFunc(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	}))
	if !result.Passed {
		t.Fatalf("expected probe context to carry a deadline: %s", result.Detail)
	}
}

func TestCheckToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	empty, err := auth.NewContext(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if r := CheckToken(empty, now); r.Passed {
		t.Fatal("missing token should fail")
	}

	valid, _ := auth.NewContext(nil, signedToken(t, jwt.MapClaims{"name": "Ada", "exp": now.Add(time.Hour).Unix()}))
	if r := CheckToken(valid, now); !r.Passed || !strings.Contains(r.Detail, "Ada") {
		t.Fatalf("valid token: %+v", r)
	}

	expired, _ := auth.NewContext(nil, signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()}))
	if r := CheckToken(expired, now); r.Passed || !strings.Contains(r.Detail, "expired") {
		t.Fatalf("expired token: %+v", r)
	}

	opaque, _ := auth.NewContext(nil, "not-a-jwt")
	if r := CheckToken(opaque, now); !r.Passed {
		t.Fatalf("opaque token should pass: %+v", r)
	}
}

func TestCheckDevice(t *testing.T) {
	if r := CheckDevice("Camera", ""); r.Passed {
		t.Fatal("empty device should fail")
	}
	if r := CheckDevice("Camera", filepath.Join(t.TempDir(), "video9")); r.Passed {
		t.Fatal("missing device node should fail")
	}
	if r := CheckDevice("Microphone", "default"); !r.Passed {
		t.Fatalf("sound server device should pass: %s", r.Detail)
	}
	node := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(node, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if r := CheckDevice("Camera", node); !r.Passed {
		t.Fatalf("accessible node should pass: %s", r.Detail)
	}
}

func TestCheckFixtures(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCaptureFixtures(2))
	frames := CheckFrameFixtures(cfg.Capture.FrameDir)
	if !frames.Passed || !strings.Contains(frames.Detail, "2 frames") {
		t.Fatalf("frames: %+v", frames)
	}
	if r := CheckAudioFixture(cfg.Capture.AudioFile); !r.Passed {
		t.Fatalf("audio: %+v", r)
	}
	if r := CheckFrameFixtures(t.TempDir()); r.Passed {
		t.Fatal("empty frame dir should fail")
	}
	if r := CheckAudioFixture(filepath.Join(t.TempDir(), "missing.wav")); r.Passed {
		t.Fatal("missing audio fixture should fail")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, nil, nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_FileBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCaptureFixtures(1))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	authCtx, _ := auth.NewContext(nil, "opaque")
	pinger := pingFunc(func(context.Context) error { return nil })

	results := RunAll(context.Background(), cfg, pinger, authCtx)
	// data dir, lock dir, token, service, two fixtures
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_ReportsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg, nil, nil)
	failed := Failed(results)
	if len(failed) == 0 {
		t.Fatal("expected missing directories and fixtures to fail")
	}
	for _, r := range results {
		if r.Name == "Scoring service" || r.Name == "Session token" {
			t.Fatalf("skipped check %q should not run", r.Name)
		}
	}
}
