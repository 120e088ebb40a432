package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"hirelens/internal/auth"
	"hirelens/internal/config"
	"hirelens/internal/testsupport"
)

// fakeScoringAPI is an in-memory scoring service.
type fakeScoringAPI struct {
	mu        sync.Mutex
	questions []string
	score     float64
	results   []map[string]any
	starts    int
	stops     int
	frames    int
}

func (f *fakeScoringAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.URL.Path {
		case "/api/test-connection":
			respondJSON(t, w, map[string]string{"status": "ok"})
		case "/auth/login/google":
			respondJSON(t, w, map[string]string{"auth_url": "https://accounts.example.com/o/oauth2/auth?client_id=hirelens"})
		case "/auth/me":
			respondJSON(t, w, map[string]string{"user_id": "user-42"})
		case "/api/interview/questions":
			respondJSON(t, w, map[string]any{"questions": f.questions})
		case "/api/interview/start":
			f.starts++
			respondJSON(t, w, map[string]string{"status": "started"})
		case "/api/interview/record":
			f.frames++
			respondJSON(t, w, map[string]string{"status": "ok"})
		case "/api/interview/process-audio":
			respondJSON(t, w, map[string]string{"transcription": "I led the migration and measured the outcome"})
		case "/api/interview/stop":
			f.stops++
			respondJSON(t, w, map[string]any{
				"final_scores": map[string]float64{
					"posture_score":        f.score,
					"eye_contact_score":    f.score,
					"smile_percentage":     f.score,
					"answer_quality_score": f.score,
					"overall_sentiment":    f.score,
					"overall_score":        f.score,
				},
				"answer_analysis": map[string]any{
					"analysis":               map[string]any{"strengths": []string{"Clear structure"}, "improvements": []string{}},
					"positive_reformulation": "",
				},
			})
		case "/api/interview/results":
			respondJSON(t, w, map[string]any{"results": f.results})
		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeScoringAPI) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func respondJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

type cliTestEnv struct {
	cfg        *config.Config
	api        *fakeScoringAPI
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("HIRELENS_TOKEN", "")
	t.Setenv("HIRELENS_BASE_URL", "")

	api := &fakeScoringAPI{
		questions: []string{"Tell me about yourself.", "Describe a hard bug you fixed."},
		score:     80,
	}
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{
		testsupport.WithBaseURL(server.URL),
		testsupport.WithQuestionCount(2),
	}, opts...)...)
	cfg.Logging.RetentionDays = 0

	configPath := filepath.Join(home, ".config", "hirelens", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, api: api, configPath: configPath}
}

func (e *cliTestEnv) login(t *testing.T, token string) {
	t.Helper()
	authCtx, err := auth.NewContext(auth.NewFileTokenStore(e.cfg.Auth.TokenPath), "")
	if err != nil {
		t.Fatalf("auth context: %v", err)
	}
	if err := authCtx.Set(token, "google"); err != nil {
		t.Fatalf("store token: %v", err)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
