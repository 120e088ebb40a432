package archive_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hirelens/internal/archive"
	"hirelens/internal/testsupport"
)

func sampleSession(id string, completed time.Time, overall float64) archive.Session {
	return archive.Session{
		ID:            id,
		StartedAt:     completed.Add(-5 * time.Minute),
		CompletedAt:   completed,
		QuestionCount: 2,
		Scores:        archive.Scores{Overall: overall, Posture: 70, EyeContact: 65, Smile: 40, AnswerQuality: 80, Sentiment: 55},
		Attempts: []archive.Attempt{
			{QuestionIndex: 0, Question: "Tell me about yourself.", Number: 1, Transcript: "I build things.", Scores: archive.Scores{Overall: overall}, Best: true, Frames: 120},
			{QuestionIndex: 1, Question: "Why this role?", Number: 1, Scores: archive.Scores{Overall: 50, Posture: 50}, Fallback: true},
			{QuestionIndex: 1, Question: "Why this role?", Number: 2, Transcript: "Growth.", Scores: archive.Scores{Overall: overall}, Best: true, Frames: 90},
		},
	}
}

func TestSaveAndLoadSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenArchive(t, cfg)
	ctx := context.Background()

	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SaveSession(ctx, sampleSession("s-1", completed, 82)); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := store.Session(ctx, "s-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored session")
	}
	if !got.CompletedAt.Equal(completed) {
		t.Fatalf("completed_at round trip: %s", got.CompletedAt)
	}
	if got.Scores.Overall != 82 || got.Scores.AnswerQuality != 80 {
		t.Fatalf("unexpected scores %+v", got.Scores)
	}
	if len(got.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(got.Attempts))
	}
	if !got.Attempts[1].Fallback || got.Attempts[1].Best {
		t.Fatalf("fallback flags lost: %+v", got.Attempts[1])
	}
	if got.Attempts[2].Number != 2 || got.Attempts[2].Frames != 90 {
		t.Fatalf("unexpected ordering or frames: %+v", got.Attempts[2])
	}

	missing, err := store.Session(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown session, got %+v err=%v", missing, err)
	}
}

func TestSaveSessionReplacesExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenArchive(t, cfg)
	ctx := context.Background()

	now := time.Now()
	if err := store.SaveSession(ctx, sampleSession("dup", now, 60)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveSession(ctx, sampleSession("dup", now, 75)); err != nil {
		t.Fatalf("second save: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Sessions != 1 || stats.Attempts != 3 {
		t.Fatalf("expected replacement, got %+v", stats)
	}
	if stats.BestOverall != 75 {
		t.Fatalf("expected replaced score 75, got %v", stats.BestOverall)
	}

	if err := store.SaveSession(ctx, archive.Session{}); err == nil {
		t.Fatal("expected error for session without id")
	}
}

func TestSessionsNewestFirstAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenArchive(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, score := range []float64{60, 90, 75} {
		id := []string{"a", "b", "c"}[i]
		if err := store.SaveSession(ctx, sampleSession(id, base.Add(time.Duration(i)*time.Hour+time.Duration(i)*time.Millisecond*500), score)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	sessions, err := store.Sessions(ctx, 2)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "c" || sessions[1].ID != "b" {
		t.Fatalf("unexpected order %+v", sessions)
	}
	if len(sessions[0].Attempts) != 0 {
		t.Fatal("listing should not load attempts")
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Sessions != 3 || stats.Attempts != 9 || stats.FallbackAttempts != 3 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.AverageOverall != 75 || stats.BestOverall != 90 {
		t.Fatalf("unexpected aggregates %+v", stats)
	}
	if !stats.LastCompleted.Equal(base.Add(2*time.Hour + time.Second)) {
		t.Fatalf("unexpected last completed %s", stats.LastCompleted)
	}

	n, err := store.Prune(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pruned sessions, got %d", n)
	}
	stats, _ = store.Stats(ctx)
	if stats.Sessions != 1 || stats.Attempts != 3 {
		t.Fatalf("prune should remove attempts too, got %+v", stats)
	}
}

func TestEmptyArchiveStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenArchive(t, cfg)
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Sessions != 0 || stats.AverageOverall != 0 || !stats.LastCompleted.IsZero() {
		t.Fatalf("unexpected empty stats %+v", stats)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	store, err := archive.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := store.SaveSession(context.Background(), sampleSession("keep", time.Now(), 70)); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	_ = store.Close()

	reopened, err := archive.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got, _ := reopened.Session(context.Background(), "keep"); got == nil {
		t.Fatal("session lost after reopen")
	}
	if reopened.Path() != path {
		t.Fatalf("unexpected path %q", reopened.Path())
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	store, err := archive.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := archive.SetSchemaVersionForTest(store, 99); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = store.Close()

	if _, err := archive.OpenPath(path); !errors.Is(err, archive.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
