package textutil

import (
	"math"
	"testing"
)

func TestQuestionKeyNormalizes(t *testing.T) {
	composed := "Describe a caf\u00e9 you managed."
	decomposed := "  Describe a  cafe\u0301 you\tmanaged.\n"
	if QuestionKey(composed) != QuestionKey(decomposed) {
		t.Fatalf("expected equal keys, got %q and %q", QuestionKey(composed), QuestionKey(decomposed))
	}
	if QuestionKey(composed) != composed {
		t.Fatalf("expected composed text unchanged, got %q", QuestionKey(composed))
	}
}

func TestQuestionKeyEmpty(t *testing.T) {
	if got := QuestionKey("   "); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
}

func TestTokenizeDropsShortRuns(t *testing.T) {
	got := Tokenize("I led a team of 12 engineers, über-fast!")
	want := []string{"led", "team", "engineers", "über", "fast"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestCosineSimilarityNil(t *testing.T) {
	if got := CosineSimilarity(nil, NewFingerprint("hello world")); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if NewFingerprint("a b") != nil {
		t.Fatal("expected nil fingerprint for short tokens")
	}
}

func TestTranscriptSimilarity(t *testing.T) {
	same := TranscriptSimilarity("I improved the deployment pipeline", "I improved the deployment pipeline")
	if math.Abs(same-1) > 1e-9 {
		t.Fatalf("identical transcripts should be 1, got %v", same)
	}
	diff := TranscriptSimilarity("apple banana cherry", "dog elephant frog")
	if diff != 0 {
		t.Fatalf("disjoint transcripts should be 0, got %v", diff)
	}
	partial := TranscriptSimilarity("improved pipeline speed", "improved pipeline reliability")
	if partial <= 0 || partial >= 1 {
		t.Fatalf("expected partial similarity, got %v", partial)
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"/dev/video0": "dev_video0",
		"default":     "default",
		"hw:1,0":      "hw_1_0",
		"  ":          "unknown",
		"///":         "unknown",
	}
	for in, want := range cases {
		if got := SanitizeToken(in); got != want {
			t.Fatalf("SanitizeToken(%q) = %q want %q", in, got, want)
		}
	}
}
