package archive

import "time"

// Scores mirrors the six score fields reported by the scoring service.
type Scores struct {
	Overall       float64
	Posture       float64
	EyeContact    float64
	Smile         float64
	AnswerQuality float64
	Sentiment     float64
}

// Session is one completed practice session.
type Session struct {
	ID            string
	StartedAt     time.Time
	CompletedAt   time.Time
	QuestionCount int
	Scores        Scores
	Attempts      []Attempt
}

// Attempt is one recorded answer.
type Attempt struct {
	QuestionIndex int
	Question      string
	Number        int
	Transcript    string
	Scores        Scores
	Fallback      bool
	Best          bool
	Frames        int
}

// Stats summarizes the archive.
type Stats struct {
	Sessions         int
	Attempts         int
	FallbackAttempts int
	AverageOverall   float64
	BestOverall      float64
	LastCompleted    time.Time
}
