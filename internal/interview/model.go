package interview

import (
	"time"

	"hirelens/internal/scoring"
	"hirelens/internal/textutil"
)

// Question is an interview prompt. Its identity is its text.
type Question string

// Key returns the normalized lookup key for the question.
func (q Question) Key() string {
	return textutil.QuestionKey(string(q))
}

// Scores holds the six 0-100 score fields of one attempt.
type Scores struct {
	Posture       float64 `json:"posture_score"`
	EyeContact    float64 `json:"eye_contact_score"`
	Smile         float64 `json:"smile_percentage"`
	AnswerQuality float64 `json:"answer_quality_score"`
	Sentiment     float64 `json:"overall_sentiment"`
	Overall       float64 `json:"overall_score"`
}

// NeutralScores returns a vector with every field set to value.
func NeutralScores(value float64) Scores {
	return Scores{
		Posture:       value,
		EyeContact:    value,
		Smile:         value,
		AnswerQuality: value,
		Sentiment:     value,
		Overall:       value,
	}
}

func scoresFrom(fs scoring.FinalScores) Scores {
	return Scores{
		Posture:       fs.PostureScore,
		EyeContact:    fs.EyeContactScore,
		Smile:         fs.SmilePercentage,
		AnswerQuality: fs.AnswerQualityScore,
		Sentiment:     fs.OverallSentiment,
		Overall:       fs.OverallScore,
	}
}

func (s Scores) add(o Scores) Scores {
	return Scores{
		Posture:       s.Posture + o.Posture,
		EyeContact:    s.EyeContact + o.EyeContact,
		Smile:         s.Smile + o.Smile,
		AnswerQuality: s.AnswerQuality + o.AnswerQuality,
		Sentiment:     s.Sentiment + o.Sentiment,
		Overall:       s.Overall + o.Overall,
	}
}

func (s Scores) div(n float64) Scores {
	return Scores{
		Posture:       s.Posture / n,
		EyeContact:    s.EyeContact / n,
		Smile:         s.Smile / n,
		AnswerQuality: s.AnswerQuality / n,
		Sentiment:     s.Sentiment / n,
		Overall:       s.Overall / n,
	}
}

// Feedback is the language analysis of an answer.
type Feedback struct {
	Strengths             []string
	Improvements          []string
	PositiveReformulation string
}

func feedbackFrom(a scoring.AnswerAnalysis) *Feedback {
	if len(a.Analysis.Strengths) == 0 && len(a.Analysis.Improvements) == 0 && a.PositiveReformulation == "" {
		return nil
	}
	return &Feedback{
		Strengths:             append([]string(nil), a.Analysis.Strengths...),
		Improvements:          append([]string(nil), a.Analysis.Improvements...),
		PositiveReformulation: a.PositiveReformulation,
	}
}

// Attempt is one recorded answer. It never changes once recorded.
type Attempt struct {
	Number     int
	SessionID  string
	Transcript string
	Scores     Scores
	Feedback   *Feedback
	Fallback   bool
	Reason     StopReason
	Frames     uint64
	// Overlap is the token similarity with the previous attempt's
	// transcript, 0 for a first attempt.
	Overlap    float64
	RecordedAt time.Time
}

// QuestionRecord collects the attempts for one question.
type QuestionRecord struct {
	Question Question
	Attempts []Attempt
	best     int
}

func newQuestionRecord(q Question) *QuestionRecord {
	return &QuestionRecord{Question: q, best: -1}
}

// append records an attempt and recomputes the best one.
func (r *QuestionRecord) append(a Attempt) {
	r.Attempts = append(r.Attempts, a)
	r.best = bestIndex(r.Attempts)
}

// Best returns the attempt with the highest overall score, the earliest one
// on ties, or nil when nothing was recorded.
func (r *QuestionRecord) Best() *Attempt {
	if r == nil || r.best < 0 || r.best >= len(r.Attempts) {
		return nil
	}
	a := r.Attempts[r.best]
	return &a
}

func bestIndex(attempts []Attempt) int {
	best := -1
	for i, a := range attempts {
		if best < 0 || a.Scores.Overall > attempts[best].Scores.Overall {
			best = i
		}
	}
	return best
}

// QuestionResult is the per-question line of a final result.
type QuestionResult struct {
	Index    int
	Question Question
	Attempts int
	Best     *Attempt
}

// FinalResult is the mean of each answered question's best attempt.
// Questions lists the whole batch; unanswered lines have no Best.
type FinalResult struct {
	SessionID   string
	Scores      Scores
	Questions   []QuestionResult
	Answered    int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Aggregate computes the final result. Questions without an attempt are
// listed but left out of the mean, so ending a batch early scores only what
// was answered.
func Aggregate(questions []Question, records map[string]*QuestionRecord) FinalResult {
	var result FinalResult
	var sum Scores
	for i, q := range questions {
		line := QuestionResult{Index: i, Question: q}
		if rec := records[q.Key()]; rec != nil {
			line.Attempts = len(rec.Attempts)
			line.Best = rec.Best()
		}
		if line.Best != nil {
			sum = sum.add(line.Best.Scores)
			result.Answered++
		}
		result.Questions = append(result.Questions, line)
	}
	if result.Answered > 0 {
		result.Scores = sum.div(float64(result.Answered))
	}
	return result
}
