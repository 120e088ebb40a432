package scoring

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// FinalScores is the score vector returned by the stop endpoint. Every field
// is a 0-100 value.
type FinalScores struct {
	PostureScore       float64 `json:"posture_score"`
	EyeContactScore    float64 `json:"eye_contact_score"`
	SmilePercentage    float64 `json:"smile_percentage"`
	AnswerQualityScore float64 `json:"answer_quality_score"`
	OverallSentiment   float64 `json:"overall_sentiment"`
	OverallScore       float64 `json:"overall_score"`
}

// AnswerAnalysis is the language feedback attached to a stop response.
type AnswerAnalysis struct {
	Analysis struct {
		Strengths    []string `json:"strengths"`
		Improvements []string `json:"improvements"`
	} `json:"analysis"`
	PositiveReformulation string `json:"positive_reformulation"`
}

// StopResult is the decoded stop response.
type StopResult struct {
	FinalScores    *FinalScores   `json:"final_scores"`
	AnswerAnalysis AnswerAnalysis `json:"answer_analysis"`
}

// ResultRecord is one entry of the results history.
type ResultRecord struct {
	ID              FlexibleID `json:"id"`
	CreatedAt       string     `json:"created_at"`
	OverallScore    float64    `json:"overall_score"`
	PostureScore    float64    `json:"posture_score"`
	EyeContactScore float64    `json:"eye_contact_score"`
	SmilePercentage float64    `json:"smile_percentage"`
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// Created parses CreatedAt. Timestamps without a zone are read as UTC.
func (r ResultRecord) Created() (time.Time, bool) {
	value := strings.TrimSpace(r.CreatedAt)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// FlexibleID accepts numeric or string identifiers.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

// User is the identity reported by the service for the current token.
type User struct {
	ID string `json:"user_id"`
}

// HistoryStats summarizes the results history the way the dashboard shows it.
type HistoryStats struct {
	Total   int
	Average int
	Best    int
}

// SummarizeResults computes total, rounded average and best overall score.
func SummarizeResults(results []ResultRecord) HistoryStats {
	if len(results) == 0 {
		return HistoryStats{}
	}
	var sum, best float64
	for i, r := range results {
		sum += r.OverallScore
		if i == 0 || r.OverallScore > best {
			best = r.OverallScore
		}
	}
	return HistoryStats{
		Total:   len(results),
		Average: int(math.Round(sum / float64(len(results)))),
		Best:    int(math.Round(best)),
	}
}

type questionsResponse struct {
	Questions []string `json:"questions"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type frameRequest struct {
	SessionID string `json:"session_id"`
	Frame     string `json:"frame"`
	Question  string `json:"question"`
}

type audioRequest struct {
	SessionID string `json:"session_id"`
	AudioData string `json:"audio_data"`
	Question  string `json:"question"`
}

type audioResponse struct {
	Transcription *string `json:"transcription"`
}

type stopRequest struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
}

type resultsResponse struct {
	Results []ResultRecord `json:"results"`
}

type authURLResponse struct {
	AuthURL string `json:"auth_url"`
}
