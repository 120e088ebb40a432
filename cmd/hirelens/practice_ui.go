package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"hirelens/internal/interview"
)

// eventSink buffers orchestrator events for the renderer. Ticks are dropped
// when the buffer is full; other events wait for room.
type eventSink struct {
	mu     sync.Mutex
	closed bool
	ch     chan interview.Event
}

func newEventSink(size int) *eventSink {
	return &eventSink{ch: make(chan interview.Event, size)}
}

func (s *eventSink) push(ev interview.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if ev.Kind == interview.EventTick {
		select {
		case s.ch <- ev:
		default:
		}
		return
	}
	s.ch <- ev
}

func (s *eventSink) events() <-chan interview.Event {
	return s.ch
}

func (s *eventSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// crlfWriter restores carriage returns while the terminal is in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

type sessionView interface {
	Questions() []interview.Question
	MaxAttempts() int
}

type sessionRenderer struct {
	out      io.Writer
	colorize bool
	// live redraws the countdown in place; otherwise it is printed at
	// coarse intervals.
	live     bool
	total    time.Duration
	view     sessionView
	progress bool
}

func newSessionRenderer(out io.Writer, colorize, live bool, total time.Duration, view sessionView) *sessionRenderer {
	return &sessionRenderer{out: out, colorize: colorize, live: live, total: total, view: view}
}

func (r *sessionRenderer) run(events <-chan interview.Event) {
	for ev := range events {
		r.render(ev)
	}
	r.endProgress()
}

func (r *sessionRenderer) render(ev interview.Event) {
	switch ev.Kind {
	case interview.EventTick:
		r.renderTick(ev.Remaining)
		return
	case interview.EventState:
		r.println(r.stateLines(ev)...)
	case interview.EventWarning:
		r.println(renderStatusLine("Warning", statusWarn, ev.Message, r.colorize))
	case interview.EventTranscript:
		r.println("Transcript: " + strings.TrimSpace(ev.Transcript))
	case interview.EventAttempt:
		r.println(r.attemptLines(ev)...)
	case interview.EventFinal:
		if ev.Final != nil {
			r.println(renderFinalResult(*ev.Final))
		}
	}
}

func (r *sessionRenderer) renderTick(remaining time.Duration) {
	if r.live {
		fmt.Fprint(r.out, "\r"+ansiClear+renderCountdown(remaining, r.total, r.colorize))
		r.progress = true
		return
	}
	rounded := remaining.Round(time.Second)
	if rounded > 0 && (rounded%(30*time.Second) == 0 || rounded == 10*time.Second) {
		fmt.Fprintln(r.out, renderCountdown(rounded, r.total, false))
	}
}

func (r *sessionRenderer) endProgress() {
	if r.progress {
		fmt.Fprintln(r.out)
		r.progress = false
	}
}

func (r *sessionRenderer) println(lines ...string) {
	if len(lines) == 0 {
		return
	}
	r.endProgress()
	for _, line := range lines {
		fmt.Fprintln(r.out, line)
	}
}

func (r *sessionRenderer) stateLines(ev interview.Event) []string {
	switch ev.State {
	case interview.StateReady:
		if ev.Question == "" {
			return []string{
				renderStatusLine("Questions", statusError, "none loaded", r.colorize),
				hintLine("[f] fetch questions", "[q] quit"),
			}
		}
		lines := renderSectionHeader(fmt.Sprintf("Question %d of %d", ev.QuestionIndex+1, len(r.view.Questions())), r.colorize)
		lines = append(lines, string(ev.Question))
		if ev.AttemptNumber > 1 {
			lines = append(lines, fmt.Sprintf("Attempt %d of %d", ev.AttemptNumber, r.view.MaxAttempts()))
		}
		return append(lines, hintLine("[s] start recording", "[q] finish"))
	case interview.StateRecording:
		return []string{
			fmt.Sprintf("Recording attempt %d of %d", ev.AttemptNumber, r.view.MaxAttempts()),
			hintLine("[s] stop", "[Esc] cancel", "[q] finish"),
		}
	case interview.StateProcessing:
		return []string{"Calculating your results..."}
	}
	return nil
}

func (r *sessionRenderer) attemptLines(ev interview.Event) []string {
	a := ev.Attempt
	if a == nil {
		return nil
	}
	var lines []string
	if a.Fallback {
		lines = append(lines, renderStatusLine("Scores", statusWarn,
			fmt.Sprintf("unavailable, recorded a neutral %s", formatScore(a.Scores.Overall)), r.colorize))
	}
	lines = append(lines, renderAttemptScores(ev.QuestionIndex, *a, ev.Best))
	if fb := a.Feedback; fb != nil {
		for _, s := range fb.Strengths {
			lines = append(lines, "  + "+s)
		}
		for _, s := range fb.Improvements {
			lines = append(lines, "  - "+s)
		}
		if fb.PositiveReformulation != "" {
			lines = append(lines, "  Try: "+fb.PositiveReformulation)
		}
	}
	if left := r.view.MaxAttempts() - a.Number; left > 0 {
		lines = append(lines, hintLine(fmt.Sprintf("[r] try again (%d left)", left), "[n] next question", "[q] finish"))
	} else {
		lines = append(lines, hintLine("[n] next question", "[q] finish"))
	}
	return lines
}

func hintLine(hints ...string) string {
	return "  " + strings.Join(hints, "  ")
}

func renderAttemptScores(index int, a interview.Attempt, best *interview.Attempt) string {
	headers := []string{"Score", "This attempt"}
	if best != nil && best.Number != a.Number {
		headers = append(headers, fmt.Sprintf("Best (#%d)", best.Number))
	}
	metric := func(name string, pick func(interview.Scores) float64) []string {
		row := []string{name, formatScore(pick(a.Scores))}
		if len(headers) == 3 {
			row = append(row, formatScore(pick(best.Scores)))
		}
		return row
	}
	rows := [][]string{
		metric("Overall", func(s interview.Scores) float64 { return s.Overall }),
		metric("Posture", func(s interview.Scores) float64 { return s.Posture }),
		metric("Eye contact", func(s interview.Scores) float64 { return s.EyeContact }),
		metric("Smile", func(s interview.Scores) float64 { return s.Smile }),
		metric("Answer quality", func(s interview.Scores) float64 { return s.AnswerQuality }),
		metric("Sentiment", func(s interview.Scores) float64 { return s.Sentiment }),
	}
	return renderTableWith(headers, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
		tableOptions{title: fmt.Sprintf("Question %d, attempt %d", index+1, a.Number)},
	)
}

func renderFinalResult(final interview.FinalResult) string {
	overall := "Overall"
	if final.Answered < len(final.Questions) {
		overall = fmt.Sprintf("Overall, %d of %d answered", final.Answered, len(final.Questions))
	}
	rows := make([][]string, 0, len(final.Questions))
	for _, line := range final.Questions {
		best := "-"
		if line.Best != nil {
			best = formatScore(line.Best.Scores.Overall)
		}
		rows = append(rows, []string{
			fmt.Sprintf("Q%d", line.Index+1),
			truncate(string(line.Question), 48),
			fmt.Sprintf("%d", line.Attempts),
			best,
		})
	}
	return renderTableWith(
		[]string{"#", "Question", "Attempts", "Best"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
		tableOptions{
			title:  "Interview results",
			footer: []string{"", overall, "", formatScore(final.Scores.Overall)},
		},
	)
}
