package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hirelens/internal/archive"
	"hirelens/internal/capture"
	"hirelens/internal/config"
	"hirelens/internal/countdown"
	"hirelens/internal/logging"
	"hirelens/internal/recorder"
	"hirelens/internal/sampler"
	"hirelens/internal/scoring"
	"hirelens/internal/services"
	"hirelens/internal/textutil"
)

// ErrorTranscript replaces the transcript when audio could not be processed.
const ErrorTranscript = "Error processing audio. Please try again."

var (
	ErrNoQuestions  = errors.New("no questions loaded")
	ErrInvalidState = errors.New("invalid state transition")
	ErrClosed       = errors.New("orchestrator closed")
)

// ScoringService is the subset of the scoring client used during a session.
type ScoringService interface {
	Questions(ctx context.Context, count int) ([]string, error)
	StartSession(ctx context.Context, sessionID, question string) error
	RecordFrame(ctx context.Context, sessionID, frame, question string) error
	ProcessAudio(ctx context.Context, sessionID string, wav []byte, question string) (string, error)
	StopSession(ctx context.Context, sessionID, transcript string) (scoring.StopResult, error)
}

// Archiver stores completed sessions.
type Archiver interface {
	SaveSession(ctx context.Context, session archive.Session) error
}

// DeviceWatcher reports removal of the devices a session holds.
type DeviceWatcher interface {
	Start(ctx context.Context) error
	Stop()
}

// Options configures an Orchestrator.
type Options struct {
	QuestionCount   int
	MaxAttempts     int
	AttemptDuration time.Duration
	FrameInterval   time.Duration
	JPEGQuality     int
	ChunkInterval   time.Duration
	// FallbackScore is the neutral score given to attempts the service could
	// not score; nil means DefaultFallbackScore.
	FallbackScore *float64
	// Capture carries the frame size and sample rate; the track flags are
	// set per acquisition.
	Capture        capture.Constraints
	MonitorDevices bool
	// SessionID fixes the interview-wide id; empty allocates one.
	SessionID string
	Logger    *slog.Logger
	Archive   Archiver
	Now       func() time.Time
	NewID     func() (string, error)
	NewTicker func(time.Duration) countdown.Ticker
	// NewMonitor builds the unplug watcher for the held devices; nil result
	// means nothing can be watched.
	NewMonitor func(logger *slog.Logger, devices []string, onLost func(capture.DeviceLost)) DeviceWatcher
}

// OptionsFromConfig maps the interview and capture sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		QuestionCount:   cfg.Interview.QuestionCount,
		MaxAttempts:     cfg.Interview.MaxAttempts,
		AttemptDuration: cfg.AttemptDuration(),
		FrameInterval:   cfg.FrameInterval(),
		JPEGQuality:     cfg.Interview.JPEGQuality,
		ChunkInterval:   cfg.AudioChunkInterval(),
		FallbackScore:   FallbackScore(cfg.Interview.FallbackScore),
		Capture:         capture.ConstraintsFromConfig(cfg, false, false),
		MonitorDevices:  cfg.Capture.MonitorDevice,
	}
}

func (o Options) normalized() Options {
	if o.QuestionCount <= 0 {
		o.QuestionCount = 3
	}
	if o.MaxAttempts <= 0 || o.MaxAttempts > 3 {
		o.MaxAttempts = 3
	}
	if o.AttemptDuration <= 0 {
		o.AttemptDuration = 90 * time.Second
	}
	if o.FallbackScore == nil || *o.FallbackScore < 0 || *o.FallbackScore > 100 {
		o.FallbackScore = FallbackScore(DefaultFallbackScore)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = newSessionID
	}
	if o.NewMonitor == nil {
		o.NewMonitor = newDeviceMonitor
	}
	return o
}

func newDeviceMonitor(logger *slog.Logger, devices []string, onLost func(capture.DeviceLost)) DeviceWatcher {
	if m := capture.NewDeviceMonitor(logger, devices, onLost); m != nil {
		return m
	}
	return nil
}

// DefaultFallbackScore is recorded for every metric of an unscored attempt.
const DefaultFallbackScore = 50

// FallbackScore returns a pointer suitable for Options.FallbackScore.
func FallbackScore(score float64) *float64 {
	return &score
}

func newSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Orchestrator runs one practice interview.
type Orchestrator struct {
	scoring  ScoringService
	provider capture.Provider
	opts     Options
	logger   *slog.Logger
	recorder *recorder.Recorder

	// transition serializes every state change.
	transition sync.Mutex
	// emitMu serializes observer delivery and token invalidation.
	emitMu sync.Mutex
	// mu guards the fields read outside transitions.
	mu sync.Mutex

	state       State
	interviewID string
	startedAt   time.Time
	questions   []Question
	records     map[string]*QuestionRecord
	index       int
	attempt     int
	activeToken string
	lastSession string
	final       *FinalResult
	observers   []Observer

	initialized    bool
	closed         bool
	runCtx         context.Context
	cancelRun      context.CancelFunc
	camera         *capture.Handle
	mic            *capture.Handle
	monitor        DeviceWatcher
	sampler        *sampler.Sampler
	timer          *countdown.Timer
	recordingAudio bool
}

// New builds an orchestrator. provider may be nil, in which case the session
// runs without capture.
func New(svc ScoringService, provider capture.Provider, opts Options) *Orchestrator {
	opts = opts.normalized()
	logger := logging.NewComponentLogger(opts.Logger, "interview")
	return &Orchestrator{
		scoring:  svc,
		provider: provider,
		opts:     opts,
		logger:   logger,
		recorder: recorder.New(recorder.Options{ChunkInterval: opts.ChunkInterval, Logger: opts.Logger}),
		state:    StateInitializing,
		records:  make(map[string]*QuestionRecord),
		attempt:  1,
		runCtx:   context.Background(),
	}
}

// Subscribe registers an observer for future events.
func (o *Orchestrator) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	o.emitMu.Lock()
	o.observers = append(o.observers, obs)
	o.emitMu.Unlock()
}

// Initialize acquires devices and fetches questions. Device and network
// failures are reported as warnings; the orchestrator still becomes ready.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.transition.Lock()
	defer o.transition.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.initialized {
		return nil
	}
	id := o.opts.SessionID
	if id == "" {
		var err error
		if id, err = o.opts.NewID(); err != nil {
			return services.Wrap(services.ErrConfiguration, "interview", "initialize", "allocate session id", err)
		}
	}
	o.initialized = true
	o.runCtx, o.cancelRun = context.WithCancel(ctx)
	o.mu.Lock()
	o.interviewID = id
	o.startedAt = o.opts.Now()
	o.mu.Unlock()
	o.logger = logging.WithContext(services.WithSessionID(ctx, id), o.logger)

	o.setState(StateInitializing)
	o.acquireDevices(ctx)
	o.startMonitor()
	_ = o.fetchQuestionsLocked(ctx)
	o.setState(StateReady)
	return nil
}

func (o *Orchestrator) acquireDevices(ctx context.Context) {
	if o.provider == nil {
		o.warn("no capture provider configured", "capture_disabled",
			services.Wrap(services.ErrDeviceUnavailable, "interview", "initialize", "capture disabled", nil),
			"answers are recorded without camera or microphone")
		return
	}

	cons := o.opts.Capture
	cons.Video, cons.Audio = true, false
	if h, err := o.provider.Acquire(ctx, cons); err != nil {
		o.warn("camera unavailable", "camera_unavailable", err, "posture and eye contact are not analyzed")
	} else {
		o.camera = h
	}

	cons.Video, cons.Audio = false, true
	if h, err := o.provider.Acquire(ctx, cons); err != nil {
		o.warn("microphone unavailable", "microphone_unavailable", err, "audio scoring disabled for this session")
	} else {
		o.mic = h
	}
}

func (o *Orchestrator) startMonitor() {
	if !o.opts.MonitorDevices {
		return
	}
	var devices []string
	devices = append(devices, o.camera.Devices()...)
	devices = append(devices, o.mic.Devices()...)
	watcher := o.opts.NewMonitor(o.opts.Logger, devices, func(lost capture.DeviceLost) {
		go o.deviceLost(lost)
	})
	if watcher == nil {
		return
	}
	if err := watcher.Start(o.runCtx); err != nil {
		o.warn("device monitor unavailable", "device_monitor_failed", err, "device unplug is not detected")
		return
	}
	o.monitor = watcher
}

// FetchQuestions reloads the question batch. It is only allowed before the
// first recording of the batch.
func (o *Orchestrator) FetchQuestions(ctx context.Context) error {
	o.transition.Lock()
	defer o.transition.Unlock()
	if o.closed {
		return ErrClosed
	}
	if st := o.State(); st != StateReady && st != StateInitializing {
		return fmt.Errorf("%w: cannot fetch questions while %s", ErrInvalidState, st)
	}
	if err := o.fetchQuestionsLocked(ctx); err != nil {
		return err
	}
	o.setState(StateReady)
	return nil
}

func (o *Orchestrator) fetchQuestionsLocked(ctx context.Context) error {
	if o.scoring == nil {
		err := services.Wrap(services.ErrConfiguration, "interview", "questions", "no scoring service", nil)
		o.warn("questions unavailable", "questions_unavailable", err, "practice cannot start until questions load")
		return err
	}
	raw, err := o.scoring.Questions(ctx, o.opts.QuestionCount)
	if err != nil {
		o.warn("failed to fetch questions", "questions_unavailable", err, "practice cannot start until questions load")
		return err
	}
	questions := make([]Question, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, Question(q))
		}
	}
	o.mu.Lock()
	o.questions = questions
	o.records = make(map[string]*QuestionRecord)
	o.index = 0
	o.attempt = 1
	o.mu.Unlock()
	o.logger.Info("questions loaded",
		logging.String(logging.FieldEventType, "questions_loaded"),
		logging.Int("count", len(questions)),
	)
	return nil
}

// Start begins recording the current attempt.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.transition.Lock()
	defer o.transition.Unlock()
	return o.startLocked(ctx)
}

func (o *Orchestrator) startLocked(ctx context.Context) error {
	if o.closed {
		return ErrClosed
	}
	if st := o.State(); st != StateReady {
		return fmt.Errorf("%w: cannot start recording while %s", ErrInvalidState, st)
	}
	question, index, number, ok := o.Current()
	if !ok {
		return services.Wrap(services.ErrInvalidResponse, "interview", "start", "no questions loaded", ErrNoQuestions)
	}
	token, err := o.opts.NewID()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "interview", "start", "allocate session id", err)
	}

	o.emitMu.Lock()
	o.mu.Lock()
	o.activeToken = token
	o.lastSession = token
	o.mu.Unlock()
	o.emitMu.Unlock()
	o.setState(StateRecording)

	attemptCtx := services.WithAttempt(services.WithQuestionIndex(services.WithSessionID(ctx, token), index), number)
	logger := logging.WithContext(attemptCtx, logging.NewComponentLogger(o.opts.Logger, "interview"))

	if err := o.scoring.StartSession(ctx, token, string(question)); err != nil {
		o.warn("scoring session start failed", "session_start_failed", err,
			"recording continues; scores may fall back to neutral values")
	}

	if o.camera != nil && o.camera.Video != nil {
		o.sampler = sampler.New(o.camera.Video, o.deliverFrame(question), sampler.Options{
			Token:    token,
			Interval: o.opts.FrameInterval,
			Quality:  o.opts.JPEGQuality,
			Logger:   logger,
		})
		o.sampler.Start(o.runCtx)
	}

	if o.mic != nil && o.mic.Audio != nil {
		if err := o.recorder.Start(o.runCtx, o.mic.Audio); err != nil {
			o.warn("microphone recording failed to start", "audio_start_failed", err,
				"this attempt is scored without a transcript")
		} else {
			o.recordingAudio = true
		}
	}

	progress := logging.NewProgressSampler(25)
	duration := o.opts.AttemptDuration
	o.timer = countdown.New(countdown.Options{
		OnTick: func(remaining time.Duration) {
			if elapsed := 100 * float64(duration-remaining) / float64(duration); progress.ShouldLog(elapsed) {
				logger.Debug("recording progress", logging.Duration("remaining", remaining))
			}
			o.emitActive(token, Event{Kind: EventTick, Remaining: remaining})
		},
		OnExpire: func() {
			go o.expire(token)
		},
		NewTicker: o.opts.NewTicker,
		Logger:    logger,
	})
	o.timer.Start(o.opts.AttemptDuration)

	logger.Info("recording started",
		logging.String(logging.FieldEventType, "recording_started"),
		logging.Bool("camera", o.sampler != nil),
		logging.Bool("microphone", o.recordingAudio),
		logging.Duration("duration", o.opts.AttemptDuration),
	)
	return nil
}

func (o *Orchestrator) deliverFrame(question Question) sampler.DeliverFunc {
	return func(ctx context.Context, frame sampler.Frame) error {
		if !o.isActive(frame.Token) {
			return nil
		}
		return o.scoring.RecordFrame(ctx, frame.Token, frame.DataURL, string(question))
	}
}

func (o *Orchestrator) expire(token string) {
	o.transition.Lock()
	defer o.transition.Unlock()
	if !o.isActive(token) {
		return
	}
	_, _ = o.stopLocked(o.runCtx, ReasonTimeout)
}

// Stop ends the current recording and records the attempt. Calling Stop
// when nothing is recording returns a nil attempt.
func (o *Orchestrator) Stop(ctx context.Context, reason StopReason) (*Attempt, error) {
	o.transition.Lock()
	defer o.transition.Unlock()
	return o.stopLocked(ctx, reason)
}

func (o *Orchestrator) stopLocked(ctx context.Context, reason StopReason) (*Attempt, error) {
	if o.State() != StateRecording {
		return nil, nil
	}

	o.emitMu.Lock()
	o.mu.Lock()
	token := o.activeToken
	o.activeToken = ""
	o.mu.Unlock()
	o.emitMu.Unlock()

	question, index, number, _ := o.Current()
	attemptCtx := services.WithAttempt(services.WithQuestionIndex(services.WithSessionID(ctx, token), index), number)
	logger := logging.WithContext(attemptCtx, logging.NewComponentLogger(o.opts.Logger, "interview"))

	var frames uint64
	if o.sampler != nil {
		o.sampler.Stop()
		stats := o.sampler.Stats()
		frames = stats.Delivered
		logger.Debug("frame sampler stopped",
			logging.Uint64("captured", stats.Captured),
			logging.Uint64("delivered", stats.Delivered),
			logging.Uint64("dropped", stats.Dropped),
			logging.Uint64("invalid", stats.Invalid),
			logging.Uint64("failed", stats.Failed),
		)
		o.sampler = nil
	}
	if o.timer != nil {
		o.timer.Cancel()
		o.timer = nil
	}

	transcript := ""
	if o.recordingAudio {
		o.recordingAudio = false
		clip, err := o.recorder.Stop()
		transcript = o.transcribe(ctx, token, question, clip, err)
	}

	attempt := Attempt{
		Number:     number,
		SessionID:  token,
		Transcript: transcript,
		Reason:     reason,
		Frames:     frames,
		RecordedAt: o.opts.Now(),
	}
	result, err := o.scoring.StopSession(ctx, token, transcript)
	if err == nil && result.FinalScores == nil {
		err = services.Wrap(services.ErrInvalidResponse, "interview", "stop", "missing final scores", nil)
	}
	if err != nil {
		attempt.Scores = NeutralScores(*o.opts.FallbackScore)
		attempt.Fallback = true
		o.warn("scoring failed; attempt recorded with neutral scores", "attempt_fallback", err,
			"attempt scored with neutral fallback values", logging.Alert("scoring_fallback"))
	} else {
		attempt.Scores = scoresFrom(*result.FinalScores)
		attempt.Feedback = feedbackFrom(result.AnswerAnalysis)
	}

	o.mu.Lock()
	rec := o.records[question.Key()]
	if rec == nil {
		rec = newQuestionRecord(question)
		o.records[question.Key()] = rec
	}
	if n := len(rec.Attempts); n > 0 && usableTranscript(transcript) && usableTranscript(rec.Attempts[n-1].Transcript) {
		attempt.Overlap = textutil.TranscriptSimilarity(rec.Attempts[n-1].Transcript, transcript)
	}
	rec.append(attempt)
	best := rec.Best()
	o.mu.Unlock()

	logger.Info("attempt recorded",
		logging.String(logging.FieldEventType, "attempt_recorded"),
		logging.String(logging.FieldReason, string(reason)),
		logging.Float64("overall_score", attempt.Scores.Overall),
		logging.Bool("fallback", attempt.Fallback),
		logging.Uint64("frames", frames),
		logging.Float64("best_overall", best.Scores.Overall),
		logging.Float64("overlap", attempt.Overlap),
	)

	o.setState(StateAttemptCompleted)
	recorded := attempt
	o.emit(Event{Kind: EventAttempt, Attempt: &recorded, Best: best})
	return &attempt, nil
}

func usableTranscript(t string) bool {
	return strings.TrimSpace(t) != "" && t != ErrorTranscript
}

func (o *Orchestrator) transcribe(ctx context.Context, token string, question Question, clip recorder.Clip, stopErr error) string {
	if stopErr != nil {
		o.warn("audio recording could not be finalized", "audio_finalize_failed", stopErr,
			"transcript replaced by placeholder")
		return ErrorTranscript
	}
	if err := clip.Validate(); err != nil {
		o.warn("no audio captured", "audio_empty", err, "transcript replaced by placeholder")
		return ErrorTranscript
	}
	text, err := o.scoring.ProcessAudio(ctx, token, clip.WAV, string(question))
	if err != nil {
		o.warn("audio processing failed", "audio_processing_failed", err, "transcript replaced by placeholder")
		return ErrorTranscript
	}
	o.emit(Event{Kind: EventTranscript, Transcript: text})
	return text
}

// TryAgain records another attempt at the current question, or moves on
// once the attempt limit is reached.
func (o *Orchestrator) TryAgain(ctx context.Context) error {
	o.transition.Lock()
	defer o.transition.Unlock()
	if o.closed {
		return ErrClosed
	}
	if st := o.State(); st != StateAttemptCompleted {
		return fmt.Errorf("%w: cannot retry while %s", ErrInvalidState, st)
	}
	o.mu.Lock()
	more := o.attempt < o.opts.MaxAttempts
	if more {
		o.attempt++
	}
	o.mu.Unlock()
	if !more {
		return o.nextQuestionLocked(ctx)
	}
	o.setState(StateReady)
	return o.startLocked(ctx)
}

// NextQuestion advances to the next question once the current one has an
// attempt, completing the session after the last one.
func (o *Orchestrator) NextQuestion(ctx context.Context) error {
	o.transition.Lock()
	defer o.transition.Unlock()
	if o.closed {
		return ErrClosed
	}
	if st := o.State(); st != StateAttemptCompleted {
		return fmt.Errorf("%w: cannot advance while %s", ErrInvalidState, st)
	}
	return o.nextQuestionLocked(ctx)
}

func (o *Orchestrator) nextQuestionLocked(ctx context.Context) error {
	o.mu.Lock()
	more := o.index+1 < len(o.questions)
	if more {
		o.index++
		o.attempt = 1
	}
	o.mu.Unlock()
	if more {
		o.setState(StateReady)
		return nil
	}
	_, err := o.completeLocked(ctx)
	return err
}

// Complete aggregates the final result, releases capture and archives the
// session. Completing twice returns the first result.
func (o *Orchestrator) Complete(ctx context.Context) (*FinalResult, error) {
	o.transition.Lock()
	defer o.transition.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	return o.completeLocked(ctx)
}

func (o *Orchestrator) completeLocked(ctx context.Context) (*FinalResult, error) {
	switch o.State() {
	case StateDone:
		return o.Final(), nil
	case StateInitializing:
		return nil, fmt.Errorf("%w: cannot complete before initialization", ErrInvalidState)
	case StateRecording:
		if _, err := o.stopLocked(ctx, ReasonManual); err != nil {
			return nil, err
		}
	}
	o.setState(StateProcessing)

	o.mu.Lock()
	final := Aggregate(o.questions, o.records)
	final.SessionID = o.interviewID
	final.StartedAt = o.startedAt
	final.CompletedAt = o.opts.Now()
	o.mu.Unlock()

	o.releaseDevices()
	o.archiveResult(ctx, final)

	o.mu.Lock()
	stored := final
	o.final = &stored
	o.mu.Unlock()

	o.logger.Info("interview complete",
		logging.String(logging.FieldEventType, "interview_complete"),
		logging.Float64("overall_score", final.Scores.Overall),
		logging.Int("questions", len(final.Questions)),
		logging.Int("answered", final.Answered),
	)
	o.setState(StateDone)
	o.emit(Event{Kind: EventFinal, Final: &final})
	return &final, nil
}

func (o *Orchestrator) archiveResult(ctx context.Context, final FinalResult) {
	if o.opts.Archive == nil {
		return
	}
	session := archive.Session{
		ID:            final.SessionID,
		StartedAt:     final.StartedAt,
		CompletedAt:   final.CompletedAt,
		QuestionCount: final.Answered,
		Scores:        archiveScores(final.Scores),
	}
	o.mu.Lock()
	for _, line := range final.Questions {
		rec := o.records[line.Question.Key()]
		if rec == nil {
			continue
		}
		for i, a := range rec.Attempts {
			session.Attempts = append(session.Attempts, archive.Attempt{
				QuestionIndex: line.Index,
				Question:      string(line.Question),
				Number:        a.Number,
				Transcript:    a.Transcript,
				Scores:        archiveScores(a.Scores),
				Fallback:      a.Fallback,
				Best:          i == rec.best,
				Frames:        int(a.Frames),
			})
		}
	}
	o.mu.Unlock()
	if len(session.Attempts) == 0 {
		o.logger.Debug("nothing recorded; session not archived")
		return
	}
	if err := o.opts.Archive.SaveSession(ctx, session); err != nil {
		logging.WarnWithContext(o.logger, "failed to archive session", "archive_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the data directory is writable"),
			logging.String(logging.FieldImpact, "this session is missing from local history"),
		)
	}
}

func archiveScores(s Scores) archive.Scores {
	return archive.Scores{
		Overall:       s.Overall,
		Posture:       s.Posture,
		EyeContact:    s.EyeContact,
		Smile:         s.Smile,
		AnswerQuality: s.AnswerQuality,
		Sentiment:     s.Sentiment,
	}
}

func (o *Orchestrator) releaseDevices() {
	if o.monitor != nil {
		o.monitor.Stop()
		o.monitor = nil
	}
	for _, h := range []*capture.Handle{o.camera, o.mic} {
		if err := capture.Release(h); err != nil {
			o.logger.Debug("capture release reported errors", logging.Error(err))
		}
	}
	o.mu.Lock()
	o.camera, o.mic = nil, nil
	o.mu.Unlock()
}

func (o *Orchestrator) deviceLost(lost capture.DeviceLost) {
	o.transition.Lock()
	defer o.transition.Unlock()
	if o.closed {
		return
	}
	o.warn("capture device disconnected", "device_lost",
		services.Wrap(services.ErrDeviceUnavailable, "interview", "device", lost.Device+" was removed", nil),
		"the session continues without this device")
	if o.State() == StateRecording {
		_, _ = o.stopLocked(o.runCtx, ReasonDeviceLost)
	}
	for _, h := range []**capture.Handle{&o.camera, &o.mic} {
		if !handleUses(*h, lost.Device) {
			continue
		}
		_ = capture.Release(*h)
		o.mu.Lock()
		*h = nil
		o.mu.Unlock()
	}
}

func handleUses(h *capture.Handle, device string) bool {
	if h == nil {
		return false
	}
	if slices.Contains(h.Devices(), device) {
		return true
	}
	return (h.Video != nil && h.Video.Device() == device) || (h.Audio != nil && h.Audio.Device() == device)
}

// Close abandons any recording in progress and releases every resource. It
// is safe to call on every exit path.
func (o *Orchestrator) Close() error {
	o.transition.Lock()
	defer o.transition.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true

	o.emitMu.Lock()
	o.mu.Lock()
	o.activeToken = ""
	o.mu.Unlock()
	o.emitMu.Unlock()

	if o.sampler != nil {
		o.sampler.Stop()
		o.sampler = nil
	}
	if o.timer != nil {
		o.timer.Cancel()
		o.timer = nil
	}
	if o.recordingAudio {
		o.recordingAudio = false
		_, _ = o.recorder.Stop()
	}
	o.releaseDevices()
	if o.cancelRun != nil {
		o.cancelRun()
	}
	return nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SessionID returns the interview-wide identifier.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.interviewID
}

// AttemptSessionID returns the scoring session id of the latest recording.
func (o *Orchestrator) AttemptSessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSession
}

// Questions returns the loaded question batch.
func (o *Orchestrator) Questions() []Question {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Question(nil), o.questions...)
}

// Current returns the active question, its index and the attempt number.
func (o *Orchestrator) Current() (Question, int, int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.index >= len(o.questions) {
		return "", o.index, o.attempt, false
	}
	return o.questions[o.index], o.index, o.attempt, true
}

// Record returns a copy of the attempts recorded for q.
func (o *Orchestrator) Record(q Question) *QuestionRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec := o.records[q.Key()]
	if rec == nil {
		return nil
	}
	cp := *rec
	cp.Attempts = append([]Attempt(nil), rec.Attempts...)
	return &cp
}

// Final returns the final result once the session is done.
func (o *Orchestrator) Final() *FinalResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.final == nil {
		return nil
	}
	cp := *o.final
	return &cp
}

// HasCamera reports whether a camera is held.
func (o *Orchestrator) HasCamera() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.camera != nil
}

// HasMicrophone reports whether a microphone is held.
func (o *Orchestrator) HasMicrophone() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mic != nil
}

// ActiveTracks counts live capture tracks across held handles.
func (o *Orchestrator) ActiveTracks() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.camera.ActiveTracks() + o.mic.ActiveTracks()
}

// MaxAttempts returns the per-question attempt limit.
func (o *Orchestrator) MaxAttempts() int {
	return o.opts.MaxAttempts
}

func (o *Orchestrator) isActive(token string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return token != "" && token == o.activeToken
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	o.state = state
	_, index, number, _ := o.currentLocked()
	o.mu.Unlock()
	o.logger.Debug("state changed",
		logging.String(logging.FieldState, string(state)),
		logging.Int(logging.FieldQuestionIndex, index),
		logging.Int(logging.FieldAttempt, number),
	)
	o.emit(Event{Kind: EventState, State: state})
}

func (o *Orchestrator) currentLocked() (Question, int, int, bool) {
	if o.index >= len(o.questions) {
		return "", o.index, o.attempt, false
	}
	return o.questions[o.index], o.index, o.attempt, true
}

func (o *Orchestrator) warn(msg, eventType string, err error, impact string, extra ...logging.Attr) {
	attrs := append([]logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldImpact, impact),
		logging.String(logging.FieldErrorHint, services.Banner(err)),
	}, extra...)
	logging.WarnWithContext(o.logger, msg, eventType, attrs...)
	o.emit(Event{Kind: EventWarning, Message: services.Banner(err), Err: err})
}

// emit stamps the current position onto ev and delivers it.
func (o *Orchestrator) emit(ev Event) {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	o.deliverLocked(ev)
}

// emitActive delivers ev only while token is the active recording.
func (o *Orchestrator) emitActive(token string, ev Event) {
	o.emitMu.Lock()
	defer o.emitMu.Unlock()
	if !o.isActive(token) {
		return
	}
	o.deliverLocked(ev)
}

func (o *Orchestrator) deliverLocked(ev Event) {
	o.mu.Lock()
	ev.Question, ev.QuestionIndex, ev.AttemptNumber, _ = o.currentLocked()
	if ev.Kind != EventState {
		ev.State = o.state
	}
	o.mu.Unlock()
	for _, obs := range o.observers {
		obs(ev)
	}
}
