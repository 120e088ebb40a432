package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"hirelens/internal/archive"
	"hirelens/internal/capture"
	"hirelens/internal/config"
	"hirelens/internal/interview"
	"hirelens/internal/logging"
	"hirelens/internal/preflight"
)

type practiceOptions struct {
	auto       bool
	answerFor  time.Duration
	seconds    int
	skipChecks bool
}

func newPracticeCommand(ctx *commandContext) *cobra.Command {
	var opts practiceOptions
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run a recorded practice interview",
		Long: "Run a practice interview: each question is answered on camera and\n" +
			"microphone, scored by the HireLens service, and may be retried.\n\n" +
			"Keys while ready: s start, f fetch questions, q finish.\n" +
			"Keys while recording: s stop, Esc cancel, q stop and finish.\n" +
			"Keys after an attempt: r try again, n next question, q finish.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPractice(cmd, ctx, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.auto, "auto", false, "Answer each question once without keyboard input")
	cmd.Flags().DurationVar(&opts.answerFor, "answer-for", 0, "With --auto, stop each recording after this long instead of waiting for the timer")
	cmd.Flags().IntVar(&opts.seconds, "seconds", 0, "Override the recording time limit per attempt")
	cmd.Flags().BoolVar(&opts.skipChecks, "skip-checks", false, "Skip the preflight checks")
	return cmd
}

func runPractice(cmd *cobra.Command, ctx *commandContext, opts practiceOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if opts.seconds < 0 {
		return fmt.Errorf("--seconds must be positive")
	}
	if opts.seconds > 0 {
		cfg.Interview.AttemptSeconds = opts.seconds
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	client, err := ctx.scoringClient(true)
	if err != nil {
		return err
	}
	authCtx, err := ctx.authContext()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if !opts.skipChecks {
		failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg, client, authCtx))
		for _, r := range failed {
			fmt.Fprintln(out, renderStatusLine(r.Name, statusWarn, r.Detail, colorize))
		}
	}

	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: "session-*.log",
	})

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("allocate session id: %w", err)
	}
	sessionID := id.String()
	sessionLogger, logCloser, err := logging.OpenSessionLog(logger, cfg.Paths.LogDir, sessionID, cfg.Logging.Level)
	if err != nil {
		logging.WarnWithContext(logger, "session log unavailable", "session_log_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir is writable"),
		)
		sessionLogger = logger
	} else {
		defer logCloser.Close()
	}

	orch := interview.New(client, newProvider(cfg, sessionLogger), practiceOrchestratorOptions(ctx, cfg, sessionID, sessionLogger))
	defer orch.Close()

	session := &practiceSession{
		orch:     orch,
		in:       cmd.InOrStdin(),
		out:      out,
		colorize: colorize,
		total:    cfg.AttemptDuration(),
		opts:     opts,
	}
	err = session.run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "Session aborted.")
		return nil
	}
	if err != nil {
		logging.ErrorWithContext(sessionLogger, "practice session failed", "practice_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `hirelens doctor` and retry"),
		)
		return err
	}
	if sessionLogger != logger {
		fmt.Fprintf(out, "Session log: %s\n", filepath.Join(cfg.Paths.LogDir, logging.SessionLogName(sessionID)))
	}
	return nil
}

func newProvider(cfg *config.Config, logger *slog.Logger) capture.Provider {
	provider, err := capture.NewProvider(cfg, logger)
	if err != nil {
		logging.WarnWithContext(logger, "capture unavailable; continuing without camera and microphone", "capture_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `hirelens doctor` to inspect capture devices"),
			logging.String(logging.FieldImpact, "answers are scored without video or audio"),
		)
		return nil
	}
	return provider
}

func practiceOrchestratorOptions(ctx *commandContext, cfg *config.Config, sessionID string, logger *slog.Logger) interview.Options {
	opts := interview.OptionsFromConfig(cfg)
	opts.SessionID = sessionID
	opts.Logger = logger
	store, err := ctx.archiveStore()
	if err != nil {
		logging.WarnWithContext(logger, "session archive unavailable", "archive_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this session will not appear in local history"),
		)
		return opts
	}
	opts.Archive = archiver(store)
	return opts
}

// archiver keeps a nil store from becoming a non-nil interface.
func archiver(store *archive.Store) interview.Archiver {
	if store == nil {
		return nil
	}
	return store
}

type practiceSession struct {
	orch     *interview.Orchestrator
	in       io.Reader
	out      io.Writer
	colorize bool
	total    time.Duration
	opts     practiceOptions
}

func (s *practiceSession) run(ctx context.Context) error {
	out := s.out
	raw := false
	if !s.opts.auto {
		if restore, ok := enterRawMode(s.in); ok {
			defer restore()
			raw = true
			out = crlfWriter{w: out}
		}
	}

	sink := newEventSink(256)
	s.orch.Subscribe(sink.push)
	renderer := newSessionRenderer(out, s.colorize, raw || isTerminal(s.out), s.total, s.orch)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		renderer.run(sink.events())
		return nil
	})
	g.Go(func() error {
		defer sink.close()
		if err := s.orch.Initialize(gctx); err != nil {
			return err
		}
		if s.opts.auto {
			return runAuto(gctx, s.orch, s.opts.answerFor)
		}
		keys := make(chan byte, 64)
		go readKeys(s.in, keys)
		return runInteractive(gctx, s.orch, keys, sink)
	})
	return g.Wait()
}

func enterRawMode(in io.Reader) (func(), bool) {
	file, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return nil, false
	}
	state, err := term.MakeRaw(int(file.Fd()))
	if err != nil {
		return nil, false
	}
	return func() { _ = term.Restore(int(file.Fd()), state) }, true
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// readKeys forwards input bytes until the reader fails, then closes keys.
func readKeys(r io.Reader, keys chan<- byte) {
	defer close(keys)
	buf := make([]byte, 32)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			keys <- b
		}
		if err != nil {
			return
		}
	}
}

const (
	keyCtrlC = 0x03
	keyCtrlD = 0x04
	keyEsc   = 0x1b
)

func runInteractive(ctx context.Context, orch *interview.Orchestrator, keys <-chan byte, sink *eventSink) error {
	for orch.State() != interview.StateDone {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-keys:
			if !ok || key == keyCtrlD {
				_, err := orch.Complete(ctx)
				return err
			}
			if key == keyCtrlC {
				return context.Canceled
			}
			if err := handleKey(ctx, orch, key); err != nil {
				if errors.Is(err, interview.ErrClosed) {
					return err
				}
				sink.push(interview.Event{Kind: interview.EventWarning, Message: err.Error()})
			}
		}
	}
	return nil
}

// handleKey maps one key press onto the transition valid in the current state.
// Keys with no meaning in that state are ignored.
func handleKey(ctx context.Context, orch *interview.Orchestrator, key byte) error {
	switch orch.State() {
	case interview.StateReady:
		switch key {
		case 's', ' ', '\r':
			return orch.Start(ctx)
		case 'f':
			return orch.FetchQuestions(ctx)
		case 'q', keyEsc:
			_, err := orch.Complete(ctx)
			return err
		}
	case interview.StateRecording:
		switch key {
		case 's', ' ', '\r':
			_, err := orch.Stop(ctx, interview.ReasonManual)
			return err
		case keyEsc:
			_, err := orch.Stop(ctx, interview.ReasonEscape)
			return err
		case 'q':
			_, err := orch.Complete(ctx)
			return err
		}
	case interview.StateAttemptCompleted:
		switch key {
		case 'r':
			return orch.TryAgain(ctx)
		case 'n', ' ', '\r':
			return orch.NextQuestion(ctx)
		case 'q', keyEsc:
			_, err := orch.Complete(ctx)
			return err
		}
	}
	return nil
}

const autoPollInterval = 20 * time.Millisecond

// runAuto answers every question once. Each recording ends after answerFor,
// or on the countdown when answerFor is zero.
func runAuto(ctx context.Context, orch *interview.Orchestrator, answerFor time.Duration) error {
	if len(orch.Questions()) == 0 {
		_, err := orch.Complete(ctx)
		return err
	}
	for orch.State() != interview.StateDone {
		if err := orch.Start(ctx); err != nil {
			return err
		}
		if err := waitWhileRecording(ctx, orch, answerFor); err != nil {
			return err
		}
		if orch.State() == interview.StateRecording {
			if _, err := orch.Stop(ctx, interview.ReasonManual); err != nil {
				return err
			}
		}
		if err := orch.NextQuestion(ctx); err != nil {
			return err
		}
	}
	return nil
}

func waitWhileRecording(ctx context.Context, orch *interview.Orchestrator, limit time.Duration) error {
	var deadline <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(autoPollInterval)
	defer ticker.Stop()
	for orch.State() == interview.StateRecording {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
