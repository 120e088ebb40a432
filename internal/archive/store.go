package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hirelens/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrSchemaMismatch indicates the database was written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store persists completed sessions in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the archive database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.ArchivePath())
}

// OpenPath opens the archive at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start a fresh archive)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// SaveSession stores a completed session and its attempts. Saving the same
// session id twice replaces the earlier copy.
func (s *Store) SaveSession(ctx context.Context, session Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return errors.New("save session: id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM attempts WHERE session_id = ?", session.ID); err != nil {
		return fmt.Errorf("replace attempts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", session.ID); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	sc := session.Scores
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (
            id, started_at, completed_at, question_count,
            overall_score, posture_score, eye_contact_score, smile_percentage,
            answer_quality_score, overall_sentiment
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		formatTime(session.StartedAt),
		formatTime(session.CompletedAt),
		session.QuestionCount,
		sc.Overall, sc.Posture, sc.EyeContact, sc.Smile, sc.AnswerQuality, sc.Sentiment,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, a := range session.Attempts {
		as := a.Scores
		_, err := tx.ExecContext(ctx,
			`INSERT INTO attempts (
                session_id, question_index, question, attempt_number, transcript,
                overall_score, posture_score, eye_contact_score, smile_percentage,
                answer_quality_score, overall_sentiment, fallback, best, frames
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, a.QuestionIndex, a.Question, a.Number, a.Transcript,
			as.Overall, as.Posture, as.EyeContact, as.Smile, as.AnswerQuality, as.Sentiment,
			boolInt(a.Fallback), boolInt(a.Best), a.Frames,
		)
		if err != nil {
			return fmt.Errorf("insert attempt q%d/a%d: %w", a.QuestionIndex, a.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Sessions lists the most recent sessions first, without attempts. A
// non-positive limit returns every session.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	query := `SELECT id, started_at, completed_at, question_count,
        overall_score, posture_score, eye_contact_score, smile_percentage,
        answer_quality_score, overall_sentiment
        FROM sessions ORDER BY completed_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			sess               Session
			started, completed string
		)
		sc := &sess.Scores
		if err := rows.Scan(&sess.ID, &started, &completed, &sess.QuestionCount,
			&sc.Overall, &sc.Posture, &sc.EyeContact, &sc.Smile, &sc.AnswerQuality, &sc.Sentiment); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt = parseTime(started)
		sess.CompletedAt = parseTime(completed)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Session loads one session with its attempts. It returns nil when the id is
// unknown.
func (s *Store) Session(ctx context.Context, id string) (*Session, error) {
	var (
		sess               Session
		started, completed string
	)
	sc := &sess.Scores
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, completed_at, question_count,
            overall_score, posture_score, eye_contact_score, smile_percentage,
            answer_quality_score, overall_sentiment
        FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &started, &completed, &sess.QuestionCount,
		&sc.Overall, &sc.Posture, &sc.EyeContact, &sc.Smile, &sc.AnswerQuality, &sc.Sentiment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	sess.StartedAt = parseTime(started)
	sess.CompletedAt = parseTime(completed)

	rows, err := s.db.QueryContext(ctx,
		`SELECT question_index, question, attempt_number, transcript,
            overall_score, posture_score, eye_contact_score, smile_percentage,
            answer_quality_score, overall_sentiment, fallback, best, frames
        FROM attempts WHERE session_id = ?
        ORDER BY question_index, attempt_number`, id)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a              Attempt
			fallback, best int
		)
		as := &a.Scores
		if err := rows.Scan(&a.QuestionIndex, &a.Question, &a.Number, &a.Transcript,
			&as.Overall, &as.Posture, &as.EyeContact, &as.Smile, &as.AnswerQuality, &as.Sentiment,
			&fallback, &best, &a.Frames); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Fallback = fallback != 0
		a.Best = best != 0
		sess.Attempts = append(sess.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return &sess, nil
}

// Stats aggregates every archived session.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		stats     Stats
		avg, best sql.NullFloat64
		last      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), AVG(overall_score), MAX(overall_score), MAX(completed_at) FROM sessions`,
	).Scan(&stats.Sessions, &avg, &best, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("query session stats: %w", err)
	}
	stats.AverageOverall = avg.Float64
	stats.BestOverall = best.Float64
	if last.Valid {
		stats.LastCompleted = parseTime(last.String)
	}

	var fallback sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), SUM(fallback) FROM attempts`,
	).Scan(&stats.Attempts, &fallback)
	if err != nil {
		return Stats{}, fmt.Errorf("query attempt stats: %w", err)
	}
	stats.FallbackAttempts = int(fallback.Int64)
	return stats, nil
}

// Prune removes sessions completed before cutoff and reports how many were
// deleted.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := formatTime(cutoff)
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM attempts WHERE session_id IN (SELECT id FROM sessions WHERE completed_at < ?)", stamp,
	); err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE completed_at < ?", stamp)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
