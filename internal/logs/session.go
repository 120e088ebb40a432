package logs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hirelens/internal/logging"
)

// ErrNoSessionLogs is returned when the log directory holds no session logs.
var ErrNoSessionLogs = errors.New("no session logs found")

// SessionLog describes one session log file.
type SessionLog struct {
	SessionID string
	Path      string
	Modified  time.Time
	Size      int64
}

// SessionLogs lists session logs in dir, newest first.
func SessionLogs(dir string) ([]SessionLog, error) {
	matches, err := filepath.Glob(filepath.Join(dir, logging.SessionLogName("*")))
	if err != nil {
		return nil, fmt.Errorf("list session logs: %w", err)
	}
	logs := make([]SessionLog, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		name := filepath.Base(path)
		id := strings.TrimSuffix(strings.TrimPrefix(name, "session-"), ".log")
		logs = append(logs, SessionLog{SessionID: id, Path: path, Modified: info.ModTime(), Size: info.Size()})
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Modified.After(logs[j].Modified)
	})
	return logs, nil
}

// Resolve returns the log for sessionID, accepting a unique prefix. An empty
// id selects the most recent session.
func Resolve(dir, sessionID string) (SessionLog, error) {
	logs, err := SessionLogs(dir)
	if err != nil {
		return SessionLog{}, err
	}
	if len(logs) == 0 {
		return SessionLog{}, ErrNoSessionLogs
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return logs[0], nil
	}
	var found []SessionLog
	for _, l := range logs {
		if l.SessionID == sessionID {
			return l, nil
		}
		if strings.HasPrefix(l.SessionID, sessionID) {
			found = append(found, l)
		}
	}
	switch len(found) {
	case 0:
		return SessionLog{}, fmt.Errorf("no session log matches %q", sessionID)
	case 1:
		return found[0], nil
	default:
		return SessionLog{}, fmt.Errorf("session id %q is ambiguous (%d matches)", sessionID, len(found))
	}
}

var recordKeys = map[string]struct{}{
	"ts":                   {},
	"level":                {},
	"msg":                  {},
	logging.FieldComponent: {},
	logging.FieldSessionID: {},
	logging.FieldEventType: {},
	logging.FieldErrorHint: {},
	logging.FieldImpact:    {},
}

// FormatLine renders one JSON record as
// "15:04:05 WARN  interview: message (event_type) key=value ...".
// Lines that are not JSON objects are returned unchanged.
func FormatLine(raw string) string {
	var record map[string]any
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return raw
	}

	var b strings.Builder
	if ts, ok := record["ts"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ts = parsed.Local().Format("15:04:05")
		}
		b.WriteString(ts)
		b.WriteByte(' ')
	}
	level, _ := record["level"].(string)
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(level))
	if component, ok := record[logging.FieldComponent].(string); ok && component != "" {
		b.WriteString(component)
		b.WriteString(": ")
	}
	msg, _ := record["msg"].(string)
	b.WriteString(msg)
	if eventType, ok := record[logging.FieldEventType].(string); ok && eventType != "" {
		fmt.Fprintf(&b, " (%s)", eventType)
	}

	keys := make([]string, 0, len(record))
	for k := range record {
		if _, skip := recordKeys[k]; !skip {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, record[k])
	}
	if hint, ok := record[logging.FieldErrorHint].(string); ok && hint != "" {
		fmt.Fprintf(&b, " hint=%q", hint)
	}
	return b.String()
}
