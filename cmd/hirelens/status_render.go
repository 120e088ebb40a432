package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiClear  = "\x1b[2K"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
	countdownBar     = 30
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	return paint(base, statusKindColor(kind), colorize)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	return []string{paint(line, ansiBlue, colorize), paint(rule, ansiBlue, colorize)}
}

// countdownKind maps remaining recording time onto the status palette:
// 10 s or less is an error, 30 s or less a warning.
func countdownKind(remaining time.Duration) statusKind {
	switch {
	case remaining <= 10*time.Second:
		return statusError
	case remaining <= 30*time.Second:
		return statusWarn
	default:
		return statusOK
	}
}

// renderCountdown draws "● REC 01:23 [#####-----]" for the progress line.
func renderCountdown(remaining, total time.Duration, colorize bool) string {
	if remaining < 0 {
		remaining = 0
	}
	filled := 0
	if total > 0 {
		filled = int(float64(countdownBar) * float64(remaining) / float64(total))
	}
	filled = min(max(filled, 0), countdownBar)
	secs := int(remaining.Round(time.Second) / time.Second)
	line := fmt.Sprintf("● REC %02d:%02d [%s%s]", secs/60, secs%60,
		strings.Repeat("#", filled), strings.Repeat("-", countdownBar-filled))
	return paint(line, statusKindColor(countdownKind(remaining)), colorize)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
