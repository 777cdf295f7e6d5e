package extractor

import (
	"fmt"
	"io"
)

// severity classifies a log line by the prefix convention spec.md §6.3
// assigns it, and doubles as the LogLevel rank required to let it through
// to the GUI callback.
type severity int

const (
	sevInfo severity = iota
	sevSkip
	sevWarning
	sevError
	sevCompletion
)

// requiredLevel is the minimum LogLevel that allows a message of this
// severity through to the GUI callback. The side log always receives
// every line regardless of level.
func (s severity) requiredLevel() LogLevel {
	switch s {
	case sevCompletion:
		return LogMinimal
	case sevError:
		return LogError
	case sevWarning:
		return LogWarnings
	default:
		return LogFull
	}
}

// runLog fans a message out to the always-on side-log file and, subject to
// the configured LogLevel, the GUI log callback.
type runLog struct {
	level   LogLevel
	sideLog io.Writer
	cb      func(string)
}

func (l *runLog) emit(sev severity, message string) {
	if l.sideLog != nil {
		fmt.Fprintln(l.sideLog, message)
	}
	if l.cb == nil || l.level < sev.requiredLevel() {
		return
	}
	l.cb(message)
}

func (l *runLog) info(format string, args ...any) {
	l.emit(sevInfo, fmt.Sprintf(format, args...))
}

func (l *runLog) skip(name, reason string) {
	l.emit(sevSkip, fmt.Sprintf("⏭️ Skipping (%s): %s", reason, name))
}

func (l *runLog) warning(format string, args ...any) {
	l.emit(sevWarning, "⚠️ "+fmt.Sprintf(format, args...))
}

func (l *runLog) errorf(format string, args ...any) {
	l.emit(sevError, "❌ "+fmt.Sprintf(format, args...))
}

func (l *runLog) completion(format string, args ...any) {
	l.emit(sevCompletion, "✅ "+fmt.Sprintf(format, args...))
}
