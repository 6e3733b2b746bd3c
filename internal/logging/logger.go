// Package logging provides the small channel-backed logger shared by
// every node in the cluster, adapted from the teacher playground's
// logging package. A Logger never writes to a sink directly -- it
// pushes LoggerEntry values onto a channel, and whatever is consuming
// that channel (a console sink for condriver/clidriver, or the
// playground's tview log pane) decides how to render them. That keeps
// logging out of the way of the single-writer discipline the
// dispatcher relies on: handlers call Log and move on, they never
// block on a terminal.
package logging

import (
	"fmt"
	"time"
)

// LoggerEntry is one unit of output: one or more related lines sharing
// a single timestamp.
type LoggerEntry struct {
	Messages  []string
	Timestamp time.Time
}

// Logger prefixes every message it is given with a fixed tag (typically
// the node's role and id) before pushing it onto the shared channel.
type Logger struct {
	Logs   chan LoggerEntry
	prefix string
}

// New creates a Logger that writes onto logs, tagging every line with
// prefix.
func New(prefix string, logs chan LoggerEntry) *Logger {
	return &Logger{Logs: logs, prefix: prefix}
}

// Log emits a single line.
func (l *Logger) Log(message string) {
	l.Logs <- LoggerEntry{
		Messages:  []string{fmt.Sprintf("%s %s", l.prefix, message)},
		Timestamp: time.Now(),
	}
}

// Logf is a convenience wrapper around Log + fmt.Sprintf.
func (l *Logger) Logf(format string, args ...any) {
	l.Log(fmt.Sprintf(format, args...))
}

// LogMultiple emits several related lines as a single entry, so a
// consumer renders them together.
func (l *Logger) LogMultiple(messages []string) {
	tagged := make([]string, len(messages))
	for i, m := range messages {
		tagged[i] = fmt.Sprintf("%s %s", l.prefix, m)
	}
	l.Logs <- LoggerEntry{Messages: tagged, Timestamp: time.Now()}
}

// Debugf emits a line only when debug is true, used by components that
// take a paxosconfig.Config and want to gate trace output without an
// import cycle back into paxosconfig.
func (l *Logger) Debugf(debug bool, format string, args ...any) {
	if !debug {
		return
	}
	l.Log(fmt.Sprintf(format, args...))
}
