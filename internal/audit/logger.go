package audit

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Actions recorded by the service.
const (
	ActionAuthorize = "authorize"
	ActionCallback  = "callback"
	ActionPublish   = "publish"
	ActionUpload    = "upload"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`  // organization id or URN
	Details   string    `json:"details,omitempty"` // Additional details
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"` // Error message if the action failed
}

// Logger writes one JSON line per event. It never records access tokens.
type Logger struct {
	out zerolog.Logger
}

// New returns an audit logger writing to w, or stdout when w is nil.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}

	return &Logger{out: zerolog.New(w).With().Str("log", "audit").Logger()}
}

// Nop discards every event.
func Nop() *Logger {
	return &Logger{out: zerolog.Nop()}
}

// Log records an audit event.
func (l *Logger) Log(action, target, details string, success bool, err error) {
	if l == nil {
		return
	}

	event := Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Target:    target,
		Details:   details,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}

	l.out.Log().
		Time("timestamp", event.Timestamp).
		Str("action", event.Action).
		Str("target", event.Target).
		Str("details", event.Details).
		Bool("success", event.Success).
		Str("error", event.Error).
		Msg("")
}
