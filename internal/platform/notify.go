package platform

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notice is a transient message for the user.
type Notice struct {
	Level   Level
	Message string
}

// Notifier shows fire-and-forget notifications. Implementations must not
// block and never report failure.
type Notifier interface {
	Notify(n Notice)
}

// LogNotifier forwards notices to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	if l.Logger == nil {
		return
	}
	if n.Level == LevelError {
		l.Logger.Error(n.Message)
		return
	}
	l.Logger.Info(n.Message)
}

// WriterNotifier prints notices as lines, e.g. to stderr.
type WriterNotifier struct {
	mu sync.Mutex
	W  io.Writer
}

func (w *WriterNotifier) Notify(n Notice) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintf(w.W, "[%s] %s\n", n.Level, n.Message)
}

// RecordingNotifier keeps every notice. It is safe for concurrent use.
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *RecordingNotifier) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *RecordingNotifier) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}
