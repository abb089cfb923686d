package model

import (
	"io"
	"log"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// Logger is the sink a single reconstruction writes to. A nil *Logger is
// valid and discards everything, so stages never check before logging.
type Logger struct {
	ops   *log.Logger
	diag  *log.Logger
	trace *log.Logger
}

// NewLogger creates a Logger. Pass nil for any writer to disable that stream.
func NewLogger(prefix string, w LogWriters) *Logger {
	return &Logger{
		ops:   newStream(prefix, w.Ops),
		diag:  newStream(prefix, w.Diag),
		trace: newStream(prefix, w.Trace),
	}
}

func newStream(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream (failures, fallbacks, budget exhaustion).
func (l *Logger) Opsf(format string, args ...interface{}) {
	if l != nil && l.ops != nil {
		l.ops.Printf(format, args...)
	}
}

// Diagf logs to the diag stream (per-stage summaries, tuning context).
func (l *Logger) Diagf(format string, args ...interface{}) {
	if l != nil && l.diag != nil {
		l.diag.Printf(format, args...)
	}
}

// DiagEnabled reports whether Diagf writes anywhere.
func (l *Logger) DiagEnabled() bool {
	return l != nil && l.diag != nil
}

// Tracef logs to the trace stream (per-element decisions).
func (l *Logger) Tracef(format string, args ...interface{}) {
	if l != nil && l.trace != nil {
		l.trace.Printf(format, args...)
	}
}
