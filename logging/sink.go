package logging

import (
	"context"
	"sync"
	"time"
)

// Severity is the level attached to a sink entry.
type Severity int

const (
	// SeverityInfo marks informational entries.
	SeverityInfo Severity = iota
	// SeverityError marks error entries.
	SeverityError
)

// String returns the upper case severity name.
func (s Severity) String() string {
	if s == SeverityError {
		return "ERROR"
	}
	return "INFO"
}

// Entry is a single sink record.
type Entry struct {
	Severity  Severity
	Message   string
	Timestamp time.Time
}

// Sink receives severity tagged, preformatted messages. Implementations must
// not block the caller for long and must swallow their own failures.
type Sink interface {
	Log(ctx context.Context, severity Severity, msg string)
}

// LoggerSink forwards entries to a Logger.
type LoggerSink struct {
	logger Logger
}

// NewLoggerSink creates a sink writing to logger (NoOpLogger when nil).
func NewLoggerSink(logger Logger) *LoggerSink {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &LoggerSink{logger: logger}
}

// Log implements Sink.
func (s *LoggerSink) Log(_ context.Context, severity Severity, msg string) {
	if severity == SeverityError {
		s.logger.Error(msg)
		return
	}
	s.logger.Info(msg)
}

// MemorySink keeps entries in memory. It is safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Log implements Sink.
func (s *MemorySink) Log(_ context.Context, severity Severity, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Severity: severity, Message: msg, Timestamp: time.Now().UTC()})
}

// Entries returns a copy of the recorded entries.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Messages returns the recorded messages in order.
func (s *MemorySink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Message
	}
	return out
}

// Reset drops all recorded entries.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// MultiSink fans out every entry to all wrapped sinks.
type MultiSink []Sink

// Log implements Sink.
func (m MultiSink) Log(ctx context.Context, severity Severity, msg string) {
	for _, s := range m {
		if s != nil {
			s.Log(ctx, severity, msg)
		}
	}
}
