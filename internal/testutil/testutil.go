// Package testutil holds shared test fakes used across package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
)

// LogEntry is one captured log call.
type LogEntry struct {
	Level   string
	Message string
	Fields  []logging.Field
}

// logSink is the entry store shared between a capture logger and the
// children created by With and Named.
type logSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// CaptureLogger is a logging.Logger that records every call, for asserting
// on log output in tests.  Child loggers share the parent's sink.
type CaptureLogger struct {
	sink *logSink
	with []logging.Field
}

// NewCaptureLogger returns an empty capture logger.
func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{sink: &logSink{}}
}

func (c *CaptureLogger) record(level, msg string, fields []logging.Field) {
	all := append(append([]logging.Field{}, c.with...), fields...)
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	c.sink.entries = append(c.sink.entries, LogEntry{Level: level, Message: msg, Fields: all})
}

func (c *CaptureLogger) Debug(msg string, fields ...logging.Field) { c.record("debug", msg, fields) }
func (c *CaptureLogger) Info(msg string, fields ...logging.Field)  { c.record("info", msg, fields) }
func (c *CaptureLogger) Warn(msg string, fields ...logging.Field)  { c.record("warn", msg, fields) }
func (c *CaptureLogger) Error(msg string, fields ...logging.Field) { c.record("error", msg, fields) }
func (c *CaptureLogger) Fatal(msg string, fields ...logging.Field) { c.record("fatal", msg, fields) }

// With returns a child sharing the same entry sink.
func (c *CaptureLogger) With(fields ...logging.Field) logging.Logger {
	return &CaptureLogger{
		sink: c.sink,
		with: append(append([]logging.Field{}, c.with...), fields...),
	}
}

// Named returns a child sharing the same entry sink.
func (c *CaptureLogger) Named(string) logging.Logger {
	return &CaptureLogger{sink: c.sink, with: c.with}
}

// Entries returns a snapshot of the recorded calls.
func (c *CaptureLogger) Entries() []LogEntry {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	out := make([]LogEntry, len(c.sink.entries))
	copy(out, c.sink.entries)
	return out
}

// Messages returns the recorded messages at a level, or all levels when
// level is empty.
func (c *CaptureLogger) Messages(level string) []string {
	var out []string
	for _, e := range c.Entries() {
		if level == "" || e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// ScriptedOracle dispatches requests to per-task handlers, recording every
// request it sees.  Tasks without a handler fall through to Default.
type ScriptedOracle struct {
	mu       sync.Mutex
	requests []*calc.Request

	Handlers map[calc.Task]func(*calc.Request) (*calc.Result, error)
	Default  func(*calc.Request) (*calc.Result, error)
}

// NewScriptedOracle returns an oracle with no handlers; callers populate
// Handlers and Default as the test requires.
func NewScriptedOracle() *ScriptedOracle {
	return &ScriptedOracle{Handlers: map[calc.Task]func(*calc.Request) (*calc.Result, error){}}
}

func (s *ScriptedOracle) Run(_ context.Context, req *calc.Request) (*calc.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if h, ok := s.Handlers[req.Task]; ok {
		return h(req)
	}
	if s.Default != nil {
		return s.Default(req)
	}
	return &calc.Result{TerminatedNormally: false}, nil
}

// Requests returns a snapshot of every request seen so far.
func (s *ScriptedOracle) Requests() []*calc.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*calc.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

var _ logging.Logger = (*CaptureLogger)(nil)
var _ calc.Oracle = (*ScriptedOracle)(nil)
