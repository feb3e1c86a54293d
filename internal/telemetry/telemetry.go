// Package telemetry provides the engine's structured logging and
// per-round timing instrumentation, adapted from the perf-analysis
// reference repo's pkg/utils logger (itself a stand-in for the original
// dlog::Timer round instrumentation) onto the exchange-round loop (§5,
// §6 log-level/log-format flags).
package telemetry

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String renders the level the way log.format=text lines expect.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a config/CLI level string, defaulting to info on
// anything unrecognized.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the structured logging surface used throughout the engine.
// Block- and round-scoped code chains WithFields to attach gid/round
// context rather than interpolating it into the message.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// Format selects the line encoding of the default logger.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat parses a config/CLI format string, defaulting to text.
func ParseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatText
}

// logger is the engine's default Logger implementation: one line per
// call, fields rendered inline (text) or as a JSON object (json).
type logger struct {
	mu     sync.Mutex
	level  Level
	format Format
	output io.Writer
	fields map[string]interface{}
}

// New returns a Logger writing level-filtered lines to output.
func New(level Level, format Format, output io.Writer) Logger {
	return &logger{
		level:  level,
		format: format,
		output: output,
		fields: make(map[string]interface{}),
	}
}

// NewFromConfig is the usual construction path: level/format strings as
// they arrive from internal/config, writing to stderr.
func NewFromConfig(levelStr, formatStr string) Logger {
	return New(ParseLevel(levelStr), ParseFormat(formatStr), os.Stderr)
}

func (l *logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }
func (l *logger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args...) }
func (l *logger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args...) }
func (l *logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

func (l *logger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	next := &logger{
		level:  l.level,
		format: l.format,
		output: l.output,
		fields: make(map[string]interface{}, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		next.fields[k] = v
	}
	for k, v := range fields {
		next.fields[k] = v
	}
	return next
}

func (l *logger) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	formatted := fmt.Sprintf(msg, args...)
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")

	var line string
	if l.format == FormatJSON {
		line = l.renderJSON(ts, level, formatted)
	} else {
		line = l.renderText(ts, level, formatted)
	}
	_, _ = l.output.Write([]byte(line))
}

func (l *logger) renderText(ts string, level Level, msg string) string {
	fieldStr := ""
	for k, v := range l.fields {
		fieldStr += fmt.Sprintf(" %s=%v", k, v)
	}
	return fmt.Sprintf("[%s] [%s]%s %s\n", ts, level.String(), fieldStr, msg)
}

func (l *logger) renderJSON(ts string, level Level, msg string) string {
	var b []byte
	b = append(b, '{')
	b = appendJSONField(b, "ts", ts, true)
	b = appendJSONField(b, "level", level.String(), false)
	b = appendJSONField(b, "msg", msg, false)
	for k, v := range l.fields {
		b = appendJSONField(b, k, fmt.Sprintf("%v", v), false)
	}
	b = append(b, '}', '\n')
	return string(b)
}

func appendJSONField(b []byte, key, value string, first bool) []byte {
	if !first {
		b = append(b, ',')
	}
	b = append(b, '"')
	b = append(b, key...)
	b = append(b, '"', ':', '"')
	b = append(b, value...)
	b = append(b, '"')
	return b
}

// Null discards everything; used by components that take a Logger but
// whose callers don't care (tests, tools that only emit files).
type Null struct{}

func (Null) Debug(string, ...interface{})               {}
func (Null) Info(string, ...interface{})                {}
func (Null) Warn(string, ...interface{})                {}
func (Null) Error(string, ...interface{})               {}
func (n Null) WithField(string, interface{}) Logger     { return n }
func (n Null) WithFields(map[string]interface{}) Logger { return n }

// RoundTimer measures one exchange round's wall-clock duration and logs
// it on Stop, the way the original engine's round instrumentation
// reports per-round cost for performance triage (§5 "round-based
// block-parallel" loop).
type RoundTimer struct {
	log     Logger
	round   int
	started time.Time
}

// StartRound begins timing round, logging its start at debug level.
func StartRound(log Logger, round int) *RoundTimer {
	t := &RoundTimer{log: log.WithField("round", round), round: round, started: time.Now()}
	t.log.Debug("round %d started", round)
	return t
}

// Stop logs the round's elapsed duration along with any extra fields
// (e.g. active block count, messages sent).
func (t *RoundTimer) Stop(extra map[string]interface{}) time.Duration {
	elapsed := time.Since(t.started)
	fields := map[string]interface{}{"elapsed_ms": elapsed.Milliseconds()}
	for k, v := range extra {
		fields[k] = v
	}
	t.log.WithFields(fields).Info("round %d finished", t.round)
	return elapsed
}
