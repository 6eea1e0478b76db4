// Package logger provides structured logging for the portfolio analytics
// services: leveled JSON or text lines, typed fields and context propagation.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"
)

// Level is a message severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	levelOff
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l >= levelOff {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel is case-insensitive. Unknown values mean Info.
func ParseLevel(s string) Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		return LevelWarn
	}
	if i := slices.Index(levelNames[:], s); i >= 0 {
		return Level(i)
	}
	return LevelInfo
}

// Format selects the line encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat is case-insensitive. Unknown values mean JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}

// ─────────────────────────────────────────────────────────────────────────────
// Fields
// ─────────────────────────────────────────────────────────────────────────────

// Field is one key/value pair of a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field  { return Field{key, value} }
func Int(key string, value int) Field { return Field{key, value} }
func Bool(key string, v bool) Field   { return Field{key, v} }
func Any(key string, value any) Field { return Field{key, value} }

// Duration renders d with time.Duration.String.
func Duration(key string, d time.Duration) Field { return Field{key, d.String()} }

// Err records err under "error". A nil error is logged as null.
func Err(err error) Field {
	if err == nil {
		return Field{"error", nil}
	}
	return Field{"error", err.Error()}
}

// Domain field helpers.
func TraineeID(id string) Field       { return String("trainee_id", id) }
func Questionnaire(code string) Field { return String("questionnaire", code) }
func SummaryKind(kind string) Field   { return String("summary_kind", kind) }
func RunID(id string) Field           { return String("run_id", id) }
func Component(name string) Field     { return String("component", name) }
func Latency(d time.Duration) Field   { return Duration("latency", d) }

// ─────────────────────────────────────────────────────────────────────────────
// Logger
// ─────────────────────────────────────────────────────────────────────────────

// LogEntry is the JSON shape of one line.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Caller    string         `json:"caller,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Options configures New.
type Options struct {
	Output     io.Writer
	Level      Level
	Format     Format
	AddCaller  bool
	CallerSkip int
}

// sink is shared by a logger and everything derived from it.
type sink struct {
	mu         sync.Mutex
	out        io.Writer
	format     Format
	caller     bool
	callerSkip int
}

// Logger writes leveled, structured lines. It is safe for concurrent use and
// cheap to derive.
type Logger struct {
	sink   *sink
	level  Level
	fields []Field
}

// New builds a logger. Output defaults to stdout, Format to JSON.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	return &Logger{
		sink: &sink{
			out:        opts.Output,
			format:     opts.Format,
			caller:     opts.AddCaller,
			callerSkip: opts.CallerSkip,
		},
		level: opts.Level,
	}
}

// Default writes JSON at Info to stdout with callers.
func Default() *Logger {
	return New(Options{Level: LevelInfo, AddCaller: true})
}

// Nop discards everything.
func Nop() *Logger {
	return New(Options{Output: io.Discard, Level: levelOff})
}

// With returns a child logger that adds fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{sink: l.sink, level: l.level, fields: slices.Concat(l.fields, fields)}
}

// Named tags the child logger with a component name.
func (l *Logger) Named(component string) *Logger {
	return l.With(Component(component))
}

// WithLevel returns a child logger with another threshold.
func (l *Logger) WithLevel(level Level) *Logger {
	return &Logger{sink: l.sink, level: level, fields: l.fields}
}

// WithRequestID tags the child logger with a request ID.
func (l *Logger) WithRequestID(id string) *Logger {
	return l.With(String("request_id", id))
}

// Enabled reports whether lines at level are written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

// write must be called directly from the level methods so the caller frame
// depth stays fixed.
func (l *Logger) write(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}

	e := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
	}
	if l.sink.caller {
		if _, file, line, ok := runtime.Caller(2 + l.sink.callerSkip); ok {
			e.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}
	if n := len(l.fields) + len(fields); n > 0 {
		e.Fields = make(map[string]any, n)
		for _, f := range l.fields {
			e.Fields[f.Key] = f.Value
		}
		for _, f := range fields {
			e.Fields[f.Key] = f.Value
		}
	}

	var line []byte
	if l.sink.format == FormatText {
		line = []byte(e.text())
	} else if b, err := json.Marshal(e); err == nil {
		line = b
	} else {
		line = fmt.Appendf(nil, "%s %s %s (unencodable fields: %v)", e.Timestamp, e.Level, msg, err)
	}
	line = append(line, '\n')

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = l.sink.out.Write(line)
}

// text renders "ts LEVEL message k=v ..." with keys sorted.
func (e LogEntry) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", e.Timestamp, e.Level, e.Message)
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	if e.Caller != "" {
		b.WriteString(" caller=" + e.Caller)
	}
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Context
// ─────────────────────────────────────────────────────────────────────────────

type ctxKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the attached logger, or Default when there is none.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
