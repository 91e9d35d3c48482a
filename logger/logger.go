// Package logger provides leveled, structured logging shared by all
// components. Output is one line per entry, JSON or plain text.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents the severity of a log entry
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string log level, defaulting to INFO.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "DEBUG", "debug":
		return DEBUG, nil
	case "INFO", "info", "":
		return INFO, nil
	case "WARN", "warn", "WARNING", "warning":
		return WARN, nil
	case "ERROR", "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", s)
	}
}

type entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Logger writes leveled entries with a fixed component tag and optional
// per-entry fields. Safe for concurrent use.
type Logger struct {
	mu        sync.Mutex
	level     Level
	out       io.Writer
	component string
	fields    map[string]interface{}
	json      bool
}

var (
	defaultMu    sync.Mutex
	defaultLevel = INFO
)

// SetDefaultLevel sets the level new loggers start at. Call it once at
// startup before components construct their loggers.
func SetDefaultLevel(level Level) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLevel = level
}

// New creates a text-format logger writing to stdout at the default
// level.
func New(component string) *Logger {
	defaultMu.Lock()
	level := defaultLevel
	defaultMu.Unlock()
	return &Logger{
		level:     level,
		out:       os.Stdout,
		component: component,
	}
}

// SetLevel sets the minimum level written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects output, mainly for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// SetJSONFormat switches between JSON and plain text lines.
func (l *Logger) SetJSONFormat(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.json = enabled
}

// WithField returns a child logger that attaches key=value to every entry.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	child := &Logger{
		level:     l.level,
		out:       l.out,
		component: l.component,
		json:      l.json,
		fields:    make(map[string]interface{}, len(l.fields)+1),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	child.fields[key] = value
	return child
}

func (l *Logger) log(level Level, msg string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	e := entry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Component: l.component,
		Message:   msg,
		Fields:    l.fields,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if l.json {
		if b, merr := json.Marshal(e); merr == nil {
			fmt.Fprintln(l.out, string(b))
		}
		return
	}
	line := fmt.Sprintf("[%s] [%s]", e.Timestamp.Format("2006-01-02 15:04:05"), e.Level)
	if e.Component != "" {
		line += fmt.Sprintf(" [%s]", e.Component)
	}
	line += " " + e.Message
	for k, v := range e.Fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	if e.Error != "" {
		line += " error=" + e.Error
	}
	fmt.Fprintln(l.out, line)
}

func (l *Logger) Debug(msg string) { l.log(DEBUG, msg, nil) }
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DEBUG, fmt.Sprintf(format, args...), nil)
}
func (l *Logger) Info(msg string) { l.log(INFO, msg, nil) }
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}
func (l *Logger) Warn(msg string) { l.log(WARN, msg, nil) }
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARN, fmt.Sprintf(format, args...), nil)
}
func (l *Logger) Error(msg string, err error) { l.log(ERROR, msg, err) }
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}
