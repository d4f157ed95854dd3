// Package logging provides the manager's leveled logger, plus a
// context-carrying wrapper that threads sensor handle, client id, and
// request op through nested log calls the way a request-scoped logger
// does in a server. NewLogger backs the "standard" Config.LogBackend;
// zap.go backs "zap".
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Interface is the logging surface the manager depends on, satisfied by
// both the standard Logger and the zap-backed adapter so Config.LogBackend
// can swap implementations without touching call sites.
type Interface interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	WithSensor(handle uint32) Interface
	WithClient(client uint32) Interface
	WithRequest(handle uint32, op string) Interface
	WithError(err error) Interface
}

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var levelColors = map[LogLevel]string{
	LevelDebug: "\x1b[36m",
	LevelInfo:  "\x1b[32m",
	LevelWarn:  "\x1b[33m",
	LevelError: "\x1b[31m",
}

const colorReset = "\x1b[0m"

// Config holds logging configuration for the standard logger.
type Config struct {
	Level   LogLevel
	Format  string // "text" or "json"
	Output  io.Writer
	Sync    bool // force a write per call instead of relying on buffering
	NoColor bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// Logger wraps a destination writer with level filtering and a small set
// of named context fields (sensor handle, client id, request op, error)
// that accumulate across With* calls.
type Logger struct {
	config *Config
	mu     *sync.Mutex
	fields []field
}

type field struct {
	key string
	val any
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// NewLogger creates a new Logger. A nil config uses DefaultConfig.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Output == nil {
		config.Output = os.Stderr
	}
	if config.Format == "" {
		config.Format = "text"
	}
	return &Logger{config: config, mu: &sync.Mutex{}}
}

// Default returns the default logger, creating one if necessary.
func Default() *Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger used by the package-level functions.
func SetDefault(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

func (l *Logger) with(key string, val any) *Logger {
	next := make([]field, len(l.fields), len(l.fields)+1)
	copy(next, l.fields)
	next = append(next, field{key, val})
	return &Logger{config: l.config, mu: l.mu, fields: next}
}

// WithSensor returns a Logger that annotates every message with the
// sensor's handle.
func (l *Logger) WithSensor(handle uint32) Interface {
	return l.with("sensor_handle", handle)
}

// WithClient returns a Logger that annotates every message with a client id.
func (l *Logger) WithClient(client uint32) Interface {
	return l.with("client_id", client)
}

// WithRequest returns a Logger that annotates every message with a sensor
// handle and the in-flight operation name.
func (l *Logger) WithRequest(handle uint32, op string) Interface {
	return l.with("op", op).with("sensor_handle", handle)
}

// WithError returns a Logger that annotates every message with an error.
func (l *Logger) WithError(err error) Interface {
	return l.with("error", err)
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if level < l.config.Level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config.Format == "json" {
		fmt.Fprintf(l.config.Output, `{"level":%q,"msg":%q`, levelNames[level], msg)
		for _, f := range l.fields {
			fmt.Fprintf(l.config.Output, `,%q:%q`, f.key, fmt.Sprint(f.val))
		}
		for i := 0; i < len(args); i += 2 {
			if i+1 < len(args) {
				fmt.Fprintf(l.config.Output, `,%q:%q`, fmt.Sprint(args[i]), fmt.Sprint(args[i+1]))
			}
		}
		fmt.Fprintln(l.config.Output, "}")
		return
	}

	prefix := "[" + levelNames[level] + "]"
	if !l.config.NoColor {
		prefix = levelColors[level] + prefix + colorReset
	}
	ctx := ""
	for _, f := range l.fields {
		ctx += fmt.Sprintf(" %s=%v", f.key, f.val)
	}
	fmt.Fprintf(l.config.Output, "%s %s%s%s\n", prefix, msg, ctx, formatArgs(args))
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// Debugf logs a printf-style message at debug level.
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, fmt.Sprintf(format, args...)) }

// Infof logs a printf-style message at info level.
func (l *Logger) Infof(format string, args ...any) { l.log(LevelInfo, fmt.Sprintf(format, args...)) }

// Warnf logs a printf-style message at warn level.
func (l *Logger) Warnf(format string, args ...any) { l.log(LevelWarn, fmt.Sprintf(format, args...)) }

// Errorf logs a printf-style message at error level.
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, fmt.Sprintf(format, args...)) }

// Global convenience functions operating on Default().

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
