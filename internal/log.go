package internal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// Logger provides leveled logging on top of zerolog
type Logger struct {
	level LogLevel
	zlog  zerolog.Logger
}

// NewLogger creates a new console logger with the specified level
func NewLogger(level LogLevel) *Logger {
	return NewLoggerWithWriter(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// NewLoggerWithWriter creates a logger writing to w
func NewLoggerWithWriter(level LogLevel, w io.Writer) *Logger {
	zlog := zerolog.New(w).With().Timestamp().Logger().Level(zerologLevel(level))
	return &Logger{level: level, zlog: zlog}
}

// NewDefaultLogger creates a logger based on LOG_LEVEL and LOG_FORMAT environment variables
func NewDefaultLogger() *Logger {
	return NewLoggerWithFormat(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// NewLoggerWithFormat creates a logger from a level name and an output format ("json" or console)
func NewLoggerWithFormat(level, format string) *Logger {
	if strings.EqualFold(format, "json") {
		return NewLoggerWithWriter(ParseLogLevel(level), os.Stderr)
	}
	return NewLogger(ParseLogLevel(level))
}

// ParseLogLevel maps ERROR/WARN/INFO/DEBUG/TRACE to a LogLevel, defaulting to INFO
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelTrace:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Trace logs trace messages
func (l *Logger) Trace(format string, args ...interface{}) {
	l.zlog.Trace().Msgf(format, args...)
}

// With returns a child logger carrying the given key/value fields
func (l *Logger) With(keyvals ...interface{}) *Logger {
	ctx := l.zlog.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(keyvals[i]), keyvals[i+1])
	}
	return &Logger{level: l.level, zlog: ctx.Logger()}
}

// Zerolog exposes the underlying logger for libraries that take one
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()
