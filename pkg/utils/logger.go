// ABOUTME: Structured logging implementation using zerolog
// ABOUTME: Provides a consistent logging interface throughout the application

package utils

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/taskerd/tasker/pkg/types"
)

// LogLevel represents logging levels
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Logger wraps zerolog.Logger to implement our Logger interface
type Logger struct {
	logger zerolog.Logger
}

// LogEvent wraps zerolog.Event to implement our LogEvent interface
type LogEvent struct {
	event *zerolog.Event
}

// LogContext wraps zerolog.Context to implement our LogContext interface
type LogContext struct {
	context zerolog.Context
}

func globalLevel(level LogLevel) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new human-readable structured logger
func NewLogger(level LogLevel, output io.Writer) types.Logger {
	if output == nil {
		output = os.Stderr
	}
	zerolog.SetGlobalLevel(globalLevel(level))

	consoleWriter := zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}

	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()
	return &Logger{logger: logger}
}

// NewJSONLogger creates a new JSON logger for structured output
func NewJSONLogger(level LogLevel, output io.Writer) types.Logger {
	if output == nil {
		output = os.Stderr
	}
	zerolog.SetGlobalLevel(globalLevel(level))

	logger := zerolog.New(output).With().Timestamp().Logger()
	return &Logger{logger: logger}
}

func (l *Logger) Debug() types.LogEvent { return &LogEvent{event: l.logger.Debug()} }
func (l *Logger) Info() types.LogEvent  { return &LogEvent{event: l.logger.Info()} }
func (l *Logger) Warn() types.LogEvent  { return &LogEvent{event: l.logger.Warn()} }
func (l *Logger) Error() types.LogEvent { return &LogEvent{event: l.logger.Error()} }

func (l *Logger) With() types.LogContext { return &LogContext{context: l.logger.With()} }

func (e *LogEvent) Str(key, val string) types.LogEvent {
	e.event = e.event.Str(key, val)
	return e
}

func (e *LogEvent) Int(key string, val int) types.LogEvent {
	e.event = e.event.Int(key, val)
	return e
}

func (e *LogEvent) Dur(key string, val time.Duration) types.LogEvent {
	e.event = e.event.Dur(key, val)
	return e
}

func (e *LogEvent) Err(err error) types.LogEvent {
	e.event = e.event.Err(err)
	return e
}

func (e *LogEvent) Bool(key string, val bool) types.LogEvent {
	e.event = e.event.Bool(key, val)
	return e
}

func (e *LogEvent) Any(key string, val interface{}) types.LogEvent {
	e.event = e.event.Interface(key, val)
	return e
}

func (e *LogEvent) Msg(msg string) { e.event.Msg(msg) }

func (e *LogEvent) Msgf(format string, args ...interface{}) { e.event.Msgf(format, args...) }

func (c *LogContext) Str(key, val string) types.LogContext {
	c.context = c.context.Str(key, val)
	return c
}

func (c *LogContext) Logger() types.Logger {
	return &Logger{logger: c.context.Logger()}
}

// NewTaskLogger creates a logger scoped to one task attempt.
func NewTaskLogger(baseLogger types.Logger, taskID int, kind string) types.Logger {
	return baseLogger.With().
		Str("task_id", strconv.Itoa(taskID)).
		Str("kind", kind).
		Logger()
}

// NewWorkflowLogger creates a logger scoped to the workflow driver.
func NewWorkflowLogger(baseLogger types.Logger, workflow string) types.Logger {
	return baseLogger.With().Str("workflow", workflow).Logger()
}
