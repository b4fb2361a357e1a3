package talkie

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TalkieLogger wraps zerolog for structured logging
type TalkieLogger struct {
	logger zerolog.Logger
}

// LogLevel represents the logging level
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLogLevel maps the config spelling of a level onto LogLevel.
func ParseLogLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DebugLevel, true
	case "INFO":
		return InfoLevel, true
	case "WARNING", "WARN":
		return WarnLevel, true
	case "ERROR":
		return ErrorLevel, true
	}
	return InfoLevel, false
}

// LogConfig represents the configuration for logging
type LogConfig struct {
	Level     LogLevel
	Pretty    bool
	Output    io.Writer
	AddSource bool
	Fields    map[string]interface{}
}

// DefaultLogConfig returns a default logging configuration
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  InfoLevel,
		Pretty: true,
		Output: os.Stderr,
		Fields: make(map[string]interface{}),
	}
}

// NewTalkieLogger creates a new structured logger
func NewTalkieLogger(config *LogConfig) *TalkieLogger {
	if config == nil {
		config = DefaultLogConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var logger zerolog.Logger
	if config.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
		})
	} else {
		logger = zerolog.New(out)
	}

	switch config.Level {
	case DebugLevel:
		logger = logger.Level(zerolog.DebugLevel)
	case InfoLevel:
		logger = logger.Level(zerolog.InfoLevel)
	case WarnLevel:
		logger = logger.Level(zerolog.WarnLevel)
	case ErrorLevel:
		logger = logger.Level(zerolog.ErrorLevel)
	}

	logger = logger.With().Timestamp().Logger()
	if config.AddSource {
		logger = logger.With().Caller().Logger()
	}
	if len(config.Fields) > 0 {
		logger = logger.With().Fields(config.Fields).Logger()
	}

	return &TalkieLogger{logger: logger}
}

// NopLogger discards everything.
func NopLogger() *TalkieLogger {
	return &TalkieLogger{logger: zerolog.Nop()}
}

// WithComponent adds a component field to the logger
func (l *TalkieLogger) WithComponent(component string) *TalkieLogger {
	return &TalkieLogger{
		logger: l.logger.With().Str("component", component).Logger(),
	}
}

// WithField adds a field to the logger
func (l *TalkieLogger) WithField(key string, value interface{}) *TalkieLogger {
	return &TalkieLogger{
		logger: l.logger.With().Interface(key, value).Logger(),
	}
}

// WithFields adds multiple fields to the logger
func (l *TalkieLogger) WithFields(fields map[string]interface{}) *TalkieLogger {
	return &TalkieLogger{
		logger: l.logger.With().Fields(fields).Logger(),
	}
}

// WithError adds an error field to the logger
func (l *TalkieLogger) WithError(err error) *TalkieLogger {
	return &TalkieLogger{
		logger: l.logger.With().Err(err).Logger(),
	}
}

func (l *TalkieLogger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *TalkieLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *TalkieLogger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *TalkieLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l *TalkieLogger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

func (l *TalkieLogger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *TalkieLogger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

func (l *TalkieLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// Fatal logs a fatal level message and exits
func (l *TalkieLogger) Fatal(msg string) {
	l.logger.Fatal().Msg(msg)
}

// LogSessionEvent logs session lifecycle events with the resulting state
func (l *TalkieLogger) LogSessionEvent(event string, state SessionState, fields map[string]interface{}) {
	l.logger.Info().
		Str("event_type", "session").
		Str("event", event).
		Str("state", string(state)).
		Fields(fields).
		Msg("Session event")
}

// LogAudioEvent logs audio-related events with structured fields
func (l *TalkieLogger) LogAudioEvent(event string, fields map[string]interface{}) {
	l.logger.Debug().
		Str("event_type", "audio").
		Str("event", event).
		Fields(fields).
		Msg("Audio event")
}

// LogError logs a TalkieError with structured fields
func (l *TalkieLogger) LogError(err *TalkieError) {
	if err == nil {
		return
	}
	event := l.logger.Error().
		Str("error_code", err.Code).
		Time("error_time", err.Timestamp).
		Fields(err.Details)
	if err.err != nil {
		event = event.AnErr("cause", err.err)
	}
	event.Msg(err.Message)
}

// Global logger instance
var globalLogger = NewTalkieLogger(DefaultLogConfig())

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *TalkieLogger {
	return globalLogger
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger *TalkieLogger) {
	globalLogger = logger
}
