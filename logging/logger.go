// Package logging provides the structured, context-aware logger shared by
// every package in this module. It is a trimmed-down form of the
// configuration/ContextLogger split used elsewhere in this codebase, with
// the service/version stamping stripped since this module ships as a
// library rather than a standalone service.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Level names the minimum severity a Logger will emit.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Config configures a Logger.
type Config struct {
	Level      Level  // minimum level to emit
	Format     string // "json" or "text"
	AddCaller  bool
	TimeFormat string
}

// DefaultConfig returns a Config with sensible defaults: text output at
// info level, no caller reporting.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     "text",
		AddCaller:  false,
		TimeFormat: time.RFC3339,
	}
}

// New builds a *logrus.Logger from cfg.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	case LevelFatal:
		logger.SetLevel(logrus.FatalLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.TimeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: cfg.TimeFormat, FullTimestamp: true})
	}

	logger.SetReportCaller(cfg.AddCaller)
	return logger
}

// Fields is a shorthand for structured log fields.
type Fields = logrus.Fields

// ContextLogger carries a base set of fields (chain name, component, etc.)
// that get attached to every line logged through it.
type ContextLogger struct {
	logger *logrus.Logger
	fields Fields
}

// NewContextLogger wraps logger (or a package default, if nil) with base
// fields.
func NewContextLogger(logger *logrus.Logger, fields Fields) *ContextLogger {
	if logger == nil {
		logger = defaultLogger
	}
	base := make(Fields, len(fields))
	for k, v := range fields {
		base[k] = v
	}
	return &ContextLogger{logger: logger, fields: base}
}

var defaultLogger = New(DefaultConfig())

// With returns a child logger with key=value added to its base fields.
func (cl *ContextLogger) With(key string, value any) *ContextLogger {
	return cl.WithFields(Fields{key: value})
}

// WithFields returns a child logger with extra merged into its base fields.
func (cl *ContextLogger) WithFields(extra Fields) *ContextLogger {
	merged := make(Fields, len(cl.fields)+len(extra))
	for k, v := range cl.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return &ContextLogger{logger: cl.logger, fields: merged}
}

// WithError returns a child logger with err attached under "error".
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	if err == nil {
		return cl
	}
	return cl.With("error", err.Error())
}

func (cl *ContextLogger) Debug(msg string) { cl.logger.WithFields(cl.fields).Debug(msg) }
func (cl *ContextLogger) Info(msg string)  { cl.logger.WithFields(cl.fields).Info(msg) }
func (cl *ContextLogger) Warn(msg string)  { cl.logger.WithFields(cl.fields).Warn(msg) }
func (cl *ContextLogger) Error(msg string) { cl.logger.WithFields(cl.fields).Error(msg) }

func (cl *ContextLogger) Debugf(format string, args ...any) {
	cl.logger.WithFields(cl.fields).Debugf(format, args...)
}
func (cl *ContextLogger) Infof(format string, args ...any) {
	cl.logger.WithFields(cl.fields).Infof(format, args...)
}
func (cl *ContextLogger) Warnf(format string, args ...any) {
	cl.logger.WithFields(cl.fields).Warnf(format, args...)
}
func (cl *ContextLogger) Errorf(format string, args ...any) {
	cl.logger.WithFields(cl.fields).Errorf(format, args...)
}

// Nop returns a ContextLogger whose output is discarded, useful as a default
// for components constructed without an explicit logger.
func Nop() *ContextLogger {
	l := logrus.New()
	l.SetOutput(discard{})
	return NewContextLogger(l, nil)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
