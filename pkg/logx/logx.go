// Package logx is the logging facade for the whole application. It keeps the
// call surface small (Info/Warnf/WithFields/WithError) and delegates formatting
// and level handling to logrus.
package logx

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is a set of structured log fields.
type Fields = logrus.Fields

// Level is a log severity level.
type Level = logrus.Level

const (
	LevelDebug = logrus.DebugLevel
	LevelInfo  = logrus.InfoLevel
	LevelWarn  = logrus.WarnLevel
	LevelError = logrus.ErrorLevel
)

var defaultLogger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if os.Getenv("LOG_FORMAT") == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	l.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
	return l
}

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel sets the level of the default logger.
func SetLevel(level Level) { defaultLogger.SetLevel(level) }

// SetLevelFromString sets the level from a config string, defaulting to info.
func SetLevelFromString(s string) { defaultLogger.SetLevel(parseLevel(s)) }

// SetOutput redirects the default logger's output.
func SetOutput(w io.Writer) { defaultLogger.SetOutput(w) }

func Debug(msg string)                  { defaultLogger.Debug(msg) }
func Info(msg string)                   { defaultLogger.Info(msg) }
func Warn(msg string)                   { defaultLogger.Warn(msg) }
func Error(msg string)                  { defaultLogger.Error(msg) }
func Fatal(msg string)                  { defaultLogger.Fatal(msg) }
func Debugf(format string, args ...any) { defaultLogger.Debugf(format, args...) }
func Infof(format string, args ...any)  { defaultLogger.Infof(format, args...) }
func Warnf(format string, args ...any)  { defaultLogger.Warnf(format, args...) }
func Errorf(format string, args ...any) { defaultLogger.Errorf(format, args...) }
func Fatalf(format string, args ...any) { defaultLogger.Fatalf(format, args...) }

// WithFields creates a structured log entry.
func WithFields(fields Fields) *logrus.Entry { return defaultLogger.WithFields(fields) }

// WithField creates a structured log entry with a single field.
func WithField(key string, value any) *logrus.Entry { return defaultLogger.WithField(key, value) }

// WithError creates a log entry carrying an error field.
func WithError(err error) *logrus.Entry { return defaultLogger.WithError(err) }
