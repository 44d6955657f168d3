package telemetry

import (
	"github.com/sirupsen/logrus"

	"github.com/neuroglyph/git-mind-sub001/ports"
)

// Logger implements ports.Logger on a logrus.Logger, selecting the text
// or JSON formatter per spec §6's GITMIND_LOG_FORMAT and filtering by
// GITMIND_LOG_LEVEL.
type Logger struct {
	entry *logrus.Logger
	level ports.LogLevel
}

// NewLogger builds a Logger from cfg, writing through logrus's default
// io.Writer (os.Stderr).
func NewLogger(cfg Config) *Logger {
	l := logrus.New()
	if cfg.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{})
	}
	l.SetLevel(toLogrusLevel(cfg.LogLevel))
	return &Logger{entry: l, level: cfg.LogLevel}
}

func toLogrusLevel(level ports.LogLevel) logrus.Level {
	switch level {
	case ports.Debug:
		return logrus.DebugLevel
	case ports.Warn:
		return logrus.WarnLevel
	case ports.Error:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Log implements ports.Logger, routing to the matching logrus level and
// attaching component plus every field as structured key-value pairs.
func (l *Logger) Log(level ports.LogLevel, component, message string, fields map[string]any) {
	if l == nil || l.entry == nil {
		return
	}
	logFields := make(logrus.Fields, len(fields)+1)
	logFields["component"] = component
	for k, v := range fields {
		logFields[k] = v
	}
	entry := l.entry.WithFields(logFields)
	switch level {
	case ports.Debug:
		entry.Debug(message)
	case ports.Warn:
		entry.Warn(message)
	case ports.Error:
		entry.Error(message)
	default:
		entry.Info(message)
	}
}
