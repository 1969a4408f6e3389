package memory

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus.Logger to the Logger interface. It is the
// production logger; tests and embedders that want silence use NoOpLogger.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger creates a JSON-formatted logger at the given level
// ("debug", "info", "warn", "error") writing to out.
func NewLogrusLogger(level string, out io.Writer) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})
	if parsed, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		l.SetLevel(parsed)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// WrapLogrus adapts an existing logrus FieldLogger.
func WrapLogrus(l logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{entry: l.WithFields(nil)}
}

// WithComponent returns a logger that tags every line with the component name.
func (l *LogrusLogger) WithComponent(name string) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.WithField("component", name)}
}

func (l *LogrusLogger) Info(msg string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *LogrusLogger) Error(msg string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).Error(msg)
}

func (l *LogrusLogger) Warn(msg string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).Warn(msg)
}

func (l *LogrusLogger) Debug(msg string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}
