// Package logger wires structured logging for FlowForge-Engine on top
// of logrus.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is a shorthand alias used across the engine's Logger
// interface implementations.
type Fields = map[string]interface{}

// Logger is the structured logging contract every core component
// accepts. It is intentionally small so the engine, scheduler, and
// registry packages never import logrus directly.
type Logger interface {
	Debug(message string, fields Fields)
	Info(message string, fields Fields)
	Warn(message string, fields Fields)
	Error(message string, fields Fields)
}

// Init configures a logrus instance with a JSON formatter, the level
// named by level, and a default "service" field.
func Init(level string) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	switch level {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	l.SetOutput(os.Stdout)
	l.AddHook(&defaultFieldsHook{})
	return l
}

type defaultFieldsHook struct{}

func (hook *defaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *defaultFieldsHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = "flowforge-engine"
	return nil
}

// Logrus adapts a *logrus.Logger to the engine-facing Logger interface.
type Logrus struct {
	L *logrus.Logger
}

func NewLogrus(l *logrus.Logger) *Logrus {
	return &Logrus{L: l}
}

func (a *Logrus) Debug(message string, fields Fields) {
	a.L.WithFields(logrus.Fields(fields)).Debug(message)
}

func (a *Logrus) Info(message string, fields Fields) {
	a.L.WithFields(logrus.Fields(fields)).Info(message)
}

func (a *Logrus) Warn(message string, fields Fields) {
	a.L.WithFields(logrus.Fields(fields)).Warn(message)
}

func (a *Logrus) Error(message string, fields Fields) {
	a.L.WithFields(logrus.Fields(fields)).Error(message)
}

// Nop discards every log entry. Useful as a default in tests.
type Nop struct{}

func (Nop) Debug(string, Fields) {}
func (Nop) Info(string, Fields)  {}
func (Nop) Warn(string, Fields)  {}
func (Nop) Error(string, Fields) {}
