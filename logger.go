package auth

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus logger to Logger, turning the key/value
// arguments into logrus fields.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps the given logger. A nil logger gets a fresh one.
func NewLogrusLogger(l *logrus.Logger, name string) *LogrusLogger {
	if l == nil {
		l = logrus.New()
	}
	entry := logrus.NewEntry(l)
	if name != "" {
		entry = entry.WithField("logger", name)
	}
	return &LogrusLogger{entry: entry}
}

// Named returns a child logger tagged with the given name.
func (l *LogrusLogger) Named(name string) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.WithField("logger", name)}
}

func (l *LogrusLogger) Debug(msg string, args ...any) {
	l.entry.WithFields(toFields(args)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, args ...any) {
	l.entry.WithFields(toFields(args)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, args ...any) {
	l.entry.WithFields(toFields(args)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, args ...any) {
	l.entry.WithFields(toFields(args)).Error(msg)
}

func toFields(args []any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			fields["arg"] = args[i]
			break
		}
		val := args[i+1]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		fields[key] = val
	}
	return fields
}

var _ Logger = (*LogrusLogger)(nil)
