package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/diskmemo"
)

var _ diskmemo.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component=diskmemo.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "diskmemo")}
}

func (l LogrusLogger) Debug(msg string, f diskmemo.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f diskmemo.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f diskmemo.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f diskmemo.Fields) { l.with(f).Error(msg) }

// with moves an "err" field to logrus.ErrorKey so formatters render it as
// the entry's error.
func (l LogrusLogger) with(f diskmemo.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			fields[logrus.ErrorKey] = err
			continue
		}
		fields[k] = v
	}
	return l.E.WithFields(fields)
}
