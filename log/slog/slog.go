//go:build go1.21

package slog

import (
	"context"
	stdslog "log/slog"
	"sort"

	"github.com/unkn0wn-root/diskmemo"
)

var _ diskmemo.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New tags every record with component=diskmemo.
func New(l *stdslog.Logger) Logger {
	return Logger{L: l.With(stdslog.String("component", "diskmemo"))}
}

func (s Logger) Debug(msg string, f diskmemo.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f diskmemo.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f diskmemo.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f diskmemo.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(lvl stdslog.Level, msg string, f diskmemo.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, lvl) {
		return
	}
	s.L.LogAttrs(ctx, lvl, msg, attrs(f)...)
}

func attrs(f diskmemo.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]stdslog.Attr, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			// JSON handlers render error values as {}
			out = append(out, stdslog.String(k, err.Error()))
			continue
		}
		out = append(out, stdslog.Any(k, f[k]))
	}
	return out
}
