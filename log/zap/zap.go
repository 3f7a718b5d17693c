package zap

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/diskmemo"
)

var _ diskmemo.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names l "diskmemo" so memoizer records can be filtered by logger name.
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("diskmemo")} }

func (z ZapLogger) Debug(msg string, f diskmemo.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f diskmemo.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f diskmemo.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f diskmemo.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f diskmemo.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		switch v := f[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		case time.Duration:
			out = append(out, zap.Duration(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
