package charm

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/unkn0wn-root/diskmemo"
)

var _ diskmemo.Logger = Logger{}

// Logger adapts a charmbracelet/log logger. Fields are emitted in key order
// so terminal output is stable.
type Logger struct{ L *log.Logger }

func (c Logger) Debug(msg string, f diskmemo.Fields) { c.L.Debug(msg, kv(f)...) }
func (c Logger) Info(msg string, f diskmemo.Fields)  { c.L.Info(msg, kv(f)...) }
func (c Logger) Warn(msg string, f diskmemo.Fields)  { c.L.Warn(msg, kv(f)...) }
func (c Logger) Error(msg string, f diskmemo.Fields) { c.L.Error(msg, kv(f)...) }

func kv(f diskmemo.Fields) []interface{} {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, 0, 2*len(f))
	for _, k := range keys {
		out = append(out, k, f[k])
	}
	return out
}
