package charm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/unkn0wn-root/diskmemo"
)

func TestFieldsInKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})}
	l.Warn("repopulating", diskmemo.Fields{"path": "/x.cache", "err": "bad", "reason": "decode"})

	out := buf.String()
	e, p, r := strings.Index(out, "err="), strings.Index(out, "path="), strings.Index(out, "reason=")
	if e < 0 || p < 0 || r < 0 || !(e < p && p < r) {
		t.Fatalf("unexpected output: %q", out)
	}
}
