package diskmemo

// Fields carries structured context for one log record.
type Fields map[string]any

// Logger receives the memoizer's diagnostics: lock reclaims, self-heals,
// publish failures and GC problems. Adapters for zap, logrus, slog and
// charmbracelet/log live under log/.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything. It is used when Options.Logger is nil.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
