package logger

import (
	"log/slog"
	"strings"
	"testing"
)

// New returns a logger which routes the output to the test log with debug
// level thus keeping it attached to the test that produced it.
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, slog.LevelDebug)
}

// NewLvl returns a test logger with the given level.
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	t.Helper()
	h := slog.NewTextHandler(
		&testWriter{t: t},
		&slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				// test log lines are timestamped already
				if a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		},
	)
	return slog.New(h)
}

type testWriter struct {
	t testing.TB
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
