package logger

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_LogConfiguration_logLevel(t *testing.T) {
	var cases = []struct {
		name  string
		level slog.Level
	}{
		{"", slog.LevelInfo},
		{"error", slog.LevelError},
		{"InfO", slog.LevelInfo},
		{"ERROR", slog.LevelError},
		{"WARNING", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"INFO", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"TRACE", LevelTrace},
		{"NONE", levelNone},
		{"info-1", slog.LevelInfo - 1},
		{"info+1", slog.LevelInfo + 1},
	}

	for _, tc := range cases {
		cfg := LogConfiguration{Level: tc.name}
		if lvl := cfg.logLevel(); lvl != tc.level {
			t.Errorf("expected %q to return %d (%s) but got %d (%s)", tc.name, tc.level, tc.level, lvl, lvl)
		}
	}

	// special case - when OutputPath is "discard" return levelNone
	cfg := LogConfiguration{Level: "info", OutputPath: "discard"}
	if lvl := cfg.logLevel(); lvl != levelNone {
		t.Errorf("expected %d but got %d for level", levelNone, lvl)
	}

	cfg = LogConfiguration{Level: "info", OutputPath: os.DevNull}
	if lvl := cfg.logLevel(); lvl != levelNone {
		t.Errorf("expected %d but got %d for level", levelNone, lvl)
	}
}

func Test_New(t *testing.T) {
	t.Run("nil configuration", func(t *testing.T) {
		log, err := New(nil)
		require.NoError(t, err)
		require.True(t, log.Enabled(nil, slog.LevelInfo))
		require.False(t, log.Enabled(nil, slog.LevelDebug))
	})

	t.Run("debug json logger", func(t *testing.T) {
		log, err := New(&LogConfiguration{Level: "debug", Format: "json", OutputPath: "stdout"})
		require.NoError(t, err)
		require.True(t, log.Enabled(nil, slog.LevelDebug))
	})

	t.Run("logging disabled", func(t *testing.T) {
		log, err := New(&LogConfiguration{Level: "debug", OutputPath: "discard"})
		require.NoError(t, err)
		require.False(t, log.Enabled(nil, slog.LevelError))
	})
}

func Test_LoadConfiguration(t *testing.T) {
	file := t.TempDir() + "/logger-config.yaml"
	content := []byte("level: debug\nformat: ecs\noutputPath: stdout\ntimeFormat: none\n")
	require.NoError(t, os.WriteFile(file, content, 0600))

	cfg, err := LoadConfiguration(file)
	require.NoError(t, err)
	require.Equal(t, &LogConfiguration{Level: "debug", Format: "ecs", OutputPath: "stdout", TimeFormat: "none"}, cfg)

	_, err = LoadConfiguration(t.TempDir() + "/missing.yaml")
	require.Error(t, err)
}

func Test_logger_output(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		ReplaceAttr: composeAttrFmt(formatTimeAttr("none"), formatDataAttrAsJSON),
	})
	log := slog.New(h)

	log.Info("hello", Data(struct{ V int }{42}))
	out := buf.String()
	require.Contains(t, out, "msg=hello")
	require.Contains(t, out, `{\"V\":42}`)
	require.NotContains(t, out, "time=")
}
