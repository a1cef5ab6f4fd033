package logger

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// LevelTrace is a custom level for more verbose output than slog.LevelDebug.
	LevelTrace slog.Level = slog.LevelDebug - 4
	// levelNone disables logging altogether.
	levelNone slog.Level = math.MaxInt32
)

type LogConfiguration struct {
	// Level is the default log level: none, error, warn, info, debug, trace.
	// Offsets in the slog syntax (ie "info-1") are supported too.
	Level string `yaml:"level"`
	// Format of the output: text, json or ecs.
	Format string `yaml:"format"`
	// OutputPath is a file name, "stdout", "stderr" or "discard".
	OutputPath string `yaml:"outputPath"`
	// TimeFormat for the timestamp attribute, "none" to drop it.
	TimeFormat string `yaml:"timeFormat"`
	// PeerIDFormat: "short" to abbreviate node ids, "none" to drop them.
	PeerIDFormat string `yaml:"peerIdFormat"`
	// ShowCaller adds the source location to records.
	ShowCaller bool `yaml:"showCaller"`
}

/*
New creates a logger based on the configuration. Nil or empty configuration
yields a text logger on stderr with info level.
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	h, err := cfg.handler()
	if err != nil {
		return nil, fmt.Errorf("building log handler: %w", err)
	}
	return slog.New(h), nil
}

/*
LoadConfiguration reads logger configuration from a yaml file.
*/
func LoadConfiguration(fileName string) (*LogConfiguration, error) {
	buf, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return nil, fmt.Errorf("reading logger config file: %w", err)
	}
	cfg := &LogConfiguration{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling logger config: %w", err)
	}
	return cfg, nil
}

func (cfg *LogConfiguration) handler() (slog.Handler, error) {
	out, err := cfg.output()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.logLevel(),
		AddSource: cfg.ShowCaller,
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		opts.ReplaceAttr = composeAttrFmt(
			formatTimeAttr(cfg.TimeFormat),
			formatPeerIDAttr(cfg.PeerIDFormat),
		)
		return slog.NewJSONHandler(out, opts), nil
	case "ecs":
		opts.ReplaceAttr = composeAttrFmt(
			formatPeerIDAttr(cfg.PeerIDFormat),
			formatAttrECS,
		)
		return slog.NewJSONHandler(out, opts), nil
	default:
		opts.ReplaceAttr = composeAttrFmt(
			formatTimeAttr(cfg.TimeFormat),
			formatPeerIDAttr(cfg.PeerIDFormat),
			formatDataAttrAsJSON,
		)
		return slog.NewTextHandler(out, opts), nil
	}
}

func (cfg *LogConfiguration) output() (io.Writer, error) {
	switch cfg.OutputPath {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "discard", os.DevNull:
		return io.Discard, nil
	}
	file, err := os.OpenFile(filepath.Clean(cfg.OutputPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return file, nil
}

func (cfg *LogConfiguration) logLevel() slog.Level {
	if cfg.OutputPath == "discard" || cfg.OutputPath == os.DevNull {
		return levelNone
	}

	switch name := strings.ToUpper(strings.TrimSpace(cfg.Level)); name {
	case "NONE":
		return levelNone
	case "TRACE":
		return LevelTrace
	case "WARNING":
		return slog.LevelWarn
	default:
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(name)); err != nil {
			return slog.LevelInfo
		}
		return lvl
	}
}
