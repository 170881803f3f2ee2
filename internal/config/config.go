// Package config handles loading the ttsprobe configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nadzzz/ttsprobe/internal/engine"
)

// Config is the root configuration for a ttsprobe run.
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Synthesis SynthesisConfig     `mapstructure:"synthesis"`
	Report    ReportConfig        `mapstructure:"report"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Engines   []engine.Descriptor `mapstructure:"engines"`
}

// ServerConfig points at the Gradio app under test.
type ServerConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"` // per remote call
}

// SynthesisConfig drives synthesis mode.
type SynthesisConfig struct {
	Engine    string   `mapstructure:"engine"`
	All       bool     `mapstructure:"all"`
	OutputDir string   `mapstructure:"output_dir"`
	Phrases   []string `mapstructure:"phrases"`
}

// ReportConfig controls the machine-readable export.
type ReportConfig struct {
	File string `mapstructure:"file"` // .yaml/.yml for YAML, JSON otherwise; empty disables
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
	File   string `mapstructure:"file"`   // optional rotated log file
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"url":       "server.url",
	"timeout":   "server.timeout",
	"engine":    "synthesis.engine",
	"all":       "synthesis.all",
	"output":    "synthesis.output_dir",
	"phrase":    "synthesis.phrases",
	"report":    "report.file",
	"log-level": "logging.level",
	"log-file":  "logging.file",
}

// Load reads the configuration from defaults, an optional file, environment
// variables and flags, in increasing precedence. If configFile is empty the
// search order is ./ttsprobe.yaml, ./configs/ttsprobe.yaml,
// $HOME/.config/ttsprobe/ttsprobe.yaml. Flags in fs that appear in flagKeys
// are bound; fs may be nil.
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.url", "http://127.0.0.1:7860/")
	v.SetDefault("server.timeout", 10*time.Minute)
	v.SetDefault("synthesis.engine", "KittenTTS")
	v.SetDefault("synthesis.all", false)
	v.SetDefault("synthesis.output_dir", filepath.Join(os.TempDir(), "tts-test"))
	v.SetDefault("synthesis.phrases", []string{})
	v.SetDefault("report.file", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("ttsprobe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ttsprobe"))
		}
	}

	// Environment variables: TTSPROBE_SERVER_URL, TTSPROBE_LOGGING_LEVEL, etc.
	// GRADIO_URL is still honored for the server URL.
	v.SetEnvPrefix("TTSPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.url", "TTSPROBE_SERVER_URL", "GRADIO_URL"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	// Read config file (optional, defaults and env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references (e.g. "${TTS_HOST_URL}")
	cfg.Server.URL = resolveEnvRef(cfg.Server.URL)
	cfg.Synthesis.OutputDir = resolveEnvRef(cfg.Synthesis.OutputDir)

	if cfg.Server.Timeout <= 0 {
		return nil, fmt.Errorf("server.timeout must be positive, got %s", cfg.Server.Timeout)
	}
	return &cfg, nil
}

// Registry builds the engine registry: the engines from the config file when
// present, the built-in catalog otherwise.
func (c *Config) Registry() (*engine.Registry, error) {
	if len(c.Engines) == 0 {
		return engine.Default(), nil
	}
	reg, err := engine.New(c.Engines)
	if err != nil {
		return nil, fmt.Errorf("engines: %w", err)
	}
	return reg, nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogging configures the global slog logger. Logs go to stderr so the
// report on stdout stays clean; with File set they are also written to a
// rotated file. The returned closer releases that file.
func SetupLogging(cfg LoggingConfig) (io.Closer, error) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    16, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, lj)
		closer = lj
	}

	slog.SetDefault(slog.New(newHandler(out, cfg, cfg.File != "")))
	return closer, nil
}

func newHandler(w io.Writer, cfg LoggingConfig, noColor bool) slog.Handler {
	level := ParseLevel(cfg.Level)
	if strings.ToLower(cfg.Format) == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
