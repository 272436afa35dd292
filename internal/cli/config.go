package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds defaults read from a YAML file. Flags override every field.
//
//	db: ./results.qes
//	param_safety: true
//	codec: raw
//	parallel: 4
//	log_level: info
type Config struct {
	DB          string `yaml:"db"`
	ParamSafety *bool  `yaml:"param_safety"`
	Codec       string `yaml:"codec"`
	Parallel    int    `yaml:"parallel"`
	LogLevel    string `yaml:"log_level"`
}

// LoadConfig reads and validates a config file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Codec != "" && !isValidCodec(c.Codec) {
		return fmt.Errorf("codec must be one of %v, got %q", ValidCodecs, c.Codec)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("parallel must be non-negative, got %d", c.Parallel)
	}
	if c.LogLevel != "" {
		if _, err := parseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// paramSafety reports whether param safety is on. It defaults to true.
func (c *Config) paramSafety() bool {
	return c.ParamSafety == nil || *c.ParamSafety
}

// level returns the configured log level, or warn.
func (c *Config) level() slog.Level {
	if c.LogLevel == "" {
		return slog.LevelWarn
	}
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return l, nil
}
