package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itsmostafa/pseudoshell/internal/pseudoshell"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = ".pseudoshell.yaml"

// Echo modes.
const (
	EchoAuto   = "auto"
	EchoAlways = "always"
	EchoNever  = "never"
)

// Config holds all pseudoshell configuration.
type Config struct {
	Shell      ShellConfig      `yaml:"shell"`
	Server     ServerConfig     `yaml:"server"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ShellConfig configures every session.
type ShellConfig struct {
	Prompt       string            `yaml:"prompt"`
	Welcome      string            `yaml:"welcome"`
	ShutKeywords []string          `yaml:"shut_keywords"`
	Names        pseudoshell.Names `yaml:"names"`
	LineTimeout  string            `yaml:"line_timeout"` // empty = unbounded
	Echo         string            `yaml:"echo"`         // auto, always, never
}

// ServerConfig configures the network server.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	IdleTimeout string `yaml:"idle_timeout"` // empty = none
	MaxSessions int    `yaml:"max_sessions"` // 0 = unlimited
}

// TranscriptConfig configures transcript recording.
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			Prompt:       ">>> ",
			Welcome:      "Welcome to pseudoshell. Type 'help' for help.",
			ShutKeywords: []string{"quit", "exit"},
			Names:        pseudoshell.DefaultNames(),
			Echo:         EchoAuto,
		},
		Server: ServerConfig{
			Listen:      "127.0.0.1:7433",
			IdleTimeout: "10m",
		},
		Transcript: TranscriptConfig{
			Enabled: true,
			Dir:     filepath.Join(".pseudoshell", "history"),
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PSEUDOSHELL_PROMPT"); v != "" {
		c.Shell.Prompt = v
	}
	if v := os.Getenv("PSEUDOSHELL_LINE_TIMEOUT"); v != "" {
		c.Shell.LineTimeout = v
	}
	if v := os.Getenv("PSEUDOSHELL_ECHO"); v != "" {
		c.Shell.Echo = v
	}
	if v := os.Getenv("PSEUDOSHELL_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("PSEUDOSHELL_HISTORY_DIR"); v != "" {
		c.Transcript.Dir = v
	}
	if v := os.Getenv("PSEUDOSHELL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetLineTimeout returns the per-line evaluation limit, zero when unbounded.
func (c *Config) GetLineTimeout() time.Duration {
	return parseDuration(c.Shell.LineTimeout)
}

// GetIdleTimeout returns how long a network session may wait for input.
func (c *Config) GetIdleTimeout() time.Duration {
	return parseDuration(c.Server.IdleTimeout)
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for field, v := range map[string]string{
		"shell.line_timeout":  c.Shell.LineTimeout,
		"server.idle_timeout": c.Server.IdleTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", field, v, err)
		}
	}

	switch c.Shell.Echo {
	case EchoAuto, EchoAlways, EchoNever:
	default:
		return fmt.Errorf("invalid shell.echo: %s (valid: %s, %s, %s)", c.Shell.Echo, EchoAuto, EchoAlways, EchoNever)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	seen := make(map[string]bool)
	for _, n := range c.Shell.Names.List() {
		if n == "" {
			continue
		}
		if seen[n] {
			return fmt.Errorf("reserved name %q used twice", n)
		}
		seen[n] = true
	}

	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("server.max_sessions must not be negative")
	}
	return nil
}
