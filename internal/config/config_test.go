package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := `
shell:
  prompt: "$ "
  shut_keywords: [bye]
  line_timeout: 2s
  names:
    bridge: _sh
server:
  listen: ":9000"
  max_sessions: 4
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "$ ", cfg.Shell.Prompt)
	assert.Equal(t, []string{"bye"}, cfg.Shell.ShutKeywords)
	assert.Equal(t, 2*time.Second, cfg.GetLineTimeout())
	assert.Equal(t, "_sh", cfg.Shell.Names.Bridge)
	assert.Equal(t, "_", cfg.Shell.Names.LastValue, "unset names keep defaults")
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, 4, cfg.Server.MaxSessions)
	assert.Equal(t, 10*time.Minute, cfg.GetIdleTimeout())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shell: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PSEUDOSHELL_PROMPT", "% ")
	t.Setenv("PSEUDOSHELL_LISTEN", "127.0.0.1:1")
	t.Setenv("PSEUDOSHELL_LOG_LEVEL", "warn")
	t.Setenv("PSEUDOSHELL_HISTORY_DIR", "/tmp/h")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "% ", cfg.Shell.Prompt)
	assert.Equal(t, "127.0.0.1:1", cfg.Server.Listen)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/h", cfg.Transcript.Dir)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	cfg := DefaultConfig()
	cfg.Shell.Welcome = "hi"

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad line timeout", func(c *Config) { c.Shell.LineTimeout = "soon" }},
		{"bad idle timeout", func(c *Config) { c.Server.IdleTimeout = "5 parsecs" }},
		{"bad echo", func(c *Config) { c.Shell.Echo = "sometimes" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"duplicate names", func(c *Config) { c.Shell.Names.Coroutine = c.Shell.Names.Provisional }},
		{"negative sessions", func(c *Config) { c.Server.MaxSessions = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseDuration(t *testing.T) {
	assert.Zero(t, parseDuration(""))
	assert.Zero(t, parseDuration("nope"))
	assert.Zero(t, parseDuration("-1s"))
	assert.Equal(t, 1500*time.Millisecond, parseDuration("1.5s"))
}
