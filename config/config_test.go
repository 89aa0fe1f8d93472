package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infermesh/infermesh/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server_address: "0.0.0.0:9090"
log_level: debug
default_runners:
  text_generation: openai_chat
  content_safety: anthropic_messages
runners:
  openai_chat:
    default_model: gpt-4o-mini
    settings:
      api_key: sk-test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.ServerAddress)
	assert.Equal(t, "debug", cfg.LogLevel)

	table := cfg.DefaultTable()
	assert.Equal(t, "openai_chat", table[core.CapabilityTextGeneration])
	assert.Equal(t, "anthropic_messages", table[core.CapabilityContentSafety])

	settings := cfg.Settings()
	require.Contains(t, settings, "openai_chat")
	assert.Equal(t, "sk-test", settings["openai_chat"]["api_key"])
	assert.Equal(t, "gpt-4o-mini", settings["openai_chat"]["default_model"])
}

func TestLoad_MissingFileIsZeroConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.ServerAddress)
	assert.Empty(t, cfg.DefaultRunners)
}

func TestLoad_UnknownCapabilityRejected(t *testing.T) {
	path := writeConfig(t, `
default_runners:
  teleportation: magic_runner
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown capability")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "runners: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}
