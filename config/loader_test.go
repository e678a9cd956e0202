package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(LoaderOptions{ConfigDir: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxConnections)
	assert.Equal(t, int64(30_000), cfg.Connection.TimeoutMS)
	assert.Equal(t, 10, cfg.Gossip.MaxHops)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
max_connections: 12
gossip:
  max_hops: 3
  interval_ms: 1000
connection:
  relay_servers:
    - "wss://relay.example.com"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(LoaderOptions{ConfigDir: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxConnections)
	assert.Equal(t, 3, cfg.Gossip.MaxHops)
	assert.Equal(t, int64(1000), cfg.Gossip.IntervalMS)
	assert.Equal(t, []string{"wss://relay.example.com"}, cfg.Connection.RelayServers)
}

func TestLoad_EnvVarSubstitution(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
connection:
  relay_servers:
    - "${TEST_RELAY_URL}"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	os.Setenv("TEST_RELAY_URL", "wss://from-env.example.com")
	defer os.Unsetenv("TEST_RELAY_URL")

	cfg, err := Load(LoaderOptions{ConfigDir: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, []string{"wss://from-env.example.com"}, cfg.Connection.RelayServers)
}

func TestLoad_EnvironmentOverrideHighestPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("max_connections: 12\n"), 0644))

	os.Setenv("MESH_MAX_CONNECTIONS", "99")
	defer os.Unsetenv("MESH_MAX_CONNECTIONS")

	cfg, err := Load(LoaderOptions{ConfigDir: tmpDir})
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.MaxConnections)
}

func TestValidate_RejectsNonPositiveMaxConnections(t *testing.T) {
	cfg := Default()
	cfg.MaxConnections = 0
	err := Validate(cfg)
	require.Error(t, err)
}
