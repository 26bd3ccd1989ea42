package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInit_WritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinrag", "config.yaml")

	out := runCommand(t, "config", "init", "--config", path)
	assert.Contains(t, out, "Created configuration")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "database_url")
	assert.Contains(t, string(data), "rrf_constant")
}

func TestConfigInit_ExistingWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	out := runCommand(t, "config", "init", "--config", path)
	assert.Contains(t, out, "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestConfigInit_ForceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	out := runCommand(t, "config", "init", "--config", path, "--force")
	assert.Contains(t, out, "Created configuration")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "retrieval:")
}

func TestConfigShow_MergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o644))

	out := runCommand(t, "config", "show", "--config", path)
	assert.Contains(t, out, "9999")
	assert.Contains(t, out, "gpt-4o-mini")
}

func TestConfigPath_HonorsFlag(t *testing.T) {
	out := runCommand(t, "config", "path", "--config", "/tmp/custom.yaml")
	assert.Equal(t, "/tmp/custom.yaml", strings.TrimSpace(out))
}
