package shared

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	t.Setenv("DCINV_ADDR", "")
	t.Setenv("DCINV_DB_PATH", "")

	cfg, err := LoadServerConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "dcinv.db", cfg.DBPath)
}

func TestLoadServerConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, SaveServerConfig(path, &ServerConfig{
		Addr:   ":9999",
		DBPath: "/tmp/from-file.db",
	}))

	t.Setenv("DCINV_ADDR", ":7777")

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Addr)
	assert.Equal(t, "/tmp/from-file.db", cfg.DBPath)
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	_, err := LoadServerConfig("/no/such/config.json")
	assert.Error(t, err)
}
