package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rekord.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"addr": ":9000",
		"dslDir": "forms",
		"dbUrl": "postgres://localhost/rekord",
		"logFormat": "JSON",
		"env": "prod"
	}`), 0o644))

	t.Setenv("REKORD_ENV", "staging")
	t.Setenv("REKORD_HASH_COST", "6")
	t.Setenv("REKORD_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load(path, []string{"-addr", ":9100", "-log-level=DEBUG"})
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Addr, "flag wins")
	assert.Equal(t, "forms", cfg.DSLDir, "json")
	assert.Equal(t, "staging", cfg.Env, "env beats json")
	assert.Equal(t, 6, cfg.HashCost)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, StorePostgres, cfg.Store, "db url selects postgres")
}

func TestConfigFlagPicksFile(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(other, []byte(`{"dslDir": "elsewhere"}`), 0o644))

	cfg, err := Load(filepath.Join(dir, "default.json"), []string{"-env", "qa", "-config", other})
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", cfg.DSLDir)
	assert.Equal(t, "qa", cfg.Env)
}

func TestValidate(t *testing.T) {
	cfg := def()
	cfg.Store = StorePostgres
	cfg.LogFormat = "xml"
	cfg.HashCost = 99
	cfg.normalize()

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "requires dbUrl")
	assert.ErrorContains(t, err, `unknown log format "xml"`)
	assert.ErrorContains(t, err, "hashCost 99")

	_, err = Load(filepath.Join(t.TempDir(), "none.json"), []string{"-store", "redis"})
	assert.ErrorContains(t, err, `unknown store "redis"`)
}

func TestBrokenJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rekord.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr":`), 0o644))
	_, err := Load(path, nil)
	assert.Error(t, err)
}
