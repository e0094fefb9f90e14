package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/convtree/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DriverTOML, cfg.StoreDriver)
	assert.Equal(t, filepath.Join(home, ".convtree", "conversations.toml"), cfg.StorePath)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.Equal(t, 30*time.Second, cfg.MetadataRefresh)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.False(t, cfg.MetricsEnabled)
}

func TestLoadReadsConfigFileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CONVTREE_LOG_LEVEL", "debug")

	dir := filepath.Join(home, ".convtree")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[store]
driver = "sqlite"

[engine]
fetch_concurrency = 2
metadata_refresh = "5s"

[log]
level = "info"
format = "json"
`), 0o600))

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, filepath.Join(dir, "conversations.db"), cfg.StorePath)
	assert.Equal(t, 2, cfg.FetchConcurrency)
	assert.Equal(t, 5*time.Second, cfg.MetadataRefresh)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	v.Set(KeyStoreDriver, "postgres")

	_, err := Load(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownStoreDriver)
}

func TestLoadRejectsMissingExplicitConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "absent.toml"))

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
