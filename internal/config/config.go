package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/convtree/internal/domain"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".convtree"
	envPrefix  = "CONVTREE"

	DriverTOML   = "toml"
	DriverSQLite = "sqlite"

	KeyStoreDriver      = "store.driver"
	KeyStorePath        = "store.path"
	KeyFetchConcurrency = "engine.fetch_concurrency"
	KeyMetadataRefresh  = "engine.metadata_refresh"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyMetricsEnabled   = "metrics.enabled"
	KeyMetricsTextfile  = "metrics.textfile"
)

type Config struct {
	StoreDriver      string
	StorePath        string
	FetchConcurrency int
	MetadataRefresh  time.Duration
	LogLevel         string
	LogFormat        string
	MetricsEnabled   bool
	MetricsTextfile  string
}

// Load layers defaults, the config file and CONVTREE_* env vars. A missing
// default config file is fine; an explicitly set one must exist.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	baseDir := filepath.Join(homeDir, configDir)

	v.SetDefault(KeyStoreDriver, DriverTOML)
	v.SetDefault(KeyStorePath, "")
	v.SetDefault(KeyFetchConcurrency, 8)
	v.SetDefault(KeyMetadataRefresh, 30*time.Second)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyMetricsEnabled, false)
	v.SetDefault(KeyMetricsTextfile, filepath.Join(baseDir, "convtree.prom"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicit := v.ConfigFileUsed(); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(baseDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		StoreDriver:      strings.ToLower(strings.TrimSpace(v.GetString(KeyStoreDriver))),
		StorePath:        strings.TrimSpace(v.GetString(KeyStorePath)),
		FetchConcurrency: v.GetInt(KeyFetchConcurrency),
		MetadataRefresh:  v.GetDuration(KeyMetadataRefresh),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFormat:        v.GetString(KeyLogFormat),
		MetricsEnabled:   v.GetBool(KeyMetricsEnabled),
		MetricsTextfile:  v.GetString(KeyMetricsTextfile),
	}

	switch cfg.StoreDriver {
	case DriverTOML, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("%w: %q", domain.ErrUnknownStoreDriver, cfg.StoreDriver)
	}

	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath(baseDir, cfg.StoreDriver)
	}
	if cfg.FetchConcurrency < 0 {
		return Config{}, fmt.Errorf("%s must not be negative, got %d", KeyFetchConcurrency, cfg.FetchConcurrency)
	}
	if cfg.MetadataRefresh < 0 {
		return Config{}, fmt.Errorf("%s must not be negative, got %s", KeyMetadataRefresh, cfg.MetadataRefresh)
	}

	return cfg, nil
}

func DefaultStorePath(baseDir, driver string) string {
	if driver == DriverSQLite {
		return filepath.Join(baseDir, "conversations.db")
	}
	return filepath.Join(baseDir, "conversations.toml")
}
