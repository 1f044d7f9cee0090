// Package config loads adaptest settings from an optional YAML file, a .env
// file and ADAPTEST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhisek/adaptest/internal/calibration"
	"github.com/abhisek/adaptest/internal/session"
)

// EnvPrefix prefixes every environment override, so "log.level" is read
// from ADAPTEST_LOG_LEVEL.
const EnvPrefix = "ADAPTEST"

// Config is the application configuration.
type Config struct {
	Database    DatabaseConfig      `mapstructure:"database"`
	Log         LogConfig           `mapstructure:"log"`
	Session     session.ConfigPatch `mapstructure:"session"`
	Calibration CalibrationConfig   `mapstructure:"calibration"`
	Lock        LockConfig          `mapstructure:"lock"`
}

type DatabaseConfig struct {
	// Path is the SQLite file. Empty means the XDG data directory.
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CalibrationConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	DryRun      bool `mapstructure:"dry_run"`
}

type LockConfig struct {
	// RedisAddr selects the Redis locker when set.
	RedisAddr string `mapstructure:"redis_addr"`
}

var sessionKeys = []string{
	"max_questions",
	"max_time_seconds",
	"standard_error_threshold",
	"min_questions",
	"initial_ability",
	"standard_error_ceiling",
	"selection_method",
	"topic_balancing",
	"exposure_control",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("calibration.concurrency", calibration.DefaultConcurrency)
	v.SetDefault("calibration.dry_run", false)
	v.SetDefault("lock.redis_addr", "")

	// ADAPTEST_DB is the short form of ADAPTEST_DATABASE_PATH.
	_ = v.BindEnv("database.path", EnvPrefix+"_DATABASE_PATH", EnvPrefix+"_DB")
	// Session overrides have no defaults here so unset keys stay nil and
	// fall through to session.DefaultConfig.
	for _, k := range sessionKeys {
		_ = v.BindEnv("session." + k)
	}
	return v
}

// Load reads configPath (skipped when empty) and applies environment
// overrides. Unknown keys in the file are rejected.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv exports the variables of a .env file without overriding ones
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Validate checks the sections that have no validation of their own.
func (c *Config) Validate() error {
	if c.Calibration.Concurrency < 1 {
		return fmt.Errorf("config: calibration.concurrency must be at least 1, got %d", c.Calibration.Concurrency)
	}
	if _, err := c.SessionDefaults(); err != nil {
		return fmt.Errorf("config: session: %w", err)
	}
	return nil
}

// SessionDefaults merges the session section over session.DefaultConfig.
func (c *Config) SessionDefaults() (session.Config, error) {
	sc := session.DefaultConfig().Merge(c.Session)
	if err := sc.Validate(); err != nil {
		return session.Config{}, err
	}
	return sc, nil
}
