// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Portal    PortalConfig    `mapstructure:"portal"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	API       APIConfig       `mapstructure:"api"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// PortalConfig holds reward portal endpoints and interaction limits.
type PortalConfig struct {
	HomeURL     string        `mapstructure:"home_url"`
	RewardsURL  string        `mapstructure:"rewards_url"`
	DriverURL   string        `mapstructure:"driver_url"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// SchedulerConfig holds redemption sweep configuration.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

// FeedsConfig holds code feed source configuration.
type FeedsConfig struct {
	ArchiveURL   string        `mapstructure:"archive_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// CryptoConfig holds the credential encryption key, hex encoded.
type CryptoConfig struct {
	Key string `mapstructure:"key"`
}

// APIConfig holds the admin HTTP API configuration.
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. DATABASE_HOST, PORTAL_HOME_URL, CRYPTO_KEY.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "redeemer")
	v.SetDefault("database.name", "redeemer")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Portal defaults
	v.SetDefault("portal.home_url", "https://shift.gearboxsoftware.com/home")
	v.SetDefault("portal.rewards_url", "https://shift.gearboxsoftware.com/rewards")
	v.SetDefault("portal.call_timeout", "30s")

	// Scheduler defaults
	v.SetDefault("scheduler.interval", "2h")
	v.SetDefault("scheduler.max_concurrent", 2)

	// Feed defaults
	v.SetDefault("feeds.archive_url", "https://shift.orcicorn.com/shift-code/index.json")
	v.SetDefault("feeds.fetch_timeout", "30s")
	v.SetDefault("feeds.poll_interval", "1h")

	// API defaults
	v.SetDefault("api.addr", ":8080")
}
