package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Endpoint describes one upstream HTTP service.
type Endpoint struct {
	Protocol string `mapstructure:"protocol"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

// BaseURL returns protocol://host:port.
func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", e.Protocol, e.Host, e.Port)
}

func (e Endpoint) TimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Millisecond
}

// Config holds all configuration for the dashboard.
type Config struct {
	Env           string `mapstructure:"env"`
	Port          int    `mapstructure:"port"`
	SessionSecret string `mapstructure:"session_secret"`
	AdminPassword string `mapstructure:"admin_password"`

	Auth struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"auth"`

	Wazuh Endpoint `mapstructure:"wazuh"`

	OpenSearch struct {
		Endpoint `mapstructure:",squash"`
		Index    string `mapstructure:"index"`
	} `mapstructure:"opensearch"`

	Keystroke struct {
		URL      string `mapstructure:"api_url"`
		Timeout  int    `mapstructure:"timeout"` // milliseconds
		Timezone string `mapstructure:"timezone"`
	} `mapstructure:"keystroke"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	DatabaseURL string `mapstructure:"database_url"`

	Log struct {
		Level string `mapstructure:"level"`
		Dir   string `mapstructure:"dir"`
	} `mapstructure:"log"`
}

// IsProduction reports whether stack traces must be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) KeystrokeTimeout() time.Duration {
	return time.Duration(c.Keystroke.Timeout) * time.Millisecond
}

// KeystrokeZone is the zone the ML service writes its offset-less
// timestamps in.
func (c *Config) KeystrokeZone() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Keystroke.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid KEYSTROKE_TIMEZONE %q", c.Keystroke.Timezone)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", 3000)
	v.SetDefault("session_secret", "hids-secret-key")
	v.SetDefault("admin_password", "admin123")
	v.SetDefault("auth.enabled", true)

	v.SetDefault("wazuh.protocol", "https")
	v.SetDefault("wazuh.host", "localhost")
	v.SetDefault("wazuh.port", 55000)
	v.SetDefault("wazuh.user", "wazuh")
	v.SetDefault("wazuh.password", "wazuh")
	v.SetDefault("wazuh.timeout", 30000)

	v.SetDefault("opensearch.protocol", "https")
	v.SetDefault("opensearch.host", "localhost")
	v.SetDefault("opensearch.port", 9200)
	v.SetDefault("opensearch.user", "admin")
	v.SetDefault("opensearch.password", "admin")
	v.SetDefault("opensearch.timeout", 30000)
	v.SetDefault("opensearch.index", "wazuh-alerts-*")

	v.SetDefault("keystroke.api_url", "http://127.0.0.1:5000")
	v.SetDefault("keystroke.timeout", 60000)
	v.SetDefault("keystroke.timezone", "UTC")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
}

// Load reads .env (when present) and the environment. Keys map to env vars
// by upper-casing and replacing dots, e.g. wazuh.host -> WAZUH_HOST.
// The returned flag reports whether a .env file was loaded.
func Load() (*Config, bool, error) {
	loadedDotenv := godotenv.Load() == nil

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, loadedDotenv, errors.Wrap(err, "unable to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, loadedDotenv, err
	}
	return &cfg, loadedDotenv, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Port <= 0 {
		return errors.Newf("invalid PORT %d", c.Port)
	}
	if c.Wazuh.Port <= 0 || c.OpenSearch.Port <= 0 {
		return errors.New("wazuh and opensearch ports must be positive")
	}
	if c.Wazuh.Timeout <= 0 || c.OpenSearch.Timeout <= 0 || c.Keystroke.Timeout <= 0 {
		return errors.New("upstream timeouts must be positive")
	}
	if _, err := c.KeystrokeZone(); err != nil {
		return err
	}
	if c.OpenSearch.Index == "" {
		return errors.New("OPENSEARCH_INDEX must not be empty")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	return nil
}
