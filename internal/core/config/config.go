package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

// Config represents the top-level application config plus the resolved
// window policy.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	MQTT     MQTTConfig     `koanf:"mqtt"`
	History  HistoryConfig  `koanf:"history"`
	Sync     SyncConfig     `koanf:"sync"`

	// WindowPolicy is populated by Load after parsing policy files.
	WindowPolicy vitals.WindowPolicy `koanf:"-"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type MQTTConfig struct {
	BrokerURL string `koanf:"broker_url"`
	ClientID  string `koanf:"client_id"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

type HistoryConfig struct {
	// Source selects the history backend: postgres | cloud.
	Source string `koanf:"source"`

	CloudBaseURL   string `koanf:"cloud_base_url"`
	CloudAppID     string `koanf:"cloud_app_id"`
	CloudSecretKey string `koanf:"cloud_secret_key"`
	CloudTimeout   string `koanf:"cloud_timeout"`
}

type SyncConfig struct {
	UserID string `koanf:"user_id"`

	// PreferPollingDefault applies when the user has no stored
	// prefer-polling preference.
	PreferPollingDefault bool `koanf:"prefer_polling_default"`

	PollInterval    string `koanf:"poll_interval"`
	HistoryMaxAge   string `koanf:"history_max_age"`
	HistoryMaxCount int    `koanf:"history_max_count"`
	CacheKey        string `koanf:"cache_key"`
	CacheTTL        string `koanf:"cache_ttl"`
	PolicyDir       string `koanf:"policy_dir"`
}

func (c SyncConfig) EffectivePollInterval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

func (c SyncConfig) EffectiveHistoryMaxAge() time.Duration {
	d, err := time.ParseDuration(c.HistoryMaxAge)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func (c SyncConfig) EffectiveCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func (c HistoryConfig) EffectiveCloudTimeout() time.Duration {
	d, err := time.ParseDuration(c.CloudTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr is required")
	}

	if strings.TrimSpace(c.MQTT.BrokerURL) == "" {
		return fmt.Errorf("mqtt.broker_url is required")
	}

	switch c.History.Source {
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres history source")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	case "cloud":
		if strings.TrimSpace(c.History.CloudBaseURL) == "" {
			return fmt.Errorf("history.cloud_base_url is required for the cloud history source")
		}
		if strings.TrimSpace(c.History.CloudAppID) == "" {
			return fmt.Errorf("history.cloud_app_id is required for the cloud history source")
		}
		if strings.TrimSpace(c.History.CloudSecretKey) == "" {
			return fmt.Errorf("history.cloud_secret_key is required for the cloud history source")
		}
	default:
		return fmt.Errorf("unsupported history.source %q (must be postgres or cloud)", c.History.Source)
	}

	if strings.TrimSpace(c.Sync.UserID) == "" {
		return fmt.Errorf("sync.user_id is required")
	}
	if strings.TrimSpace(c.Sync.CacheKey) == "" {
		return fmt.Errorf("sync.cache_key is required")
	}
	if c.Sync.PollInterval != "" {
		if _, err := time.ParseDuration(c.Sync.PollInterval); err != nil {
			return fmt.Errorf("invalid sync.poll_interval %q: %w", c.Sync.PollInterval, err)
		}
	}
	if c.Sync.HistoryMaxCount < 0 {
		return fmt.Errorf("sync.history_max_count must be >= 0")
	}

	return nil
}

// Load parses config from file + env, validates it, then resolves the
// window policy (defaults plus any overrides in sync.policy_dir).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                 8080,
		"server.host":                 "0.0.0.0",
		"server.mode":                 "release",
		"database.dsn":                "",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     25,
		"database.auto_migrate":       true,
		"redis.addr":                  "localhost:6379",
		"redis.password":              "",
		"redis.db":                    0,
		"mqtt.broker_url":             "tcp://localhost:1883",
		"mqtt.client_id":              "vitalsync",
		"mqtt.username":               "",
		"mqtt.password":               "",
		"history.source":              "postgres",
		"history.cloud_base_url":      "",
		"history.cloud_app_id":        "",
		"history.cloud_secret_key":    "",
		"history.cloud_timeout":       "10s",
		"sync.user_id":                "",
		"sync.prefer_polling_default": false,
		"sync.poll_interval":          "5m",
		"sync.history_max_age":        "24h",
		"sync.history_max_count":      5000,
		"sync.cache_key":              "",
		"sync.cache_ttl":              "0s",
		"sync.policy_dir":             "./config/windows",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("VITALSYNC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "VITALSYNC_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Sync.CacheKey == "" && cfg.Sync.UserID != "" {
		cfg.Sync.CacheKey = "vitals:snapshot:" + cfg.Sync.UserID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := vitals.LoadPolicyDir(cfg.Sync.PolicyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load window policy: %w", err)
	}
	cfg.WindowPolicy = policy

	return &cfg, nil
}
