package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Postgres    DatabaseConfig    `mapstructure:"postgres"`
	ClickHouse  DatabaseConfig    `mapstructure:"clickhouse"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Outbox      OutboxConfig      `mapstructure:"outbox"`
	Relay       RelayConfig       `mapstructure:"relay"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Archiver    ArchiverConfig    `mapstructure:"archiver"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"` // debug|info|warn|error
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	GroupID        string        `mapstructure:"group_id"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	CommitInterval int           `mapstructure:"commit_interval_ms"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

// OutboxConfig controls event capture from the watched table.
// Mode "trigger" relies on the database trigger installed by migrations;
// "app" makes the catalog service emit events itself in the same
// transaction, for deployments where installing triggers is not allowed.
type OutboxConfig struct {
	Capture       string   `mapstructure:"capture"` // trigger|app
	TrackedFields []string `mapstructure:"tracked_fields"`
}

type RelayConfig struct {
	ConsumerID   string        `mapstructure:"consumer_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

type MaintenanceConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	Retention      time.Duration `mapstructure:"retention"`
	DLQMaxAttempts int           `mapstructure:"dlq_max_attempts"`
	DLQMaxAge      time.Duration `mapstructure:"dlq_max_age"`
}

type ArchiverConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

type NotifyConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	SyncedCooldown time.Duration `mapstructure:"synced_cooldown"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (CATNOTIF_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (CATNOTIF_*)
	v.SetEnvPrefix("CATNOTIF")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
