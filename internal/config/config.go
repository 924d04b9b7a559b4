package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Commission CommissionConfig `mapstructure:"commission"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Audit      AuditConfig      `mapstructure:"audit"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Reconcile  string        `mapstructure:"reconcile"`
	StuckAfter time.Duration `mapstructure:"stuck_after"`
	BatchSize  int           `mapstructure:"batch_size"`
}

// SettlementConfig controls how order completion reaches the coordinator.
// Mode "sync" settles inline; "async" publishes an event for the worker.
type SettlementConfig struct {
	Mode         string        `mapstructure:"mode"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
}

type CommissionConfig struct {
	DefaultModel        string  `mapstructure:"default_model"`
	DefaultRate         float64 `mapstructure:"default_rate"`
	DefaultSpreadWeight float64 `mapstructure:"default_spread_weight"`
}

type KafkaConfig struct {
	Brokers  []string      `mapstructure:"brokers"`
	Topic    string        `mapstructure:"topic"`
	GroupID  string        `mapstructure:"group_id"`
	MinBytes int           `mapstructure:"min_bytes"`
	MaxBytes int           `mapstructure:"max_bytes"`
	MaxWait  time.Duration `mapstructure:"max_wait"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	DedupeTTL time.Duration `mapstructure:"dedupe_ttl"`
	ClaimTTL  time.Duration `mapstructure:"claim_ttl"`
}

type AuditConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Agent   string        `mapstructure:"agent"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KRF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.reconcile", "@every 1m")
	v.SetDefault("cron.stuck_after", "2m")
	v.SetDefault("cron.batch_size", 100)

	v.SetDefault("settlement.mode", "sync")
	v.SetDefault("settlement.max_attempts", 3)
	v.SetDefault("settlement.retry_backoff", "50ms")
	v.SetDefault("settlement.workers", 4)
	v.SetDefault("settlement.queue_size", 256)

	v.SetDefault("commission.default_model", "percentage")
	v.SetDefault("commission.default_rate", 0)
	v.SetDefault("commission.default_spread_weight", 1)

	// Kafka stays off unless brokers are set; the in-process queue is used instead.
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "orders.completed")
	v.SetDefault("kafka.group_id", "kuberafi-settlement")
	v.SetDefault("kafka.min_bytes", 1)
	v.SetDefault("kafka.max_bytes", 10e6)
	v.SetDefault("kafka.max_wait", "1s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dedupe_ttl", "24h")
	v.SetDefault("redis.claim_ttl", "1m")

	v.SetDefault("audit.base_url", "")
	v.SetDefault("audit.agent", "kuberafi-ledger")
	v.SetDefault("audit.timeout", "2s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
