// Package config loads gateway configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Acquirer AcquirerConfig `mapstructure:"acquirer"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Lock     LockConfig     `mapstructure:"lock"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	PublicBaseURL string `mapstructure:"public_base_url"` // prefix for hosted form links
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AcquirerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
	// Simulate swaps the HTTP client for the in-process simulator.
	Simulate bool `mapstructure:"simulate"`
}

type PaymentConfig struct {
	TTL              time.Duration `mapstructure:"ttl"` // Init to terminal state deadline
	MaxUpdateRetries int           `mapstructure:"max_update_retries"`
	AcquirerRetries  int           `mapstructure:"acquirer_retries"`
}

type LockConfig struct {
	Lease time.Duration `mapstructure:"lease"`
	Wait  time.Duration `mapstructure:"wait"`
	// DeadlockInterval is how often the wait-for graph is scanned; zero
	// disables the detector.
	DeadlockInterval time.Duration `mapstructure:"deadlock_interval"`
}

type QueueConfig struct {
	Capacity    int           `mapstructure:"capacity"`
	Workers     int           `mapstructure:"workers"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}

type WebhookConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type AdminConfig struct {
	// PasswordHash is the bcrypt hash of the admin password.
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PGW (Payment GateWay).
// Nested keys use underscore: PGW_DATABASE_HOST, PGW_ADMIN_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_base_url", "http://localhost:8080")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payment_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("acquirer.base_url", "")
	v.SetDefault("acquirer.api_key", "")
	v.SetDefault("acquirer.timeout", "10s")
	v.SetDefault("acquirer.breaker_timeout", "30s")
	v.SetDefault("acquirer.simulate", true)
	v.SetDefault("payment.ttl", "15m")
	v.SetDefault("payment.max_update_retries", 3)
	v.SetDefault("payment.acquirer_retries", 2)
	v.SetDefault("lock.lease", "30s")
	v.SetDefault("lock.wait", "30s")
	v.SetDefault("lock.deadlock_interval", "5s")
	v.SetDefault("queue.capacity", 10000)
	v.SetDefault("queue.workers", 50)
	v.SetDefault("queue.job_timeout", "5m")
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.backoff_base", "30s")
	v.SetDefault("webhook.max_attempts", 7)
	v.SetDefault("webhook.poll_interval", "5s")
	v.SetDefault("webhook.send_timeout", "10s")
	v.SetDefault("webhook.batch_size", 100)
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_ttl", "1h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PGW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
