package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Popularity PopularityConfig `mapstructure:"popularity"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Messaging  MessagingConfig  `mapstructure:"messaging"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Addr 返回监听地址
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // postgres, sqlite
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
	LogLevel     string `mapstructure:"log_level"` // silent, error, warn, info
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"` // empty disables redis, run lock falls back to in-process
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
	// Admins 允许调用 /admin 接口的 uid；为空时 /admin 全部拒绝
	Admins []string `mapstructure:"admins"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// PopularityConfig 热度聚合任务
type PopularityConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Cron       string        `mapstructure:"cron"`
	PageSize   int           `mapstructure:"page_size"`
	PageDelay  time.Duration `mapstructure:"page_delay"`
	MinRefresh time.Duration `mapstructure:"min_refresh"`
	Budget     time.Duration `mapstructure:"budget"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

type NotifierConfig struct {
	QueueSize int `mapstructure:"queue_size"`
	Workers   int `mapstructure:"workers"`
}

type MessagingConfig struct {
	MaxBatchWrites int `mapstructure:"max_batch_writes"`
	MaxContentLen  int `mapstructure:"max_content_len"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// Load 读取配置：.env -> config.yaml -> APP_ 前缀环境变量
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查不能靠默认值兜底的配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Popularity.PageSize <= 0 {
		return fmt.Errorf("popularity.page_size must be positive")
	}
	if c.Popularity.MinRefresh <= 0 {
		return fmt.Errorf("popularity.min_refresh must be positive")
	}
	if c.Messaging.MaxBatchWrites < 3 {
		return fmt.Errorf("messaging.max_batch_writes must be at least 3")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:engagement.db?_busy_timeout=5000")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// 无默认值的键也要注册，否则 AutomaticEnv 在 Unmarshal 时读不到
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.admins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("popularity.enabled", true)
	v.SetDefault("popularity.cron", "0 3 * * *")
	v.SetDefault("popularity.page_size", 25)
	v.SetDefault("popularity.page_delay", 200*time.Millisecond)
	v.SetDefault("popularity.min_refresh", time.Hour)
	v.SetDefault("popularity.budget", 9*time.Minute)
	v.SetDefault("popularity.lock_ttl", 10*time.Minute)

	v.SetDefault("notifier.queue_size", 10000)
	v.SetDefault("notifier.workers", 4)

	v.SetDefault("messaging.max_batch_writes", 500)
	v.SetDefault("messaging.max_content_len", 4000)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "engagement")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
}
