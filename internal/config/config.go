package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Cron   CronConfig   `mapstructure:"cron"`
	Audit  AuditConfig  `mapstructure:"audit"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr       string   `mapstructure:"http_addr"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
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
	DSN              string        `mapstructure:"dsn"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone         string        `mapstructure:"timezone"`
	SeedCoefficients bool          `mapstructure:"seed_coefficients"`
}

// CacheConfig selects the shared store behind the coefficient table.
type CacheConfig struct {
	Backend        string        `mapstructure:"backend"` // memory|redis
	CoefficientTTL time.Duration `mapstructure:"coefficient_ttl"`
	CoefficientKey string        `mapstructure:"coefficient_key"`
	Redis          RedisConfig   `mapstructure:"redis"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BreakerConfig struct {
	MaxConsecutiveFailures uint32        `mapstructure:"max_consecutive_failures"`
	OpenTimeout            time.Duration `mapstructure:"open_timeout"`
}

type AuthConfig struct {
	Disabled  bool   `mapstructure:"disabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type CronConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CoefficientRefresh string `mapstructure:"coefficient_refresh"`
}

// AuditConfig points at an optional external audit-log service.
type AuditConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Agent       string        `mapstructure:"agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	QueueSize   int           `mapstructure:"queue_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BDP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8000")
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
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
	v.SetDefault("db.seed_coefficients", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.coefficient_ttl", "1h")
	v.SetDefault("cache.coefficient_key", "probability:coefficients")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.breaker.max_consecutive_failures", 3)
	v.SetDefault("cache.breaker.open_timeout", "30s")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "bdpipeline")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.coefficient_refresh", "@every 30m")
	v.SetDefault("audit.base_url", "")
	v.SetDefault("audit.api_key", "")
	v.SetDefault("audit.agent", "bdpipeline")
	v.SetDefault("audit.timeout", "2s")
	v.SetDefault("audit.queue_size", 256)
	v.SetDefault("audit.max_attempts", 3)
	v.SetDefault("audit.backoff", "200ms")

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
