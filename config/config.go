package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bdos/internal/service/catalog"
	"bdos/pkg/circuitbreaker"
	pkgconfig "bdos/pkg/config"
	"bdos/pkg/otel"
)

type LogConfig struct {
	Level string `yaml:"level"`
}

type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	Secure     bool   `yaml:"secure"`
}

// LoginConfig 登录限流
type LoginConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	WindowMinutes int `yaml:"window_minutes"`
}

func (c LoginConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

type IdempotencyConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

func (c IdempotencyConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// OutboxConfig controls event recording and the background dispatcher.
type OutboxConfig struct {
	Enabled         bool `yaml:"enabled"`
	MaxRetries      int  `yaml:"max_retries"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	BatchSize       int  `yaml:"batch_size"`
}

func (c OutboxConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

type Config struct {
	Log            LogConfig              `yaml:"log"`
	DB             pkgconfig.DBConfig     `yaml:"db"`
	MQ             pkgconfig.MQConfig     `yaml:"mq"`
	Redis          pkgconfig.RedisConfig  `yaml:"redis"`
	JWT            pkgconfig.JWTConfig    `yaml:"jwt"`
	Server         pkgconfig.ServerConfig `yaml:"server"`
	OTel           otel.Config            `yaml:"otel"`
	Session        SessionConfig          `yaml:"session"`
	Login          LoginConfig            `yaml:"login"`
	Idempotency    IdempotencyConfig      `yaml:"idempotency"`
	Outbox         OutboxConfig           `yaml:"outbox"`
	CircuitBreaker circuitbreaker.Config  `yaml:"circuit_breaker"`
	Seed           catalog.Bootstrap      `yaml:"seed"`
}

// Load 读取 configDir 下的 base.yaml 与 <env>.yaml，再用环境变量覆盖
func Load(env, configDir string) (*Config, error) {
	var cfg Config
	if err := pkgconfig.Load(env, configDir, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（生产环境使用）
	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if v := os.Getenv("OUTBOX_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Outbox.Enabled = b
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "bdos_session"
	}
	if c.Login.MaxAttempts <= 0 {
		c.Login.MaxAttempts = 5
	}
	if c.Login.WindowMinutes <= 0 {
		c.Login.WindowMinutes = 15
	}
	if c.Idempotency.TTLSeconds <= 0 {
		c.Idempotency.TTLSeconds = 600
	}
	if c.Outbox.MaxRetries <= 0 {
		c.Outbox.MaxRetries = 5
	}
	if c.Outbox.IntervalSeconds <= 0 {
		c.Outbox.IntervalSeconds = 5
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = 100
	}
	if c.OTel.ServiceName == "" {
		c.OTel.ServiceName = "bdos"
	}
}

// unresolved reports a ${VAR} placeholder that no env source filled in.
func unresolved(s string) bool {
	return strings.Contains(s, "${")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || unresolved(c.JWT.Secret) {
		return fmt.Errorf("jwt.secret is required")
	}
	if unresolved(c.DB.Password) {
		return fmt.Errorf("db.password references an unset variable")
	}
	if c.Seed.AdminEmail != "" && (c.Seed.AdminPassword == "" || unresolved(c.Seed.AdminPassword)) {
		return fmt.Errorf("seed.admin_password is required when seed.admin_email is set")
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		return fmt.Errorf("db.host and db.name are required")
	}
	if c.Outbox.Enabled && !c.MQ.Enabled {
		return fmt.Errorf("outbox.enabled requires mq.enabled")
	}
	return nil
}
