package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	NATS       NATSConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Generator  GeneratorConfig
	Quota      QuotaConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL     string
	Enabled bool
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type EncryptionConfig struct {
	Key string
}

// GeneratorConfig configures the hosted generative-AI collaborator.
type GeneratorConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string
	Timeout        time.Duration
}

// QuotaConfig controls per-user daily usage accounting.
//
// FailOpen decides what happens when the counter store is unreachable
// during an admission check: true allows the request through (availability
// over strictness), false denies it. The degradation is logged either way.
type QuotaConfig struct {
	DailyLimit int
	FailOpen   bool
	MaxRetries int
	Timezone   string
}

type RateLimitConfig struct {
	AuthMaxRequests int
	AuthWindowSec   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:     k.String("nats.url"),
			Enabled: k.Bool("nats.enabled"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		Encryption: EncryptionConfig{
			Key: k.String("encryption.key"),
		},
		Generator: GeneratorConfig{
			APIKey:         k.String("generator.api.key"),
			Model:          k.String("generator.model"),
			EmbeddingModel: k.String("generator.embedding.model"),
			BaseURL:        k.String("generator.base.url"),
		},
		Quota: QuotaConfig{
			DailyLimit: k.Int("quota.daily.limit"),
			MaxRetries: k.Int("quota.max.retries"),
			Timezone:   k.String("quota.timezone"),
		},
		RateLimit: RateLimitConfig{
			AuthMaxRequests: k.Int("ratelimit.auth.max"),
			AuthWindowSec:   k.Int("ratelimit.auth.window.sec"),
		},
		CORS: CORSConfig{
			AllowedOrigins: k.Strings("cors.allowed.origins"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Fail-open is the default policy; only an explicit "false" turns it off.
	if k.Exists("quota.fail.open") {
		cfg.Quota.FailOpen = k.Bool("quota.fail.open")
	} else {
		cfg.Quota.FailOpen = true
	}

	applyDefaults(cfg)

	if err := parseDurations(k, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "promptforge"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "promptforge"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gemini-1.5-flash"
	}
	if cfg.Generator.EmbeddingModel == "" {
		cfg.Generator.EmbeddingModel = "text-embedding-004"
	}
	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = 100
	}
	if cfg.Quota.MaxRetries == 0 {
		cfg.Quota.MaxRetries = 5
	}
	if cfg.Quota.Timezone == "" {
		cfg.Quota.Timezone = "UTC"
	}
	if cfg.RateLimit.AuthMaxRequests == 0 {
		cfg.RateLimit.AuthMaxRequests = 10
	}
	if cfg.RateLimit.AuthWindowSec == 0 {
		cfg.RateLimit.AuthWindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func parseDurations(k *koanf.Koanf, cfg *Config) error {
	var err error

	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	refreshExpStr := k.String("jwt.refresh.expiry")
	if refreshExpStr == "" {
		refreshExpStr = "168h"
	}
	cfg.JWT.RefreshExpiry, err = time.ParseDuration(refreshExpStr)
	if err != nil {
		return fmt.Errorf("parsing jwt refresh expiry: %w", err)
	}

	genTimeoutStr := k.String("generator.timeout")
	if genTimeoutStr == "" {
		genTimeoutStr = "45s"
	}
	cfg.Generator.Timeout, err = time.ParseDuration(genTimeoutStr)
	if err != nil {
		return fmt.Errorf("parsing generator timeout: %w", err)
	}

	readTimeoutStr := k.String("server.read.timeout")
	if readTimeoutStr == "" {
		readTimeoutStr = "15s"
	}
	cfg.Server.ReadTimeout, err = time.ParseDuration(readTimeoutStr)
	if err != nil {
		return fmt.Errorf("parsing server read timeout: %w", err)
	}

	writeTimeoutStr := k.String("server.write.timeout")
	if writeTimeoutStr == "" {
		// Generation calls are slow; leave headroom beyond the generator timeout.
		writeTimeoutStr = "60s"
	}
	cfg.Server.WriteTimeout, err = time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return fmt.Errorf("parsing server write timeout: %w", err)
	}

	shutdownStr := k.String("server.shutdown.timeout")
	if shutdownStr == "" {
		shutdownStr = "30s"
	}
	cfg.Server.ShutdownTimeout, err = time.ParseDuration(shutdownStr)
	if err != nil {
		return fmt.Errorf("parsing server shutdown timeout: %w", err)
	}

	return nil
}
