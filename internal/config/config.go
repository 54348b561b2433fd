// Package config содержит логику чтения конфигурации сервиса бронирования.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress    = "localhost:8080"
	defaultTxTimeout     = 5 * time.Second
	defaultCacheTTL      = time.Minute
	defaultRelayInterval = time.Second
)

// Config содержит параметры конфигурации сервиса бронирования.
type Config struct {
	RunAddress    string        `env:"RUN_ADDRESS"`
	DatabaseURI   string        `env:"DATABASE_URI"`
	JWTSecret     string        `env:"JWT_SECRET"`
	RabbitMQURL   string        `env:"RABBITMQ_URL"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	TxTimeout     time.Duration `env:"TX_TIMEOUT"`
	CacheTTL      time.Duration `env:"CACHE_TTL"`
	RelayInterval time.Duration `env:"RELAY_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.JWTSecret, "s", "", "secret used to verify bearer tokens")
	flag.StringVar(&cfg.RabbitMQURL, "q", "", "RabbitMQ URL for booking events")
	flag.StringVar(&cfg.RedisAddr, "c", "", "redis address for catalog cache")
	flag.DurationVar(&cfg.TxTimeout, "t", defaultTxTimeout, "booking transaction timeout")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", defaultCacheTTL, "catalog cache TTL")
	flag.DurationVar(&cfg.RelayInterval, "relay-interval", defaultRelayInterval, "outbox relay poll interval")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.JWTSecret != "" {
		cfg.JWTSecret = envCfg.JWTSecret
	}
	if envCfg.RabbitMQURL != "" {
		cfg.RabbitMQURL = envCfg.RabbitMQURL
	}
	if envCfg.RedisAddr != "" {
		cfg.RedisAddr = envCfg.RedisAddr
	}
	if envCfg.TxTimeout > 0 {
		cfg.TxTimeout = envCfg.TxTimeout
	}
	if envCfg.CacheTTL > 0 {
		cfg.CacheTTL = envCfg.CacheTTL
	}
	if envCfg.RelayInterval > 0 {
		cfg.RelayInterval = envCfg.RelayInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = defaultTxTimeout
	}

	return cfg, nil
}
