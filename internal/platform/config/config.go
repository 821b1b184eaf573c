package config

import (
	"os"
	"time"
)

// Store selects which referral store backend the server runs against.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	StoreDriver   string
	PostgresDSN   string
	RedisURL      string
	LinkBaseURL   string
	JWTSigningKey string
}

// RedisConfig tunes the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("REFERRALS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	storeDriver := os.Getenv("REFERRALS_STORE")
	if storeDriver == "" {
		storeDriver = StoreMemory
	}

	linkBaseURL := os.Getenv("REFERRAL_LINK_BASE_URL")
	if linkBaseURL == "" {
		linkBaseURL = "http://localhost:8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		StoreDriver:   storeDriver,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisURL:      os.Getenv("REDIS_URL"),
		LinkBaseURL:   linkBaseURL,
		JWTSigningKey: jwtSigningKey,
	}
}

// RedisFromEnv builds the Redis client configuration with pool defaults.
func RedisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
