// Package config loads process configuration from the environment once, at
// startup. Components never read the environment themselves; main passes each
// constructor only the fields it needs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything cmd/api needs to wire the service.
type Config struct {
	// HTTP
	Addr         string
	MaxBodyBytes int64
	RateBurst    int
	RatePerSec   int

	// Postgres
	DatabaseDSN string

	// Identity provider (OIDC)
	IdentityIssuer   string
	IdentityAudience string

	// Capability tokens
	TokenSecret string
	TokenTTL    time.Duration
}

const envPrefix = "WORKHUB_"

// FromEnv reads WORKHUB_* variables and validates the required ones.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:             getenv("ADDR", ":8080"),
		MaxBodyBytes:     1 << 20,
		RateBurst:        getint("RATE_BURST", 20),
		RatePerSec:       getint("RATE_PER_SECOND", 10),
		DatabaseDSN:      getenv("PG_DSN", ""),
		IdentityIssuer:   getenv("IDENTITY_ISSUER", ""),
		IdentityAudience: getenv("IDENTITY_AUDIENCE", ""),
		TokenSecret:      getenv("TOKEN_SECRET", ""),
		TokenTTL:         getduration("TOKEN_TTL", 24*time.Hour),
	}

	var missing []string
	if cfg.TokenSecret == "" {
		missing = append(missing, envPrefix+"TOKEN_SECRET")
	}
	if cfg.IdentityIssuer == "" {
		missing = append(missing, envPrefix+"IDENTITY_ISSUER")
	}
	if cfg.IdentityAudience == "" {
		missing = append(missing, envPrefix+"IDENTITY_AUDIENCE")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, errors.New("config: token ttl must be positive")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(envPrefix + key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getduration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(envPrefix + key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return v
}
