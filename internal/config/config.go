// Package config loads server configuration from the environment, following
// the teacher's env-var-with-defaults convention.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server entrypoint needs to wire up the
// registry.
type Config struct {
	Addr string

	DatabasePath string

	JWTSecret string
	TokenTTL  time.Duration
}

// Load reads Config from the environment, applying the teacher's defaults
// pattern and failing fast on a missing signing secret.
func Load() (Config, error) {
	cfg := Config{
		Addr:         env("KNOTD_ADDR", ":8080"),
		DatabasePath: env("KNOTD_DB_PATH", "data/knotd.sqlite"),
		JWTSecret:    env("KNOTD_JWT_SECRET", ""),
		TokenTTL:     2 * time.Hour,
	}

	if v := strings.TrimSpace(env("KNOTD_TOKEN_TTL_SECONDS", "")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, err
		}
		cfg.TokenTTL = time.Duration(n) * time.Second
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, errors.New("missing KNOTD_JWT_SECRET")
	}

	return cfg, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}
