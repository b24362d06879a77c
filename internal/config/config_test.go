package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlime/knotd/internal/config"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("KNOTD_JWT_SECRET", "")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KNOTD_JWT_SECRET", "s3cr3t")
	t.Setenv("KNOTD_ADDR", "")
	t.Setenv("KNOTD_DB_PATH", "")
	t.Setenv("KNOTD_TOKEN_TTL_SECONDS", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "data/knotd.sqlite", cfg.DatabasePath)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KNOTD_JWT_SECRET", "s3cr3t")
	t.Setenv("KNOTD_ADDR", ":9090")
	t.Setenv("KNOTD_DB_PATH", "/tmp/knotd.sqlite")
	t.Setenv("KNOTD_TOKEN_TTL_SECONDS", "60")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/tmp/knotd.sqlite", cfg.DatabasePath)
	assert.Equal(t, time.Minute, cfg.TokenTTL)
}

func TestLoadRejectsNonNumericTTL(t *testing.T) {
	t.Setenv("KNOTD_JWT_SECRET", "s3cr3t")
	t.Setenv("KNOTD_TOKEN_TTL_SECONDS", "not-a-number")

	_, err := config.Load()
	assert.Error(t, err)
}
