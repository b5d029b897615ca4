package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30, cfg.JobProcess.AutoRejectRequestedDelay)
	assert.Equal(t, 360, cfg.JobProcess.AutoRejectServicedDelay)
	assert.Equal(t, "10", cfg.JobProcess.TransportFee)
	assert.Equal(t, time.Minute, cfg.JobProcess.SweepInterval)
	assert.True(t, cfg.JobProcess.SweepOnRead)
	assert.Equal(t, 90*time.Second, cfg.Presence.TTL)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTO_REJECT_REQUESTED_DELAY", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("POSTGRESQL_HOST", "pg")
	t.Setenv("POSTGRESQL_USER", "app")
	t.Setenv("POSTGRESQL_PASSWORD", "s3cret")
	t.Setenv("POSTGRESQL_DBNAME", "roadside")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.JobProcess.AutoRejectRequestedDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "postgres://app:s3cret@pg:5432/roadside?sslmode=disable", cfg.DatabaseURL)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositiveDelay(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTO_REJECT_SERVICED_DELAY", "0")

	_, err := Load()
	assert.Error(t, err)
}
