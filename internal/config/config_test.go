package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.AdmissionTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("ADMISSION_TTL", "2m")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("QUEUE_BACKEND", "memory")

	cfg := Load()
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 2*time.Minute, cfg.AdmissionTTL)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, "memory", cfg.QueueBackend)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ADMISSION_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")

	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.AdmissionTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}
