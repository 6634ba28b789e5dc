package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 8082, cfg.RPCPort)
	assert.Equal(t, 3, cfg.InvokeMaxRetries)
	assert.Equal(t, 120*time.Second, cfg.InvokeTimeout)
	assert.Equal(t, 300*time.Second, cfg.InvokeMaxTimeout)
	assert.Equal(t, 1.5, cfg.InvokeTimeoutFactor)
	assert.Equal(t, 2*time.Second, cfg.InvokeBaseDelay)
	assert.Equal(t, 90*time.Second, cfg.ChatTimeout)
	assert.Equal(t, 2, cfg.AuditMaxRetries)
	assert.Equal(t, time.Minute, cfg.DripInterval)
	assert.Equal(t, time.Hour, cfg.SessionIdleTTL)
	assert.False(t, cfg.SeedDemoData)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("INVOKE_TIMEOUT_FACTOR", "2")
	t.Setenv("DRIP_INTERVAL_MS", "10")
	t.Setenv("SEED_DEMO_DATA", "true")
	t.Setenv("AGENT_BACKEND", "mock")
	t.Setenv("INVOKE_MAX_RETRIES", "not-a-number")

	cfg := Load()

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 2.0, cfg.InvokeTimeoutFactor)
	assert.Equal(t, 10*time.Millisecond, cfg.DripInterval)
	assert.True(t, cfg.SeedDemoData)
	assert.Equal(t, "mock", cfg.AgentBackend)
	assert.Equal(t, 3, cfg.InvokeMaxRetries)
}
