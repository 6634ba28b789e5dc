// Package config provides configuration for the loan orchestrator.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int
	RPCPort  int

	// Database
	DatabaseURL string

	// Agent backend: http, openai or mock
	AgentBackend    string
	AgentServiceURL string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string

	// Invocation policy
	InvokeMaxRetries    int
	InvokeTimeout       time.Duration
	InvokeMaxTimeout    time.Duration
	InvokeTimeoutFactor float64
	InvokeBaseDelay     time.Duration
	InvokeMaxJitter     time.Duration
	ChatTimeout         time.Duration
	AuditMaxRetries     int
	AuditTimeout        time.Duration

	// Notifications
	DripInterval     time.Duration
	NotifyPoll       time.Duration
	NotifyWebhookURL string
	NotifyRatePerSec float64

	// Sessions and routing
	SessionIdleTTL   time.Duration
	RoutingRulesFile string

	SeedDemoData bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		RPCPort:             getEnvInt("RPC_PORT", 8082),
		DatabaseURL:         getEnv("DATABASE_URL", "file:loanorch.db?cache=shared&mode=rwc"),
		AgentBackend:        getEnv("AGENT_BACKEND", "http"),
		AgentServiceURL:     getEnv("AGENT_SERVICE_URL", "http://localhost:8090"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		InvokeMaxRetries:    getEnvInt("INVOKE_MAX_RETRIES", 3),
		InvokeTimeout:       getEnvDuration("INVOKE_TIMEOUT_MS", 120000),
		InvokeMaxTimeout:    getEnvDuration("INVOKE_MAX_TIMEOUT_MS", 300000),
		InvokeTimeoutFactor: getEnvFloat("INVOKE_TIMEOUT_FACTOR", 1.5),
		InvokeBaseDelay:     getEnvDuration("INVOKE_BASE_DELAY_MS", 2000),
		InvokeMaxJitter:     getEnvDuration("INVOKE_MAX_JITTER_MS", 1000),
		ChatTimeout:         getEnvDuration("CHAT_TIMEOUT_MS", 90000),
		AuditMaxRetries:     getEnvInt("AUDIT_MAX_RETRIES", 2),
		AuditTimeout:        getEnvDuration("AUDIT_TIMEOUT_MS", 60000),
		DripInterval:        getEnvDuration("DRIP_INTERVAL_MS", 60000),
		NotifyPoll:          getEnvDuration("NOTIFY_POLL_MS", 500),
		NotifyWebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyRatePerSec:    getEnvFloat("NOTIFY_RATE_PER_SEC", 5),
		SessionIdleTTL:      getEnvDuration("SESSION_IDLE_TTL_MS", 3600000),
		RoutingRulesFile:    getEnv("ROUTING_RULES_FILE", ""),
		SeedDemoData:        getEnvBool("SEED_DEMO_DATA", false),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
