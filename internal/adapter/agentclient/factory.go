package agentclient

import (
	"log"
	"os"
	"strings"

	"github.com/globaltrustbank/loanorch/internal/adapter/openai"
	"github.com/globaltrustbank/loanorch/internal/agent"
	"github.com/globaltrustbank/loanorch/internal/config"
)

const (
	// EnvLoanMode is the environment variable name for mode selection.
	EnvLoanMode = "LOAN_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewAgentClient creates the agent backend selected by configuration.
// LOAN_MODE=MOCK always wins.
func NewAgentClient(cfg *config.Config) agent.Client {
	if os.Getenv(EnvLoanMode) == ModeMock {
		log.Println("LOAN_MODE=MOCK detected, using mock agent client")
		return NewMockClient()
	}

	switch strings.ToLower(cfg.AgentBackend) {
	case "mock":
		return NewMockClient()
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		return NewClient(cfg.AgentServiceURL)
	}
}
