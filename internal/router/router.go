// Package router selects which conversational agent handles a user turn.
//
// Selection is rule based and deterministic: structured-data detection
// outranks intent keywords, which outrank the proceed transition, which
// outranks continuing with the active agent.
package router

import (
	"regexp"
	"strings"

	"github.com/globaltrustbank/loanorch/internal/agent"
	"github.com/globaltrustbank/loanorch/internal/domain"
)

// Reason explains why an agent was selected.
type Reason string

const (
	ReasonNoAgents          Reason = "no_agents"
	ReasonEmptyHistory      Reason = "empty_history"
	ReasonPrequalData       Reason = "prequal_data"
	ReasonApplicationForm   Reason = "application_form"
	ReasonPrequalIntent     Reason = "prequal_intent"
	ReasonApplicationIntent Reason = "application_intent"
	ReasonProceed           Reason = "proceed_transition"
	ReasonActiveAgent       Reason = "active_agent"
	ReasonDefaultFirst      Reason = "default_first"
)

// Decision is the routing outcome for one turn.
type Decision struct {
	Agent  agent.Handle
	Reason Reason
}

// Router is a LoanAgentSelector. It holds no per-session state.
type Router struct {
	rules *compiledRules
}

// New creates a router from the given rules.
func New(rules Rules) (*Router, error) {
	c, err := compile(rules)
	if err != nil {
		return nil, err
	}
	return &Router{rules: c}, nil
}

// Default creates a router with the built-in rules.
func Default() *Router {
	r, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return r
}

// SelectAgent returns the agent for the latest message in history, or nil
// when no agents are available.
func (r *Router) SelectAgent(agents []agent.Handle, history []domain.Message) agent.Handle {
	return r.Select(agents, history).Agent
}

// Select is SelectAgent with the reason for the choice.
func (r *Router) Select(agents []agent.Handle, history []domain.Message) Decision {
	if len(agents) == 0 {
		return Decision{Reason: ReasonNoAgents}
	}
	if len(history) == 0 {
		return Decision{Agent: agents[0], Reason: ReasonEmptyHistory}
	}

	text := strings.ToLower(strings.TrimSpace(history[len(history)-1].Content))
	prequal := agent.Find(agents, domain.AgentPrequalification)
	application := agent.Find(agents, domain.AgentApplication)

	if prequal != nil && matchesAny(r.rules.prequalData, text) {
		return Decision{Agent: prequal, Reason: ReasonPrequalData}
	}
	if application != nil && matchesAny(r.rules.applicationForm, text) {
		return Decision{Agent: application, Reason: ReasonApplicationForm}
	}
	if prequal != nil && containsAny(text, r.rules.prequalWords) {
		return Decision{Agent: prequal, Reason: ReasonPrequalIntent}
	}
	if application != nil && (containsAny(text, r.rules.applyWords) || r.hasCustomerID(text)) {
		return Decision{Agent: application, Reason: ReasonApplicationIntent}
	}

	last := LastRespondingAgent(history)
	if application != nil && last == domain.AgentPrequalification && containsAny(text, r.rules.proceed) {
		return Decision{Agent: application, Reason: ReasonProceed}
	}

	if last != "" {
		if active := agent.Find(agents, last); active != nil {
			return Decision{Agent: active, Reason: ReasonActiveAgent}
		}
	}
	return Decision{Agent: agents[0], Reason: ReasonDefaultFirst}
}

// LastRespondingAgent scans history backward, skipping the latest message,
// for the most recent agent that answered.
func LastRespondingAgent(history []domain.Message) string {
	for i := len(history) - 2; i >= 0; i-- {
		if history[i].AgentName != "" {
			return history[i].AgentName
		}
	}
	return ""
}

// AgentType maps an agent name to the API agent_type enum.
func AgentType(name string) domain.AgentType {
	switch name {
	case domain.AgentPrequalification:
		return domain.AgentTypePrequalification
	case domain.AgentApplication:
		return domain.AgentTypeApplication
	case domain.AgentLoanStatus:
		return domain.AgentTypeLoanStatusCheck
	case domain.AgentAudit:
		return domain.AgentTypeAudit
	default:
		return domain.AgentTypeOrchestrator
	}
}

func (r *Router) hasCustomerID(text string) bool {
	return r.rules.customerID != nil && r.rules.customerID.MatchString(text)
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
