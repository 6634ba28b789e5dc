package domain

import "time"

// Message is one turn in a conversation session.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	AgentName string    `json:"agent_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SharedContext holds findings accumulated across stages of one run.
type SharedContext struct {
	ApplicantName      string   `json:"applicant_name,omitempty"`
	RiskFactors        []string `json:"risk_factors"`
	SupportingEvidence []string `json:"supporting_evidence"`
}

// ChatRequest is a single user turn submitted to the orchestrator.
type ChatRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Message    string `json:"message"`
}

// ChatResponse is returned for every handled turn.
type ChatResponse struct {
	Message   string    `json:"message"`
	AgentType AgentType `json:"agent_type"`
	AgentName string    `json:"agent_name,omitempty"`
	Status    string    `json:"status"`
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat response statuses.
const (
	ChatStatusSuccess = "success"
	ChatStatusError   = "error"
)

// SessionInfo is a read-only view of a conversation session.
type SessionInfo struct {
	SessionID     string        `json:"session_id"`
	CustomerID    string        `json:"customer_id,omitempty"`
	ActiveAgent   string        `json:"active_agent,omitempty"`
	MessageCount  int           `json:"message_count"`
	SharedContext SharedContext `json:"shared_context"`
	CreatedAt     time.Time     `json:"created_at"`
	LastActiveAt  time.Time     `json:"last_active_at"`
}
