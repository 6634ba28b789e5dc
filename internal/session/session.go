// Package session holds per-conversation state: history, the agent thread
// and the shared context accumulated across agents.
package session

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

var customerIDToken = regexp.MustCompile(`(?i)\bcust\d+\b`)

// Session is a ConversationSession. It is safe for concurrent use, but turns
// of one session are expected to be processed one at a time (see Lock).
type Session struct {
	ID        string
	CreatedAt time.Time

	turn sync.Mutex

	mu         sync.RWMutex
	customerID string
	history    []domain.Message
	thread     string
	lastActive time.Time
	shared     *SharedContext
}

// New creates an empty session.
func New(id string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		lastActive: now,
		shared:     NewSharedContext(),
	}
}

// Lock serializes turns of this session.
func (s *Session) Lock() { s.turn.Lock() }

// Unlock releases the turn lock.
func (s *Session) Unlock() { s.turn.Unlock() }

// Append adds a message to the history.
func (s *Session) Append(msg domain.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.mu.Lock()
	s.history = append(s.history, msg)
	s.lastActive = msg.Timestamp
	s.mu.Unlock()
}

// AppendUser records a user turn and adopts a customer id found in it.
func (s *Session) AppendUser(content string) {
	s.Append(domain.Message{Role: domain.RoleUser, Content: content})
	s.AdoptCustomerID(content)
}

// AppendAgent records an agent reply and adopts a customer id found in it.
func (s *Session) AppendAgent(agentName, content string) {
	s.Append(domain.Message{Role: domain.RoleAgent, AgentName: agentName, Content: content})
	s.AdoptCustomerID(content)
}

// History returns a copy of the history, most recent last.
func (s *Session) History() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.history))
	copy(out, s.history)
	return out
}

// ActiveAgent is the most recent agent that produced a response.
func (s *Session) ActiveAgent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].AgentName != "" {
			return s.history[i].AgentName
		}
	}
	return ""
}

// Thread implements invoker.ThreadHolder.
func (s *Session) Thread() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thread
}

// SetThread implements invoker.ThreadHolder.
func (s *Session) SetThread(thread string) {
	s.mu.Lock()
	s.thread = thread
	s.mu.Unlock()
}

// CustomerID returns the customer bound to this session, if known.
func (s *Session) CustomerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customerID
}

// SetCustomerID binds a validated customer id. Invalid ids are ignored.
func (s *Session) SetCustomerID(id string) bool {
	normalized, ok := domain.NormalizeCustomerID(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.customerID = normalized
	s.mu.Unlock()
	return true
}

// AdoptCustomerID binds the first customer id token in text when the session
// has none yet.
func (s *Session) AdoptCustomerID(text string) {
	if s.CustomerID() != "" {
		return
	}
	if tok := customerIDToken.FindString(text); tok != "" {
		s.SetCustomerID(strings.ToUpper(tok))
	}
}

// Shared returns the session's shared context.
func (s *Session) Shared() *SharedContext {
	return s.shared
}

// LastActive reports when the session last changed.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Info returns a read-only view.
func (s *Session) Info() domain.SessionInfo {
	s.mu.RLock()
	count := len(s.history)
	customerID := s.customerID
	last := s.lastActive
	s.mu.RUnlock()

	return domain.SessionInfo{
		SessionID:     s.ID,
		CustomerID:    customerID,
		ActiveAgent:   s.ActiveAgent(),
		MessageCount:  count,
		SharedContext: s.shared.Snapshot(),
		CreatedAt:     s.CreatedAt,
		LastActiveAt:  last,
	}
}
