package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/globaltrustbank/loanorch/internal/domain"
	"github.com/globaltrustbank/loanorch/internal/invoker"
	"github.com/globaltrustbank/loanorch/internal/router"
	"github.com/globaltrustbank/loanorch/internal/session"
	"github.com/globaltrustbank/loanorch/internal/underwriting"
)

// HandleTurn routes one user message to an agent and returns its reply.
// Agent failures degrade to an apology with status "error"; only missing
// agents, bad input and store failures are returned as errors.
func (s *Service) HandleTurn(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	var customerID string
	if req.CustomerID != "" {
		id, ok := domain.NormalizeCustomerID(req.CustomerID)
		if !ok {
			return nil, ErrInvalidCustomerID
		}
		customerID = id
	}

	sess := s.sessions.GetOrCreate(req.SessionID)
	sess.Lock()
	defer sess.Unlock()

	if customerID != "" {
		sess.SetCustomerID(customerID)
	}
	sess.AppendUser(message)

	decision := s.router.Select(s.agents, sess.History())
	if decision.Agent == nil {
		return nil, ErrNoAgents
	}
	agentName := decision.Agent.Name()
	routingDecisions.WithLabelValues(agentName, string(decision.Reason)).Inc()
	log.Printf("INFO: session %s routed to %s (%s)", sess.ID, agentName, decision.Reason)

	start := time.Now()
	text, err := s.invoker.Invoke(ctx, decision.Agent, message, sess,
		invoker.WithTimeout(s.config.ChatTimeout),
		invoker.WithMaxRetries(s.config.InvokeMaxRetries))

	resp := &domain.ChatResponse{
		AgentType: router.AgentType(agentName),
		AgentName: agentName,
		SessionID: sess.ID,
		MessageID: "msg_" + uuid.New().String()[:8],
		CreatedAt: time.Now(),
	}
	if err != nil {
		log.Printf("ERROR: session %s: agent %s failed: %v", sess.ID, agentName, err)
		resp.Message = apologyMessage
		resp.Status = domain.ChatStatusError
		return resp, nil
	}

	sess.AppendAgent(agentName, text)
	resp.Message = text
	resp.Status = domain.ChatStatusSuccess

	if err := s.recordTurn(ctx, sess, agentName, text, time.Since(start)); err != nil {
		return nil, err
	}

	if isSubmission(agentName, text) {
		customerID := sess.CustomerID()
		log.Printf("INFO: application submitted in session %s, starting audit for %q", sess.ID, customerID)
		s.goBackground(func(ctx context.Context) {
			if err := s.RunPostSubmission(ctx, customerID, text); err != nil {
				log.Printf("ERROR: post-submission audit failed: %v", err)
			}
		})
	}

	return resp, nil
}

// recordTurn upserts the latest reply of an agent under {customer_id}_{agent_type}.
// Turns before the customer id is known are not persisted.
func (s *Service) recordTurn(ctx context.Context, sess *session.Session, agentName, text string, elapsed time.Duration) error {
	customerID := sess.CustomerID()
	if customerID == "" {
		return nil
	}
	key := string(router.AgentType(agentName))
	result := &domain.AgentResult{
		ID:               domain.ResultID(customerID, key),
		CustomerID:       customerID,
		AgentKey:         key,
		AgentName:        agentName,
		DocumentType:     domain.DocumentTypeAgentResult,
		Status:           domain.ResultStatusCompleted,
		Summary:          underwriting.Truncate(text, 200),
		FullResponse:     text,
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
		ApplicantName:    sess.Shared().ApplicantName(),
		Timestamp:        s.now(),
	}
	if err := s.store.UpsertResult(ctx, result); err != nil {
		return fmt.Errorf("failed to store turn result: %w", err)
	}
	return nil
}

// GetSession returns a read-only view of a conversation session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.SessionInfo, error) {
	sess := s.sessions.Get(sessionID)
	if sess == nil {
		return nil, nil
	}
	info := sess.Info()
	return &info, nil
}
