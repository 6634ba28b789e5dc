package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/globaltrustbank/loanorch/internal/domain"
	"github.com/globaltrustbank/loanorch/internal/invoker"
	"github.com/globaltrustbank/loanorch/internal/underwriting"
)

// dripStages are the notifications queued after a submitted application.
var dripStages = []string{"1", "2", "3"}

// RunPostSubmission records the prequalification and application audits for
// a submitted application, then queues the drip notifications. The second
// audit and the drip only run when the previous step succeeded.
func (s *Service) RunPostSubmission(ctx context.Context, customerID, applicationSummary string) error {
	if customerID == "" {
		latest, err := s.store.LatestCustomerID(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve customer id: %w", err)
		}
		if latest == "" {
			return fmt.Errorf("no customer id available for audit")
		}
		log.Printf("WARN: session has no customer id, auditing latest customer %s", latest)
		customerID = latest
	}

	if err := s.recordAudit(ctx, customerID, auditTypePrequalification, prequalificationAuditPrompt(customerID)); err != nil {
		return err
	}
	if err := s.recordAudit(ctx, customerID, auditTypeApplication, applicationAuditPrompt(customerID, applicationSummary)); err != nil {
		return err
	}

	return s.scheduleDrip(ctx, customerID)
}

func (s *Service) recordAudit(ctx context.Context, customerID, auditType, prompt string) error {
	start := time.Now()
	text, err := s.invoker.Invoke(ctx, s.audit, prompt, &stageThread{},
		invoker.WithMaxRetries(s.config.AuditMaxRetries),
		invoker.WithTimeout(s.config.AuditTimeout))
	if err != nil {
		return fmt.Errorf("failed to create %s for %s: %w", auditType, customerID, err)
	}

	result := &domain.AgentResult{
		ID:               domain.ResultID(customerID, auditType),
		CustomerID:       customerID,
		AgentKey:         auditType,
		AgentName:        domain.AgentAudit,
		DocumentType:     domain.DocumentTypeAuditRecord,
		Status:           domain.ResultStatusCompleted,
		Summary:          underwriting.Truncate(text, 200),
		FullResponse:     text,
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:        s.now(),
	}
	if err := s.store.UpsertResult(ctx, result); err != nil {
		return fmt.Errorf("failed to store %s: %w", auditType, err)
	}
	log.Printf("INFO: %s recorded for %s", auditType, customerID)
	return nil
}

// scheduleDrip persists the drip notifications one interval apart; the
// dispatcher sends them when due, including after a restart.
func (s *Service) scheduleDrip(ctx context.Context, customerID string) error {
	now := s.now()
	for i, stage := range dripStages {
		n := &domain.Notification{
			NotificationID: newNotificationID(),
			CustomerID:     customerID,
			Stage:          stage,
			DueAt:          now.Add(time.Duration(i) * s.config.DripInterval),
			CreatedAt:      now,
		}
		if err := s.store.EnqueueNotification(ctx, n); err != nil {
			return fmt.Errorf("failed to queue notification stage %s: %w", stage, err)
		}
	}
	log.Printf("INFO: queued %d drip notifications for %s", len(dripStages), customerID)
	return nil
}
