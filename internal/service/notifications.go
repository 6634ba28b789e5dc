package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

const (
	notificationBatch   = 50
	notificationTimeout = 30 * time.Second
)

func newNotificationID() string {
	return "notif_" + uuid.New().String()[:8]
}

// RunNotificationDispatcher delivers queued notifications as they come due.
func (s *Service) RunNotificationDispatcher(ctx context.Context) {
	if n, err := s.store.ResetInflightNotifications(ctx); err != nil {
		log.Printf("WARN: failed to reset in-flight notifications: %v", err)
	} else if n > 0 {
		log.Printf("INFO: resuming %d interrupted notifications", n)
	}

	interval := s.config.NotifyPoll
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDueNotifications(ctx)
		}
	}
}

func (s *Service) dispatchDueNotifications(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	due, err := s.store.ListDueNotifications(sweepCtx, s.now(), notificationBatch)
	cancel()
	if err != nil {
		log.Printf("WARN: notification sweep failed: %v", err)
		return
	}

	for _, n := range due {
		claimed, err := s.store.ClaimNotification(ctx, n.NotificationID)
		if err != nil {
			log.Printf("WARN: failed to claim notification %s: %v", n.NotificationID, err)
			continue
		}
		if !claimed {
			continue
		}
		s.deliver(ctx, n)
	}
}

// deliver sends a claimed notification and records the outcome. Failures are
// logged and never returned.
func (s *Service) deliver(ctx context.Context, n domain.Notification) domain.NotificationResult {
	sendCtx, cancel := context.WithTimeout(ctx, notificationTimeout)
	res := s.notifier.Send(sendCtx, n.CustomerID, n.Stage)
	cancel()

	status := domain.NotificationStatusSent
	lastError := ""
	if res.Status != domain.SendStatusSubmitted {
		status = domain.NotificationStatusFailed
		lastError = res.Message
		log.Printf("WARN: notification stage %s for %s failed: %s", n.Stage, n.CustomerID, res.Message)
	}
	notificationsTotal.WithLabelValues(n.Stage, res.Status).Inc()

	if err := s.store.CompleteNotification(context.WithoutCancel(ctx), n.NotificationID, status, lastError); err != nil {
		log.Printf("WARN: failed to record notification %s: %v", n.NotificationID, err)
	}
	return res
}

// notifyNow sends a pipeline checkpoint notification immediately and records it.
func (s *Service) notifyNow(ctx context.Context, customerID, stage string) {
	n := domain.Notification{
		NotificationID: newNotificationID(),
		CustomerID:     customerID,
		Stage:          stage,
		DueAt:          s.now(),
		CreatedAt:      s.now(),
	}
	if err := s.store.EnqueueNotification(ctx, &n); err != nil {
		log.Printf("WARN: failed to record notification stage %s for %s: %v", stage, customerID, err)
		return
	}
	claimed, err := s.store.ClaimNotification(ctx, n.NotificationID)
	if err != nil || !claimed {
		// The dispatcher will pick it up.
		return
	}
	res := s.deliver(ctx, n)
	if res.Status == domain.SendStatusSubmitted {
		log.Printf("INFO: notification stage %s sent for %s", stage, customerID)
	}
}

// ListNotifications returns the notifications of a customer.
func (s *Service) ListNotifications(ctx context.Context, customerID string) ([]domain.Notification, error) {
	id, ok := domain.NormalizeCustomerID(customerID)
	if !ok {
		return nil, ErrInvalidCustomerID
	}
	return s.store.ListNotifications(ctx, id)
}
