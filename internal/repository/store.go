// Package repository provides persistence for stage results, customers,
// pipeline runs and queued notifications.
package repository

import (
	"context"
	"time"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

// ResultStore is the AgentResultStore: deterministic-id upserts and
// customer-scoped queries ordered by timestamp ascending.
type ResultStore interface {
	UpsertResult(ctx context.Context, result *domain.AgentResult) error
	GetResult(ctx context.Context, id string) (*domain.AgentResult, error)
	ListResults(ctx context.Context, customerID string) ([]domain.AgentResult, error)
	SaveFinalRecommendation(ctx context.Context, rec *domain.FinalRecommendation) error
	GetFinalRecommendation(ctx context.Context, id string) (*domain.FinalRecommendation, error)
}

// CustomerLookup is a read-only view of customer records.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
	LatestCustomerID(ctx context.Context) (string, error)
}

// RunStore tracks pipeline runs.
type RunStore interface {
	CreatePipelineRun(ctx context.Context, run *domain.PipelineRun) error
	GetPipelineRun(ctx context.Context, runID string) (*domain.PipelineRun, error)
	UpdatePipelineRunStage(ctx context.Context, runID string, stage domain.PipelineStage) error
	CompletePipelineRun(ctx context.Context, runID string, status domain.RunStatus, errMsg string) error
}

// NotificationStore persists pending notifications so drips survive restarts.
type NotificationStore interface {
	EnqueueNotification(ctx context.Context, n *domain.Notification) error
	ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	ClaimNotification(ctx context.Context, notificationID string) (bool, error)
	CompleteNotification(ctx context.Context, notificationID string, status domain.NotificationStatus, lastError string) error
	ListNotifications(ctx context.Context, customerID string) ([]domain.Notification, error)
	ResetInflightNotifications(ctx context.Context) (int, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	ResultStore
	CustomerLookup
	RunStore
	NotificationStore

	// UpsertCustomer is used by seeding and tests; the orchestrator never writes customers.
	UpsertCustomer(ctx context.Context, c *domain.Customer) error
	Close() error
}
