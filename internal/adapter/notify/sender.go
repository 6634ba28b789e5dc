// Package notify delivers customer notifications for loan milestones.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

// Sender delivers one stage notification. Implementations never panic and
// report failures through the result status.
type Sender interface {
	Send(ctx context.Context, customerID, stage string) domain.NotificationResult
}

// Payload is the body posted to the notification webhook.
type Payload struct {
	CustomerID string `json:"customer_id"`
	Stage      string `json:"stage"`
	Template   string `json:"template"`
	Subject    string `json:"subject"`
}

// WebhookSender posts notifications to a webhook under a token bucket.
type WebhookSender struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewWebhookSender creates a webhook sender allowing ratePerSec sends per second.
func NewWebhookSender(url string, ratePerSec float64) *WebhookSender {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &WebhookSender{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// Send posts the notification.
func (s *WebhookSender) Send(ctx context.Context, customerID, stage string) domain.NotificationResult {
	if err := s.limiter.Wait(ctx); err != nil {
		return errorResult(fmt.Errorf("rate limiter: %w", err))
	}

	template := TemplateFor(stage)
	body, err := json.Marshal(&Payload{
		CustomerID: customerID,
		Stage:      stage,
		Template:   template,
		Subject:    SubjectFor(template),
	})
	if err != nil {
		return errorResult(fmt.Errorf("failed to marshal notification: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errorResult(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errorResult(fmt.Errorf("failed to send notification: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errorResult(fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	return domain.NotificationResult{
		Status:  domain.SendStatusSubmitted,
		Message: fmt.Sprintf("%s notification submitted for %s", template, customerID),
	}
}

// LogSender logs notifications instead of delivering them.
type LogSender struct{}

// Send logs the notification and reports it as submitted.
func (LogSender) Send(ctx context.Context, customerID, stage string) domain.NotificationResult {
	template := TemplateFor(stage)
	log.Printf("INFO: notification customer=%s stage=%s template=%s subject=%q", customerID, stage, template, SubjectFor(template))
	return domain.NotificationResult{
		Status:  domain.SendStatusSubmitted,
		Message: fmt.Sprintf("%s notification logged for %s", template, customerID),
	}
}

// NewSender returns a WebhookSender when url is set, otherwise a LogSender.
func NewSender(url string, ratePerSec float64) Sender {
	if url == "" {
		return LogSender{}
	}
	return NewWebhookSender(url, ratePerSec)
}

func errorResult(err error) domain.NotificationResult {
	return domain.NotificationResult{Status: domain.SendStatusError, Message: err.Error()}
}
