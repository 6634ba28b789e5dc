package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

func TestTemplateFor(t *testing.T) {
	tests := map[string]string{
		"1":                       TemplateApplication,
		"stage 3":                 TemplateVerification,
		"Stage 4":                 TemplateDocumentApproval,
		"approval":                TemplateApproval,
		"document approval stage": TemplateDocumentApproval,
		"loan_application_number": TemplateLoanApplicationNumber,
		"7":                       "7",
		"welcome":                 "welcome",
	}
	for in, want := range tests {
		assert.Equal(t, want, TemplateFor(in), in)
	}
	assert.Equal(t, "Your Documents Have Been Successfully Verified", SubjectFor(TemplateDocumentApproval))
	assert.Equal(t, defaultSubject, SubjectFor("welcome"))
}

func TestWebhookSenderPostsPayload(t *testing.T) {
	var got Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL, 10)
	res := sender.Send(context.Background(), "CUST0001", "4")

	assert.Equal(t, domain.SendStatusSubmitted, res.Status)
	assert.Equal(t, "CUST0001", got.CustomerID)
	assert.Equal(t, "4", got.Stage)
	assert.Equal(t, TemplateDocumentApproval, got.Template)
	assert.Equal(t, SubjectFor(TemplateDocumentApproval), got.Subject)
}

func TestWebhookSenderReportsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	res := NewWebhookSender(server.URL, 10).Send(context.Background(), "CUST0001", "1")
	assert.Equal(t, domain.SendStatusError, res.Status)
	assert.Contains(t, res.Message, "500")

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := closed.URL
	closed.Close()
	res = NewWebhookSender(url, 10).Send(context.Background(), "CUST0001", "1")
	assert.Equal(t, domain.SendStatusError, res.Status)
}

func TestWebhookSenderRespectsCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	sender := NewWebhookSender(server.URL, 0.001)
	// Drain the single token.
	require.Equal(t, domain.SendStatusSubmitted, sender.Send(context.Background(), "CUST0001", "1").Status)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := sender.Send(ctx, "CUST0001", "2")
	assert.Equal(t, domain.SendStatusError, res.Status)
}

func TestNewSender(t *testing.T) {
	_, ok := NewSender("", 5).(LogSender)
	assert.True(t, ok)
	_, ok = NewSender("http://example.invalid/hook", 5).(*WebhookSender)
	assert.True(t, ok)

	res := LogSender{}.Send(context.Background(), "CUST0001", "stage 6")
	assert.Equal(t, domain.SendStatusSubmitted, res.Status)
}
