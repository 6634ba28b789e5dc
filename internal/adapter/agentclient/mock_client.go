package agentclient

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/globaltrustbank/loanorch/internal/agent"
	"github.com/globaltrustbank/loanorch/internal/domain"
)

// MockClient returns canned replies keyed on agent name and message content.
type MockClient struct{}

// NewMockClient creates a new mock agent client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ agent.Client = (*MockClient)(nil)

var mockCustomerID = regexp.MustCompile(`(?i)\bcust\d+\b`)

// Invoke returns a deterministic reply.
func (m *MockClient) Invoke(ctx context.Context, agentName, message, thread string) (*agent.Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if thread == "" {
		thread = "thread_" + strings.ToLower(strings.ReplaceAll(agentName, " ", "_"))
	}
	return &agent.Response{Content: m.reply(agentName, message), Thread: thread}, nil
}

func (m *MockClient) reply(agentName, message string) string {
	lower := strings.ToLower(message)
	customerID := "CUST0001"
	if id := mockCustomerID.FindString(message); id != "" {
		customerID = strings.ToUpper(id)
	}

	switch agentName {
	case domain.AgentPrequalification:
		if strings.Contains(lower, "income") && strings.Contains(lower, "age") {
			return fmt.Sprintf("Thank you for sharing your details. You are eligible for the requested loan. "+
				"Your customer ID is %s. Would you like to proceed with the application?", customerID)
		}
		return "I can help you check your loan eligibility. Please share your name, age, employment status, " +
			"monthly income and the loan amount you need."
	case domain.AgentApplication:
		if strings.Contains(lower, "father") || strings.Contains(lower, "date of birth") {
			return fmt.Sprintf("Your application has been successfully submitted for customer %s. "+
				"Our team will review your documents shortly.", customerID)
		}
		return "Let's complete your application. Please provide your full name, father's name, date of birth, " +
			"address and PAN number."
	case domain.AgentLoanStatus:
		return fmt.Sprintf("Application for %s is under review. You will be notified of any updates.", customerID)
	case domain.AgentAudit:
		return fmt.Sprintf("Audit record created for customer %s.", customerID)
	case domain.AgentIdentity:
		return "Applicant Name: Asha Rao\nIdentity documents verified. PAN and Aadhaar details are consistent and authentic."
	case domain.AgentIncome:
		return "Salary slips and bank statements verified. Declared income is consistent and sufficient."
	case domain.AgentGuarantor:
		return "Guarantor identity verified. Guarantor income is adequate."
	case domain.AgentInspection:
		return "Collateral inspection completed. Property documents are valid and the site matches records."
	case domain.AgentValuation:
		return "Valuation report verified. Market value is adequate for the requested loan."
	default:
		return "Acknowledged: " + message
	}
}
