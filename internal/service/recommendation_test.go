package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/globaltrustbank/loanorch/internal/domain"
	"github.com/globaltrustbank/loanorch/internal/session"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		approved bool
		offered  bool
		issues   int
		want     domain.Recommendation
	}{
		{"approved with offer", true, true, 5, domain.RecommendationApprovedWithOffer},
		{"approved without offer", true, false, 5, domain.RecommendationApproved},
		{"no issues", false, false, 0, domain.RecommendationApproved},
		{"one issue", false, false, 1, domain.RecommendationConditionalApproval},
		{"two issues", false, false, 2, domain.RecommendationConditionalApproval},
		{"three issues", false, false, 3, domain.RecommendationRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := decide(tt.approved, tt.offered, tt.issues)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasIssue(t *testing.T) {
	assert.False(t, hasIssue(domain.AgentResult{Status: domain.ResultStatusPassed, Summary: "All documents verified"}))
	assert.True(t, hasIssue(domain.AgentResult{Status: domain.ResultStatusPassed, Summary: "Address DISCREPANCY found"}))
	assert.True(t, hasIssue(domain.AgentResult{Status: domain.ResultStatusNoResponse, Summary: "No response"}))
	assert.False(t, hasIssue(domain.AgentResult{Status: domain.ResultStatusCompleted, Summary: "Loan offer generated"}))
}

func TestBuildRecommendationSummaries(t *testing.T) {
	p := &pipelineRun{
		run:    domain.PipelineRun{RunID: "run_1", CustomerID: "CUST0004"},
		shared: session.NewSharedContext(),
		results: map[string]domain.AgentResult{
			domain.KeyIdentity:  {Status: domain.ResultStatusPassed, Summary: strings.Repeat("é", 250)},
			domain.KeyLoanOffer: {Status: domain.ResultStatusRejected, Summary: "skipped"},
		},
	}
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	rec := buildRecommendation(p, at)
	assert.Equal(t, "CUST0004_final_recommendation_20260301_103000", rec.ID)
	assert.Equal(t, "Unknown", rec.ApplicantName)
	assert.Equal(t, 0, rec.TotalIssues)
	assert.Len(t, rec.AgentSummaries, 2)
	assert.Equal(t, "IDENTITY: passed - "+strings.Repeat("é", 200)+"...", rec.AgentSummaries[0])
	assert.Equal(t, "LOAN_OFFER: rejected - skipped...", rec.AgentSummaries[1])
	assert.Equal(t, domain.RecommendationApproved, rec.Recommendation)
}
