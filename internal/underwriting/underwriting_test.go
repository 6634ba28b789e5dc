package underwriting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globaltrustbank/loanorch/internal/domain"
	"github.com/globaltrustbank/loanorch/policy"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	engine, err := policy.NewDefaultEngine(context.Background())
	require.NoError(t, err)
	return NewAnalyzer(engine)
}

func verificationResults(passed int) map[string]domain.AgentResult {
	out := make(map[string]domain.AgentResult)
	for i, key := range domain.VerificationKeys {
		status := domain.ResultStatusFailed
		if i < passed {
			status = domain.ResultStatusPassed
		}
		out[key] = domain.AgentResult{AgentKey: key, Status: status, Summary: key + " summary"}
	}
	return out
}

func strongCustomer() *domain.Customer {
	return &domain.Customer{
		CustomerID:          "CUST0001",
		Name:                "Asha Rao",
		TotalMonthlyIncome:  150000,
		EMI:                 30000,
		LoanAmount:          2500000,
		CreditScore:         780,
		WorkExperienceYears: 6,
	}
}

func TestAnalyzeApprovesStrongApplicant(t *testing.T) {
	a := newTestAnalyzer(t)
	d, err := a.Analyze(context.Background(), "CUST0001", strongCustomer(), verificationResults(5))
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionApproved, d.Decision)
	assert.Equal(t, "High", d.Confidence)
	assert.Equal(t, 100.0, d.Risk.RiskScore)
	assert.Equal(t, "Low Risk", d.Risk.RiskCategory)
	assert.Empty(t, d.Risk.RiskFactors)
	assert.Equal(t, "Risk Score: 100.0/100, Verification Score: 100.0%", d.DecisionRationale)
	assert.Equal(t, "Underwriting Decision: APPROVED (Risk Score: 100.0/100)", Summary(d))
	assert.True(t, d.Approved())
	assert.Contains(t, d.Recommendations, "Loan approved with standard terms")
}

func TestAnalyzeConditionalOnModerateCredit(t *testing.T) {
	a := newTestAnalyzer(t)
	c := strongCustomer()
	c.CreditScore = 700
	// 4/5 verification: 32 + 15 + 25 + 10 = 82 risk, 80 verification.
	d, err := a.Analyze(context.Background(), "CUST0001", c, verificationResults(4))
	require.NoError(t, err)

	assert.Equal(t, 82.0, d.Risk.RiskScore)
	assert.Equal(t, 80.0, d.Verification.VerificationScore)
	assert.Equal(t, domain.DecisionApproved, d.Decision)

	c.WorkExperienceYears = 2
	d, err = a.Analyze(context.Background(), "CUST0001", c, verificationResults(4))
	require.NoError(t, err)
	assert.Equal(t, 77.0, d.Risk.RiskScore)
	assert.Equal(t, domain.DecisionConditionalApproval, d.Decision)
	assert.Equal(t, "Medium", d.Confidence)
	assert.Contains(t, d.Recommendations, "Require additional collateral or guarantor")
	assert.NotContains(t, d.Recommendations, "Reduce loan amount or extend tenure")
}

func TestAnalyzeMissingCustomerDefaultsToZero(t *testing.T) {
	a := newTestAnalyzer(t)
	d, err := a.Analyze(context.Background(), "CUST0404", nil, verificationResults(2))
	require.NoError(t, err)

	// 16 (verification) + 0 (credit) + 25 (no EMI burden) + 0 (experience).
	assert.Equal(t, 41.0, d.Risk.RiskScore)
	assert.Equal(t, domain.DecisionRejected, d.Decision)
	assert.Contains(t, d.Risk.RiskFactors, "No credit score available")
	assert.Contains(t, d.Risk.RiskFactors, "Insufficient work experience")
	assert.Contains(t, d.Risk.RiskFactors, "Incomplete verification (40.0% passed)")
	assert.Contains(t, d.Recommendations, "  - No credit score available")
	assert.False(t, d.Approved())
}

type failingDecider struct{}

func (failingDecider) Decide(context.Context, float64, float64) (string, error) {
	return "", errors.New("boom")
}

func TestAnalyzePolicyError(t *testing.T) {
	a := NewAnalyzer(failingDecider{})
	_, err := a.Analyze(context.Background(), "CUST0001", strongCustomer(), verificationResults(5))
	assert.Error(t, err)
}

func TestSummarizeVerificationCountsOnlyVerificationKeys(t *testing.T) {
	results := verificationResults(3)
	results[domain.KeyUnderwriting] = domain.AgentResult{Status: domain.ResultStatusCompleted}
	s := SummarizeVerification(results)
	assert.Equal(t, 5, s.TotalAgents)
	assert.Equal(t, 3, s.PassedAgents)
	assert.Equal(t, 2, s.FailedAgents)
	assert.Equal(t, 60.0, s.VerificationScore)
	assert.Equal(t, 20, s.AgentDetails[domain.KeyIdentity].Score)
	assert.Equal(t, 0, s.AgentDetails[domain.KeyValuation].Score)

	empty := SummarizeVerification(nil)
	assert.Equal(t, 0.0, empty.VerificationScore)
}

func TestAnalyzeFinancials(t *testing.T) {
	tests := []struct {
		name          string
		emi           float64
		assessment    string
		affordability string
	}{
		{"good", 40000, "Good", "Affordable"},
		{"moderate", 60000, "Moderate", "Tight"},
		{"high", 70000, "High Risk", "Unaffordable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := AnalyzeFinancials(&domain.Customer{TotalMonthlyIncome: 100000, EMI: tt.emi, LoanAmount: 600000, WorkExperienceYears: 1})
			assert.Equal(t, tt.assessment, fa.EMIToIncomeAssessment)
			assert.Equal(t, tt.affordability, fa.AffordabilityStatus)
			assert.Equal(t, 50.0, fa.LoanToIncomeRatio)
			assert.Equal(t, "Limited", fa.IncomeStability)
			assert.Equal(t, 40000.0, fa.AffordableEMI)
		})
	}

	zero := AnalyzeFinancials(&domain.Customer{EMI: 10})
	assert.Equal(t, 0.0, zero.EMIToIncomeRatio)
	assert.Equal(t, "Unaffordable", zero.AffordabilityStatus)
}

func TestBuckets(t *testing.T) {
	assert.Equal(t, "low_risk", RiskScoreRange(80))
	assert.Equal(t, "medium_risk", RiskScoreRange(79.9))
	assert.Equal(t, "high_risk", RiskScoreRange(40))
	assert.Equal(t, "very_high_risk", RiskScoreRange(39.9))

	assert.Equal(t, "high_income", IncomeBracket(200000))
	assert.Equal(t, "upper_middle_income", IncomeBracket(100000))
	assert.Equal(t, "middle_income", IncomeBracket(50000))
	assert.Equal(t, "lower_middle_income", IncomeBracket(25000))
	assert.Equal(t, "low_income", IncomeBracket(24999))
}

func TestMetadataQueryableFields(t *testing.T) {
	a := newTestAnalyzer(t)
	d, err := a.Analyze(context.Background(), "CUST0001", strongCustomer(), verificationResults(5))
	require.NoError(t, err)

	raw, err := Metadata(d)
	require.NoError(t, err)

	var doc struct {
		QueryableFields map[string]string `json:"queryable_fields"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "approved", doc.QueryableFields["decision_category"])
	assert.Equal(t, "low_risk", doc.QueryableFields["risk_level"])
	assert.Equal(t, "low_risk", doc.QueryableFields["risk_score_range"])
	assert.Equal(t, "upper_middle_income", doc.QueryableFields["income_bracket"])
	assert.Equal(t, "complete", doc.QueryableFields["verification_completeness"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abc", 2))
}
