// Package underwriting derives the underwriting decision from verification
// results and the customer record.
package underwriting

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

// Decider maps a risk score and a verification score to a decision.
type Decider interface {
	Decide(ctx context.Context, riskScore, verificationScore float64) (string, error)
}

// Analyzer performs underwriting analysis.
type Analyzer struct {
	decider Decider
	now     func() time.Time
}

// NewAnalyzer creates an analyzer backed by the given decision policy.
func NewAnalyzer(decider Decider) *Analyzer {
	return &Analyzer{decider: decider, now: time.Now}
}

// Analyze runs the verification, financial and risk analysis and asks the
// policy for a decision. A nil customer is treated as a record with every
// field zero.
func (a *Analyzer) Analyze(ctx context.Context, customerID string, customer *domain.Customer, verification map[string]domain.AgentResult) (*domain.UnderwritingDecision, error) {
	if customer == nil {
		customer = &domain.Customer{CustomerID: customerID}
	}

	summary := SummarizeVerification(verification)
	financial := AnalyzeFinancials(customer)
	risk := AssessRisk(customer, summary, financial)

	decision, err := a.decider.Decide(ctx, risk.RiskScore, summary.VerificationScore)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate underwriting policy: %w", err)
	}

	confidence := "High"
	if decision == domain.DecisionConditionalApproval {
		confidence = "Medium"
	}

	return &domain.UnderwritingDecision{
		CustomerID:        customerID,
		Verification:      summary,
		Financial:         financial,
		Risk:              risk,
		Decision:          decision,
		Confidence:        confidence,
		DecisionRationale: fmt.Sprintf("Risk Score: %.1f/100, Verification Score: %.1f%%", risk.RiskScore, summary.VerificationScore),
		Recommendations:   Recommendations(decision, risk.RiskFactors),
		AnalyzedAt:        a.now().UTC(),
	}, nil
}

// SummarizeVerification scores the verification stage results. Each passed
// stage is worth 20 points; the overall score is passed/total as a percentage.
func SummarizeVerification(results map[string]domain.AgentResult) domain.VerificationSummary {
	summary := domain.VerificationSummary{AgentDetails: make(map[string]domain.VerificationDetail)}
	for _, key := range domain.VerificationKeys {
		result, ok := results[key]
		if !ok {
			continue
		}
		summary.TotalAgents++
		score := 0
		if result.Status == domain.ResultStatusPassed {
			summary.PassedAgents++
			score = 20
		} else {
			summary.FailedAgents++
		}
		summary.AgentDetails[key] = domain.VerificationDetail{
			Status:  result.Status,
			Score:   score,
			Summary: Truncate(result.Summary, 200),
		}
	}
	if summary.TotalAgents > 0 {
		summary.VerificationScore = float64(summary.PassedAgents*100) / float64(summary.TotalAgents)
	}
	return summary
}

// AnalyzeFinancials computes income, ratio and affordability figures.
func AnalyzeFinancials(c *domain.Customer) domain.FinancialAnalysis {
	income := c.TotalMonthlyIncome
	fa := domain.FinancialAnalysis{
		MonthlyIncome:   income,
		AnnualIncome:    income * 12,
		IncomeStability: "Limited",
		ProposedEMI:     c.EMI,
		AffordableEMI:   income * 0.4,
	}
	if c.WorkExperienceYears >= 2 {
		fa.IncomeStability = "Stable"
	}

	if income > 0 {
		fa.EMIToIncomeRatio = round(c.EMI/income*100, 2)
		fa.LoanToIncomeRatio = round(c.LoanAmount/(income*12)*100, 2)
	}

	switch {
	case fa.EMIToIncomeRatio <= 40:
		fa.EMIToIncomeAssessment = "Good"
	case fa.EMIToIncomeRatio <= 60:
		fa.EMIToIncomeAssessment = "Moderate"
	default:
		fa.EMIToIncomeAssessment = "High Risk"
	}

	switch {
	case c.EMI <= income*0.4:
		fa.AffordabilityStatus = "Affordable"
	case c.EMI <= income*0.6:
		fa.AffordabilityStatus = "Tight"
	default:
		fa.AffordabilityStatus = "Unaffordable"
	}
	return fa
}

// AssessRisk builds the additive risk score: verification up to 40 points,
// credit score up to 25, EMI burden up to 25 and work experience up to 10.
func AssessRisk(c *domain.Customer, summary domain.VerificationSummary, fa domain.FinancialAnalysis) domain.RiskAssessment {
	var factors []string
	score := summary.VerificationScore / 100 * 40
	if summary.VerificationScore < 80 {
		factors = append(factors, fmt.Sprintf("Incomplete verification (%.1f%% passed)", summary.VerificationScore))
	}

	switch {
	case c.CreditScore >= 750:
		score += 25
	case c.CreditScore >= 650:
		score += 15
		factors = append(factors, "Moderate credit score")
	case c.CreditScore > 0:
		score += 5
		factors = append(factors, "Low credit score")
	default:
		factors = append(factors, "No credit score available")
	}

	switch {
	case fa.EMIToIncomeRatio <= 40:
		score += 25
	case fa.EMIToIncomeRatio <= 60:
		score += 15
		factors = append(factors, "Moderate EMI burden")
	default:
		factors = append(factors, "High EMI to income ratio")
	}

	switch {
	case c.WorkExperienceYears >= 3:
		score += 10
	case c.WorkExperienceYears >= 1:
		score += 5
		factors = append(factors, "Limited work experience")
	default:
		factors = append(factors, "Insufficient work experience")
	}

	score = round(score, 1)
	return domain.RiskAssessment{
		RiskScore:        score,
		RiskCategory:     RiskCategory(score),
		RiskFactors:      factors,
		MaxPossibleScore: 100,
	}
}

// RiskCategory maps a risk score to Low, Medium or High Risk.
func RiskCategory(score float64) string {
	switch {
	case score >= 80:
		return "Low Risk"
	case score >= 60:
		return "Medium Risk"
	default:
		return "High Risk"
	}
}

// Recommendations lists follow-up actions for a decision.
func Recommendations(decision string, factors []string) []string {
	var recs []string
	switch decision {
	case domain.DecisionApproved:
		recs = append(recs,
			"Loan approved with standard terms",
			"Proceed with loan documentation",
			"Standard interest rate applicable")
	case domain.DecisionConditionalApproval:
		recs = append(recs, "Conditional approval granted")
		if anyFactorContains(factors, "credit score") {
			recs = append(recs, "Require additional collateral or guarantor", "Higher interest rate (+1-2%) recommended")
		}
		if anyFactorContains(factors, "emi") {
			recs = append(recs, "Reduce loan amount or extend tenure", "Monthly income verification required")
		}
		if anyFactorContains(factors, "verification") {
			recs = append(recs, "Complete pending document verification", "Re-verify failed verification steps")
		}
	default:
		recs = append(recs, "Loan application rejected", "Customer should address the following issues:")
		for _, f := range factors {
			recs = append(recs, "  - "+f)
		}
		recs = append(recs, "Customer may reapply after 6 months", "Suggest credit improvement measures")
	}
	return recs
}

func anyFactorContains(factors []string, needle string) bool {
	for _, f := range factors {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Summary is the stage summary stored for the underwriting result.
func Summary(d *domain.UnderwritingDecision) string {
	return fmt.Sprintf("Underwriting Decision: %s (Risk Score: %.1f/100)", d.Decision, d.Risk.RiskScore)
}

// RiskScoreRange buckets a risk score for querying.
func RiskScoreRange(score float64) string {
	switch {
	case score >= 80:
		return "low_risk"
	case score >= 60:
		return "medium_risk"
	case score >= 40:
		return "high_risk"
	default:
		return "very_high_risk"
	}
}

// IncomeBracket buckets a monthly income for querying.
func IncomeBracket(monthlyIncome float64) string {
	switch {
	case monthlyIncome >= 200000:
		return "high_income"
	case monthlyIncome >= 100000:
		return "upper_middle_income"
	case monthlyIncome >= 50000:
		return "middle_income"
	case monthlyIncome >= 25000:
		return "lower_middle_income"
	default:
		return "low_income"
	}
}

type underwritingData struct {
	Decision             string                   `json:"decision"`
	RiskScore            float64                  `json:"risk_score"`
	RiskCategory         string                   `json:"risk_category"`
	ConfidenceLevel      string                   `json:"confidence_level"`
	VerificationScore    float64                  `json:"verification_score"`
	Financial            domain.FinancialAnalysis `json:"financial_analysis"`
	RiskFactorsCount     int                      `json:"risk_factors_count"`
	RecommendationsCount int                      `json:"recommendations_count"`
	AnalyzedAt           time.Time                `json:"analysis_timestamp"`
}

type queryableFields struct {
	DecisionCategory         string `json:"decision_category"`
	RiskLevel                string `json:"risk_level"`
	RiskScoreRange           string `json:"risk_score_range"`
	IncomeBracket            string `json:"income_bracket"`
	VerificationCompleteness string `json:"verification_completeness"`
}

// Metadata renders the underwriting document metadata.
func Metadata(d *domain.UnderwritingDecision) (json.RawMessage, error) {
	completeness := "incomplete"
	if d.Verification.VerificationScore >= 80 {
		completeness = "complete"
	}
	doc := struct {
		UnderwritingData underwritingData `json:"underwriting_data"`
		QueryableFields  queryableFields  `json:"queryable_fields"`
	}{
		UnderwritingData: underwritingData{
			Decision:             d.Decision,
			RiskScore:            d.Risk.RiskScore,
			RiskCategory:         d.Risk.RiskCategory,
			ConfidenceLevel:      d.Confidence,
			VerificationScore:    d.Verification.VerificationScore,
			Financial:            d.Financial,
			RiskFactorsCount:     len(d.Risk.RiskFactors),
			RecommendationsCount: len(d.Recommendations),
			AnalyzedAt:           d.AnalyzedAt,
		},
		QueryableFields: queryableFields{
			DecisionCategory:         snake(d.Decision),
			RiskLevel:                snake(d.Risk.RiskCategory),
			RiskScoreRange:           RiskScoreRange(d.Risk.RiskScore),
			IncomeBracket:            IncomeBracket(d.Financial.MonthlyIncome),
			VerificationCompleteness: completeness,
		},
	}
	return json.Marshal(doc)
}

// Truncate shortens s to n bytes followed by "..." when it is longer.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func snake(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "_"))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
