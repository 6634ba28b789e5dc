package domain

import "time"

// VerificationSummary counts verification stage outcomes.
type VerificationSummary struct {
	TotalAgents       int                           `json:"total_agents"`
	PassedAgents      int                           `json:"passed_agents"`
	FailedAgents      int                           `json:"failed_agents"`
	AgentDetails      map[string]VerificationDetail `json:"agent_details"`
	VerificationScore float64                       `json:"overall_verification_score"`
}

// VerificationDetail is the per-agent entry of a verification summary.
type VerificationDetail struct {
	Status  ResultStatus `json:"status"`
	Score   int          `json:"score"`
	Summary string       `json:"summary"`
}

// FinancialAnalysis holds the income, ratio and affordability assessment.
type FinancialAnalysis struct {
	MonthlyIncome         float64 `json:"monthly_income"`
	AnnualIncome          float64 `json:"annual_income"`
	IncomeStability       string  `json:"income_stability"`
	EMIToIncomeRatio      float64 `json:"emi_to_income_ratio"`
	LoanToIncomeRatio     float64 `json:"loan_to_income_ratio"`
	EMIToIncomeAssessment string  `json:"emi_to_income_assessment"`
	ProposedEMI           float64 `json:"proposed_emi"`
	AffordableEMI         float64 `json:"affordable_emi"`
	AffordabilityStatus   string  `json:"affordability_status"`
}

// RiskAssessment is the additive risk score and the factors that lowered it.
type RiskAssessment struct {
	RiskScore        float64  `json:"risk_score"`
	RiskCategory     string   `json:"risk_category"`
	RiskFactors      []string `json:"risk_factors"`
	MaxPossibleScore int      `json:"max_possible_score"`
}

// UnderwritingDecision is the derived underwriting outcome.
type UnderwritingDecision struct {
	CustomerID        string              `json:"customer_id"`
	Verification      VerificationSummary `json:"verification_summary"`
	Financial         FinancialAnalysis   `json:"financial_analysis"`
	Risk              RiskAssessment      `json:"risk_assessment"`
	Decision          string              `json:"decision"`
	Confidence        string              `json:"confidence"`
	DecisionRationale string              `json:"decision_rationale"`
	Recommendations   []string            `json:"recommendations"`
	AnalyzedAt        time.Time           `json:"analysis_timestamp"`
}

// Approved reports whether the decision allows an offer to be generated.
func (d *UnderwritingDecision) Approved() bool {
	return d != nil && (d.Decision == DecisionApproved || d.Decision == DecisionConditionalApproval)
}

// LoanOffer is produced by the offer generator after a positive underwriting decision.
type LoanOffer struct {
	CustomerID     string           `json:"customer_id"`
	Eligibility    OfferEligibility `json:"eligibility"`
	LoanOptions    []LoanOption     `json:"loan_options"`
	FinalRate      float64          `json:"final_rate"`
	CollateralInfo CollateralInfo   `json:"collateral_info"`
	OfferSummary   string           `json:"offer_summary"`
}

// OfferEligibility describes how much the customer may borrow.
type OfferEligibility struct {
	Eligible          bool    `json:"eligible"`
	RequestedAmount   float64 `json:"requested_amount"`
	RecommendedAmount float64 `json:"recommended_amount"`
	MaxEligibleAmount float64 `json:"max_eligible_amount"`
}

// LoanOption is one tenure choice in an offer.
type LoanOption struct {
	TenureMonths int     `json:"tenure_months"`
	Amount       float64 `json:"amount"`
	Rate         float64 `json:"rate"`
}

// CollateralInfo summarises the pledged property.
type CollateralInfo struct {
	PropertyValue float64 `json:"property_value"`
	LoanToValue   float64 `json:"loan_to_value"`
}
