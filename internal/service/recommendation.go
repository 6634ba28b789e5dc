package service

import (
	"strings"
	"time"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

// recommendationKeys orders the results summarized in a final recommendation.
var recommendationKeys = []string{
	domain.KeyIdentity,
	domain.KeyIncome,
	domain.KeyGuarantor,
	domain.KeyInspection,
	domain.KeyValuation,
	domain.KeyUnderwriting,
	domain.KeyLoanOffer,
}

var issueKeywords = []string{"risk", "issue", "concern", "discrepancy", "missing", "failed", "error"}

const (
	textApprovedWithOffer = "APPROVED WITH LOAN OFFER - Complete verification and loan offer generated"
	textApprovedNoOffer   = "APPROVED - Underwriting passed, loan offer pending"
	textApproved          = "APPROVED - All verification steps passed successfully"
	textConditional       = "CONDITIONAL APPROVAL - Minor issues identified, review recommended"
	textRejected          = "REJECTED - Multiple significant issues identified"
)

// buildRecommendation aggregates whatever results the run produced, including
// partial results of a halted run.
func buildRecommendation(p *pipelineRun, at time.Time) *domain.FinalRecommendation {
	shared := p.shared.Snapshot()
	rec := &domain.FinalRecommendation{
		ID:                   domain.FinalRecommendationID(p.run.CustomerID, at),
		CustomerID:           p.run.CustomerID,
		RunID:                p.run.RunID,
		ApplicantName:        shared.ApplicantName,
		UnderwritingApproved: p.approved,
		LoanOfferGenerated:   p.offered,
		LoanOfferDetails:     p.offer,
		RiskFactors:          shared.RiskFactors,
		SupportingEvidence:   shared.SupportingEvidence,
		AgentSummaries:       []string{},
		AgentResults:         make(map[string]domain.AgentResult, len(p.results)),
		Timestamp:            at,
	}
	if rec.ApplicantName == "" {
		rec.ApplicantName = "Unknown"
	}

	for _, key := range recommendationKeys {
		r, ok := p.results[key]
		if !ok {
			continue
		}
		rec.AgentResults[key] = r
		rec.AgentSummaries = append(rec.AgentSummaries,
			strings.ToUpper(key)+": "+string(r.Status)+" - "+firstRunes(r.Summary, 200)+"...")
		if key != domain.KeyLoanOffer && hasIssue(r) {
			rec.TotalIssues++
		}
	}

	rec.Recommendation, rec.RecommendationText = decide(p.approved, p.offered, rec.TotalIssues)
	return rec
}

func hasIssue(r domain.AgentResult) bool {
	if r.Status != domain.ResultStatusPassed && r.Status != domain.ResultStatusCompleted {
		return true
	}
	lower := strings.ToLower(r.Summary)
	for _, kw := range issueKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func decide(approved, offered bool, issues int) (domain.Recommendation, string) {
	switch {
	case approved && offered:
		return domain.RecommendationApprovedWithOffer, textApprovedWithOffer
	case approved:
		return domain.RecommendationApproved, textApprovedNoOffer
	case issues == 0:
		return domain.RecommendationApproved, textApproved
	case issues <= 2:
		return domain.RecommendationConditionalApproval, textConditional
	default:
		return domain.RecommendationRejected, textRejected
	}
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
