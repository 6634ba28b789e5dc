package session

import (
	"strings"
	"sync"
	"unicode"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

var (
	riskKeywords     = []string{"discrepancy", "inconsistent", "missing", "insufficient", "concern", "risk", "issue"}
	positiveKeywords = []string{"verified", "consistent", "adequate", "sufficient", "valid", "authentic"}
)

// SharedContext accumulates cross-stage findings for one run.
// It only grows: the applicant name is set once and the sets never shrink.
type SharedContext struct {
	mu                 sync.RWMutex
	applicantName      string
	riskFactors        []string
	supportingEvidence []string
}

// NewSharedContext creates an empty context.
func NewSharedContext() *SharedContext {
	return &SharedContext{}
}

// Update extracts findings from an agent response.
//
// The extraction is a substring heuristic over free text and only feeds the
// audit trail and later prompts; underwriting makes the actual decision.
func (c *SharedContext) Update(agentKey, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if agentKey == domain.KeyIdentity && c.applicantName == "" {
		if name := extractName(response); name != "" {
			c.applicantName = name
		}
	}

	lower := strings.ToLower(response)
	title := titleCase(agentKey)
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			c.riskFactors = appendUnique(c.riskFactors, title+": "+kw+" identified")
		}
	}
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			c.supportingEvidence = appendUnique(c.supportingEvidence, title+": "+kw+" documentation")
		}
	}
}

// AddRiskFactors appends already-classified risk factors verbatim.
func (c *SharedContext) AddRiskFactors(factors ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range factors {
		if f = strings.TrimSpace(f); f != "" {
			c.riskFactors = appendUnique(c.riskFactors, f)
		}
	}
}

// ApplicantName returns the adopted applicant name, if any.
func (c *SharedContext) ApplicantName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.applicantName
}

// Snapshot copies the current state.
func (c *SharedContext) Snapshot() domain.SharedContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.SharedContext{
		ApplicantName:      c.applicantName,
		RiskFactors:        append([]string{}, c.riskFactors...),
		SupportingEvidence: append([]string{}, c.supportingEvidence...),
	}
}

// extractName returns the value of the first "name:" line made of at least
// two words.
func extractName(response string) string {
	for _, line := range strings.Split(response, "\n") {
		if !strings.Contains(strings.ToLower(line), "name") || !strings.Contains(line, ":") {
			continue
		}
		candidate := strings.TrimSpace(line[strings.LastIndex(line, ":")+1:])
		candidate = strings.Trim(candidate, "*_ ")
		if len(strings.Fields(candidate)) >= 2 {
			return candidate
		}
	}
	return ""
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// titleCase upper-cases the first letter of every letter run: "loan_offer" -> "Loan_Offer".
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}
