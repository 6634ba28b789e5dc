// Package offer builds loan offers for underwritten applications.
package offer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

// CustomerLookup reads customer records.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
}

// Generator produces offers. A nil offer with a nil error means no offer
// could be generated for the customer.
type Generator interface {
	Generate(ctx context.Context, customerID string, decision *domain.UnderwritingDecision) (*domain.LoanOffer, error)
}

// Rate card in percent.
const (
	baseRate         = 8.5
	minRate          = 7.0
	minCreditScore   = 650
	maxLoanToValue   = 0.85
	excellentCredit  = -0.5
	fairCredit       = 0.5
	highIncomeAdj    = -0.25
	stableEmployment = -0.25
	lowRiskAdj       = -0.25
	highRiskAdj      = 0.75
)

var standardTenures = []int{120, 240, 360}

// RateCardGenerator derives offers from the customer record and the
// underwriting risk category.
type RateCardGenerator struct {
	customers CustomerLookup
}

var _ Generator = (*RateCardGenerator)(nil)

// NewRateCardGenerator creates a generator reading customers from lookup.
func NewRateCardGenerator(lookup CustomerLookup) *RateCardGenerator {
	return &RateCardGenerator{customers: lookup}
}

// Generate builds an offer for an approved or conditionally approved decision.
func (g *RateCardGenerator) Generate(ctx context.Context, customerID string, decision *domain.UnderwritingDecision) (*domain.LoanOffer, error) {
	if !decision.Approved() {
		return nil, nil
	}
	c, err := g.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	if c == nil {
		return nil, nil
	}

	income := c.TotalMonthlyIncome
	if income <= 0 {
		income = c.MonthlyIncome
	}
	if income <= 0 || c.CreditScore < minCreditScore {
		return nil, nil
	}

	eligibility := domain.OfferEligibility{
		Eligible:          true,
		RequestedAmount:   c.LoanAmount,
		RecommendedAmount: c.LoanAmount,
		MaxEligibleAmount: c.LoanAmount,
	}
	if c.PropertyValue > 0 {
		eligibility.MaxEligibleAmount = round2(c.PropertyValue * maxLoanToValue)
		if c.LoanAmount > eligibility.MaxEligibleAmount {
			eligibility.RecommendedAmount = round2(eligibility.MaxEligibleAmount * 0.9)
		}
	}

	rate := Rate(c, decision.Risk.RiskCategory)
	options := make([]domain.LoanOption, 0, len(standardTenures)+1)
	for _, tenure := range tenures(c.TenureMonths) {
		options = append(options, domain.LoanOption{
			TenureMonths: tenure,
			Amount:       eligibility.RecommendedAmount,
			Rate:         rate,
		})
	}

	collateral := domain.CollateralInfo{PropertyValue: c.PropertyValue}
	if c.PropertyValue > 0 {
		collateral.LoanToValue = round2(eligibility.RecommendedAmount / c.PropertyValue * 100)
	}

	return &domain.LoanOffer{
		CustomerID:     customerID,
		Eligibility:    eligibility,
		LoanOptions:    options,
		FinalRate:      rate,
		CollateralInfo: collateral,
		OfferSummary: fmt.Sprintf("Loan of INR %.2f offered to %s at %.2f%% per annum (%s)",
			eligibility.RecommendedAmount, c.Name, rate, decision.Decision),
	}, nil
}

// Rate applies the rate card to a customer and risk category.
func Rate(c *domain.Customer, riskCategory string) float64 {
	rate := baseRate
	switch {
	case c.CreditScore >= 750:
		rate += excellentCredit
	case c.CreditScore >= 650:
	case c.CreditScore > 0:
		rate += fairCredit
	}
	income := c.TotalMonthlyIncome
	if income <= 0 {
		income = c.MonthlyIncome
	}
	if income > 100000 {
		rate += highIncomeAdj
	}
	if c.WorkExperienceYears >= 3 {
		rate += stableEmployment
	}
	switch riskCategory {
	case "Low Risk":
		rate += lowRiskAdj
	case "High Risk":
		rate += highRiskAdj
	}
	return round2(math.Max(rate, minRate))
}

func tenures(requested int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, t := range append([]int{requested}, standardTenures...) {
		if t > 0 && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Ints(out)
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
