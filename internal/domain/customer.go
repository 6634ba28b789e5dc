package domain

import (
	"regexp"
	"strings"
)

// Customer is the read-only applicant record used for underwriting and offers.
// Numeric fields default to zero when the source row has no value.
type Customer struct {
	CustomerID            string  `json:"customer_id"`
	Name                  string  `json:"name"`
	Email                 string  `json:"email,omitempty"`
	Mobile                string  `json:"mobile,omitempty"`
	Age                   int     `json:"age"`
	MonthlyIncome         float64 `json:"monthly_income"`
	TotalMonthlyIncome    float64 `json:"total_monthly_income"`
	EmploymentStatus      string  `json:"employment_status"`
	WorkExperienceYears   float64 `json:"work_experience_years"`
	LoanAmount            float64 `json:"loan_amount"`
	CreditScore           int     `json:"credit_score"`
	LoanType              string  `json:"loan_type"`
	EMI                   float64 `json:"emi"`
	TenureMonths          int     `json:"tenure_months"`
	AccountBalance        float64 `json:"account_balance"`
	AverageMonthlyBalance float64 `json:"average_monthly_balance"`
	KYCStatus             string  `json:"kyc_status"`
	PropertyValue         float64 `json:"property_value"`
}

var customerIDPattern = regexp.MustCompile(`(?i)^cust\d+$`)

// NormalizeCustomerID upper-cases and validates a customer id.
func NormalizeCustomerID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if !customerIDPattern.MatchString(id) {
		return "", false
	}
	return strings.ToUpper(id), true
}
