package repository

import (
	"context"
	"fmt"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

// DemoCustomers returns the applicants loaded by SEED_DEMO_DATA.
func DemoCustomers() []domain.Customer {
	return []domain.Customer{
		{
			CustomerID: "CUST0001", Name: "Asha Rao", Email: "asha.rao@example.com", Mobile: "9800000001",
			Age: 34, MonthlyIncome: 150000, TotalMonthlyIncome: 165000, EmploymentStatus: "Salaried",
			WorkExperienceYears: 8, LoanAmount: 4500000, CreditScore: 790, LoanType: "Home Loan",
			EMI: 25000, TenureMonths: 240, AccountBalance: 820000, AverageMonthlyBalance: 410000,
			KYCStatus: "Verified", PropertyValue: 7500000,
		},
		{
			CustomerID: "CUST0002", Name: "Rahul Mehta", Email: "rahul.mehta@example.com", Mobile: "9800000002",
			Age: 29, MonthlyIncome: 60000, TotalMonthlyIncome: 60000, EmploymentStatus: "Salaried",
			WorkExperienceYears: 2, LoanAmount: 3000000, CreditScore: 690, LoanType: "Home Loan",
			EMI: 21000, TenureMonths: 300, AccountBalance: 95000, AverageMonthlyBalance: 40000,
			KYCStatus: "Verified", PropertyValue: 3600000,
		},
		{
			CustomerID: "CUST0003", Name: "Imran Shaikh", Email: "imran.shaikh@example.com", Mobile: "9800000003",
			Age: 41, MonthlyIncome: 28000, TotalMonthlyIncome: 28000, EmploymentStatus: "Self-Employed",
			WorkExperienceYears: 1, LoanAmount: 5000000, CreditScore: 610, LoanType: "Home Loan",
			EMI: 12000, TenureMonths: 360, AccountBalance: 15000, AverageMonthlyBalance: 9000,
			KYCStatus: "Pending", PropertyValue: 5200000,
		},
	}
}

// SeedDemoCustomers upserts the demo applicants.
func SeedDemoCustomers(ctx context.Context, s Store) error {
	for _, c := range DemoCustomers() {
		c := c
		if err := s.UpsertCustomer(ctx, &c); err != nil {
			return fmt.Errorf("failed to seed customer %s: %w", c.CustomerID, err)
		}
	}
	return nil
}
