package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

func TestSharedContextApplicantName(t *testing.T) {
	c := NewSharedContext()

	c.Update(domain.KeyIncome, "Name: Someone Else")
	assert.Empty(t, c.ApplicantName(), "only identity stage sets the name")

	c.Update(domain.KeyIdentity, "Result\nName: Madonna\nDocument: passport")
	assert.Empty(t, c.ApplicantName(), "single-word names are rejected")

	c.Update(domain.KeyIdentity, "Applicant Name: Priya Sharma\nStatus: verified")
	assert.Equal(t, "Priya Sharma", c.ApplicantName())

	c.Update(domain.KeyIdentity, "Full Name: Another Person")
	assert.Equal(t, "Priya Sharma", c.ApplicantName(), "name is immutable once set")
}

func TestSharedContextRiskAndEvidence(t *testing.T) {
	c := NewSharedContext()

	c.Update(domain.KeyIncome, "Salary slips VERIFIED. Minor discrepancy in employer name.")
	c.Update(domain.KeyIncome, "Another discrepancy noted.")
	c.Update(domain.KeyLoanOffer, "Offer is valid")

	snap := c.Snapshot()
	assert.Equal(t, []string{"Income: discrepancy identified"}, snap.RiskFactors)
	assert.Equal(t, []string{"Income: verified documentation", "Loan_Offer: valid documentation"}, snap.SupportingEvidence)
}

func TestSharedContextSnapshotIsCopy(t *testing.T) {
	c := NewSharedContext()
	c.Update(domain.KeyGuarantor, "missing guarantor signature")

	snap := c.Snapshot()
	snap.RiskFactors[0] = "tampered"
	assert.Equal(t, "Guarantor: missing identified", c.Snapshot().RiskFactors[0])
}

func TestSharedContextOverlappingKeywords(t *testing.T) {
	c := NewSharedContext()
	c.Update(domain.KeyValuation, "Values are inconsistent")

	snap := c.Snapshot()
	assert.Contains(t, snap.RiskFactors, "Valuation: inconsistent identified")
	assert.Contains(t, snap.SupportingEvidence, "Valuation: consistent documentation")
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Identity", titleCase("identity"))
	assert.Equal(t, "Loan_Offer", titleCase("loan_offer"))
}

func TestSessionHistoryAndActiveAgent(t *testing.T) {
	s := New("sess_test")
	assert.Equal(t, "", s.ActiveAgent())

	s.AppendUser("check eligibility")
	s.AppendAgent(domain.AgentPrequalification, "Share your details")
	s.AppendUser("ok")

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, domain.RoleUser, h[0].Role)
	assert.Equal(t, domain.AgentPrequalification, h[1].AgentName)
	assert.Equal(t, domain.AgentPrequalification, s.ActiveAgent())

	h[0].Content = "changed"
	assert.Equal(t, "check eligibility", s.History()[0].Content)
}

func TestSessionCustomerIDAdoption(t *testing.T) {
	s := New("sess_test")
	assert.False(t, s.SetCustomerID("12345"))
	assert.Equal(t, "", s.CustomerID())

	s.AppendAgent(domain.AgentApplication, "Your customer id is cust0007.")
	assert.Equal(t, "CUST0007", s.CustomerID())

	s.AppendUser("actually CUST0009")
	assert.Equal(t, "CUST0007", s.CustomerID(), "first adopted id sticks")

	assert.True(t, s.SetCustomerID("cust0010"))
	assert.Equal(t, "CUST0010", s.CustomerID())
}

func TestSessionThread(t *testing.T) {
	s := New("sess_test")
	s.SetThread("thread_1")
	assert.Equal(t, "thread_1", s.Thread())
}

func TestManagerGetOrCreate(t *testing.T) {
	m := NewManager()

	a := m.GetOrCreate("sess_a")
	b := m.GetOrCreate("sess_a")
	assert.Same(t, a, b)

	fresh := m.GetOrCreate("")
	assert.NotEmpty(t, fresh.ID)
	assert.Equal(t, 2, m.Len())

	m.Delete("sess_a")
	assert.Nil(t, m.Get("sess_a"))
}

func TestManagerConcurrentAccess(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.GetOrCreate("shared")
			s.AppendUser("hello")
		}()
	}
	wg.Wait()
	assert.Len(t, m.Get("shared").History(), 20)
}

func TestManagerEvictIdle(t *testing.T) {
	m := NewManager()
	old := m.GetOrCreate("old")
	old.Append(domain.Message{Role: domain.RoleUser, Content: "hi", Timestamp: time.Now().Add(-2 * time.Hour)})
	m.GetOrCreate("new")

	assert.Equal(t, 1, m.EvictIdle(time.Hour))
	assert.Nil(t, m.Get("old"))
	assert.NotNil(t, m.Get("new"))
}

func TestRunIdleSweeperStops(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunIdleSweeper(ctx, time.Hour, 5*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSharedContextAddRiskFactorsVerbatim(t *testing.T) {
	c := NewSharedContext()
	c.Update(domain.KeyIncome, "Minor discrepancy noted")

	c.AddRiskFactors("No credit score available", "Insufficient work experience", "", "No credit score available")

	snap := c.Snapshot()
	assert.Equal(t, []string{
		"Income: discrepancy identified",
		"No credit score available",
		"Insufficient work experience",
	}, snap.RiskFactors)
	assert.Empty(t, snap.SupportingEvidence)
}
