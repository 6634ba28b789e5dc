package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globaltrustbank/loanorch/internal/agent"
	"github.com/globaltrustbank/loanorch/internal/config"
	"github.com/globaltrustbank/loanorch/internal/domain"
	"github.com/globaltrustbank/loanorch/internal/invoker"
	"github.com/globaltrustbank/loanorch/internal/repository"
	"github.com/globaltrustbank/loanorch/internal/underwriting"
	"github.com/globaltrustbank/loanorch/policy"
	"github.com/globaltrustbank/loanorch/tests/helpers"
)

type stubDecider struct {
	decision string
	err      error
}

func (d stubDecider) Decide(ctx context.Context, riskScore, verificationScore float64) (string, error) {
	return d.decision, d.err
}

type countingGenerator struct {
	mu    sync.Mutex
	calls int
	offer *domain.LoanOffer
	err   error
}

func (g *countingGenerator) Generate(ctx context.Context, customerID string, decision *domain.UnderwritingDecision) (*domain.LoanOffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.offer, g.err
}

func (g *countingGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingSender struct {
	mu     sync.Mutex
	stages []string
	status string
}

func (r *recordingSender) Send(ctx context.Context, customerID, stage string) domain.NotificationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, customerID+":"+stage)
	if r.status == "" {
		return domain.NotificationResult{Status: domain.SendStatusSubmitted, Message: "ok"}
	}
	return domain.NotificationResult{Status: r.status, Message: "webhook returned 500"}
}

func (r *recordingSender) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stages...)
}

func testConfig() *config.Config {
	return &config.Config{
		InvokeMaxRetries:    1,
		InvokeTimeout:       2 * time.Second,
		InvokeMaxTimeout:    5 * time.Second,
		InvokeTimeoutFactor: 1.5,
		ChatTimeout:         2 * time.Second,
		AuditMaxRetries:     1,
		AuditTimeout:        2 * time.Second,
		DripInterval:        20 * time.Millisecond,
		NotifyPoll:          5 * time.Millisecond,
	}
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

type fixture struct {
	svc    *Service
	store  *repository.SQLiteStore
	client *helpers.FakeAgentClient
	sender *recordingSender
}

func newFixture(t *testing.T, decider underwriting.Decider, opts ...Option) *fixture {
	t.Helper()
	cfg := testConfig()
	f := &fixture{
		store:  helpers.NewTestSQLiteStore(t),
		client: helpers.NewFakeAgentClient(),
		sender: &recordingSender{},
	}
	inv := invoker.New(invoker.Config{
		MaxRetries:    cfg.InvokeMaxRetries,
		Timeout:       cfg.InvokeTimeout,
		MaxTimeout:    cfg.InvokeMaxTimeout,
		TimeoutFactor: cfg.InvokeTimeoutFactor,
	}, invoker.WithSleep(noSleep))
	opts = append([]Option{WithInvoker(inv)}, opts...)
	f.svc = New(f.store, f.client, cfg, decider, f.sender, opts...)
	t.Cleanup(f.svc.Close)
	return f
}

func defaultEngine(t *testing.T) underwriting.Decider {
	t.Helper()
	engine, err := policy.NewDefaultEngine(context.Background())
	require.NoError(t, err)
	return engine
}

func strongCustomer(id string) *domain.Customer {
	return &domain.Customer{
		CustomerID:          id,
		Name:                "Asha Rao",
		TotalMonthlyIncome:  150000,
		EMI:                 30000,
		LoanAmount:          2500000,
		CreditScore:         780,
		WorkExperienceYears: 6,
		TenureMonths:        240,
		PropertyValue:       5000000,
	}
}

func (f *fixture) scriptVerificationAgents() {
	f.client.Respond(domain.AgentIdentity, "Applicant Name: Asha Rao\nAll identity documents verified and authentic.")
	f.client.Respond(domain.AgentIncome, "Monthly income of 150000 is verified and consistent across statements.")
	f.client.Respond(domain.AgentGuarantor, "Guarantor verified and eligible.")
	f.client.Respond(domain.AgentInspection, "Property in good condition.")
	f.client.Respond(domain.AgentValuation, "Market value 5000000, adequate collateral.")
}

const eligibilityForm = `Full Name: Asha Rao
Age: 34
Employment Type: Salaried
Monthly Income: 150000
Credit Score: 780
Loan Type: Home Loan`

const applicationForm = `Father's Name: Vikram Rao
Date of Birth: 12/04/1990
Address: 22 MG Road
City: Pune
Pincode: 411001`

func TestHandleTurnEndToEnd(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.client.Script(domain.AgentPrequalification,
		helpers.FakeReply{Content: "Happy to help. Please share your name, age, employment and income."},
		helpers.FakeReply{Content: "You are prequalified for a home loan. Shall we proceed?"},
	)
	f.client.Script(domain.AgentApplication,
		helpers.FakeReply{Content: "Please share your father's name, date of birth and address."},
		helpers.FakeReply{Content: "Thank you. Your application has been successfully submitted."},
	)
	f.client.Respond(domain.AgentAudit, "Audit record created.")

	ctx := context.Background()
	inputs := []string{"I want to check eligibility", eligibilityForm, "yes, proceed", applicationForm}
	want := []domain.AgentType{
		domain.AgentTypePrequalification,
		domain.AgentTypePrequalification,
		domain.AgentTypeApplication,
		domain.AgentTypeApplication,
	}

	sessionID := ""
	for i, msg := range inputs {
		resp, err := f.svc.HandleTurn(ctx, domain.ChatRequest{SessionID: sessionID, CustomerID: "cust0001", Message: msg})
		require.NoError(t, err)
		assert.Equal(t, domain.ChatStatusSuccess, resp.Status, "turn %d", i)
		assert.Equal(t, want[i], resp.AgentType, "turn %d", i)
		sessionID = resp.SessionID
	}
	f.svc.Wait()

	results, err := f.svc.ListResults(ctx, "CUST0001")
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.AgentKey]++
	}
	assert.Equal(t, 1, counts["prequalification"])
	assert.Equal(t, 1, counts["application"])
	assert.Equal(t, 1, counts[auditTypePrequalification])
	assert.Equal(t, 1, counts[auditTypeApplication])

	app, err := f.store.GetResult(ctx, "CUST0001_application")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Contains(t, app.FullResponse, "successfully submitted")

	notes, err := f.svc.ListNotifications(ctx, "CUST0001")
	require.NoError(t, err)
	require.Len(t, notes, 3)
	for i, n := range notes {
		assert.Equal(t, dripStages[i], n.Stage)
		assert.Equal(t, domain.NotificationStatusPending, n.Status)
	}
	assert.True(t, notes[2].DueAt.After(notes[0].DueAt))

	info, err := f.svc.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "CUST0001", info.CustomerID)
	assert.Equal(t, 8, info.MessageCount)
}

func TestHandleTurnDoesNotWaitForDrip(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.svc.config.DripInterval = 100 * time.Millisecond
	f.client.Respond(domain.AgentApplication, "Your application has been successfully submitted.")
	f.client.Respond(domain.AgentAudit, "Audit record created.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.svc.RunNotificationDispatcher(ctx)

	start := time.Now()
	resp, err := f.svc.HandleTurn(ctx, domain.ChatRequest{CustomerID: "CUST0007", Message: applicationForm})
	require.NoError(t, err)
	assert.Equal(t, domain.ChatStatusSuccess, resp.Status)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Eventually(t, func() bool {
		return len(f.sender.Sent()) == 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"CUST0007:1", "CUST0007:2", "CUST0007:3"}, f.sender.Sent())

	notes, err := f.svc.ListNotifications(ctx, "CUST0007")
	require.NoError(t, err)
	for _, n := range notes {
		assert.Equal(t, domain.NotificationStatusSent, n.Status)
		assert.Equal(t, 1, n.Attempts)
	}
}

func TestHandleTurnAgentFailureReturnsApology(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.client.Fail(domain.AgentPrequalification, agent.Transient("invoke", errors.New("connection reset by peer")))

	resp, err := f.svc.HandleTurn(context.Background(), domain.ChatRequest{Message: "check my eligibility"})
	require.NoError(t, err)
	assert.Equal(t, domain.ChatStatusError, resp.Status)
	assert.Equal(t, apologyMessage, resp.Message)
	assert.NotContains(t, resp.Message, "connection reset")
	assert.Equal(t, domain.AgentTypePrequalification, resp.AgentType)
	assert.Equal(t, 2, f.client.Calls(domain.AgentPrequalification))
}

func TestHandleTurnNoAgents(t *testing.T) {
	f := newFixture(t, defaultEngine(t), WithConversationAgents(nil))

	_, err := f.svc.HandleTurn(context.Background(), domain.ChatRequest{Message: "hello"})
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestHandleTurnValidation(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	ctx := context.Background()

	_, err := f.svc.HandleTurn(ctx, domain.ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.svc.HandleTurn(ctx, domain.ChatRequest{CustomerID: "customer-1", Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidCustomerID)
	assert.Zero(t, f.client.Calls(""))
}

func TestHandleTurnWithoutCustomerDoesNotPersist(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	resp, err := f.svc.HandleTurn(context.Background(), domain.ChatRequest{Message: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentTypePrequalification, resp.AgentType)
	assert.Equal(t, "OK from "+domain.AgentPrequalification, resp.Message)

	missing, err := f.svc.GetSession(context.Background(), "sess_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRunPipelineApprovedWithOffer(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	ctx := context.Background()
	require.NoError(t, f.store.UpsertCustomer(ctx, strongCustomer("CUST0001")))
	f.scriptVerificationAgents()

	res, err := f.svc.RunPipeline(ctx, "cust0001")
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, res.Run.Status)
	assert.Equal(t, domain.StageDone, res.Run.Stage)
	for _, key := range domain.VerificationKeys {
		assert.Equal(t, domain.ResultStatusPassed, res.Results[key].Status, key)
	}
	assert.Equal(t, domain.ResultStatusCompleted, res.Results[domain.KeyUnderwriting].Status)
	assert.Equal(t, "Underwriting Decision: APPROVED (Risk Score: 100.0/100)", res.Results[domain.KeyUnderwriting].Summary)
	assert.Equal(t, "Loan offer generated successfully for customer CUST0001", res.Results[domain.KeyLoanOffer].Summary)

	rec := res.Recommendation
	require.NotNil(t, rec)
	assert.Equal(t, domain.RecommendationApprovedWithOffer, rec.Recommendation)
	assert.Equal(t, textApprovedWithOffer, rec.RecommendationText)
	assert.Equal(t, "Asha Rao", rec.ApplicantName)
	assert.True(t, rec.UnderwritingApproved)
	assert.True(t, rec.LoanOfferGenerated)
	require.NotNil(t, rec.LoanOfferDetails)
	assert.Len(t, rec.AgentSummaries, 7)

	assert.Equal(t, []string{"CUST0001:4", "CUST0001:5", "CUST0001:6"}, f.sender.Sent())

	stored, err := f.store.GetFinalRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, rec.Recommendation, stored.Recommendation)

	run, err := f.svc.GetPipelineRun(ctx, res.Run.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, domain.StageDone, run.Stage)
	assert.NotNil(t, run.EndedAt)
}

func TestRunPipelinePromptsAccumulateFindings(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	ctx := context.Background()
	require.NoError(t, f.store.UpsertCustomer(ctx, strongCustomer("CUST0001")))
	f.scriptVerificationAgents()

	_, err := f.svc.RunPipeline(ctx, "CUST0001")
	require.NoError(t, err)

	var valuation string
	for _, c := range f.client.CallLog() {
		if c.Agent == domain.AgentValuation {
			valuation = c.Message
		}
	}
	require.NotEmpty(t, valuation)
	assert.Contains(t, valuation, "--- PREVIOUS AGENT FINDINGS ---")
	for _, key := range []string{"IDENTITY", "INCOME", "GUARANTOR", "INSPECTION"} {
		assert.Contains(t, valuation, key+" AGENT FINDINGS:")
	}
	assert.Contains(t, valuation, "Applicant Name: Asha Rao")
	assert.Contains(t, valuation, "Customer ID: CUST0001")
}

func TestRunPipelineRejectedSkipsOfferGeneration(t *testing.T) {
	gen := &countingGenerator{offer: &domain.LoanOffer{}}
	f := newFixture(t, stubDecider{decision: domain.DecisionRejected}, WithOfferGenerator(gen))
	ctx := context.Background()
	f.scriptVerificationAgents()

	res, err := f.svc.RunPipeline(ctx, "CUST0002")
	require.NoError(t, err)

	offer := res.Results[domain.KeyLoanOffer]
	assert.Equal(t, domain.ResultStatusRejected, offer.Status)
	assert.Equal(t, "Loan offer generation skipped - underwriting not approved", offer.Summary)
	assert.Contains(t, offer.FullResponse, `"offer_status": "REJECTED"`)
	assert.Zero(t, gen.Calls())

	assert.Equal(t, []string{"CUST0002:4"}, f.sender.Sent())
	assert.False(t, res.Recommendation.UnderwritingApproved)
	assert.False(t, res.Recommendation.LoanOfferGenerated)
	assert.NotEqual(t, domain.RecommendationApprovedWithOffer, res.Recommendation.Recommendation)
}

func TestRunPipelineConditionalWithoutOffer(t *testing.T) {
	gen := &countingGenerator{}
	f := newFixture(t, stubDecider{decision: domain.DecisionConditionalApproval}, WithOfferGenerator(gen))
	f.scriptVerificationAgents()

	res, err := f.svc.RunPipeline(context.Background(), "CUST0003")
	require.NoError(t, err)

	assert.Equal(t, 1, gen.Calls())
	assert.Equal(t, domain.ResultStatusError, res.Results[domain.KeyLoanOffer].Status)
	assert.Equal(t, "Failed to generate loan offer for customer CUST0003", res.Results[domain.KeyLoanOffer].Summary)
	assert.Equal(t, domain.RecommendationApproved, res.Recommendation.Recommendation)
	assert.Equal(t, textApprovedNoOffer, res.Recommendation.RecommendationText)
	assert.Equal(t, []string{"CUST0003:4", "CUST0003:5"}, f.sender.Sent())
}

func TestRunPipelineHaltsOnPermanentError(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.scriptVerificationAgents()
	f.client.Fail(domain.AgentIncome, agent.Permanent("invoke", errors.New("400 bad request")))
	ctx := context.Background()

	res, err := f.svc.RunPipeline(ctx, "CUST0004")
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusHalted, res.Run.Status)
	assert.Equal(t, domain.ResultStatusPassed, res.Results[domain.KeyIdentity].Status)
	assert.Equal(t, domain.ResultStatusError, res.Results[domain.KeyIncome].Status)
	assert.Equal(t, 1, f.client.Calls(domain.AgentIncome))
	assert.Zero(t, f.client.Calls(domain.AgentGuarantor))
	assert.NotContains(t, res.Results, domain.KeyUnderwriting)
	assert.NotContains(t, res.Results, domain.KeyLoanOffer)
	assert.Empty(t, f.sender.Sent())

	require.NotNil(t, res.Recommendation)
	assert.Equal(t, 1, res.Recommendation.TotalIssues)
	assert.Equal(t, domain.RecommendationConditionalApproval, res.Recommendation.Recommendation)

	run, err := f.svc.GetPipelineRun(ctx, res.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusHalted, run.Status)
	assert.Equal(t, domain.StageFinalRecommendation, run.Stage)
}

func TestRunPipelineExhaustedRetriesRecordsFailed(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.scriptVerificationAgents()
	f.client.Fail(domain.AgentGuarantor, agent.Transient("invoke", errors.New("503 service unavailable")))

	res, err := f.svc.RunPipeline(context.Background(), "CUST0005")
	require.NoError(t, err)

	assert.Equal(t, domain.ResultStatusFailed, res.Results[domain.KeyGuarantor].Status)
	assert.Equal(t, 2, f.client.Calls(domain.AgentGuarantor))
	assert.Equal(t, domain.RunStatusHalted, res.Run.Status)
}

func TestRunPipelineEmptyResponse(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.scriptVerificationAgents()
	f.client.Respond(domain.AgentIdentity, "   ")

	res, err := f.svc.RunPipeline(context.Background(), "CUST0006")
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStatusNoResponse, res.Results[domain.KeyIdentity].Status)
	assert.Len(t, res.Results, 1)
}

func TestRunPipelineRerunOverwritesResults(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.scriptVerificationAgents()
	ctx := context.Background()

	_, err := f.svc.RunPipeline(ctx, "CUST0008")
	require.NoError(t, err)
	_, err = f.svc.RunPipeline(ctx, "CUST0008")
	require.NoError(t, err)

	results, err := f.svc.ListResults(ctx, "CUST0008")
	require.NoError(t, err)
	counts := make(map[string]int)
	for _, r := range results {
		if r.DocumentType == domain.DocumentTypeAgentResult {
			counts[r.AgentKey]++
		}
	}
	for _, key := range domain.VerificationKeys {
		assert.Equal(t, 1, counts[key], key)
	}
}

func TestRunPipelineInvalidCustomer(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	_, err := f.svc.RunPipeline(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidCustomerID)
	_, err = f.svc.ListResults(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidCustomerID)
}

func TestRunPipelineCancelled(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.scriptVerificationAgents()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.RunPipeline(ctx, "CUST0009")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartPipelineRunsInBackground(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.scriptVerificationAgents()
	ctx := context.Background()

	run, err := f.svc.StartPipeline(ctx, "CUST0011")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, run.Status)

	f.svc.Wait()
	stored, err := f.svc.GetPipelineRun(ctx, run.RunID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.RunStatusCompleted, stored.Status)
}

func TestRunPostSubmissionFallsBackToLatestCustomer(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	ctx := context.Background()
	require.NoError(t, f.store.UpsertCustomer(ctx, strongCustomer("CUST0002")))
	require.NoError(t, f.store.UpsertCustomer(ctx, strongCustomer("CUST0010")))

	require.NoError(t, f.svc.RunPostSubmission(ctx, "", "summary"))

	audit, err := f.store.GetResult(ctx, "CUST0010_"+auditTypeApplication)
	require.NoError(t, err)
	require.NotNil(t, audit)
	assert.Equal(t, domain.DocumentTypeAuditRecord, audit.DocumentType)

	var prompts []string
	for _, c := range f.client.CallLog() {
		prompts = append(prompts, c.Message)
	}
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "Prequalification Check")
	assert.Contains(t, prompts[1], "Application Summary:\nsummary")
}

func TestRunPostSubmissionStopsOnAuditFailure(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.client.Fail(domain.AgentAudit, agent.Permanent("invoke", errors.New("forbidden")))
	ctx := context.Background()

	err := f.svc.RunPostSubmission(ctx, "CUST0001", "summary")
	require.Error(t, err)
	assert.Equal(t, 1, f.client.Calls(domain.AgentAudit))

	notes, err := f.svc.ListNotifications(ctx, "CUST0001")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestRunPostSubmissionWithoutCustomers(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	err := f.svc.RunPostSubmission(context.Background(), "", "summary")
	require.Error(t, err)
	assert.Zero(t, f.client.Calls(""))
}

func TestDispatchRecordsFailedNotifications(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.sender.status = domain.SendStatusError
	ctx := context.Background()

	require.NoError(t, f.svc.scheduleDrip(ctx, "CUST0001"))
	f.svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	f.svc.dispatchDueNotifications(ctx)

	notes, err := f.svc.ListNotifications(ctx, "CUST0001")
	require.NoError(t, err)
	require.Len(t, notes, 3)
	for _, n := range notes {
		assert.Equal(t, domain.NotificationStatusFailed, n.Status)
		assert.Equal(t, "webhook returned 500", n.LastError)
	}
	assert.Len(t, f.sender.Sent(), 3)
}

func TestRunPipelineCarriesUnderwritingRiskFactors(t *testing.T) {
	f := newFixture(t, defaultEngine(t))
	f.scriptVerificationAgents()

	res, err := f.svc.RunPipeline(context.Background(), "CUST0042")
	require.NoError(t, err)

	rec := res.Recommendation
	require.NotNil(t, rec)
	assert.Contains(t, rec.RiskFactors, "No credit score available")
	for _, factor := range rec.RiskFactors {
		assert.NotContains(t, factor, "Underwriting:", "underwriting factors are kept verbatim")
	}
	for _, evidence := range rec.SupportingEvidence {
		assert.NotContains(t, evidence, "Underwriting", "underwriting never adds supporting evidence")
	}
}
