package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/globaltrustbank/loanorch/internal/agent"
	"github.com/globaltrustbank/loanorch/internal/domain"
	"github.com/globaltrustbank/loanorch/internal/invoker"
	"github.com/globaltrustbank/loanorch/internal/session"
	"github.com/globaltrustbank/loanorch/internal/underwriting"
)

// pipelineRun is the mutable state of one pipeline execution.
type pipelineRun struct {
	run      domain.PipelineRun
	results  map[string]domain.AgentResult
	previous strings.Builder
	shared   *session.SharedContext
	halted   bool

	approved       bool
	underwriting   *domain.UnderwritingDecision
	offered        bool
	offer          *domain.LoanOffer
	recommendation *domain.FinalRecommendation
}

// StartPipeline creates a run and executes it in the background.
func (s *Service) StartPipeline(ctx context.Context, customerID string) (*domain.PipelineRun, error) {
	p, err := s.createRun(ctx, customerID)
	if err != nil {
		return nil, err
	}
	snapshot := p.run
	s.goBackground(func(ctx context.Context) {
		if _, err := s.execute(ctx, p); err != nil {
			log.Printf("ERROR: pipeline run %s failed: %v", p.run.RunID, err)
		}
	})
	return &snapshot, nil
}

// RunPipeline executes the fixed-order verification pipeline for a customer
// and returns once the final recommendation is stored.
func (s *Service) RunPipeline(ctx context.Context, customerID string) (*domain.PipelineResult, error) {
	p, err := s.createRun(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, p)
}

// GetPipelineRun returns a run by id, or nil if it does not exist.
func (s *Service) GetPipelineRun(ctx context.Context, runID string) (*domain.PipelineRun, error) {
	return s.store.GetPipelineRun(ctx, runID)
}

func (s *Service) createRun(ctx context.Context, customerID string) (*pipelineRun, error) {
	id, ok := domain.NormalizeCustomerID(customerID)
	if !ok {
		return nil, ErrInvalidCustomerID
	}
	p := &pipelineRun{
		run: domain.PipelineRun{
			RunID:      "run_" + uuid.New().String()[:8],
			CustomerID: id,
			Status:     domain.RunStatusRunning,
			Stage:      domain.StageIdentity,
			StartedAt:  s.now(),
		},
		results: make(map[string]domain.AgentResult),
		shared:  session.NewSharedContext(),
	}
	if err := s.store.CreatePipelineRun(ctx, &p.run); err != nil {
		return nil, fmt.Errorf("failed to create pipeline run: %w", err)
	}
	log.Printf("INFO: pipeline run %s started for %s", p.run.RunID, id)
	return p, nil
}

func (s *Service) execute(ctx context.Context, p *pipelineRun) (*domain.PipelineResult, error) {
	err := s.runStages(ctx, p)
	if err != nil {
		p.run.Status = domain.RunStatusFailed
		p.run.Error = err.Error()
	} else if p.halted {
		p.run.Status = domain.RunStatusHalted
	} else {
		p.run.Status = domain.RunStatusCompleted
		p.run.Stage = domain.StageDone
	}
	ended := s.now()
	p.run.EndedAt = &ended

	storeCtx := context.WithoutCancel(ctx)
	if p.run.Stage == domain.StageDone {
		if serr := s.store.UpdatePipelineRunStage(storeCtx, p.run.RunID, domain.StageDone); serr != nil {
			log.Printf("WARN: failed to update pipeline run %s stage: %v", p.run.RunID, serr)
		}
	}
	if cerr := s.store.CompletePipelineRun(storeCtx, p.run.RunID, p.run.Status, p.run.Error); cerr != nil {
		log.Printf("WARN: failed to complete pipeline run %s: %v", p.run.RunID, cerr)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: pipeline run %s finished with %s", p.run.RunID, p.run.Status)
	return &domain.PipelineResult{Run: p.run, Results: p.results, Recommendation: p.recommendation}, nil
}

// runStages walks the state machine. Each stage result is stored before the
// run advances to the next stage.
func (s *Service) runStages(ctx context.Context, p *pipelineRun) error {
	for _, st := range verificationStages {
		if err := s.advance(ctx, p, st.stage); err != nil {
			return err
		}
		result, err := s.runVerification(ctx, p, st)
		if err != nil {
			return err
		}
		if result.Status != domain.ResultStatusPassed {
			log.Printf("WARN: pipeline run %s halted at %s: %s", p.run.RunID, st.stage, result.Status)
			p.halted = true
			break
		}
	}

	if !p.halted {
		if err := s.advance(ctx, p, domain.StageNotifyStage4); err != nil {
			return err
		}
		s.notifyNow(ctx, p.run.CustomerID, "4")

		if err := s.advance(ctx, p, domain.StageUnderwriting); err != nil {
			return err
		}
		if err := s.runUnderwriting(ctx, p); err != nil {
			return err
		}

		if p.approved {
			if err := s.advance(ctx, p, domain.StageNotifyStage5); err != nil {
				return err
			}
			s.notifyNow(ctx, p.run.CustomerID, "5")
		}

		if err := s.advance(ctx, p, domain.StageLoanOffer); err != nil {
			return err
		}
		if err := s.runLoanOffer(ctx, p); err != nil {
			return err
		}

		if p.offered {
			if err := s.advance(ctx, p, domain.StageNotifyStage6); err != nil {
				return err
			}
			s.notifyNow(ctx, p.run.CustomerID, "6")
		}
	}

	if err := s.advance(ctx, p, domain.StageFinalRecommendation); err != nil {
		return err
	}
	return s.runFinalRecommendation(ctx, p)
}

func (s *Service) advance(ctx context.Context, p *pipelineRun, stage domain.PipelineStage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.run.Stage = stage
	if err := s.store.UpdatePipelineRunStage(ctx, p.run.RunID, stage); err != nil {
		return fmt.Errorf("failed to update pipeline stage: %w", err)
	}
	return nil
}

func (s *Service) runVerification(ctx context.Context, p *pipelineRun, st verificationStage) (*domain.AgentResult, error) {
	prompt := stagePrompt(st.prompt, p.run.CustomerID, p.previous.String(), p.shared.Snapshot())

	start := time.Now()
	text, err := s.invoker.Invoke(ctx, s.stages[st.key], prompt, &stageThread{})
	elapsed := time.Since(start)

	status := domain.ResultStatusPassed
	summary := text
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, agent.ErrNoResponse):
		status = domain.ResultStatusNoResponse
		summary = "No response received from " + st.agentName
	case errors.Is(err, invoker.ErrExhausted):
		status = domain.ResultStatusFailed
		summary = "Failed to get response from " + st.agentName
	default:
		status = domain.ResultStatusError
		summary = "Error from " + st.agentName
	}
	if err != nil {
		log.Printf("ERROR: %s failed for %s: %v", st.agentName, p.run.CustomerID, err)
	} else {
		p.shared.Update(st.key, text)
	}

	result := domain.AgentResult{
		ID:               domain.ResultID(p.run.CustomerID, st.key),
		CustomerID:       p.run.CustomerID,
		AgentKey:         st.key,
		AgentName:        st.agentName,
		DocumentType:     domain.DocumentTypeAgentResult,
		Status:           status,
		Summary:          summary,
		FullResponse:     text,
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
		ApplicantName:    p.shared.ApplicantName(),
		Timestamp:        s.now(),
	}
	if err := s.record(ctx, p, result); err != nil {
		return nil, err
	}
	p.previous.WriteString(findingsEntry(st.key, summary))
	return &result, nil
}

// record persists a stage result and adds it to the run.
func (s *Service) record(ctx context.Context, p *pipelineRun, result domain.AgentResult) error {
	if err := s.store.UpsertResult(ctx, &result); err != nil {
		return fmt.Errorf("failed to store %s result: %w", result.AgentKey, err)
	}
	p.results[result.AgentKey] = result
	stageResults.WithLabelValues(result.AgentKey, string(result.Status)).Inc()
	return nil
}

func (s *Service) runUnderwriting(ctx context.Context, p *pipelineRun) error {
	start := time.Now()
	result := domain.AgentResult{
		ID:            domain.ResultID(p.run.CustomerID, domain.KeyUnderwriting),
		CustomerID:    p.run.CustomerID,
		AgentKey:      domain.KeyUnderwriting,
		AgentName:     domain.StageUnderwritingName,
		DocumentType:  domain.DocumentTypeAgentResult,
		ApplicantName: p.shared.ApplicantName(),
	}

	customer, err := s.GetCustomer(ctx, p.run.CustomerID)
	if err != nil {
		log.Printf("WARN: customer lookup failed for %s, analyzing without record: %v", p.run.CustomerID, err)
	}
	decision, err := s.analyzer.Analyze(ctx, p.run.CustomerID, customer, p.results)
	if err != nil {
		log.Printf("ERROR: underwriting failed for %s: %v", p.run.CustomerID, err)
		result.Status = domain.ResultStatusError
		result.Summary = "Underwriting analysis failed"
	} else {
		full, _ := json.MarshalIndent(decision, "", "  ")
		meta, merr := underwriting.Metadata(decision)
		if merr != nil {
			return fmt.Errorf("failed to encode underwriting metadata: %w", merr)
		}
		result.Status = domain.ResultStatusCompleted
		result.Summary = underwriting.Summary(decision)
		result.FullResponse = string(full)
		result.Metadata = meta
		p.shared.AddRiskFactors(decision.Risk.RiskFactors...)
	}
	result.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000
	result.Timestamp = s.now()

	lower := strings.ToLower(result.Summary)
	p.approved = result.Status == domain.ResultStatusCompleted &&
		(strings.Contains(lower, "approved") || strings.Contains(lower, "conditional"))
	if p.approved {
		p.underwriting = decision
	}

	if err := s.record(ctx, p, result); err != nil {
		return err
	}
	p.previous.WriteString(findingsEntry(domain.KeyUnderwriting, result.Summary))
	return nil
}

func (s *Service) runLoanOffer(ctx context.Context, p *pipelineRun) error {
	customerID := p.run.CustomerID
	result := domain.AgentResult{
		ID:            domain.ResultID(customerID, domain.KeyLoanOffer),
		CustomerID:    customerID,
		AgentKey:      domain.KeyLoanOffer,
		AgentName:     domain.StageLoanOfferName,
		DocumentType:  domain.DocumentTypeAgentResult,
		ApplicantName: p.shared.ApplicantName(),
	}
	start := time.Now()

	if !p.approved {
		full, _ := json.MarshalIndent(map[string]string{
			"offer_status": "REJECTED",
			"reason":       "Application did not pass underwriting requirements",
			"customer_id":  customerID,
		}, "", "  ")
		result.Status = domain.ResultStatusRejected
		result.Summary = "Loan offer generation skipped - underwriting not approved"
		result.FullResponse = string(full)
	} else {
		offer, err := s.offers.Generate(ctx, customerID, p.underwriting)
		switch {
		case err != nil:
			log.Printf("ERROR: loan offer generation failed for %s: %v", customerID, err)
			fallthrough
		case offer == nil:
			result.Status = domain.ResultStatusError
			result.Summary = "Failed to generate loan offer for customer " + customerID
		default:
			full, _ := json.MarshalIndent(offer, "", "  ")
			result.Status = domain.ResultStatusCompleted
			result.Summary = "Loan offer generated successfully for customer " + customerID
			result.FullResponse = string(full)
			p.offer = offer
		}
	}
	result.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000
	result.Timestamp = s.now()

	p.offered = result.Status == domain.ResultStatusCompleted &&
		strings.Contains(result.Summary, "generated successfully")

	return s.record(ctx, p, result)
}

func (s *Service) runFinalRecommendation(ctx context.Context, p *pipelineRun) error {
	rec := buildRecommendation(p, s.now())
	if err := s.store.SaveFinalRecommendation(ctx, rec); err != nil {
		return fmt.Errorf("failed to store final recommendation: %w", err)
	}
	p.recommendation = rec
	recommendations.WithLabelValues(string(rec.Recommendation)).Inc()
	log.Printf("INFO: final recommendation for %s: %s (%d issues)", rec.CustomerID, rec.Recommendation, rec.TotalIssues)
	return nil
}
