package domain

import (
	"encoding/json"
	"time"
)

// AgentResult is a stage result persisted in the result store.
// The ID is deterministic so rewrites of the same stage overwrite.
type AgentResult struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	AgentKey         string          `json:"agent_key"`
	AgentName        string          `json:"agent_name"`
	DocumentType     DocumentType    `json:"document_type"`
	Status           ResultStatus    `json:"status"`
	Summary          string          `json:"summary"`
	FullResponse     string          `json:"full_response,omitempty"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
	ApplicantName    string          `json:"applicant_name,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

// ResultID builds the document id for a customer-scoped stage result.
func ResultID(customerID, key string) string {
	return customerID + "_" + key
}

// FinalRecommendation aggregates a completed pipeline run.
type FinalRecommendation struct {
	ID                   string                 `json:"id"`
	CustomerID           string                 `json:"customer_id"`
	RunID                string                 `json:"run_id,omitempty"`
	ApplicantName        string                 `json:"applicant_name"`
	Recommendation       Recommendation         `json:"recommendation"`
	RecommendationText   string                 `json:"recommendation_text"`
	TotalIssues          int                    `json:"total_issues"`
	UnderwritingApproved bool                   `json:"underwriting_approved"`
	LoanOfferGenerated   bool                   `json:"loan_offer_generated"`
	LoanOfferDetails     *LoanOffer             `json:"loan_offer_details,omitempty"`
	RiskFactors          []string               `json:"risk_factors"`
	SupportingEvidence   []string               `json:"supporting_evidence"`
	AgentSummaries       []string               `json:"agent_summaries"`
	AgentResults         map[string]AgentResult `json:"agent_results"`
	Timestamp            time.Time              `json:"processing_timestamp"`
}

// FinalRecommendationID builds the timestamp-suffixed id of a final recommendation.
func FinalRecommendationID(customerID string, at time.Time) string {
	return customerID + "_final_recommendation_" + at.Format("20060102_150405")
}

// PipelineRun tracks one execution of the fixed-order pipeline.
type PipelineRun struct {
	RunID      string        `json:"run_id"`
	CustomerID string        `json:"customer_id"`
	Status     RunStatus     `json:"status"`
	Stage      PipelineStage `json:"stage"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// PipelineResult is returned when a pipeline run finishes.
type PipelineResult struct {
	Run            PipelineRun            `json:"run"`
	Results        map[string]AgentResult `json:"results"`
	Recommendation *FinalRecommendation   `json:"recommendation,omitempty"`
}
