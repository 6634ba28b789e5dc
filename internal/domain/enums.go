// Package domain defines the core domain models for the loan orchestrator.
package domain

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Conversational agents.
const (
	AgentPrequalification = "PrequalificationAgent"
	AgentApplication      = "ApplicationAssistAgent"
	AgentLoanStatus       = "LoanStatusCheckAgent"
	AgentAudit            = "AuditAgent"
)

// Pipeline verification agents.
const (
	AgentIdentity   = "Identity Check"
	AgentIncome     = "Income Check"
	AgentGuarantor  = "Guarantor Check"
	AgentInspection = "Collateral Inspection Check"
	AgentValuation  = "Valuation Check"

	StageUnderwritingName = "Underwriting Analysis"
	StageLoanOfferName    = "Loan Offer Generation"
)

// Agent keys used in result document ids and prompt context.
const (
	KeyIdentity     = "identity"
	KeyIncome       = "income"
	KeyGuarantor    = "guarantor"
	KeyInspection   = "inspection"
	KeyValuation    = "valuation"
	KeyUnderwriting = "underwriting"
	KeyLoanOffer    = "loan_offer"
)

// VerificationKeys lists the verification stages in pipeline order.
var VerificationKeys = []string{KeyIdentity, KeyIncome, KeyGuarantor, KeyInspection, KeyValuation}

// AgentType is the API-facing classification of the agent that answered a turn.
type AgentType string

const (
	AgentTypePrequalification AgentType = "prequalification"
	AgentTypeApplication      AgentType = "application"
	AgentTypeLoanStatusCheck  AgentType = "loan_status_check"
	AgentTypeAudit            AgentType = "audit"
	AgentTypeOrchestrator     AgentType = "orchestrator"
)

// ResultStatus is the outcome recorded for a stage.
type ResultStatus string

const (
	ResultStatusPassed     ResultStatus = "passed"
	ResultStatusFailed     ResultStatus = "failed"
	ResultStatusNoResponse ResultStatus = "no_response"
	ResultStatusError      ResultStatus = "error"
	ResultStatusCompleted  ResultStatus = "completed"
	ResultStatusRejected   ResultStatus = "rejected"
	ResultStatusPending    ResultStatus = "pending"
)

// DocumentType distinguishes records in the result store.
type DocumentType string

const (
	DocumentTypeAgentResult         DocumentType = "agent_result"
	DocumentTypeAuditRecord         DocumentType = "audit_record"
	DocumentTypeFinalRecommendation DocumentType = "final_recommendation"
)

// Recommendation is the final outcome of a pipeline run.
type Recommendation string

const (
	RecommendationApproved            Recommendation = "approved"
	RecommendationApprovedWithOffer   Recommendation = "approved_with_offer"
	RecommendationConditionalApproval Recommendation = "conditional_approval"
	RecommendationRejected            Recommendation = "rejected"
)

// Underwriting decisions.
const (
	DecisionApproved            = "APPROVED"
	DecisionConditionalApproval = "CONDITIONAL APPROVAL"
	DecisionRejected            = "REJECTED"
)

// PipelineStage is a state of the fixed-order pipeline.
type PipelineStage string

const (
	StageIdentity            PipelineStage = "IDENTITY"
	StageIncome              PipelineStage = "INCOME"
	StageGuarantor           PipelineStage = "GUARANTOR"
	StageInspection          PipelineStage = "INSPECTION"
	StageValuation           PipelineStage = "VALUATION"
	StageNotifyStage4        PipelineStage = "NOTIFY_STAGE4"
	StageUnderwriting        PipelineStage = "UNDERWRITING"
	StageNotifyStage5        PipelineStage = "NOTIFY_STAGE5_IF_APPROVED"
	StageLoanOffer           PipelineStage = "LOAN_OFFER"
	StageNotifyStage6        PipelineStage = "NOTIFY_STAGE6_IF_GENERATED"
	StageFinalRecommendation PipelineStage = "FINAL_RECOMMENDATION"
	StageDone                PipelineStage = "DONE"
)

// RunStatus represents the status of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusHalted    RunStatus = "HALTED"
	RunStatusFailed    RunStatus = "FAILED"
)

// NotificationStatus tracks delivery of a queued notification.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// Notification send outcomes reported by a sender.
const (
	SendStatusSubmitted = "submitted"
	SendStatusError     = "error"
)
