package service

import (
	"fmt"
	"strings"

	"github.com/globaltrustbank/loanorch/internal/domain"
)

type verificationStage struct {
	key       string
	agentName string
	stage     domain.PipelineStage
	prompt    string
}

var verificationStages = []verificationStage{
	{
		key:       domain.KeyIdentity,
		agentName: domain.AgentIdentity,
		stage:     domain.StageIdentity,
		prompt: "You verify identity documents for home loan applications. Review the applicant's identity documents " +
			"and extract the full name, date of birth, PAN number, Aadhaar number and complete address. Check that the " +
			"documents are authentic and consistent with each other, and point out any discrepancy or missing information.",
	},
	{
		key:       domain.KeyIncome,
		agentName: domain.AgentIncome,
		stage:     domain.StageIncome,
		prompt: "You analyze income documents for home loan applications. Review the salary slips, bank statements and " +
			"other financial records, summarize the monthly and annual income, check the documents agree, point out any " +
			"discrepancy or missing information and state whether the income meets the eligibility criteria.",
	},
	{
		key:       domain.KeyGuarantor,
		agentName: domain.AgentGuarantor,
		stage:     domain.StageGuarantor,
		prompt: "You verify loan guarantors. Review the guarantor verification call and summarize the guarantor's full " +
			"name, relationship to the applicant, financial standing and supporting statements. State whether the " +
			"guarantor is eligible and point out any inconsistency or missing information.",
	},
	{
		key:       domain.KeyInspection,
		agentName: domain.AgentInspection,
		stage:     domain.StageInspection,
		prompt: "You inspect property offered as collateral. Review the inspection media and assess the condition, " +
			"damage and build quality of the property. Point out issues that could affect valuation or eligibility.",
	},
	{
		key:       domain.KeyValuation,
		agentName: domain.AgentValuation,
		stage:     domain.StageValuation,
		prompt: "You value property offered as collateral. Review the sale deed and supporting documents and estimate " +
			"the market value assuming 11% annual appreciation since the last sale. Summarize the valuation and point " +
			"out risks that affect the loan decision.",
	},
}

const contextFooter = "Please also consider the above context in your analysis and provide insights that might be " +
	"relevant for subsequent verification steps."

// stagePrompt appends prior findings and the shared context to a stage instruction.
func stagePrompt(base, customerID, previous string, shared domain.SharedContext) string {
	var b strings.Builder
	b.WriteString(base)
	fmt.Fprintf(&b, "\nCustomer ID: %s", customerID)

	if previous != "" {
		b.WriteString("\n\n--- PREVIOUS AGENT FINDINGS ---\n")
		b.WriteString(previous)
		b.WriteString("\n--- END PREVIOUS FINDINGS ---\n\n")
	}

	var info strings.Builder
	if shared.ApplicantName != "" {
		fmt.Fprintf(&info, "Applicant Name: %s\n", shared.ApplicantName)
	}
	if len(shared.RiskFactors) > 0 {
		fmt.Fprintf(&info, "Known Risk Factors: %s\n", strings.Join(shared.RiskFactors, ", "))
	}
	if len(shared.SupportingEvidence) > 0 {
		fmt.Fprintf(&info, "Supporting Evidence: %s\n", strings.Join(shared.SupportingEvidence, ", "))
	}
	if info.Len() > 0 {
		if previous == "" {
			b.WriteString("\n\n")
		}
		b.WriteString("--- SHARED CONTEXT ---\n")
		b.WriteString(info.String())
		b.WriteString("--- END SHARED CONTEXT ---\n\n")
	}

	if previous == "" && info.Len() == 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(contextFooter)
	return b.String()
}

// findingsEntry renders one stage result for the prompts of later stages.
func findingsEntry(key, summary string) string {
	return fmt.Sprintf("\n%s AGENT FINDINGS:\n%s\n%s\n", strings.ToUpper(key), summary, strings.Repeat("-", 50))
}

const (
	auditTypePrequalification = "prequalification_audit"
	auditTypeApplication      = "application_audit"
)

func prequalificationAuditPrompt(customerID string) string {
	return fmt.Sprintf("Create audit record for customer %s - Prequalification Check.\n"+
		"Audit Type: \"Prequalification Check\"\n"+
		"Audit Status: \"COMPLETED\"\n"+
		"Auditor Name: \"%s\"\n"+
		"Remarks: \"Prequalification process completed successfully. Customer meets basic eligibility criteria for loan application.\"\n"+
		"Follow-up Required: \"No\"", customerID, domain.AgentPrequalification)
}

func applicationAuditPrompt(customerID, applicationSummary string) string {
	return fmt.Sprintf("Create audit record for customer %s - Application Review.\n"+
		"Audit Type: \"Application Review\"\n"+
		"Audit Status: \"COMPLETED\"\n"+
		"Auditor Name: \"%s\"\n"+
		"Remarks: \"Loan application submitted successfully. All required documents and information collected. Application ready for review process.\"\n"+
		"Follow-up Required: \"Yes\"\n\n"+
		"Application Summary:\n%s", customerID, domain.AgentApplication, applicationSummary)
}

// submissionPhrase marks an application agent reply that completes the application.
const submissionPhrase = "application has been successfully submitted"

func isSubmission(agentName, response string) bool {
	return agentName == domain.AgentApplication && strings.Contains(strings.ToLower(response), submissionPhrase)
}

// apologyMessage is returned to the user when the selected agent did not answer.
const apologyMessage = "I'm sorry, I wasn't able to process your request right now. Please try again in a moment."
