package notify

import "strings"

// Template names for each customer communication stage.
const (
	TemplateApplication           = "application"
	TemplateDocumentSubmission    = "document_submission"
	TemplateVerification          = "verification"
	TemplateDocumentApproval      = "document_approval"
	TemplateApproval              = "approval"
	TemplateLoanApplicationNumber = "loan_application_number"
)

var subjects = map[string]string{
	TemplateApplication:           "Your Home Loan Application Has Been Submitted - Welcome to Global Trust Bank",
	TemplateDocumentSubmission:    "Next Step: Document Upload Required - Global Trust Bank Home Loan",
	TemplateVerification:          "Thank You for Submitting Your Documents - Verification in Progress",
	TemplateDocumentApproval:      "Your Documents Have Been Successfully Verified",
	TemplateApproval:              "Great News - Your Home Loan is Confirmed!",
	TemplateLoanApplicationNumber: "Your Loan Application Has Been Successfully Submitted - Global Trust Bank",
}

const defaultSubject = "Update from Global Trust Bank"

var stageNumbers = []string{
	TemplateApplication,
	TemplateDocumentSubmission,
	TemplateVerification,
	TemplateDocumentApproval,
	TemplateApproval,
	TemplateLoanApplicationNumber,
}

// TemplateFor maps "3", "stage 3", "verification" or "verification stage"
// to a template name. Unknown stages map to themselves.
func TemplateFor(stage string) string {
	key := strings.ToLower(strings.TrimSpace(stage))
	key = strings.TrimPrefix(key, "stage ")
	key = strings.TrimSuffix(key, " stage")
	if len(key) == 1 && key[0] >= '1' && key[0] <= '6' {
		return stageNumbers[key[0]-'1']
	}
	name := strings.ReplaceAll(key, " ", "_")
	if _, ok := subjects[name]; ok {
		return name
	}
	return key
}

// SubjectFor returns the email subject of a template.
func SubjectFor(template string) string {
	if s, ok := subjects[template]; ok {
		return s
	}
	return defaultSubject
}
