package router

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rules is the keyword and pattern set the router matches against.
type Rules struct {
	PrequalDataPatterns     []string `yaml:"prequal_data_patterns"`
	ApplicationFormPatterns []string `yaml:"application_form_patterns"`
	PrequalKeywords         []string `yaml:"prequal_keywords"`
	ApplicationKeywords     []string `yaml:"application_keywords"`
	CustomerIDPattern       string   `yaml:"customer_id_pattern"`
	ProceedPhrases          []string `yaml:"proceed_phrases"`
}

// DefaultRules returns the built-in routing vocabulary.
func DefaultRules() Rules {
	return Rules{
		PrequalDataPatterns: []string{
			`(?s)full name:.*age:.*employment.*income`,
			`(?s)name:.*age:.*monthly income`,
			`credit score.*loan type`,
			`employment type.*monthly income`,
			`salaried.*monthly income.*₹`,
			`(?s)age:.*employment.*income.*credit.*loan`,
		},
		ApplicationFormPatterns: []string{
			`father'?s?\s+name:`,
			`date of birth:`,
			`dob:`,
			`address:`,
			`pincode:`,
			`nationality:`,
			`marital status:`,
			`gender:`,
			`alternate mobile:`,
			`city:`,
			`state:`,
			`\d+\.\s*[a-z]`,
		},
		PrequalKeywords: []string{
			"eligibility", "eligible", "prequalify", "qualify", "can i get",
			"check eligibility", "check my eligibility",
		},
		ApplicationKeywords: []string{
			"apply", "application", "start application", "apply for loan", "loan application",
			"status", "audit", "progress", "loan status", "show status", "check status",
			"application status", "track", "tracking", "customer",
			"check my status", "show my status", "check my loan", "show my loan",
		},
		CustomerIDPattern: `cust\d+`,
		ProceedPhrases: []string{
			"proceed with application", "proceed with the application",
			"start application", "start the application", "apply now", "begin application",
			"continue with application", "go ahead with application", "move to application",
			"yes proceed", "yes i want to proceed", "yes let's proceed", "yes please proceed",
			"proceed", "let's proceed", "continue",
		},
	}
}

// LoadRules reads rules from a YAML file. Missing sections keep the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read routing rules: %w", err)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return rules, fmt.Errorf("failed to parse routing rules: %w", err)
	}

	if len(override.PrequalDataPatterns) > 0 {
		rules.PrequalDataPatterns = override.PrequalDataPatterns
	}
	if len(override.ApplicationFormPatterns) > 0 {
		rules.ApplicationFormPatterns = override.ApplicationFormPatterns
	}
	if len(override.PrequalKeywords) > 0 {
		rules.PrequalKeywords = override.PrequalKeywords
	}
	if len(override.ApplicationKeywords) > 0 {
		rules.ApplicationKeywords = override.ApplicationKeywords
	}
	if override.CustomerIDPattern != "" {
		rules.CustomerIDPattern = override.CustomerIDPattern
	}
	if len(override.ProceedPhrases) > 0 {
		rules.ProceedPhrases = override.ProceedPhrases
	}
	return rules, nil
}

type compiledRules struct {
	prequalData     []*regexp.Regexp
	applicationForm []*regexp.Regexp
	prequalWords    []string
	applyWords      []string
	customerID      *regexp.Regexp
	proceed         []string
}

func compile(r Rules) (*compiledRules, error) {
	c := &compiledRules{
		prequalWords: r.PrequalKeywords,
		applyWords:   r.ApplicationKeywords,
		proceed:      r.ProceedPhrases,
	}

	var err error
	if c.prequalData, err = compileAll(r.PrequalDataPatterns); err != nil {
		return nil, err
	}
	if c.applicationForm, err = compileAll(r.ApplicationFormPatterns); err != nil {
		return nil, err
	}
	if r.CustomerIDPattern != "" {
		if c.customerID, err = regexp.Compile(`(?i)` + r.CustomerIDPattern); err != nil {
			return nil, fmt.Errorf("invalid customer id pattern %q: %w", r.CustomerIDPattern, err)
		}
	}
	return c, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid routing pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
