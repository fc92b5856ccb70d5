package analysis

import "time"

// CodeBlockID identifier type
type CodeBlockID string

// AnalysisID identifier type
type AnalysisID string

// Classification enum for a code block implicated in a finding.
type Classification string

const (
	Replaceable              Classification = "replaceable"
	NonReplaceable           Classification = "non_replaceable"
	ConditionallyReplaceable Classification = "conditionally_replaceable"
)

// RiskLevel enum
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// CodeBlock is an extracted span of source implicated in a finding. Lines are
// 1-based and inclusive. Immutable after creation.
type CodeBlock struct {
	ID        CodeBlockID `json:"id"`
	RawCode   string      `json:"raw_code"`
	FilePath  string      `json:"file_path,omitempty"`
	LineStart int         `json:"line_start"`
	LineEnd   int         `json:"line_end"`
	CreatedAt time.Time   `json:"created_at"`
}

// Analysis is one persisted vulnerability finding tied to exactly one CodeBlock
// and one Session. Immutable after creation.
type Analysis struct {
	ID          AnalysisID  `json:"id"`
	SessionID   string      `json:"session_id"`
	CodeBlockID CodeBlockID `json:"code_block_id"`

	Classification       Classification `json:"classification"`
	SuggestedReplacement string         `json:"suggested_replacement,omitempty"`

	CWEID           string    `json:"cwe_id,omitempty"`
	OWASPCategory   string    `json:"owasp_category,omitempty"`
	RiskLevel       RiskLevel `json:"risk_level,omitempty"`
	ConfidenceScore float64   `json:"confidence_score"`

	Description          string `json:"description,omitempty"`
	ExploitationScenario string `json:"exploitation_scenario,omitempty"`
	RemediationNotes     string `json:"remediation_notes,omitempty"`
	CompatibilityNotes   string `json:"compatibility_notes,omitempty"`

	VerificationPassed *bool    `json:"verification_passed,omitempty"`
	VerificationNotes  string   `json:"verification_notes,omitempty"`
	NewIssues          []string `json:"new_issues,omitempty"`

	// LLMMetadata is an opaque JSON blob with raw model usage/token data.
	LLMMetadata string `json:"llm_metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
