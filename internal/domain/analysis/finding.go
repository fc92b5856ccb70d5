package analysis

// Outcome tags the detect step's result so callers never have to overload a
// sentinel string to tell "no vulnerability" from "analysis disabled" from
// "unparseable response".
type Outcome string

const (
	OutcomeFound      Outcome = "found"
	OutcomeNone       Outcome = "none"
	OutcomeDisabled   Outcome = "disabled"
	OutcomeParseError Outcome = "parse_error"
)

// NoFindingType is the detect contract's sentinel type label for a clean result.
const NoFindingType = "None"

// Provenance records where a protocol step's result came from. Disabled marks a
// degraded (no credential) fallback so it is never mistaken for a genuine model
// answer.
type Provenance struct {
	Disabled    bool   `json:"disabled,omitempty"`
	Reason      string `json:"reason,omitempty"`
	TokensUsed  int    `json:"tokens_used,omitempty"`
	Model       string `json:"model,omitempty"`
	HasResponse bool   `json:"has_response,omitempty"`
}

// Finding is the detect step's structured output.
type Finding struct {
	Outcome              Outcome
	Type                 string
	CWEID                string
	OWASPCategory        string
	RiskLevel            RiskLevel
	ConfidenceScore      float64
	Description          string
	ExploitationScenario string
	LineStart            int
	LineEnd              int
	Metadata             Provenance
}

// Remediation is the remediate step's output. FixedCode is never empty on a
// degraded or parse-failure fallback; it falls back to the original code.
type Remediation struct {
	FixedCode          string
	Explanation        string
	CompatibilityNotes string
	Disabled           bool
	Metadata           Provenance
}

// Verification is the verify step's output. A degraded fallback reports
// Passed=true with Disabled set; a parse failure reports Passed=false.
type Verification struct {
	Passed      bool
	Explanation string
	NewIssues   []string
	Disabled    bool
	Metadata    Provenance
}

// PipelineResult aggregates the three steps. Remediation and Verification are
// nil when the pipeline short-circuited after detection.
type PipelineResult struct {
	Finding      Finding
	Remediation  *Remediation
	Verification *Verification
}
