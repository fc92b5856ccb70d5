package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	domai "github.com/rustgreen/backend/internal/domain/ai"
	domain "github.com/rustgreen/backend/internal/domain/analysis"
	"github.com/rustgreen/backend/internal/infra/ai/prompt"
)

// Pipeline drives the three-step vulnerability-analysis protocol:
// analyze -> remediate -> verify, strictly sequential, short-circuiting when
// detection finds nothing. Each step absorbs the failures it has a safe
// fallback for; only upstream errors (retries exhausted) propagate.
type Pipeline struct {
	client domai.Client
}

func NewPipeline(client domai.Client) *Pipeline {
	return &Pipeline{client: client}
}

// Run executes the full protocol over one piece of source code.
func (p *Pipeline) Run(ctx context.Context, code string) (*domain.PipelineResult, error) {
	finding, err := p.Analyze(ctx, code, "")
	if err != nil {
		return nil, err
	}

	res := &domain.PipelineResult{Finding: finding}
	switch finding.Outcome {
	case domain.OutcomeNone, domain.OutcomeDisabled:
		// nothing to remediate
		return res, nil
	case domain.OutcomeParseError:
		// detection could not be trusted; stop without remediation
		return res, nil
	}

	rem, err := p.Remediate(ctx, code, finding)
	if err != nil {
		return nil, err
	}
	res.Remediation = &rem

	ver, err := p.Verify(ctx, code, rem.FixedCode, finding)
	if err != nil {
		return nil, err
	}
	res.Verification = &ver

	return res, nil
}

// wire contracts

type findingDTO struct {
	VulnerabilityType        string  `json:"vulnerability_type"`
	CWEID                    string  `json:"cwe_id"`
	OWASPCategory            string  `json:"owasp_category"`
	RiskLevel                string  `json:"risk_level"`
	ConfidenceScore          float64 `json:"confidence_score"`
	VulnerabilityDescription string  `json:"vulnerability_description"`
	ExploitationScenario     string  `json:"exploitation_scenario"`
	LineNumbers              []int   `json:"line_numbers"`
}

type remediationDTO struct {
	FixedCode          string `json:"fixed_code"`
	Explanation        string `json:"explanation"`
	CompatibilityNotes string `json:"compatibility_notes"`
}

type verificationDTO struct {
	VerificationPassed      bool     `json:"verification_passed"`
	VerificationExplanation string   `json:"verification_explanation"`
	NewIssues               []string `json:"new_issues"`
}

func disabledProvenance() domain.Provenance {
	return domain.Provenance{Disabled: true, Reason: "no_api_key"}
}

func usageProvenance(u domai.Usage, hasResponse bool) domain.Provenance {
	return domain.Provenance{
		TokensUsed:  u.TotalTokens,
		Model:       u.Model,
		HasResponse: hasResponse,
	}
}

// Analyze runs the detect step. A degraded (no credential) adapter yields the
// deterministic no-finding sentinel flagged Disabled; a malformed response
// yields an "Analysis Error" finding with risk medium and confidence 0.
func (p *Pipeline) Analyze(ctx context.Context, code, extraContext string) (domain.Finding, error) {
	if !p.client.Available() {
		log.Printf("pipeline: llm client unavailable, returning disabled analysis")
		return domain.Finding{
			Outcome:         domain.OutcomeDisabled,
			Type:            domain.NoFindingType,
			ConfidenceScore: 1.0,
			Description:     "LLM analysis disabled (no API key configured)",
			Metadata:        disabledProvenance(),
		}, nil
	}

	raw, usage, err := p.client.Call(ctx, prompt.AnalyzeSystemPrompt(), prompt.AnalyzeUserPrompt(code, extraContext))
	if errors.Is(err, domai.ErrUnavailable) {
		return domain.Finding{
			Outcome:         domain.OutcomeDisabled,
			Type:            domain.NoFindingType,
			ConfidenceScore: 1.0,
			Description:     "LLM analysis disabled (no API key configured)",
			Metadata:        disabledProvenance(),
		}, nil
	}
	if err != nil {
		return domain.Finding{}, fmt.Errorf("analyze step: %w", err)
	}

	var dto findingDTO
	if jerr := json.Unmarshal([]byte(raw), &dto); jerr != nil {
		log.Printf("pipeline: failed to parse analysis response: %v", jerr)
		return domain.Finding{
			Outcome:         domain.OutcomeParseError,
			Type:            "Analysis Error",
			RiskLevel:       domain.RiskMedium,
			ConfidenceScore: 0.0,
			Description:     fmt.Sprintf("failed to parse LLM analysis: %v", jerr),
			Metadata:        usageProvenance(usage, raw != ""),
		}, nil
	}

	f := domain.Finding{
		Outcome:              domain.OutcomeFound,
		Type:                 dto.VulnerabilityType,
		CWEID:                dto.CWEID,
		OWASPCategory:        dto.OWASPCategory,
		RiskLevel:            domain.RiskLevel(strings.ToLower(dto.RiskLevel)),
		ConfidenceScore:      dto.ConfidenceScore,
		Description:          dto.VulnerabilityDescription,
		ExploitationScenario: dto.ExploitationScenario,
		Metadata:             usageProvenance(usage, raw != ""),
	}
	if len(dto.LineNumbers) >= 1 {
		f.LineStart = dto.LineNumbers[0]
	}
	if len(dto.LineNumbers) >= 2 {
		f.LineEnd = dto.LineNumbers[1]
	}
	if dto.VulnerabilityType == "" || dto.VulnerabilityType == domain.NoFindingType {
		f.Outcome = domain.OutcomeNone
		f.Type = domain.NoFindingType
	}
	return f, nil
}

// Remediate runs the remediate step. Every fallback keeps the original code as
// the fixed code so downstream consumers never see absent or malformed output.
func (p *Pipeline) Remediate(ctx context.Context, code string, f domain.Finding) (domain.Remediation, error) {
	if !p.client.Available() {
		return domain.Remediation{
			FixedCode:          code,
			Explanation:        "LLM remediation disabled (no API key configured)",
			CompatibilityNotes: "no changes made",
			Disabled:           true,
			Metadata:           disabledProvenance(),
		}, nil
	}

	raw, usage, err := p.client.Call(ctx, prompt.RemediateSystemPrompt(), prompt.RemediateUserPrompt(code, f.Description, f.CWEID))
	if errors.Is(err, domai.ErrUnavailable) {
		return domain.Remediation{
			FixedCode:          code,
			Explanation:        "LLM remediation disabled (no API key configured)",
			CompatibilityNotes: "no changes made",
			Disabled:           true,
			Metadata:           disabledProvenance(),
		}, nil
	}
	if err != nil {
		return domain.Remediation{}, fmt.Errorf("remediate step: %w", err)
	}

	var dto remediationDTO
	if jerr := json.Unmarshal([]byte(raw), &dto); jerr != nil {
		log.Printf("pipeline: failed to parse remediation response: %v", jerr)
		return domain.Remediation{
			FixedCode:          code,
			Explanation:        fmt.Sprintf("failed to generate remediation: %v", jerr),
			CompatibilityNotes: "remediation generation failed",
			Metadata:           usageProvenance(usage, raw != ""),
		}, nil
	}

	return domain.Remediation{
		FixedCode:          dto.FixedCode,
		Explanation:        dto.Explanation,
		CompatibilityNotes: dto.CompatibilityNotes,
		Metadata:           usageProvenance(usage, raw != ""),
	}, nil
}

// Verify runs the verify step. Degraded mode reports a pass flagged Disabled
// so it is never mistaken for a genuine verification; a malformed response
// reports a failed verification.
func (p *Pipeline) Verify(ctx context.Context, original, fixed string, f domain.Finding) (domain.Verification, error) {
	if !p.client.Available() {
		return domain.Verification{
			Passed:      true,
			Explanation: "LLM verification disabled (no API key configured). Assuming remediation is valid.",
			Disabled:    true,
			Metadata:    disabledProvenance(),
		}, nil
	}

	raw, usage, err := p.client.Call(ctx, prompt.VerifySystemPrompt(), prompt.VerifyUserPrompt(original, fixed, f.Description, f.CWEID))
	if errors.Is(err, domai.ErrUnavailable) {
		return domain.Verification{
			Passed:      true,
			Explanation: "LLM verification disabled (no API key configured). Assuming remediation is valid.",
			Disabled:    true,
			Metadata:    disabledProvenance(),
		}, nil
	}
	if err != nil {
		return domain.Verification{}, fmt.Errorf("verify step: %w", err)
	}

	var dto verificationDTO
	if jerr := json.Unmarshal([]byte(raw), &dto); jerr != nil {
		log.Printf("pipeline: failed to parse verification response: %v", jerr)
		return domain.Verification{
			Passed:      false,
			Explanation: fmt.Sprintf("verification failed: %v", jerr),
			NewIssues:   []string{"verification process error"},
			Metadata:    usageProvenance(usage, raw != ""),
		}, nil
	}

	return domain.Verification{
		Passed:      dto.VerificationPassed,
		Explanation: dto.VerificationExplanation,
		NewIssues:   dto.NewIssues,
		Metadata:    usageProvenance(usage, raw != ""),
	}, nil
}
