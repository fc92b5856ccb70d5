package prompt

import "fmt"

// AnalyzeSystemPrompt provides strict directions and schema for the detect step.
func AnalyzeSystemPrompt() string {
	return `You are a security expert specializing in Rust code analysis.
Analyze the provided Rust code for security vulnerabilities.
Return your analysis as one valid JSON object only (no markdown, no commentary) with the following structure:
{
    "vulnerability_type": "Description of vulnerability",
    "cwe_id": "CWE-XXX",
    "owasp_category": "A1: Injection",
    "risk_level": "low|medium|high|critical",
    "confidence_score": 0.95,
    "vulnerability_description": "Detailed explanation of the vulnerability",
    "exploitation_scenario": "How attackers could exploit this vulnerability",
    "line_numbers": [start_line, end_line]
}

If no vulnerability is found, return:
{
    "vulnerability_type": "None",
    "cwe_id": null,
    "owasp_category": null,
    "risk_level": null,
    "confidence_score": 1.0,
    "vulnerability_description": "No security vulnerabilities detected",
    "exploitation_scenario": null,
    "line_numbers": []
}

Be specific and technical in your analysis.`
}

// AnalyzeUserPrompt wraps the code (and optional extra context) for the detect step.
func AnalyzeUserPrompt(code, context string) string {
	extra := ""
	if context != "" {
		extra = fmt.Sprintf("\n\nAdditional context: %s", context)
	}
	return fmt.Sprintf("Analyze this Rust code for security vulnerabilities:\n\n%s%s\n\nProvide your analysis in the specified JSON format.", code, extra)
}
