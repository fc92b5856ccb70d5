package prompt

import "fmt"

// VerifySystemPrompt provides directions and schema for the verify step.
func VerifySystemPrompt() string {
	return `You are a security verification expert.
Verify that the fixed code successfully addresses the original vulnerability
and doesn't introduce new security issues.

Return your response as one valid JSON object only:
{
    "verification_passed": true|false,
    "verification_explanation": "Detailed explanation of verification results",
    "new_issues": ["List any new security issues found", "..."]
}

Be thorough in your analysis.`
}

// VerifyUserPrompt wraps the original and fixed code plus finding details.
func VerifyUserPrompt(original, fixed, description, cweID string) string {
	if description == "" {
		description = "Security vulnerability"
	}
	if cweID == "" {
		cweID = "Unknown"
	}
	return fmt.Sprintf(`Verify this remediation:

Original Vulnerable Code:
%s

Fixed Code:
%s

Original Vulnerability: %s
CWE: %s

Verify that:
1. The vulnerability is fixed in the fixed code
2. No new security issues are introduced
3. The functionality is preserved

Provide verification results in the specified JSON format.`, original, fixed, description, cweID)
}
