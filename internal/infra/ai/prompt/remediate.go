package prompt

import "fmt"

// RemediateSystemPrompt provides directions and schema for the remediate step.
func RemediateSystemPrompt() string {
	return `You are a Rust programming expert specializing in secure code remediation.
Generate a safe alternative for the vulnerable Rust code.
Return your response as one valid JSON object only:
{
    "fixed_code": "Safe Rust code here",
    "explanation": "Detailed explanation of security improvements made",
    "compatibility_notes": "Any backward compatibility considerations"
}

Ensure the fixed code:
1. Eliminates the security vulnerability
2. Maintains functionality
3. Follows Rust best practices
4. Includes appropriate error handling`
}

// RemediateUserPrompt wraps the vulnerable code plus finding details.
func RemediateUserPrompt(code, description, cweID string) string {
	if description == "" {
		description = "Security vulnerability"
	}
	if cweID == "" {
		cweID = "Unknown CWE"
	}
	return fmt.Sprintf(`Generate a safe remediation for this vulnerable Rust code:

Vulnerable Code:
%s

Vulnerability: %s
CWE: %s

Provide the fixed code and explanation in the specified JSON format.`, code, description, cweID)
}
