package ai

import "context"

// Usage carries opaque provenance data about one completion call. It is stored
// alongside analysis rows for auditing, never interpreted by the adapter.
type Usage struct {
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
	Model            string `json:"model,omitempty"`
}

// Client is the chat-completion port. Call returns the raw model text; parsing
// and validating the JSON payload is the caller's job.
type Client interface {
	// Call sends one system+user prompt pair and returns the raw response text.
	// Returns ErrUnavailable when no credential is configured and ErrUpstream
	// (wrapping the cause) when retries are exhausted.
	Call(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error)

	// Available reports whether the client holds a usable credential.
	Available() bool
}
