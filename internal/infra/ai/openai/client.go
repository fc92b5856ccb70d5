package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"

	domai "github.com/rustgreen/backend/internal/domain/ai"
)

// Config fixes the adapter's behavior for its lifetime; retry bounds are
// constructor arguments, not ambient environment reads.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // OpenAI-compatible endpoint, e.g. Deepseek
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
	MaxRetries  int // total attempts
	RetryDelay  time.Duration
	TrackTokens bool
}

const (
	defaultModel      = "deepseek-chat"
	defaultTimeout    = 30 * time.Second
	defaultMaxTokens  = 4000
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

type Client struct {
	api *openai.Client
	cfg Config
}

// NewClient builds the adapter. With an empty API key the client stays in
// degraded mode: Available() is false and every Call returns ErrUnavailable.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	if cfg.APIKey == "" {
		log.Printf("ai: no api key configured, llm calls disabled")
		return &Client{cfg: cfg}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{api: openai.NewClientWithConfig(oc), cfg: cfg}
}

func (c *Client) Available() bool { return c.api != nil }

// Call requests a JSON-object completion, retrying transient failures with
// exponential backoff (RetryDelay * 2^attempt). It does not parse the response.
func (c *Client) Call(ctx context.Context, systemPrompt, userPrompt string) (string, domai.Usage, error) {
	if c.api == nil {
		return "", domai.Usage{}, domai.ErrUnavailable
	}

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", domai.Usage{}, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			if !isTransient(err) {
				log.Printf("ai: permanent error from provider: %v", err)
				break
			}
			log.Printf("ai: transient error (attempt %d/%d): %v", attempt+1, c.cfg.MaxRetries, err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("empty choices in completion response")
			continue
		}

		var usage domai.Usage
		if c.cfg.TrackTokens {
			usage = domai.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
				Model:            c.cfg.Model,
			}
			log.Printf("ai: completion done, tokens used: %d", resp.Usage.TotalTokens)
		}
		return resp.Choices[0].Message.Content, usage, nil
	}

	return "", domai.Usage{}, fmt.Errorf("%w: %v", domai.ErrUpstream, lastErr)
}

// isTransient reports whether the error is worth retrying: rate limits, 5xx
// and transport-level failures. Auth and bad-request errors are not.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	// network errors, timeouts
	return true
}
