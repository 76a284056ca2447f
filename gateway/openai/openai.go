// Package openai implements the completion gateway against an
// OpenAI-compatible chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

// systemPrompt is the fixed instruction sent with every letter.
const systemPrompt = `You are a teacher helping freelancers enhance their Expression of Interest (EoI) letters. For each of the following sections, provide concise feedback using simple language. Briefly explain any issues and include one encouraging note per section. Do not repeat the section names. The sections are:

Professional Tone
Client Needs and Proposed Solution
Understanding of the Business Impact
After providing feedback, present the updated EoI letter without any introductory text. If certain necessary information is unclear or missing, indicate this within angle brackets <> in the letter. The EoI should be a maximum of 300 words.

Output your response in the following JSON format:
{
  "feedback": {
    "professional_tone": "Your feedback here.",
    "client_needs_and_proposed_solution": "Your feedback here.",
    "understanding_of_business_impact": "Your feedback here."
  },
  "updated_letter": "Your updated letter here."
}
Mark changes in the new letter using <strong> tags around modified text.`

// Config holds gateway configuration
type Config struct {
	// BaseURL is the API root (default: https://api.openai.com/v1)
	BaseURL string

	// Model is the completion model identifier (default: gpt-4o-mini)
	Model string

	// Timeout is the budget the completion call is raced against
	// (default: 15s). When the timer wins the in-flight call is
	// abandoned and its eventual result discarded.
	Timeout time.Duration

	// SystemPrompt overrides the fixed letter-feedback instruction.
	SystemPrompt string

	// Temperature and MaxTokens are fixed request parameters
	// (defaults: 0.7 and 1000).
	Temperature float64
	MaxTokens   int

	// HTTPClient overrides the client used for upstream calls.
	HTTPClient *http.Client
}

// DefaultConfig returns a Config with the parameters the service ships with.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Timeout:     15 * time.Second,
		Temperature: 0.7,
		MaxTokens:   1000,
	}
}

// Client invokes the external language-model service with a bounded time
// budget and classifies failures with the lettergate sentinel errors.
type Client struct {
	apiKey     string
	config     Config
	httpClient *http.Client
}

// New creates a new gateway client.
func New(apiKey string, config Config) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}

	// Set defaults
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = systemPrompt
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1000
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		apiKey:     apiKey,
		config:     config,
		httpClient: httpClient,
	}, nil
}

// apiRequest is the OpenAI chat completion request format.
type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the OpenAI chat completion response format.
type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int        `json:"index"`
		Message      apiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
}

// Complete satisfies lettergate.CompletionFunc. It races the upstream call
// against the configured budget; whichever settles first wins. A timer win
// yields lettergate.ErrTimeout and the in-flight call is left to finish in
// the background, its result dropped.
func (c *Client) Complete(ctx context.Context, text string) (string, error) {
	type result struct {
		content string
		err     error
	}

	// Buffered so an abandoned call can still deliver and be collected.
	resultCh := make(chan result, 1)
	go func() {
		content, err := c.complete(ctx, text)
		resultCh <- result{content: content, err: err}
	}()

	timer := time.NewTimer(c.config.Timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		return res.content, res.err
	case <-timer.C:
		return "", lettergate.ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) complete(ctx context.Context, text string) (string, error) {
	body := apiRequest{
		Model: c.config.Model,
		Messages: []apiMessage{
			{Role: "system", Content: c.config.SystemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", lettergate.ErrUpstream, err)
	}

	url := c.config.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", lettergate.ErrUpstream, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", lettergate.ErrUpstream, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", upstreamError(httpResp)
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", lettergate.ErrMalformedResponse, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", lettergate.ErrMalformedResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// upstreamError surfaces the upstream's own message when it is available.
func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
		return fmt.Errorf("%w: %s", lettergate.ErrUpstream, apiErr.Error.Message)
	}

	return fmt.Errorf("%w: %s", lettergate.ErrUpstream, resp.Status)
}
