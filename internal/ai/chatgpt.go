package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/tutorbot/pkg/models"
)

// Default endpoints for OpenAI-compatible chat completion APIs
const (
	GroqURL   = "https://api.groq.com/openai/v1/chat/completions"
	OpenAIURL = "https://api.openai.com/v1/chat/completions"
)

// ChatGPT is a client for OpenAI-compatible chat completion APIs (OpenAI, Groq)
type ChatGPT struct {
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewChatGPT creates a chat completion client.
// The HTTP client has no timeout of its own: callers bound requests with the context.
func NewChatGPT(apiKey, apiURL, model string) *ChatGPT {
	if apiURL == "" {
		apiURL = GroqURL
	}
	return &ChatGPT{
		apiKey:      apiKey,
		apiURL:      apiURL,
		model:       model,
		maxTokens:   600,
		temperature: 0.2,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Message represents a message in the chat conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the chat completion API
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse represents a response from the chat completion API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Correct asks the model to correct the learner's text
func (c *ChatGPT) Correct(ctx context.Context, req Request) (*models.CorrectionResult, error) {
	request := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: SystemPrompt(req.Level)},
			{Role: "user", Content: UserPrompt(req.Text)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	content, err := c.complete(ctx, request)
	if err != nil {
		return nil, err
	}
	return parseCorrection(req.Text, content)
}

func (c *ChatGPT) complete(ctx context.Context, request ChatRequest) (string, error) {
	requestData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", ErrInvalidRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(requestData))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrInvalidRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send request: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", ErrNetwork, err)
	}

	var response ChatResponse
	decodeErr := json.Unmarshal(body, &response)

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && response.Error != nil {
			msg = response.Error.Message
		}
		return "", fmt.Errorf("%w: status %d: %s", classifyStatus(resp.StatusCode), resp.StatusCode, msg)
	}

	if decodeErr != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrMalformedResponse, decodeErr)
	}
	if response.Error != nil {
		return "", fmt.Errorf("%w: API error: %s", ErrInvalidRequest, response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices returned", ErrMalformedResponse)
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// classifyStatus maps an HTTP status to a provider failure class
func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusRequestTimeout || code >= 500:
		return ErrNetwork
	default:
		return ErrInvalidRequest
	}
}
