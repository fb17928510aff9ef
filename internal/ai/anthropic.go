package ai

import (
	"context"
	"errors"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/example/tutorbot/pkg/models"
)

// Anthropic corrects learner text with the Anthropic Messages API
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates a client. SDK retries are disabled: the correction
// gateway owns the retry policy.
func NewAnthropic(apiKey, model, baseURL string) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 1024,
	}
}

// Correct asks the model to correct the learner's text
func (a *Anthropic) Correct(ctx context.Context, req Request) (*models.CorrectionResult, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: SystemPrompt(req.Level)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(UserPrompt(req.Text))),
		},
	})
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return parseCorrection(req.Text, block.Text)
		}
	}
	return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %w", classifyStatus(apiErr.StatusCode), apiErr.StatusCode, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
