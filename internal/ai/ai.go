// Package ai talks to the language-model services that correct learner text.
package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/example/tutorbot/pkg/models"
)

// Failure classes reported by providers. The correction gateway uses them
// to decide between retrying and failing fast.
var (
	ErrNetwork           = errors.New("network error")
	ErrRateLimited       = errors.New("rate limited")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrMalformedResponse = errors.New("malformed response")
)

// Request is one correction request
type Request struct {
	Text  string
	Level models.Level
}

// correctionPayload is the JSON the model is asked to produce
type correctionPayload struct {
	Corrected  string             `json:"corrected"`
	Errors     []models.ErrorSpan `json:"errors"`
	Confidence *float64           `json:"confidence"`
}

// parseCorrection extracts and normalizes the model's JSON answer.
// Spans outside the original text are dropped, confidence is clamped to 0-1.
func parseCorrection(original, content string) (*models.CorrectionResult, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var payload correctionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(payload.Corrected) == "" {
		return nil, fmt.Errorf("%w: corrected text is empty", ErrMalformedResponse)
	}

	result := &models.CorrectionResult{
		Corrected:  strings.TrimSpace(payload.Corrected),
		Confidence: 1,
		Errors:     make([]models.ErrorSpan, 0, len(payload.Errors)),
	}
	if payload.Confidence != nil {
		result.Confidence = clamp01(*payload.Confidence)
	}

	for _, span := range payload.Errors {
		if span.Start < 0 || span.End > len(original) || span.Start > span.End {
			continue
		}
		if !utf8.ValidString(original[span.Start:span.End]) {
			continue
		}
		span.Category = normalizeCategory(span.Category)
		result.Errors = append(result.Errors, span)
	}

	return result, nil
}

// extractJSON finds the outermost JSON object in a string
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}

func normalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	switch c {
	case "grammar", "spelling", "vocabulary", "punctuation", "style":
		return c
	default:
		return "other"
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
