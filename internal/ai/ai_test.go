package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tutorbot/pkg/models"
)

const goodAnswer = `Here you go:
{"corrected": "I went to school.", "errors": [{"start": 2, "end": 6, "category": "Grammar", "explanation": "past tense of go"}], "confidence": 0.9}`

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error": {"message": "nope"}}`))
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestChatGPT_Correct(t *testing.T) {
	srv := chatServer(t, http.StatusOK, goodAnswer)
	defer srv.Close()

	c := NewChatGPT("key", srv.URL, "test-model")
	res, err := c.Correct(context.Background(), Request{Text: "I goed to school.", Level: models.LevelBasic})
	require.NoError(t, err)

	assert.Equal(t, "I went to school.", res.Corrected)
	assert.Equal(t, 0.9, res.Confidence)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "grammar", res.Errors[0].Category)
}

func TestChatGPT_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrNetwork},
		{http.StatusBadGateway, ErrNetwork},
		{http.StatusBadRequest, ErrInvalidRequest},
		{http.StatusUnauthorized, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := chatServer(t, tt.status, "")
			defer srv.Close()

			_, err := NewChatGPT("key", srv.URL, "test-model").Correct(context.Background(), Request{Text: "hi"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestChatGPT_MalformedContent(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "I cannot answer in JSON today")
	defer srv.Close()

	_, err := NewChatGPT("key", srv.URL, "test-model").Correct(context.Background(), Request{Text: "hi"})
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestChatGPT_NetworkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewChatGPT("key", srv.URL, "m").Correct(ctx, Request{Text: "hi"})
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestParseCorrection(t *testing.T) {
	original := "She go home"

	res, err := parseCorrection(original, `{"corrected": "She goes home", "errors": [
		{"start": 4, "end": 6, "category": "grammar"},
		{"start": 4, "end": 99, "category": "grammar"},
		{"start": 5, "end": 2, "category": "grammar"}
	], "confidence": 7}`)
	require.NoError(t, err)
	assert.Len(t, res.Errors, 1)
	assert.Equal(t, 1.0, res.Confidence)

	res, err = parseCorrection(original, `{"corrected": "She goes home", "errors": []}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Confidence)

	_, err = parseCorrection(original, `{"corrected": "  "}`)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestSystemPrompt_PerLevel(t *testing.T) {
	assert.Contains(t, SystemPrompt(models.LevelBasic), "beginner")
	assert.Contains(t, SystemPrompt(models.LevelAdvanced), "advanced")
	assert.True(t, strings.Contains(SystemPrompt(models.Level(42)), "beginner"))
}

func anthropicServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "test-model",
			"content":       []map[string]any{{"type": "text", "text": text}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]int{"input_tokens": 10, "output_tokens": 20},
		})
	}))
}

func TestAnthropic_Correct(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, goodAnswer)
	defer srv.Close()

	a := NewAnthropic("key", "test-model", srv.URL)
	res, err := a.Correct(context.Background(), Request{Text: "I goed to school.", Level: models.LevelIntermediate})
	require.NoError(t, err)
	assert.Equal(t, "I went to school.", res.Corrected)
	assert.Len(t, res.Errors, 1)
}

func TestAnthropic_RateLimited(t *testing.T) {
	srv := anthropicServer(t, http.StatusTooManyRequests, "")
	defer srv.Close()

	_, err := NewAnthropic("key", "test-model", srv.URL).Correct(context.Background(), Request{Text: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited), "got %v", err)
}
