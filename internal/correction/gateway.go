// Package correction wraps the external correction service with a bounded
// timeout and a retry policy, and normalizes every failure into one error type.
package correction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/example/tutorbot/internal/ai"
	"github.com/example/tutorbot/pkg/models"
)

// ErrCorrectionFailed is the sentinel behind every gateway failure
var ErrCorrectionFailed = errors.New("correction failed")

// Reason codes carried by *Error
const (
	ReasonNetwork           = "network"
	ReasonTimeout           = "timeout"
	ReasonRateLimited       = "rate_limited"
	ReasonInvalidRequest    = "invalid_request"
	ReasonMalformedResponse = "malformed_response"
	ReasonEmptyInput        = "empty_input"
	ReasonCanceled          = "canceled"
)

// Error reports why a correction could not be obtained
type Error struct {
	Reason   string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("correction failed (%s) after %d attempt(s): %v", e.Reason, e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrCorrectionFailed, e.Err}
}

// Provider is the external correction service
type Provider interface {
	Correct(ctx context.Context, req ai.Request) (*models.CorrectionResult, error)
}

// Config controls timeouts and retries
type Config struct {
	// Timeout bounds each attempt
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// BaseDelay is the first backoff delay; each retry doubles it
	BaseDelay time.Duration
}

// DefaultConfig returns the production retry policy
func DefaultConfig() Config {
	return Config{
		Timeout:    15 * time.Second,
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
	}
}

// MaxDuration is the longest a Correct call can take when every attempt times out
func (c Config) MaxDuration() time.Duration {
	total := time.Duration(c.MaxRetries+1) * c.Timeout
	for i := 0; i < c.MaxRetries; i++ {
		total += c.BaseDelay << i
	}
	return total
}

// Gateway calls the provider with a per-attempt timeout, retrying only
// transient failures.
type Gateway struct {
	provider Provider
	config   Config
	log      *slog.Logger
}

// NewGateway creates a gateway
func NewGateway(provider Provider, config Config, log *slog.Logger) *Gateway {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultConfig().BaseDelay
	}
	return &Gateway{provider: provider, config: config, log: log}
}

// Correct returns the corrected form of text for a learner at level.
// Failures are always *Error wrapping ErrCorrectionFailed.
func (g *Gateway) Correct(ctx context.Context, text string, level models.Level) (*models.CorrectionResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{Reason: ReasonEmptyInput, Err: ai.ErrInvalidRequest}
	}

	var (
		result   *models.CorrectionResult
		attempts int
	)

	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()

		res, err := g.provider.Correct(attemptCtx, ai.Request{Text: text, Level: level})
		if err == nil {
			result = res
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		g.log.Warn("correction attempt failed, retrying",
			slog.Int("attempt", attempts),
			slog.String("reason", reason(ctx, err)),
			slog.Duration("delay", delay),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(g.newBackOff(), ctx), notify); err != nil {
		return nil, &Error{Reason: reason(ctx, err), Attempts: attempts, Err: err}
	}
	return result, nil
}

func (g *Gateway) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.config.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = g.config.BaseDelay << g.config.MaxRetries
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(g.config.MaxRetries))
}

// IsTransient reports whether a provider failure is worth retrying:
// network errors, 5xx responses and per-attempt timeouts.
func IsTransient(err error) bool {
	switch {
	case errors.Is(err, ai.ErrRateLimited), errors.Is(err, ai.ErrInvalidRequest), errors.Is(err, ai.ErrMalformedResponse):
		return false
	case errors.Is(err, ai.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}

func reason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return ReasonCanceled
	case errors.Is(err, ai.ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ai.ErrInvalidRequest):
		return ReasonInvalidRequest
	case errors.Is(err, ai.ErrMalformedResponse):
		return ReasonMalformedResponse
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonNetwork
	}
}

// Reason extracts the reason code from a gateway error, or "" if err is not one
func Reason(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}
