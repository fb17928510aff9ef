package correction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tutorbot/internal/ai"
	"github.com/example/tutorbot/pkg/models"
)

type scriptedProvider struct {
	calls  atomic.Int32
	script func(call int, ctx context.Context) (*models.CorrectionResult, error)
}

func (p *scriptedProvider) Correct(ctx context.Context, req ai.Request) (*models.CorrectionResult, error) {
	n := int(p.calls.Add(1))
	return p.script(n, ctx)
}

func testGateway(p Provider) *Gateway {
	return NewGateway(p, Config{Timeout: 200 * time.Millisecond, MaxRetries: 2, BaseDelay: time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func okResult() *models.CorrectionResult {
	return &models.CorrectionResult{Corrected: "fine", Confidence: 1}
}

func TestGateway_Success(t *testing.T) {
	p := &scriptedProvider{script: func(int, context.Context) (*models.CorrectionResult, error) { return okResult(), nil }}

	res, err := testGateway(p).Correct(context.Background(), "fine", models.LevelBasic)
	require.NoError(t, err)
	assert.Equal(t, "fine", res.Corrected)
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestGateway_RetriesTransientThenSucceeds(t *testing.T) {
	p := &scriptedProvider{script: func(call int, _ context.Context) (*models.CorrectionResult, error) {
		if call < 3 {
			return nil, fmt.Errorf("%w: status 503", ai.ErrNetwork)
		}
		return okResult(), nil
	}}

	_, err := testGateway(p).Correct(context.Background(), "text", models.LevelBasic)
	require.NoError(t, err)
	assert.EqualValues(t, 3, p.calls.Load())
}

func TestGateway_RetriesExactlyTwiceThenFails(t *testing.T) {
	p := &scriptedProvider{script: func(int, context.Context) (*models.CorrectionResult, error) {
		return nil, fmt.Errorf("%w: connection reset", ai.ErrNetwork)
	}}

	_, err := testGateway(p).Correct(context.Background(), "text", models.LevelBasic)
	require.Error(t, err)
	assert.EqualValues(t, 3, p.calls.Load())
	assert.True(t, errors.Is(err, ErrCorrectionFailed))
	assert.Equal(t, ReasonNetwork, Reason(err))

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.Attempts)
}

func TestGateway_NonTransientFailsFast(t *testing.T) {
	tests := []struct {
		err    error
		reason string
	}{
		{ai.ErrRateLimited, ReasonRateLimited},
		{ai.ErrInvalidRequest, ReasonInvalidRequest},
		{ai.ErrMalformedResponse, ReasonMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			p := &scriptedProvider{script: func(int, context.Context) (*models.CorrectionResult, error) {
				return nil, fmt.Errorf("%w: details", tt.err)
			}}

			_, err := testGateway(p).Correct(context.Background(), "text", models.LevelBasic)
			assert.True(t, errors.Is(err, ErrCorrectionFailed))
			assert.Equal(t, tt.reason, Reason(err))
			assert.EqualValues(t, 1, p.calls.Load())
		})
	}
}

func TestGateway_AttemptTimeoutIsTransient(t *testing.T) {
	p := &scriptedProvider{script: func(_ int, ctx context.Context) (*models.CorrectionResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := NewGateway(p, Config{Timeout: 10 * time.Millisecond, MaxRetries: 2, BaseDelay: time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := g.Correct(context.Background(), "text", models.LevelBasic)
	assert.Equal(t, ReasonTimeout, Reason(err))
	assert.EqualValues(t, 3, p.calls.Load())
}

func TestGateway_CallerCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedProvider{script: func(int, context.Context) (*models.CorrectionResult, error) {
		cancel()
		return nil, fmt.Errorf("%w: aborted", ai.ErrNetwork)
	}}

	_, err := testGateway(p).Correct(ctx, "text", models.LevelBasic)
	assert.Equal(t, ReasonCanceled, Reason(err))
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestGateway_EmptyInput(t *testing.T) {
	p := &scriptedProvider{script: func(int, context.Context) (*models.CorrectionResult, error) { return okResult(), nil }}

	_, err := testGateway(p).Correct(context.Background(), "   ", models.LevelBasic)
	assert.Equal(t, ReasonEmptyInput, Reason(err))
	assert.EqualValues(t, 0, p.calls.Load())
}

func TestGateway_BackoffSchedule(t *testing.T) {
	g := NewGateway(nil, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	b := g.newBackOff()

	assert.Equal(t, 500*time.Millisecond, b.NextBackOff())
	assert.Equal(t, time.Second, b.NextBackOff())
	assert.Equal(t, time.Duration(-1), b.NextBackOff())
}

func TestConfig_MaxDuration(t *testing.T) {
	assert.Equal(t, 46500*time.Millisecond, DefaultConfig().MaxDuration())
	assert.Equal(t, time.Second, Config{Timeout: time.Second}.MaxDuration())
}
