package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesConcurrentModification(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &model.ConcurrentModificationError{PredictionID: "p1", Expected: 1, Found: 2}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return &model.ConcurrentModificationError{PredictionID: "p1"}
	})
	require.Error(t, err)
	assert.True(t, model.IsConcurrentModification(err))
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(context.Context) error {
		calls++
		return &model.CrossTenantError{Authenticated: "a", Requested: "b"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValReturnsValue(t *testing.T) {
	var calls int
	v, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, NewTransientError(eris.New("locked"))
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, fastConfig(), func(context.Context) error {
		calls++
		cancel()
		return &model.ConcurrentModificationError{PredictionID: "p1"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestOnRetryCallback(t *testing.T) {
	cfg := fastConfig()
	var attempts []int
	cfg.OnRetry = func(attempt int, err error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return &model.ConcurrentModificationError{}
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestIsRetryableWrite(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"concurrent modification", &model.ConcurrentModificationError{}, true},
		{"wrapped concurrent modification", eris.Wrap(&model.ConcurrentModificationError{}, "upsert"), true},
		{"explicit transient", NewTransientError(eris.New("x")), true},
		{"pg serialization", eris.New("ERROR: could not serialize access due to concurrent update"), true},
		{"sqlite busy", eris.New("database is locked"), true},
		{"cross tenant", &model.CrossTenantError{}, false},
		{"validation", &model.ValidationError{Field: "f"}, false},
		{"plain", eris.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableWrite(tt.err))
		})
	}
}

func TestComputeBackoffCapped(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 10, JitterFraction: 0})
	assert.Equal(t, time.Second, computeBackoff(0, cfg))
	assert.Equal(t, 3*time.Second, computeBackoff(1, cfg))
	assert.Equal(t, 3*time.Second, computeBackoff(5, cfg))
}
