package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/handiism/gofile-downloader/internal/common"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{40, time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPolicy_DelayJitterStaysCapped(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 1500 * time.Millisecond, Jitter: true}
	for i := 0; i < 100; i++ {
		d := p.Delay(1)
		require.LessOrEqual(t, d, 1500*time.Millisecond)
		require.GreaterOrEqual(t, d, time.Second)
	}
}

func TestPolicy_DoRetriesTransientErrors(t *testing.T) {
	var retries []int
	p := Policy{
		Attempts:  4,
		BaseDelay: time.Millisecond,
		MaxDelay:  2 * time.Millisecond,
		OnRetry:   func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) },
	}

	calls := 0
	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		require.Equal(t, calls, attempt)
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: connection reset", common.ErrNetwork)
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []int{1, 2}, retries)
}

func TestPolicy_DoStopsOnPermanentError(t *testing.T) {
	p := Policy{Attempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return fmt.Errorf("%w: disk full", common.ErrIO)
	})

	require.ErrorIs(t, err, common.ErrIO)
	require.Equal(t, 1, calls)
}

func TestPolicy_DoReturnsLastError(t *testing.T) {
	p := Policy{Attempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return fmt.Errorf("%w: attempt %d", common.ErrNetwork, calls)
	})

	require.ErrorIs(t, err, common.ErrNetwork)
	require.EqualError(t, err, "network error: attempt 3")
	require.Equal(t, 3, calls)
}

func TestPolicy_DoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 10, BaseDelay: time.Hour}

	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return common.ErrNetwork
	})

	require.True(t, errors.Is(err, common.ErrNetwork) || errors.Is(err, context.Canceled))
	require.Equal(t, 1, calls)
}

func TestPolicy_WithRetries(t *testing.T) {
	require.Equal(t, 4, DefaultPolicy().WithRetries(3).Attempts)
	require.Equal(t, 1, DefaultPolicy().WithRetries(-1).Attempts)
}
