package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_ExponentialBackoff(t *testing.T) {
	w := &Worker{}

	testCases := []struct {
		attempts    int
		expectedMin time.Duration
		expectedMax time.Duration
	}{
		{0, 5 * time.Second, 5 * time.Second},
		{1, 10 * time.Second, 10 * time.Second},
		{2, 20 * time.Second, 20 * time.Second},
		{3, 40 * time.Second, 40 * time.Second},
		{4, 80 * time.Second, 80 * time.Second},
		{5, 160 * time.Second, 160 * time.Second},
		{6, 5 * time.Minute, 5 * time.Minute},
		{10, 5 * time.Minute, 5 * time.Minute},
	}

	for _, tc := range testCases {
		t.Run("", func(t *testing.T) {
			backoff := w.calculateBackoff(tc.attempts)
			assert.GreaterOrEqual(t, backoff, tc.expectedMin)
			assert.LessOrEqual(t, backoff, tc.expectedMax)
		})
	}
}

func TestDefaultWorkerConfig(t *testing.T) {
	cfg := DefaultWorkerConfig()

	assert.Equal(t, 30*time.Second, cfg.RetryInterval)
	assert.Equal(t, 5, cfg.MaxRetryAttempts)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Minute, cfg.ExpirationCheckInterval)
	assert.Equal(t, 10*time.Minute, cfg.ReservationMaxAge)
}

func TestNewWorker(t *testing.T) {
	t.Run("with default config", func(t *testing.T) {
		worker := NewWorker(nil, nil, nil)
		assert.NotNil(t, worker)
		assert.NotNil(t, worker.config)
		assert.Equal(t, 30*time.Second, worker.config.RetryInterval)
	})

	t.Run("with custom config", func(t *testing.T) {
		customCfg := &WorkerConfig{
			RetryInterval:           10 * time.Second,
			MaxRetryAttempts:        3,
			BatchSize:               50,
			ExpirationCheckInterval: 30 * time.Second,
		}

		worker := NewWorker(nil, nil, customCfg)
		assert.NotNil(t, worker)
		assert.Equal(t, 10*time.Second, worker.config.RetryInterval)
		assert.Equal(t, 3, worker.config.MaxRetryAttempts)
	})
}

func TestWorker_GracefulShutdown(t *testing.T) {
	cfg := &WorkerConfig{
		RetryInterval:           100 * time.Millisecond,
		MaxRetryAttempts:        3,
		BatchSize:               10,
		ExpirationCheckInterval: 100 * time.Millisecond,
	}

	worker := NewWorker(nil, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())

	worker.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		cancel()
		worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not shut down within 2 seconds")
	}
}

func TestWorker_ContextCancellation(t *testing.T) {
	cfg := &WorkerConfig{
		RetryInterval:           100 * time.Millisecond,
		MaxRetryAttempts:        3,
		BatchSize:               10,
		ExpirationCheckInterval: 100 * time.Millisecond,
	}

	worker := NewWorker(nil, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())

	worker.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		worker.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}
}

func TestWorker_BackoffTiming(t *testing.T) {
	w := &Worker{}

	backoffs := []time.Duration{}
	for i := 0; i < 10; i++ {
		backoffs = append(backoffs, w.calculateBackoff(i))
	}

	for i := 1; i < len(backoffs); i++ {
		expected := backoffs[i-1] * 2
		if expected > 5*time.Minute {
			expected = 5 * time.Minute
		}
		assert.Equal(t, expected, backoffs[i], "backoff at attempt %d should be correct", i)
	}
}

func TestWorker_StopChannelClosed(t *testing.T) {
	worker := NewWorker(nil, nil, nil)

	require.NotPanics(t, func() {
		close(worker.stopCh)
	})
}

func TestWorker_RunRetryLoop_ExitsOnStop(t *testing.T) {
	cfg := &WorkerConfig{
		RetryInterval:           50 * time.Millisecond,
		MaxRetryAttempts:        3,
		BatchSize:               10,
		ExpirationCheckInterval: 50 * time.Millisecond,
	}

	worker := NewWorker(nil, nil, cfg)

	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		worker.runRetryLoop(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	close(worker.stopCh)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("runRetryLoop did not exit on stop")
	}
}

func TestWorker_RunExpirationLoop_ExitsOnStop(t *testing.T) {
	cfg := &WorkerConfig{
		RetryInterval:           50 * time.Millisecond,
		MaxRetryAttempts:        3,
		BatchSize:               10,
		ExpirationCheckInterval: 50 * time.Millisecond,
	}

	worker := NewWorker(nil, nil, cfg)

	ctx := context.Background()
	done := make(chan struct{})

	go func() {
		worker.runExpirationLoop(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	close(worker.stopCh)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("runExpirationLoop did not exit on stop")
	}
}

func TestWorker_CalculateBackoff_MaxCap(t *testing.T) {
	w := &Worker{}

	for attempts := 0; attempts < 100; attempts++ {
		backoff := w.calculateBackoff(attempts)
		assert.LessOrEqual(t, backoff, 5*time.Minute,
			"backoff should never exceed 5 minutes, got %v for attempt %d", backoff, attempts)
	}
}
