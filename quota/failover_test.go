package quota_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	translation "github.com/ahasasjeb/OpenAI-translation"
	"github.com/ahasasjeb/OpenAI-translation/quota"
)

// stubDurable fakes a network-backed store whose reachability can be
// toggled mid-test.
type stubDurable struct {
	mu       sync.Mutex
	down     bool
	pingUp   bool
	failOnce bool
	total    int64
}

func (s *stubDurable) GetUsage(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return 0, err
	}
	return s.total, nil
}

func (s *stubDurable) IncrementUsage(_ context.Context, _ string, tokens int64, _ string, _ time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.maybeFail(); err != nil {
		return 0, err
	}
	s.total += tokens
	return s.total, nil
}

func (s *stubDurable) Kind() translation.StoreKind { return translation.StoreRedis }

func (s *stubDurable) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pingUp {
		return errors.New("ping: connection refused")
	}
	return nil
}

// maybeFail must be called with the lock held.
func (s *stubDurable) maybeFail() error {
	if s.failOnce {
		s.failOnce = false
		return &translation.StoreError{Op: "op", Store: translation.StoreRedis, Err: errors.New("transient")}
	}
	if s.down {
		return &translation.StoreError{Op: "op", Store: translation.StoreRedis, Err: errors.New("connection refused")}
	}
	return nil
}

func TestFailover_HealthyDurableServes(t *testing.T) {
	durable := &stubDurable{pingUp: true}
	f := quota.NewFailover(durable)
	ctx := context.Background()

	total, err := f.IncrementUsage(ctx, "2024-03-05", 100, "model-a", refTime)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
	assert.Equal(t, translation.StoreRedis, f.Kind())
	assert.False(t, f.Degraded())
}

func TestFailover_DegradePolicy_FlagsAndFallsBack(t *testing.T) {
	durable := &stubDurable{down: true}
	f := quota.NewFailover(durable, quota.WithPolicy(translation.FallbackDegrade))
	ctx := context.Background()

	total, err := f.IncrementUsage(ctx, "2024-03-05", 100, "model-a", refTime)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
	assert.Equal(t, translation.StoreLocal, f.Kind())
	assert.True(t, f.Degraded(), "degradation must be observable, never silent zeros")
}

func TestFailover_FailClosedPolicy_PropagatesError(t *testing.T) {
	durable := &stubDurable{down: true}
	f := quota.NewFailover(durable, quota.WithPolicy(translation.FallbackFailClosed))

	_, err := f.GetUsage(context.Background(), "2024-03-05")
	require.Error(t, err)
	assert.True(t, translation.IsStoreUnavailable(err))
	assert.Equal(t, int64(0), f.Local().Snapshot("2024-03-05").TotalTokens, "fail-closed must not shadow-write locally")
}

func TestFailover_SilentPolicy_FallsBackWithoutFlag(t *testing.T) {
	durable := &stubDurable{down: true}
	f := quota.NewFailover(durable, quota.WithPolicy(translation.FallbackSilent))

	_, err := f.IncrementUsage(context.Background(), "2024-03-05", 100, "model-a", refTime)
	require.NoError(t, err)
	assert.Equal(t, translation.StoreLocal, f.Kind())
	assert.False(t, f.Degraded())
}

func TestFailover_ReconnectRetryBeforeFallback(t *testing.T) {
	// One transient failure with a healthy ping: the retry must land on
	// the durable store, not the local fallback.
	durable := &stubDurable{failOnce: true, pingUp: true}
	f := quota.NewFailover(durable)
	ctx := context.Background()

	total, err := f.IncrementUsage(ctx, "2024-03-05", 100, "model-a", refTime)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
	assert.Equal(t, translation.StoreRedis, f.Kind())
	assert.False(t, f.Degraded())
	assert.Equal(t, int64(0), f.Local().Snapshot("2024-03-05").TotalTokens)
}

func TestFailover_RecoversAfterProbation(t *testing.T) {
	now := refTime
	clock := func() time.Time { return now }

	durable := &stubDurable{down: true}
	f := quota.NewFailover(durable, quota.WithClock(clock))
	ctx := context.Background()

	_, err := f.IncrementUsage(ctx, "2024-03-05", 100, "model-a", refTime)
	require.NoError(t, err)
	assert.True(t, f.Degraded())

	// Back up, but still inside the probation window: local keeps serving.
	durable.mu.Lock()
	durable.down = false
	durable.pingUp = true
	durable.mu.Unlock()

	now = now.Add(5 * time.Second)
	_, err = f.GetUsage(ctx, "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, translation.StoreLocal, f.Kind())

	// Probation over: traffic returns to the durable store and the
	// degraded flag clears.
	now = now.Add(time.Minute)
	_, err = f.GetUsage(ctx, "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, translation.StoreRedis, f.Kind())
	assert.False(t, f.Degraded())
}

func TestFailover_NoDurableConfigured(t *testing.T) {
	f := quota.NewFailover(nil)

	total, err := f.IncrementUsage(context.Background(), "2024-03-05", 100, "model-a", refTime)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
	assert.Equal(t, translation.StoreLocal, f.Kind())
	assert.False(t, f.Degraded(), "deliberate single-instance mode is not degradation")
}
