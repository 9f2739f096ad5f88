package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	translation "github.com/ahasasjeb/OpenAI-translation"
)

// probationPeriod is how long a failed durable store sits out before the
// next reconnect attempt.
const probationPeriod = 30 * time.Second

// Failover selects between a durable store and the local fallback. Every
// operation prefers the durable store; on failure a single ping-and-retry
// reconnect is attempted before the configured FallbackPolicy applies.
//
// With FallbackDegrade (the default) the local store answers and the
// degradation is visible through Degraded and in every QuotaStatus. With
// FallbackFailClosed the storage error propagates and no quota operation
// succeeds until the durable store is back. FallbackSilent behaves like
// degrade without raising the flag.
type Failover struct {
	durable translation.UsageStore
	local   *LocalStore
	policy  translation.FallbackPolicy
	clock   func() time.Time

	mu         sync.Mutex
	degraded   bool
	retryAfter time.Time
	lastKind   translation.StoreKind
}

var (
	_ translation.UsageStore       = (*Failover)(nil)
	_ translation.DegradedReporter = (*Failover)(nil)
)

// FailoverOption configures a Failover.
type FailoverOption func(*Failover)

// WithPolicy sets the fallback policy (default FallbackDegrade).
func WithPolicy(p translation.FallbackPolicy) FailoverOption {
	return func(f *Failover) { f.policy = p }
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) FailoverOption {
	return func(f *Failover) { f.clock = clock }
}

// NewFailover creates a Failover over an optional durable store. A nil
// durable store means deliberate single-instance operation: all traffic
// goes to the local adapter and no degradation is flagged.
func NewFailover(durable translation.UsageStore, opts ...FailoverOption) *Failover {
	f := &Failover{
		durable: durable,
		local:   NewLocalStore(),
		policy:  translation.FallbackDegrade,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if durable != nil {
		f.lastKind = durable.Kind()
	} else {
		f.lastKind = translation.StoreLocal
	}
	return f
}

// GetUsage reads through the active store.
func (f *Failover) GetUsage(ctx context.Context, dayKey string) (int64, error) {
	return f.run(ctx, func(store translation.UsageStore) (int64, error) {
		return store.GetUsage(ctx, dayKey)
	})
}

// IncrementUsage writes through the active store.
func (f *Failover) IncrementUsage(ctx context.Context, dayKey string, tokens int64, model string, ref time.Time) (int64, error) {
	return f.run(ctx, func(store translation.UsageStore) (int64, error) {
		return store.IncrementUsage(ctx, dayKey, tokens, model, ref)
	})
}

// Kind reports the variant that served the most recent operation.
func (f *Failover) Kind() translation.StoreKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastKind
}

// Degraded reports whether the durable store is configured but currently
// being substituted by the local fallback.
func (f *Failover) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

// Local exposes the fallback adapter, for the debug panel.
func (f *Failover) Local() *LocalStore { return f.local }

func (f *Failover) run(ctx context.Context, op func(translation.UsageStore) (int64, error)) (int64, error) {
	if f.tryDurable() {
		v, err := op(f.durable)
		if err == nil {
			f.markHealthy()
			return v, nil
		}

		// Reconnect attempt before declaring the store down.
		if p, ok := f.durable.(translation.Pinger); ok && p.Ping(ctx) == nil {
			if v, err2 := op(f.durable); err2 == nil {
				f.markHealthy()
				return v, nil
			}
		}

		f.markFailed()
		if f.policy == translation.FallbackFailClosed {
			return 0, err
		}
	} else if f.policy == translation.FallbackFailClosed {
		// Fail-closed with no durable store configured: refuse rather
		// than silently serve single-instance counters.
		return 0, &translation.StoreError{
			Op:    "probe",
			Store: translation.StoreLocal,
			Err:   errors.New("no durable store configured"),
		}
	}

	f.useLocal()
	return op(f.local)
}

// tryDurable reports whether this operation should go to the durable
// store. Fail-closed deployments always try it; fallback deployments let
// it sit out the probation window after a failure.
func (f *Failover) tryDurable() bool {
	if f.durable == nil {
		return false
	}
	if f.policy == translation.FallbackFailClosed {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock().After(f.retryAfter) || f.retryAfter.IsZero()
}

func (f *Failover) markHealthy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degraded = false
	f.retryAfter = time.Time{}
	f.lastKind = f.durable.Kind()
}

func (f *Failover) markFailed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryAfter = f.clock().Add(probationPeriod)
}

func (f *Failover) useLocal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKind = translation.StoreLocal
	f.degraded = f.durable != nil && f.policy == translation.FallbackDegrade
}
