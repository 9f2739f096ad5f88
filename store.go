package translation

import (
	"context"
	"time"
)

// UsageStore persists daily token usage, keyed by UTC day key.
type UsageStore interface {
	// GetUsage returns the total tokens recorded for a day key.
	// A day with no writes (or an expired record) reads as 0.
	// A backend failure is an error, never a fabricated zero.
	GetUsage(ctx context.Context, dayKey string) (int64, error)

	// IncrementUsage atomically adds tokens to the day's total, bumps the
	// request counter, and adds to the per-model histogram when model is
	// non-empty. The record's expiry is set to the next UTC midnight after
	// ref only if not already set. Returns the new total.
	IncrementUsage(ctx context.Context, dayKey string, tokens int64, model string, ref time.Time) (int64, error)

	// Kind identifies the backing store variant.
	Kind() StoreKind
}

// StoreKind identifies a UsageStore implementation.
type StoreKind string

const (
	StoreRedis StoreKind = "redis"
	StoreLocal StoreKind = "local"
)

// DegradedReporter is an optional interface for stores that can run in a
// degraded single-instance mode. The Ledger surfaces it in QuotaStatus.
type DegradedReporter interface {
	Degraded() bool
}

// Pinger is an optional interface for stores with a network backend.
// Used to probe reachability before declaring the store unavailable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FallbackPolicy controls what happens when the durable store is
// unreachable.
type FallbackPolicy string

const (
	// FallbackDegrade switches to the local store and flags the
	// degradation in every status. This is the default.
	FallbackDegrade FallbackPolicy = "degrade"

	// FallbackFailClosed refuses all quota operations while the durable
	// store is unreachable.
	FallbackFailClosed FallbackPolicy = "fail-closed"

	// FallbackSilent switches to the local store without flagging it.
	FallbackSilent FallbackPolicy = "silent"
)
