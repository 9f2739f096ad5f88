package translation

import (
	"context"
	"math"
	"time"
)

// DefaultDailyLimit is the shared daily token budget across all serving
// instances.
const DefaultDailyLimit int64 = 2_500_000

// Ledger tracks daily token consumption against a fixed budget. Day
// boundaries are UTC midnights; persistence is delegated to a UsageStore.
type Ledger struct {
	store UsageStore
	limit int64
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLimit overrides the daily token limit.
func WithLimit(limit int64) LedgerOption {
	return func(l *Ledger) { l.limit = limit }
}

// NewLedger creates a Ledger over the given store.
func NewLedger(store UsageStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store: store,
		limit: DefaultDailyLimit,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured daily token limit.
func (l *Ledger) Limit() int64 { return l.limit }

// DayKey returns the UTC calendar date of t as YYYY-MM-DD. Zero-padded,
// so lexical order matches chronological order.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// NextMidnightUTC returns the first UTC midnight strictly after t's day.
func NextMidnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

// TTLUntilMidnight returns the whole-second TTL from t until the next
// UTC midnight, rounded up and floored at one second so a record written
// at the exact boundary still expires.
func TTLUntilMidnight(t time.Time) time.Duration {
	secs := int64(math.Ceil(NextMidnightUTC(t).Sub(t).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// Status reads the current day's usage and derives the quota view.
// A store failure propagates; usage is never fabricated as zero.
func (l *Ledger) Status(ctx context.Context, now time.Time) (QuotaStatus, error) {
	used, err := l.store.GetUsage(ctx, DayKey(now))
	if err != nil {
		return QuotaStatus{}, err
	}
	return l.statusFor(used, now), nil
}

// EnsureAvailable checks that budget remains. On exhaustion it returns
// the status along with a *QuotaExhaustedError carrying the same
// snapshot. This is a read-only check; it reserves nothing.
func (l *Ledger) EnsureAvailable(ctx context.Context, now time.Time) (QuotaStatus, error) {
	st, err := l.Status(ctx, now)
	if err != nil {
		return QuotaStatus{}, err
	}
	if st.Exhausted() {
		return st, &QuotaExhaustedError{Status: st}
	}
	return st, nil
}

// RecordUsage durably adds the actual tokens billed for a completed call
// and returns the updated status. The boolean reports whether this
// increment is the one that pushed remaining to zero or below. Negative
// inputs are clamped to zero; fractional inputs round to nearest.
func (l *Ledger) RecordUsage(ctx context.Context, tokens float64, model string, ts time.Time) (QuotaStatus, bool, error) {
	delta := int64(math.Round(tokens))
	if delta < 0 {
		delta = 0
	}

	total, err := l.store.IncrementUsage(ctx, DayKey(ts), delta, model, ts)
	if err != nil {
		return QuotaStatus{}, false, err
	}

	st := l.statusFor(total, ts)
	return st, st.Exhausted(), nil
}

func (l *Ledger) statusFor(used int64, now time.Time) QuotaStatus {
	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}
	st := QuotaStatus{
		Used:       used,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAt:    NextMidnightUTC(now),
		ObservedAt: now.UTC(),
		Store:      l.store.Kind(),
	}
	if dr, ok := l.store.(DegradedReporter); ok {
		st.Degraded = dr.Degraded()
	}
	return st
}
