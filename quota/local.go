// Package quota provides UsageStore implementations that need no
// external backend, plus the failover wrapper that selects between the
// durable and local variants at runtime.
package quota

import (
	"context"
	"sync"
	"time"

	translation "github.com/ahasasjeb/OpenAI-translation"
)

// LocalStore is an in-process UsageStore with no cross-instance
// visibility. It is a deliberate correctness compromise for
// single-instance or disconnected operation; multi-instance deployments
// must use the durable store.
type LocalStore struct {
	mu   sync.Mutex
	days map[string]*dayUsage
}

type dayUsage struct {
	totalTokens int64
	requests    int64
	models      map[string]int64
}

var _ translation.UsageStore = (*LocalStore)(nil)

// NewLocalStore creates an empty LocalStore.
func NewLocalStore() *LocalStore {
	return &LocalStore{days: make(map[string]*dayUsage)}
}

// GetUsage returns the total for a day key, 0 when absent.
func (s *LocalStore) GetUsage(_ context.Context, dayKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(dayKey)

	du, ok := s.days[dayKey]
	if !ok {
		return 0, nil
	}
	return du.totalTokens, nil
}

// IncrementUsage adds tokens under the day key and returns the new total.
func (s *LocalStore) IncrementUsage(_ context.Context, dayKey string, tokens int64, model string, _ time.Time) (int64, error) {
	if tokens < 0 {
		tokens = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(dayKey)

	du, ok := s.days[dayKey]
	if !ok {
		du = &dayUsage{models: make(map[string]int64)}
		s.days[dayKey] = du
	}

	du.totalTokens += tokens
	du.requests++
	if model != "" {
		du.models[model] += tokens
	}
	return du.totalTokens, nil
}

// Kind reports the local store variant.
func (s *LocalStore) Kind() translation.StoreKind {
	return translation.StoreLocal
}

// Snapshot returns the breakdown for a day key, for the debug panel and
// tests.
func (s *LocalStore) Snapshot(dayKey string) translation.UsageBreakdown {
	s.mu.Lock()
	defer s.mu.Unlock()

	bd := translation.UsageBreakdown{DayKey: dayKey}
	du, ok := s.days[dayKey]
	if !ok {
		return bd
	}

	bd.TotalTokens = du.totalTokens
	bd.Requests = du.requests
	if len(du.models) > 0 {
		bd.Models = make(map[string]int64, len(du.models))
		for m, v := range du.models {
			bd.Models[m] = v
		}
	}
	return bd
}

// prune drops every day other than current. Keeps memory bounded to one
// day's counters; expiry here is the stand-in for the durable store's
// TTL. Must be called with the lock held.
func (s *LocalStore) prune(current string) {
	for key := range s.days {
		if key != current {
			delete(s.days, key)
		}
	}
}
