package translation

import "time"

// QuotaStatus is a point-in-time view of the daily token budget. It is
// derived on every read and never persisted.
type QuotaStatus struct {
	Used       int64     `json:"used"`
	Limit      int64     `json:"limit"`
	Remaining  int64     `json:"remaining"`
	ResetAt    time.Time `json:"resetAt"`
	ObservedAt time.Time `json:"observedAt"`

	// Store is the adapter variant that served this read. Degraded is set
	// when the durable store was unreachable and the local fallback
	// answered instead — single-instance guarantees only.
	Store    StoreKind `json:"store"`
	Degraded bool      `json:"degraded,omitempty"`
}

// Exhausted reports whether no budget remains.
func (s QuotaStatus) Exhausted() bool {
	return s.Remaining <= 0
}

// ResetAtIn renders the reset time in the given location for display.
// A nil location falls back to UTC.
func (s QuotaStatus) ResetAtIn(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return s.ResetAt.In(loc).Format("2006-01-02 15:04:05 MST")
}

// Usage is the token usage reported by the upstream provider for a
// completed call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// UsageBreakdown is the per-day detail behind a QuotaStatus, for the
// debug panel. Models maps model identifier to tokens consumed.
type UsageBreakdown struct {
	DayKey      string           `json:"dayKey"`
	TotalTokens int64            `json:"totalTokens"`
	Requests    int64            `json:"requests"`
	Models      map[string]int64 `json:"models,omitempty"`
}
