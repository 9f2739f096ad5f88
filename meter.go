package translation

import "time"

// Meter observes quota decisions for monitoring/logging.
type Meter interface {
	// OnCheck is called after each admission decision.
	OnCheck(event CheckEvent)

	// OnRecord is called after actual usage is recorded.
	OnRecord(event RecordEvent)
}

// CheckEvent describes an admission decision.
type CheckEvent struct {
	RequestID       string
	Model           string
	EstimatedTokens int64
	Remaining       int64
	Store           StoreKind
	Degraded        bool
	Allowed         bool
	Err             error
}

// RecordEvent describes the outcome of recording actual usage.
type RecordEvent struct {
	RequestID string
	Model     string
	Tokens    int64
	Used      int64
	Remaining int64
	Exhausted bool
	Store     StoreKind
	Degraded  bool
	Duration  time.Duration
	Err       error
}
