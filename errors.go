package translation

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	ErrStoreUnavailable  = errors.New("translation: quota store unavailable")
	ErrTransactionFailed = errors.New("translation: usage transaction failed")
	ErrQuotaExhausted    = errors.New("translation: daily token quota exhausted")
	ErrInvalidRequest    = errors.New("translation: invalid request")
)

// StoreError wraps a storage failure with operation context. It matches
// ErrStoreUnavailable via errors.Is, so callers can fail closed without
// caring which operation broke.
type StoreError struct {
	Op    string
	Store StoreKind
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("translation: store=%s op=%s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// QuotaExhaustedError reports an exhausted daily budget together with the
// status snapshot observed at check time, so the caller can render a
// precise reset time.
type QuotaExhaustedError struct {
	Status QuotaStatus
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("translation: daily token quota exhausted (used %d of %d, resets %s)",
		e.Status.Used, e.Status.Limit, e.Status.ResetAt.Format(time.RFC3339))
}

func (e *QuotaExhaustedError) Unwrap() error {
	return ErrQuotaExhausted
}

// IsStoreUnavailable reports whether err means the quota store could not
// be reached. Callers must fail closed on this unless running degraded.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsQuotaExhausted reports whether err is the normal out-of-budget
// outcome rather than a fault.
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}
