package meter

import (
	"log/slog"

	translation "github.com/ahasasjeb/OpenAI-translation"
)

// LogMeter logs quota events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ translation.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnCheck(e translation.CheckEvent) {
	if e.Err != nil {
		m.Logger.Warn("quota_check_failed",
			"request_id", e.RequestID,
			"model", e.Model,
			"estimated_tokens", e.EstimatedTokens,
			"store", string(e.Store),
			"degraded", e.Degraded,
			"error", e.Err,
		)
		return
	}
	m.Logger.Info("quota_check",
		"request_id", e.RequestID,
		"model", e.Model,
		"estimated_tokens", e.EstimatedTokens,
		"remaining", e.Remaining,
		"store", string(e.Store),
		"degraded", e.Degraded,
		"allowed", e.Allowed,
	)
}

func (m *LogMeter) OnRecord(e translation.RecordEvent) {
	if e.Err != nil {
		m.Logger.Warn("usage_record_failed",
			"request_id", e.RequestID,
			"model", e.Model,
			"tokens", e.Tokens,
			"store", string(e.Store),
			"error", e.Err,
		)
		return
	}
	m.Logger.Info("usage_recorded",
		"request_id", e.RequestID,
		"model", e.Model,
		"tokens", e.Tokens,
		"used", e.Used,
		"remaining", e.Remaining,
		"exhausted", e.Exhausted,
		"store", string(e.Store),
		"degraded", e.Degraded,
		"duration_ms", e.Duration.Milliseconds(),
	)
}
