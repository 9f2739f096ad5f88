// Package redis provides the Redis-backed UsageStore.
//
// A day's usage lives under three sub-keys (total, requests, models)
// mutated by a single atomic Lua script, so a partial write cannot
// occur. Expiry is assigned once per day key, at the next UTC midnight
// after the first increment. Safe for multi-instance deployments.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	translation "github.com/ahasasjeb/OpenAI-translation"
)

// DefaultKeyPrefix namespaces all usage keys so an operator can inspect
// or purge a single day without scanning the whole keyspace.
const DefaultKeyPrefix = "translate:usage:"

// Store is a Redis-backed UsageStore.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
}

var (
	_ translation.UsageStore = (*Store)(nil)
	_ translation.Pinger     = (*Store)(nil)
)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default DefaultKeyPrefix).
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a new Redis-backed UsageStore.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) totalKey(dayKey string) string    { return s.keyPrefix + dayKey + ":total" }
func (s *Store) requestsKey(dayKey string) string { return s.keyPrefix + dayKey + ":requests" }
func (s *Store) modelsKey(dayKey string) string   { return s.keyPrefix + dayKey + ":models" }

// incrementScript is a Lua script for one atomic usage increment.
// KEYS[1] = total counter key
// KEYS[2] = request counter key
// KEYS[3] = per-model hash key
// ARGV[1] = tokens
// ARGV[2] = model ("" to skip the histogram)
// ARGV[3] = ttl seconds until the next UTC midnight
//
// Expiry is set only where no TTL exists yet (TTL == -1), so a second
// increment on the same day never extends the window.
//
// Returns the new total.
var incrementScript = goredis.NewScript(`
local total = redis.call("INCRBY", KEYS[1], ARGV[1])
redis.call("INCR", KEYS[2])
if ARGV[2] ~= "" then
    redis.call("HINCRBY", KEYS[3], ARGV[2], ARGV[1])
end
for i = 1, 3 do
    if redis.call("TTL", KEYS[i]) == -1 then
        redis.call("EXPIRE", KEYS[i], ARGV[3])
    end
end
return total
`)

// GetUsage returns the persisted total for the day, 0 when the key is
// absent or already expired.
func (s *Store) GetUsage(ctx context.Context, dayKey string) (int64, error) {
	total, err := s.client.Get(ctx, s.totalKey(dayKey)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, &translation.StoreError{Op: "get usage", Store: translation.StoreRedis, Err: err}
	}
	return total, nil
}

// IncrementUsage atomically applies one usage delta and returns the new
// total. A script failure means none of the three sub-keys changed.
func (s *Store) IncrementUsage(ctx context.Context, dayKey string, tokens int64, model string, ref time.Time) (int64, error) {
	if tokens < 0 {
		tokens = 0
	}
	ttl := int64(translation.TTLUntilMidnight(ref).Seconds())

	total, err := incrementScript.Run(ctx, s.client,
		[]string{s.totalKey(dayKey), s.requestsKey(dayKey), s.modelsKey(dayKey)},
		tokens, model, ttl,
	).Int64()
	if err != nil {
		return 0, &translation.StoreError{
			Op:    "increment usage",
			Store: translation.StoreRedis,
			Err:   fmt.Errorf("%w: %v", translation.ErrTransactionFailed, err),
		}
	}
	return total, nil
}

// Kind reports the durable store variant.
func (s *Store) Kind() translation.StoreKind {
	return translation.StoreRedis
}

// Ping probes the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &translation.StoreError{Op: "ping", Store: translation.StoreRedis, Err: err}
	}
	return nil
}

// Breakdown reads the full per-day detail for the debug panel.
func (s *Store) Breakdown(ctx context.Context, dayKey string) (translation.UsageBreakdown, error) {
	pipe := s.client.Pipeline()
	totalCmd := pipe.Get(ctx, s.totalKey(dayKey))
	requestsCmd := pipe.Get(ctx, s.requestsKey(dayKey))
	modelsCmd := pipe.HGetAll(ctx, s.modelsKey(dayKey))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return translation.UsageBreakdown{}, &translation.StoreError{
			Op:    "breakdown",
			Store: translation.StoreRedis,
			Err:   err,
		}
	}

	bd := translation.UsageBreakdown{DayKey: dayKey}
	bd.TotalTokens, _ = totalCmd.Int64()
	bd.Requests, _ = requestsCmd.Int64()

	if models := modelsCmd.Val(); len(models) > 0 {
		bd.Models = make(map[string]int64, len(models))
		for m, v := range models {
			n, _ := strconv.ParseInt(v, 10, 64)
			bd.Models[m] = n
		}
	}
	return bd, nil
}
