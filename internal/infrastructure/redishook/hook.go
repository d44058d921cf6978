package redishook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hook is a redis-backed implementation of the dispatch PersistenceHook
// port: terminal job outcomes are recorded under job:<key> with a TTL so
// other systems can look them up by job or correlation id.
type Hook struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects a persistence hook to the given redis instance.
func New(addr, password string, db int, ttl time.Duration) *Hook {
	return &Hook{
		rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl: ttl,
	}
}

// Ping verifies the redis connection.
func (h *Hook) Ping(ctx context.Context) error {
	return h.rdb.Ping(ctx).Err()
}

type outcomeRecord struct {
	Status       string    `json:"status"`
	ResultURL    string    `json:"result_url,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// RecordOutcome stores one terminal outcome. Re-recording the same key
// overwrites the previous value, which keeps webhook re-delivery idempotent
// at this sink.
func (h *Hook) RecordOutcome(ctx context.Context, key, status, resultURL, errorMessage string) error {
	payload, err := json.Marshal(outcomeRecord{
		Status:       status,
		ResultURL:    resultURL,
		ErrorMessage: errorMessage,
		RecordedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return h.rdb.Set(ctx, "job:"+key, payload, h.ttl).Err()
}
