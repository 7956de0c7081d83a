// Package cache provides the time-bounded snapshot store used to shield the
// upstream rate-limited APIs: a snapshot is fetched once, stamped, and reused
// until its TTL elapses. File- and memory-backed stores share one contract.
package cache

import (
	"encoding/json"
	"time"

	"github.com/rgoodwin/spacedash/internal/metrics"
)

// Entry is a stored snapshot: the fetch timestamp in epoch seconds plus the
// raw JSON payload. This is also the on-disk layout of FileCache files.
type Entry struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Age returns how old the snapshot is relative to now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(e.Timestamp, 0))
}

// Store reads and writes snapshots.
type Store interface {
	// Read returns the snapshot for key. ok is false when the snapshot is
	// missing or older than ttl; a stale snapshot is still returned so
	// callers that want to inspect it can. ttl <= 0 disables expiry.
	Read(key string, ttl time.Duration) (entry *Entry, ok bool)

	// Write stores data under key with the current timestamp.
	Write(key string, data json.RawMessage) error
}

// GetOrFetch returns the cached value for key when a fresh snapshot exists,
// otherwise it invokes fetch, stores the result, and returns it. A fetch
// failure propagates to the caller; a stale snapshot is never used as a
// fallback. A write failure is not fatal: the fetched value is still
// returned and the next call simply fetches again.
func GetOrFetch[T any](s Store, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	var out T

	if entry, ok := s.Read(key, ttl); ok {
		if err := json.Unmarshal(entry.Data, &out); err == nil {
			metrics.CacheHit(key)
			return out, nil
		}
		// Corrupt snapshot: fall through and refetch.
	}
	metrics.CacheMiss(key)

	v, err := fetch()
	if err != nil {
		return out, err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.Write(key, data)
	}
	return v, nil
}
