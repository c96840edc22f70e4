package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

// Cache persists the latest merged record so a fresh session can render
// vitals before either source delivers. Reads never fail the caller: an
// absent or corrupt snapshot simply yields no record.
type Cache struct {
	kv    KVStore
	key   string
	ttl   time.Duration
	nowFn func() time.Time
}

// payload is the stored shape. Timestamps travel as unix milliseconds and
// quality as its integer code so the snapshot stays readable by the other
// platform clients sharing the cache.
type payload struct {
	HeartRate    *float64          `json:"heart_rate,omitempty"`
	Steps        *int              `json:"steps,omitempty"`
	HRV          *float64          `json:"hrv,omitempty"`
	SleepHours   *float64          `json:"sleep_hours,omitempty"`
	ActiveEnergy *float64          `json:"active_energy,omitempty"`
	WeightLb     *float64          `json:"weight_lb,omitempty"`
	TimestampMs  int64             `json:"timestamp_ms"`
	Quality      int               `json:"quality"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewCache creates a snapshot cache over kv. A zero ttl keeps snapshots
// until overwritten.
func NewCache(kv KVStore, key string, ttl time.Duration) *Cache {
	if kv == nil {
		panic("snapshot: kv store is required")
	}
	if key == "" {
		panic("snapshot: cache key is required")
	}
	return &Cache{
		kv:    kv,
		key:   key,
		ttl:   ttl,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// Read loads the persisted snapshot. The restored record is marked stale
// regardless of the quality it was written with. Returns false when no
// usable snapshot exists.
func (c *Cache) Read(ctx context.Context) (vitals.Record, bool) {
	raw, err := c.kv.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			slog.Warn("[Snapshot] Failed to read snapshot", "key", c.key, "error", err)
		}
		return vitals.Record{}, false
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		slog.Warn("[Snapshot] Discarding corrupt snapshot", "key", c.key, "error", err)
		return vitals.Record{}, false
	}

	rec := vitals.Record{
		HeartRate:    p.HeartRate,
		Steps:        p.Steps,
		HRV:          p.HRV,
		SleepHours:   p.SleepHours,
		ActiveEnergy: p.ActiveEnergy,
		WeightLb:     p.WeightLb,
		Quality:      vitals.QualityStale,
		Metadata:     p.Metadata,
	}
	if p.TimestampMs > 0 {
		rec.Timestamp = time.UnixMilli(p.TimestampMs).UTC()
	} else {
		rec.Timestamp = c.nowFn()
	}
	if rec.Empty() {
		return vitals.Record{}, false
	}
	return rec, true
}

// Write persists rec as the latest snapshot. Persistence is best effort:
// failures are logged and swallowed so the update path never stalls on
// the cache.
func (c *Cache) Write(ctx context.Context, rec vitals.Record) {
	p := payload{
		HeartRate:    rec.HeartRate,
		Steps:        rec.Steps,
		HRV:          rec.HRV,
		SleepHours:   rec.SleepHours,
		ActiveEnergy: rec.ActiveEnergy,
		WeightLb:     rec.WeightLb,
		TimestampMs:  rec.Timestamp.UnixMilli(),
		Quality:      int(rec.Quality),
		Metadata:     rec.Metadata,
	}

	raw, err := json.Marshal(p)
	if err != nil {
		slog.Debug("[Snapshot] Failed to encode snapshot", "error", err)
		return
	}
	if err := c.kv.Set(ctx, c.key, string(raw), c.ttl); err != nil {
		slog.Debug("[Snapshot] Failed to persist snapshot", "key", c.key, "error", err)
	}
}

// Clear removes the persisted snapshot.
func (c *Cache) Clear(ctx context.Context) error {
	return c.kv.Delete(ctx, c.key)
}
