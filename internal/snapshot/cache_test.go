package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

// fakeKV is an in-memory KVStore with injectable failures.
type fakeKV struct {
	values map[string]string
	getErr error
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string]string)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	val, ok := f.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return val, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func TestCache_WriteReadRoundTrip(t *testing.T) {
	kv := newFakeKV()
	cache := NewCache(kv, "vitals:snapshot:user-1", 0)

	ts := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	cache.Write(context.Background(), vitals.Record{
		HeartRate: vitals.Float64Ptr(72),
		Steps:     vitals.IntPtr(4200),
		Timestamp: ts,
		Quality:   vitals.QualityGood,
		Metadata:  map[string]string{vitals.MetaSource: "wearable"},
	})

	rec, ok := cache.Read(context.Background())
	require.True(t, ok)
	require.Equal(t, 72.0, *rec.HeartRate)
	require.Equal(t, 4200, *rec.Steps)
	require.Nil(t, rec.WeightLb)
	require.Equal(t, ts, rec.Timestamp)
	require.Equal(t, "wearable", rec.Metadata[vitals.MetaSource])

	// Restored snapshots are always stale, whatever quality was stored.
	require.Equal(t, vitals.QualityStale, rec.Quality)
}

func TestCache_Read(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(kv *fakeKV)
		wantOK bool
	}{
		{
			name:   "missing snapshot",
			setup:  func(_ *fakeKV) {},
			wantOK: false,
		},
		{
			name: "corrupt payload",
			setup: func(kv *fakeKV) {
				kv.values["k"] = "{not json"
			},
			wantOK: false,
		},
		{
			name: "payload with no vitals fields",
			setup: func(kv *fakeKV) {
				kv.values["k"] = `{"timestamp_ms": 1755682200000, "quality": 1}`
			},
			wantOK: false,
		},
		{
			name: "store failure",
			setup: func(kv *fakeKV) {
				kv.getErr = errors.New("connection refused")
			},
			wantOK: false,
		},
		{
			name: "valid payload",
			setup: func(kv *fakeKV) {
				kv.values["k"] = `{"heart_rate": 68, "timestamp_ms": 1755682200000, "quality": 1}`
			},
			wantOK: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kv := newFakeKV()
			tc.setup(kv)
			cache := NewCache(kv, "k", 0)

			rec, ok := cache.Read(context.Background())
			require.Equal(t, tc.wantOK, ok)
			if ok {
				require.Equal(t, 68.0, *rec.HeartRate)
				require.Equal(t, time.UnixMilli(1755682200000).UTC(), rec.Timestamp)
			}
		})
	}
}

func TestCache_ReadMissingTimestampFallsBackToNow(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	kv := newFakeKV()
	kv.values["k"] = `{"heart_rate": 68, "quality": 1}`

	cache := NewCache(kv, "k", 0)
	cache.nowFn = func() time.Time { return now }

	rec, ok := cache.Read(context.Background())
	require.True(t, ok)
	require.Equal(t, now, rec.Timestamp)
}

func TestCache_WriteFailureIsSwallowed(t *testing.T) {
	kv := newFakeKV()
	kv.setErr = errors.New("connection refused")
	cache := NewCache(kv, "k", 0)

	require.NotPanics(t, func() {
		cache.Write(context.Background(), vitals.Record{
			HeartRate: vitals.Float64Ptr(72),
			Timestamp: time.Now(),
		})
	})
}

func TestCache_Clear(t *testing.T) {
	kv := newFakeKV()
	cache := NewCache(kv, "k", 0)
	cache.Write(context.Background(), vitals.Record{
		HeartRate: vitals.Float64Ptr(72),
		Timestamp: time.Now(),
	})

	require.NoError(t, cache.Clear(context.Background()))

	_, ok := cache.Read(context.Background())
	require.False(t, ok)
}
