package syncer

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentum-health/vitalsync/internal/aggregator"
	"github.com/momentum-health/vitalsync/internal/core/vitals"
	"github.com/momentum-health/vitalsync/internal/live"
	"github.com/momentum-health/vitalsync/internal/polling"
	"github.com/momentum-health/vitalsync/internal/prefs"
	"github.com/momentum-health/vitalsync/internal/snapshot"
)

type serviceFixture struct {
	service *Service
	agg     *aggregator.Aggregator
	kv      *fakeKV
	source  *fakeTelemetrySource
	prefs   *prefs.MemoryStore
}

// fakeKV mirrors the snapshot package's test double; redeclared here to
// keep the fixture self-contained.
type fakeKV struct {
	values map[string]string
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	val, ok := f.values[key]
	if !ok {
		return "", snapshot.ErrCacheMiss
	}
	return val, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func newServiceFixture() *serviceFixture {
	agg := aggregator.New(aggregator.Options{})
	source := newFakeTelemetrySource()
	repo := &fakeHistoryRepo{}

	liveAdapter := live.NewAdapter(source, agg)
	pollAdapter := polling.NewAdapter(repo, agg, vitals.DefaultPolicy(), time.Hour)
	controller := NewController(liveAdapter, pollAdapter)

	kv := &fakeKV{values: make(map[string]string)}
	cache := snapshot.NewCache(kv, "vitals:snapshot:user-1", 0)
	prefStore := prefs.NewMemoryStore()

	return &serviceFixture{
		service: NewService(agg, cache, controller, prefStore),
		agg:     agg,
		kv:      kv,
		source:  source,
		prefs:   prefStore,
	}
}

func addHeartRates(agg *aggregator.Aggregator, rates ...float64) {
	base := time.Now().UTC().Add(-time.Duration(len(rates)) * time.Minute)
	for i, bpm := range rates {
		agg.Add(vitals.Record{
			HeartRate: vitals.Float64Ptr(bpm),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Quality:   vitals.QualityGood,
		})
	}
}

func TestService_InitializeRestoresSnapshot(t *testing.T) {
	fx := newServiceFixture()
	fx.kv.values["vitals:snapshot:user-1"] =
		`{"heart_rate": 68, "steps": 3100, "timestamp_ms": 1755682200000, "quality": 1}`

	fx.service.Initialize(context.Background())
	defer fx.service.Dispose()

	current, ok := fx.service.Current()
	require.True(t, ok)
	require.Equal(t, 68.0, *current.HeartRate)
	require.Equal(t, 3100, *current.Steps)
	require.Equal(t, vitals.QualityStale, current.Quality)
}

func TestService_InitializeIsIdempotent(t *testing.T) {
	fx := newServiceFixture()
	fx.kv.values["vitals:snapshot:user-1"] =
		`{"heart_rate": 68, "timestamp_ms": ` + nowMs() + `, "quality": 1}`

	fx.service.Initialize(context.Background())
	fx.service.Initialize(context.Background())
	defer fx.service.Dispose()

	require.Len(t, fx.service.RecentRecords(time.Hour), 1)
}

func TestService_InitializeWithoutSnapshot(t *testing.T) {
	fx := newServiceFixture()

	fx.service.Initialize(context.Background())
	defer fx.service.Dispose()

	_, ok := fx.service.Current()
	require.False(t, ok)
}

func TestService_PersistsUpdates(t *testing.T) {
	fx := newServiceFixture()
	fx.service.Initialize(context.Background())
	defer fx.service.Dispose()

	fx.agg.Add(vitals.Record{
		HeartRate: vitals.Float64Ptr(72),
		Timestamp: time.Now().UTC(),
		Quality:   vitals.QualityGood,
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := fx.kv.values["vitals:snapshot:user-1"]; ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected the update to reach the snapshot cache")
}

func TestService_StartSubscriptionHonorsPreference(t *testing.T) {
	fx := newServiceFixture()
	fx.prefs.SetPreferPolling("user-1", true)

	require.NoError(t, fx.service.StartSubscription(context.Background(), "user-1"))
	defer fx.service.StopSubscription()

	require.Equal(t, StatusPolling, fx.service.Status())
	require.Equal(t, 0, fx.source.startCount())
}

func TestService_StartSubscriptionDefaultsToLive(t *testing.T) {
	fx := newServiceFixture()

	require.NoError(t, fx.service.StartSubscription(context.Background(), "user-1"))
	defer fx.service.StopSubscription()

	require.Equal(t, StatusConnected, fx.service.Status())
	require.Equal(t, 1, fx.source.startCount())
}

func TestService_MeanHeartRate(t *testing.T) {
	tests := []struct {
		name     string
		rates    []float64
		wantMean float64
		wantOK   bool
	}{
		{name: "no samples", rates: nil, wantOK: false},
		{name: "single sample", rates: []float64{70}, wantMean: 70, wantOK: true},
		{name: "several samples", rates: []float64{70, 80}, wantMean: 75, wantOK: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newServiceFixture()
			addHeartRates(fx.agg, tc.rates...)

			mean, ok := fx.service.MeanHeartRate(time.Hour)
			require.Equal(t, tc.wantOK, ok)
			if ok {
				require.InDelta(t, tc.wantMean, mean, 0.0001)
			}
		})
	}
}

func TestService_MeanHeartRateIgnoresRecordsWithoutHeartRate(t *testing.T) {
	fx := newServiceFixture()
	fx.agg.Add(vitals.Record{
		Steps:     vitals.IntPtr(4200),
		Timestamp: time.Now().UTC(),
		Quality:   vitals.QualityGood,
	})

	_, ok := fx.service.MeanHeartRate(time.Hour)
	require.False(t, ok)
}

func TestService_StressIndicator(t *testing.T) {
	tests := []struct {
		name  string
		rates []float64
		want  bool
	}{
		{name: "elevated latest", rates: []float64{70, 70, 70, 90}, want: true},
		{name: "steady rates", rates: []float64{70, 72, 71, 70}, want: false},
		{name: "single sample", rates: []float64{190}, want: false},
		{name: "no samples", rates: nil, want: false},
		{name: "exactly at threshold is not stress", rates: []float64{100, 115}, want: false},
		{name: "just above threshold", rates: []float64{100, 115.01}, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newServiceFixture()
			addHeartRates(fx.agg, tc.rates...)

			require.Equal(t, tc.want, fx.service.StressIndicator(time.Hour))
		})
	}
}

func TestService_DisposeStopsEverything(t *testing.T) {
	fx := newServiceFixture()
	fx.service.Initialize(context.Background())

	require.NoError(t, fx.service.StartSubscription(context.Background(), "user-1"))
	fx.service.Dispose()

	require.Equal(t, StatusDisconnected, fx.service.Status())

	// Dispose is re-entrant and Initialize works again afterwards.
	fx.service.Dispose()
	fx.service.Initialize(context.Background())
	fx.service.Dispose()
}

func nowMs() string {
	return strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
}
