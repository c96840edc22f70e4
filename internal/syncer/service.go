package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/momentum-health/vitalsync/internal/aggregator"
	"github.com/momentum-health/vitalsync/internal/core/vitals"
	"github.com/momentum-health/vitalsync/internal/prefs"
	"github.com/momentum-health/vitalsync/internal/snapshot"
)

// stressThreshold flags a latest heart rate more than 15% above the
// trailing-window mean.
var stressThreshold = decimal.NewFromFloat(1.15)

// Service is the facade the rest of the application talks to. It wires
// the aggregator, the snapshot cache, the mode controller and the
// preference store behind a small read/control surface.
type Service struct {
	agg        *aggregator.Aggregator
	cache      *snapshot.Cache
	controller *Controller
	prefStore  prefs.Store

	mu            sync.Mutex
	initialized   bool
	persistCancel func()
}

// NewService creates the facade. All collaborators are required.
func NewService(agg *aggregator.Aggregator, cache *snapshot.Cache, controller *Controller, prefStore prefs.Store) *Service {
	if agg == nil {
		panic("syncer: aggregator is required")
	}
	if cache == nil {
		panic("syncer: snapshot cache is required")
	}
	if controller == nil {
		panic("syncer: controller is required")
	}
	if prefStore == nil {
		panic("syncer: preference store is required")
	}
	return &Service{
		agg:        agg,
		cache:      cache,
		controller: controller,
		prefStore:  prefStore,
	}
}

// Initialize restores the persisted snapshot into the aggregator and
// starts the opportunistic persist loop. Idempotent.
func (s *Service) Initialize(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return
	}

	if rec, ok := s.cache.Read(ctx); ok {
		s.agg.Add(rec)
		slog.Info("[Syncer] Restored cached snapshot", "timestamp", rec.Timestamp)
	}

	updates, cancel := s.agg.Subscribe()
	s.persistCancel = cancel
	go s.persistLoop(updates)

	s.initialized = true
	slog.Info("[Syncer] Initialized")
}

// persistLoop writes each merged record to the snapshot cache so the
// next session can restore the freshest state. Write is best effort.
func (s *Service) persistLoop(updates <-chan vitals.Record) {
	for rec := range updates {
		s.cache.Write(context.Background(), rec)
	}
}

// StartSubscription starts a sync session for the user, honoring the
// stored prefer-polling preference. The preference is read once here; a
// failed read falls back to the live path.
func (s *Service) StartSubscription(ctx context.Context, userID string) error {
	preferPolling, err := s.prefStore.PreferPolling(ctx, userID)
	if err != nil {
		slog.Warn("[Syncer] Failed to read prefer-polling preference, defaulting to live",
			"user_id", userID, "error", err)
		preferPolling = false
	}
	return s.controller.Start(ctx, userID, preferPolling)
}

// PollOnce runs one best-effort composite fetch outside the schedule.
// Failures are swallowed by the polling layer.
func (s *Service) PollOnce(ctx context.Context, userID string) {
	s.controller.PollOnce(ctx, userID)
}

// StopSubscription tears down the active session. Safe to call anytime.
func (s *Service) StopSubscription() {
	s.controller.Stop()
}

// Dispose stops the session and the persist loop. The service can be
// initialized again afterwards.
func (s *Service) Dispose() {
	s.controller.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistCancel != nil {
		s.persistCancel()
		s.persistCancel = nil
	}
	s.initialized = false
	slog.Info("[Syncer] Disposed")
}

// Status returns the current connection status.
func (s *Service) Status() Status {
	return s.controller.Status()
}

// StatusChanges returns the connection-status transition channel.
func (s *Service) StatusChanges() <-chan Status {
	return s.controller.StatusChanges()
}

// Updates subscribes to merged record updates. The cancel func releases
// the subscription.
func (s *Service) Updates() (<-chan vitals.Record, func()) {
	return s.agg.Subscribe()
}

// Current returns the latest merged record, if any.
func (s *Service) Current() (vitals.Record, bool) {
	return s.agg.Current()
}

// RecentRecords returns retained records within the trailing window.
func (s *Service) RecentRecords(window time.Duration) []vitals.Record {
	return s.agg.Recent(window)
}

// MeanHeartRate averages the heart-rate-bearing records within the
// trailing window. Returns false when no such record exists.
func (s *Service) MeanHeartRate(window time.Duration) (float64, bool) {
	rates := s.heartRates(window)
	if len(rates) == 0 {
		return 0, false
	}

	sum := decimal.Zero
	for _, r := range rates {
		sum = sum.Add(r)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(rates))))
	return mean.InexactFloat64(), true
}

// StressIndicator reports whether the latest heart rate exceeds 115% of
// the mean of the earlier samples in the trailing window. At least two
// heart-rate samples are required; fewer yields false.
func (s *Service) StressIndicator(window time.Duration) bool {
	rates := s.heartRates(window)
	if len(rates) < 2 {
		return false
	}

	latest := rates[len(rates)-1]
	earlier := rates[:len(rates)-1]

	sum := decimal.Zero
	for _, r := range earlier {
		sum = sum.Add(r)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(earlier))))

	return latest.GreaterThan(mean.Mul(stressThreshold))
}

// heartRates extracts heart-rate values from windowed records in
// retention order.
func (s *Service) heartRates(window time.Duration) []decimal.Decimal {
	var rates []decimal.Decimal
	for _, rec := range s.agg.Recent(window) {
		if rec.HeartRate != nil {
			rates = append(rates, decimal.NewFromFloat(*rec.HeartRate))
		}
	}
	return rates
}
