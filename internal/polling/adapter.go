package polling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/momentum-health/vitalsync/internal/core/storage"
	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

const DefaultInterval = 5 * time.Minute

// Sink receives translated canonical records.
type Sink interface {
	Add(rec vitals.Record)
}

// Adapter periodically replays the composite history queries against the
// configured repository and forwards translated samples to the sink. One
// cycle issues all five class-scoped queries concurrently; a failed query
// abandons the remainder of the cycle, but samples forwarded before the
// failure stay merged.
type Adapter struct {
	repo     storage.HistoryRepository
	sink     Sink
	policy   vitals.WindowPolicy
	interval time.Duration
	nowFn    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewAdapter creates a polling adapter. A non-positive interval falls
// back to DefaultInterval.
func NewAdapter(repo storage.HistoryRepository, sink Sink, policy vitals.WindowPolicy, interval time.Duration) *Adapter {
	if repo == nil {
		panic("polling: history repository is required")
	}
	if sink == nil {
		panic("polling: sink is required")
	}
	if policy == nil {
		policy = vitals.DefaultPolicy()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Adapter{
		repo:     repo,
		sink:     sink,
		policy:   policy,
		interval: interval,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the polling loop: one immediate fetch, then one per tick.
// Idempotent while running.
func (a *Adapter) Start(ctx context.Context, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	if !a.repo.IsInitialized() {
		return storage.ErrNotInitialized
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done
	a.running = true

	go a.loop(loopCtx, userID, done)

	slog.Info("[PollingAdapter] Started", "user_id", userID, "interval", a.interval)
	return nil
}

// Stop halts the loop. Idempotent; safe without a prior Start.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	done := a.done
	a.running = false
	a.cancel = nil
	a.done = nil
	a.mu.Unlock()

	cancel()
	<-done

	slog.Info("[PollingAdapter] Stopped")
}

// Running reports whether the polling loop is active.
func (a *Adapter) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Adapter) loop(ctx context.Context, userID string, done chan struct{}) {
	defer close(done)

	a.PollOnce(ctx, userID)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.PollOnce(ctx, userID)
		}
	}
}

// PollOnce runs a single composite fetch cycle. Failures are logged, not
// returned: a broken cycle must not take down the loop or the caller.
func (a *Adapter) PollOnce(ctx context.Context, userID string) {
	if !a.repo.IsInitialized() {
		slog.Warn("[PollingAdapter] Skipping cycle, repository not initialized")
		return
	}

	now := a.nowFn()
	g, groupCtx := errgroup.WithContext(ctx)

	for _, class := range vitals.AllQueryClasses {
		class := class
		g.Go(func() error {
			return a.fetchClass(groupCtx, userID, class, now)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Warn("[PollingAdapter] Cycle abandoned", "user_id", userID, "error", err)
		return
	}

	slog.Debug("[PollingAdapter] Cycle complete", "user_id", userID)
}

func (a *Adapter) fetchClass(ctx context.Context, userID string, class vitals.QueryClass, now time.Time) error {
	rule, ok := a.policy[class]
	if !ok {
		return fmt.Errorf("no window rule for query class %q", class)
	}

	start, end := rule.Window(now)
	kinds := vitals.MetricsForClass[class]

	samples, err := a.repo.GetHealthData(ctx, userID, kinds, start, end)
	if err != nil {
		return fmt.Errorf("query class %q failed: %w", class, err)
	}

	if rule.KeepLatestOnly {
		samples = latestOnly(samples)
	}

	for _, sample := range samples {
		a.forward(sample)
	}
	return nil
}

func (a *Adapter) forward(sample storage.Sample) {
	meta := map[string]string{
		vitals.MetaAdapter:  "polling",
		vitals.MetaSampleID: sample.ID,
	}
	if sample.Source != "" {
		meta[vitals.MetaSource] = sample.Source
	}

	rec, ok := vitals.Translate(sample.Type, sample.Value, sample.Timestamp, vitals.QualityDegraded, meta)
	if !ok {
		slog.Debug("[PollingAdapter] Dropped unknown sample type", "type", sample.Type)
		return
	}
	a.sink.Add(rec)
}

// latestOnly keeps the newest sample of the batch. Slow-moving metrics
// like weight only want their most recent reading merged.
func latestOnly(samples []storage.Sample) []storage.Sample {
	if len(samples) <= 1 {
		return samples
	}
	latest := samples[0]
	for _, s := range samples[1:] {
		if s.Timestamp.After(latest.Timestamp) {
			latest = s
		}
	}
	return []storage.Sample{latest}
}
