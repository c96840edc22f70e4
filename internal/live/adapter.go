package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

// Sink receives translated canonical records.
type Sink interface {
	Add(rec vitals.Record)
}

// Adapter consumes push telemetry batches, translates each message into
// a partial canonical record, and forwards non-empty results to the sink.
// Unknown metric types are dropped without failing the batch.
type Adapter struct {
	source TelemetrySource
	sink   Sink

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewAdapter creates a live adapter.
func NewAdapter(source TelemetrySource, sink Sink) *Adapter {
	if source == nil {
		panic("live: telemetry source is required")
	}
	if sink == nil {
		panic("live: sink is required")
	}
	return &Adapter{source: source, sink: sink}
}

// Start attaches to the telemetry stream and begins forwarding. Returns
// an error if the stream cannot be attached; the adapter stays stopped
// in that case.
func (a *Adapter) Start(ctx context.Context, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	batches, err := a.source.StartStreaming(streamCtx, userID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start telemetry stream: %w", err)
	}

	done := make(chan struct{})
	a.cancel = cancel
	a.done = done
	a.running = true

	go a.consume(streamCtx, batches, done)

	slog.Info("[LiveAdapter] Started", "user_id", userID)
	return nil
}

// Stop detaches from the stream. Idempotent; safe without a prior Start.
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
	a.source.StopStreaming()
	<-done

	slog.Info("[LiveAdapter] Stopped")
}

// Running reports whether the adapter is attached to a stream.
func (a *Adapter) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Adapter) consume(ctx context.Context, batches <-chan []TelemetryMessage, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				slog.Info("[LiveAdapter] Telemetry stream closed")
				return
			}
			a.forward(batch)
		}
	}
}

func (a *Adapter) forward(batch []TelemetryMessage) {
	forwarded := 0
	for _, msg := range batch {
		meta := map[string]string{
			vitals.MetaAdapter: "live",
		}
		if msg.Source != "" {
			meta[vitals.MetaSource] = msg.Source
		}

		rec, ok := vitals.Translate(
			vitals.MetricKind(msg.Type), msg.Value, msg.Timestamp, vitals.QualityGood, meta)
		if !ok {
			slog.Debug("[LiveAdapter] Dropped unknown telemetry type", "type", msg.Type)
			continue
		}
		a.sink.Add(rec)
		forwarded++
	}

	slog.Debug("[LiveAdapter] Forwarded batch",
		"batch_size", len(batch),
		"forwarded", forwarded,
	)
}
