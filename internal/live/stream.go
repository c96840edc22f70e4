package live

import (
	"context"
	"time"
)

// TelemetryMessage is one push sample from the wearable stream. Batches
// arrive as slices; each message carries its own metric type and capture
// timestamp.
type TelemetryMessage struct {
	Type      string    `json:"type"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// TelemetrySource delivers push telemetry batches for one user.
//
// StartStreaming attaches to the stream and returns the batch channel;
// the channel closes when the stream ends or ctx is cancelled.
// StopStreaming detaches and must be safe to call without a prior start.
type TelemetrySource interface {
	StartStreaming(ctx context.Context, userID string) (<-chan []TelemetryMessage, error)
	StopStreaming()
}
