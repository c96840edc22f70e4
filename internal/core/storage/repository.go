package storage

import (
	"context"
	"errors"
	"time"

	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

// ErrNotInitialized is returned by repositories that require an explicit
// Initialize call before they can serve queries.
var ErrNotInitialized = errors.New("history repository not initialized")

// Sample is one raw historical observation as reported by the wearable
// data repository, before translation into a canonical record.
type Sample struct {
	// Type is the metric kind reported by the source.
	Type vitals.MetricKind

	// Value is the raw numeric reading in source units (kg, minutes, bpm).
	Value float64

	// Timestamp is when the sample was recorded (source clock).
	Timestamp time.Time

	// Source names the originating device or app (e.g., "apple_watch").
	Source string

	// ID is the source-assigned sample identifier, carried into record
	// metadata for provenance.
	ID string
}

// HistoryRepository is the pull-style historical data source consumed by
// the polling adapter. Implementations are network-bound (SQL store,
// vendor cloud API) and must honor context cancellation.
type HistoryRepository interface {
	// IsInitialized reports whether the repository is ready to serve
	// GetHealthData without an Initialize call.
	IsInitialized() bool

	// Initialize prepares the repository (connection checks, auth).
	// Safe to call when already initialized.
	Initialize(ctx context.Context) error

	// GetHealthData returns all samples of the given metric kinds for one
	// user with timestamps in [start, end). Result order is unspecified.
	GetHealthData(ctx context.Context, userID string, types []vitals.MetricKind, start, end time.Time) ([]Sample, error)
}
