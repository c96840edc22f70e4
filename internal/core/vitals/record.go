package vitals

import (
	"fmt"
	"time"
)

// Quality grades how trustworthy a record is at read time.
// The integer values are stable: they are persisted in the snapshot cache.
type Quality int

const (
	QualityUnknown  Quality = 0
	QualityGood     Quality = 1
	QualityDegraded Quality = 2
	QualityStale    Quality = 3
)

// String returns the lowercase label used in logs and API responses.
func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	case QualityStale:
		return "stale"
	default:
		return "unknown"
	}
}

// QualityFromCode maps a persisted integer code back to a Quality.
// Unrecognized codes map to QualityUnknown rather than failing.
func QualityFromCode(code int) Quality {
	switch Quality(code) {
	case QualityGood, QualityDegraded, QualityStale:
		return Quality(code)
	default:
		return QualityUnknown
	}
}

// Metadata keys stamped by the adapters. Metadata is provenance only:
// consumers must tolerate its absence entirely.
const (
	MetaSource     = "source"
	MetaAdapter    = "adapter"
	MetaMetric     = "metric"
	MetaSleepStage = "sleep_stage"
	MetaSampleID   = "sample_id"
)

// Record is one fused observation of a user's physiological state.
// Every metric field is optional (nil = not observed); Timestamp is required.
//
// Records are treated as immutable once handed to the aggregator: Merge
// produces a new record instead of mutating either input, so history
// entries never change after the fact.
type Record struct {
	// HeartRate is beats per minute.
	HeartRate *float64 `json:"heart_rate,omitempty"`

	// Steps is the cumulative step count for the reporting window
	// (midnight-to-now for polled data, sensor-reported for live data).
	Steps *int `json:"steps,omitempty"`

	// HRV is heart-rate variability (SDNN, milliseconds).
	HRV *float64 `json:"hrv,omitempty"`

	// SleepHours is sleep duration in hours. Sources report minutes;
	// conversion happens at the adapter boundary.
	SleepHours *float64 `json:"sleep_hours,omitempty"`

	// ActiveEnergy is active energy burned in kilocalories.
	ActiveEnergy *float64 `json:"active_energy,omitempty"`

	// WeightLb is body weight in pounds. Sources report kilograms;
	// conversion happens at the adapter boundary.
	WeightLb *float64 `json:"weight_lb,omitempty"`

	// Timestamp is when the observation occurred (source clock).
	Timestamp time.Time `json:"timestamp"`

	Quality Quality `json:"quality"`

	// Metadata carries provenance (source adapter, sleep-stage kind,
	// originating sample ID). Diagnostic only, never business data.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Empty reports whether the record carries no metric field at all.
// Adapters discard empty records instead of forwarding them.
func (r Record) Empty() bool {
	return r.HeartRate == nil &&
		r.Steps == nil &&
		r.HRV == nil &&
		r.SleepHours == nil &&
		r.ActiveEnergy == nil &&
		r.WeightLb == nil
}

// Validate ensures the record is acceptable for aggregation.
func (r Record) Validate() error {
	if r.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if r.Empty() {
		return fmt.Errorf("record has no populated metric field")
	}
	return nil
}

// Merge folds an incoming partial record into r and returns the result.
// Field policy is last-writer-wins per field: a field present in incoming
// overwrites r's field, an absent field preserves r's value.
//
// Metadata is overwritten, not deep-merged: the result's metadata reflects
// only the most recent contributing message. Merging provenance maps would
// grow without bound and metadata is diagnostic, not authoritative state.
func (r Record) Merge(incoming Record) Record {
	out := r.Clone()

	if incoming.HeartRate != nil {
		out.HeartRate = clonePtr(incoming.HeartRate)
	}
	if incoming.Steps != nil {
		out.Steps = clonePtr(incoming.Steps)
	}
	if incoming.HRV != nil {
		out.HRV = clonePtr(incoming.HRV)
	}
	if incoming.SleepHours != nil {
		out.SleepHours = clonePtr(incoming.SleepHours)
	}
	if incoming.ActiveEnergy != nil {
		out.ActiveEnergy = clonePtr(incoming.ActiveEnergy)
	}
	if incoming.WeightLb != nil {
		out.WeightLb = clonePtr(incoming.WeightLb)
	}

	out.Timestamp = incoming.Timestamp
	out.Quality = incoming.Quality
	out.Metadata = cloneMeta(incoming.Metadata)

	return out
}

// Clone returns a deep copy. Pointer fields and the metadata map are
// duplicated so the copy shares no mutable state with the original.
func (r Record) Clone() Record {
	out := r
	out.HeartRate = clonePtr(r.HeartRate)
	out.Steps = clonePtr(r.Steps)
	out.HRV = clonePtr(r.HRV)
	out.SleepHours = clonePtr(r.SleepHours)
	out.ActiveEnergy = clonePtr(r.ActiveEnergy)
	out.WeightLb = clonePtr(r.WeightLb)
	out.Metadata = cloneMeta(r.Metadata)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Float64Ptr and IntPtr are construction helpers for partial records.
func Float64Ptr(v float64) *float64 { return &v }
func IntPtr(v int) *int             { return &v }
