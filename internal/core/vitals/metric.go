package vitals

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricKind identifies the physiological metric a raw sample or telemetry
// message carries. The enumeration is open: upstream sources ship kinds we
// do not understand yet, and those are silently dropped at translation
// (forward compatibility, not a fault).
type MetricKind string

const (
	MetricHeartRate        MetricKind = "heart_rate"
	MetricRestingHeartRate MetricKind = "resting_heart_rate"
	MetricHRV              MetricKind = "hrv_sdnn"
	MetricSteps            MetricKind = "steps"
	MetricActiveEnergy     MetricKind = "active_energy"
	MetricWeightKg         MetricKind = "weight_kg"

	// Sleep kinds arrive as stage-level samples. All of them populate the
	// sleep-hours field; the stage is preserved in metadata so consumers
	// can distinguish "in bed" from "asleep" without losing the raw record.
	MetricSleepInBed  MetricKind = "sleep_in_bed"
	MetricSleepAsleep MetricKind = "sleep_asleep"
	MetricSleepDeep   MetricKind = "sleep_deep"
	MetricSleepLight  MetricKind = "sleep_light"
	MetricSleepREM    MetricKind = "sleep_rem"
	MetricSleepAwake  MetricKind = "sleep_awake"
)

// Unit-conversion constants. Declared as decimals so repeated conversions
// stay exact; sources report kilograms and minutes, the canonical record
// carries pounds and hours.
var (
	kgPerLb          = decimal.NewFromFloat(2.20462)
	minutesPerHour   = decimal.NewFromInt(60)
	sleepStageByKind = map[MetricKind]string{
		MetricSleepInBed:  "in_bed",
		MetricSleepAsleep: "asleep",
		MetricSleepDeep:   "deep",
		MetricSleepLight:  "light",
		MetricSleepREM:    "rem",
		MetricSleepAwake:  "awake",
	}
)

// KilogramsToPounds converts a source weight to canonical pounds.
func KilogramsToPounds(kg float64) float64 {
	lb, _ := decimal.NewFromFloat(kg).Mul(kgPerLb).Float64()
	return lb
}

// MinutesToHours converts a source sleep duration to canonical hours.
func MinutesToHours(minutes float64) float64 {
	h, _ := decimal.NewFromFloat(minutes).Div(minutesPerHour).Float64()
	return h
}

// SleepStage returns the stage label for a sleep metric kind, or "" if the
// kind is not a sleep kind.
func SleepStage(kind MetricKind) string {
	return sleepStageByKind[kind]
}

// IsSleepKind reports whether kind is one of the stage-level sleep metrics.
func IsSleepKind(kind MetricKind) bool {
	_, ok := sleepStageByKind[kind]
	return ok
}

// Translate maps one raw sample onto a partial canonical record carrying
// only the field implied by the metric kind, plus provenance metadata.
// Unit conversion happens here and nowhere else.
//
// The second return value is false when the kind is unrecognized or the
// translation yields no populated field; callers discard such samples
// rather than forwarding them.
func Translate(kind MetricKind, value float64, ts time.Time, quality Quality, meta map[string]string) (Record, bool) {
	rec := Record{
		Timestamp: ts,
		Quality:   quality,
		Metadata:  cloneMeta(meta),
	}
	if rec.Metadata == nil {
		rec.Metadata = make(map[string]string, 2)
	}
	rec.Metadata[MetaMetric] = string(kind)

	switch kind {
	case MetricHeartRate, MetricRestingHeartRate:
		rec.HeartRate = Float64Ptr(value)
	case MetricHRV:
		rec.HRV = Float64Ptr(value)
	case MetricSteps:
		rec.Steps = IntPtr(int(value))
	case MetricActiveEnergy:
		rec.ActiveEnergy = Float64Ptr(value)
	case MetricWeightKg:
		rec.WeightLb = Float64Ptr(KilogramsToPounds(value))
	case MetricSleepInBed, MetricSleepAsleep, MetricSleepDeep,
		MetricSleepLight, MetricSleepREM, MetricSleepAwake:
		rec.SleepHours = Float64Ptr(MinutesToHours(value))
		rec.Metadata[MetaSleepStage] = sleepStageByKind[kind]
	default:
		// Unknown metric kind: drop, never error.
		return Record{}, false
	}

	if rec.Empty() {
		return Record{}, false
	}
	return rec, true
}
