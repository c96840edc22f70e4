package vitals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTranslate_FieldMapping(t *testing.T) {
	ts := time.Date(2026, 8, 20, 7, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		kind   MetricKind
		value  float64
		check  func(t *testing.T, rec Record)
		wantOK bool
	}{
		{
			name: "heart rate", kind: MetricHeartRate, value: 72, wantOK: true,
			check: func(t *testing.T, rec Record) {
				require.Equal(t, 72.0, *rec.HeartRate)
			},
		},
		{
			name: "resting heart rate lands on heart rate field", kind: MetricRestingHeartRate, value: 55, wantOK: true,
			check: func(t *testing.T, rec Record) {
				require.Equal(t, 55.0, *rec.HeartRate)
				require.Equal(t, string(MetricRestingHeartRate), rec.Metadata[MetaMetric])
			},
		},
		{
			name: "hrv", kind: MetricHRV, value: 48.5, wantOK: true,
			check: func(t *testing.T, rec Record) {
				require.Equal(t, 48.5, *rec.HRV)
			},
		},
		{
			name: "steps truncates to int", kind: MetricSteps, value: 4211.0, wantOK: true,
			check: func(t *testing.T, rec Record) {
				require.Equal(t, 4211, *rec.Steps)
			},
		},
		{
			name: "active energy", kind: MetricActiveEnergy, value: 320.5, wantOK: true,
			check: func(t *testing.T, rec Record) {
				require.Equal(t, 320.5, *rec.ActiveEnergy)
			},
		},
		{
			name: "weight converts kg to lb", kind: MetricWeightKg, value: 70, wantOK: true,
			check: func(t *testing.T, rec Record) {
				require.InDelta(t, 154.3234, *rec.WeightLb, 0.001)
			},
		},
		{
			name: "sleep converts minutes to hours and tags stage", kind: MetricSleepDeep, value: 450, wantOK: true,
			check: func(t *testing.T, rec Record) {
				require.Equal(t, 7.5, *rec.SleepHours)
				require.Equal(t, "deep", rec.Metadata[MetaSleepStage])
			},
		},
		{
			name: "unknown kind is dropped", kind: MetricKind("blood_glucose"), value: 98, wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, ok := Translate(tc.kind, tc.value, ts, QualityGood, nil)
			require.Equal(t, tc.wantOK, ok)
			if !tc.wantOK {
				return
			}
			require.Equal(t, ts, rec.Timestamp)
			require.Equal(t, QualityGood, rec.Quality)
			require.False(t, rec.Empty())
			tc.check(t, rec)
		})
	}
}

func TestTranslate_PreservesCallerMetadata(t *testing.T) {
	ts := time.Date(2026, 8, 20, 7, 30, 0, 0, time.UTC)
	meta := map[string]string{MetaSource: "apple_watch", MetaSampleID: "abc-123"}

	rec, ok := Translate(MetricHeartRate, 64, ts, QualityDegraded, meta)
	require.True(t, ok)
	require.Equal(t, "apple_watch", rec.Metadata[MetaSource])
	require.Equal(t, "abc-123", rec.Metadata[MetaSampleID])

	// Caller's map must not be aliased.
	rec.Metadata[MetaSource] = "changed"
	require.Equal(t, "apple_watch", meta[MetaSource])
}

func TestUnitConversions(t *testing.T) {
	require.InDelta(t, 154.3234, KilogramsToPounds(70), 0.001)
	require.Equal(t, 7.5, MinutesToHours(450))
	require.Equal(t, 0.0, MinutesToHours(0))
}

func TestSleepStage(t *testing.T) {
	require.Equal(t, "rem", SleepStage(MetricSleepREM))
	require.Equal(t, "in_bed", SleepStage(MetricSleepInBed))
	require.Equal(t, "", SleepStage(MetricHeartRate))
	require.True(t, IsSleepKind(MetricSleepAwake))
	require.False(t, IsSleepKind(MetricSteps))
}
