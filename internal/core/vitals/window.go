package vitals

import (
	"fmt"
	"time"
)

// QueryClass groups metrics by what "freshness" means for them. Each class
// gets its own time window in the composite fetch: a 5-minute-old heart
// rate is stale, a 30-day-old weight is the best available data.
type QueryClass string

const (
	// ClassPoint covers point-in-time metrics (heart rate, HRV):
	// trailing lookback ending now.
	ClassPoint QueryClass = "point"

	// ClassCumulative covers midnight-anchored counters (steps, active
	// energy): local midnight to now.
	ClassCumulative QueryClass = "cumulative"

	// ClassSlow covers slowly-changing metrics (weight): long trailing
	// lookback, keep only the most recent sample.
	ClassSlow QueryClass = "slow"

	// ClassSleep covers stage-level sleep samples: from a fixed offset
	// before local midnight to now, so the prior night is captured even
	// when queried mid-morning. All stage samples are kept.
	ClassSleep QueryClass = "sleep"

	// ClassResting covers resting heart rate: trailing 24h, keep only the
	// most recent sample.
	ClassResting QueryClass = "resting"
)

// AllQueryClasses lists the classes in the order the composite fetch
// issues them. Order has no semantic weight (queries run concurrently);
// it only stabilizes logs and tests.
var AllQueryClasses = []QueryClass{ClassPoint, ClassCumulative, ClassSlow, ClassSleep, ClassResting}

// WindowRule describes how to compute the query window for one class.
type WindowRule struct {
	// Lookback is the trailing duration ending now. Ignored when
	// FromMidnight is set.
	Lookback time.Duration

	// FromMidnight anchors the window start at local midnight instead of
	// a trailing lookback.
	FromMidnight bool

	// MidnightOffset shifts a midnight-anchored start backwards (sleep
	// queries start 6h before midnight to catch the prior night).
	MidnightOffset time.Duration

	// KeepLatestOnly forwards only the most recent returned sample.
	KeepLatestOnly bool
}

// Window computes the concrete [start, end] bounds for the rule at the
// given instant. End is always now; midnight is resolved in now's location.
func (r WindowRule) Window(now time.Time) (time.Time, time.Time) {
	if r.FromMidnight {
		return LocalMidnight(now).Add(-r.MidnightOffset), now
	}
	return now.Add(-r.Lookback), now
}

// LocalMidnight returns 00:00 of now's calendar day in now's location.
func LocalMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// MetricsForClass maps each query class to the metric kinds it fetches.
var MetricsForClass = map[QueryClass][]MetricKind{
	ClassPoint:      {MetricHeartRate, MetricHRV},
	ClassCumulative: {MetricSteps, MetricActiveEnergy},
	ClassSlow:       {MetricWeightKg},
	ClassSleep: {
		MetricSleepInBed, MetricSleepAsleep, MetricSleepDeep,
		MetricSleepLight, MetricSleepREM, MetricSleepAwake,
	},
	ClassResting: {MetricRestingHeartRate},
}

// ParseLookback parses a duration string for window rules. Supports Go
// duration syntax (e.g., "5m", "24h") plus "Xd" for days.
func ParseLookback(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("lookback must not be empty")
	}

	// Handle the "d" suffix (days), which time.ParseDuration rejects.
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, fmt.Errorf("invalid lookback %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("lookback must be positive, got %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid lookback %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("lookback must be positive, got %q", s)
	}
	return d, nil
}
