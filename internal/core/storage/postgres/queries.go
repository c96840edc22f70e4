package postgres

// SQL queries for historical health sample retrieval.

const (
	// queryGetHealthData fetches samples of the requested metric kinds for
	// one user within [start, end). The half-open interval mirrors the
	// composite-fetch window semantics: end is always "now" and the next
	// cycle's window overlaps rather than gaps.
	queryGetHealthData = `
		SELECT
			id, metric_type, value, recorded_at, source
		FROM health_samples
		WHERE user_id = $1
		  AND metric_type = ANY($2)
		  AND recorded_at >= $3
		  AND recorded_at < $4
		ORDER BY recorded_at ASC
	`
)
