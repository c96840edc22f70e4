package aggregator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

const (
	defaultMaxHistoryAge     = 24 * time.Hour
	defaultMaxHistoryEntries = 5000
	updateChannelBuffer      = 16
)

// Options bounds the in-memory history.
type Options struct {
	// MaxHistoryAge prunes records older than this from history.
	MaxHistoryAge time.Duration

	// MaxHistoryEntries caps history length regardless of age.
	MaxHistoryEntries int
}

func (o Options) normalized() Options {
	n := o
	if n.MaxHistoryAge <= 0 {
		n.MaxHistoryAge = defaultMaxHistoryAge
	}
	if n.MaxHistoryEntries <= 0 {
		n.MaxHistoryEntries = defaultMaxHistoryEntries
	}
	return n
}

// Aggregator owns the authoritative "current" canonical record and a
// bounded history of merged records.
//
// Add is the only mutator and is invoked only by the two adapters; merges
// apply in Add-invocation order (last-writer-wins per field, no global
// ordering between the live and polled producers).
type Aggregator struct {
	mu      sync.Mutex
	current *vitals.Record
	history []vitals.Record
	subs    map[int]chan vitals.Record
	nextSub int

	opts  Options
	nowFn func() time.Time
}

// New creates an aggregator with the given history bounds.
func New(opts Options) *Aggregator {
	return &Aggregator{
		subs:  make(map[int]chan vitals.Record),
		opts:  opts.normalized(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// Add merges an incoming partial record into the current record, appends
// the result to history, and publishes it to subscribers.
//
// Records with no populated field are rejected: adapters already discard
// them, so reaching this path indicates a caller bug worth logging.
func (a *Aggregator) Add(rec vitals.Record) {
	if err := rec.Validate(); err != nil {
		slog.Warn("[Aggregator] Rejected invalid record", "error", err)
		return
	}

	a.mu.Lock()

	var merged vitals.Record
	if a.current == nil {
		merged = rec.Clone()
	} else {
		merged = a.current.Merge(rec)
	}
	a.current = &merged

	a.history = append(a.history, merged)
	a.prune()

	// Publish under the lock: sends are non-blocking and unsubscribe
	// closes channels under the same lock, so no send races a close.
	for _, ch := range a.subs {
		select {
		case ch <- merged:
		default:
			// Slow consumer: drop rather than block the ingest path.
		}
	}
	a.mu.Unlock()
}

// prune enforces the history bounds. Caller holds the lock.
func (a *Aggregator) prune() {
	cutoff := a.nowFn().Add(-a.opts.MaxHistoryAge)

	firstKept := 0
	for firstKept < len(a.history) && a.history[firstKept].Timestamp.Before(cutoff) {
		firstKept++
	}
	if over := len(a.history) - firstKept - a.opts.MaxHistoryEntries; over > 0 {
		firstKept += over
	}
	if firstKept > 0 {
		a.history = append([]vitals.Record(nil), a.history[firstKept:]...)
	}
}

// Current returns the latest merged record. The second return value is
// false when no record has ever been added.
func (a *Aggregator) Current() (vitals.Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return vitals.Record{}, false
	}
	return a.current.Clone(), true
}

// Recent returns retained records whose timestamp falls within the
// trailing window ending now. Retrieval order follows insertion order;
// chronological ordering across the two producers is not guaranteed.
func (a *Aggregator) Recent(window time.Duration) []vitals.Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.nowFn().Add(-window)
	var out []vitals.Record
	for _, rec := range a.history {
		if !rec.Timestamp.Before(cutoff) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// Subscribe registers an update channel receiving every merged record.
// The returned cancel func unregisters and closes the channel; it is safe
// to call more than once.
func (a *Aggregator) Subscribe() (<-chan vitals.Record, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan vitals.Record, updateChannelBuffer)
	a.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			close(ch)
			a.mu.Unlock()
		})
	}
	return ch, cancel
}
