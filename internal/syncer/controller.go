package syncer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/momentum-health/vitalsync/internal/live"
	"github.com/momentum-health/vitalsync/internal/polling"
)

// Status is the connection state of the sync session.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusPolling
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusPolling:
		return "polling"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

const statusChannelBuffer = 32

// Controller owns the adapter lifecycle and the connection-status state
// machine. It is the only component allowed to start or stop an adapter;
// exactly one adapter acts as the primary feed per session, chosen at
// Start and not re-evaluated until the next Start.
type Controller struct {
	liveAdapter *live.Adapter
	pollAdapter *polling.Adapter

	mu       sync.Mutex
	status   Status
	statusCh chan Status
}

// NewController creates a controller in the disconnected state.
func NewController(liveAdapter *live.Adapter, pollAdapter *polling.Adapter) *Controller {
	if liveAdapter == nil {
		panic("syncer: live adapter is required")
	}
	if pollAdapter == nil {
		panic("syncer: polling adapter is required")
	}
	return &Controller{
		liveAdapter: liveAdapter,
		pollAdapter: pollAdapter,
		status:      StatusDisconnected,
		statusCh:    make(chan Status, statusChannelBuffer),
	}
}

// Status returns the current connection status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// StatusChanges returns the channel of status transitions. One event is
// emitted per actual transition; repeated calls that keep the same state
// emit nothing.
func (c *Controller) StatusChanges() <-chan Status {
	return c.statusCh
}

// setStatus transitions to next, emitting only on actual change. Caller
// holds the lock.
func (c *Controller) setStatus(next Status) {
	if c.status == next {
		return
	}
	slog.Info("[Controller] Status changed", "from", c.status, "to", next)
	c.status = next

	select {
	case c.statusCh <- next:
	default:
		slog.Warn("[Controller] Status channel full, dropping event", "status", next)
	}
}

// Start begins a sync session for the user. With preferPolling the
// polling adapter becomes the primary feed and no live connection is
// attempted; otherwise the live adapter attaches and one priming poll
// runs so the first render does not wait on the stream.
//
// A second Start while a session is active is a no-op.
func (c *Controller) Start(ctx context.Context, userID string, preferPolling bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case StatusConnecting, StatusConnected, StatusPolling:
		return nil
	}

	c.setStatus(StatusConnecting)

	if preferPolling {
		if err := c.pollAdapter.Start(ctx, userID); err != nil {
			c.setStatus(StatusError)
			return err
		}
		c.setStatus(StatusPolling)
		return nil
	}

	if err := c.liveAdapter.Start(ctx, userID); err != nil {
		c.setStatus(StatusError)
		return err
	}

	// Prime the aggregator with one best-effort fetch; the live stream
	// may take a while to deliver its first batch.
	c.pollAdapter.PollOnce(ctx, userID)

	c.setStatus(StatusConnected)
	return nil
}

// PollOnce runs one best-effort composite fetch outside the schedule.
func (c *Controller) PollOnce(ctx context.Context, userID string) {
	c.pollAdapter.PollOnce(ctx, userID)
}

// Stop unconditionally halts whichever adapters are running and returns
// to disconnected. Safe to call repeatedly or when never started.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.liveAdapter.Stop()
	c.pollAdapter.Stop()
	c.setStatus(StatusDisconnected)
}
