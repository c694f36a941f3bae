// Package capture enforces the replica-wide single-capture invariant: at
// most one snapshot capture in flight at a time, intra-replica. Cross-
// replica exclusion is a separate concern, owned by internal/leader.
package capture

import (
	"sync"

	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
)

var log = logging.L("capture")

// Coordinator holds the single capture slot for this replica.
type Coordinator struct {
	mu          sync.Mutex
	inFlight    bool
	sessionID   string
	abortReason chan string
}

// New creates an idle Coordinator.
func New() *Coordinator {
	return &Coordinator{abortReason: make(chan string, 1)}
}

// Reserve atomically claims the capture slot for sessionID. Returns false
// if a capture is already in flight.
func (c *Coordinator) Reserve(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	c.sessionID = sessionID
	return true
}

// Release clears the capture slot unconditionally.
func (c *Coordinator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	c.sessionID = ""
}

// InFlight reports whether a capture currently holds the slot, and which
// session holds it.
func (c *Coordinator) InFlight() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight, c.sessionID
}

// Abort signals the holder of the capture slot (if any) to terminate early,
// used when the leader lock is revoked mid-capture. It does not itself
// release the slot — the in-flight capture's own teardown path does that
// after observing the abort.
func (c *Coordinator) Abort(reason string) {
	c.mu.Lock()
	inFlight := c.inFlight
	c.mu.Unlock()
	if !inFlight {
		return
	}
	log.Warn("aborting in-flight capture", "reason", reason)
	select {
	case c.abortReason <- reason:
	default:
	}
}

// Aborted returns a channel that receives the reason string when Abort is
// called. Consumed by the active capture's watchdog select loop.
func (c *Coordinator) Aborted() <-chan string {
	return c.abortReason
}
