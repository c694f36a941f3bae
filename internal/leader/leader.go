// Package leader provides cross-replica mutual exclusion for the single
// active capture session, via a Redis-backed distributed lock (Redlock).
// Intra-replica exclusion is a separate concern, owned by internal/capture.
package leader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/similie/hyphen-rtsp-tunnel/internal/httputil"
	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
)

var log = logging.L("leader")

const (
	lockKey         = "mqtt:leader:lock"
	lockTTL         = 10 * time.Second
	renewInterval   = 5 * time.Second
	acquireInterval = 1500 * time.Millisecond
	acquireJitter   = 0.33 // ±500ms around 1.5s
)

// Elector holds the distributed lock while leader and notifies subscribers
// on election and revocation.
type Elector struct {
	rs      *redsync.Redsync
	mutex   *redsync.Mutex
	backoff httputil.JitteredBackoff

	isLeader atomic.Bool

	mu       sync.Mutex
	elected  []chan struct{}
	revoked  []chan string
}

// New builds an Elector against the given Redis address.
func New(redisAddr string) *Elector {
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	pool := goredis.NewPool(client)
	rs := redsync.New(pool)

	return &Elector{
		rs:      rs,
		mutex:   rs.NewMutex(lockKey, redsync.WithExpiry(lockTTL)),
		backoff: httputil.JitteredBackoff{Interval: acquireInterval, JitterFrac: acquireJitter},
	}
}

// OnElected registers a channel that receives a signal each time this
// replica becomes leader.
func (e *Elector) OnElected() <-chan struct{} {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	e.elected = append(e.elected, ch)
	e.mu.Unlock()
	return ch
}

// OnRevoked registers a channel that receives a reason each time this
// replica loses leadership (lock lost, renewal failed, or shutdown).
func (e *Elector) OnRevoked() <-chan string {
	ch := make(chan string, 1)
	e.mu.Lock()
	e.revoked = append(e.revoked, ch)
	e.mu.Unlock()
	return ch
}

// IsLeader reports whether this replica currently holds the lock.
func (e *Elector) IsLeader() bool {
	return e.isLeader.Load()
}

// Run acquires and renews the lock until ctx is canceled, emitting elected
// and revoked events as leadership changes.
func (e *Elector) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := e.mutex.LockContext(ctx); err != nil {
			if err := e.backoff.Wait(ctx); err != nil {
				return
			}
			continue
		}

		e.becomeLeader()
		e.holdLock(ctx)
	}
}

func (e *Elector) becomeLeader() {
	e.isLeader.Store(true)
	log.Info("became leader")
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.elected {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (e *Elector) loseLeadership(reason string) {
	e.isLeader.Store(false)
	log.Warn("lost leadership", "reason", reason)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.revoked {
		select {
		case ch <- reason:
		default:
		}
	}
}

// holdLock renews the lock every renewInterval until renewal fails or ctx
// is canceled.
func (e *Elector) holdLock(ctx context.Context) {
	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.release("shutdown")
			return
		case <-ticker.C:
			ok, err := e.mutex.ExtendContext(ctx)
			if err != nil || !ok {
				e.loseLeadership(renewalFailureReason(err))
				return
			}
		}
	}
}

func (e *Elector) release(reason string) {
	_, _ = e.mutex.Unlock()
	e.loseLeadership(reason)
}

func renewalFailureReason(err error) string {
	if err == nil {
		return "lock extend rejected"
	}
	return err.Error()
}
