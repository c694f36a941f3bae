package events

import (
	"context"
	"os"
	"time"

	"github.com/similie/hyphen-rtsp-tunnel/internal/stage"
	"github.com/similie/hyphen-rtsp-tunnel/internal/storage"
	"github.com/similie/hyphen-rtsp-tunnel/internal/workerpool"
)

// StorageWorker drains snapshot:captured events into a storage.Adapter with
// bounded concurrency, emitting snapshot:stored or snapshot:failed in turn.
// No captured event is retried on storage failure; per the gateway's
// no-retry storage policy the operator is expected to reconcile orphaned
// local files out of band.
type StorageWorker struct {
	bus         *Bus
	adapter     storage.Adapter
	pool        *workerpool.Pool
	deleteLocal bool
	useDeviceTZ bool
}

// NewStorageWorker builds a StorageWorker with the given concurrency,
// subscribing to bus immediately. Call Run to start consuming. When
// useDeviceTZ is true, the day bucket for each event is computed in the
// device's registered timezone offset rather than UTC.
func NewStorageWorker(bus *Bus, adapter storage.Adapter, concurrency int, deleteLocal, useDeviceTZ bool) *StorageWorker {
	if concurrency < 1 {
		concurrency = 2
	}
	return &StorageWorker{
		bus:         bus,
		adapter:     adapter,
		pool:        workerpool.New(concurrency, concurrency*4),
		deleteLocal: deleteLocal,
		useDeviceTZ: useDeviceTZ,
	}
}

// Run consumes captured events until ctx is canceled. Intended to be
// started in its own goroutine by the gateway's lifecycle.
func (w *StorageWorker) Run(ctx context.Context) {
	captured := w.bus.SubscribeCaptured()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-captured:
			if !ok {
				return
			}
			ev := c
			if !w.pool.Submit(func() { w.store(ctx, ev) }) {
				log.Warn("storage worker queue full, dropping captured event", "sessionId", ev.SessionID)
				w.bus.PublishFailed(Failed{
					SessionID: ev.SessionID,
					DeviceID:  ev.DeviceID,
					PayloadID: ev.PayloadID,
					Remote:    ev.Remote,
					Stage:     string(stage.Store),
					Error:     "storage worker saturated",
				})
			}
		}
	}
}

// Drain waits for in-flight storage tasks to finish, bounded by ctx.
func (w *StorageWorker) Drain(ctx context.Context) {
	w.pool.StopAccepting()
	w.pool.Drain(ctx)
}

func (w *StorageWorker) store(ctx context.Context, c Captured) {
	day := w.dayFor(c)
	res, err := w.adapter.Store(ctx, storage.Object{
		LocalPath:  c.LocalPath,
		DeviceID:   c.DeviceID,
		PayloadID:  c.PayloadID,
		CapturedAt: c.CapturedAt,
		Day:        day,
	})
	if err != nil {
		log.Error("storage failed", "sessionId", c.SessionID, "error", err)
		se := stage.Wrap(stage.Store, err)
		w.bus.PublishFailed(Failed{
			SessionID: c.SessionID,
			DeviceID:  c.DeviceID,
			PayloadID: c.PayloadID,
			Remote:    c.Remote,
			Stage:     string(se.Stage),
			Error:     se.Unwrap().Error(),
		})
		return
	}

	if res.DeleteLocal {
		if err := os.Remove(c.LocalPath); err != nil {
			log.Warn("failed to remove local snapshot after store", "path", c.LocalPath, "error", err)
		}
	}

	w.bus.PublishStored(Stored{
		Captured:  c,
		Storage:   res.Storage,
		StoredURI: res.StoredURI,
		Day:       day,
	})
}

// dayFor derives the YYYY-MM-DD bucket for a captured event. When
// useDeviceTZ is set and the device has a registered offset, capturedAt is
// shifted by that offset before formatting; offsets outside [-12,14] are
// treated as 0, per the day bucket's defined domain.
func (w *StorageWorker) dayFor(c Captured) string {
	t := c.CapturedAt.UTC()
	if w.useDeviceTZ && c.TZOffsetHours != nil {
		offset := *c.TZOffsetHours
		if offset < -12 || offset > 14 {
			offset = 0
		}
		t = t.Add(time.Duration(offset) * time.Hour)
	}
	return t.Format("2006-01-02")
}
