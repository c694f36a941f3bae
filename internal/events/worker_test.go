package events

import (
	"context"
	"testing"
	"time"

	"github.com/similie/hyphen-rtsp-tunnel/internal/storage"
)

type fakeAdapter struct {
	name    string
	fail    bool
	storeFn func(storage.Object) (storage.Result, error)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Store(ctx context.Context, obj storage.Object) (storage.Result, error) {
	if f.storeFn != nil {
		return f.storeFn(obj)
	}
	if f.fail {
		return storage.Result{}, errFake
	}
	return storage.Result{Storage: f.name, StoredURI: "fake://" + obj.PayloadID}, nil
}

var errFake = &fakeErr{"store failed"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

func TestStorageWorkerPublishesStoredOnSuccess(t *testing.T) {
	bus := New()
	stored := bus.SubscribeStored()

	w := NewStorageWorker(bus, &fakeAdapter{name: "fake"}, 2, false, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	bus.PublishCaptured(Captured{SessionID: "s1", PayloadID: "p1", CapturedAt: time.Now()})

	select {
	case got := <-stored:
		if got.SessionID != "s1" || got.Storage != "fake" {
			t.Fatalf("unexpected stored event: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stored event")
	}
}

func TestStorageWorkerPublishesFailedOnAdapterError(t *testing.T) {
	bus := New()
	failed := bus.SubscribeFailed()

	w := NewStorageWorker(bus, &fakeAdapter{name: "fake", fail: true}, 2, false, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	bus.PublishCaptured(Captured{SessionID: "s2", PayloadID: "p2", CapturedAt: time.Now()})

	select {
	case got := <-failed:
		if got.SessionID != "s2" || got.Stage != "store" {
			t.Fatalf("unexpected failed event: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failed event")
	}
}
