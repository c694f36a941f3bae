package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeLookup struct {
	deviceCalls atomic.Int32
	sensorCalls atomic.Int32
	certCalls   atomic.Int32

	device     Device
	deviceErr  error
	sensorMeta SensorMeta
	sensorErr  error
	certPEM    string
	certErr    error
}

func (f *fakeLookup) LookupDevice(ctx context.Context, deviceID string) (Device, error) {
	f.deviceCalls.Add(1)
	return f.device, f.deviceErr
}

func (f *fakeLookup) LookupSensorMeta(ctx context.Context, deviceID string) (SensorMeta, error) {
	f.sensorCalls.Add(1)
	return f.sensorMeta, f.sensorErr
}

func (f *fakeLookup) LookupCertificate(ctx context.Context, deviceID string) (string, error) {
	f.certCalls.Add(1)
	return f.certPEM, f.certErr
}

func TestDeviceCachesWithinTTL(t *testing.T) {
	fake := &fakeLookup{device: Device{ID: "devA"}}
	cache := New(fake)

	for i := 0; i < 3; i++ {
		got := cache.Device(context.Background(), "devA")
		if got.ID != "devA" {
			t.Fatalf("unexpected device: %+v", got)
		}
	}

	if got := fake.deviceCalls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 collaborator call across repeated reads, got %d", got)
	}
}

func TestDeviceLoadFailureReturnsEmptyAndDoesNotCache(t *testing.T) {
	fake := &fakeLookup{deviceErr: errors.New("upstream down")}
	cache := New(fake)

	got := cache.Device(context.Background(), "devA")
	if got.ID != "" {
		t.Fatalf("expected zero-value device on failure, got %+v", got)
	}

	_ = cache.Device(context.Background(), "devA")
	if got := fake.deviceCalls.Load(); got != 2 {
		t.Fatalf("expected negative results to not be cached (2 calls), got %d", got)
	}
}

func TestSensorMetaNeverReturnsNil(t *testing.T) {
	fake := &fakeLookup{sensorErr: errors.New("down")}
	cache := New(fake)

	meta := cache.SensorMetaFor(context.Background(), "devA")
	if meta == nil {
		t.Fatal("expected non-nil empty map on failure")
	}
}

func TestCertificateIsNeverCached(t *testing.T) {
	fake := &fakeLookup{certPEM: "cert-1"}
	cache := New(fake)

	for i := 0; i < 3; i++ {
		pem, err := cache.Certificate(context.Background(), "devA")
		if err != nil || pem != "cert-1" {
			t.Fatalf("unexpected certificate result: %q err=%v", pem, err)
		}
	}

	if got := fake.certCalls.Load(); got != 3 {
		t.Fatalf("expected every certificate lookup to hit the collaborator (3 calls), got %d", got)
	}
}
