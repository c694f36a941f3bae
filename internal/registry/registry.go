// Package registry provides a read-through TTL cache (C3) in front of the
// external device/sensor/certificate registry collaborator. The registry
// itself — schema, transport, persistence — is out of scope; this package
// only defines the narrow interface the gateway needs and a cache that
// memoizes it.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
)

var log = logging.L("registry")

// ttl is the cache lifetime for device and sensor lookups (900 s, per the
// registry cache's read-through contract). Certificate lookups are never
// cached, for security reasons.
const ttl = 900 * time.Second

// Device is the subset of a device row the gateway cares about.
type Device struct {
	ID            string
	TZOffsetHours *int // nil if unregistered/unknown
}

// SensorMeta holds per-device camera configuration overrides, keyed by
// sensor key (e.g. "CAM_USER", "CAM_PASS", "RTSP_PATH").
type SensorMeta map[string]string

// Lookup is the external registry collaborator: a read-only service the
// gateway never owns the schema or transport of.
type Lookup interface {
	LookupDevice(ctx context.Context, deviceID string) (Device, error)
	LookupSensorMeta(ctx context.Context, deviceID string) (SensorMeta, error)
	LookupCertificate(ctx context.Context, deviceID string) (string, error)
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache is a read-through TTL cache over the three registry lookups. On a
// load failure it returns a zero value and does not cache the negative
// result, so a future call retries against the collaborator.
type Cache struct {
	lookup Lookup

	mu      sync.Mutex
	devices map[string]cacheEntry[Device]
	sensors map[string]cacheEntry[SensorMeta]
}

// New creates a Cache fronting lookup.
func New(lookup Lookup) *Cache {
	return &Cache{
		lookup:  lookup,
		devices: make(map[string]cacheEntry[Device]),
		sensors: make(map[string]cacheEntry[SensorMeta]),
	}
}

// Device returns the cached or freshly loaded device row. On load failure
// it returns a zero Device and the error is logged, never propagated as a
// fatal condition — callers fall back to process-wide defaults.
func (c *Cache) Device(ctx context.Context, deviceID string) Device {
	c.mu.Lock()
	if entry, ok := c.devices[deviceID]; ok && time.Now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.value
	}
	c.mu.Unlock()

	dev, err := c.lookup.LookupDevice(ctx, deviceID)
	if err != nil {
		log.Warn("device lookup failed, using empty record", "deviceId", deviceID, "error", err)
		return Device{}
	}

	c.mu.Lock()
	c.devices[deviceID] = cacheEntry[Device]{value: dev, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return dev
}

// SensorMetaFor returns the cached or freshly loaded sensor metadata map.
// On load failure it returns an empty map, never nil.
func (c *Cache) SensorMetaFor(ctx context.Context, deviceID string) SensorMeta {
	c.mu.Lock()
	if entry, ok := c.sensors[deviceID]; ok && time.Now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.value
	}
	c.mu.Unlock()

	meta, err := c.lookup.LookupSensorMeta(ctx, deviceID)
	if err != nil {
		log.Warn("sensor metadata lookup failed, using empty record", "deviceId", deviceID, "error", err)
		return SensorMeta{}
	}
	if meta == nil {
		meta = SensorMeta{}
	}

	c.mu.Lock()
	c.sensors[deviceID] = cacheEntry[SensorMeta]{value: meta, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return meta
}

// Certificate fetches the device's certificate PEM directly from the
// collaborator — certificate lookups are never cached. It implements
// auth.CertificateFetcher.
func (c *Cache) Certificate(ctx context.Context, deviceID string) (string, error) {
	return c.lookup.LookupCertificate(ctx, deviceID)
}
