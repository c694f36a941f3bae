package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateTieredSamePortsIsFatal(t *testing.T) {
	cfg := Default()
	cfg.ProxyPort = cfg.WSPort
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("ws_port == proxy_port should be fatal")
	}
}

func TestValidateTieredOutOfRangePortIsFatal(t *testing.T) {
	cfg := Default()
	cfg.WSPort = 70000
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("out of range ws_port should be fatal")
	}
}

func TestValidateTieredTLSWithoutCertKeyIsFatal(t *testing.T) {
	cfg := Default()
	cfg.WSTLS = true
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("ws_tls without tls_cert/tls_key should be fatal")
	}
}

func TestValidateTieredMissingRedisAddrIsFatal(t *testing.T) {
	cfg := Default()
	cfg.RedisAddr = ""
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("empty redis_addr should be fatal")
	}
}

func TestValidateTieredUnknownStorageModeIsFatal(t *testing.T) {
	cfg := Default()
	cfg.StorageMode = "tape"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("unknown storage_mode should be fatal")
	}
}

func TestValidateTieredS3ModeRequiresBucket(t *testing.T) {
	cfg := Default()
	cfg.StorageMode = "s3"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("storage_mode s3 with no s3_bucket should be fatal")
	}
}

func TestValidateTieredRTSPPathMissingSlashIsWarningAndFixed(t *testing.T) {
	cfg := Default()
	cfg.RTSPPath = "stream2"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("missing leading slash should be a warning, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for rtsp_path missing leading slash")
	}
	if cfg.RTSPPath != "/stream2" {
		t.Fatalf("RTSPPath = %q, want \"/stream2\" (auto-fixed)", cfg.RTSPPath)
	}
}

func TestValidateTieredHelloWaitClampingIsWarning(t *testing.T) {
	cfg := Default()
	cfg.HelloWaitMS = 1 // below minimum 100
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped hello_wait_ms should be warning, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for clamped hello_wait_ms")
	}
	if cfg.HelloWaitMS != 100 {
		t.Fatalf("HelloWaitMS = %d, want 100 (clamped)", cfg.HelloWaitMS)
	}
}

func TestValidateTieredCaptureTimeoutHighClampingIsWarning(t *testing.T) {
	cfg := Default()
	cfg.CaptureTimeoutMS = 999999
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped capture_timeout_ms should be warning, not fatal: %v", result.Fatals)
	}
	if cfg.CaptureTimeoutMS != 300000 {
		t.Fatalf("CaptureTimeoutMS = %d, want 300000 (clamped)", cfg.CaptureTimeoutMS)
	}
}

func TestValidateTieredStorageConcurrencyClamping(t *testing.T) {
	cfg := Default()
	cfg.StorageConcurrency = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped storage_concurrency should be warning: %v", result.Fatals)
	}
	if cfg.StorageConcurrency != 1 {
		t.Fatalf("StorageConcurrency = %d, want 1", cfg.StorageConcurrency)
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want fallback to info", cfg.LogLevel)
	}
}

func TestValidateTieredInvalidLogFormatIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestValidateTieredInvalidRegistryURLSchemeIsFatal(t *testing.T) {
	cfg := Default()
	cfg.RegistryBaseURL = "ftp://example.com"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("invalid registry_base_url scheme should be fatal")
	}
}

func TestHasFatals(t *testing.T) {
	r := Result{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := Default()
	cfg.RedisAddr = ""       // fatal
	cfg.LogLevel = "verbose" // warning
	result := cfg.ValidateTiered()

	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2 (fatals + warnings)", len(all))
	}
	joined := make([]string, len(all))
	for i, e := range all {
		joined[i] = e.Error()
	}
	if !strings.Contains(strings.Join(joined, " "), "redis_addr") {
		t.Fatal("expected redis_addr fatal in AllErrors()")
	}
}

func TestValidDefaultConfigHasNoFatals(t *testing.T) {
	cfg := Default()
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("default config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("default config has warnings: %v", result.Warnings)
	}
}
