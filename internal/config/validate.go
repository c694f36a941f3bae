package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
)

var log = logging.L("config")

var validStorageModes = map[string]bool{
	"":       true,
	"local":  true,
	"s3":     true,
	"gcs":    true,
	"azblob": true,
	"b2":     true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Result is the tiered outcome of validating a Config. Fatals block
// startup; Warnings are logged but the gateway still runs, with the
// offending field clamped to a safe value beforehand.
type Result struct {
	Fatals   []error
	Warnings []error
}

func (r Result) HasFatals() bool { return len(r.Fatals) > 0 }

// AllErrors returns fatals followed by warnings, for callers that just
// want to log or print everything found.
func (r Result) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config for invalid values. Dangerous zero or
// out-of-range values that would otherwise misbehave at runtime are
// clamped to safe defaults and reported as warnings; values that make the
// gateway impossible to start correctly are fatal.
func (c *Config) ValidateTiered() Result {
	var r Result

	if c.WSPort < 1 || c.WSPort > 65535 {
		r.Fatals = append(r.Fatals, fmt.Errorf("ws_port %d is out of range 1-65535", c.WSPort))
	}
	if c.ProxyPort < 1 || c.ProxyPort > 65535 {
		r.Fatals = append(r.Fatals, fmt.Errorf("proxy_port %d is out of range 1-65535", c.ProxyPort))
	}
	if c.WSPort == c.ProxyPort {
		r.Fatals = append(r.Fatals, fmt.Errorf("ws_port and proxy_port must differ, both are %d", c.WSPort))
	}

	if c.WSTLS && (c.TLSCert == "" || c.TLSKey == "") {
		r.Fatals = append(r.Fatals, fmt.Errorf("ws_tls is enabled but tls_cert/tls_key are not both set"))
	}

	if c.RTSPPath != "" && !strings.HasPrefix(c.RTSPPath, "/") {
		r.Warnings = append(r.Warnings, fmt.Errorf("rtsp_path %q should start with \"/\", prefixing it", c.RTSPPath))
		c.RTSPPath = "/" + c.RTSPPath
	}

	if c.OutDir == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("out_dir must not be empty"))
	}

	if c.HelloWaitMS < 100 {
		r.Warnings = append(r.Warnings, fmt.Errorf("hello_wait_ms %d is below minimum 100, clamping", c.HelloWaitMS))
		c.HelloWaitMS = 100
	} else if c.HelloWaitMS > 60000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("hello_wait_ms %d exceeds maximum 60000, clamping", c.HelloWaitMS))
		c.HelloWaitMS = 60000
	}

	if c.CaptureTimeoutMS < 1000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("capture_timeout_ms %d is below minimum 1000, clamping", c.CaptureTimeoutMS))
		c.CaptureTimeoutMS = 1000
	} else if c.CaptureTimeoutMS > 300000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("capture_timeout_ms %d exceeds maximum 300000, clamping", c.CaptureTimeoutMS))
		c.CaptureTimeoutMS = 300000
	}

	if !validStorageModes[strings.ToLower(c.StorageMode)] {
		r.Fatals = append(r.Fatals, fmt.Errorf("storage_mode %q is not one of local, s3, gcs, azblob, b2", c.StorageMode))
	}

	switch strings.ToLower(c.StorageMode) {
	case "s3":
		if c.S3Bucket == "" {
			r.Fatals = append(r.Fatals, fmt.Errorf("storage_mode s3 requires s3_bucket"))
		}
	case "gcs":
		if c.GCSBucket == "" {
			r.Fatals = append(r.Fatals, fmt.Errorf("storage_mode gcs requires gcs_bucket"))
		}
	case "azblob":
		if c.AzureContainer == "" || c.AzureAccountName == "" || c.AzureAccountKey == "" {
			r.Fatals = append(r.Fatals, fmt.Errorf("storage_mode azblob requires azure_container, azure_account_name, and azure_account_key"))
		}
	case "b2":
		if c.B2Bucket == "" || c.B2AccountID == "" || c.B2AppKey == "" {
			r.Fatals = append(r.Fatals, fmt.Errorf("storage_mode b2 requires b2_bucket, b2_account_id, and b2_app_key"))
		}
	}

	if c.StorageConcurrency < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("storage_concurrency %d is below minimum 1, clamping", c.StorageConcurrency))
		c.StorageConcurrency = 1
	} else if c.StorageConcurrency > 64 {
		r.Warnings = append(r.Warnings, fmt.Errorf("storage_concurrency %d exceeds maximum 64, clamping", c.StorageConcurrency))
		c.StorageConcurrency = 64
	}

	if c.RedisAddr == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("redis_addr must not be empty, leader election requires it"))
	}

	if c.RegistryBaseURL != "" {
		u, err := url.Parse(c.RegistryBaseURL)
		if err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("registry_base_url %q is not a valid URL: %w", c.RegistryBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			r.Fatals = append(r.Fatals, fmt.Errorf("registry_base_url scheme must be http or https, got %q", u.Scheme))
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), falling back to info", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json), falling back to text", c.LogFormat))
		c.LogFormat = "text"
	}

	return r
}
