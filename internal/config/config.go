package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config is the gateway's full runtime configuration, loaded from an
// optional YAML file with overrides from the literal, unprefixed
// environment variables named in the gateway's env var table (WS_PORT,
// CAM_PASS, STORAGE_MODE, ...).
type Config struct {
	WSPort int    `mapstructure:"ws_port"`
	WSTLS  bool   `mapstructure:"ws_tls"`
	TLSCert string `mapstructure:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key"`

	ProxyPort int `mapstructure:"proxy_port"`

	CamUser  string `mapstructure:"cam_user"`
	CamPass  string `mapstructure:"cam_pass"`
	RTSPPath string `mapstructure:"rtsp_path"`

	OutDir string `mapstructure:"out_dir"`

	AutoCapture bool `mapstructure:"auto_capture"`
	RequireAuth bool `mapstructure:"require_auth"`

	HelloWaitMS      int `mapstructure:"hello_wait_ms"`
	CaptureTimeoutMS int `mapstructure:"capture_timeout_ms"`

	UseDeviceTZOffset bool `mapstructure:"use_device_tz_offset"`

	StorageMode        string `mapstructure:"storage_mode"`
	StorageConcurrency int    `mapstructure:"storage_concurrency"`
	StorageDeleteLocal bool   `mapstructure:"storage_delete_local"`

	LocalDir string `mapstructure:"local_dir"`

	S3Bucket string `mapstructure:"s3_bucket"`
	S3Prefix string `mapstructure:"s3_prefix"`
	S3Region string `mapstructure:"s3_region"`

	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`

	AzureContainer   string `mapstructure:"azure_container"`
	AzurePrefix      string `mapstructure:"azure_prefix"`
	AzureAccountName string `mapstructure:"azure_account_name"`
	AzureAccountKey  string `mapstructure:"azure_account_key"`

	B2Bucket    string `mapstructure:"b2_bucket"`
	B2Prefix    string `mapstructure:"b2_prefix"`
	B2AccountID string `mapstructure:"b2_account_id"`
	B2AppKey    string `mapstructure:"b2_app_key"`

	RedisAddr string `mapstructure:"redis_addr"`

	RegistryBaseURL   string `mapstructure:"registry_base_url"`
	RegistryAuthToken string `mapstructure:"registry_auth_token"`

	// Logging configuration
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

// envBindings maps each config key to the literal environment variable
// name from the gateway's env var table. These are unprefixed on purpose:
// the table is the gateway's external interface, not an internal vendor
// convention, so WS_PORT must mean WS_PORT.
var envBindings = map[string]string{
	"ws_port":              "WS_PORT",
	"ws_tls":               "WS_TLS",
	"tls_cert":             "TLS_CERT",
	"tls_key":              "TLS_KEY",
	"proxy_port":           "PROXY_PORT",
	"cam_user":             "CAM_USER",
	"cam_pass":             "CAM_PASS",
	"rtsp_path":            "RTSP_PATH",
	"out_dir":              "OUT_DIR",
	"auto_capture":         "AUTO_CAPTURE",
	"require_auth":         "REQUIRE_AUTH",
	"hello_wait_ms":        "HELLO_WAIT_MS",
	"capture_timeout_ms":   "CAPTURE_TIMEOUT_MS",
	"use_device_tz_offset": "USE_DEVICE_TZ_OFFSET",
	"storage_mode":         "STORAGE_MODE",
	"storage_concurrency":  "STORAGE_CONCURRENCY",
	"storage_delete_local": "STORAGE_DELETE_LOCAL",
	"local_dir":            "LOCAL_DIR",
	"s3_bucket":            "S3_BUCKET",
	"s3_prefix":            "S3_PREFIX",
	"s3_region":            "S3_REGION",
	"gcs_bucket":           "GCS_BUCKET",
	"gcs_prefix":           "GCS_PREFIX",
	"azure_container":      "AZURE_CONTAINER",
	"azure_prefix":         "AZURE_PREFIX",
	"azure_account_name":   "AZURE_ACCOUNT_NAME",
	"azure_account_key":    "AZURE_ACCOUNT_KEY",
	"b2_bucket":            "B2_BUCKET",
	"b2_prefix":            "B2_PREFIX",
	"b2_account_id":        "B2_ACCOUNT_ID",
	"b2_app_key":           "B2_APP_KEY",
	"redis_addr":           "REDIS_ADDR",
	"registry_base_url":    "REGISTRY_BASE_URL",
	"registry_auth_token":  "REGISTRY_AUTH_TOKEN",
	"log_level":            "LOG_LEVEL",
	"log_format":           "LOG_FORMAT",
	"log_file":             "LOG_FILE",
	"log_max_size_mb":      "LOG_MAX_SIZE_MB",
	"log_max_backups":      "LOG_MAX_BACKUPS",
}

// HelloWait is HelloWaitMS as a time.Duration.
func (c *Config) HelloWait() time.Duration {
	return time.Duration(c.HelloWaitMS) * time.Millisecond
}

// CaptureTimeout is CaptureTimeoutMS as a time.Duration.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutMS) * time.Millisecond
}

func Default() *Config {
	return &Config{
		WSPort:    7443,
		WSTLS:     false,
		ProxyPort: 8554,

		CamUser:  "admin",
		RTSPPath: "/stream2",

		OutDir: filepath.Join(os.TempDir(), "hyphen-rtsp-tunnel", "snapshots"),

		AutoCapture: true,
		RequireAuth: false,

		HelloWaitMS:      2000,
		CaptureTimeoutMS: 45000,

		StorageMode:        "local",
		StorageConcurrency: 2,
		StorageDeleteLocal: true,

		RedisAddr: "127.0.0.1:6379",

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("gateway")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Breeze")
	case "darwin":
		return "/Library/Application Support/Breeze"
	default:
		return "/etc/breeze"
	}
}
