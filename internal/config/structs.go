//nolint:lll
package config

import "time"

// Config represents the complete configuration for qrkit. It covers every
// command (scan, generate, serve) and is loaded from configuration files,
// environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	DevMode  bool   `mapstructure:"dev_mode" yaml:"dev_mode" json:"dev_mode"`

	Generate GenerateConfig `mapstructure:"generate" yaml:"generate" json:"generate"`
	Fetch    FetchConfig    `mapstructure:"fetch" yaml:"fetch" json:"fetch"`
	Scan     ScanConfig     `mapstructure:"scan" yaml:"scan" json:"scan"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// GenerateConfig contains QR generation settings.
type GenerateConfig struct {
	Size     int    `mapstructure:"size" yaml:"size" json:"size"`
	SaveName string `mapstructure:"save_name" yaml:"save_name" json:"save_name"`
	// NormalizeNFC composes text to Unicode NFC before encoding.
	NormalizeNFC bool `mapstructure:"normalize_nfc" yaml:"normalize_nfc" json:"normalize_nfc"`
}

// FetchConfig controls downloads of dropped links. A zero Timeout leaves the
// request unbounded.
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MaxBytes  int64         `mapstructure:"max_bytes" yaml:"max_bytes" json:"max_bytes"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
}

// ScanConfig contains decoding settings.
type ScanConfig struct {
	TryHarder    bool `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	MaxDimension int  `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`
	// MaxPixels rejects images whose header declares more pixels; 0 disables it.
	MaxPixels int `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string `mapstructure:"host" yaml:"host" json:"host"`
	Port              int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin        string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB       int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec        int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimitEnabled  bool   `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	TrustProxyHeaders bool   `mapstructure:"trust_proxy_headers" yaml:"trust_proxy_headers" json:"trust_proxy_headers"`
}
