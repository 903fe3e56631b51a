package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/qrkit/internal/imagesource"
	"github.com/MeKo-Tech/qrkit/internal/platform"
	"github.com/MeKo-Tech/qrkit/internal/qrgen"
)

// DefaultSaveName is the file name proposed by the save dialog.
const DefaultSaveName = "qrcode.png"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Generate: GenerateConfig{
			Size:     qrgen.DefaultSize,
			SaveName: DefaultSaveName,
		},
		Fetch: FetchConfig{
			MaxBytes:  platform.DefaultMaxBytes,
			UserAgent: platform.DefaultUserAgent,
		},
		Scan: ScanConfig{
			TryHarder:    true,
			MaxDimension: imagesource.DefaultMaxDimension,
			MaxPixels:    imagesource.DefaultMaxPixels,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			TimeoutSec:        30,
			ShutdownTimeout:   10,
			RateLimitEnabled:  false,
			RequestsPerMinute: 60,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Generate.Size <= 0 || c.Generate.Size > qrgen.MaxSize {
		return fmt.Errorf("invalid generate size: %d (must be between 1 and %d)", c.Generate.Size, qrgen.MaxSize)
	}
	if strings.TrimSpace(c.Generate.SaveName) == "" {
		return fmt.Errorf("generate.save_name must not be empty")
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("invalid fetch timeout: %s (must not be negative)", c.Fetch.Timeout)
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("invalid fetch max bytes: %d (must be positive)", c.Fetch.MaxBytes)
	}
	if c.Scan.MaxDimension < 0 {
		return fmt.Errorf("invalid scan max dimension: %d (must not be negative)", c.Scan.MaxDimension)
	}
	if c.Scan.MaxPixels < 0 {
		return fmt.Errorf("invalid scan max pixels: %d (must not be negative)", c.Scan.MaxPixels)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimitEnabled && c.Server.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid requests per minute: %d (must be positive when rate limiting is enabled)", c.Server.RequestsPerMinute)
	}

	return nil
}
