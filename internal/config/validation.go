package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate validates the configuration with detailed error messages
func (c *Config) Validate() error {
	var errors []string

	if len(c.Cameras) == 0 {
		errors = append(errors, "at least one camera is required")
	}

	seen := make(map[string]bool)
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			errors = append(errors, fmt.Sprintf("cameras[%d].id is required", i))
		}
		if seen[cam.ID] {
			errors = append(errors, fmt.Sprintf("duplicate camera id: %s", cam.ID))
		}
		seen[cam.ID] = true

		if cam.IP == "" {
			errors = append(errors, fmt.Sprintf("cameras[%d].ip is required", i))
		} else if net.ParseIP(cam.IP) == nil {
			// Allow hostnames too; only flag obviously broken values
			if strings.ContainsAny(cam.IP, " /\\") {
				errors = append(errors, fmt.Sprintf("cameras[%d].ip is not a valid address: %s", i, cam.IP))
			}
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log level: %s (must be: debug, info, warn, error, fatal)", c.Log.Level))
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format: %s (must be: console or json)", c.Log.Format))
	}

	// An end hour before the start hour means the window wraps past
	// midnight, and start == end means the loop never idles.
	if c.Capture.StartHour < 0 || c.Capture.StartHour > 23 {
		errors = append(errors, fmt.Sprintf("capture.start_hour must be between 0 and 23, got: %d", c.Capture.StartHour))
	}
	if c.Capture.EndHour < 0 || c.Capture.EndHour > 23 {
		errors = append(errors, fmt.Sprintf("capture.end_hour must be between 0 and 23, got: %d", c.Capture.EndHour))
	}

	if c.Analysis.TargetBrightness < 0 || c.Analysis.TargetBrightness > 255 {
		errors = append(errors, fmt.Sprintf("analysis.target_brightness must be between 0 and 255, got: %.1f", c.Analysis.TargetBrightness))
	}
	if c.Analysis.BrightnessTolerance < 0 {
		errors = append(errors, fmt.Sprintf("analysis.brightness_tolerance must be >= 0, got: %.1f", c.Analysis.BrightnessTolerance))
	}

	if c.Advisor.ConfidenceThreshold < 0 || c.Advisor.ConfidenceThreshold > 1 {
		errors = append(errors, fmt.Sprintf("advisor.confidence_threshold must be between 0 and 1, got: %.2f", c.Advisor.ConfidenceThreshold))
	}

	if c.Storage.MaxDiskUsagePercent < 0 || c.Storage.MaxDiskUsagePercent > 100 {
		errors = append(errors, fmt.Sprintf("storage.max_disk_usage_percent must be between 0 and 100, got: %.2f", c.Storage.MaxDiskUsagePercent))
	}
	if c.Storage.RetentionDays < 0 {
		errors = append(errors, fmt.Sprintf("storage.retention_days must be >= 0, got: %d", c.Storage.RetentionDays))
	}
	if c.Storage.JPEGQuality < 1 || c.Storage.JPEGQuality > 100 {
		errors = append(errors, fmt.Sprintf("storage.jpeg_quality must be between 1 and 100, got: %d", c.Storage.JPEGQuality))
	}

	if c.Telemetry.Enabled && c.Backend.Server == "" {
		errors = append(errors, "backend.server is required when telemetry is enabled")
	}

	if c.Web.Enabled && (c.Web.Port < 1 || c.Web.Port > 65535) {
		errors = append(errors, fmt.Sprintf("web.port must be between 1 and 65535, got: %d", c.Web.Port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}
