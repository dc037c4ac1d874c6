package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a deployment site configuration
type Config struct {
	Site      string          `yaml:"site" json:"site"`
	Cameras   []CameraConfig  `yaml:"cameras" json:"cameras"`
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
	Capture   CaptureConfig   `yaml:"capture" json:"capture"`
	Analysis  AnalysisConfig  `yaml:"analysis" json:"analysis"`
	Advisor   AdvisorConfig   `yaml:"advisor" json:"advisor"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Web       WebConfig       `yaml:"web" json:"web"`
	DataDir   string          `yaml:"data_dir" json:"data_dir"`
	Log       LogConfig       `yaml:"log,omitempty" json:"log,omitempty"`
}

// CameraConfig identifies one camera at the site
type CameraConfig struct {
	ID       string `yaml:"id" json:"id"`
	IP       string `yaml:"ip" json:"ip"`
	RTSPPath string `yaml:"rtsp_path" json:"rtsp_path"`
}

// RTSPURL returns the camera's RTSP endpoint
func (c CameraConfig) RTSPURL() string {
	path := c.RTSPPath
	if path == "" {
		path = "live_stream"
	}
	return fmt.Sprintf("rtsp://%s/%s", c.IP, path)
}

// ControlBaseURL returns the camera's HTTP control API base
func (c CameraConfig) ControlBaseURL() string {
	return fmt.Sprintf("http://%s", c.IP)
}

// BackendConfig points at the operator's telemetry/request server
type BackendConfig struct {
	Server  string        `yaml:"server" json:"server"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// CaptureConfig controls the per-camera capture loop
type CaptureConfig struct {
	Interval        time.Duration `yaml:"interval" json:"interval"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	StartHour       int           `yaml:"start_hour" json:"start_hour"`
	EndHour         int           `yaml:"end_hour" json:"end_hour"`
	MaxProbePackets int           `yaml:"max_probe_packets" json:"max_probe_packets"`
}

// AnalysisConfig controls exposure and focus scoring
type AnalysisConfig struct {
	TargetBrightness    float64 `yaml:"target_brightness" json:"target_brightness"`
	BrightnessTolerance float64 `yaml:"brightness_tolerance" json:"brightness_tolerance"`
	FocusGridRows       int     `yaml:"focus_grid_rows" json:"focus_grid_rows"`
	FocusGridCols       int     `yaml:"focus_grid_cols" json:"focus_grid_cols"`
}

// AdvisorConfig controls recommendation gating
type AdvisorConfig struct {
	AutoAdjust          bool    `yaml:"auto_adjust" json:"auto_adjust"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	SolarNoonHour       float64 `yaml:"solar_noon_hour" json:"solar_noon_hour"`
}

// StorageConfig controls snapshot output
type StorageConfig struct {
	SnapshotsDir        string  `yaml:"snapshots_dir" json:"snapshots_dir"`
	RetentionDays       int     `yaml:"retention_days" json:"retention_days"`
	MaxDiskUsagePercent float64 `yaml:"max_disk_usage_percent" json:"max_disk_usage_percent"`
	JPEGQuality         int     `yaml:"jpeg_quality" json:"jpeg_quality"`
	AnnotateFocusGrid   bool    `yaml:"annotate_focus_grid" json:"annotate_focus_grid"`
}

// TelemetryConfig controls metric reporting to the backend
type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// WebConfig contains web server configuration
type WebConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// Load reads and parses the configuration file. JSON site files and YAML
// files are both accepted, keyed off the file extension.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(configPath), ".json") {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// getDefaultConfigPath returns the default configuration file path
func getDefaultConfigPath() string {
	if path := os.Getenv("CAMTUNER_CONFIG"); path != "" {
		return path
	}
	return "config/site.yaml"
}

// applyDefaults fills unset fields with working defaults. DataDir must be
// settled first since other paths derive from it.
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	if c.Capture.Interval == 0 {
		c.Capture.Interval = 5 * time.Minute
	}
	if c.Capture.ConnectTimeout == 0 {
		c.Capture.ConnectTimeout = 10 * time.Second
	}
	if c.Capture.ReadTimeout == 0 {
		c.Capture.ReadTimeout = 10 * time.Second
	}
	if c.Capture.StartHour == 0 && c.Capture.EndHour == 0 {
		c.Capture.StartHour = 6
		c.Capture.EndHour = 22
	}
	if c.Capture.MaxProbePackets == 0 {
		c.Capture.MaxProbePackets = 30
	}
	if c.Analysis.TargetBrightness == 0 {
		c.Analysis.TargetBrightness = 128.0
	}
	if c.Analysis.BrightnessTolerance == 0 {
		c.Analysis.BrightnessTolerance = 15.0
	}
	if c.Analysis.FocusGridRows == 0 {
		c.Analysis.FocusGridRows = 4
	}
	if c.Analysis.FocusGridCols == 0 {
		c.Analysis.FocusGridCols = 4
	}
	if c.Advisor.ConfidenceThreshold == 0 {
		c.Advisor.ConfidenceThreshold = 0.6
	}
	if c.Advisor.SolarNoonHour == 0 {
		c.Advisor.SolarNoonHour = 13.0
	}
	if c.Storage.SnapshotsDir == "" {
		c.Storage.SnapshotsDir = filepath.Join(c.DataDir, "snapshots")
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 7
	}
	if c.Storage.MaxDiskUsagePercent == 0 {
		c.Storage.MaxDiskUsagePercent = 80.0
	}
	if c.Storage.JPEGQuality == 0 {
		c.Storage.JPEGQuality = 85
	}
	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = 5 * time.Minute
	}
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}
