package telemetry

import (
	"time"

	"github.com/surfvision/camtuner/internal/advisor"
	"github.com/surfvision/camtuner/internal/analysis"
	"github.com/surfvision/camtuner/internal/camera"
)

// CameraReport is one camera's state as posted to the backend
type CameraReport struct {
	Site           string                   `json:"site"`
	CameraID       string                   `json:"camera_id"`
	IP             string                   `json:"ip"`
	Timestamp      time.Time                `json:"timestamp"`
	Settings       camera.Settings          `json:"settings"`
	CameraStatus   camera.Status            `json:"camera_status"`
	Exposure       *analysis.ExposureMetrics `json:"exposure,omitempty"`
	Focus          *analysis.FocusMetrics    `json:"focus,omitempty"`
	Recommendation *advisor.Recommendation   `json:"recommendation,omitempty"`
	Applied        bool                     `json:"applied"`
	SnapshotPath   string                   `json:"snapshot_path,omitempty"`
	StreamMethod   string                   `json:"stream_method,omitempty"`
	Error          string                   `json:"error,omitempty"`
}

// SystemReport carries appliance-level metrics alongside camera reports
type SystemReport struct {
	Site           string    `json:"site"`
	Hostname       string    `json:"hostname"`
	Timestamp      time.Time `json:"timestamp"`
	UptimeSeconds  float64   `json:"uptime_seconds"`
	Goroutines     int       `json:"goroutines"`
	HeapAllocBytes uint64    `json:"heap_alloc_bytes"`
	DiskUsagePct   float64   `json:"disk_usage_percent"`
}

// BackendRequest is a pending command fetched from the backend queue
type BackendRequest struct {
	ID        string            `json:"id"`
	Service   string            `json:"service"`
	Host      string            `json:"host"`
	Command   string            `json:"command"`
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
