package state

import (
	"time"
)

// CameraRecord is a camera's persisted identity
type CameraRecord struct {
	ID       string     `json:"id"`
	IP       string     `json:"ip"`
	RTSPURL  string     `json:"rtsp_url"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// MetricSample is one cycle's analysis result
type MetricSample struct {
	ID                string    `json:"id"`
	CameraID          string    `json:"camera_id"`
	TakenAt           time.Time `json:"taken_at"`
	MeanBrightness    float64   `json:"mean_brightness"`
	Contrast          float64   `json:"contrast"`
	ClippedHighlights float64   `json:"clipped_highlights"`
	ClippedShadows    float64   `json:"clipped_shadows"`
	ExposureScore     float64   `json:"exposure_score"`
	Sharpness         float64   `json:"sharpness"`
	FocusScore        float64   `json:"focus_score"`
	SnapshotPath      string    `json:"snapshot_path,omitempty"`
}

// AdjustmentRecord is one advisor decision, applied or not
type AdjustmentRecord struct {
	ID           string    `json:"id"`
	CameraID     string    `json:"camera_id"`
	DecidedAt    time.Time `json:"decided_at"`
	ISOFrom      int       `json:"iso_from"`
	ISOTo        int       `json:"iso_to"`
	EVFrom       float64   `json:"ev_from"`
	EVTo         float64   `json:"ev_to"`
	ApertureFrom string    `json:"aperture_from"`
	ApertureTo   string    `json:"aperture_to"`
	ShutterFrom  int       `json:"shutter_from"`
	ShutterTo    int       `json:"shutter_to"`
	Confidence   float64   `json:"confidence"`
	Reasons      []string  `json:"reasons"`
	Applied      bool      `json:"applied"`
}
