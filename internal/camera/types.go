package camera

import (
	"time"
)

// Control API keys understood by the camera firmware
const (
	KeyISO          = "iso"
	KeyEVBias       = "ev"
	KeyAperture     = "iris"
	KeyShutterAngle = "shutter_angle"
	KeyWhiteBalance = "wb"
	KeyFocusMethod  = "focus"
	KeyRec          = "rec"
	KeyBattery      = "battery"
	KeyCardFree     = "card_free_space"
)

// Settings is the cached view of the camera's adjustable parameters.
// Fields the camera did not report keep their zero value.
type Settings struct {
	ISO          int     `json:"iso"`
	EVBias       float64 `json:"ev_bias"`
	Aperture     string  `json:"aperture"`
	ShutterAngle int     `json:"shutter_angle"`
	WhiteBalance string  `json:"white_balance"`
	FocusMethod  string  `json:"focus_method"`
}

// Status is the camera's non-adjustable state read alongside settings
type Status struct {
	Recording      bool      `json:"recording"`
	BatteryPercent int       `json:"battery_percent"`
	CardFreeMB     int64     `json:"card_free_mb"`
	LastContact    time.Time `json:"last_contact"`
	Reachable      bool      `json:"reachable"`
}
