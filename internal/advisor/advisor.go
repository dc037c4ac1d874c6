package advisor

import (
	"fmt"
	"math"
	"time"

	"github.com/surfvision/camtuner/internal/analysis"
)

// Settings is the subset of camera parameters the advisor reasons about
type Settings struct {
	ISO          int     `json:"iso"`
	EVBias       float64 `json:"ev_bias"`
	Aperture     string  `json:"aperture"`
	ShutterAngle int     `json:"shutter_angle"`
}

// Recommendation is the advisor's proposed settings for the next cycle.
// Confidence accumulates as rules fire and is clamped to [0,1]; callers gate
// application on it.
type Recommendation struct {
	Settings
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Changed reports whether the recommendation differs from the given settings
func (r Recommendation) Changed(cur Settings) bool {
	return r.Settings != cur
}

// ShouldApply reports whether the recommendation is confident enough to act on
func (r Recommendation) ShouldApply(threshold float64) bool {
	return len(r.Reasons) > 0 && r.Confidence >= threshold
}

// The camera's dual native ISO pairs. Gains between the pairs add read noise
// without a sensitivity benefit, so the advisor snaps to one of the two.
var isoLadder = []int{100, 200, 400, 500, 800, 1600, 2500, 3200, 5000, 6400, 8000, 12800}

const (
	nativeISOLow  = 500
	nativeISOHigh = 2500
)

// ShutterAngles lists the angles the advisor will recommend
var ShutterAngles = []int{90, 120, 180, 270}

const (
	baseConfidence      = 0.5
	stableConfidence    = 0.8
	severeUnderexposure = 30.0
	highlightClipLimit  = 3.0
	shadowClipLimit     = 8.0
	saturationLimit     = 15.0
	evFloor             = -2.0
	evCeiling           = 2.0
)

// Advisor turns exposure metrics into settings recommendations. It is
// stateless; every call starts from the supplied current settings.
type Advisor struct {
	targetBrightness    float64
	brightnessTolerance float64
	solarNoonHour       float64
}

// New creates an advisor targeting the given mean brightness with the given
// tolerance band
func New(targetBrightness, brightnessTolerance, solarNoonHour float64) *Advisor {
	return &Advisor{
		targetBrightness:    targetBrightness,
		brightnessTolerance: brightnessTolerance,
		solarNoonHour:       solarNoonHour,
	}
}

// Recommend evaluates the decision tree for one frame's metrics. Rules run
// in priority order: native ISO selection first, then EV bias nudges, then
// aperture and shutter angle from the ambient light estimate.
func (a *Advisor) Recommend(m analysis.ExposureMetrics, cur Settings, now time.Time) Recommendation {
	rec := Recommendation{
		Settings:   cur,
		Confidence: baseConfidence,
	}

	err := m.MeanBrightness - a.targetBrightness
	sun := a.SunFactor(now)

	switch {
	case err < -a.brightnessTolerance:
		a.adjustForUnderexposure(&rec, err)
	case err > a.brightnessTolerance:
		a.adjustForOverexposure(&rec)
	default:
		a.snapToNativeISO(&rec)
	}

	a.adjustEVBias(&rec, m)
	a.adjustAperture(&rec, m, sun)
	a.adjustShutterAngle(&rec, m, sun)

	rec.Confidence = a.finalConfidence(&rec, m)
	return rec
}

func (a *Advisor) adjustForUnderexposure(rec *Recommendation, err float64) {
	switch {
	case rec.ISO <= nativeISOLow:
		rec.ISO = nativeISOHigh
		rec.Confidence += 0.3
		rec.addReason("image too dark, switching to high native ISO %d", nativeISOHigh)
	case rec.ISO < nativeISOHigh:
		rec.ISO = nativeISOHigh
		rec.Confidence += 0.3
		rec.addReason("image too dark, raising ISO to native %d", nativeISOHigh)
	case rec.ISO == nativeISOHigh && err < -severeUnderexposure:
		rec.ISO = nextISOAbove(nativeISOHigh)
		rec.Confidence += 0.2
		rec.addReason("severely underexposed at high native ISO, raising to %d", rec.ISO)
	}
}

func (a *Advisor) adjustForOverexposure(rec *Recommendation) {
	switch {
	case rec.ISO > nativeISOHigh:
		rec.ISO = nativeISOHigh
		rec.Confidence += 0.2
		rec.addReason("image too bright, dropping to high native ISO %d", nativeISOHigh)
	case rec.ISO == nativeISOHigh:
		rec.ISO = nativeISOLow
		rec.Confidence += 0.3
		rec.addReason("image too bright, switching to low native ISO %d", nativeISOLow)
	case rec.ISO > nativeISOLow:
		rec.ISO = nativeISOLow
		rec.Confidence += 0.2
		rec.addReason("image too bright, dropping to native ISO %d", nativeISOLow)
	}
}

// snapToNativeISO pulls a well-exposed frame off an intermediate gain step
func (a *Advisor) snapToNativeISO(rec *Recommendation) {
	if rec.ISO == nativeISOLow || rec.ISO == nativeISOHigh {
		return
	}
	if rec.ISO < (nativeISOLow+nativeISOHigh)/2 {
		rec.ISO = nativeISOLow
	} else {
		rec.ISO = nativeISOHigh
	}
	rec.Confidence += 0.1
	rec.addReason("exposure in band, snapping to native ISO %d", rec.ISO)
}

func (a *Advisor) adjustEVBias(rec *Recommendation, m analysis.ExposureMetrics) {
	switch {
	case m.ClippedHighlights > highlightClipLimit:
		rec.EVBias = math.Max(rec.EVBias-0.7, evFloor)
		rec.Confidence += 0.2
		rec.addReason("%.1f%% highlights clipped, lowering EV bias to %+.1f", m.ClippedHighlights, rec.EVBias)
	case m.ClippedShadows > shadowClipLimit && m.MeanBrightness < 100:
		rec.EVBias = math.Min(rec.EVBias+0.5, evCeiling)
		rec.Confidence += 0.2
		rec.addReason("%.1f%% shadows crushed, raising EV bias to %+.1f", m.ClippedShadows, rec.EVBias)
	case m.SaturationLevel > saturationLimit:
		rec.EVBias = math.Max(rec.EVBias-0.3, evFloor)
		rec.Confidence += 0.1
		rec.addReason("near-saturation at %.1f%%, easing EV bias to %+.1f", m.SaturationLevel, rec.EVBias)
	}
}

// adjustAperture runs last among the optical controls: depth of field
// changes are the most visible, so only strong light cues move it.
func (a *Advisor) adjustAperture(rec *Recommendation, m analysis.ExposureMetrics, sun float64) {
	switch {
	case sun > 0.8 && rec.Aperture != "8.0":
		rec.Aperture = "8.0"
		rec.Confidence += 0.1
		rec.addReason("strong daylight, stopping down to f/8.0")
	case sun < 0.3 && rec.Aperture != "2.8":
		rec.Aperture = "2.8"
		rec.Confidence += 0.2
		rec.addReason("low ambient light, opening to f/2.8")
	case m.Contrast > 60 && rec.Aperture != "5.6":
		rec.Aperture = "5.6"
		rec.addReason("high scene contrast, settling at f/5.6")
	}
}

func (a *Advisor) adjustShutterAngle(rec *Recommendation, m analysis.ExposureMetrics, sun float64) {
	switch {
	case sun > 0.6 && m.Contrast > 40 && rec.ShutterAngle != 180:
		rec.ShutterAngle = 180
		rec.addReason("good light, standard 180 degree shutter")
	case m.MeanBrightness < 80 && rec.ShutterAngle != 270:
		rec.ShutterAngle = 270
		rec.Confidence += 0.1
		rec.addReason("dim scene, extending shutter angle to 270")
	}
}

func (a *Advisor) finalConfidence(rec *Recommendation, m analysis.ExposureMetrics) float64 {
	conf := rec.Confidence
	if len(rec.Reasons) == 0 {
		// Nothing to change is a confident answer in itself
		conf = math.Max(stableConfidence, conf)
	}
	if m.Contrast < 15 || m.Contrast > 80 {
		conf *= 0.8
	}
	if m.Score > 75 {
		conf += 0.1
	}
	return clampUnit(conf)
}

// SunFactor estimates relative sun intensity in [0.1,1] from the hour of
// day. A crude triangular model around solar noon; night hours floor at 0.1.
func (a *Advisor) SunFactor(now time.Time) float64 {
	hour := float64(now.Hour()) + float64(now.Minute())/60
	if hour < 6 || hour > 22 {
		return 0.1
	}
	elevation := 90 - math.Abs(hour-a.solarNoonHour)*12
	return math.Max(0.1, elevation/90)
}

func (r *Recommendation) addReason(format string, args ...interface{}) {
	r.Reasons = append(r.Reasons, fmt.Sprintf(format, args...))
}

func nextISOAbove(iso int) int {
	for _, v := range isoLadder {
		if v > iso {
			return v
		}
	}
	return isoLadder[len(isoLadder)-1]
}

// ValidShutterAngle reports whether the angle is one the camera accepts
func ValidShutterAngle(angle int) bool {
	for _, a := range ShutterAngles {
		if a == angle {
			return true
		}
	}
	return false
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
