package analysis

import (
	"math"
)

// ExposureMetrics holds brightness statistics derived from a single frame.
// All values are recomputed from scratch per frame; nothing is carried over.
type ExposureMetrics struct {
	MeanBrightness    float64   `json:"mean_brightness"`
	Contrast          float64   `json:"contrast"`      // luma standard deviation
	DynamicRange      float64   `json:"dynamic_range"` // max luma minus min nonzero luma
	ClippedHighlights float64   `json:"clipped_highlights"` // % pixels >= 250
	ClippedShadows    float64   `json:"clipped_shadows"`    // % pixels <= 5
	ShadowsPercent    float64   `json:"shadows_percent"`    // luma 0-85
	MidtonesPercent   float64   `json:"midtones_percent"`   // luma 86-170
	HighlightsPercent float64   `json:"highlights_percent"` // luma 171-255
	SaturationLevel   float64   `json:"saturation_level"`   // % pixels >= 240
	Score             float64   `json:"exposure_score"`     // 0-100
	TotalPixels       int       `json:"total_pixels"`
	Histogram         []float64 `json:"-"` // 256 bins, normalized
}

const (
	highlightClipLevel = 250
	shadowClipLevel    = 5
	nearSaturationLevel = 240
	shadowBandMax      = 85
	midtoneBandMax     = 170
)

// Exposure score weighting. The constants follow the production controller
// tuning: brightness deviation dominates with a hard cap, highlight clipping
// costs more than shadow clipping, and only genuinely flat frames (stddev
// under 15) pay a contrast penalty.
const (
	brightnessPenaltyWeight = 1.5
	brightnessPenaltyCap    = 50.0
	highlightPenaltyWeight  = 3.0
	shadowPenaltyWeight     = 2.0
	lowContrastFloor        = 15.0
)

// ExposureAnalyzer scores frame exposure against a target mean brightness
type ExposureAnalyzer struct {
	targetBrightness float64
}

// NewExposureAnalyzer creates an analyzer for the given target brightness (0-255)
func NewExposureAnalyzer(targetBrightness float64) *ExposureAnalyzer {
	return &ExposureAnalyzer{targetBrightness: targetBrightness}
}

// TargetBrightness returns the configured target mean luma
func (a *ExposureAnalyzer) TargetBrightness() float64 {
	return a.targetBrightness
}

// Analyze computes exposure metrics from packed RGB24 pixel data
func (a *ExposureAnalyzer) Analyze(rgb []byte, width, height int) ExposureMetrics {
	total := width * height
	if total <= 0 || len(rgb) < total*3 {
		return ExposureMetrics{}
	}

	gray := Grayscale(rgb, width, height)
	return a.AnalyzeGray(gray, width, height)
}

// AnalyzeGray computes exposure metrics from an 8-bit grayscale buffer. This
// is the path used when the decoder's luma plane is already available.
func (a *ExposureAnalyzer) AnalyzeGray(gray []byte, width, height int) ExposureMetrics {
	total := width * height
	if total <= 0 || len(gray) < total {
		return ExposureMetrics{}
	}

	var hist [256]int
	var sum, sumSq float64
	for _, g := range gray[:total] {
		v := float64(g)
		sum += v
		sumSq += v * v
		hist[g]++
	}

	m := ExposureMetrics{
		TotalPixels: total,
		Histogram:   make([]float64, 256),
	}

	m.MeanBrightness = sum / float64(total)
	variance := sumSq/float64(total) - m.MeanBrightness*m.MeanBrightness
	m.Contrast = math.Sqrt(math.Max(0, variance))

	highlightCount := 0
	shadowCount := 0
	saturatedCount := 0
	shadows := 0
	midtones := 0
	highlights := 0
	minLuma, maxLuma := -1, 0
	for level, count := range hist {
		m.Histogram[level] = float64(count) / float64(total)
		if count == 0 {
			continue
		}
		// Level 0 is excluded from the range floor: sensor dead pixels
		// and letterbox bars would otherwise pin it to zero.
		if level > 0 && minLuma == -1 {
			minLuma = level
		}
		maxLuma = level

		if level >= highlightClipLevel {
			highlightCount += count
		}
		if level <= shadowClipLevel {
			shadowCount += count
		}
		if level >= nearSaturationLevel {
			saturatedCount += count
		}
		switch {
		case level <= shadowBandMax:
			shadows += count
		case level <= midtoneBandMax:
			midtones += count
		default:
			highlights += count
		}
	}
	if minLuma >= 0 {
		m.DynamicRange = float64(maxLuma - minLuma)
	}

	pct := 100.0 / float64(total)
	m.ClippedHighlights = float64(highlightCount) * pct
	m.ClippedShadows = float64(shadowCount) * pct
	m.SaturationLevel = float64(saturatedCount) * pct
	m.ShadowsPercent = float64(shadows) * pct
	m.MidtonesPercent = float64(midtones) * pct
	m.HighlightsPercent = float64(highlights) * pct

	m.Score = a.score(m)
	return m
}

// score derives the composite 0-100 exposure quality score
func (a *ExposureAnalyzer) score(m ExposureMetrics) float64 {
	score := 100.0

	brightnessError := math.Abs(m.MeanBrightness - a.targetBrightness)
	score -= math.Min(brightnessError*brightnessPenaltyWeight, brightnessPenaltyCap)

	score -= m.ClippedHighlights * highlightPenaltyWeight
	score -= m.ClippedShadows * shadowPenaltyWeight

	if m.Contrast < lowContrastFloor {
		score -= lowContrastFloor - m.Contrast
	}

	return clamp(score, 0, 100)
}

// Grayscale converts packed RGB24 data to 8-bit luma using BT.601 weights
func Grayscale(rgb []byte, width, height int) []byte {
	total := width * height
	gray := make([]byte, total)
	for i := 0; i < total; i++ {
		p := i * 3
		r := float64(rgb[p])
		g := float64(rgb[p+1])
		b := float64(rgb[p+2])
		gray[i] = byte(0.299*r + 0.587*g + 0.114*b)
	}
	return gray
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
