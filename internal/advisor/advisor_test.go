package advisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfvision/camtuner/internal/analysis"
)

func newTestAdvisor() *Advisor {
	return New(128, 15, 13)
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 15, hour, minute, 0, 0, time.UTC)
}

func TestRecommendDarkFrameRaisesISOBeforeAperture(t *testing.T) {
	a := newTestAdvisor()
	cur := Settings{ISO: 500, EVBias: 0, Aperture: "2.8", ShutterAngle: 270}
	m := analysis.ExposureMetrics{MeanBrightness: 60, Contrast: 40, Score: 50}

	rec := a.Recommend(m, cur, at(2, 0))

	assert.Equal(t, 2500, rec.ISO)
	// ISO is the lever; aperture stays put
	assert.Equal(t, "2.8", rec.Aperture)
	assert.InDelta(t, 0.8, rec.Confidence, 1e-9)
	require.NotEmpty(t, rec.Reasons)
	assert.True(t, rec.ShouldApply(0.6))
}

func TestRecommendBrightFrameDropsToLowNativeISO(t *testing.T) {
	a := newTestAdvisor()
	cur := Settings{ISO: 2500, Aperture: "5.6", ShutterAngle: 180}
	m := analysis.ExposureMetrics{MeanBrightness: 200, Contrast: 50, Score: 40}

	rec := a.Recommend(m, cur, at(10, 0))

	assert.Equal(t, 500, rec.ISO)
	assert.InDelta(t, 0.8, rec.Confidence, 1e-9)
}

func TestRecommendSevereUnderexposureLeavesNativeLadder(t *testing.T) {
	a := newTestAdvisor()
	cur := Settings{ISO: 2500, Aperture: "2.8", ShutterAngle: 270}
	m := analysis.ExposureMetrics{MeanBrightness: 70, Contrast: 40, Score: 30}

	rec := a.Recommend(m, cur, at(2, 0))

	assert.Equal(t, 3200, rec.ISO)
}

func TestRecommendSnapsIntermediateISOToNative(t *testing.T) {
	a := newTestAdvisor()
	cur := Settings{ISO: 800, Aperture: "5.6", ShutterAngle: 180}
	m := analysis.ExposureMetrics{MeanBrightness: 128, Contrast: 40, Score: 90}

	rec := a.Recommend(m, cur, at(10, 0))

	assert.Equal(t, 500, rec.ISO)
	require.NotEmpty(t, rec.Reasons)
}

func TestRecommendStableSceneNeedsNoChanges(t *testing.T) {
	a := newTestAdvisor()
	cur := Settings{ISO: 500, EVBias: 0, Aperture: "5.6", ShutterAngle: 180}
	m := analysis.ExposureMetrics{MeanBrightness: 128, Contrast: 40, Score: 80}

	rec := a.Recommend(m, cur, at(10, 0))

	assert.Equal(t, cur, rec.Settings)
	assert.Empty(t, rec.Reasons)
	// A clean frame with nothing to fix reports high confidence
	assert.InDelta(t, 0.9, rec.Confidence, 1e-9)
	assert.False(t, rec.ShouldApply(0.6))
}

func TestRecommendHighlightClippingLowersEV(t *testing.T) {
	a := newTestAdvisor()
	cur := Settings{ISO: 500, EVBias: 0, Aperture: "5.6", ShutterAngle: 180}
	m := analysis.ExposureMetrics{MeanBrightness: 130, Contrast: 40, ClippedHighlights: 10, Score: 50}

	rec := a.Recommend(m, cur, at(10, 0))

	assert.InDelta(t, -0.7, rec.EVBias, 1e-9)
}

func TestRecommendEVBiasRespectsFloor(t *testing.T) {
	a := newTestAdvisor()
	cur := Settings{ISO: 500, EVBias: -1.8, Aperture: "5.6", ShutterAngle: 180}
	m := analysis.ExposureMetrics{MeanBrightness: 130, Contrast: 40, ClippedHighlights: 10, Score: 50}

	rec := a.Recommend(m, cur, at(10, 0))

	assert.InDelta(t, -2.0, rec.EVBias, 1e-9)
}

func TestRecommendDimSceneExtendsShutterAngle(t *testing.T) {
	a := newTestAdvisor()
	cur := Settings{ISO: 2500, Aperture: "2.8", ShutterAngle: 180}
	m := analysis.ExposureMetrics{MeanBrightness: 60, Contrast: 40, Score: 40}

	rec := a.Recommend(m, cur, at(2, 0))

	assert.Equal(t, 270, rec.ShutterAngle)
	assert.True(t, ValidShutterAngle(rec.ShutterAngle))
}

func TestRecommendConfidenceClampedOnPathologicalInput(t *testing.T) {
	a := newTestAdvisor()
	cur := Settings{ISO: 300, EVBias: 0, Aperture: "8.0", ShutterAngle: 180}
	m := analysis.ExposureMetrics{
		MeanBrightness: 0,
		Contrast:       0,
		ClippedShadows: 100,
	}

	rec := a.Recommend(m, cur, at(2, 0))

	assert.LessOrEqual(t, rec.Confidence, 1.0)
	assert.GreaterOrEqual(t, rec.Confidence, 0.0)
}

func TestSunFactor(t *testing.T) {
	a := newTestAdvisor()

	assert.InDelta(t, 1.0, a.SunFactor(at(13, 0)), 1e-9)
	assert.InDelta(t, 0.1, a.SunFactor(at(2, 0)), 1e-9)
	assert.InDelta(t, 0.2, a.SunFactor(at(7, 0)), 1e-9)

	// Midday beats morning, morning beats night
	assert.Greater(t, a.SunFactor(at(13, 0)), a.SunFactor(at(8, 0)))
	assert.Greater(t, a.SunFactor(at(8, 0)), a.SunFactor(at(23, 30)))
}

func TestValidShutterAngle(t *testing.T) {
	for _, angle := range ShutterAngles {
		assert.True(t, ValidShutterAngle(angle))
	}
	assert.False(t, ValidShutterAngle(45))
	assert.False(t, ValidShutterAngle(360))
}
