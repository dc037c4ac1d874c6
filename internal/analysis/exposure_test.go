package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayFrame(width, height int, value byte) []byte {
	buf := make([]byte, width*height)
	for i := range buf {
		buf[i] = value
	}
	return buf
}

func TestExposureFlatMidGray(t *testing.T) {
	a := NewExposureAnalyzer(128)
	m := a.AnalyzeGray(grayFrame(64, 48, 128), 64, 48)

	assert.InDelta(t, 128.0, m.MeanBrightness, 0.01)
	assert.InDelta(t, 0.0, m.Contrast, 0.01)
	assert.Zero(t, m.ClippedHighlights)
	assert.Zero(t, m.ClippedShadows)
	assert.Equal(t, 100.0, m.MidtonesPercent)

	// Perfectly exposed flat field only pays the low-contrast penalty
	assert.InDelta(t, 85.0, m.Score, 0.1)
}

func TestExposureHalfBlackHalfWhite(t *testing.T) {
	buf := make([]byte, 100*100)
	for i := 5000; i < 10000; i++ {
		buf[i] = 255
	}
	a := NewExposureAnalyzer(128)
	m := a.AnalyzeGray(buf, 100, 100)

	assert.InDelta(t, 127.5, m.MeanBrightness, 0.01)
	assert.InDelta(t, 127.5, m.Contrast, 0.01)
	assert.InDelta(t, 50.0, m.ClippedHighlights, 0.01)
	assert.InDelta(t, 50.0, m.ClippedShadows, 0.01)
	// Pure black is excluded from the range floor, leaving 255 as both ends
	assert.InDelta(t, 0.0, m.DynamicRange, 0.01)

	// Heavy clipping on both ends drives the score to the floor
	assert.Equal(t, 0.0, m.Score)
}

func TestExposureDynamicRangeSkipsBlack(t *testing.T) {
	// Thirds of black, dark gray, near-white: the floor is the darkest
	// nonzero level, so black pixels do not widen the range
	buf := make([]byte, 300)
	for i := 0; i < 100; i++ {
		buf[100+i] = 5
		buf[200+i] = 250
	}
	a := NewExposureAnalyzer(128)
	m := a.AnalyzeGray(buf, 30, 10)

	assert.InDelta(t, 245.0, m.DynamicRange, 0.01)
}

func TestExposureDynamicRangeFlatFrame(t *testing.T) {
	a := NewExposureAnalyzer(128)
	m := a.AnalyzeGray(grayFrame(16, 16, 128), 16, 16)

	assert.InDelta(t, 0.0, m.DynamicRange, 0.01)
}

func TestExposureTonalDistribution(t *testing.T) {
	// One third in each band
	buf := make([]byte, 300)
	for i := 0; i < 100; i++ {
		buf[i] = 40
		buf[100+i] = 128
		buf[200+i] = 220
	}
	a := NewExposureAnalyzer(128)
	m := a.AnalyzeGray(buf, 30, 10)

	assert.InDelta(t, 33.33, m.ShadowsPercent, 0.1)
	assert.InDelta(t, 33.33, m.MidtonesPercent, 0.1)
	assert.InDelta(t, 33.33, m.HighlightsPercent, 0.1)
}

func TestExposureHistogramNormalized(t *testing.T) {
	a := NewExposureAnalyzer(128)
	m := a.AnalyzeGray(grayFrame(10, 10, 200), 10, 10)

	require.Len(t, m.Histogram, 256)
	sum := 0.0
	for _, v := range m.Histogram {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, 1.0, m.Histogram[200])
}

func TestExposureFromRGB(t *testing.T) {
	// Pure red: BT.601 luma = 0.299 * 255 ~ 76
	rgb := make([]byte, 8*8*3)
	for i := 0; i < 64; i++ {
		rgb[i*3] = 255
	}
	a := NewExposureAnalyzer(128)
	m := a.Analyze(rgb, 8, 8)

	assert.InDelta(t, 76.0, m.MeanBrightness, 1.0)
	assert.Equal(t, 64, m.TotalPixels)
}

func TestExposureRejectsShortBuffer(t *testing.T) {
	a := NewExposureAnalyzer(128)
	m := a.AnalyzeGray(make([]byte, 10), 100, 100)
	assert.Zero(t, m.TotalPixels)
	assert.Zero(t, m.Score)
}

func TestExposureScoreMonotonicInBrightnessError(t *testing.T) {
	a := NewExposureAnalyzer(128)
	onTarget := a.AnalyzeGray(grayFrame(32, 32, 128), 32, 32)
	dark := a.AnalyzeGray(grayFrame(32, 32, 100), 32, 32)
	darker := a.AnalyzeGray(grayFrame(32, 32, 60), 32, 32)

	assert.Greater(t, onTarget.Score, dark.Score)
	assert.Greater(t, dark.Score, darker.Score)
}
