package video

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameDimensions(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	f := NewFrame(img, time.Now())

	assert.Equal(t, 32, f.Width)
	assert.Equal(t, 24, f.Height)
}

func TestFrameLumaFromYCbCr(t *testing.T) {
	img := image.NewYCbCr(image.Rect(0, 0, 16, 8), image.YCbCrSubsampleRatio420)
	for i := range img.Y {
		img.Y[i] = 200
	}

	f := NewFrame(img, time.Now())
	luma := f.Luma()

	require.Len(t, luma, 16*8)
	for _, v := range luma {
		assert.EqualValues(t, 200, v)
	}
}

func TestFrameLumaFromRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	f := NewFrame(img, time.Now())
	luma := f.Luma()

	require.Len(t, luma, 16)
	// Pure red under BT.601
	assert.InDelta(t, 76, float64(luma[0]), 1)
}

func TestFrameLumaNonZeroOrigin(t *testing.T) {
	img := image.NewYCbCr(image.Rect(10, 10, 26, 18), image.YCbCrSubsampleRatio420)
	for i := range img.Y {
		img.Y[i] = 123
	}

	f := NewFrame(img, time.Now())
	luma := f.Luma()

	require.Len(t, luma, 16*8)
	assert.EqualValues(t, 123, luma[len(luma)-1])
}

func TestDecodeArgs(t *testing.T) {
	args := decodeArgs()
	assert.Contains(t, args, "pipe:0")
	assert.Contains(t, args, "pipe:1")
	assert.Contains(t, args, "h264")
	assert.Contains(t, args, "mjpeg")
}
