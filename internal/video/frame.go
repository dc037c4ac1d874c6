package video

import (
	"image"
	"time"
)

// Frame is one decoded video frame
type Frame struct {
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time
}

// NewFrame wraps a decoded image with its capture timestamp
func NewFrame(img image.Image, capturedAt time.Time) *Frame {
	b := img.Bounds()
	return &Frame{
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: capturedAt,
	}
}

// Luma returns the frame as a tightly packed 8-bit grayscale buffer. JPEG
// decodes arrive as YCbCr, so the common case is a plane copy; anything
// else goes through BT.601 conversion.
func (f *Frame) Luma() []byte {
	b := f.Image.Bounds()
	out := make([]byte, f.Width*f.Height)

	if ycbcr, ok := f.Image.(*image.YCbCr); ok {
		for y := 0; y < f.Height; y++ {
			src := ycbcr.YOffset(b.Min.X, b.Min.Y+y)
			copy(out[y*f.Width:(y+1)*f.Width], ycbcr.Y[src:src+f.Width])
		}
		return out
	}

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, bl, _ := f.Image.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// RGBA returns 16-bit channels
			luma := (299*(r>>8) + 587*(g>>8) + 114*(bl>>8)) / 1000
			out[y*f.Width+x] = byte(luma)
		}
	}
	return out
}
