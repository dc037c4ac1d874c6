package storage

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/surfvision/camtuner/internal/analysis"
)

// Focus grid annotation colors. Cell borders fade from red (soft) to green
// (sharp); the bar at the bottom of each cell shows the score.
var (
	softColor  = color.RGBA{R: 220, G: 60, B: 60, A: 255}
	sharpColor = color.RGBA{R: 60, G: 220, B: 60, A: 255}
)

const overlayBarHeight = 4

// drawFocusGrid copies the frame and paints the per-cell focus results on
// top of it
func drawFocusGrid(src image.Image, grid *analysis.FocusGrid) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	for _, cell := range grid.Cells {
		c := scoreColor(cell.Metrics.Score)
		drawRect(dst, cell.Region, c)
		drawScoreBar(dst, cell.Region, cell.Metrics.Score, c)
	}
	return dst
}

// scoreColor interpolates between the soft and sharp colors
func scoreColor(score float64) color.RGBA {
	t := score / 100
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	lerp := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t)
	}
	return color.RGBA{
		R: lerp(softColor.R, sharpColor.R),
		G: lerp(softColor.G, sharpColor.G),
		B: lerp(softColor.B, sharpColor.B),
		A: 255,
	}
}

func drawRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(dst.Bounds())
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.SetRGBA(x, r.Min.Y, c)
		dst.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.SetRGBA(r.Min.X, y, c)
		dst.SetRGBA(r.Max.X-1, y, c)
	}
}

// drawScoreBar fills a horizontal bar along the cell's bottom edge, its
// width proportional to the focus score
func drawScoreBar(dst *image.RGBA, r image.Rectangle, score float64, c color.RGBA) {
	r = r.Intersect(dst.Bounds())
	if r.Dy() <= overlayBarHeight+2 {
		return
	}
	width := int(float64(r.Dx()-4) * score / 100)
	bar := image.Rect(r.Min.X+2, r.Max.Y-overlayBarHeight-2, r.Min.X+2+width, r.Max.Y-2)
	draw.Draw(dst, bar, &image.Uniform{C: c}, image.Point{}, draw.Src)
}
