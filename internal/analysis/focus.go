package analysis

import (
	"image"
	"math"
)

// FocusMetrics holds sharpness statistics for a frame or a region of one
type FocusMetrics struct {
	Sharpness      float64 `json:"sharpness"`        // variance of Laplacian
	EdgeDensity    float64 `json:"edge_density"`     // mean Sobel magnitude
	HighFreqEnergy float64 `json:"high_freq_energy"` // mean deviation from local mean
	Score          float64 `json:"focus_score"`      // 0-100
}

// FocusCell is one tile of a focus grid, used for across-frame comparison
// and snapshot annotation
type FocusCell struct {
	Region  image.Rectangle `json:"-"`
	Row     int             `json:"row"`
	Col     int             `json:"col"`
	Metrics FocusMetrics    `json:"metrics"`
}

// FocusGrid is the per-tile sharpness map of a frame
type FocusGrid struct {
	Rows  int         `json:"rows"`
	Cols  int         `json:"cols"`
	Cells []FocusCell `json:"cells"`
}

// Normalization ceilings for the composite score. Responses at or above
// these values saturate their term.
const (
	sharpnessNorm = 1500.0
	edgeNorm      = 100.0
	highFreqNorm  = 40.0

	sharpnessWeight = 0.5
	edgeWeight      = 0.3
	highFreqWeight  = 0.2
)

// FocusAnalyzer measures image sharpness on 8-bit grayscale data
type FocusAnalyzer struct{}

// NewFocusAnalyzer creates a focus analyzer
func NewFocusAnalyzer() *FocusAnalyzer {
	return &FocusAnalyzer{}
}

// Analyze computes focus metrics over a full grayscale frame
func (f *FocusAnalyzer) Analyze(gray []byte, width, height int) FocusMetrics {
	return f.AnalyzeRegion(gray, width, height, image.Rect(0, 0, width, height))
}

// AnalyzeRegion computes focus metrics over a rectangular region of a
// grayscale frame. The region is clipped to the frame bounds; regions too
// small for a 3x3 neighborhood yield zero metrics.
func (f *FocusAnalyzer) AnalyzeRegion(gray []byte, width, height int, region image.Rectangle) FocusMetrics {
	return f.analyzePlane(gray, width, width, height, region)
}

// AnalyzeLuma computes focus metrics directly on a decoder luma plane with
// an explicit row stride, avoiding a copy of the pixel data.
func (f *FocusAnalyzer) AnalyzeLuma(plane []byte, stride, width, height int, region image.Rectangle) FocusMetrics {
	return f.analyzePlane(plane, stride, width, height, region)
}

func (f *FocusAnalyzer) analyzePlane(plane []byte, stride, width, height int, region image.Rectangle) FocusMetrics {
	r := region.Intersect(image.Rect(0, 0, width, height))
	// Kernels need one pixel of margin on every side
	x0 := max(r.Min.X, 1)
	y0 := max(r.Min.Y, 1)
	x1 := min(r.Max.X, width-1)
	y1 := min(r.Max.Y, height-1)
	if x1-x0 < 1 || y1-y0 < 1 || len(plane) < (height-1)*stride+width {
		return FocusMetrics{}
	}

	var lapSum, edgeSum, hfSum float64
	count := 0
	for y := y0; y < y1; y++ {
		row := y * stride
		above := row - stride
		below := row + stride
		for x := x0; x < x1; x++ {
			tl := float64(plane[above+x-1])
			tc := float64(plane[above+x])
			tr := float64(plane[above+x+1])
			ml := float64(plane[row+x-1])
			mc := float64(plane[row+x])
			mr := float64(plane[row+x+1])
			bl := float64(plane[below+x-1])
			bc := float64(plane[below+x])
			br := float64(plane[below+x+1])

			lap := 4*mc - tc - bc - ml - mr
			lapSum += lap * lap

			gx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy := (bl + 2*bc + br) - (tl + 2*tc + tr)
			edgeSum += math.Sqrt(gx*gx + gy*gy)

			local := (tl + tc + tr + ml + mc + mr + bl + bc + br) / 9
			hfSum += math.Abs(mc - local)

			count++
		}
	}

	n := float64(count)
	m := FocusMetrics{
		Sharpness:      lapSum / n,
		EdgeDensity:    edgeSum / n,
		HighFreqEnergy: hfSum / n,
	}
	m.Score = compositeFocusScore(m)
	return m
}

// Grid divides the frame into rows x cols tiles and computes per-tile focus
// metrics. Edge tiles absorb the remainder when dimensions do not divide
// evenly.
func (f *FocusAnalyzer) Grid(gray []byte, width, height, rows, cols int) FocusGrid {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	grid := FocusGrid{
		Rows:  rows,
		Cols:  cols,
		Cells: make([]FocusCell, 0, rows*cols),
	}
	cellW := width / cols
	cellH := height / rows
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x0 := col * cellW
			y0 := row * cellH
			x1 := x0 + cellW
			y1 := y0 + cellH
			if col == cols-1 {
				x1 = width
			}
			if row == rows-1 {
				y1 = height
			}
			region := image.Rect(x0, y0, x1, y1)
			grid.Cells = append(grid.Cells, FocusCell{
				Region:  region,
				Row:     row,
				Col:     col,
				Metrics: f.AnalyzeRegion(gray, width, height, region),
			})
		}
	}
	return grid
}

// SharpestCell returns the cell with the highest focus score, or nil for an
// empty grid
func (g *FocusGrid) SharpestCell() *FocusCell {
	var best *FocusCell
	for i := range g.Cells {
		if best == nil || g.Cells[i].Metrics.Score > best.Metrics.Score {
			best = &g.Cells[i]
		}
	}
	return best
}

func compositeFocusScore(m FocusMetrics) float64 {
	s := sharpnessWeight*math.Min(m.Sharpness/sharpnessNorm, 1) +
		edgeWeight*math.Min(m.EdgeDensity/edgeNorm, 1) +
		highFreqWeight*math.Min(m.HighFreqEnergy/highFreqNorm, 1)
	return clamp(s*100, 0, 100)
}
