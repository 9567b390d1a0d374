package domain

import (
	"fmt"
	"math"
	"sort"
)

// Grid is a row-major 2D raster. No-data cells hold NaN.
type Grid [][]float64

// NewGrid allocates a rows×cols grid filled with the given value.
func NewGrid(rows, cols int, fill float64) Grid {
	g := make(Grid, rows)
	for r := range g {
		g[r] = make([]float64, cols)
		for c := range g[r] {
			g[r][c] = fill
		}
	}
	return g
}

// Dims returns (rows, cols). An empty grid is (0, 0).
func (g Grid) Dims() (int, int) {
	if len(g) == 0 {
		return 0, 0
	}
	return len(g), len(g[0])
}

func (g Grid) sameShape(o Grid) bool {
	gr, gc := g.Dims()
	or, oc := o.Dims()
	return gr == or && gc == oc
}

// ValidValues returns all non-NaN cells.
func (g Grid) ValidValues() []float64 {
	var vals []float64
	for _, row := range g {
		for _, v := range row {
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
	}
	return vals
}

// MaskParams tunes the cloud-mask dilation and smoothing stages.
type MaskParams struct {
	// DilationRadius grows the cloud mask with a cross-shaped structuring
	// element, one pixel per iteration.
	DilationRadius int
	// EdgeIterations applies an extra 3×3 (8-connected) dilation this many
	// times to remove thin cloud edges.
	EdgeIterations int
	// SmoothWindow is the square window of the median filter.
	SmoothWindow int
}

// DefaultMaskParams returns the operational settings: radius 7, three 3×3
// edge rounds, 5×5 smoothing.
func DefaultMaskParams() MaskParams {
	return MaskParams{DilationRadius: 7, EdgeIterations: 3, SmoothWindow: 5}
}

const kelvinOffset = 273.15

// MaskScene turns a raw scene into an AOI-clipped, cloud-filtered, smoothed
// temperature grid in °C plus a clear-sky percentage.
//
// The stages are: AOI rasterization, cloud flag composition, crop, mask
// dilation, valid-pixel fill, median-fill plus median-filter smoothing, and
// the clear-sky score. A scene whose valid subset ends up empty yields
// ErrEmptyScene, which is an expected outcome for fully overcast passes.
func MaskScene(raw RawSceneGrids, aoi AreaOfInterest, p MaskParams) (Grid, float64, error) {
	rows, cols := raw.TemperatureK.Dims()
	if rows == 0 || cols == 0 {
		return nil, 0, fmt.Errorf("%w: empty temperature grid", ErrInvalidParameter)
	}
	if !raw.TemperatureK.sameShape(raw.PixelLat) || !raw.TemperatureK.sameShape(raw.PixelLon) {
		return nil, 0, fmt.Errorf("%w: coordinate grids do not match temperature grid shape", ErrInvalidParameter)
	}

	aoiMask := rasterizeAOI(raw.PixelLon, raw.PixelLat, aoi)
	cloud := combineCloudFlags(raw, rows, cols)

	// Clouds outside the AOI are irrelevant; zeroing them before dilation
	// keeps the mask from bleeding in from off-AOI pixels.
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cloud[r][c] = cloud[r][c] && aoiMask[r][c]
		}
	}

	dilated := dilate(cloud, p.DilationRadius, false)
	dilated = dilate(dilated, p.EdgeIterations, true)

	filtered := NewGrid(rows, cols, math.NaN())
	valid := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if aoiMask[r][c] && !dilated[r][c] && !math.IsNaN(raw.TemperatureK[r][c]) {
				filtered[r][c] = raw.TemperatureK[r][c] - kelvinOffset
				valid++
			}
		}
	}
	if valid == 0 {
		return nil, 0, ErrEmptyScene
	}

	smoothed := medianSmooth(filtered, p.SmoothWindow)
	clearSkyPct := 100 * float64(valid) / float64(rows*cols)
	return smoothed, clearSkyPct, nil
}

func rasterizeAOI(lon, lat Grid, aoi AreaOfInterest) [][]bool {
	rows, cols := lon.Dims()
	mask := make([][]bool, rows)
	for r := 0; r < rows; r++ {
		mask[r] = make([]bool, cols)
		for c := 0; c < cols; c++ {
			mask[r][c] = aoi.Contains(lon[r][c], lat[r][c])
		}
	}
	return mask
}

func combineCloudFlags(raw RawSceneGrids, rows, cols int) [][]bool {
	combined := make([][]bool, rows)
	for r := range combined {
		combined[r] = make([]bool, cols)
	}
	for _, name := range CloudFlagNames {
		flag, ok := raw.Flags[name]
		if !ok || !raw.TemperatureK.sameShape(flag) {
			continue
		}
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if flag[r][c] != 0 && !math.IsNaN(flag[r][c]) {
					combined[r][c] = true
				}
			}
		}
	}
	return combined
}

// dilate grows a boolean mask by one pixel per iteration. With diagonal set
// the structuring element is the full 3×3 square, otherwise the 4-connected
// cross.
func dilate(mask [][]bool, iterations int, diagonal bool) [][]bool {
	rows := len(mask)
	if rows == 0 || iterations <= 0 {
		return mask
	}
	cols := len(mask[0])

	cur := mask
	for i := 0; i < iterations; i++ {
		next := make([][]bool, rows)
		for r := 0; r < rows; r++ {
			next[r] = make([]bool, cols)
			for c := 0; c < cols; c++ {
				if cur[r][c] {
					next[r][c] = true
					continue
				}
				next[r][c] = anyNeighbor(cur, r, c, diagonal)
			}
		}
		cur = next
	}
	return cur
}

func anyNeighbor(mask [][]bool, r, c int, diagonal bool) bool {
	rows, cols := len(mask), len(mask[0])
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			if !diagonal && dr != 0 && dc != 0 {
				continue
			}
			nr, nc := r+dr, c+dc
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			if mask[nr][nc] {
				return true
			}
		}
	}
	return false
}

// medianSmooth fills no-data cells with the grid median, runs a square
// median filter to suppress salt-and-pepper noise, then restores no-data at
// the originally empty positions so only previously valid pixels receive
// the smoothed value.
func medianSmooth(g Grid, window int) Grid {
	rows, cols := g.Dims()
	fillValue := Median(g.ValidValues())

	filled := NewGrid(rows, cols, 0)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if math.IsNaN(g[r][c]) {
				filled[r][c] = fillValue
			} else {
				filled[r][c] = g[r][c]
			}
		}
	}

	half := window / 2
	out := NewGrid(rows, cols, math.NaN())
	win := make([]float64, 0, window*window)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if math.IsNaN(g[r][c]) {
				continue
			}
			win = win[:0]
			for wr := r - half; wr <= r+half; wr++ {
				for wc := c - half; wc <= c+half; wc++ {
					if wr < 0 || wr >= rows || wc < 0 || wc >= cols {
						continue
					}
					win = append(win, filled[wr][wc])
				}
			}
			out[r][c] = Median(win)
		}
	}
	return out
}

// Median returns the middle value of vals, averaging the two central values
// for even counts. Returns NaN for an empty slice. The input is not modified.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
