package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

/*
Mosaic merges clipped grids into one virtual grid aligned at cell resolution.
All grids must share the (north-up) resolution within tolerance. Where grids overlap the
first grid with data wins, cells without any data stay NaN.
*/
func Mosaic(grids []*Grid, tolerance float64) (*Grid, error) {
	// grids without cells carry no data and no usable extent
	nonEmpty := make([]*Grid, 0, len(grids))
	for _, grid := range grids {
		if grid != nil && grid.Width > 0 && grid.Height > 0 {
			nonEmpty = append(nonEmpty, grid)
		}
	}
	grids = nonEmpty

	if len(grids) == 0 {
		return nil, fmt.Errorf("mosaic without input grids: %w", ErrNoCoverage)
	}
	if len(grids) == 1 {
		return grids[0], nil
	}

	resX, resY := grids[0].Resolution()
	union := grids[0].Bounds()
	for i, grid := range grids {
		if err := grid.Transform.Validate(); err != nil {
			return nil, fmt.Errorf("mosaic grid %d: %v: %w", i, err, ErrInconsistentRaster)
		}
		gx, gy := grid.Resolution()
		if !SameResolution(resX, gx, tolerance) || !SameResolution(resY, gy, tolerance) {
			return nil, fmt.Errorf("mosaic grid %d has resolution (%g, %g), expected (%g, %g): %w",
				i, gx, gy, resX, resY, ErrInconsistentRaster)
		}
		union = union.Union(grid.Bounds())
	}

	width := int(math.Round((union.Max[0] - union.Min[0]) / resX))
	height := int(math.Round((union.Max[1] - union.Min[1]) / resY))
	gt := GeoTransform{union.Min[0], resX, 0, union.Max[1], 0, -resY}
	merged := NewGrid(gt, width, height)

	for _, grid := range grids {
		for row := 0; row < grid.Height; row++ {
			for col := 0; col < grid.Width; col++ {
				value := grid.At(col, row)
				if math.IsNaN(value) {
					continue
				}
				center := grid.CellCenter(col, row)
				targetCol, targetRow, ok := merged.CellOf(center[0], center[1])
				if !ok || !math.IsNaN(merged.At(targetCol, targetRow)) {
					continue
				}
				merged.Set(targetCol, targetRow, value)
			}
		}
	}

	return merged, nil
}

/*
Clip copies the cells of g touching bound b into a new grid.
The returned grid is empty (zero cells) if b does not overlap g.
*/
func Clip(g *Grid, b orb.Bound) *Grid {
	window := g.Transform.PixelWindow(b, g.Width, g.Height)
	if window.Empty() {
		return &Grid{Transform: g.Transform.Shift(window.Col, window.Row)}
	}
	clipped := NewGrid(g.Transform.Shift(window.Col, window.Row), window.Width, window.Height)
	for row := 0; row < window.Height; row++ {
		copy(clipped.Values[row*window.Width:(row+1)*window.Width],
			g.Values[(window.Row+row)*g.Width+window.Col:(window.Row+row)*g.Width+window.Col+window.Width])
	}
	return clipped
}
