// Package raster provides the in-memory raster primitives of the landuse aggregator:
// georeferenced grids, pixel windows, mosaicking and zonal statistics.
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// GeoTransform is the GDAL affine transform of a north-up raster.
//
//	x = gt[0] + col*gt[1] + row*gt[2]
//	y = gt[3] + col*gt[4] + row*gt[5]
type GeoTransform [6]float64

// Window is a pixel window (column/row offset and size) of a raster.
type Window struct {
	Col, Row      int
	Width, Height int
}

// Empty reports whether the window holds no cells.
func (w Window) Empty() bool {
	return w.Width <= 0 || w.Height <= 0
}

// Grid is a single band of cell values, row-major, with NaN marking cells without data.
type Grid struct {
	Transform GeoTransform
	Width     int
	Height    int
	Values    []float64
}

/*
NewGrid creates a grid filled with NaN (no data).
*/
func NewGrid(gt GeoTransform, width, height int) *Grid {
	values := make([]float64, width*height)
	for i := range values {
		values[i] = math.NaN()
	}
	return &Grid{Transform: gt, Width: width, Height: height, Values: values}
}

// At returns the value of cell (col, row).
func (g *Grid) At(col, row int) float64 {
	return g.Values[row*g.Width+col]
}

// Set sets the value of cell (col, row).
func (g *Grid) Set(col, row int, value float64) {
	g.Values[row*g.Width+col] = value
}

// Resolution returns the absolute cell size along x and y.
func (g *Grid) Resolution() (float64, float64) {
	return g.Transform.Resolution()
}

// Bounds returns the outer bounds of the grid.
func (g *Grid) Bounds() orb.Bound {
	return g.Transform.Bounds(g.Width, g.Height)
}

// CellBounds returns the bounds of cell (col, row).
func (g *Grid) CellBounds(col, row int) orb.Bound {
	gt := g.Transform
	x0 := gt[0] + float64(col)*gt[1]
	x1 := x0 + gt[1]
	y0 := gt[3] + float64(row)*gt[5]
	y1 := y0 + gt[5]
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// CellCenter returns the projected coordinates of the center of cell (col, row).
func (g *Grid) CellCenter(col, row int) orb.Point {
	gt := g.Transform
	return orb.Point{
		gt[0] + (float64(col)+0.5)*gt[1],
		gt[3] + (float64(row)+0.5)*gt[5],
	}
}

/*
CellOf returns the cell containing the projected coordinate (x, y).
ok is false if the coordinate lies outside the grid.
*/
func (g *Grid) CellOf(x, y float64) (col, row int, ok bool) {
	col, row = g.Transform.Cell(x, y)
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return col, row, false
	}
	return col, row, true
}

/*
Validate checks the transform for rotation and zero cell size.
*/
func (gt GeoTransform) Validate() error {
	// this implementation assumes a north-up image (gt[2] and gt[4] are 0)
	if gt[2] != 0.0 || gt[4] != 0.0 {
		return fmt.Errorf("raster appears to be rotated or skewed (gt[2]=%f, gt[4]=%f)", gt[2], gt[4])
	}
	if gt[1] == 0 || gt[5] == 0 {
		return fmt.Errorf("invalid geotransform: pixel width (gt[1]=%f) or height (gt[5]=%f) is zero", gt[1], gt[5])
	}
	return nil
}

// Resolution returns the absolute cell size along x and y.
func (gt GeoTransform) Resolution() (float64, float64) {
	return math.Abs(gt[1]), math.Abs(gt[5])
}

/*
Cell converts a projected coordinate into (possibly out of range) cell indices.
--> col = (x - gt[0]) / gt[1]
--> row = (y - gt[3]) / gt[5]
*/
func (gt GeoTransform) Cell(x, y float64) (col, row int) {
	col = int(math.Floor((x - gt[0]) / gt[1]))
	row = int(math.Floor((y - gt[3]) / gt[5]))
	return col, row
}

// Bounds returns the outer bounds of a raster of the given size.
func (gt GeoTransform) Bounds(width, height int) orb.Bound {
	x0 := gt[0]
	x1 := gt[0] + float64(width)*gt[1]
	y0 := gt[3]
	y1 := gt[3] + float64(height)*gt[5]
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// Shift returns the transform of a window starting at (col, row).
func (gt GeoTransform) Shift(col, row int) GeoTransform {
	shifted := gt
	shifted[0] = gt[0] + float64(col)*gt[1]
	shifted[3] = gt[3] + float64(row)*gt[5]
	return shifted
}

/*
PixelWindow returns the window of cells that touch the bound b, clamped to a raster of
width x height cells. Partially covered edge cells are included.
*/
func (gt GeoTransform) PixelWindow(b orb.Bound, width, height int) Window {
	colA := (b.Min[0] - gt[0]) / gt[1]
	colB := (b.Max[0] - gt[0]) / gt[1]
	rowA := (b.Min[1] - gt[3]) / gt[5]
	rowB := (b.Max[1] - gt[3]) / gt[5]

	col0 := int(math.Floor(math.Min(colA, colB)))
	col1 := int(math.Ceil(math.Max(colA, colB)))
	row0 := int(math.Floor(math.Min(rowA, rowB)))
	row1 := int(math.Ceil(math.Max(rowA, rowB)))

	col0 = max(col0, 0)
	row0 = max(row0, 0)
	col1 = min(col1, width)
	row1 = min(row1, height)

	return Window{Col: col0, Row: row0, Width: col1 - col0, Height: row1 - row0}
}

/*
Overlaps tests two bounds with interval-overlap logic on both axes independently.
Partial overlap counts, touching edges do not.
*/
func Overlaps(a, b orb.Bound) bool {
	return a.Min[0] < b.Max[0] && b.Min[0] < a.Max[0] &&
		a.Min[1] < b.Max[1] && b.Min[1] < a.Max[1]
}

// StrictlyContains reports whether p lies strictly inside b.
func StrictlyContains(b orb.Bound, p orb.Point) bool {
	return p[0] > b.Min[0] && p[0] < b.Max[0] && p[1] > b.Min[1] && p[1] < b.Max[1]
}

// SameResolution compares two resolutions with a relative tolerance.
func SameResolution(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b)/math.Abs(a) <= tolerance
}
