package raster

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

/*
CategoryCounts returns the per-category pixel counts of all cells touched by poly.
A cell counts if any part of it is covered by the polygon ("all touched" rule), not just
its center. Cells without data are skipped. Counts are floating point accumulators.
*/
func CategoryCounts(g *Grid, poly orb.Polygon) map[int]float64 {
	counts := make(map[int]float64)
	forTouchedCells(g, poly, func(value float64) {
		counts[int(math.Round(value))]++
	})
	return counts
}

/*
CoveredValues returns the raw values of all cells touched by poly (continuous rasters).
*/
func CoveredValues(g *Grid, poly orb.Polygon) []float64 {
	var values []float64
	forTouchedCells(g, poly, func(value float64) {
		values = append(values, value)
	})
	return values
}

/*
forTouchedCells calls fn for each cell with data that is touched by poly.
Row by row, cells crossed by a polygon edge are touched; the remaining cells are either
completely inside or completely outside, which is decided by their center.
*/
func forTouchedCells(g *Grid, poly orb.Polygon, fn func(value float64)) {
	if len(poly) == 0 || g.Width == 0 || g.Height == 0 {
		return
	}
	window := g.Transform.PixelWindow(poly.Bound(), g.Width, g.Height)
	if window.Empty() {
		return
	}

	type interval struct{ lo, hi float64 }
	var edges []interval

	for row := window.Row; row < window.Row+window.Height; row++ {
		rowBound := g.CellBounds(window.Col, row)
		y0, y1 := rowBound.Min[1], rowBound.Max[1]

		// x ranges of all polygon edges clipped to this row band
		edges = edges[:0]
		for _, ring := range poly {
			for i := 0; i+1 < len(ring); i++ {
				lo, hi, ok := clipSegmentToBand(ring[i], ring[i+1], y0, y1)
				if ok {
					edges = append(edges, interval{lo, hi})
				}
			}
		}

		for col := window.Col; col < window.Col+window.Width; col++ {
			value := g.At(col, row)
			if math.IsNaN(value) {
				continue
			}
			cell := g.CellBounds(col, row)

			touched := false
			for _, e := range edges {
				if e.lo <= cell.Max[0] && e.hi >= cell.Min[0] {
					touched = true
					break
				}
			}
			if !touched {
				touched = planar.PolygonContains(poly, g.CellCenter(col, row))
			}
			if touched {
				fn(value)
			}
		}
	}
}

/*
clipSegmentToBand returns the x range of the part of segment a-b with y in [y0, y1].
*/
func clipSegmentToBand(a, b orb.Point, y0, y1 float64) (lo, hi float64, ok bool) {
	if math.Max(a[1], b[1]) < y0 || math.Min(a[1], b[1]) > y1 {
		return 0, 0, false
	}
	// horizontal segment inside the band
	if a[1] == b[1] {
		return math.Min(a[0], b[0]), math.Max(a[0], b[0]), true
	}
	xAt := func(y float64) float64 {
		t := (y - a[1]) / (b[1] - a[1])
		t = math.Max(0, math.Min(1, t))
		return a[0] + t*(b[0]-a[0])
	}
	xa, xb := xAt(y0), xAt(y1)
	return math.Min(xa, xb), math.Max(xa, xb), true
}
