// Package sampler reads raster values at points and inside polygons, merging the covering
// tiles into one virtual raster when a geometry crosses tile boundaries.
package sampler

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

// TileReader reads raster cells of a tile. Implementations open the tile per call and
// release it before returning.
type TileReader interface {
	// ReadWindow returns the cells touching b (NaN for no data), clamped to the tile.
	ReadWindow(tile catalog.Tile, b orb.Bound) (*raster.Grid, error)
	// ReadPoint returns the value of the cell containing p (NaN for no data).
	ReadPoint(tile catalog.Tile, p orb.Point) (float64, error)
}

// Sample is the result of a polygon sample.
type Sample struct {
	Counts map[int]float64 // pixel counts per category (categorical rasters)
	Values []float64       // covered cell values (continuous rasters)
	Tiles  int             // number of tiles involved
}

// Pixels returns the number of covered cells with data.
func (s Sample) Pixels() float64 {
	if s.Counts == nil {
		return float64(len(s.Values))
	}
	total := 0.0
	for _, count := range s.Counts {
		total += count
	}
	return total
}

// Sampler samples tiles of one resolution.
type Sampler struct {
	reader    TileReader
	tolerance float64
}

// New creates a sampler; tolerance is the relative resolution tolerance used when merging tiles.
func New(reader TileReader, tolerance float64) *Sampler {
	return &Sampler{reader: reader, tolerance: tolerance}
}

/*
SamplePoint reads the cell value at projected point p from the first tile (in catalog order)
with data at this location. A no data value in one tile falls back to the next tile.
*/
func (s *Sampler) SamplePoint(p orb.Point, tiles []catalog.Tile) (float64, error) {
	if len(tiles) == 0 {
		return 0, fmt.Errorf("no tile contains point (%f, %f): %w", p[0], p[1], raster.ErrNoCoverage)
	}

	for _, tile := range tiles {
		value, err := s.reader.ReadPoint(tile, p)
		if err != nil {
			return 0, fmt.Errorf("error [%w] reading point (%f, %f) from tile [%s]", err, p[0], p[1], tile.Path)
		}
		if !math.IsNaN(value) {
			return value, nil
		}
	}
	return 0, fmt.Errorf("no data at point (%f, %f) in %d tiles: %w", p[0], p[1], len(tiles), raster.ErrNoCoverage)
}

/*
Window reads the cells touching b from all tiles and merges them into one grid.
Cells not covered by any tile are NaN.
*/
func (s *Sampler) Window(b orb.Bound, tiles []catalog.Tile) (*raster.Grid, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tile overlaps bound %v: %w", b, raster.ErrNoCoverage)
	}

	grids := make([]*raster.Grid, 0, len(tiles))
	for _, tile := range tiles {
		grid, err := s.reader.ReadWindow(tile, b)
		if err != nil {
			return nil, fmt.Errorf("error [%w] reading window from tile [%s]", err, tile.Path)
		}
		grids = append(grids, grid)
	}

	// virtual mosaic of the clipped windows, only held for the duration of this call
	merged, err := raster.Mosaic(grids, s.tolerance)
	if err != nil {
		return nil, fmt.Errorf("error [%w] merging %d tiles", err, len(tiles))
	}
	return merged, nil
}

/*
SamplePolygon computes zonal statistics of poly over the given tiles.
Categorical rasters yield per-category pixel counts, continuous rasters the covered values.
A polygon spanning several tiles is evaluated on the merged windows of all tiles, so the
result is independent of the tile layout.
*/
func (s *Sampler) SamplePolygon(poly orb.Polygon, tiles []catalog.Tile, categorical bool) (Sample, error) {
	grid, err := s.Window(poly.Bound(), tiles)
	if err != nil {
		return Sample{}, err
	}

	sample := Sample{Tiles: len(tiles)}
	if categorical {
		sample.Counts = raster.CategoryCounts(grid, poly)
	} else {
		sample.Values = raster.CoveredValues(grid, poly)
	}
	return sample, nil
}
