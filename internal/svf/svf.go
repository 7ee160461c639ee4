// Package svf estimates the sky view factor of a station from the surrounding terrain
// (digital elevation model) by casting rays in a fixed number of compass directions.
package svf

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/locator"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

// Params are the parameters of the estimation (distances in map units = meter).
type Params struct {
	LocalRadius     float64 // half width of the neighborhood (legacy 200 m)
	ExclusionRadius float64 // half width of the central exclusion buffer (legacy 20 m)
	Directions      int     // number of compass directions (legacy 8)
}

// DefaultParams returns the legacy parameters.
func DefaultParams() Params {
	return Params{LocalRadius: 200, ExclusionRadius: 20, Directions: 8}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.LocalRadius <= 0 || p.ExclusionRadius < 0 || p.ExclusionRadius >= p.LocalRadius {
		return fmt.Errorf("invalid svf radii (local %g m, exclusion %g m): %w", p.LocalRadius, p.ExclusionRadius, raster.ErrConfiguration)
	}
	if p.Directions < 1 {
		return fmt.Errorf("invalid number of svf directions (%d): %w", p.Directions, raster.ErrConfiguration)
	}
	return nil
}

/*
Compute estimates the sky view factor at the projected point center from an elevation grid.

 1. neighborhood: square of ceil(LocalRadius/res) cells around the cell of center
 2. reference height: minimum elevation within the exclusion square
 3. per direction: maximum elevation angle phi = atan(max(0, h - ref) / dist) in degrees,
    walking outward in 1-cell steps and skipping the exclusion square
 4. svf = 1 - sum(phi_max) / (90 * N)

A neighborhood exceeding the grid or containing cells without data results in ErrOutOfBounds.
*/
func Compute(grid *raster.Grid, center orb.Point, params Params) (float64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	resolution, _ := grid.Resolution()
	if resolution <= 0 {
		return 0, fmt.Errorf("invalid elevation grid resolution %g: %w", resolution, raster.ErrInconsistentRaster)
	}

	half := int(math.Ceil(params.LocalRadius / resolution))
	exclusion := int(math.Ceil(params.ExclusionRadius / resolution))

	col, row, ok := grid.CellOf(center[0], center[1])
	if !ok {
		return 0, fmt.Errorf("point (%f, %f) outside elevation grid: %w", center[0], center[1], raster.ErrOutOfBounds)
	}
	if col-half < 0 || row-half < 0 || col+half >= grid.Width || row+half >= grid.Height {
		return 0, fmt.Errorf("neighborhood of %d cells around (%f, %f) exceeds elevation grid: %w",
			half, center[0], center[1], raster.ErrOutOfBounds)
	}

	// reference height (ground level at the station)
	reference := math.Inf(1)
	for r := row - half; r <= row+half; r++ {
		for c := col - half; c <= col+half; c++ {
			height := grid.At(c, r)
			if math.IsNaN(height) {
				return 0, fmt.Errorf("no elevation data in neighborhood of (%f, %f): %w", center[0], center[1], raster.ErrOutOfBounds)
			}
			if abs(c-col) <= exclusion && abs(r-row) <= exclusion {
				reference = math.Min(reference, height)
			}
		}
	}

	phiMax := make([]float64, params.Directions)
	for k := 0; k < params.Directions; k++ {
		alpha := 2 * math.Pi * float64(k) / float64(params.Directions)
		sin, cos := math.Sincos(alpha)
		for i := 1; i <= half; i++ {
			dc := int(math.Round(float64(i) * sin))
			dr := -int(math.Round(float64(i) * cos))
			if abs(dc) <= exclusion && abs(dr) <= exclusion {
				continue
			}
			distance := math.Hypot(float64(dc), float64(dr)) * resolution
			relative := math.Max(0, grid.At(col+dc, row+dr)-reference)
			phi := math.Atan(relative/distance) * 180 / math.Pi
			phiMax[k] = math.Max(phiMax[k], phi)
		}
	}

	svf := 1 - floats.Sum(phiMax)/(90*float64(params.Directions))
	return math.Max(0, math.Min(1, svf)), nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Projector reprojects geographic coordinates into a projected CRS given by EPSG code.
type Projector interface {
	Project(lon, lat float64, epsg int) (orb.Point, error)
}

// WindowSampler reads a merged elevation window from a list of tiles.
type WindowSampler interface {
	Window(b orb.Bound, tiles []catalog.Tile) (*raster.Grid, error)
}

// Estimator computes sky view factors from the elevation tile set.
type Estimator struct {
	params    Params
	epsg      int
	dem       *locator.Locator
	sampler   WindowSampler
	projector Projector
}

/*
NewEstimator creates an estimator on the elevation tiles indexed by dem (projected in EPSG epsg).
*/
func NewEstimator(params Params, epsg int, dem *locator.Locator, s WindowSampler, projector Projector) (*Estimator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if dem == nil {
		return nil, fmt.Errorf("svf estimation without elevation tiles: %w", raster.ErrConfiguration)
	}
	return &Estimator{params: params, epsg: epsg, dem: dem, sampler: s, projector: projector}, nil
}

/*
Estimate returns the sky view factor of a station (WGS84 lat/lon).
There is no fallback dataset for terrain: a neighborhood not covered by the elevation
tiles results in ErrOutOfBounds.
*/
func (e *Estimator) Estimate(ctx context.Context, lat, lon float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	center, err := e.projector.Project(lon, lat, e.epsg)
	if err != nil {
		return 0, fmt.Errorf("error [%w] projecting (%f, %f) to EPSG:%d", err, lat, lon, e.epsg)
	}

	resolution := e.dem.TileSet().Resolution
	extent := e.params.LocalRadius + 2*resolution
	neighborhood := orb.Bound{
		Min: orb.Point{center[0] - extent, center[1] - extent},
		Max: orb.Point{center[0] + extent, center[1] + extent},
	}

	tiles := e.dem.LocateBound(neighborhood)
	if len(tiles) == 0 {
		return 0, fmt.Errorf("no elevation tile around (%f, %f): %w", lat, lon, raster.ErrOutOfBounds)
	}
	grid, err := e.sampler.Window(neighborhood, tiles)
	if err != nil {
		if errors.Is(err, raster.ErrNoCoverage) {
			return 0, fmt.Errorf("elevation window around (%f, %f): %v: %w", lat, lon, err, raster.ErrOutOfBounds)
		}
		return 0, err
	}

	return Compute(grid, center, e.params)
}
