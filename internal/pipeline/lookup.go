package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/landuse"
	"github.com/vergauwenthomas/VLINDER/internal/locator"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

// Projector reprojects geographic coordinates into a projected CRS given by EPSG code.
type Projector interface {
	Project(lon, lat float64, epsg int) (orb.Point, error)
}

// PointSampler reads the value at a point from the first tile with data.
type PointSampler interface {
	SamplePoint(p orb.Point, tiles []catalog.Tile) (float64, error)
}

// PointLookup reads raster values at station locations.
type PointLookup struct {
	name      string
	epsg      int
	tiles     *locator.Locator
	sampler   PointSampler
	projector Projector
}

// NewPointLookup creates a point lookup on the tiles indexed by tiles (projected in EPSG epsg).
func NewPointLookup(name string, epsg int, tiles *locator.Locator, s PointSampler, projector Projector) *PointLookup {
	return &PointLookup{name: name, epsg: epsg, tiles: tiles, sampler: s, projector: projector}
}

/*
Value returns the raster value at a station (WGS84 lat/lon). A station outside all tiles
or on a no data cell results in ErrNoCoverage.
*/
func (l *PointLookup) Value(lat, lon float64) (float64, error) {
	p, err := l.projector.Project(lon, lat, l.epsg)
	if err != nil {
		return 0, fmt.Errorf("error [%w] projecting (%f, %f) to EPSG:%d", err, lat, lon, l.epsg)
	}

	tiles := l.tiles.LocatePoint(p)
	if len(tiles) == 0 {
		return 0, fmt.Errorf("%s: no tile at (%f, %f): %w", l.name, lat, lon, raster.ErrNoCoverage)
	}
	value, err := l.sampler.SamplePoint(p, tiles)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", l.name, err)
	}
	if math.IsNaN(value) {
		return 0, fmt.Errorf("%s: no data at (%f, %f): %w", l.name, lat, lon, raster.ErrNoCoverage)
	}
	return value, nil
}

// LCZLookup maps the local climate zone map value at a station to its label.
type LCZLookup struct {
	lookup   *PointLookup
	scheme   landuse.Scheme
	fallback string
}

// NewLCZLookup creates the LCZ lookup. An empty fallback label reports uncovered stations as failure.
func NewLCZLookup(lookup *PointLookup, scheme landuse.Scheme, fallback string) *LCZLookup {
	return &LCZLookup{lookup: lookup, scheme: scheme, fallback: fallback}
}

/*
Label returns the LCZ label of a station. A station outside the map gets the fallback
label; this override is logged and reported (override = true), never applied silently.
*/
func (l *LCZLookup) Label(station string, lat, lon float64) (label string, override bool, err error) {
	value, err := l.lookup.Value(lat, lon)
	if err != nil {
		if l.fallback == "" || !errors.Is(err, raster.ErrNoCoverage) {
			return "", false, err
		}
		slog.Warn("station outside LCZ map, fallback label applied", "station", station,
			"label", l.fallback, "error", err)
		return l.fallback, true, nil
	}
	return l.scheme.LabelOf(int(math.Round(value))), false, nil
}
