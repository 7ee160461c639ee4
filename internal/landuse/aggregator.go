// Package landuse turns land cover pixel counts around a station into class fractions,
// aggregates them into semantic classes and falls back between datasets when the
// preferred dataset does not cover the buffer.
package landuse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/locator"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
	"github.com/vergauwenthomas/VLINDER/internal/sampler"
)

// Projector reprojects geographic coordinates into a projected CRS given by EPSG code.
type Projector interface {
	Project(lon, lat float64, epsg int) (orb.Point, error)
}

// PolygonSampler computes zonal statistics of a polygon over a list of tiles.
type PolygonSampler interface {
	SamplePolygon(poly orb.Polygon, tiles []catalog.Tile, categorical bool) (sampler.Sample, error)
}

// Dataset is one land cover dataset of the fallback chain.
type Dataset struct {
	Scheme  Scheme
	EPSG    int
	Locator *locator.Locator
}

// Name returns the dataset name.
func (d Dataset) Name() string {
	return d.Scheme.Name
}

// Record is the land cover result of one (station, radius) pair.
type Record struct {
	Station    string
	Radius     float64
	Dataset    string    // dataset actually used
	Pixels     float64   // sampled pixel count
	Expected   float64   // pixel count of the full disk
	Labels     []string  // fixed label order of the dataset
	Fractions  Fractions // per label, sums up to 1
	Aggregates Fractions // per aggregate class
}

// BufferFunc receives every buffer polygon that was sampled.
type BufferFunc func(station string, radius float64, dataset string, buffer orb.Polygon)

// Aggregator computes land cover records with dataset fallback (readonly after New, safe
// for concurrent use if its collaborators are).
type Aggregator struct {
	datasets  []Dataset
	sampler   PolygonSampler
	projector Projector
	tolerance float64
	segments  int
	onBuffer  BufferFunc
}

/*
NewAggregator creates an aggregator. datasets are in priority order (primary first),
tolerance is the accepted coverage deficit as a fraction of the expected pixel count.
*/
func NewAggregator(datasets []Dataset, s PolygonSampler, projector Projector, tolerance float64) (*Aggregator, error) {
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no land cover dataset configured: %w", raster.ErrConfiguration)
	}
	for _, dataset := range datasets {
		if err := dataset.Scheme.Validate(); err != nil {
			return nil, err
		}
		if dataset.Locator == nil {
			return nil, fmt.Errorf("dataset [%s] without tile index: %w", dataset.Name(), raster.ErrConfiguration)
		}
	}
	if tolerance < 0 || tolerance >= 1 {
		return nil, fmt.Errorf("coverage tolerance %g not in [0,1): %w", tolerance, raster.ErrConfiguration)
	}
	return &Aggregator{
		datasets:  datasets,
		sampler:   s,
		projector: projector,
		tolerance: tolerance,
		segments:  BufferSegments,
	}, nil
}

// OnBuffer registers a function receiving every sampled buffer polygon.
func (a *Aggregator) OnBuffer(fn BufferFunc) {
	a.onBuffer = fn
}

// Datasets returns the fallback chain.
func (a *Aggregator) Datasets() []Dataset {
	return a.datasets
}

/*
Aggregate computes the land cover record of a station (WGS84 lat/lon) for one buffer radius.
The datasets are tried in priority order; a dataset without tiles, without data or with
insufficient coverage falls through to the next one. If no dataset covers the buffer the
result is ErrNoCoverage. Fatal errors (inconsistent rasters) are returned immediately.
*/
func (a *Aggregator) Aggregate(ctx context.Context, station string, lat, lon, radius float64) (Record, error) {
	var reasons []string

	for _, dataset := range a.datasets {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}

		record, err := a.aggregateDataset(dataset, station, lat, lon, radius)
		if err == nil {
			if len(reasons) > 0 {
				slog.Info("land cover dataset fallback", "station", station, "radius", radius,
					"dataset", dataset.Name(), "reasons", strings.Join(reasons, "; "))
			}
			return record, nil
		}
		if !errors.Is(err, raster.ErrNoCoverage) {
			return Record{}, err
		}
		slog.Debug("insufficient land cover coverage", "station", station, "radius", radius,
			"dataset", dataset.Name(), "error", err)
		reasons = append(reasons, err.Error())
	}

	return Record{}, fmt.Errorf("station [%s], radius %g m: no dataset covers the buffer (%s): %w",
		station, radius, strings.Join(reasons, "; "), raster.ErrNoCoverage)
}

/*
aggregateDataset computes the record from one dataset.
*/
func (a *Aggregator) aggregateDataset(dataset Dataset, station string, lat, lon, radius float64) (Record, error) {
	name := dataset.Name()

	center, err := a.projector.Project(lon, lat, dataset.EPSG)
	if err != nil {
		return Record{}, fmt.Errorf("error [%w] projecting station [%s] to EPSG:%d", err, station, dataset.EPSG)
	}
	buffer := Buffer(center, radius, a.segments)

	tiles := dataset.Locator.Locate(buffer)
	if len(tiles) == 0 {
		return Record{}, fmt.Errorf("dataset [%s]: no tiles: %w", name, raster.ErrNoCoverage)
	}

	sample, err := a.sampler.SamplePolygon(buffer, tiles, true)
	if err != nil {
		return Record{}, fmt.Errorf("dataset [%s]: %w", name, err)
	}

	fractions, pixels := dataset.Scheme.Fractions(sample.Counts)
	resolution := dataset.Locator.TileSet().Resolution
	expected := ExpectedPixels(radius, resolution)
	if !SufficientCoverage(pixels, radius, resolution, a.tolerance) {
		return Record{}, fmt.Errorf("dataset [%s]: %.0f of %.0f pixels sampled: %w", name, pixels, expected, raster.ErrNoCoverage)
	}

	if a.onBuffer != nil {
		a.onBuffer(station, radius, name, buffer)
	}

	return Record{
		Station:    station,
		Radius:     radius,
		Dataset:    name,
		Pixels:     pixels,
		Expected:   expected,
		Labels:     dataset.Scheme.Labels(),
		Fractions:  fractions,
		Aggregates: dataset.Scheme.Aggregate(fractions),
	}, nil
}
