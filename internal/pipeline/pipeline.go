// Package pipeline is the batch driver: it processes all stations with a pool of workers,
// collects per-station results and failures and writes the output table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/landuse"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
	"github.com/vergauwenthomas/VLINDER/internal/stations"
	"github.com/vergauwenthomas/VLINDER/internal/svf"
)

// processing stages of a station
const (
	StageHeight  = "height"
	StageSVF     = "svf"
	StageLCZ     = "lcz"
	StageLanduse = "landuse"
)

// Failure is a per-station error that did not abort the run.
type Failure struct {
	Stage  string
	Radius float64 // land cover only
	Err    error
}

func (f Failure) String() string {
	if f.Stage == StageLanduse {
		return fmt.Sprintf("%s %gm: %v", f.Stage, f.Radius, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

// StationResult is the outcome of one station: values that could be computed plus the
// failures of all others. Values not available are nil (never substituted with zero).
type StationResult struct {
	Station     stations.Station
	Height      *float64
	SVF         *float64
	LCZ         *string
	LCZOverride bool
	Landuse     []landuse.Record // in radius order, failed radii are missing
	Failures    []Failure
}

// Failed reports whether any value of the station could not be computed.
func (r StationResult) Failed() bool {
	return len(r.Failures) > 0
}

// FailureText joins all failures into one line.
func (r StationResult) FailureText() string {
	texts := make([]string, 0, len(r.Failures))
	for _, failure := range r.Failures {
		texts = append(texts, failure.String())
	}
	return strings.Join(texts, "; ")
}

// Record returns the land cover record of a buffer radius.
func (r StationResult) Record(radius float64) (landuse.Record, bool) {
	for _, record := range r.Landuse {
		if record.Radius == radius {
			return record, true
		}
	}
	return landuse.Record{}, false
}

func (r *StationResult) fail(stage string, radius float64, err error) {
	r.Failures = append(r.Failures, Failure{Stage: stage, Radius: radius, Err: err})
}

// ResultSaver persists a station result (optional results database).
type ResultSaver interface {
	Save(ctx context.Context, result StationResult) error
}

// Statistics counts the outcome of a run (safe for concurrent use).
type Statistics struct {
	Stations  atomic.Uint64
	Failed    atomic.Uint64
	Records   atomic.Uint64
	Fallbacks atomic.Uint64
	Overrides atomic.Uint64
}

// Pipeline processes station lists (readonly after Build, safe for concurrent use).
type Pipeline struct {
	radii      []float64
	workers    int
	strict     bool
	primary    string
	aggregator *landuse.Aggregator
	height     *PointLookup
	svf        *svf.Estimator
	lcz        *LCZLookup
	saver      ResultSaver
	tileSets   []*catalog.TileSet
	statistics Statistics
}

// SetSaver registers the results database.
func (p *Pipeline) SetSaver(saver ResultSaver) {
	p.saver = saver
}

// TileSets returns the tile sets of all configured raster datasets.
func (p *Pipeline) TileSets() []*catalog.TileSet {
	return p.tileSets
}

// Aggregator returns the land cover aggregator.
func (p *Pipeline) Aggregator() *landuse.Aggregator {
	return p.aggregator
}

// Statistics returns the run statistics.
func (p *Pipeline) Statistics() *Statistics {
	return &p.statistics
}

/*
Run processes all stations with the configured number of workers and returns one result
per station in input order. Fatal errors (configuration, inconsistent rasters) abort the
run. In strict mode the first station failure aborts the run as well; otherwise failures
are collected in the results and processing continues.
*/
func (p *Pipeline) Run(ctx context.Context, list []stations.Station) ([]StationResult, error) {
	start := time.Now()
	results := make([]StationResult, len(list))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)
	for i, station := range list {
		group.Go(func() error {
			result, err := p.processStation(ctx, station)
			results[i] = result
			if err != nil {
				return err
			}
			if p.strict && result.Failed() {
				return fmt.Errorf("station [%s] failed in strict mode: %w", station.ID, result.Failures[0].Err)
			}
			if p.saver != nil {
				if err = p.saver.Save(ctx, result); err != nil {
					return fmt.Errorf("error [%w] saving station [%s]", err, station.ID)
				}
			}
			return nil
		})
	}
	err := group.Wait()

	slog.Info("station processing finished", "stations", len(list), "workers", p.workers,
		"duration", time.Since(start).String(), "error", err)
	return results, err
}

/*
processStation computes all values of one station. The returned error is set for errors
that abort the run only, per-station errors are returned as failures of the result.
*/
func (p *Pipeline) processStation(ctx context.Context, station stations.Station) (StationResult, error) {
	result := StationResult{Station: station}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	p.statistics.Stations.Add(1)

	if p.height != nil {
		height, err := p.height.Value(station.Lat, station.Lon)
		if abort(err) {
			return result, err
		}
		if err != nil {
			result.fail(StageHeight, 0, err)
		} else {
			result.Height = &height
		}
	}

	if p.svf != nil {
		value, err := p.svf.Estimate(ctx, station.Lat, station.Lon)
		if abort(err) {
			return result, err
		}
		if err != nil {
			result.fail(StageSVF, 0, err)
		} else {
			result.SVF = &value
		}
	}

	if p.lcz != nil {
		label, override, err := p.lcz.Label(station.ID, station.Lat, station.Lon)
		if abort(err) {
			return result, err
		}
		if err != nil {
			result.fail(StageLCZ, 0, err)
		} else {
			result.LCZ = &label
			result.LCZOverride = override
			if override {
				p.statistics.Overrides.Add(1)
			}
		}
	}

	for _, radius := range p.radii {
		record, err := p.aggregator.Aggregate(ctx, station.ID, station.Lat, station.Lon, radius)
		if abort(err) {
			return result, err
		}
		if err != nil {
			result.fail(StageLanduse, radius, err)
			continue
		}
		result.Landuse = append(result.Landuse, record)
		p.statistics.Records.Add(1)
		if record.Dataset != p.primary {
			p.statistics.Fallbacks.Add(1)
		}
	}

	if result.Failed() {
		p.statistics.Failed.Add(1)
		slog.Warn("station incomplete", "station", station.ID, "failures", result.FailureText())
	} else {
		slog.Debug("station processed", "station", station.ID)
	}
	return result, nil
}

// abort reports whether err ends the run (fatal error or cancellation).
func abort(err error) bool {
	if err == nil {
		return false
	}
	return raster.IsFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

/*
LogStatistics logs the run statistics.
*/
func (p *Pipeline) LogStatistics() {
	slog.Info("run statistics",
		"Stations", p.statistics.Stations.Load(),
		"FailedStations", p.statistics.Failed.Load(),
		"LanduseRecords", p.statistics.Records.Load(),
		"DatasetFallbacks", p.statistics.Fallbacks.Load(),
		"LCZOverrides", p.statistics.Overrides.Load(),
	)
}
