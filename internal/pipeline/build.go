package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/config"
	"github.com/vergauwenthomas/VLINDER/internal/landuse"
	"github.com/vergauwenthomas/VLINDER/internal/locator"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
	"github.com/vergauwenthomas/VLINDER/internal/sampler"
	"github.com/vergauwenthomas/VLINDER/internal/svf"
)

// Sources bundles the raster collaborators (GDAL in production, in-memory tiles in tests).
type Sources struct {
	Metadata  catalog.MetadataReader
	Tiles     sampler.TileReader
	Projector Projector
}

/*
Build loads and validates the tile sets of all configured datasets and creates the
pipeline. Missing directories and inconsistent tile sets are fatal errors.
*/
func Build(ctx context.Context, progConfig *config.ProgConfig, sources Sources) (*Pipeline, error) {
	rasterCatalog, err := catalog.New(sources.Metadata, progConfig.MetadataCacheSize)
	if err != nil {
		return nil, err
	}
	tileSampler := sampler.New(sources.Tiles, progConfig.ResolutionTolerance)

	p := &Pipeline{
		radii:   progConfig.BufferRadii,
		workers: progConfig.Workers,
		strict:  progConfig.StrictMode,
	}

	load := func(rasterConfig config.RasterConfig) (*locator.Locator, error) {
		tileSet, err := rasterCatalog.Load(ctx, rasterConfig.Source(), progConfig.ResolutionTolerance)
		if err != nil {
			return nil, err
		}
		for _, tile := range tileSet.Tiles {
			if tile.EPSG != 0 && tile.EPSG != rasterConfig.EPSG {
				return nil, fmt.Errorf("dataset [%s]: tile [%s] is in EPSG:%d, configured EPSG:%d: %w",
					rasterConfig.Name, tile.Path, tile.EPSG, rasterConfig.EPSG, raster.ErrInconsistentRaster)
			}
		}
		p.tileSets = append(p.tileSets, tileSet)
		return locator.New(tileSet)
	}

	// land cover datasets in priority order
	datasets := make([]landuse.Dataset, 0, len(progConfig.LanduseDatasets))
	for _, datasetConfig := range progConfig.LanduseDatasets {
		scheme, err := datasetConfig.Scheme()
		if err != nil {
			return nil, err
		}
		tiles, err := load(datasetConfig.RasterConfig)
		if err != nil {
			return nil, err
		}
		if !tiles.TileSet().Categorical {
			slog.Warn("land cover dataset stored as floating point, values are truncated to class codes",
				"dataset", datasetConfig.Name)
		}
		datasets = append(datasets, landuse.Dataset{Scheme: scheme, EPSG: datasetConfig.EPSG, Locator: tiles})
	}
	p.aggregator, err = landuse.NewAggregator(datasets, tileSampler, sources.Projector, progConfig.CoverageTolerance)
	if err != nil {
		return nil, err
	}
	p.primary = datasets[0].Name()

	// elevation: height and sky view factor
	if progConfig.Elevation != nil {
		dem, err := load(*progConfig.Elevation)
		if err != nil {
			return nil, err
		}
		p.height = NewPointLookup(progConfig.Elevation.Name, progConfig.Elevation.EPSG, dem, tileSampler, sources.Projector)
		p.svf, err = svf.NewEstimator(progConfig.SVFParams(), progConfig.Elevation.EPSG, dem, tileSampler, sources.Projector)
		if err != nil {
			return nil, err
		}
	}

	// local climate zones
	if progConfig.LCZ != nil {
		tiles, err := load(progConfig.LCZ.RasterConfig)
		if err != nil {
			return nil, err
		}
		lookup := NewPointLookup(progConfig.LCZ.Name, progConfig.LCZ.EPSG, tiles, tileSampler, sources.Projector)
		p.lcz = NewLCZLookup(lookup, progConfig.LCZ.Scheme(), progConfig.LCZ.FallbackLabel)
	}

	return p, nil
}
