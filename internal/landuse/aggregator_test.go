package landuse

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/locator"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
	"github.com/vergauwenthomas/VLINDER/internal/raster/rastertest"
	"github.com/vergauwenthomas/VLINDER/internal/sampler"
)

// fixedSampler returns the same counts for every polygon
type fixedSampler struct {
	counts map[int]float64
	err    error
	calls  int
}

func (f *fixedSampler) SamplePolygon(poly orb.Polygon, tiles []catalog.Tile, categorical bool) (sampler.Sample, error) {
	f.calls++
	if f.err != nil {
		return sampler.Sample{}, f.err
	}
	return sampler.Sample{Counts: f.counts, Tiles: len(tiles)}, nil
}

func singleTileLocator(t *testing.T, name string, bounds orb.Bound, resolution float64) *locator.Locator {
	t.Helper()
	tileSet := &catalog.TileSet{
		Name:        name,
		Resolution:  resolution,
		Categorical: true,
		Tiles: []catalog.Tile{{
			Index:        0,
			TileMetadata: catalog.TileMetadata{Path: name + ".tif", Bounds: bounds, ResolutionX: resolution, ResolutionY: resolution},
		}},
	}
	l, err := locator.New(tileSet)
	require.NoError(t, err)
	return l
}

func TestAggregateConcreteScenario(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{-500, -500}, Max: orb.Point{500, 500}}
	datasets := []Dataset{{Scheme: BBKScheme(), EPSG: 31370, Locator: singleTileLocator(t, "BBK", bounds, 10)}}
	stub := &fixedSampler{counts: map[int]float64{1: 300, 2: 200, 5: 0, 9: 500}}

	aggregator, err := NewAggregator(datasets, stub, rastertest.Projector{}, 0.05)
	require.NoError(t, err)

	record, err := aggregator.Aggregate(context.Background(), "vlinder01", 51.05, 3.72, 100)
	require.NoError(t, err)

	assert.Equal(t, "vlinder01", record.Station)
	assert.Equal(t, 100.0, record.Radius)
	assert.Equal(t, "BBK", record.Dataset)
	assert.Equal(t, 1000.0, record.Pixels)
	assert.InDelta(t, 0.3, record.Fractions["building"], 1e-12)
	assert.InDelta(t, 0.2, record.Fractions["road"], 1e-12)
	assert.Equal(t, 0.0, record.Fractions["water"])
	assert.InDelta(t, 0.5, record.Fractions["tree"], 1e-12)
	assert.InDelta(t, 0.5, record.Aggregates["green"], 1e-12)
	assert.InDelta(t, 0.5, record.Aggregates["impervious"], 1e-12)
	assert.Equal(t, 0.0, record.Aggregates["water"])
	assert.InDelta(t, 1.0, record.Fractions.Sum(record.Labels), 1e-6)
}

func TestAggregateFatalErrorDoesNotFallBack(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{-500, -500}, Max: orb.Point{500, 500}}
	datasets := []Dataset{
		{Scheme: BBKScheme(), Locator: singleTileLocator(t, "BBK", bounds, 1)},
		{Scheme: ESMScheme(), Locator: singleTileLocator(t, "ESM", bounds, 10)},
	}
	stub := &fixedSampler{err: fmt.Errorf("tiles disagree: %w", raster.ErrInconsistentRaster)}

	aggregator, err := NewAggregator(datasets, stub, rastertest.Projector{}, 0.05)
	require.NoError(t, err)

	_, err = aggregator.Aggregate(context.Background(), "vlinder02", 0, 0, 50)
	assert.ErrorIs(t, err, raster.ErrInconsistentRaster)
	assert.Equal(t, 1, stub.calls)
}

// primary: 1 m BBK tile covering x,y in [0,100], all buildings
// secondary: 10 m ESM tile covering x,y in [-1000,1000], all water
func fallbackAggregator(t *testing.T) *Aggregator {
	t.Helper()
	source := rastertest.NewSource()
	source.Add("bbk.tif", rastertest.Uniform(raster.GeoTransform{0, 1, 0, 100, 0, -1}, 100, 100, 1),
		rastertest.TileOptions{Categorical: true})
	source.Add("esm.tif", rastertest.Uniform(raster.GeoTransform{-1000, 10, 0, 1000, 0, -10}, 200, 200, 1),
		rastertest.TileOptions{Categorical: true})

	tileSet := func(name, path string) *catalog.TileSet {
		metadata, err := source.Metadata(path)
		require.NoError(t, err)
		return &catalog.TileSet{Name: name, Resolution: metadata.ResolutionX, Categorical: true,
			Tiles: []catalog.Tile{{Index: 0, TileMetadata: metadata}}}
	}
	bbk, err := locator.New(tileSet("BBK", "bbk.tif"))
	require.NoError(t, err)
	esm, err := locator.New(tileSet("ESM", "esm.tif"))
	require.NoError(t, err)

	datasets := []Dataset{
		{Scheme: BBKScheme(), EPSG: 31370, Locator: bbk},
		{Scheme: ESMScheme(), EPSG: 3035, Locator: esm},
	}
	aggregator, err := NewAggregator(datasets, sampler.New(source, 0.05), rastertest.Projector{}, 0.05)
	require.NoError(t, err)
	return aggregator
}

func TestAggregatePrimaryDataset(t *testing.T) {
	record, err := fallbackAggregator(t).Aggregate(context.Background(), "inside", 50, 50, 20)
	require.NoError(t, err)
	assert.Equal(t, "BBK", record.Dataset)
	assert.Equal(t, 1.0, record.Fractions["building"])
	assert.Equal(t, 1.0, record.Aggregates["impervious"])
}

func TestAggregateFallbackOutsidePrimary(t *testing.T) {
	record, err := fallbackAggregator(t).Aggregate(context.Background(), "outside", 500, 500, 100)
	require.NoError(t, err)
	assert.Equal(t, "ESM", record.Dataset)
	assert.Equal(t, 1.0, record.Fractions["water"])
	assert.Equal(t, 0.0, record.Fractions["no_data"])
	assert.Equal(t, 1.0, record.Aggregates["water"])
}

func TestAggregateFallbackOnPartialCoverage(t *testing.T) {
	// buffer straddles the east edge of the primary tile
	record, err := fallbackAggregator(t).Aggregate(context.Background(), "edge", 50, 100, 30)
	require.NoError(t, err)
	assert.Equal(t, "ESM", record.Dataset)
}

func TestAggregateNoCoverage(t *testing.T) {
	_, err := fallbackAggregator(t).Aggregate(context.Background(), "far", 5000, 5000, 100)
	assert.ErrorIs(t, err, raster.ErrNoCoverage)
}

func TestAggregateIdempotent(t *testing.T) {
	aggregator := fallbackAggregator(t)
	first, err := aggregator.Aggregate(context.Background(), "inside", 50, 50, 20)
	require.NoError(t, err)
	second, err := aggregator.Aggregate(context.Background(), "inside", 50, 50, 20)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregateReportsBuffers(t *testing.T) {
	aggregator := fallbackAggregator(t)
	var datasets []string
	aggregator.OnBuffer(func(station string, radius float64, dataset string, buffer orb.Polygon) {
		datasets = append(datasets, dataset)
		assert.Len(t, buffer[0], BufferSegments+1)
	})

	_, err := aggregator.Aggregate(context.Background(), "outside", 500, 500, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"ESM"}, datasets)
}

func TestCoverageBoundary(t *testing.T) {
	radius, resolution, tolerance := 100.0, 1.0, 0.05
	minimum := ExpectedPixels(radius, resolution) * (1 - tolerance)

	assert.False(t, SufficientCoverage(minimum, radius, resolution, tolerance))
	assert.True(t, SufficientCoverage(minimum+1, radius, resolution, tolerance))
	assert.True(t, SufficientCoverage(math.Pi*radius*radius, radius, resolution, tolerance))
}

func TestAllTouchedCountExceedsDiskArea(t *testing.T) {
	// fully covered buffer, 10 m cells, 50 m radius
	grid := rastertest.Uniform(raster.GeoTransform{-100, 10, 0, 100, 0, -10}, 20, 20, 1)
	counts := raster.CategoryCounts(grid, Buffer(orb.Point{0, 0}, 50, BufferSegments))

	expected := ExpectedPixels(50, 10)
	assert.Greater(t, counts[1], expected)
	assert.Less(t, counts[1], 1.5*expected)
	assert.True(t, SufficientCoverage(counts[1], 50, 10, 0.05))
}

func TestNewAggregatorConfigurationErrors(t *testing.T) {
	_, err := NewAggregator(nil, &fixedSampler{}, rastertest.Projector{}, 0.05)
	assert.ErrorIs(t, err, raster.ErrConfiguration)

	_, err = NewAggregator([]Dataset{{Scheme: BBKScheme()}}, &fixedSampler{}, rastertest.Projector{}, 0.05)
	assert.ErrorIs(t, err, raster.ErrConfiguration)
}

func TestBufferGeometry(t *testing.T) {
	buffer := Buffer(orb.Point{10, 20}, 5, BufferSegments)
	require.Len(t, buffer, 1)
	ring := buffer[0]
	assert.Len(t, ring, BufferSegments+1)
	assert.Equal(t, ring[0], ring[len(ring)-1])
	for _, p := range ring {
		assert.InDelta(t, 5.0, math.Hypot(p[0]-10, p[1]-20), 1e-9)
	}
	assert.InDelta(t, 5.0, buffer.Bound().Max[0]-10, 1e-9)
}
