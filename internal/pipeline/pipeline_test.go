package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergauwenthomas/VLINDER/internal/config"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
	"github.com/vergauwenthomas/VLINDER/internal/raster/rastertest"
	"github.com/vergauwenthomas/VLINDER/internal/stations"
)

// station a: inside the 1 m BBK tile (left half building, right half tree)
// station b: outside BBK, inside ESM (green only) and the DEM, outside the LCZ map
// station c: outside every dataset
var testStations = []stations.Station{
	{ID: "a", Lat: 100, Lon: 100, Columns: []string{"a", "100", "100"}},
	{ID: "b", Lat: 100, Lon: 300, Columns: []string{"b", "100", "300"}},
	{ID: "c", Lat: 100, Lon: 5000, Columns: []string{"c", "100", "5000"}},
}

var testHeader = []string{"station", "lat", "lon"}

const testConfig = `
StationFile: stations.csv
OutputFile: landuse.csv
BufferRadii: [50]
Elevation: {Root: %s, EPSG: 3035}
SVF: {LocalRadius: 100, ExclusionRadius: 20, Directions: 8}
LCZ: {Root: %s, EPSG: 3035, FallbackLabel: "LCZ-G, water"}
LanduseDatasets:
  - {Name: BBK, Root: %s, EPSG: 31370}
  - {Name: ESM, Root: %s, EPSG: 3035}
`

func testSources(source *rastertest.Source) Sources {
	return Sources{Metadata: source, Tiles: source, Projector: rastertest.Projector{}}
}

// testProgConfig creates the tile directories and returns the program configuration.
func testProgConfig(t *testing.T, source *rastertest.Source, extra string) *config.ProgConfig {
	t.Helper()
	categorical := rastertest.TileOptions{Categorical: true}

	bbk := rastertest.TileDir(t, source, map[string]*raster.Grid{
		"bbk_1.tif": rastertest.Filled(raster.GeoTransform{0, 1, 0, 200, 0, -1}, 200, 200, func(col, _ int) float64 {
			if col < 100 {
				return 1 // building
			}
			return 9 // tree
		}),
	}, categorical)
	esm := rastertest.TileDir(t, source, map[string]*raster.Grid{
		"esm_1.tif": rastertest.Uniform(raster.GeoTransform{-1000, 10, 0, 1000, 0, -10}, 200, 200, 40),
	}, categorical)
	dem := rastertest.TileDir(t, source, map[string]*raster.Grid{
		"dem_1.tif": rastertest.Uniform(raster.GeoTransform{-500, 10, 0, 500, 0, -10}, 100, 100, 12.5),
	}, rastertest.TileOptions{})
	lcz := rastertest.TileDir(t, source, map[string]*raster.Grid{
		"lcz_1.tif": rastertest.Uniform(raster.GeoTransform{0, 10, 0, 200, 0, -10}, 20, 20, 2),
	}, categorical)

	progConfig, err := config.Parse([]byte(fmt.Sprintf(testConfig, dem, lcz, bbk, esm) + extra))
	require.NoError(t, err)
	return progConfig
}

func buildTestPipeline(t *testing.T, extra string) *Pipeline {
	t.Helper()
	source := rastertest.NewSource()
	p, err := Build(context.Background(), testProgConfig(t, source, extra), testSources(source))
	require.NoError(t, err)
	return p
}

func TestRunTolerant(t *testing.T) {
	p := buildTestPipeline(t, "")

	results, err := p.Run(context.Background(), testStations)
	require.NoError(t, err)
	require.Len(t, results, 3)

	a := results[0]
	assert.False(t, a.Failed())
	require.NotNil(t, a.Height)
	assert.Equal(t, 12.5, *a.Height)
	require.NotNil(t, a.SVF)
	assert.Equal(t, 1.0, *a.SVF)
	require.NotNil(t, a.LCZ)
	assert.Equal(t, "LCZ-2, compact midrise", *a.LCZ)
	assert.False(t, a.LCZOverride)
	record, ok := a.Record(50)
	require.True(t, ok)
	assert.Equal(t, "BBK", record.Dataset)
	assert.InDelta(t, 0.5, record.Fractions["building"], 0.01)
	assert.InDelta(t, 0.5, record.Fractions["tree"], 0.01)
	assert.InDelta(t, 0.5, record.Aggregates["green"], 0.01)
	assert.InDelta(t, 0.5, record.Aggregates["impervious"], 0.01)
	assert.InDelta(t, 1.0, record.Fractions.Sum(record.Labels), 1e-9)

	b := results[1]
	assert.False(t, b.Failed())
	assert.Equal(t, "LCZ-G, water", *b.LCZ)
	assert.True(t, b.LCZOverride)
	record, ok = b.Record(50)
	require.True(t, ok)
	assert.Equal(t, "ESM", record.Dataset)
	assert.InDelta(t, 1.0, record.Aggregates["green"], 1e-9)

	c := results[2]
	assert.True(t, c.Failed())
	assert.Nil(t, c.Height)
	assert.Nil(t, c.SVF)
	assert.Empty(t, c.Landuse)
	require.Len(t, c.Failures, 3)
	assert.Equal(t, StageHeight, c.Failures[0].Stage)
	assert.ErrorIs(t, c.Failures[0].Err, raster.ErrNoCoverage)
	assert.Equal(t, StageSVF, c.Failures[1].Stage)
	assert.ErrorIs(t, c.Failures[1].Err, raster.ErrOutOfBounds)
	assert.Equal(t, StageLanduse, c.Failures[2].Stage)
	assert.Equal(t, 50.0, c.Failures[2].Radius)
	assert.ErrorIs(t, c.Failures[2].Err, raster.ErrNoCoverage)

	statistics := p.Statistics()
	assert.Equal(t, uint64(3), statistics.Stations.Load())
	assert.Equal(t, uint64(1), statistics.Failed.Load())
	assert.Equal(t, uint64(2), statistics.Records.Load())
	assert.Equal(t, uint64(1), statistics.Fallbacks.Load())
	assert.Equal(t, uint64(2), statistics.Overrides.Load())
}

func TestRunStrictModeAborts(t *testing.T) {
	p := buildTestPipeline(t, "StrictMode: true\n")

	_, err := p.Run(context.Background(), testStations)
	require.Error(t, err)
	assert.ErrorIs(t, err, raster.ErrNoCoverage)
	assert.Contains(t, err.Error(), "station [c]")
}

func TestRunWorkersIdempotent(t *testing.T) {
	sequential := buildTestPipeline(t, "")
	parallel := buildTestPipeline(t, "Workers: 4\n")

	first, err := sequential.Run(context.Background(), testStations)
	require.NoError(t, err)
	second, err := parallel.Run(context.Background(), testStations)
	require.NoError(t, err)

	var firstTable, secondTable bytes.Buffer
	require.NoError(t, WriteLong(&firstTable, sequential.Schema(testHeader), first))
	require.NoError(t, WriteLong(&secondTable, parallel.Schema(testHeader), second))
	assert.Equal(t, firstTable.String(), secondTable.String())
}

func TestRunCanceled(t *testing.T) {
	p := buildTestPipeline(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, testStations)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildFatalErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		source := rastertest.NewSource()
		progConfig := testProgConfig(t, source, "")
		progConfig.LanduseDatasets[1].Root = t.TempDir() + "/missing"

		_, err := Build(context.Background(), progConfig, testSources(source))
		assert.ErrorIs(t, err, raster.ErrConfiguration)
	})

	t.Run("inconsistent resolution", func(t *testing.T) {
		source := rastertest.NewSource()
		progConfig := testProgConfig(t, source, "")
		progConfig.LanduseDatasets[0].Root = rastertest.TileDir(t, source, map[string]*raster.Grid{
			"bbk_1.tif": rastertest.Uniform(raster.GeoTransform{0, 1, 0, 100, 0, -1}, 100, 100, 1),
			"bbk_2.tif": rastertest.Uniform(raster.GeoTransform{100, 2, 0, 100, 0, -2}, 50, 50, 1),
		}, rastertest.TileOptions{Categorical: true})

		_, err := Build(context.Background(), progConfig, testSources(source))
		assert.ErrorIs(t, err, raster.ErrInconsistentRaster)
	})

	t.Run("epsg mismatch", func(t *testing.T) {
		source := rastertest.NewSource()
		progConfig := testProgConfig(t, source, "")
		progConfig.LanduseDatasets[0].Root = rastertest.TileDir(t, source, map[string]*raster.Grid{
			"bbk_1.tif": rastertest.Uniform(raster.GeoTransform{0, 1, 0, 100, 0, -1}, 100, 100, 1),
		}, rastertest.TileOptions{Categorical: true, EPSG: 3035})

		_, err := Build(context.Background(), progConfig, testSources(source))
		assert.ErrorIs(t, err, raster.ErrInconsistentRaster)
	})
}

func TestLCZWithoutFallbackFails(t *testing.T) {
	source := rastertest.NewSource()
	progConfig := testProgConfig(t, source, "")
	progConfig.LCZ.FallbackLabel = ""
	p, err := Build(context.Background(), progConfig, testSources(source))
	require.NoError(t, err)

	results, err := p.Run(context.Background(), testStations[1:2])
	require.NoError(t, err)
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, StageLCZ, results[0].Failures[0].Stage)
	assert.Nil(t, results[0].LCZ)
}

func TestWriteWide(t *testing.T) {
	p := buildTestPipeline(t, "")
	results, err := p.Run(context.Background(), testStations)
	require.NoError(t, err)

	var buffer bytes.Buffer
	require.NoError(t, WriteWide(&buffer, p.Schema(testHeader), results))

	rows, err := csv.NewReader(&buffer).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"station", "lat", "lon", "height", "svf", "lcz", "lcz_override",
		"50m_green", "50m_impervious", "50m_water", "50m_other", "50m_used_map", "failure"}, rows[0])
	assert.Equal(t, []string{"b", "100", "300", "12.5", "1", "LCZ-G, water", "true",
		"1", "0", "0", "0", "ESM", ""}, rows[2])

	// failed values stay empty, never zero
	c := rows[3]
	assert.Equal(t, []string{"c", "100", "5000", "", "", "LCZ-G, water", "true", "", "", "", "", ""}, c[:12])
	assert.Contains(t, c[12], "height")
	assert.Contains(t, c[12], "landuse 50m")
}

func TestWriteLong(t *testing.T) {
	source := rastertest.NewSource()
	progConfig := testProgConfig(t, source, "")
	progConfig.BufferRadii = []float64{50, 100}
	p, err := Build(context.Background(), progConfig, testSources(source))
	require.NoError(t, err)

	results, err := p.Run(context.Background(), testStations[:1])
	require.NoError(t, err)

	var buffer bytes.Buffer
	require.NoError(t, WriteLong(&buffer, p.Schema(testHeader), results))

	rows, err := csv.NewReader(&buffer).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, []string{"station", "lat", "lon", "height", "svf", "lcz", "lcz_override",
		"radius", "used_map", "pixels", "expected_pixels", "green", "impervious", "water", "other"}, header[:15])
	assert.Equal(t, "class_building", header[15])
	assert.Equal(t, "failure", header[len(header)-1])

	assert.Equal(t, "50", rows[1][7])
	assert.Equal(t, "100", rows[2][7])
	assert.Equal(t, "BBK", rows[2][8])

	// ESM labels are empty for a BBK record
	column := -1
	for i, name := range header {
		if name == "class_bu_buildings" {
			column = i
		}
	}
	require.Positive(t, column)
	assert.Empty(t, rows[1][column])
}
