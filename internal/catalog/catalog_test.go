package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
	"github.com/vergauwenthomas/VLINDER/internal/raster/rastertest"
)

func TestListTilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.tif", "a.tif", "c.txt", "d.tif"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "e.tif"), 0o700))

	paths, err := catalog.ListTiles(dir, "*.tif")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.tif"),
		filepath.Join(dir, "b.tif"),
		filepath.Join(dir, "d.tif"),
	}, paths)
}

func TestListTilesConfigurationErrors(t *testing.T) {
	_, err := catalog.ListTiles(filepath.Join(t.TempDir(), "missing"), "*.tif")
	assert.ErrorIs(t, err, raster.ErrConfiguration)

	_, err = catalog.ListTiles(t.TempDir(), "*.tif")
	assert.ErrorIs(t, err, raster.ErrConfiguration)
}

func TestLoadTileSet(t *testing.T) {
	source := rastertest.NewSource()
	dir := rastertest.TileDir(t, source, map[string]*raster.Grid{
		"tile_1.tif": rastertest.Uniform(raster.GeoTransform{0, 10, 0, 100, 0, -10}, 10, 10, 1),
		"tile_2.tif": rastertest.Uniform(raster.GeoTransform{100, 10, 0, 100, 0, -10}, 10, 10, 2),
	}, rastertest.TileOptions{Categorical: true})

	cat, err := catalog.New(source, 16)
	require.NoError(t, err)

	tileSet, err := cat.Load(context.Background(), catalog.Source{Name: "BBK", Root: dir, Pattern: "*.tif"}, 0.05)
	require.NoError(t, err)
	require.Len(t, tileSet.Tiles, 2)
	assert.Equal(t, "BBK", tileSet.Name)
	assert.Equal(t, 10.0, tileSet.Resolution)
	assert.True(t, tileSet.Categorical)
	assert.Equal(t, 0, tileSet.Tiles[0].Index)
	assert.Equal(t, filepath.Join(dir, "tile_2.tif"), tileSet.Tiles[1].Path)
	assert.Equal(t, 200.0, tileSet.Tiles[1].Bounds.Max[0])
}

func TestLoadRejectsInconsistentTiles(t *testing.T) {
	tests := []struct {
		name    string
		second  *raster.Grid
		options rastertest.TileOptions
	}{
		{
			name:   "resolution",
			second: rastertest.Uniform(raster.GeoTransform{100, 20, 0, 100, 0, -20}, 5, 5, 1),
		},
		{
			name:   "anisotropic",
			second: rastertest.Uniform(raster.GeoTransform{100, 10, 0, 100, 0, -15}, 10, 10, 1),
		},
		{
			name:    "crs",
			second:  rastertest.Uniform(raster.GeoTransform{100, 10, 0, 100, 0, -10}, 10, 10, 1),
			options: rastertest.TileOptions{CRS: `PROJCS["other"]`},
		},
		{
			name:    "bands",
			second:  rastertest.Uniform(raster.GeoTransform{100, 10, 0, 100, 0, -10}, 10, 10, 1),
			options: rastertest.TileOptions{Bands: 3},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			source := rastertest.NewSource()
			dir := rastertest.TileDir(t, source, map[string]*raster.Grid{
				"a.tif": rastertest.Uniform(raster.GeoTransform{0, 10, 0, 100, 0, -10}, 10, 10, 1),
			}, rastertest.TileOptions{})
			require.NoError(t, os.WriteFile(filepath.Join(dir, "b.tif"), nil, 0o600))
			source.Add(filepath.Join(dir, "b.tif"), tc.second, tc.options)

			cat, err := catalog.New(source, 0)
			require.NoError(t, err)
			_, err = cat.Load(context.Background(), catalog.Source{Name: "DEM", Root: dir}, 0.05)
			assert.ErrorIs(t, err, raster.ErrInconsistentRaster)
			assert.True(t, raster.IsFatal(err))
		})
	}
}

func TestTileBoundsCached(t *testing.T) {
	source := rastertest.NewSource()
	source.Add("mem/a.tif", rastertest.Uniform(raster.GeoTransform{0, 1, 0, 1, 0, -1}, 1, 1, 0), rastertest.TileOptions{})

	cat, err := catalog.New(source, 4)
	require.NoError(t, err)

	first, err := cat.TileBounds(context.Background(), "mem/a.tif")
	require.NoError(t, err)

	// cached metadata is served after the tile changed
	source.Add("mem/a.tif", rastertest.Uniform(raster.GeoTransform{5, 1, 0, 1, 0, -1}, 1, 1, 0), rastertest.TileOptions{})
	second, err := cat.TileBounds(context.Background(), "mem/a.tif")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = cat.TileBounds(context.Background(), "mem/missing.tif")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stations.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	assert.True(t, catalog.FileExists(path))
	assert.False(t, catalog.FileExists(dir))
	assert.False(t, catalog.FileExists(filepath.Join(dir, "missing.csv")))
}
