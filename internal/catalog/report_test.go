package catalog_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
	"github.com/vergauwenthomas/VLINDER/internal/raster/rastertest"
)

func TestWriteCSV(t *testing.T) {
	source := rastertest.NewSource()
	dir := rastertest.TileDir(t, source, map[string]*raster.Grid{
		"esm_2.tif": rastertest.Uniform(raster.GeoTransform{1000, 10, 0, 2000, 0, -10}, 100, 100, 40),
		"esm_1.tif": rastertest.Uniform(raster.GeoTransform{0, 10, 0, 2000, 0, -10}, 100, 100, 40),
	}, rastertest.TileOptions{Categorical: true, EPSG: 3035})

	cat, err := catalog.New(source, 16)
	require.NoError(t, err)
	tileSet, err := cat.Load(context.Background(), catalog.Source{Name: "ESM", Root: dir}, 0.05)
	require.NoError(t, err)

	var buffer bytes.Buffer
	require.NoError(t, catalog.WriteCSV(&buffer, []*catalog.TileSet{tileSet}))

	rows, err := csv.NewReader(&buffer).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Dataset", rows[0][0])
	assert.Equal(t, []string{"ESM", "0", filepath.Join(dir, "esm_1.tif"), "0.000", "1000.000", "1000.000", "2000.000",
		"10", "3035", "true", rastertest.DefaultCRS}, rows[1])
	assert.Equal(t, "1", rows[2][1])
}
