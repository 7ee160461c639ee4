// Package gdalraster reads GeoTIFF tiles and reprojects coordinates with GDAL (godal).
// Every call opens the raster, reads what it needs and closes it again, so no raster
// handle is shared between goroutines.
package gdalraster

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

// Register registers all GDAL drivers (call once at program start).
func Register() {
	godal.RegisterAll()
}

// Reader reads tile metadata and cells with GDAL.
type Reader struct{}

/*
Metadata opens a tile, reads bounds, resolution, CRS, band count and data type, and
closes it again.
*/
func (Reader) Metadata(path string) (catalog.TileMetadata, error) {
	metadata := catalog.TileMetadata{Path: path}

	if !catalog.FileExists(path) {
		return metadata, fmt.Errorf("file [%s] does not exist: %w", path, os.ErrNotExist)
	}

	dataset, err := godal.Open(path)
	if err != nil {
		return metadata, fmt.Errorf("error [%w] at godal.Open(), file [%s]", err, path)
	}
	defer dataset.Close()

	gt, err := dataset.GeoTransform()
	if err != nil {
		return metadata, fmt.Errorf("error [%w] at dataset.GeoTransform(), file [%s]", err, path)
	}
	metadata.Transform = raster.GeoTransform(gt)
	if err = metadata.Transform.Validate(); err != nil {
		return metadata, fmt.Errorf("raster [%s]: %v: %w", path, err, raster.ErrInconsistentRaster)
	}

	structure := dataset.Structure()
	metadata.Width = structure.SizeX
	metadata.Height = structure.SizeY
	metadata.BandCount = structure.NBands
	metadata.Bounds = metadata.Transform.Bounds(structure.SizeX, structure.SizeY)
	metadata.ResolutionX, metadata.ResolutionY = metadata.Transform.Resolution()

	// spatial reference system
	srs := dataset.SpatialRef()
	if srs == nil {
		return metadata, fmt.Errorf("raster [%s] without spatial reference system: %w", path, raster.ErrInconsistentRaster)
	}
	defer srs.Close()
	metadata.CRS, err = srs.WKT()
	if err != nil {
		return metadata, fmt.Errorf("error [%w] at srs.WKT(), file [%s]", err, path)
	}
	if code, err := strconv.Atoi(srs.AuthorityCode("")); err == nil {
		metadata.EPSG = code
	}

	// first band: data type and nodata
	bands := dataset.Bands()
	if len(bands) == 0 {
		return metadata, fmt.Errorf("no raster bands found in file [%s]: %w", path, raster.ErrInconsistentRaster)
	}
	band := bands[0]
	switch band.Structure().DataType {
	case godal.Byte, godal.Int16, godal.UInt16, godal.Int32, godal.UInt32:
		metadata.Categorical = true
	case godal.Float32, godal.Float64:
		metadata.Categorical = false
	default:
		return metadata, fmt.Errorf("unsupported data type '%s' for band 1 in file [%s]: %w",
			band.Structure().DataType, path, raster.ErrInconsistentRaster)
	}
	metadata.NoData, metadata.HasNoData = band.NoData()

	return metadata, nil
}

/*
ReadWindow reads the cells of the first band touching bound b (projected coordinates in
the CRS of the tile). NoData cells are returned as NaN.
*/
func (Reader) ReadWindow(tile catalog.Tile, b orb.Bound) (*raster.Grid, error) {
	dataset, err := godal.Open(tile.Path)
	if err != nil {
		return nil, fmt.Errorf("error [%w] at godal.Open(), file [%s]", err, tile.Path)
	}
	defer dataset.Close()

	gt, err := dataset.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("error [%w] at dataset.GeoTransform(), file [%s]", err, tile.Path)
	}
	transform := raster.GeoTransform(gt)
	structure := dataset.Structure()

	window := transform.PixelWindow(b, structure.SizeX, structure.SizeY)
	if window.Empty() {
		return &raster.Grid{Transform: transform.Shift(window.Col, window.Row)}, nil
	}

	values, err := readBand(dataset, window)
	if err != nil {
		return nil, fmt.Errorf("file [%s]: %w", tile.Path, err)
	}

	return &raster.Grid{
		Transform: transform.Shift(window.Col, window.Row),
		Width:     window.Width,
		Height:    window.Height,
		Values:    values,
	}, nil
}

/*
ReadPoint reads the value of the cell containing the projected point p (nearest cell).
A NoData cell is returned as NaN, a point outside the tile is an ErrOutOfBounds error.
*/
func (Reader) ReadPoint(tile catalog.Tile, p orb.Point) (float64, error) {
	dataset, err := godal.Open(tile.Path)
	if err != nil {
		return 0, fmt.Errorf("error [%w] at godal.Open(), file [%s]", err, tile.Path)
	}
	defer dataset.Close()

	gt, err := dataset.GeoTransform()
	if err != nil {
		return 0, fmt.Errorf("error [%w] at dataset.GeoTransform(), file [%s]", err, tile.Path)
	}
	transform := raster.GeoTransform(gt)
	if err = transform.Validate(); err != nil {
		return 0, fmt.Errorf("raster [%s]: %v: %w", tile.Path, err, raster.ErrInconsistentRaster)
	}

	col, row := transform.Cell(p[0], p[1])
	structure := dataset.Structure()
	if col < 0 || col >= structure.SizeX || row < 0 || row >= structure.SizeY {
		return 0, fmt.Errorf("coordinate (%.3f, %.3f) is outside the raster bounds [%s] (pixel %d, %d): %w",
			p[0], p[1], tile.Path, col, row, raster.ErrOutOfBounds)
	}

	values, err := readBand(dataset, raster.Window{Col: col, Row: row, Width: 1, Height: 1})
	if err != nil {
		return 0, fmt.Errorf("file [%s]: %w", tile.Path, err)
	}
	return values[0], nil
}

/*
readBand reads a window of the first band as float64 (GDAL converts the data type) and
replaces NoData values with NaN.
*/
func readBand(dataset *godal.Dataset, window raster.Window) ([]float64, error) {
	bands := dataset.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("no raster bands found: %w", raster.ErrInconsistentRaster)
	}
	band := bands[0]

	buffer := make([]float64, window.Width*window.Height)
	err := band.Read(window.Col, window.Row, buffer, window.Width, window.Height)
	if err != nil {
		return nil, fmt.Errorf("error [%w] at band.Read(), window (%d, %d, %d, %d)",
			err, window.Col, window.Row, window.Width, window.Height)
	}

	if nodata, ok := band.NoData(); ok {
		for i, value := range buffer {
			if value == nodata || (math.IsNaN(nodata) && math.IsNaN(value)) {
				buffer[i] = math.NaN()
			}
		}
	}
	return buffer, nil
}
