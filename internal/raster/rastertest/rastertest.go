// Package rastertest provides in-memory tiles and projections for tests that must run
// without GDAL and without raster files.
package rastertest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

// DefaultCRS is the CRS assigned to tiles added without explicit CRS.
const DefaultCRS = `PROJCS["test"]`

// TileOptions describes the metadata of an in-memory tile.
type TileOptions struct {
	Categorical bool
	CRS         string
	EPSG        int
	Bands       int
}

type memoryTile struct {
	grid    *raster.Grid
	options TileOptions
}

// Source is an in-memory tile store keyed by path. It serves tile metadata and tile
// reads the same way the GDAL adapter does.
type Source struct {
	mu    sync.Mutex
	tiles map[string]memoryTile
	reads int
}

// NewSource creates an empty source.
func NewSource() *Source {
	return &Source{tiles: make(map[string]memoryTile)}
}

// Add registers a grid under path.
func (s *Source) Add(path string, grid *raster.Grid, options TileOptions) {
	if options.CRS == "" {
		options.CRS = DefaultCRS
	}
	if options.Bands == 0 {
		options.Bands = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[path] = memoryTile{grid: grid, options: options}
}

// Reads returns the number of window and point reads served so far.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Source) lookup(path string) (memoryTile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tile, ok := s.tiles[path]
	if !ok {
		return memoryTile{}, fmt.Errorf("tile [%s] not found: %w", path, os.ErrNotExist)
	}
	return tile, nil
}

// Metadata implements catalog.MetadataReader.
func (s *Source) Metadata(path string) (catalog.TileMetadata, error) {
	tile, err := s.lookup(path)
	if err != nil {
		return catalog.TileMetadata{}, err
	}
	resX, resY := tile.grid.Resolution()
	return catalog.TileMetadata{
		Path:        path,
		Bounds:      tile.grid.Bounds(),
		Transform:   tile.grid.Transform,
		Width:       tile.grid.Width,
		Height:      tile.grid.Height,
		ResolutionX: resX,
		ResolutionY: resY,
		CRS:         tile.options.CRS,
		EPSG:        tile.options.EPSG,
		BandCount:   tile.options.Bands,
		Categorical: tile.options.Categorical,
	}, nil
}

// ReadWindow returns a copy of the cells of the tile touching bound b.
func (s *Source) ReadWindow(tile catalog.Tile, b orb.Bound) (*raster.Grid, error) {
	memory, err := s.lookup(tile.Path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	return raster.Clip(memory.grid, b), nil
}

// ReadPoint returns the value of the cell containing p (NaN for no data).
func (s *Source) ReadPoint(tile catalog.Tile, p orb.Point) (float64, error) {
	memory, err := s.lookup(tile.Path)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	col, row, ok := memory.grid.CellOf(p[0], p[1])
	if !ok {
		return 0, fmt.Errorf("point (%f, %f) outside tile [%s]: %w", p[0], p[1], tile.Path, raster.ErrOutOfBounds)
	}
	return memory.grid.At(col, row), nil
}

// Projector maps (lon, lat) to projected (x, y) = (lon, lat) for every CRS, so test
// stations are placed directly in map units.
type Projector struct{}

// Project implements the projector interface of the landuse and pipeline packages.
func (Projector) Project(lon, lat float64, epsg int) (orb.Point, error) {
	return orb.Point{lon, lat}, nil
}

// Uniform creates a grid filled with value.
func Uniform(gt raster.GeoTransform, width, height int, value float64) *raster.Grid {
	return Filled(gt, width, height, func(int, int) float64 { return value })
}

// Filled creates a grid with values from fn.
func Filled(gt raster.GeoTransform, width, height int, fn func(col, row int) float64) *raster.Grid {
	grid := raster.NewGrid(gt, width, height)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			grid.Set(col, row, fn(col, row))
		}
	}
	return grid
}

/*
TileDir creates empty tile files in a temporary directory and registers the grids under
their file paths. The directory can be used as dataset root.
*/
func TileDir(t testing.TB, source *Source, tiles map[string]*raster.Grid, options TileOptions) string {
	t.Helper()
	dir := t.TempDir()
	for name, grid := range tiles {
		path := filepath.Join(dir, name)
		err := os.WriteFile(path, nil, 0o600)
		if err != nil {
			t.Fatalf("error [%v] at os.WriteFile(), file [%s]", err, path)
		}
		source.Add(path, grid, options)
	}
	return dir
}
