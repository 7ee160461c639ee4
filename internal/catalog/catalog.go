// Package catalog indexes the raster tiles of a dataset and validates that they form one
// consistent mosaic (same resolution, same CRS, one band).
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/maypok86/otter/v2"
	"github.com/paulmach/orb"

	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

// TileMetadata represents meta data about a tile (immutable after first load).
type TileMetadata struct {
	Path        string              // path and file name (e.g. /data/BBK2015/BBK1_15_K31.tif)
	Bounds      orb.Bound           // bounding box in native projected CRS
	Transform   raster.GeoTransform // affine geotransform
	Width       int                 // raster size in cells
	Height      int                 // raster size in cells
	ResolutionX float64             // cell size x (map units)
	ResolutionY float64             // cell size y (map units)
	CRS         string              // WKT of the spatial reference system
	EPSG        int                 // EPSG code if known (0 otherwise)
	BandCount   int                 // number of raster bands
	Categorical bool                // categorical class codes (true) or continuous values (false)
	NoData      float64             // nodata value of band 1
	HasNoData   bool                // nodata value is defined
}

// Resolution returns the (isotropic) cell size.
func (m TileMetadata) Resolution() float64 {
	return m.ResolutionX
}

// MetadataReader reads tile meta data (opens the tile, reads metadata, closes it).
type MetadataReader interface {
	Metadata(path string) (TileMetadata, error)
}

// Tile is a descriptor of one tile of a tile set.
type Tile struct {
	Index int // catalog (enumeration) order
	TileMetadata
}

// TileSet represents all tiles of one dataset (readonly after initialization).
type TileSet struct {
	Name        string
	Tiles       []Tile
	Resolution  float64
	CRS         string
	Categorical bool
}

// Source names a dataset root directory and its tile naming convention.
type Source struct {
	Name    string // dataset name (e.g. BBK)
	Root    string // dataset root directory
	Pattern string // glob pattern for tile files (e.g. *.tif)
}

// Catalog resolves tile metadata with a process-wide cache.
type Catalog struct {
	reader MetadataReader
	cache  *otter.Cache[string, TileMetadata]
}

/*
New creates a catalog. Tile metadata is cached (up to cacheSize tiles) and may be read
concurrently, raster handles are never cached.
*/
func New(reader MetadataReader, cacheSize int) (*Catalog, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := otter.New(&otter.Options[string, TileMetadata]{
		MaximumSize: cacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("error [%w] at otter.New()", err)
	}
	return &Catalog{reader: reader, cache: cache}, nil
}

/*
ListTiles scans a directory for raster files matching the dataset's naming convention.
Files are returned sorted by name, which defines the catalog order.
*/
func ListTiles(root string, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.tif"
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("dataset directory [%s] not accessible: error [%v] at os.Stat(): %w", root, err, raster.ErrConfiguration)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset root [%s] is not a directory: %w", root, raster.ErrConfiguration)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("error [%v] at os.ReadDir(), directory [%s]: %w", err, root, raster.ErrConfiguration)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("invalid tile pattern [%s]: error [%v]: %w", pattern, err, raster.ErrConfiguration)
		}
		if matched {
			paths = append(paths, filepath.Join(root, entry.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no tiles matching [%s] in dataset directory [%s]: %w", pattern, root, raster.ErrConfiguration)
	}

	return paths, nil
}

/*
FileExists checks if a file already exists.
It returns true if the file exists, and false otherwise.
*/
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	// check if it's actually a file and not a directory
	return err == nil && !info.IsDir()
}

/*
TileBounds returns bounds, CRS and resolution of a tile.
The tile is opened and closed by the metadata reader; the result is cached.
*/
func (c *Catalog) TileBounds(ctx context.Context, path string) (TileMetadata, error) {
	loader := otter.LoaderFunc[string, TileMetadata](func(_ context.Context, key string) (TileMetadata, error) {
		return c.reader.Metadata(key)
	})
	metadata, err := c.cache.Get(ctx, path, loader)
	if err != nil {
		return TileMetadata{}, fmt.Errorf("error [%w] reading metadata of tile [%s]", err, path)
	}
	return metadata, nil
}

/*
Load builds the tile set of a dataset and validates it.
All tiles must be single band, (almost) isotropic, and share resolution and CRS.
A mismatch is fatal (ErrInconsistentRaster).
*/
func (c *Catalog) Load(ctx context.Context, source Source, tolerance float64) (*TileSet, error) {
	paths, err := ListTiles(source.Root, source.Pattern)
	if err != nil {
		return nil, fmt.Errorf("dataset [%s]: %w", source.Name, err)
	}

	tileSet := &TileSet{Name: source.Name}
	for index, path := range paths {
		metadata, err := c.TileBounds(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("dataset [%s]: %w", source.Name, err)
		}
		tile := Tile{Index: index, TileMetadata: metadata}

		err = validateTile(tile, tolerance)
		if err != nil {
			return nil, fmt.Errorf("dataset [%s]: %w", source.Name, err)
		}

		if index == 0 {
			tileSet.Resolution = metadata.ResolutionX
			tileSet.CRS = metadata.CRS
			tileSet.Categorical = metadata.Categorical
		} else {
			if !raster.SameResolution(tileSet.Resolution, metadata.ResolutionX, tolerance) {
				return nil, fmt.Errorf("dataset [%s]: tile [%s] has resolution %g, expected %g: %w",
					source.Name, path, metadata.ResolutionX, tileSet.Resolution, raster.ErrInconsistentRaster)
			}
			if metadata.CRS != tileSet.CRS {
				return nil, fmt.Errorf("dataset [%s]: tile [%s] has a different CRS than [%s]: %w",
					source.Name, path, tileSet.Tiles[0].Path, raster.ErrInconsistentRaster)
			}
			if metadata.Categorical != tileSet.Categorical {
				return nil, fmt.Errorf("dataset [%s]: tile [%s] mixes categorical and continuous data: %w",
					source.Name, path, raster.ErrInconsistentRaster)
			}
		}

		tileSet.Tiles = append(tileSet.Tiles, tile)
	}

	slog.Info("dataset tile set successfully build", "dataset", source.Name, "root", source.Root,
		"tiles", len(tileSet.Tiles), "resolution", tileSet.Resolution, "categorical", tileSet.Categorical)

	return tileSet, nil
}

/*
validateTile checks the properties of a single tile.
*/
func validateTile(tile Tile, tolerance float64) error {
	if tile.BandCount != 1 {
		return fmt.Errorf("tile [%s] has %d raster bands, exactly one band is supported: %w",
			tile.Path, tile.BandCount, raster.ErrInconsistentRaster)
	}
	if tile.ResolutionX <= 0 || tile.ResolutionY <= 0 {
		return fmt.Errorf("tile [%s] has invalid resolution (%g, %g): %w",
			tile.Path, tile.ResolutionX, tile.ResolutionY, raster.ErrInconsistentRaster)
	}
	if !raster.SameResolution(tile.ResolutionX, tile.ResolutionY, tolerance) {
		return fmt.Errorf("tile [%s] has different x and y resolution (%g, %g): %w",
			tile.Path, tile.ResolutionX, tile.ResolutionY, raster.ErrInconsistentRaster)
	}
	return nil
}
