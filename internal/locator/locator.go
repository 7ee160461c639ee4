// Package locator finds the tiles of a tile set that a point or polygon falls on.
package locator

import (
	"fmt"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/vergauwenthomas/VLINDER/internal/catalog"
	"github.com/vergauwenthomas/VLINDER/internal/raster"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50

	// extent of the search rectangle of a point query (rtreego rejects zero sized rectangles)
	pointExtent = 1e-9
)

// spatialTile wraps a tile to implement the rtreego.Spatial interface
type spatialTile struct {
	tile catalog.Tile
	rect *rtreego.Rect
}

func (st *spatialTile) Bounds() *rtreego.Rect {
	return st.rect
}

// Locator is a spatial index over the tiles of one tile set (readonly after New).
type Locator struct {
	tileSet *catalog.TileSet
	tree    *rtreego.Rtree
}

/*
New indexes the tile bounds of a tile set.
*/
func New(tileSet *catalog.TileSet) (*Locator, error) {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for _, tile := range tileSet.Tiles {
		rect, err := boundToRect(tile.Bounds)
		if err != nil {
			return nil, fmt.Errorf("tile [%s] with invalid bounds %v: error [%v]: %w", tile.Path, tile.Bounds, err, raster.ErrInconsistentRaster)
		}
		tree.Insert(&spatialTile{tile: tile, rect: rect})
	}
	return &Locator{tileSet: tileSet, tree: tree}, nil
}

// TileSet returns the indexed tile set.
func (l *Locator) TileSet() *catalog.TileSet {
	return l.tileSet
}

/*
Locate returns all tiles whose bounds overlap the geometry, in catalog order.
Points must lie strictly inside a tile; for all other geometries the bounding box is
tested with interval-overlap logic (touching edges do not count).
An empty result is not an error.
*/
func (l *Locator) Locate(geometry orb.Geometry) []catalog.Tile {
	if point, ok := geometry.(orb.Point); ok {
		return l.LocatePoint(point)
	}
	return l.LocateBound(geometry.Bound())
}

// LocatePoint returns all tiles strictly containing p, in catalog order.
func (l *Locator) LocatePoint(p orb.Point) []catalog.Tile {
	query := orb.Bound{
		Min: orb.Point{p[0] - pointExtent, p[1] - pointExtent},
		Max: orb.Point{p[0] + pointExtent, p[1] + pointExtent},
	}
	return l.search(query, func(tile catalog.Tile) bool {
		return raster.StrictlyContains(tile.Bounds, p)
	})
}

// LocateBound returns all tiles overlapping b, in catalog order.
func (l *Locator) LocateBound(b orb.Bound) []catalog.Tile {
	return l.search(b, func(tile catalog.Tile) bool {
		return raster.Overlaps(tile.Bounds, b)
	})
}

/*
search prefilters the tiles with the rtree and applies the exact test.
The rtree result order is unspecified, the catalog order is restored by sorting.
*/
func (l *Locator) search(b orb.Bound, accept func(tile catalog.Tile) bool) []catalog.Tile {
	rect, err := boundToRect(b)
	if err != nil {
		// degenerate query (e.g. empty polygon), fall back to a linear scan
		var tiles []catalog.Tile
		for _, tile := range l.tileSet.Tiles {
			if accept(tile) {
				tiles = append(tiles, tile)
			}
		}
		return tiles
	}

	var tiles []catalog.Tile
	for _, item := range l.tree.SearchIntersect(rect) {
		tile := item.(*spatialTile).tile
		if accept(tile) {
			tiles = append(tiles, tile)
		}
	}
	sort.Slice(tiles, func(i, j int) bool {
		return tiles[i].Index < tiles[j].Index
	})
	return tiles
}

func boundToRect(b orb.Bound) (*rtreego.Rect, error) {
	width := b.Max[0] - b.Min[0]
	height := b.Max[1] - b.Min[1]
	return rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{width, height})
}
