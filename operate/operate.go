// Package operate holds the context of one tile operation: a bounding box and a zoom level,
// and the tiles derived from them.
package operate

import (
	"sync"

	"github.com/pdok/tileoperator/tiles"
)

// Config is the input of an Operation. Use a new Operation for another bbox or zoom.
type Config struct {
	// BBox in EPSG:4326 (minLon, minLat, maxLon, maxLat)
	BBox tiles.BoundingBox
	Zoom uint
}

// Operation resolves its tile range and tile list once, on first use.
// It is safe for concurrent use.
type Operation struct {
	config Config

	once      sync.Once
	tileRange tiles.TileRange
	tiles     []tiles.Tile
	err       error
}

func New(config Config) *Operation {
	return &Operation{config: config}
}

func (o *Operation) Config() Config {
	return o.config
}

func (o *Operation) resolve() {
	o.once.Do(func() {
		o.tileRange, o.err = tiles.BoundingBoxToTileRange(o.config.BBox, o.config.Zoom)
		if o.err != nil {
			return
		}
		o.tiles = o.tileRange.Tiles(o.config.Zoom)
	})
}

// TileRange is the inclusive range of tile indices covering the bbox.
func (o *Operation) TileRange() (tiles.TileRange, error) {
	o.resolve()
	return o.tileRange, o.err
}

// Tiles lists the covering tiles, x outer and y inner. The slice is shared, do not modify it.
func (o *Operation) Tiles() ([]tiles.Tile, error) {
	o.resolve()
	return o.tiles, o.err
}

// Each calls f for every covering tile in enumeration order, stopping at the first error.
func (o *Operation) Each(f func(tiles.Tile) error) error {
	ts, err := o.Tiles()
	if err != nil {
		return err
	}
	for _, t := range ts {
		if err = f(t); err != nil {
			return err
		}
	}
	return nil
}

// TileBounds pairs a tile with its footprint in EPSG:3857.
type TileBounds struct {
	Tile tiles.Tile
	BBox tiles.BoundingBox
}

// TileBounds3857 returns the Web Mercator footprint of every covering tile.
func (o *Operation) TileBounds3857() ([]TileBounds, error) {
	ts, err := o.Tiles()
	if err != nil {
		return nil, err
	}
	result := make([]TileBounds, 0, len(ts))
	for _, t := range ts {
		bbox, err := tiles.TileToMercatorBoundingBox(t.X, t.Y, t.Z)
		if err != nil {
			return nil, err
		}
		result = append(result, TileBounds{Tile: t, BBox: bbox})
	}
	return result, nil
}
