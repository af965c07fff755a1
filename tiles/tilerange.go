package tiles

import (
	"fmt"
)

// TileRange is a rectangle of tile indices, inclusive on both ends.
// A range with MinX > MaxX or MinY > MaxY is empty.
type TileRange struct {
	MinX int
	MinY int
	MaxX int
	MaxY int
}

// BoundingBoxToTileRange resolves the tiles covering bbox (in EPSG:4326) at the given zoom level.
// The upper-left tile is the one containing (minLon, maxLat), the lower-right the one containing
// (maxLon, minLat). Because indices are floored and both ends are inclusive, a box edge lying exactly
// on a tile boundary includes the tile beyond that boundary.
// An inverted box resolves to an empty range, a zero-area box to the single tile containing it.
func BoundingBoxToTileRange(bbox BoundingBox, zoom uint) (TileRange, error) {
	upperLeft, err := GeoToTile(bbox.MinX(), bbox.MaxY(), zoom)
	if err != nil {
		return TileRange{}, fmt.Errorf("upper left of %v: %w", bbox, err)
	}
	lowerRight, err := GeoToTile(bbox.MaxX(), bbox.MinY(), zoom)
	if err != nil {
		return TileRange{}, fmt.Errorf("lower right of %v: %w", bbox, err)
	}
	if bbox.Inverted() {
		return emptyRange, nil
	}
	return TileRange{
		MinX: upperLeft.X,
		MinY: upperLeft.Y,
		MaxX: lowerRight.X,
		MaxY: lowerRight.Y,
	}, nil
}

var emptyRange = TileRange{MinX: 0, MinY: 0, MaxX: -1, MaxY: -1}

func (r TileRange) Empty() bool {
	return r.MinX > r.MaxX || r.MinY > r.MaxY
}

// XSpan is the number of tile columns in the range.
func (r TileRange) XSpan() int {
	if r.MinX > r.MaxX {
		return 0
	}
	return r.MaxX - r.MinX + 1
}

// YSpan is the number of tile rows in the range.
func (r TileRange) YSpan() int {
	if r.MinY > r.MaxY {
		return 0
	}
	return r.MaxY - r.MinY + 1
}

func (r TileRange) Count() int {
	return r.XSpan() * r.YSpan()
}

// Each calls f for every tile in the range at the given zoom level, x in the outer loop and y in the
// inner loop: all rows of a column are visited before moving to the next column.
// Iteration stops at the first error returned by f.
func (r TileRange) Each(zoom uint, f func(Tile) error) error {
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			if err := f(Tile{Z: zoom, X: x, Y: y}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Tiles enumerates the range in the order of Each. Every tile carries the zoom level.
func (r TileRange) Tiles(zoom uint) []Tile {
	tiles := make([]Tile, 0, r.Count())
	_ = r.Each(zoom, func(t Tile) error {
		tiles = append(tiles, t)
		return nil
	})
	return tiles
}

func (r TileRange) String() string {
	return fmt.Sprintf("x %d..%d, y %d..%d", r.MinX, r.MaxX, r.MinY, r.MaxY)
}
