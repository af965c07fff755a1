// Package grid exports the footprints of a set of tiles as polygons, for inspecting
// what a download will cover in a GIS.
package grid

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdok/tileoperator/tiles"
)

// Supported footprint reference systems.
const (
	EPSG4326 = 4326
	EPSG3857 = 3857
)

// Cell is the footprint of a single tile.
type Cell struct {
	Tile tiles.Tile
	BBox tiles.BoundingBox
}

// Footprints computes the footprint of every tile, in EPSG:4326 degrees or EPSG:3857 metres.
func Footprints(ts []tiles.Tile, srid int) ([]Cell, error) {
	cells := make([]Cell, 0, len(ts))
	for _, t := range ts {
		var bbox tiles.BoundingBox
		switch srid {
		case EPSG4326:
			bbox = tiles.TileToGeoBoundingBox(t.X, t.Y, t.Z)
		case EPSG3857:
			var err error
			if bbox, err = tiles.TileToMercatorBoundingBox(t.X, t.Y, t.Z); err != nil {
				return nil, fmt.Errorf("tile %s: %w", t, err)
			}
		default:
			return nil, fmt.Errorf("unsupported srid %d, use %d or %d", srid, EPSG4326, EPSG3857)
		}
		cells = append(cells, Cell{Tile: t, BBox: bbox})
	}
	return cells, nil
}

// Write writes the cells to path, as GeoJSON or GeoPackage depending on the extension.
func Write(path string, cells []Cell, srid int) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return WriteGeoJSON(path, cells)
	case ".gpkg":
		return WriteGeoPackage(path, cells, srid)
	default:
		return fmt.Errorf("%s: unsupported grid output, use .geojson or .gpkg", path)
	}
}
