package grid

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// WriteGeoJSON writes the cells as a FeatureCollection of polygons with x, y and z properties.
// GeoJSON has no CRS member, cells in EPSG:3857 are written as is.
func WriteGeoJSON(path string, cells []Cell) error {
	fc := geojson.NewFeatureCollection()
	for _, c := range cells {
		ring := make(orb.Ring, 0, 5)
		for _, v := range c.BBox.Vertices() {
			ring = append(ring, orb.Point(v))
		}
		ring = append(ring, ring[0])

		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties["z"] = c.Tile.Z
		f.Properties["x"] = c.Tile.X
		f.Properties["y"] = c.Tile.Y
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
