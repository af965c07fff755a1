package bounds

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/pdok/tileoperator/tiles"
)

// GeoJSONReader reads a FeatureCollection, a single Feature or a bare Geometry.
// GeoJSON coordinates are always WGS 84 longitude, latitude.
type GeoJSONReader struct{}

func (GeoJSONReader) Bounds(path string) (tiles.BoundingBox, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tiles.BoundingBox{}, err
	}
	geometries, err := decodeGeoJSON(data)
	if err != nil {
		return tiles.BoundingBox{}, fmt.Errorf("%s: %v: %w", path, err, ErrUnsupportedFormat)
	}

	var bound orb.Bound
	found := false
	for _, g := range geometries {
		if g == nil {
			continue
		}
		if !found {
			bound = g.Bound()
			found = true
			continue
		}
		bound = bound.Union(g.Bound())
	}
	if !found {
		return tiles.BoundingBox{}, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return tiles.BoundingBox{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()}, nil
}

func decodeGeoJSON(data []byte) ([]orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		geometries := make([]orb.Geometry, 0, len(fc.Features))
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
		return geometries, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		return []orb.Geometry{f.Geometry}, nil
	case "":
		return nil, fmt.Errorf("missing GeoJSON type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		return []orb.Geometry{g.Geometry()}, nil
	}
}
