package geomhelp

import (
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/muesli/reflow/truncate"

	"github.com/pdok/tileoperator/tiles"
)

// BoundingBoxPolygon returns the bounding box as a closed, counterclockwise polygon ring:
// (minx,miny), (maxx,miny), (maxx,maxy), (minx,maxy), (minx,miny)
func BoundingBoxPolygon(b tiles.BoundingBox) geom.Polygon {
	ring := make([][2]float64, 0, 5)
	ring = append(ring, b.Vertices()...)
	ring = append(ring, ring[0])
	return geom.Polygon{ring}
}

// MergeExtent grows ext to include g. A nil ext starts from the extent of g.
func MergeExtent(ext *geom.Extent, g geom.Geometry) (*geom.Extent, error) {
	if ext == nil {
		return geom.NewExtentFromGeometry(g)
	}
	err := ext.AddGeometry(g)
	return ext, err
}

// WktMustEncode encodes g as WKT, truncated with an ellipsis to maxLen characters when maxLen > 0.
func WktMustEncode(g geom.Geometry, maxLen uint) string {
	if maxLen == 0 {
		return wkt.MustEncode(g)
	}
	return truncate.StringWithTail(wkt.MustEncode(g), maxLen, "...")
}

// Truncate shortens s for log output.
func Truncate(s string, maxLen uint) string {
	if maxLen == 0 {
		return s
	}
	return truncate.StringWithTail(s, maxLen, "...")
}
