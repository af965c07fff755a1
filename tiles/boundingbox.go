package tiles

import (
	"fmt"

	"github.com/go-spatial/geom"
)

// BoundingBox represents minx, miny, maxx and maxy.
// In geographic use the axes are (minLon, minLat, maxLon, maxLat) in EPSG:4326 degrees,
// a tile footprint uses (minX, minY, maxX, maxY) in EPSG:3857 metres.
// Wraparound over the antimeridian is not supported.
type BoundingBox [4]float64

func NewBoundingBox(minX, minY, maxX, maxY float64) BoundingBox {
	return BoundingBox{minX, minY, maxX, maxY}
}

func (b BoundingBox) ToGeomExtent() geom.Extent {
	return geom.Extent(b)
}

func FromGeomExtent(e geom.Extent) BoundingBox {
	return BoundingBox(e)
}

/* ========================= ATTRIBUTES ========================= */

// MinX is the smaller of the x values (west).
func (b BoundingBox) MinX() float64 {
	return b[0]
}

// MinY is the smaller of the y values (south).
func (b BoundingBox) MinY() float64 {
	return b[1]
}

// MaxX is the larger of the x values (east).
func (b BoundingBox) MaxX() float64 {
	return b[2]
}

// MaxY is the larger of the y values (north).
func (b BoundingBox) MaxY() float64 {
	return b[3]
}

// XSpan is the distance of the BoundingBox in X
func (b BoundingBox) XSpan() float64 {
	return b[2] - b[0]
}

// YSpan is the distance of the BoundingBox in Y
func (b BoundingBox) YSpan() float64 {
	return b[3] - b[1]
}

// Inverted reports whether a min exceeds its max. Such a box covers no tiles.
func (b BoundingBox) Inverted() bool {
	return b[0] > b[2] || b[1] > b[3]
}

// Vertices return the vertices of the BoundingBox. The vertices are ordered in the following manner.
// (minx,miny), (maxx,miny), (maxx,maxy), (minx,maxy)
func (b BoundingBox) Vertices() [][2]float64 {
	return [][2]float64{
		{b.MinX(), b.MinY()},
		{b.MaxX(), b.MinY()},
		{b.MaxX(), b.MaxY()},
		{b.MinX(), b.MaxY()},
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%v,%v,%v,%v", b[0], b[1], b[2], b[3])
}
