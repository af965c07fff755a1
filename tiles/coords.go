// Package tiles implements the Slippy Map (XYZ) tile math on top of Web Mercator (EPSG:3857):
// geographic ↔ tile index ↔ Mercator conversions and the bounding box to tile range resolution.
// Everything in here is a pure function of its arguments.
package tiles

import (
	"errors"
	"fmt"
	"math"

	"github.com/pdok/tileoperator/mathhelp"
)

const (
	// MaxZoom keeps 2^zoom within int range on every platform.
	MaxZoom uint = 30

	// MercatorHalfExtent is half the circumference of the sphere used by Web Mercator, truncated as in
	// the usual EPSG:3857 formulas.
	MercatorHalfExtent = 20037508.34

	// ResolutionZoom0 is the ground resolution in metres per pixel at zoom 0 for 256x256 pixel tiles.
	ResolutionZoom0 = 156543.03392

	TileSize = 256

	radToDeg = 180 / math.Pi
	degToRad = math.Pi / 180
)

// ErrDomain is returned for input outside the domain of the projection, e.g. latitudes at or beyond the poles.
var ErrDomain = errors.New("outside the domain of web mercator")

// GeoToTile returns the tile containing (lon, lat) at the given zoom level.
// The latitude must lie within (-90, 90), exclusive of the poles.
func GeoToTile(lon, lat float64, zoom uint) (Tile, error) {
	if err := checkZoom(zoom); err != nil {
		return Tile{}, err
	}
	if err := checkLonLat(lon, lat); err != nil {
		return Tile{}, err
	}
	n := mathhelp.Pow2Float(zoom)
	latRad := lat * degToRad
	x := math.Floor((lon + 180) / 360 * n)
	y := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)
	return Tile{Z: zoom, X: int(x), Y: int(y)}, nil
}

// TileToGeo returns the geographic coordinate of the top-left corner of tile (x, y).
// Tile (0, 0) is always (-180, 85.0511287798066), the maximum Web Mercator latitude.
func TileToGeo(x, y int, zoom uint) (lon, lat float64) {
	n := mathhelp.Pow2Float(zoom)
	lon = float64(x)/n*360 - 180
	lat = math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * radToDeg
	return lon, lat
}

// TileToGeoBoundingBox returns the geographic extent of tile (x, y), spanned by
// its bottom-left corner (x, y+1) and its top-right corner (x+1, y).
func TileToGeoBoundingBox(x, y int, zoom uint) BoundingBox {
	left, bottom := TileToGeo(x, y+1, zoom)
	right, top := TileToGeo(x+1, y, zoom)
	return BoundingBox{left, bottom, right, top}
}

// LonLatToMercator projects a geographic coordinate to Web Mercator metres.
func LonLatToMercator(lon, lat float64) (x, y float64, err error) {
	if err = checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	x = lon * MercatorHalfExtent / 180
	y = math.Log(math.Tan((90+lat)*math.Pi/360)) / degToRad
	y = y * MercatorHalfExtent / 180
	return x, y, nil
}

// TileToMercator returns the top-left corner of tile (x, y) in Web Mercator metres.
func TileToMercator(x, y int, zoom uint) (mx, my float64, err error) {
	if err = checkZoom(zoom); err != nil {
		return 0, 0, err
	}
	lon, lat := TileToGeo(x, y, zoom)
	return LonLatToMercator(lon, lat)
}

// TileToMercatorBoundingBox returns the Web Mercator extent of tile (x, y):
// the projected lower-left and upper-right corners of TileToGeoBoundingBox.
func TileToMercatorBoundingBox(x, y int, zoom uint) (BoundingBox, error) {
	if err := checkZoom(zoom); err != nil {
		return BoundingBox{}, err
	}
	geo := TileToGeoBoundingBox(x, y, zoom)
	left, bottom, err := LonLatToMercator(geo.MinX(), geo.MinY())
	if err != nil {
		return BoundingBox{}, fmt.Errorf("tile %d/%d/%d: %w", zoom, x, y, err)
	}
	right, top, err := LonLatToMercator(geo.MaxX(), geo.MaxY())
	if err != nil {
		return BoundingBox{}, fmt.Errorf("tile %d/%d/%d: %w", zoom, x, y, err)
	}
	return BoundingBox{left, bottom, right, top}, nil
}

// ResolutionAtZoom is the ground resolution at the equator in metres per pixel, assuming 256x256 pixel tiles.
func ResolutionAtZoom(zoom uint) float64 {
	return ResolutionZoom0 / mathhelp.Pow2Float(zoom)
}

func checkZoom(zoom uint) error {
	if zoom > MaxZoom {
		return fmt.Errorf("zoom level %d exceeds %d: %w", zoom, MaxZoom, ErrDomain)
	}
	return nil
}

func checkLonLat(lon, lat float64) error {
	if !mathhelp.IsFinite(lon, lat) {
		return fmt.Errorf("coordinate (%v, %v) is not finite: %w", lon, lat, ErrDomain)
	}
	if lat <= -90 || lat >= 90 {
		return fmt.Errorf("latitude %v not within (-90, 90): %w", lat, ErrDomain)
	}
	return nil
}
