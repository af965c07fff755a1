package georef

import (
	"fmt"

	"github.com/pdok/tileoperator/tiles"
)

// Affine maps pixel (col, row) to map coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// For a north-up tile B and D are 0, A the pixel width and E minus the pixel height.
type Affine struct {
	A, B, C, D, E, F float64
}

func (a Affine) Apply(col, row float64) (x, y float64) {
	return a.A*col + a.B*row + a.C, a.D*col + a.E*row + a.F
}

// PixelCenterOrigin is the EPSG:3857 center of the top-left pixel of a 256 px tile.
func PixelCenterOrigin(x, y int, zoom uint) (originX, originY float64, err error) {
	left, top, err := tiles.TileToMercator(x, y, zoom)
	if err != nil {
		return 0, 0, err
	}
	res := tiles.ResolutionAtZoom(zoom)
	return left + res/2, top - res/2, nil
}

// BuildAffine returns (res, 0, originX, 0, -res, originY) for a 256 px tile, with the origin at the
// center of the top-left pixel.
func BuildAffine(x, y int, zoom uint) (Affine, error) {
	originX, originY, err := PixelCenterOrigin(x, y, zoom)
	if err != nil {
		return Affine{}, err
	}
	res := tiles.ResolutionAtZoom(zoom)
	return Affine{A: res, B: 0, C: originX, D: 0, E: -res, F: originY}, nil
}

// BuildAffineForSize is BuildAffine for a tile image of width × height pixels, e.g. 512 px tiles
// of a high resolution service. The footprint of the tile stays the same.
func BuildAffineForSize(x, y int, zoom uint, width, height int) (Affine, error) {
	if width == tiles.TileSize && height == tiles.TileSize {
		return BuildAffine(x, y, zoom)
	}
	if width <= 0 || height <= 0 {
		return Affine{}, fmt.Errorf("invalid tile size %dx%d", width, height)
	}
	left, top, err := tiles.TileToMercator(x, y, zoom)
	if err != nil {
		return Affine{}, err
	}
	span := tiles.ResolutionAtZoom(zoom) * tiles.TileSize
	resX := span / float64(width)
	resY := span / float64(height)
	return Affine{A: resX, C: left + resX/2, E: -resY, F: top - resY/2}, nil
}
