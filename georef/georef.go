// Package georef turns downloaded tile images into GeoTIFFs placed in Web Mercator (EPSG:3857).
package georef

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register the decoder
	_ "image/jpeg" // register the decoder
	_ "image/png"  // register the decoder
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/tiff" // register the decoder
	_ "golang.org/x/image/webp" // register the decoder

	"github.com/pdok/tileoperator/metrics"
	"github.com/pdok/tileoperator/tiles"
)

var ErrUnsupportedImage = errors.New("unsupported image")

// OutputPaths returns where the GeoTIFF and world file for the tile image at path are written:
// the same basename with .tif and .tfw. A tile that already is a TIFF gets .geo.tif, .geo.tfw.
func OutputPaths(path string) (tif, tfw string) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	switch strings.ToLower(ext) {
	case ".tif", ".tiff":
		base += ".geo"
	}
	return base + ".tif", base + ".tfw"
}

// TileFromPath reads the tile from a path laid out as <root>/<z>/<x>/<y>.<ext>.
func TileFromPath(path string) (tiles.Tile, error) {
	yPart := filepath.Base(path)
	if i := strings.IndexByte(yPart, '.'); i >= 0 {
		yPart = yPart[:i]
	}
	xDir := filepath.Dir(path)
	zDir := filepath.Dir(xDir)

	y, err := strconv.Atoi(yPart)
	if err != nil {
		return tiles.Tile{}, fmt.Errorf("%s: no tile row in file name: %w", path, err)
	}
	x, err := strconv.Atoi(filepath.Base(xDir))
	if err != nil {
		return tiles.Tile{}, fmt.Errorf("%s: no tile column in directory: %w", path, err)
	}
	z, err := strconv.ParseUint(filepath.Base(zDir), 10, 0)
	if err != nil {
		return tiles.Tile{}, fmt.Errorf("%s: no zoom level in directory: %w", path, err)
	}
	t := tiles.Tile{Z: uint(z), X: x, Y: y}
	if !t.Valid() {
		return tiles.Tile{}, fmt.Errorf("%s: tile %s: %w", path, t, tiles.ErrDomain)
	}
	return t, nil
}

// Georeference writes a GeoTIFF (and world file) next to the tile image at path, carrying the same
// pixels and the affine transform of the tile. Returns the path of the GeoTIFF.
func Georeference(path string, tile tiles.Tile) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", fmt.Errorf("%s: %w", path, ErrUnsupportedImage)
		}
		return "", fmt.Errorf("%s: error decoding %v: %w", path, format, err)
	}

	size := img.Bounds().Size()
	a, err := BuildAffineForSize(tile.X, tile.Y, tile.Z, size.X, size.Y)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	tifPath, tfwPath := OutputPaths(path)
	out, err := os.Create(tifPath)
	if err != nil {
		return "", err
	}
	if err = writeGeoTIFF(out, img, bandCount(img), a); err != nil {
		out.Close()
		return "", fmt.Errorf("error writing GeoTIFF %s: %w", tifPath, err)
	}
	if err = out.Close(); err != nil {
		return "", err
	}
	if err = writeWorldFile(tfwPath, a); err != nil {
		return "", err
	}
	return tifPath, nil
}

// Target georeferences every fetched tile.
type Target struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewTarget(logger zerolog.Logger, m *metrics.Metrics) *Target {
	return &Target{logger: logger, metrics: m}
}

func (t *Target) Name() string {
	return "georeference"
}

func (t *Target) WriteTile(tile tiles.Tile, path string) error {
	tifPath, err := Georeference(path, tile)
	t.metrics.Georeferenced(err)
	if err != nil {
		return err
	}
	t.logger.Debug().Stringer("tile", tile).Str("path", tifPath).Msg("georeferenced tile")
	return nil
}
