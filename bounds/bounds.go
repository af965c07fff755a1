// Package bounds derives the geographic bounding box (EPSG:4326) of a vector file, or parses one given literally.
package bounds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdok/tileoperator/tiles"
)

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrEmpty             = errors.New("no geometries")
)

// Reader extracts the union bounding box of all geometries in a file.
type Reader interface {
	Bounds(path string) (tiles.BoundingBox, error)
}

var readers = map[string]Reader{
	".geojson": GeoJSONReader{},
	".json":    GeoJSONReader{},
	".gpkg":    GeoPackageReader{},
}

// FromFile returns the union bounding box of all geometries in the vector file at path.
// The reader is chosen by file extension.
func FromFile(path string) (tiles.BoundingBox, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tiles.BoundingBox{}, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return tiles.BoundingBox{}, err
	}
	if info.IsDir() {
		return tiles.BoundingBox{}, fmt.Errorf("%s is a directory: %w", path, ErrUnsupportedFormat)
	}
	ext := strings.ToLower(filepath.Ext(path))
	reader, ok := readers[ext]
	if !ok {
		return tiles.BoundingBox{}, fmt.Errorf("%s: extension %q: %w", path, ext, ErrUnsupportedFormat)
	}
	return reader.Bounds(path)
}

// Parse reads a bounding box given as "minLon,minLat,maxLon,maxLat".
// An inverted box is returned as is, it resolves to an empty tile range.
func Parse(s string) (tiles.BoundingBox, error) {
	var bbox tiles.BoundingBox
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return bbox, fmt.Errorf(`bbox %q should be "minLon,minLat,maxLon,maxLat"`, s)
	}
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return bbox, fmt.Errorf("bbox %q: %w", s, err)
		}
		bbox[i] = f
	}
	return bbox, nil
}
