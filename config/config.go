// Package config describes a download job, as given on the command line or in a YAML job file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pdok/tileoperator/bounds"
	"github.com/pdok/tileoperator/tiles"
	"github.com/pdok/tileoperator/tms20"
)

const webMercatorSRID = 3857

// Job is a single download: the tiles covering an area at one zoom level, fetched from a tile server.
type Job struct {
	// URL template with {z}, {x} and {y} (or {-y}) placeholders, or a {q} quadkey
	TileURL string `yaml:"tileUrl" validate:"required,url"`
	// Vector file (.geojson, .json, .gpkg) whose extent is the area to download
	File string `yaml:"file" validate:"required_without=BBox,excluded_with=BBox"`
	// Literal area "minLon,minLat,maxLon,maxLat", instead of File
	BBox string `yaml:"bbox" validate:"required_without=File"`
	Zoom uint   `yaml:"zoom"`
	// Root directory of the z/x/y layout
	Output       string `yaml:"output" default:"./output" validate:"required"`
	Georeference bool   `yaml:"georeference"`
	// Prometheus textfile to write when the job is done
	MetricsFile string        `yaml:"metricsFile"`
	Timeout     time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	// Tile matrix set the zoom level must be part of: an embedded id or a JSON file, in EPSG:3857
	TileMatrixSet string `yaml:"tileMatrixSet" default:"WebMercatorQuad" validate:"required"`
}

// NewJob returns a Job with its defaults set.
func NewJob() Job {
	var job Job
	if err := defaults.Set(&job); err != nil {
		panic(err)
	}
	return job
}

// Load reads a job from a YAML file. Missing fields get their defaults.
func Load(path string) (Job, error) {
	job := NewJob()
	data, err := os.ReadFile(path)
	if err != nil {
		return job, err
	}
	if err = yaml.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("%s: %w", path, err)
	}
	return job, nil
}

// Validate checks the job is complete and consistent before any tile is fetched.
func (j Job) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(j); err != nil {
		return err
	}
	if err := checkPlaceholders(j.TileURL); err != nil {
		return err
	}

	tms, err := tms20.Load(j.TileMatrixSet)
	if err != nil {
		return err
	}
	srid, err := tms.SRID()
	if err != nil {
		return err
	}
	if srid != webMercatorSRID {
		return fmt.Errorf("tile matrix set %s is in EPSG:%d, only EPSG:%d tiles are supported", tms.ID, srid, webMercatorSRID)
	}
	if _, ok := tms.TileMatrix(j.Zoom); !ok {
		zooms := tms.Zooms()
		return fmt.Errorf("zoom level %d is not in %s (%d-%d): %w",
			j.Zoom, j.TileMatrixSet, zooms[0], zooms[len(zooms)-1], tiles.ErrDomain)
	}

	if j.BBox != "" {
		if _, err = bounds.Parse(j.BBox); err != nil {
			return err
		}
	}
	return nil
}

// checkPlaceholders requires {z}, {x} and {y} (or {-y}), or a {q} quadkey
func checkPlaceholders(tileURL string) error {
	if strings.Contains(tileURL, "{q}") {
		return nil
	}
	for _, placeholder := range []string{"{z}", "{x}"} {
		if !strings.Contains(tileURL, placeholder) {
			return fmt.Errorf("tile url %q misses %s", tileURL, placeholder)
		}
	}
	if !strings.Contains(tileURL, "{y}") && !strings.Contains(tileURL, "{-y}") {
		return fmt.Errorf("tile url %q misses {y} or {-y}", tileURL)
	}
	return nil
}

// Bounds resolves the area of the job, from the literal bbox or the extent of the file.
func (j Job) Bounds() (tiles.BoundingBox, error) {
	if j.BBox != "" {
		return bounds.Parse(j.BBox)
	}
	return bounds.FromFile(j.File)
}
