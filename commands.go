package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-spatial/geom"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"

	"github.com/pdok/tileoperator/bounds"
	"github.com/pdok/tileoperator/config"
	"github.com/pdok/tileoperator/fetch"
	"github.com/pdok/tileoperator/geomhelp"
	"github.com/pdok/tileoperator/georef"
	"github.com/pdok/tileoperator/grid"
	"github.com/pdok/tileoperator/mapslicehelp"
	"github.com/pdok/tileoperator/metrics"
	"github.com/pdok/tileoperator/operate"
	"github.com/pdok/tileoperator/processing"
	"github.com/pdok/tileoperator/tiles"
	"github.com/pdok/tileoperator/tms20"
)

//nolint:funlen
func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download the tiles covering the extent of a vector file at a zoom level",
		ArgsUsage: "<tile_url> <file_path> <zoom_level>, or <tile_url> <zoom_level> with --bbox, or nothing with --config",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    BBOX,
				Usage:   `Area as "minLon,minLat,maxLon,maxLat" in EPSG:4326, instead of <file_path>`,
				EnvVars: []string{strcase.ToScreamingSnake(BBOX)},
			},
			&cli.StringFlag{
				Name:    OUTPUT,
				Aliases: []string{"o"},
				Usage:   "Root directory, tiles are stored as <output>/<z>/<x>/<y>.<ext>",
				Value:   "./output",
				EnvVars: []string{strcase.ToScreamingSnake(OUTPUT)},
			},
			&cli.BoolFlag{
				Name:    GEOREFERENCE,
				Aliases: []string{"g"},
				Usage:   "Write a GeoTIFF (EPSG:3857) and world file next to every downloaded tile",
				EnvVars: []string{strcase.ToScreamingSnake(GEOREFERENCE)},
			},
			&cli.StringFlag{
				Name:    METRICSFILE,
				Usage:   "Write Prometheus metrics of the job to this textfile when done",
				EnvVars: []string{strcase.ToScreamingSnake(METRICSFILE)},
			},
			&cli.StringFlag{
				Name:    CONFIG,
				Aliases: []string{"c"},
				Usage:   "YAML job file, replaces the arguments and the other flags",
				EnvVars: []string{strcase.ToScreamingSnake(CONFIG)},
			},
			&cli.DurationFlag{
				Name:    TIMEOUT,
				Usage:   "Timeout of a single tile request",
				Value:   config.NewJob().Timeout,
				EnvVars: []string{strcase.ToScreamingSnake(TIMEOUT)},
			},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			job, err := jobFromContext(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			if err = job.Validate(); err != nil {
				return cli.Exit(err, 1)
			}
			bbox, err := job.Bounds()
			if err != nil {
				return cli.Exit(fmt.Errorf("error reading the area: %w", err), 1)
			}
			op := operate.New(operate.Config{BBox: bbox, Zoom: job.Zoom})
			ts, err := op.Tiles()
			if err != nil {
				return cli.Exit(err, 1)
			}
			logger.Info().
				Stringer("bbox", bbox).
				Uint("zoom", job.Zoom).
				Int("tiles", len(ts)).
				Str("url", geomhelp.Truncate(job.TileURL, 120)).
				Msg("start downloading")

			m := metrics.New()
			fetcher := fetch.New(fetch.NewClient(job.Timeout), job.Output, logger, m)
			var targets []processing.Target
			if job.Georeference {
				targets = append(targets, georef.NewTarget(logger, m))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			report, err := fetcher.FetchAll(ctx, job.TileURL, job.Zoom, ts, targets...)
			for reason, n := range report.FailuresByReason() {
				logger.Warn().Str("reason", reason).Int("tiles", n).Msg("tiles failed")
			}
			if job.Georeference {
				logger.Info().Int("georeferenced", report.Written).Int("failed", report.TargetFailures.Len()).Msg("georeferenced tiles")
			}
			if job.MetricsFile != "" {
				if mErr := m.WriteTextfile(job.MetricsFile); mErr != nil {
					logger.Error().Err(mErr).Str("path", job.MetricsFile).Msg("could not write metrics")
				}
			}
			if err != nil {
				return cli.Exit(fmt.Errorf("download stopped: %w", err), 1)
			}
			return nil
		},
	}
}

// jobFromContext builds the job from a job file, or from the arguments and flags
func jobFromContext(c *cli.Context) (config.Job, error) {
	if c.IsSet(CONFIG) {
		if c.NArg() > 0 {
			return config.Job{}, errors.New("no arguments expected with --config")
		}
		return config.Load(c.String(CONFIG))
	}

	job := config.NewJob()
	args := c.Args().Slice()
	var zoomArg string
	switch {
	case c.IsSet(BBOX) && len(args) == 2:
		job.TileURL, zoomArg = args[0], args[1]
		job.BBox = c.String(BBOX)
	case !c.IsSet(BBOX) && len(args) == 3:
		job.TileURL, job.File, zoomArg = args[0], args[1], args[2]
	default:
		return job, fmt.Errorf("expected %s", c.Command.ArgsUsage)
	}
	zoom, err := strconv.ParseUint(zoomArg, 10, 0)
	if err != nil {
		return job, fmt.Errorf("zoom level %q: %w", zoomArg, err)
	}
	job.Zoom = uint(zoom)
	job.Output = c.String(OUTPUT)
	job.Georeference = c.Bool(GEOREFERENCE)
	job.MetricsFile = c.String(METRICSFILE)
	job.Timeout = c.Duration(TIMEOUT)
	return job, nil
}

// areaFromContext reads the area from --bbox or --file
func areaFromContext(c *cli.Context) (tiles.BoundingBox, error) {
	switch {
	case c.IsSet(BBOX) && c.IsSet(FILE):
		return tiles.BoundingBox{}, errors.New("use either --bbox or --file, not both")
	case c.IsSet(BBOX):
		return bounds.Parse(c.String(BBOX))
	case c.IsSet(FILE):
		return bounds.FromFile(c.String(FILE))
	default:
		return tiles.BoundingBox{}, errors.New("an area is required, use --bbox or --file")
	}
}

type tileJSON struct {
	Z       uint   `json:"z"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Quadkey string `json:"quadkey,omitempty"`
}

func tilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "tiles",
		Usage: "List the tiles covering an area at a zoom level, in download order",
		Flags: append(areaFlags(),
			zoomFlag(),
			&cli.StringFlag{
				Name:    FORMAT,
				Usage:   "Output format: text (z/x/y per line) or json",
				Value:   "text",
				EnvVars: []string{strcase.ToScreamingSnake(FORMAT)},
			},
		),
		Action: func(c *cli.Context) error {
			bbox, err := areaFromContext(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			ts, err := operate.New(operate.Config{BBox: bbox, Zoom: c.Uint(ZOOM)}).Tiles()
			if err != nil {
				return cli.Exit(err, 1)
			}
			switch c.String(FORMAT) {
			case "json":
				out := make([]tileJSON, 0, len(ts))
				for _, t := range ts {
					x, y, z := t.ZXY()
					q, _ := t.Quadkey()
					out = append(out, tileJSON{Z: z, X: x, Y: y, Quadkey: q})
				}
				enc := json.NewEncoder(c.App.Writer)
				return enc.Encode(out)
			case "text":
				for _, t := range ts {
					fmt.Fprintln(c.App.Writer, t)
				}
				return nil
			default:
				return cli.Exit(fmt.Sprintf("unknown format %q", c.String(FORMAT)), 1)
			}
		},
	}
}

func boundsCommand() *cli.Command {
	return &cli.Command{
		Name:      "bounds",
		Usage:     "Print the extent of a vector file, and its tile range when a zoom level is given",
		ArgsUsage: "<file_path>",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:    ZOOM,
				Aliases: []string{"z"},
				Usage:   "Also print the tile range at this zoom level",
				EnvVars: []string{strcase.ToScreamingSnake(ZOOM)},
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected <file_path>", 1)
			}
			bbox, err := bounds.FromFile(c.Args().First())
			if err != nil {
				return cli.Exit(err, 1)
			}
			fmt.Fprintf(c.App.Writer, "bbox: %s\n", bbox)
			fmt.Fprintf(c.App.Writer, "wkt: %s\n", geomhelp.WktMustEncode(geomhelp.BoundingBoxPolygon(bbox), 0))
			if c.IsSet(ZOOM) {
				r, err := operate.New(operate.Config{BBox: bbox, Zoom: c.Uint(ZOOM)}).TileRange()
				if err != nil {
					return cli.Exit(err, 1)
				}
				fmt.Fprintf(c.App.Writer, "tiles: %s (%d)\n", r, r.Count())
			}
			return nil
		},
	}
}

func georeferenceCommand() *cli.Command {
	return &cli.Command{
		Name:      "georeference",
		Usage:     "Write GeoTIFFs for downloaded tiles laid out as <z>/<x>/<y>.<ext>",
		ArgsUsage: "<tile_file>...",
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			if c.NArg() == 0 {
				return cli.Exit("expected at least one tile file", 1)
			}
			files := mapslicehelp.Unique(c.Args().Slice())
			failed := 0
			for _, p := range files {
				tile, err := georef.TileFromPath(p)
				if err == nil {
					var tifPath string
					tifPath, err = georef.Georeference(p, tile)
					if err == nil {
						logger.Debug().Stringer("tile", tile).Str("path", tifPath).Msg("georeferenced tile")
						continue
					}
				}
				failed++
				logger.Error().Err(err).Str("path", p).Msg("could not georeference tile")
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d tiles could not be georeferenced", failed, len(files)), 1)
			}
			return nil
		},
	}
}

//nolint:funlen
func gridCommand() *cli.Command {
	return &cli.Command{
		Name:      "grid",
		Usage:     "Write the footprints of the tiles covering an area to a GeoJSON or GeoPackage file",
		ArgsUsage: "<target.geojson|target.gpkg>",
		Flags: append(areaFlags(),
			&cli.UintFlag{
				Name:    ZOOM,
				Aliases: []string{"z"},
				Usage:   "Zoom level",
				EnvVars: []string{strcase.ToScreamingSnake(ZOOM)},
			},
			&cli.StringFlag{
				Name:    ZOOMS,
				Usage:   `Zoom levels as a JSON array of integers, one target per zoom level suffixed with it. E.g.: [16,17,18]`,
				EnvVars: []string{strcase.ToScreamingSnake(ZOOMS)},
			},
			&cli.IntFlag{
				Name:    CRS,
				Usage:   "EPSG code of the footprints: 3857 or 4326",
				Value:   grid.EPSG3857,
				EnvVars: []string{strcase.ToScreamingSnake(CRS)},
			},
			&cli.BoolFlag{
				Name:    OVERWRITE,
				Usage:   "Overwrite a target if it exists",
				EnvVars: []string{strcase.ToScreamingSnake(OVERWRITE)},
			},
		),
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			if c.NArg() != 1 {
				return cli.Exit("expected a target file", 1)
			}
			bbox, err := areaFromContext(c)
			if err != nil {
				return cli.Exit(err, 1)
			}

			var zooms []uint
			switch {
			case c.IsSet(ZOOMS):
				if err = json.Unmarshal([]byte(c.String(ZOOMS)), &zooms); err != nil {
					return cli.Exit(fmt.Errorf("--zooms: %w", err), 1)
				}
			case c.IsSet(ZOOM):
				zooms = []uint{c.Uint(ZOOM)}
			default:
				return cli.Exit("a zoom level is required, use --zoom or --zooms", 1)
			}

			targetPath := c.Args().First()
			targetPathFmt := injectSuffixIntoPath(targetPath)
			for _, zoom := range zooms {
				p := targetPath
				if len(zooms) > 1 {
					p = fmt.Sprintf(targetPathFmt, zoom)
				}
				if _, err = os.Stat(p); err == nil && !c.Bool(OVERWRITE) {
					return cli.Exit(fmt.Sprintf("%s exists, use --%s", p, OVERWRITE), 1)
				}
				ts, err := operate.New(operate.Config{BBox: bbox, Zoom: zoom}).Tiles()
				if err != nil {
					return cli.Exit(err, 1)
				}
				cells, err := grid.Footprints(ts, c.Int(CRS))
				if err != nil {
					return cli.Exit(err, 1)
				}
				if err = grid.Write(p, cells, c.Int(CRS)); err != nil {
					return cli.Exit(err, 1)
				}
				logger.Info().Uint("zoom", zoom).Int("tiles", len(cells)).Str("path", p).Msg("wrote tile grid")
			}
			return nil
		},
	}
}

// tileInfo describes a tile in the native CRS of the tile matrix set
type tileInfo struct {
	Tile        string     `json:"tile"`
	Quadkey     string     `json:"quadkey,omitempty"`
	CRS         string     `json:"crs"`
	TopLeft     [2]float64 `json:"topLeft"`
	BottomRight [2]float64 `json:"bottomRight"`
}

//nolint:funlen
func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Print the WebMercatorQuad tile matrix of a zoom level, the supported zoom levels, or the footprint of a tile",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:    ZOOM,
				Aliases: []string{"z"},
				Usage:   "Zoom level",
				EnvVars: []string{strcase.ToScreamingSnake(ZOOM)},
			},
			&cli.StringFlag{
				Name:    TILE,
				Aliases: []string{"t"},
				Usage:   "Describe this tile, given as z/x/y",
				EnvVars: []string{strcase.ToScreamingSnake(TILE)},
			},
			&cli.StringFlag{
				Name:    POINT,
				Usage:   `Describe the tile at --zoom containing this point, given as "x,y" in EPSG:3857`,
				EnvVars: []string{strcase.ToScreamingSnake(POINT)},
			},
		},
		Action: func(c *cli.Context) error {
			tms, err := tms20.Load(tms20.WebMercatorQuad)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")

			switch {
			case c.IsSet(TILE) && c.IsSet(POINT):
				return cli.Exit(fmt.Sprintf("use either --%s or --%s, not both", TILE, POINT), 1)
			case c.IsSet(TILE):
				tile, err := tiles.ParseTile(c.String(TILE))
				if err != nil {
					return cli.Exit(err, 1)
				}
				info, err := describeTile(&tms, tile)
				if err != nil {
					return cli.Exit(err, 1)
				}
				return enc.Encode(info)
			case c.IsSet(POINT):
				if !c.IsSet(ZOOM) {
					return cli.Exit(fmt.Sprintf("--%s needs --%s", POINT, ZOOM), 1)
				}
				pt, err := parsePoint(c.String(POINT))
				if err != nil {
					return cli.Exit(err, 1)
				}
				st, ok := tms.FromNative(c.Uint(ZOOM), pt)
				if !ok {
					return cli.Exit(fmt.Sprintf("point %v is outside the tile matrix of zoom level %d", pt.XY(), c.Uint(ZOOM)), 1)
				}
				info, err := describeTile(&tms, tiles.NewTile(st.Z, int(st.X), int(st.Y)))
				if err != nil {
					return cli.Exit(err, 1)
				}
				return enc.Encode(info)
			case !c.IsSet(ZOOM):
				return enc.Encode(map[string]any{
					"id":    tms.ID,
					"crs":   tms.CRS.URI,
					"zooms": tms.Zooms(),
				})
			}

			tm, ok := tms.TileMatrix(c.Uint(ZOOM))
			if !ok {
				return cli.Exit(fmt.Sprintf("zoom level %d is not in %s", c.Uint(ZOOM), tms.ID), 1)
			}
			return enc.Encode(tm)
		},
	}
}

func describeTile(tms *tms20.TileMatrixSet, tile tiles.Tile) (tileInfo, error) {
	st, ok := tile.Slippy()
	if !ok {
		return tileInfo{}, fmt.Errorf("tile %s: %w", tile, tiles.ErrDomain)
	}
	ext, ok := tms.Footprint(st)
	if !ok {
		return tileInfo{}, fmt.Errorf("tile %s is not in %s", tile, tms.ID)
	}
	srid, err := tms.SRID()
	if err != nil {
		return tileInfo{}, err
	}
	q, _ := tile.Quadkey()
	return tileInfo{
		Tile:        tile.String(),
		Quadkey:     q,
		CRS:         fmt.Sprintf("EPSG:%d", srid),
		TopLeft:     [2]float64{ext[0], ext[3]},
		BottomRight: [2]float64{ext[2], ext[1]},
	}, nil
}

// parsePoint reads "x,y"
func parsePoint(s string) (geom.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geom.Point{}, fmt.Errorf(`point %q should be "x,y"`, s)
	}
	var pt geom.Point
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geom.Point{}, fmt.Errorf("point %q: %w", s, err)
		}
		pt[i] = f
	}
	return pt, nil
}

func injectSuffixIntoPath(p string) string {
	dir, file := path.Split(p)
	ext := path.Ext(file)
	name := file[:len(file)-len(ext)]
	return path.Join(dir, name+"_%v"+ext)
}
