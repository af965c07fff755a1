package main

import (
	"fmt"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pdok/tileoperator/logging"
)

const LOGLEVEL string = `logLevel`
const LOGCONSOLE string = `logConsole`
const VERBOSE string = `verbose`
const BBOX string = `bbox`
const FILE string = `file`
const ZOOM string = `zoom`
const ZOOMS string = `zooms`
const OUTPUT string = `output`
const GEOREFERENCE string = `georeference`
const METRICSFILE string = `metricsFile`
const CONFIG string = `config`
const TIMEOUT string = `timeout`
const FORMAT string = `format`
const CRS string = `crs`
const OVERWRITE string = `overwrite`
const TILE string = `tile`
const POINT string = `point`

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "tileoperator"
	app.Usage = "Download the XYZ tiles covering an area and georeference them"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    LOGLEVEL,
			Usage:   "Log level: trace, debug, info, warn or error",
			Value:   "info",
			EnvVars: []string{strcase.ToScreamingSnake(LOGLEVEL)},
		},
		&cli.BoolFlag{
			Name:    LOGCONSOLE,
			Usage:   "Human readable log output instead of JSON lines",
			EnvVars: []string{strcase.ToScreamingSnake(LOGCONSOLE)},
		},
		&cli.BoolFlag{
			Name:    VERBOSE,
			Usage:   "Log every tile, same as --logLevel debug",
			EnvVars: []string{strcase.ToScreamingSnake(VERBOSE)},
		},
	}

	app.Commands = []*cli.Command{
		downloadCommand(),
		tilesCommand(),
		boundsCommand(),
		georeferenceCommand(),
		gridCommand(),
		infoCommand(),
	}
	return app
}

func newLogger(c *cli.Context) zerolog.Logger {
	level := c.String(LOGLEVEL)
	if c.Bool(VERBOSE) {
		level = "debug"
	}
	return logging.Build(logging.Config{
		Level:   level,
		Console: c.Bool(LOGCONSOLE),
		Command: c.Command.Name,
	}, os.Stderr)
}

func areaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    BBOX,
			Usage:   `Area as "minLon,minLat,maxLon,maxLat" in EPSG:4326`,
			EnvVars: []string{strcase.ToScreamingSnake(BBOX)},
		},
		&cli.StringFlag{
			Name:    FILE,
			Aliases: []string{"f"},
			Usage:   "Vector file (.geojson, .json or .gpkg in EPSG:4326) whose extent is the area",
			EnvVars: []string{strcase.ToScreamingSnake(FILE)},
		},
	}
}

func zoomFlag() cli.Flag {
	return &cli.UintFlag{
		Name:     ZOOM,
		Aliases:  []string{"z"},
		Usage:    "Zoom level",
		Required: true,
		EnvVars:  []string{strcase.ToScreamingSnake(ZOOM)},
	}
}
