package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/pdok/tileoperator/tiles"
)

const sapporoBBox = "141.347,43.066,141.354,43.070"

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"tileoperator", "--" + LOGLEVEL, "error"}, args...))
	return out.String(), err
}

func TestTilesCommand(t *testing.T) {
	out, err := runApp(t, "tiles", "--bbox", sapporoBBox, "--zoom", "18")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 30)
	assert.Equal(t, "18/233997/96254", lines[0])
	assert.Equal(t, "18/233997/96255", lines[1])
	assert.Equal(t, "18/234002/96258", lines[29])
}

func TestTilesCommand_JSON(t *testing.T) {
	out, err := runApp(t, "tiles", "--file", filepath.Join("bounds", "testdata", "sapporo.geojson"), "--zoom", "18", "--format", "json")
	require.NoError(t, err)
	var ts []tileJSON
	require.NoError(t, json.Unmarshal([]byte(out), &ts))
	require.Len(t, ts, 30)
	assert.Equal(t, uint(18), ts[0].Z)
	assert.Equal(t, 233997, ts[0].X)
	assert.Equal(t, 96254, ts[0].Y)
	require.Len(t, ts[0].Quadkey, 18)
	tile, err := tiles.TileFromQuadkey(ts[0].Quadkey)
	require.NoError(t, err)
	assert.Equal(t, tiles.NewTile(18, 233997, 96254), tile)
}

func TestTilesCommand_NeedsArea(t *testing.T) {
	_, err := runApp(t, "tiles", "--zoom", "18")
	require.Error(t, err)
	_, err = runApp(t, "tiles", "--zoom", "18", "--bbox", sapporoBBox, "--file", "area.geojson")
	require.Error(t, err)
}

func TestBoundsCommand(t *testing.T) {
	out, err := runApp(t, "bounds", "--zoom", "18", filepath.Join("bounds", "testdata", "sapporo.geojson"))
	require.NoError(t, err)
	assert.Contains(t, out, "bbox: 141.347,43.066,141.354,43.07\n")
	assert.Contains(t, out, "wkt: POLYGON")
	assert.Contains(t, out, "(30)")
}

func TestInfoCommand(t *testing.T) {
	out, err := runApp(t, "info", "--zoom", "18")
	require.NoError(t, err)
	var tm map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &tm))
	assert.Equal(t, "18", tm["id"])
	assert.Equal(t, 262144.0, tm["matrixWidth"])

	_, err = runApp(t, "info", "--zoom", "25")
	require.Error(t, err)
}

func TestInfoCommand_Tile(t *testing.T) {
	want, err := tiles.TileToMercatorBoundingBox(233997, 96254, 18)
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "tile", args: []string{"--tile", "18/233997/96254"}, want: "18/233997/96254"},
		{name: "point", args: []string{"--zoom", "18", "--point", "15734600,5322700"}, want: "18/233997/96254"},
		{name: "point at origin", args: []string{"--zoom", "1", "--point", "0,0"}, want: "1/1/1"},
		{name: "tile outside matrix", args: []string{"--tile", "1/2/0"}, wantErr: true},
		{name: "malformed tile", args: []string{"--tile", "18/233997"}, wantErr: true},
		{name: "point without zoom", args: []string{"--point", "0,0"}, wantErr: true},
		{name: "malformed point", args: []string{"--zoom", "3", "--point", "0;0"}, wantErr: true},
		{name: "point outside world", args: []string{"--zoom", "3", "--point", "30000000,0"}, wantErr: true},
		{name: "tile and point", args: []string{"--zoom", "3", "--tile", "3/0/0", "--point", "0,0"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runApp(t, append([]string{"info"}, tt.args...)...)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			var info tileInfo
			require.NoError(t, json.Unmarshal([]byte(out), &info))
			assert.Equal(t, tt.want, info.Tile)
			assert.Equal(t, "EPSG:3857", info.CRS)
			if tt.want == "18/233997/96254" {
				assert.InDelta(t, want.MinX(), info.TopLeft[0], 0.01)
				assert.InDelta(t, want.MaxY(), info.TopLeft[1], 0.01)
				assert.InDelta(t, want.MaxX(), info.BottomRight[0], 0.01)
				assert.InDelta(t, want.MinY(), info.BottomRight[1], 0.01)
				assert.Len(t, info.Quadkey, 18)
			}
		})
	}
}

func tileServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/96256.png") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadCommand(t *testing.T) {
	srv := tileServer(t)
	output := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "tiles.prom")

	_, err := runApp(t, "download",
		"--output", output, "--georeference", "--metricsFile", metricsFile,
		srv.URL+"/{z}/{x}/{y}.png", filepath.Join("bounds", "testdata", "sapporo.geojson"), "18")
	require.NoError(t, err)

	// 6 columns, the row 96256 fails in every column
	pngs, err := filepath.Glob(filepath.Join(output, "18", "*", "*.png"))
	require.NoError(t, err)
	assert.Len(t, pngs, 24)
	tifs, err := filepath.Glob(filepath.Join(output, "18", "*", "*.tif"))
	require.NoError(t, err)
	assert.Len(t, tifs, 24)
	assert.FileExists(t, filepath.Join(output, "18", "233997", "96254.tfw"))
	assert.NoFileExists(t, filepath.Join(output, "18", "233997", "96256.png"))

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `tileoperator_tiles_fetched_total{zoom="18"} 24`)
	assert.Contains(t, string(metrics), `tileoperator_tiles_failed_total{reason="status",zoom="18"} 6`)
}

func TestDownloadCommand_BBoxAndConfig(t *testing.T) {
	srv := tileServer(t)
	output := t.TempDir()

	_, err := runApp(t, "download", "--bbox", sapporoBBox, "--output", output, srv.URL+"/{z}/{x}/{y}.png", "18")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(output, "18", "234002", "96258.png"))

	job := filepath.Join(t.TempDir(), "job.yaml")
	configOutput := t.TempDir()
	require.NoError(t, os.WriteFile(job, []byte(strings.Join([]string{
		"tileUrl: " + srv.URL + "/{z}/{x}/{y}.png",
		"bbox: " + sapporoBBox,
		"zoom: 18",
		"output: " + configOutput,
	}, "\n")), 0o644))
	_, err = runApp(t, "download", "--config", job)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(configOutput, "18", "233997", "96254.png"))
}

func TestDownloadCommand_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing arguments", args: []string{"download", "https://tile.example.com/{z}/{x}/{y}.png"}},
		{name: "zoom not a number", args: []string{"download", "--bbox", sapporoBBox, "https://tile.example.com/{z}/{x}/{y}.png", "high"}},
		{name: "zoom out of range", args: []string{"download", "--bbox", sapporoBBox, "https://tile.example.com/{z}/{x}/{y}.png", "31"}},
		{name: "missing file", args: []string{"download", "https://tile.example.com/{z}/{x}/{y}.png", "nope.geojson", "18"}},
		{name: "pole", args: []string{"download", "--bbox", "0,0,1,90", "https://tile.example.com/{z}/{x}/{y}.png", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := t.TempDir()
			_, err := runApp(t, append(tt.args[:1:1], append([]string{"--output", output}, tt.args[1:]...)...)...)
			require.Error(t, err)
			entries, err := os.ReadDir(output)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestGridCommand(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "grid.geojson")

	_, err := runApp(t, "grid", "--bbox", sapporoBBox, "--zooms", "[17,18]", target)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "grid_17.geojson"))
	assert.FileExists(t, filepath.Join(dir, "grid_18.geojson"))

	_, err = runApp(t, "grid", "--bbox", sapporoBBox, "--zoom", "18", "--crs", "4326", target)
	require.NoError(t, err)
	_, err = runApp(t, "grid", "--bbox", sapporoBBox, "--zoom", "18", target)
	require.Error(t, err, "exists without --overwrite")
	_, err = runApp(t, "grid", "--bbox", sapporoBBox, "--zoom", "18", "--overwrite", target)
	require.NoError(t, err)
}

func TestGeoreferenceCommand(t *testing.T) {
	srv := tileServer(t)
	output := t.TempDir()
	_, err := runApp(t, "download", "--bbox", "141.347,43.070,141.347,43.070", "--output", output, srv.URL+"/{z}/{x}/{y}.png", "18")
	require.NoError(t, err)
	tile := filepath.Join(output, "18", "233997", "96254.png")
	require.FileExists(t, tile)

	_, err = runApp(t, "georeference", tile, tile)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(output, "18", "233997", "96254.tif"))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "bad file", args: []string{filepath.Join(output, "not-a-tile.png")}, want: "1 of 1 tiles"},
		{name: "duplicated bad file", args: []string{filepath.Join(output, "not-a-tile.png"), filepath.Join(output, "not-a-tile.png")}, want: "1 of 1 tiles"},
		{name: "bad and good file", args: []string{tile, filepath.Join(output, "not-a-tile.png"), tile}, want: "1 of 2 tiles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, append([]string{"georeference"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInjectSuffixIntoPath(t *testing.T) {
	assert.Equal(t, "out/grid_%v.gpkg", injectSuffixIntoPath("out/grid.gpkg"))
	assert.Equal(t, "grid_%v", injectSuffixIntoPath("grid"))
}
