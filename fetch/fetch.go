// Package fetch downloads tiles from a templated tile server URL into a z/x/y directory layout.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/pdok/tileoperator/geomhelp"
	"github.com/pdok/tileoperator/mathhelp"
	"github.com/pdok/tileoperator/metrics"
	"github.com/pdok/tileoperator/processing"
	"github.com/pdok/tileoperator/tiles"
)

var ErrUnexpectedStatus = errors.New("unexpected status")

const (
	ReasonStatus  = "status"
	ReasonRequest = "request"
	ReasonWrite   = "write"

	userAgent = "tileoperator"
	// for log lines, tile URLs may carry long api keys
	maxURLLogLength = 120
)

// Error is the failure to fetch a single tile.
type Error struct {
	Tile   tiles.Tile
	URL    string
	reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tile %s from %s: %v", e.Tile, geomhelp.Truncate(e.URL, maxURLLogLength), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason classifies the failure: status, request or write.
func (e *Error) Reason() string {
	return e.reason
}

type Fetcher struct {
	client     *http.Client
	outputRoot string
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// New creates a Fetcher storing tiles below outputRoot. m may be nil.
func New(client *http.Client, outputRoot string, logger zerolog.Logger, m *metrics.Metrics) *Fetcher {
	if client == nil {
		client = NewClient(30 * time.Second)
	}
	return &Fetcher{
		client:     client,
		outputRoot: outputRoot,
		logger:     logger,
		metrics:    m,
	}
}

// TileURL fills in the {z}, {x} and {y} placeholders of template.
// {-y} is replaced by the row counted from the bottom, as TMS servers number them,
// {q} by the quadkey of the tile.
func TileURL(template string, tile tiles.Tile) string {
	replacements := []string{
		"{z}", strconv.FormatUint(uint64(tile.Z), 10),
		"{x}", strconv.Itoa(tile.X),
		"{-y}", strconv.Itoa(int(mathhelp.Pow2(tile.Z))-1-tile.Y),
		"{y}", strconv.Itoa(tile.Y),
	}
	if strings.Contains(template, "{q}") {
		if q, err := tile.Quadkey(); err == nil {
			replacements = append(replacements, "{q}", q)
		}
	}
	return strings.NewReplacer(replacements...).Replace(template)
}

// Ext is the file extension of the path of a tile URL, ignoring the query string. Empty when there is none.
func Ext(tileURL string) string {
	u, err := url.Parse(tileURL)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}

// Path is where a tile is stored: <outputRoot>/<z>/<x>/<y><ext>
func (f *Fetcher) Path(tile tiles.Tile, ext string) string {
	return filepath.Join(f.outputRoot, strconv.FormatUint(uint64(tile.Z), 10), strconv.Itoa(tile.X), strconv.Itoa(tile.Y)+ext)
}

// Fetch downloads one tile and writes it to its path, replacing an existing file.
// A response other than 200 OK writes nothing and returns an error wrapping ErrUnexpectedStatus.
// When the URL has no extension, it is derived from the content of the response.
func (f *Fetcher) Fetch(ctx context.Context, template string, tile tiles.Tile) (string, error) {
	tileURL := TileURL(template, tile)
	start := time.Now()

	data, err := f.get(ctx, tileURL)
	if err != nil {
		reason := ReasonRequest
		if errors.Is(err, ErrUnexpectedStatus) {
			reason = ReasonStatus
		} else if ctx.Err() != nil {
			reason = processing.ReasonCanceled
		}
		f.metrics.Failed(tile.Z, reason)
		return "", &Error{Tile: tile, URL: tileURL, reason: reason, Err: err}
	}

	ext := Ext(tileURL)
	if ext == "" {
		ext = mimetype.Detect(data).Extension()
	}
	p := f.Path(tile, ext)
	if err = writeFile(p, data); err != nil {
		f.metrics.Failed(tile.Z, ReasonWrite)
		return "", &Error{Tile: tile, URL: tileURL, reason: ReasonWrite, Err: err}
	}

	f.metrics.Fetched(tile.Z, len(data), time.Since(start).Seconds())
	return p, nil
}

func (f *Fetcher) get(ctx context.Context, tileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func writeFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// FetchFunc binds the fetcher to a URL template.
func (f *Fetcher) FetchFunc(template string) processing.FetchFunc {
	return func(ctx context.Context, tile tiles.Tile) (string, error) {
		return f.Fetch(ctx, template, tile)
	}
}

// FetchAll fetches the tiles of zoom level zoom in order, one at a time. A failing tile is logged and
// recorded in the report, the remaining tiles are still fetched. The error is only set when ctx
// ended the batch.
func (f *Fetcher) FetchAll(ctx context.Context, template string, zoom uint, ts []tiles.Tile, targets ...processing.Target) (*processing.Report, error) {
	f.metrics.Planned(zoom, len(ts))
	report, err := processing.ProcessTiles(ctx, processing.TileSlice(ts), f.FetchFunc(template), f.logger, targets...)
	f.logger.Info().
		Uint("zoom", zoom).
		Int("planned", len(ts)).
		Int("fetched", report.Fetched).
		Int("failed", report.Failed).
		Str("output", f.outputRoot).
		Msg("fetched tiles")
	return report, err
}
