// Package pipeline provides the render pipeline shared by the CLI and the
// server.
//
// One run fetches a payload, decodes every GRIB message the requested
// outputs refer to, renders each output into one image or four quadrant
// tiles, writes the PNG files and finally the placefile that references
// them.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Fetch: download (or read) and inflate the payload
//  2. Decode: turn each referenced GRIB message into samples
//  3. Render: rasterize, contour, colorize and tile every output
//  4. Publish: write images, the placefile and an archive record
//
// Decoded samples are shared read-only between outputs; each output owns
// its grid and images, so outputs render concurrently. A failing output
// records its error and does not stop its siblings.
//
// # Usage
//
//	runner := pipeline.NewRunner(fetcher, nil, nil, nil, logger)
//	opts := pipeline.Options{
//	    URL:       source.MRMSURL("MergedBaseReflectivity"),
//	    PlaceFile: "/srv/pf/refl.txt",
//	    Messages: []pipeline.MessageOptions{{
//	        ImageFiles: []string{"/srv/pf/refl.png"},
//	        Palette:    palette.Default(),
//	    }},
//	}
//	result, err := runner.Execute(ctx, opts)
//
// The in-memory render stage is available on its own as [RenderMessage].
package pipeline

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/AdenKoperczak/grib2pf/pkg/cache"
	"github.com/AdenKoperczak/grib2pf/pkg/composite"
	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
	"github.com/AdenKoperczak/grib2pf/pkg/palette"
	"github.com/AdenKoperczak/grib2pf/pkg/placefile"
	"github.com/AdenKoperczak/grib2pf/pkg/raster"
	"github.com/AdenKoperczak/grib2pf/pkg/source"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, config and server
// =============================================================================

const (
	// DefaultWidth is the default image width in pixels.
	DefaultWidth = 1920

	// DefaultHeight is the default image height in pixels.
	DefaultHeight = 1080

	// DefaultMode is the default reduction of samples sharing a pixel.
	DefaultMode = raster.Average

	// DefaultTitle is shown in Supercell-Wx when no title is given.
	DefaultTitle = "GRIB Placefile"

	// DefaultRefreshSeconds is how often clients reload the placefile.
	DefaultRefreshSeconds = placefile.DefaultRefreshSeconds

	// DefaultTimeout bounds the fetch stage.
	DefaultTimeout = source.DefaultTimeout

	// DefaultRenderTTL is how long rendered images stay cached.
	DefaultRenderTTL = 10 * time.Minute
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// MessageOptions describes one output rendered from one GRIB message.
type MessageOptions struct {
	// ImageFiles holds one file, or four tile files in top-left,
	// top-right, bottom-left, bottom-right order.
	ImageFiles []string

	// Palette colors the output. Required.
	Palette *palette.Table

	Width   int
	Height  int
	Title   string
	Mode    raster.Mode
	Minimum *float64
	Contour bool

	// Area fixes the output box instead of using the data extent.
	Area *geo.Area

	// Offset is the byte offset in the payload at which to look for the
	// message.
	Offset int
}

// Tiled reports whether the output is split into four tiles.
func (m *MessageOptions) Tiled() bool {
	return len(m.ImageFiles) == 4
}

func (m *MessageOptions) validateAndSetDefaults() error {
	if n := len(m.ImageFiles); n != 1 && n != 4 {
		return errors.New(errors.ErrCodeInvalidConfig, "image files must hold 1 or 4 entries, got %d", n)
	}
	for _, f := range m.ImageFiles {
		if f == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "image file name cannot be empty")
		}
	}
	if m.Palette == nil {
		return errors.New(errors.ErrCodeInvalidPalette, "palette is required")
	}
	if m.Width == 0 {
		m.Width = DefaultWidth
	}
	if m.Height == 0 {
		m.Height = DefaultHeight
	}
	if err := errors.ValidateDimensions(m.Width, m.Height); err != nil {
		return err
	}
	if m.Tiled() && (m.Width < 2 || m.Height < 2) {
		return errors.New(errors.ErrCodeInvalidInput, "tiled images need at least 2x2 pixels")
	}
	if m.Mode < 0 || int(m.Mode) >= len(raster.Modes) {
		return errors.New(errors.ErrCodeInvalidMode, "unknown mode %d", int(m.Mode))
	}
	if m.Offset < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "offset cannot be negative")
	}
	if m.Area != nil {
		a := m.Area
		if err := errors.ValidateBounds(a.LatT, a.LatB, a.LonL, a.LonR); err != nil {
			return err
		}
	}
	return nil
}

// renderKeyOpts returns the cache key options for this output.
func (m *MessageOptions) renderKeyOpts() cache.RenderKeyOpts {
	opts := cache.RenderKeyOpts{
		Offset:  m.Offset,
		Palette: paletteHash(m.Palette),
		Width:   m.Width,
		Height:  m.Height,
		Mode:    m.Mode.String(),
		Minimum: m.Minimum,
		Contour: m.Contour,
		Tiled:   m.Tiled(),
	}
	if m.Area != nil {
		opts.Area = &[4]float64{m.Area.LonL, m.Area.LonR, m.Area.LatT, m.Area.LatB}
	}
	return opts
}

func paletteHash(t *palette.Table) string {
	return cache.Hash(fmt.Appendf(nil, "%s|%g|%g", t.String(), t.Scale, t.Offset))
}

// Options contains all configuration for a pipeline run.
type Options struct {
	// Fetch options
	URL     string
	Gzipped bool
	Timeout time.Duration
	Refresh bool // bypass the payload and render caches

	// Render options
	Messages []MessageOptions
	Workers  int

	// Publish options
	PlaceFile      string // empty skips the placefile
	Title          string
	RefreshSeconds int
	// ImageURL is the base URL images are served from. Empty references
	// the image files by path.
	ImageURL string

	Logger *log.Logger

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.URL == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "url is required")
	}
	if len(o.Messages) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "at least one message is required")
	}
	for i := range o.Messages {
		if err := o.Messages[i].validateAndSetDefaults(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	o.setPublishDefaults()
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	o.validated = true
	return nil
}

func (o *Options) setPublishDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.RefreshSeconds <= 0 {
		o.RefreshSeconds = DefaultRefreshSeconds
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// CompositeOptions configures the typed reflectivity composite: a
// category product selects, per pixel, which palette colors the value
// product.
type CompositeOptions struct {
	TypeURL string
	ReflURL string
	Gzipped bool
	Timeout time.Duration
	Refresh bool

	ImageFiles  []string
	RainPalette *palette.Table
	SnowPalette *palette.Table
	HailPalette *palette.Table

	Width   int
	Height  int
	Mode    raster.Mode
	Minimum *float64
	Area    *geo.Area

	PlaceFile      string
	Title          string
	RefreshSeconds int
	ImageURL       string

	Logger *log.Logger

	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
func (o *CompositeOptions) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.TypeURL == "" || o.ReflURL == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "typeUrl and reflUrl are required")
	}
	if o.RainPalette == nil || o.SnowPalette == nil || o.HailPalette == nil {
		return errors.New(errors.ErrCodeInvalidPalette, "rain, snow and hail palettes are required")
	}
	m := o.message()
	if err := m.validateAndSetDefaults(); err != nil {
		return err
	}
	o.Width, o.Height = m.Width, m.Height

	p := Options{Timeout: o.Timeout, Title: o.Title, RefreshSeconds: o.RefreshSeconds, Logger: o.Logger}
	p.setPublishDefaults()
	o.Timeout, o.Title, o.RefreshSeconds, o.Logger = p.Timeout, p.Title, p.RefreshSeconds, p.Logger
	o.validated = true
	return nil
}

// message returns the render settings of the composite as a MessageOptions
// so both products share validation and file handling.
func (o *CompositeOptions) message() MessageOptions {
	return MessageOptions{
		ImageFiles: o.ImageFiles,
		Palette:    o.RainPalette,
		Width:      o.Width,
		Height:     o.Height,
		Title:      o.Title,
		Mode:       o.Mode,
		Minimum:    o.Minimum,
		Area:       o.Area,
	}
}

// palettes maps the palette families of composite.PrecipFlagBands.
func (o *CompositeOptions) palettes() map[string]*palette.Table {
	return map[string]*palette.Table{
		composite.Rain: o.RainPalette,
		composite.Snow: o.SnowPalette,
		composite.Hail: o.HailPalette,
	}
}

// renderKeyOpts returns the cache key options for the composite. The
// reflectivity payload hash keys the render; categoryHash is the hash of
// the precipitation type payload.
func (o *CompositeOptions) renderKeyOpts(categoryHash string) cache.RenderKeyOpts {
	m := o.message()
	opts := m.renderKeyOpts()
	opts.Palette = cache.Hash([]byte(paletteHash(o.RainPalette) + paletteHash(o.SnowPalette) + paletteHash(o.HailPalette)))
	opts.Category = categoryHash
	return opts
}

// =============================================================================
// Results
// =============================================================================

// Output is the result of rendering one MessageOptions.
type Output struct {
	Files  []string
	Areas  []geo.Area // one per file
	Images [][]byte   // encoded PNG, one per file
	Stats  raster.Stats

	// FromCache is set when the images came from the render cache.
	FromCache bool

	// Err is set when the output failed. Files, Areas and Images are then
	// empty.
	Err error
}

// Result contains the outputs of a pipeline run.
type Result struct {
	RunID   uuid.UUID
	Outputs []*Output
	Stats   Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	PayloadBytes int
	PayloadCache bool
	FetchTime    time.Duration
	DecodeTime   time.Duration
	RenderTime   time.Duration
	Failed       int
}

// Succeeded returns the outputs that rendered without error.
func (r *Result) Succeeded() []*Output {
	var out []*Output
	for _, o := range r.Outputs {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// imageRef returns how the placefile refers to file.
func imageRef(baseURL, file string) string {
	if baseURL == "" {
		return file
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + path.Base(filepath.ToSlash(file))
}
