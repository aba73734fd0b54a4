package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AdenKoperczak/grib2pf/pkg/config"
	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/pipeline"
	"github.com/AdenKoperczak/grib2pf/pkg/raster"
	"github.com/AdenKoperczak/grib2pf/pkg/server"
)

// =============================================================================
// Shared Flags
// =============================================================================

// runFlags are the flags shared by render and composite.
type runFlags struct {
	config string

	gzipped bool
	timeout time.Duration

	placeFile string
	title     string
	refresh   int
	imageURL  string

	width   int
	height  int
	mode    string
	minimum float64
	area    []float64

	every   time.Duration
	noCache bool
	fresh   bool
	redis   string
	mongo   string
}

func (r *runFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&r.config, "config", "c", "", "settings file (TOML); other flags are ignored except caching")
	fl.BoolVar(&r.gzipped, "gzipped", false, "payload is gzip-compressed (detected from .gz and magic bytes otherwise)")
	fl.DurationVar(&r.timeout, "timeout", 0, "download timeout (default 30s)")
	fl.StringVarP(&r.placeFile, "placefile", "p", "", "placefile to write")
	fl.StringVar(&r.title, "title", "", "placefile title")
	fl.IntVar(&r.refresh, "refresh", 0, "seconds between client reloads of the placefile (default 60)")
	fl.StringVar(&r.imageURL, "image-url", "", "base URL the images are served from; empty references them by path")
	fl.IntVar(&r.width, "width", 0, "image width in pixels (default 1920)")
	fl.IntVar(&r.height, "height", 0, "image height in pixels (default 1080)")
	fl.StringVar(&r.mode, "mode", "", "aggregation mode: average, nearest, nearest_fast, max, min")
	fl.Float64Var(&r.minimum, "minimum", 0, "discard values below this")
	fl.Float64SliceVar(&r.area, "area", nil, "custom area as top,bottom,left,right in degrees")
	fl.DurationVar(&r.every, "every", 0, "regenerate on this period instead of rendering once")
	fl.BoolVar(&r.noCache, "no-cache", false, "disable the payload and render cache")
	fl.BoolVar(&r.fresh, "fresh", false, "bypass cached payloads and renders for this run")
	fl.StringVar(&r.redis, "redis", "", "redis:// URL of a shared cache")
	fl.StringVar(&r.mongo, "mongo", "", "mongodb:// URI for run records")
	_ = cmd.RegisterFlagCompletionFunc("mode", completeModes)
}

// publish copies the publishing flags into f.
func (r *runFlags) publish(f *config.File) {
	f.Gzipped = r.gzipped
	f.Timeout = int(r.timeout / time.Second)
	f.PlaceFile = r.placeFile
	f.Title = r.title
	f.Refresh = r.refresh
	f.ImageURL = r.imageURL
}

// applyStores copies the cache and archive flags into f. They apply on
// top of a settings file as well.
func (r *runFlags) applyStores(cmd *cobra.Command, f *config.File) {
	fl := cmd.Flags()
	if fl.Changed("no-cache") {
		f.Cache.Disabled = r.noCache
	}
	if r.redis != "" {
		f.Cache.Redis = r.redis
	}
	if r.mongo != "" {
		f.Archive.Mongo = r.mongo
	}
	if fl.Changed("every") {
		f.RegenerateTime = int(r.every / time.Second)
	}
}

func (r *runFlags) parseMode() (raster.Mode, error) {
	if r.mode == "" {
		return raster.Average, nil
	}
	return raster.ParseMode(r.mode)
}

func (r *runFlags) minimumPtr(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("minimum") {
		return nil
	}
	v := r.minimum
	return &v
}

func (r *runFlags) parseArea() (*config.Area, error) {
	switch len(r.area) {
	case 0:
		return nil, nil
	case 4:
		return &config.Area{Top: r.area[0], Bottom: r.area[1], Left: r.area[2], Right: r.area[3]}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidArea, "--area needs top,bottom,left,right, got %d values", len(r.area))
	}
}

// =============================================================================
// Render Command
// =============================================================================

type renderFlags struct {
	runFlags
	url     string
	palette string
	output  []string
	contour bool
	offset  int
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render [url]",
		Short: "Render a GRIB2 product as images and a placefile",
		Long: `Render downloads a GRIB2 product, rasterizes it with a color table and
writes the images plus a placefile referencing them.

Either pass a settings file with --config, or describe a single output with
flags. Four --output files split the image into top-left, top-right,
bottom-left and bottom-right tiles.`,
		Example: `  # Render the latest MRMS base reflectivity
  grib2pf render https://mrms.ncep.noaa.gov/data/2D/MergedBaseReflectivity/MRMS_MergedBaseReflectivity.latest.grib2.gz \
      -o refl.png -p refl.txt

  # Render from a settings file every two minutes
  grib2pf render -c settings.toml --every 2m`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.url = args[0]
			}
			f, err := flags.settings(cmd)
			if err != nil {
				return err
			}
			return c.run(cmd.Context(), f, flags.fresh)
		},
	}

	flags.register(cmd)

	return cmd
}

func (r *renderFlags) register(cmd *cobra.Command) {
	r.runFlags.register(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&r.url, "url", "u", "", "GRIB2 payload URL or file path")
	fl.StringVar(&r.palette, "palette", "", "color table file (default: built-in reflectivity)")
	fl.StringSliceVarP(&r.output, "output", "o", nil, "image file, or four tile files")
	fl.BoolVar(&r.contour, "contour", false, "draw only palette band boundaries")
	fl.IntVar(&r.offset, "offset", 0, "byte offset of the GRIB message in the payload")
	_ = cmd.RegisterFlagCompletionFunc("url", completeProductURLs)
	cmd.ValidArgsFunction = completeProductURLs
}

// settings returns the settings file named by --config, or one built from
// the flags.
func (r *renderFlags) settings(cmd *cobra.Command) (*config.File, error) {
	if r.config != "" {
		f, err := config.Load(r.config)
		if err != nil {
			return nil, err
		}
		r.applyStores(cmd, f)
		return f, nil
	}

	if r.url == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "a url or --config is required")
	}
	if len(r.output) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "--output is required")
	}
	mode, err := r.parseMode()
	if err != nil {
		return nil, err
	}
	area, err := r.parseArea()
	if err != nil {
		return nil, err
	}

	f := &config.File{URL: r.url}
	r.publish(f)
	f.Messages = []config.Message{{
		ImageFiles: r.output,
		Palette:    r.palette,
		Width:      r.width,
		Height:     r.height,
		Title:      r.title,
		Mode:       mode,
		Minimum:    r.minimumPtr(cmd),
		Contour:    r.contour,
		Area:       area,
		Offset:     r.offset,
	}}
	r.applyStores(cmd, f)
	return f, nil
}

// run renders f once, or on its regeneration period until ctx is done.
func (c *CLI) run(ctx context.Context, f *config.File, fresh bool) error {
	runner, err := c.newRunner(ctx, f)
	if err != nil {
		return err
	}
	defer runner.Close()

	run, err := runFunc(runner, f, fresh)
	if err != nil {
		return err
	}

	if every := f.RegenerateEvery(); every > 0 {
		printInfo("Regenerating every %s", every)
		loop := server.New(func(ctx context.Context) (*pipeline.Result, error) {
			start := time.Now()
			result, err := run(ctx)
			if err == nil {
				logRun(c.Logger, result, start)
			}
			return result, err
		}, server.Options{PlaceFile: f.PlaceFilePath(), Logger: c.Logger})
		return loop.Regenerate(ctx, every)
	}

	var result *pipeline.Result
	err = c.withSpinner(ctx, "Starting", func() error {
		var err error
		result, err = run(ctx)
		return err
	})
	if result != nil {
		printResult(result, f.PlaceFilePath())
	}
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	printSuccess("Rendered %d of %d outputs", len(result.Succeeded()), len(result.Outputs))
	return nil
}
