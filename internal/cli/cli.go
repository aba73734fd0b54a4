// Package cli implements the grib2pf command-line interface.
package cli

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/AdenKoperczak/grib2pf/pkg/archive"
	"github.com/AdenKoperczak/grib2pf/pkg/buildinfo"
	"github.com/AdenKoperczak/grib2pf/pkg/cache"
	"github.com/AdenKoperczak/grib2pf/pkg/config"
	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/observability"
	"github.com/AdenKoperczak/grib2pf/pkg/pipeline"
	"github.com/AdenKoperczak/grib2pf/pkg/server"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "grib2pf"

	// archiveLimit is how many run records are kept without MongoDB.
	archiveLimit = 100
)

// Exit codes beyond the generic failure.
const (
	exitFailure = 1
	exitInvalid = 2 // flags, settings or palettes were rejected
	exitFetch   = 3 // the payload could not be downloaded
)

// ExitInterrupted is the exit status of a run cancelled by a signal.
const ExitInterrupted = 130

// Log levels for New.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. At debug level pipeline, cache
// and HTTP events are logged as well.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		c.installLogHooks()
	}
}

func (c *CLI) installLogHooks() {
	hooks := observability.LogHooks{Logger: c.Logger}
	observability.SetPipelineHooks(hooks)
	observability.SetCacheHooks(hooks)
	observability.SetHTTPHooks(hooks)
}

func (c *CLI) verbose() bool {
	return c.Logger.GetLevel() <= log.DebugLevel
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "grib2pf renders GRIB2 radar data as Supercell-Wx placefiles",
		Long: `grib2pf downloads GRIB2 products such as MRMS reflectivity, rasterizes them
onto a Web Mercator image with a color table, and writes a placefile that
Supercell-Wx overlays on its map.`,
		Version:      buildinfo.Current(),
		SilenceUsage: true,
	}

	var verbose bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every fetch, decode and render")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			c.SetLogLevel(LogDebug)
		}
	}
	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.compositeCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.paletteCommand())
	root.AddCommand(c.productsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// Execute runs the root command under ctx.
func (c *CLI) Execute(ctx context.Context) error {
	return c.RootCommand().ExecuteContext(ctx)
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if stderrors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	code := errors.GetCode(err)
	switch {
	case code.Invalid():
		return exitInvalid
	case code == errors.ErrCodeNetwork, code == errors.ErrCodeTimeout, code == errors.ErrCodeNotFound:
		return exitFetch
	}
	return exitFailure
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner with the cache and archive the
// settings select. The caller closes it.
func (c *CLI) newRunner(ctx context.Context, f *config.File) (*pipeline.Runner, error) {
	store, err := newCache(ctx, f.Cache)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewDefaultKeyer()
	if f.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, f.Cache.Prefix)
	}

	runs, err := newArchive(ctx, f.Archive)
	if err != nil {
		store.Close()
		return nil, err
	}
	return pipeline.NewRunner(nil, store, keyer, runs, c.Logger), nil
}

func newCache(ctx context.Context, settings config.Cache) (cache.Cache, error) {
	if settings.Disabled {
		return cache.NewNullCache(), nil
	}
	if settings.Redis != "" {
		rc, err := cache.NewRedisCache(ctx, settings.Redis)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}

	dir := settings.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return cache.NewNullCache(), nil
		}
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

func newArchive(ctx context.Context, settings config.Archive) (archive.Store, error) {
	if settings.Mongo == "" {
		return archive.NewMemoryStore(archiveLimit), nil
	}
	ms, err := archive.NewMongoStore(ctx, settings.Mongo, settings.Database, settings.Collection)
	if err != nil {
		return nil, err
	}
	return ms, nil
}

// runFunc converts settings into one pipeline run. Options are built up
// front so that palette errors surface before the first fetch.
func runFunc(runner *pipeline.Runner, f *config.File, refresh bool) (server.RunFunc, error) {
	if f.IsComposite() {
		opts, err := f.CompositeOptions()
		if err != nil {
			return nil, err
		}
		opts.Refresh, opts.Logger = refresh, runner.Logger
		if err := opts.ValidateAndSetDefaults(); err != nil {
			return nil, err
		}
		return func(ctx context.Context) (*pipeline.Result, error) {
			return runner.ExecuteComposite(ctx, opts)
		}, nil
	}

	opts, err := f.PipelineOptions()
	if err != nil {
		return nil, err
	}
	opts.Refresh, opts.Logger = refresh, runner.Logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return func(ctx context.Context) (*pipeline.Result, error) {
		return runner.Execute(ctx, opts)
	}, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/grib2pf/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
