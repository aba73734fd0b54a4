package cli

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AdenKoperczak/grib2pf/pkg/config"
	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/pipeline"
	"github.com/AdenKoperczak/grib2pf/pkg/server"
)

const (
	defaultAddr  = ":8080"
	defaultEvery = 2 * time.Minute
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		settings string
		addr     string
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Regenerate a placefile on a schedule and serve it over HTTP",
		Long: `Serve regenerates the placefile described by a settings file every
regenerateTime seconds (default 120) and serves it, with its images, over HTTP:

  GET /placefile       the placefile
  GET /images/{name}   an image of the last run
  GET /healthz         liveness
  GET /status          the latest run record

Set imageURL in the settings file to this server's /images URL so that
clients fetch the images from here.`,
		Example: `  grib2pf serve -c settings.toml --addr :8080`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.Load(settings)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("no-cache") {
				f.Cache.Disabled = noCache
			}
			if addr == "" {
				addr = f.Server.Addr
			}
			return c.serve(cmd.Context(), f, addr)
		},
	}

	cmd.Flags().StringVarP(&settings, "config", "c", "", "settings file (TOML)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080, or server.addr)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the payload and render cache")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func (c *CLI) serve(ctx context.Context, f *config.File, addr string) error {
	if f.PlaceFile == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "serve needs placeFile in the settings")
	}
	c.installLogHooks()

	runner, err := c.newRunner(ctx, f)
	if err != nil {
		return err
	}
	defer runner.Close()

	run, err := runFunc(runner, f, false)
	if err != nil {
		return err
	}

	every := cmp.Or(f.RegenerateEvery(), defaultEvery)
	addr = cmp.Or(addr, defaultAddr)

	srv := server.New(run, server.Options{
		PlaceFile: f.PlaceFilePath(),
		Title:     cmp.Or(f.Title, pipeline.DefaultTitle),
		Archive:   runner.Archive,
		Logger:    c.Logger,
	})

	printInfo("Serving on %s, regenerating every %s", addr, every)
	printNextStep("Placefile", placefileURL(addr))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Regenerate(gctx, every) })
	g.Go(func() error { return srv.ListenAndServe(gctx, addr) })
	return g.Wait()
}

// placefileURL is the URL clients on this host load the placefile from.
func placefileURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/placefile"
}
