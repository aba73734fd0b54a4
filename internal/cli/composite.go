package cli

import (
	"github.com/spf13/cobra"

	"github.com/AdenKoperczak/grib2pf/pkg/config"
	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/source"
)

type compositeFlags struct {
	runFlags
	typeURL     string
	reflURL     string
	rainPalette string
	snowPalette string
	hailPalette string
	output      []string
}

// compositeCommand creates the composite command.
func (c *CLI) compositeCommand() *cobra.Command {
	var flags compositeFlags

	cmd := &cobra.Command{
		Use:   "composite",
		Short: "Render reflectivity colored by precipitation type",
		Long: `Composite renders a reflectivity product whose colors come from one of
three palettes chosen per pixel by a precipitation type product: rain,
snow or hail. Pixels with no precipitation type stay transparent.

By default the MRMS PrecipFlag and MergedBaseReflectivityQC products are
used.`,
		Example: `  grib2pf composite --rain-palette rain.pal --snow-palette snow.pal \
      --hail-palette hail.pal -o typed.png -p typed.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

func (r *compositeFlags) register(cmd *cobra.Command) {
	r.runFlags.register(cmd)
	typeURL, reflURL := source.TypedReflectivityURLs()
	fl := cmd.Flags()
	fl.StringVar(&r.typeURL, "type-url", typeURL, "precipitation type product URL")
	fl.StringVar(&r.reflURL, "refl-url", reflURL, "reflectivity product URL")
	fl.StringVar(&r.rainPalette, "rain-palette", "", "color table for rain")
	fl.StringVar(&r.snowPalette, "snow-palette", "", "color table for snow")
	fl.StringVar(&r.hailPalette, "hail-palette", "", "color table for hail")
	fl.StringSliceVarP(&r.output, "output", "o", nil, "image file, or four tile files")
}

func (r *compositeFlags) settings(cmd *cobra.Command) (*config.File, error) {
	if r.config != "" {
		f, err := config.Load(r.config)
		if err != nil {
			return nil, err
		}
		if !f.IsComposite() {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "%s has no [composite] table", r.config)
		}
		r.applyStores(cmd, f)
		return f, nil
	}

	if len(r.output) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "--output is required")
	}
	if r.rainPalette == "" || r.snowPalette == "" || r.hailPalette == "" {
		return nil, errors.New(errors.ErrCodeInvalidPalette, "--rain-palette, --snow-palette and --hail-palette are required")
	}
	mode, err := r.parseMode()
	if err != nil {
		return nil, err
	}
	area, err := r.parseArea()
	if err != nil {
		return nil, err
	}

	f := &config.File{}
	r.publish(f)
	f.Composite = &config.Composite{
		TypeURL:     r.typeURL,
		ReflURL:     r.reflURL,
		ImageFiles:  r.output,
		RainPalette: r.rainPalette,
		SnowPalette: r.snowPalette,
		HailPalette: r.hailPalette,
		Width:       r.width,
		Height:      r.height,
		Mode:        mode,
		Minimum:     r.minimumPtr(cmd),
		Area:        area,
	}
	r.applyStores(cmd, f)
	return f, nil
}
