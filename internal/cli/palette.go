package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/palette"
)

// paletteCommand creates the palette command.
func (c *CLI) paletteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "palette",
		Short: "Inspect and validate color tables",
	}

	cmd.AddCommand(c.paletteShowCommand())
	cmd.AddCommand(c.paletteCheckCommand())

	return cmd
}

// paletteShowCommand creates the "palette show" subcommand.
func (c *CLI) paletteShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [file]",
		Short: "Print a color table with color swatches",
		Long:  `Show prints each breakpoint of a color table. Without a file it prints the built-in reflectivity table.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, name, err := loadPalette(args)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, StyleTitle.Render(name))
			printPalette(t)
			return nil
		},
	}
}

// paletteCheckCommand creates the "palette check" subcommand.
func (c *CLI) paletteCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Validate color table files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				t, err := palette.Load(path)
				if err != nil {
					printError("%s: %s", path, errors.UserMessage(err))
					failed++
					continue
				}
				if t.Len() == 0 {
					printWarning("%s: no color entries", path)
					continue
				}
				printSuccess("%s: %d entries", path, t.Len())
			}
			if failed > 0 {
				return errors.New(errors.ErrCodeInvalidPalette, "%d of %d color tables are invalid", failed, len(args))
			}
			return nil
		},
	}
}

func loadPalette(args []string) (*palette.Table, string, error) {
	if len(args) == 0 {
		return palette.Default(), "built-in reflectivity", nil
	}
	t, err := palette.Load(args[0])
	if err != nil {
		return nil, "", err
	}
	return t, args[0], nil
}
