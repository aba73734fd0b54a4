package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/AdenKoperczak/grib2pf/pkg/source"
)

// productsCommand creates the products command.
func (c *CLI) productsCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List MRMS products and their latest-file URLs",
		Long: `Products lists commonly used MRMS products. With --interactive a product is
picked from a list and its URL printed to stdout, ready for grib2pf render.`,
		Example: `  grib2pf render "$(grib2pf products -i)" -o out.png -p out.txt`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !interactive {
				for _, p := range source.Products {
					printKeyValue(p.Name, p.Description+" ("+p.Units+")")
					printDetail("%s", p.URL())
				}
				printNewline()
				printKeyValue("RTMA", source.RTMALatestURL(time.Now()))
				return nil
			}

			p, err := pickProduct(source.Products, os.Stdin, os.Stderr)
			if err != nil {
				return err
			}
			if p == nil {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.URL())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick a product interactively")

	return cmd
}

// pickProduct runs the product picker, reading keys from in and drawing to
// out. The command draws to stderr so stdout carries only the URL. It
// returns nil when the user quits without choosing.
func pickProduct(products []source.Product, in io.Reader, out io.Writer) (*source.Product, error) {
	final, err := tea.NewProgram(NewProductListModel(products), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return nil, fmt.Errorf("product picker: %w", err)
	}
	return final.(ProductListModel).Selected, nil
}
