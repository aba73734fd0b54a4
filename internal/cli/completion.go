package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AdenKoperczak/grib2pf/pkg/raster"
	"github.com/AdenKoperczak/grib2pf/pkg/source"
)

var completionShells = map[string]func(cmd *cobra.Command, w io.Writer) error{
	"bash":       func(cmd *cobra.Command, w io.Writer) error { return cmd.Root().GenBashCompletionV2(w, true) },
	"zsh":        func(cmd *cobra.Command, w io.Writer) error { return cmd.Root().GenZshCompletion(w) },
	"fish":       func(cmd *cobra.Command, w io.Writer) error { return cmd.Root().GenFishCompletion(w, true) },
	"powershell": func(cmd *cobra.Command, w io.Writer) error { return cmd.Root().GenPowerShellCompletionWithDesc(w) },
}

func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for grib2pf.

  $ source <(grib2pf completion bash)
  $ grib2pf completion zsh > "${fpath[1]}/_grib2pf"
  $ grib2pf completion fish | source

Completions cover subcommands, --mode names and MRMS product URLs.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionShells[args[0]](cmd, cmd.OutOrStdout())
		},
	}
}

// completeModes completes --mode with the aggregation mode names.
func completeModes(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var names []string
	for _, m := range raster.Modes {
		if strings.HasPrefix(m.String(), toComplete) {
			names = append(names, m.String())
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completeProductURLs completes payload URLs with the known MRMS products,
// falling back to file names for local payloads.
func completeProductURLs(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if !strings.HasPrefix(toComplete, "http") {
		return nil, cobra.ShellCompDirectiveDefault
	}
	var urls []string
	for _, p := range source.Products {
		if u := p.URL(); strings.HasPrefix(u, toComplete) {
			urls = append(urls, u+"\t"+p.Description)
		}
	}
	return urls, cobra.ShellCompDirectiveNoFileComp
}
