package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AdenKoperczak/grib2pf/pkg/cache"
)

// cacheCommand manages the local file cache. Redis caches are shared and
// expire on their own, so they are not managed here.
func (c *CLI) cacheCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local payload and render cache",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "cache directory (default: $XDG_CACHE_HOME/grib2pf)")

	open := func() (*cache.FileCache, bool, error) {
		if dir == "" {
			d, err := cacheDir()
			if err != nil {
				return nil, false, fmt.Errorf("get cache dir: %w", err)
			}
			dir = d
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, false, nil
		}
		fc, err := cache.NewFileCache(dir)
		return fc, fc != nil, err
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Show how many entries the cache holds",
			RunE: func(cmd *cobra.Command, args []string) error {
				fc, ok, err := open()
				if err != nil || !ok {
					printCacheEmpty(err)
					return err
				}
				st, err := fc.Stats(time.Now())
				if err != nil {
					return err
				}
				printKeyValue("Directory", fc.Dir())
				printKeyValue("Entries", fmt.Sprintf("%d (%d expired)", st.Entries, st.Expired))
				printKeyValue("Size", formatBytes(int(st.Bytes)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Remove expired entries",
			RunE: func(cmd *cobra.Command, args []string) error {
				fc, ok, err := open()
				if err != nil || !ok {
					printCacheEmpty(err)
					return err
				}
				n, err := fc.Prune(time.Now())
				if err != nil {
					return err
				}
				printSuccess("Pruned %d expired entries", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached payload and render",
			RunE: func(cmd *cobra.Command, args []string) error {
				fc, ok, err := open()
				if err != nil || !ok {
					printCacheEmpty(err)
					return err
				}
				n, err := fc.Clear()
				if err != nil {
					return err
				}
				printSuccess("Cleared %d cached entries", n)
				printDetail("Directory: %s", fc.Dir())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the cache directory",
			RunE: func(cmd *cobra.Command, args []string) error {
				if dir == "" {
					d, err := cacheDir()
					if err != nil {
						return fmt.Errorf("get cache dir: %w", err)
					}
					dir = d
				}
				fmt.Fprintln(cmd.OutOrStdout(), dir)
				return nil
			},
		},
	)
	return cmd
}

func printCacheEmpty(err error) {
	if err == nil {
		printInfo("Cache is empty")
	}
}
