// Command grib2pf renders GRIB2 weather products as Supercell-Wx
// placefiles.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdenKoperczak/grib2pf/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.New(os.Stderr, cli.LogInfo).Execute(ctx)
	stop()
	if err == nil {
		return
	}
	code := cli.ExitCode(err)
	if code != cli.ExitInterrupted {
		fmt.Fprintln(os.Stderr, "grib2pf:", err)
	}
	os.Exit(code)
}
