// Package buildinfo reports which build of grib2pf is running.
//
// Release builds stamp the variables with ldflags:
//
//	go build -ldflags "-X github.com/AdenKoperczak/grib2pf/pkg/buildinfo.Version=v1.4.0 \
//	    -X github.com/AdenKoperczak/grib2pf/pkg/buildinfo.Commit=$(git rev-parse HEAD)"
//
// Unstamped builds fall back to the module version and VCS settings the
// Go toolchain embeds.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var stamp = sync.OnceFunc(func() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "none":
			Commit = s.Value
		case s.Key == "vcs.time" && Date == "unknown":
			Date = s.Value
		}
	}
})

// Current returns the version of the running binary.
func Current() string {
	stamp()
	return Version
}

// String returns the version, commit and build date on three lines.
func String() string {
	stamp()
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template is the cobra version template.
func Template() string {
	return "{{.Name}} " + String() + "\n"
}

// UserAgent identifies grib2pf to MRMS and NOMADS servers.
func UserAgent() string {
	return "grib2pf/" + Current()
}
