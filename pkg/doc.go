// Package pkg provides the libraries behind grib2pf, which turns GRIB2
// gridded weather data into images and a Supercell-Wx placefile.
//
// # Overview
//
// A run downloads one GRIB2 payload (typically an MRMS product), decodes
// one or more messages from it, rasterizes each onto a Web Mercator image
// colored by a palette, and writes a placefile that anchors the images on
// the map:
//
//	GRIB2 payload (HTTP or file, optionally gzipped)
//	         ↓
//	    [source] fetch, inflate, cache
//	         ↓
//	    [grib] decode sections 3, 5 and 7 into lat/lon samples
//	         ↓
//	    [raster] accumulate samples into a grid, colorize with [palette]
//	         ↓
//	    [tile] split into quadrants when requested
//	         ↓
//	    [placefile] write the Image blocks
//
// [pipeline] runs these stages; [config] loads them from a TOML settings
// file and [server] repeats them on a schedule behind HTTP.
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil, cache.NewNullCache(), nil, nil, logger)
//	defer runner.Close()
//
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    URL:       source.MRMSURL("MergedBaseReflectivity"),
//	    PlaceFile: "refl.txt",
//	    Messages: []pipeline.MessageOptions{{
//	        ImageFiles: []string{"refl.png"},
//	        Palette:    palette.Default(),
//	    }},
//	})
//
// # Main Packages
//
// ## Data
//
// [grib] - Minimal GRIB2 decoder: lat/lon grids (template 3.0) with simple
// (5.0) or PNG (5.41) packing and an optional bitmap.
//
// [geo] - Geographic areas, longitude normalization and the Web Mercator
// projection used to place pixels.
//
// [palette] - Color tables in the Supercell-Wx/GR2Analyst text format.
//
// ## Rendering
//
// [raster] - Sample accumulation (average, nearest, max, min), contouring and
// colorization.
//
// [composite] - Typed reflectivity: a category product picks the palette
// that colors each pixel of a value product.
//
// [tile] - Quadrant tiling with the projection split at the image centre.
//
// [placefile] - Placefile text output.
//
// ## Infrastructure
//
// [source] - Payload fetching with retries, gzip detection and caching.
//
// [cache] - File, Redis and null caches for payloads and renders.
//
// [archive] - Run records kept in memory or in MongoDB.
//
// [observability] - Hooks for fetch, decode, render and cache events.
//
// [errors] - Coded errors and input validation.
//
// [httputil] - Retry helpers for transient network failures.
//
// # Testing
//
//	go test ./pkg/...
//
// [gribtest] builds small GRIB2 messages for tests.
//
// [source]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/source
// [grib]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/grib
// [gribtest]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/grib/gribtest
// [geo]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/geo
// [palette]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/palette
// [raster]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/raster
// [composite]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/composite
// [tile]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/tile
// [placefile]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/placefile
// [pipeline]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/pipeline
// [config]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/config
// [server]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/server
// [cache]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/cache
// [archive]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/archive
// [observability]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/observability
// [errors]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/errors
// [httputil]: https://pkg.go.dev/github.com/AdenKoperczak/grib2pf/pkg/httputil
package pkg
