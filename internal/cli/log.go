// Package cli implements the grib2pf command-line interface.
//
// render and composite write one placefile, or keep rewriting it with
// --every. serve does the same behind an HTTP endpoint. palette, products
// and cache are helpers for setting a run up.
//
// Progress goes to a charmbracelet/log logger on stderr. Spinners, tables
// and the product picker are drawn with lipgloss and bubbletea. With
// --verbose every fetch, decode, render, cache lookup and HTTP request is
// logged at debug level.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AdenKoperczak/grib2pf/pkg/pipeline"
)

// newLogger returns a logger stamping lines with a centisecond clock.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
	})
}

// logRun reports one finished regeneration. Failed runs are logged by
// the regeneration loop itself.
func logRun(l *log.Logger, result *pipeline.Result, start time.Time) {
	kv := []any{
		"run", result.RunID,
		"outputs", len(result.Outputs),
		"failed", result.Stats.Failed,
		"payload", formatBytes(result.Stats.PayloadBytes),
	}
	if result.Stats.PayloadCache {
		kv = append(kv, "cached", true)
	}
	l.Info("regenerated", append(kv, "elapsed", time.Since(start).Round(time.Millisecond))...)
}
