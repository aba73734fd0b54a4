// Package config loads grib2pf settings files.
//
// A settings file is TOML. Top-level keys describe the payload and the
// placefile; each [[messages]] table describes one output. A [composite]
// table configures the typed reflectivity product instead. Relative
// palette paths resolve against the settings file's directory.
//
//	url = "https://mrms.ncep.noaa.gov/data/2D/MergedBaseReflectivity/MRMS_MergedBaseReflectivity.latest.grib2.gz"
//	placeFile = "/srv/pf/refl.txt"
//	title = "Reflectivity"
//	regenerateTime = 120
//
//	[[messages]]
//	imageFiles = ["/srv/pf/refl.png"]
//	palette = "BR.pal"
//	mode = "nearest"
//	minimum = 5.0
//
//	[messages.area]
//	top = 50.0
//	bottom = 20.0
//	left = -130.0
//	right = -60.0
//
// Unknown keys are reported as errors so that typos do not silently fall
// back to defaults.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
	"github.com/AdenKoperczak/grib2pf/pkg/palette"
	"github.com/AdenKoperczak/grib2pf/pkg/pipeline"
	"github.com/AdenKoperczak/grib2pf/pkg/raster"
)

// File is a parsed settings file.
type File struct {
	URL     string `toml:"url"`
	Gzipped bool   `toml:"gzipped"`
	Timeout int    `toml:"timeout"` // seconds

	PlaceFile      string `toml:"placeFile"`
	Title          string `toml:"title"`
	Refresh        int    `toml:"refresh"` // placefile refresh, seconds
	ImageURL       string `toml:"imageURL"`
	RegenerateTime int    `toml:"regenerateTime"` // seconds; 0 renders once
	Workers        int    `toml:"workers"`

	Messages  []Message  `toml:"messages"`
	Composite *Composite `toml:"composite"`

	Cache   Cache   `toml:"cache"`
	Archive Archive `toml:"archive"`
	Server  Server  `toml:"server"`

	// dir is the directory relative paths resolve against.
	dir string
}

// Message configures one output.
type Message struct {
	ImageFiles []string    `toml:"imageFiles"`
	Palette    string      `toml:"palette"` // empty selects the built-in reflectivity table
	Width      int         `toml:"width"`
	Height     int         `toml:"height"`
	Title      string      `toml:"title"`
	Mode       raster.Mode `toml:"mode"`
	Minimum    *float64    `toml:"minimum"`
	Contour    bool        `toml:"contour"`
	Area       *Area       `toml:"area"`
	Offset     int         `toml:"offset"`
}

// Composite configures the typed reflectivity product.
type Composite struct {
	TypeURL     string      `toml:"typeUrl"`
	ReflURL     string      `toml:"reflUrl"`
	ImageFiles  []string    `toml:"imageFiles"`
	RainPalette string      `toml:"rainPalette"`
	SnowPalette string      `toml:"snowPalette"`
	HailPalette string      `toml:"hailPalette"`
	Width       int         `toml:"width"`
	Height      int         `toml:"height"`
	Mode        raster.Mode `toml:"mode"`
	Minimum     *float64    `toml:"minimum"`
	Area        *Area       `toml:"area"`
}

// Area is a custom bounding box in degrees.
type Area struct {
	Top    float64 `toml:"top"`
	Bottom float64 `toml:"bottom"`
	Left   float64 `toml:"left"`
	Right  float64 `toml:"right"`
}

// Geo converts a to a geo.Area. A nil area stays nil.
func (a *Area) Geo() *geo.Area {
	if a == nil {
		return nil
	}
	return &geo.Area{LonL: a.Left, LonR: a.Right, LatT: a.Top, LatB: a.Bottom}
}

// Cache selects the cache backend. Redis wins over Dir when both are set.
type Cache struct {
	Dir      string `toml:"dir"`
	Redis    string `toml:"redis"` // redis:// URL
	Prefix   string `toml:"prefix"`
	Disabled bool   `toml:"disabled"`
}

// Archive selects where run records are kept.
type Archive struct {
	Mongo      string `toml:"mongo"` // mongodb:// URI; empty keeps records in memory
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Server configures grib2pf serve.
type Server struct {
	Addr string `toml:"addr"`
}

// Load reads and validates the settings file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "read settings %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read settings %s", path)
	}
	f, err := Parse(string(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", path)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// Parse parses settings held in memory. Relative paths resolve against
// the working directory.
func Parse(data string) (*File, error) {
	var f File
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse settings")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown settings: %s", strings.Join(keys, ", "))
	}
	if f.URL == "" && f.Composite == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "settings need a url or a [composite] table")
	}
	return &f, nil
}

// IsComposite reports whether the file describes the composite product.
func (f *File) IsComposite() bool {
	return f.Composite != nil
}

// RegenerateEvery returns the regeneration period, or zero to render once.
func (f *File) RegenerateEvery() time.Duration {
	return time.Duration(f.RegenerateTime) * time.Second
}

// PlaceFilePath returns the placefile path, resolved against the settings
// file's directory.
func (f *File) PlaceFilePath() string {
	return f.resolve(f.PlaceFile)
}

func (f *File) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || f.dir == "" {
		return path
	}
	return filepath.Join(f.dir, path)
}

// paletteLoader loads each palette file once.
type paletteLoader struct {
	f      *File
	loaded map[string]*palette.Table
}

func (l *paletteLoader) load(path string) (*palette.Table, error) {
	if path == "" {
		return palette.Default(), nil
	}
	path = l.f.resolve(path)
	if t, ok := l.loaded[path]; ok {
		return t, nil
	}
	t, err := palette.Load(path)
	if err != nil {
		return nil, err
	}
	l.loaded[path] = t
	return t, nil
}

// PipelineOptions converts the file into options for pipeline.Runner.Execute.
func (f *File) PipelineOptions() (pipeline.Options, error) {
	if f.URL == "" {
		return pipeline.Options{}, errors.New(errors.ErrCodeInvalidConfig, "url is required")
	}
	opts := pipeline.Options{
		URL:            f.URL,
		Gzipped:        f.Gzipped,
		Timeout:        time.Duration(f.Timeout) * time.Second,
		PlaceFile:      f.PlaceFilePath(),
		Title:          f.Title,
		RefreshSeconds: f.Refresh,
		ImageURL:       f.ImageURL,
		Workers:        f.Workers,
	}

	loader := &paletteLoader{f: f, loaded: map[string]*palette.Table{}}
	for i, m := range f.Messages {
		table, err := loader.load(m.Palette)
		if err != nil {
			return pipeline.Options{}, errors.Wrap(errors.GetCode(err), err, "message %d", i)
		}
		files := make([]string, len(m.ImageFiles))
		for j, file := range m.ImageFiles {
			files[j] = f.resolve(file)
		}
		opts.Messages = append(opts.Messages, pipeline.MessageOptions{
			ImageFiles: files,
			Palette:    table,
			Width:      m.Width,
			Height:     m.Height,
			Title:      m.Title,
			Mode:       m.Mode,
			Minimum:    m.Minimum,
			Contour:    m.Contour,
			Area:       m.Area.Geo(),
			Offset:     m.Offset,
		})
	}
	return opts, nil
}

// CompositeOptions converts the [composite] table into options for
// pipeline.Runner.ExecuteComposite.
func (f *File) CompositeOptions() (pipeline.CompositeOptions, error) {
	c := f.Composite
	if c == nil {
		return pipeline.CompositeOptions{}, errors.New(errors.ErrCodeInvalidConfig, "settings have no [composite] table")
	}

	loader := &paletteLoader{f: f, loaded: map[string]*palette.Table{}}
	var tables [3]*palette.Table
	for i, p := range []string{c.RainPalette, c.SnowPalette, c.HailPalette} {
		t, err := loader.load(p)
		if err != nil {
			return pipeline.CompositeOptions{}, err
		}
		tables[i] = t
	}

	files := make([]string, len(c.ImageFiles))
	for i, file := range c.ImageFiles {
		files[i] = f.resolve(file)
	}
	return pipeline.CompositeOptions{
		TypeURL:        c.TypeURL,
		ReflURL:        c.ReflURL,
		Gzipped:        f.Gzipped,
		Timeout:        time.Duration(f.Timeout) * time.Second,
		ImageFiles:     files,
		RainPalette:    tables[0],
		SnowPalette:    tables[1],
		HailPalette:    tables[2],
		Width:          c.Width,
		Height:         c.Height,
		Mode:           c.Mode,
		Minimum:        c.Minimum,
		Area:           c.Area.Geo(),
		PlaceFile:      f.PlaceFilePath(),
		Title:          f.Title,
		RefreshSeconds: f.Refresh,
		ImageURL:       f.ImageURL,
	}, nil
}
