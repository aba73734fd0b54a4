package pipeline

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/geo"
	"github.com/AdenKoperczak/grib2pf/pkg/raster"
	"github.com/AdenKoperczak/grib2pf/pkg/tile"
)

// RenderMessage renders samples into the images of one output without
// touching the filesystem. missing, when set, is the decoder's marker for
// masked points. m must have passed validation.
func RenderMessage(samples []geo.Sample, missing *float64, m MessageOptions, logger *log.Logger) (*Output, error) {
	grid, area, err := raster.Rasterize(samples, raster.Options{
		Width:   m.Width,
		Height:  m.Height,
		Mode:    m.Mode,
		Minimum: m.Minimum,
		Missing: missing,
		Area:    m.Area,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	if m.Contour {
		raster.Contour(grid, m.Palette)
	}
	img := raster.Colorize(grid, m.Palette)

	out, err := encodeTiles(img, area, grid.Projector, m.Tiled())
	if err != nil {
		return nil, err
	}
	out.Files = m.ImageFiles
	out.Stats = grid.Stats
	return out, nil
}

// encodeTiles optionally splits img and PNG-encodes every piece.
func encodeTiles(img *image.NRGBA, area geo.Area, proj geo.Projector, tiled bool) (*Output, error) {
	tiles := []tile.Tile{tile.Single(img, area)}
	if tiled {
		quads, err := tile.Split(img, area, proj)
		if err != nil {
			return nil, err
		}
		tiles = quads[:]
	}

	out := &Output{
		Areas:  make([]geo.Area, len(tiles)),
		Images: make([][]byte, len(tiles)),
	}
	var g errgroup.Group
	for i, t := range tiles {
		out.Areas[i] = t.Area
		g.Go(func() error {
			data, err := encodePNG(t.Image)
			out.Images[i] = data
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return buf.Bytes(), nil
}

// writeImages writes every image of out to its file.
func writeImages(out *Output) error {
	if len(out.Images) != len(out.Files) {
		return errors.New(errors.ErrCodeInternal, "%d images for %d files", len(out.Images), len(out.Files))
	}
	for i, file := range out.Files {
		if err := writeFileAtomic(file, out.Images[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	return nil
}

// cachedRender is how rendered images are stored in the render cache.
type cachedRender struct {
	Areas  []geo.Area   `json:"areas"`
	Images [][]byte     `json:"images"`
	Stats  raster.Stats `json:"stats"`
}

func marshalRender(out *Output) ([]byte, error) {
	return json.Marshal(cachedRender{Areas: out.Areas, Images: out.Images, Stats: out.Stats})
}

func unmarshalRender(data []byte, files []string) (*Output, error) {
	var c cachedRender
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if len(c.Images) != len(files) || len(c.Areas) != len(files) {
		return nil, errors.New(errors.ErrCodeInternal, "cached render has %d images, want %d", len(c.Images), len(files))
	}
	return &Output{Files: files, Areas: c.Areas, Images: c.Images, Stats: c.Stats, FromCache: true}, nil
}
