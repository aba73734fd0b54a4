package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AdenKoperczak/grib2pf/pkg/archive"
	"github.com/AdenKoperczak/grib2pf/pkg/cache"
	"github.com/AdenKoperczak/grib2pf/pkg/composite"
	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/grib"
	"github.com/AdenKoperczak/grib2pf/pkg/observability"
	"github.com/AdenKoperczak/grib2pf/pkg/placefile"
	"github.com/AdenKoperczak/grib2pf/pkg/raster"
	"github.com/AdenKoperczak/grib2pf/pkg/source"
)

// Runner executes pipeline runs.
//
// The Runner is stateless apart from its collaborators. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Fetcher *source.Fetcher
	Cache   cache.Cache // render cache
	Keyer   cache.Keyer
	Archive archive.Store
	Logger  *log.Logger
}

// NewRunner creates a runner. A nil fetcher uses source.NewFetcher with the
// runner's cache and keyer; a nil cache disables render caching; a nil
// store discards run records.
func NewRunner(f *source.Fetcher, c cache.Cache, keyer cache.Keyer, store archive.Store, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if store == nil {
		store = archive.NullStore{}
	}
	if f == nil {
		f = source.NewFetcher(nil, c, keyer, logger)
	}
	return &Runner{Fetcher: f, Cache: c, Keyer: keyer, Archive: store, Logger: logger}
}

// decoded is a message decoded once and shared by every output that
// refers to its offset.
type decoded struct {
	field *grib.Field
	err   error
}

// Execute runs fetch → decode → render → publish for opts.
//
// Output failures are recorded in Result.Outputs and do not fail the run
// unless every output failed. Fetch failures and cancellation fail the
// run.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := opts.Logger

	start := time.Now()
	result := &Result{RunID: uuid.New()}
	logger = logger.With("run", result.RunID.String()[:8])

	// Stage 1: Fetch
	payload, err := r.Fetcher.Fetch(ctx, source.Request{
		URL:     opts.URL,
		Gzipped: opts.Gzipped,
		Timeout: opts.Timeout,
		Refresh: opts.Refresh,
	})
	result.Stats.FetchTime = time.Since(start)
	if err != nil {
		r.record(ctx, opts.Title, opts.URL, start, result, err)
		return nil, fmt.Errorf("fetch: %w", err)
	}
	result.Stats.PayloadBytes = len(payload.Data)
	result.Stats.PayloadCache = payload.FromCache
	logger.Info("fetched payload",
		"bytes", len(payload.Data),
		"cached", payload.FromCache,
		"duration", result.Stats.FetchTime)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: Decode
	decodeStart := time.Now()
	fields := r.decodeAll(ctx, payload.Data, opts.Messages)
	result.Stats.DecodeTime = time.Since(decodeStart)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: Render
	renderStart := time.Now()
	result.Outputs = make([]*Output, len(opts.Messages))
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for i := range opts.Messages {
		m := &opts.Messages[i]
		g.Go(func() error {
			result.Outputs[i] = r.renderOutput(ctx, payload.Hash, fields[m.Offset], m, opts.Refresh, logger)
			return nil
		})
	}
	_ = g.Wait()
	result.Stats.RenderTime = time.Since(renderStart)

	// Stage 4: Publish
	var firstErr error
	for i, out := range result.Outputs {
		if out.Err != nil {
			result.Stats.Failed++
			firstErr = cmp.Or(firstErr, out.Err)
			logger.Error("output failed", "message", i, "files", opts.Messages[i].ImageFiles, "err", out.Err)
		}
	}
	if result.Stats.Failed == len(result.Outputs) {
		r.record(ctx, opts.Title, opts.URL, start, result, nil)
		return result, fmt.Errorf("all %d outputs failed: %w", len(result.Outputs), firstErr)
	}
	if opts.PlaceFile != "" {
		if err := writePlacefile(opts.PlaceFile, opts.Title, opts.RefreshSeconds, opts.ImageURL, result.Outputs); err != nil {
			r.record(ctx, opts.Title, opts.URL, start, result, err)
			return result, fmt.Errorf("placefile: %w", err)
		}
		logger.Info("wrote placefile", "path", opts.PlaceFile)
	}

	r.record(ctx, opts.Title, opts.URL, start, result, nil)
	logger.Info("run complete",
		"outputs", len(result.Outputs),
		"failed", result.Stats.Failed,
		"duration", time.Since(start))
	return result, nil
}

// decodeAll decodes every distinct message offset referenced by messages
// concurrently.
func (r *Runner) decodeAll(ctx context.Context, payload []byte, messages []MessageOptions) map[int]decoded {
	var offsets []int
	for _, m := range messages {
		if !slices.Contains(offsets, m.Offset) {
			offsets = append(offsets, m.Offset)
		}
	}

	results := make([]decoded, len(offsets))
	var g errgroup.Group
	for i, off := range offsets {
		g.Go(func() error {
			results[i] = r.decode(ctx, payload, off)
			return nil
		})
	}
	_ = g.Wait()

	fields := make(map[int]decoded, len(offsets))
	for i, off := range offsets {
		fields[off] = results[i]
	}
	return fields
}

func (r *Runner) decode(ctx context.Context, payload []byte, offset int) decoded {
	start := time.Now()
	msg, err := grib.At(payload, offset)
	var field *grib.Field
	if err == nil {
		field, err = grib.Decode(msg)
	}
	samples := 0
	if field != nil {
		samples = len(field.Samples)
	}
	observability.Pipeline().OnDecodeComplete(ctx, offset, samples, time.Since(start), err)
	if err != nil {
		return decoded{err: fmt.Errorf("decode message at offset %d: %w", offset, err)}
	}
	r.Logger.Debug("decoded message",
		"offset", offset,
		"at", msg.Offset,
		"grid", fmt.Sprintf("%dx%d", field.Grid.Ni, field.Grid.Nj),
		"bitmap", field.HasBitmap,
		"refTime", field.RefTime)
	return decoded{field: field}
}

// renderOutput renders, caches and writes one output. It never returns
// nil; failures are reported in Output.Err.
func (r *Runner) renderOutput(ctx context.Context, payloadHash string, d decoded, m *MessageOptions, refresh bool, logger *log.Logger) *Output {
	name := m.ImageFiles[0]
	start := time.Now()
	observability.Pipeline().OnRenderStart(ctx, name)

	out, err := r.render(ctx, payloadHash, d, m, refresh, logger)
	if err == nil {
		err = writeImages(out)
	}
	observability.Pipeline().OnRenderComplete(ctx, name, time.Since(start), err)
	if err != nil {
		return &Output{Files: m.ImageFiles, Err: err}
	}

	logger.Info("rendered",
		"title", m.Title,
		"files", len(out.Files),
		"cached", out.FromCache,
		"accumulated", out.Stats.Accumulated,
		"duration", time.Since(start))
	return out
}

func (r *Runner) render(ctx context.Context, payloadHash string, d decoded, m *MessageOptions, refresh bool, logger *log.Logger) (*Output, error) {
	if d.err != nil {
		return nil, d.err
	}

	key := r.Keyer.RenderKey(payloadHash, m.renderKeyOpts())
	return r.throughCache(ctx, key, m.ImageFiles, refresh, func() (*Output, error) {
		return RenderMessage(d.field.Samples, d.field.Missing(), *m, logger)
	})
}

// throughCache returns the render stored under key, or calls build and
// stores its result. A refresh skips the lookup but still stores.
func (r *Runner) throughCache(ctx context.Context, key string, files []string, refresh bool, build func() (*Output, error)) (*Output, error) {
	if !refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if out, err := unmarshalRender(data, files); err == nil {
				observability.Cache().OnCacheHit(ctx, "render")
				return out, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "render")
	}

	out, err := build()
	if err != nil {
		return nil, err
	}

	if data, err := marshalRender(out); err == nil {
		if err := r.Cache.Set(ctx, key, data, DefaultRenderTTL); err == nil {
			observability.Cache().OnCacheSet(ctx, "render", len(data))
		}
	}
	return out, nil
}

// ExecuteComposite renders the typed reflectivity composite described by
// opts. Both products are fetched concurrently; a failure of either fails
// the run.
func (r *Runner) ExecuteComposite(ctx context.Context, opts CompositeOptions) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := opts.Logger

	start := time.Now()
	result := &Result{RunID: uuid.New()}
	logger = logger.With("run", result.RunID.String()[:8])

	// Stage 1: Fetch and decode both products
	var types, refl *grib.Field
	var typesHash, reflHash string
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range []struct {
		url  string
		dst  **grib.Field
		hash *string
	}{{opts.TypeURL, &types, &typesHash}, {opts.ReflURL, &refl, &reflHash}} {
		g.Go(func() error {
			payload, err := r.Fetcher.Fetch(gctx, source.Request{
				URL:     p.url,
				Gzipped: opts.Gzipped,
				Timeout: opts.Timeout,
				Refresh: opts.Refresh,
			})
			if err != nil {
				return fmt.Errorf("fetch %s: %w", p.url, err)
			}
			d := r.decode(gctx, payload.Data, 0)
			if d.err != nil {
				return fmt.Errorf("%s: %w", p.url, d.err)
			}
			*p.dst = d.field
			*p.hash = payload.Hash
			return nil
		})
	}
	err := g.Wait()
	result.Stats.FetchTime = time.Since(start)
	if err != nil {
		r.record(ctx, opts.Title, opts.ReflURL, start, result, err)
		return nil, err
	}

	// Stage 2: Render
	renderStart := time.Now()
	m := opts.message()
	observability.Pipeline().OnRenderStart(ctx, m.ImageFiles[0])
	key := r.Keyer.RenderKey(reflHash, opts.renderKeyOpts(typesHash))
	out, err := r.throughCache(ctx, key, m.ImageFiles, opts.Refresh, func() (*Output, error) {
		return r.renderComposite(types, refl, &opts, logger)
	})
	if err == nil {
		err = writeImages(out)
	}
	observability.Pipeline().OnRenderComplete(ctx, m.ImageFiles[0], time.Since(renderStart), err)
	result.Stats.RenderTime = time.Since(renderStart)
	if err != nil {
		result.Outputs = []*Output{{Files: m.ImageFiles, Err: err}}
		result.Stats.Failed = 1
		r.record(ctx, opts.Title, opts.ReflURL, start, result, nil)
		return result, fmt.Errorf("render composite: %w", err)
	}
	result.Outputs = []*Output{out}

	// Stage 3: Publish
	if opts.PlaceFile != "" {
		if err := writePlacefile(opts.PlaceFile, opts.Title, opts.RefreshSeconds, opts.ImageURL, result.Outputs); err != nil {
			r.record(ctx, opts.Title, opts.ReflURL, start, result, err)
			return result, fmt.Errorf("placefile: %w", err)
		}
	}
	r.record(ctx, opts.Title, opts.ReflURL, start, result, nil)
	logger.Info("composite complete", "files", len(out.Files), "cached", out.FromCache, "duration", time.Since(start))
	return result, nil
}

func (r *Runner) renderComposite(types, refl *grib.Field, opts *CompositeOptions, logger *log.Logger) (*Output, error) {
	values, area, err := raster.Rasterize(refl.Samples, raster.Options{
		Width:   opts.Width,
		Height:  opts.Height,
		Mode:    opts.Mode,
		Minimum: opts.Minimum,
		Missing: refl.Missing(),
		Area:    opts.Area,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}

	// The category grid is pinned to the value grid's box so that the two
	// line up pixel for pixel.
	categories, catArea, err := raster.Rasterize(types.Samples, raster.Options{
		Width:   opts.Width,
		Height:  opts.Height,
		Mode:    raster.NearestFast,
		Missing: types.Missing(),
		Area:    &area,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	img, err := composite.Classify(values, categories, area, catArea, composite.PrecipFlagBands(), opts.palettes())
	if err != nil {
		return nil, err
	}

	out, err := encodeTiles(img, area, values.Projector, len(opts.ImageFiles) == 4)
	if err != nil {
		return nil, err
	}
	out.Files = opts.ImageFiles
	out.Stats = values.Stats
	return out, nil
}

func writePlacefile(path, title string, refresh int, baseURL string, outputs []*Output) error {
	pf := placefile.Placefile{Title: title, RefreshSeconds: refresh}
	for _, out := range outputs {
		if out.Err != nil {
			continue
		}
		for i, file := range out.Files {
			pf.Images = append(pf.Images, placefile.Image{URL: imageRef(baseURL, file), Area: out.Areas[i]})
		}
	}
	return placefile.WriteFile(path, pf)
}

// record saves an archive record for the run. Archive failures are logged
// and otherwise ignored.
func (r *Runner) record(ctx context.Context, title, url string, start time.Time, result *Result, runErr error) {
	rec := archive.Record{
		ID:        result.RunID.String(),
		Title:     title,
		URL:       url,
		StartedAt: start.UTC(),
		Duration:  time.Since(start),
	}
	if runErr != nil {
		rec.Error = errors.UserMessage(runErr)
	}
	for _, out := range result.Outputs {
		o := archive.OutputRecord{Files: out.Files, Areas: out.Areas}
		if out.Err != nil {
			o.Error = out.Err.Error()
		}
		rec.Outputs = append(rec.Outputs, o)
	}
	if err := r.Archive.Save(ctx, rec); err != nil {
		r.Logger.Warn("archive run failed", "run", rec.ID, "err", err)
	}
}

// Close releases the runner's caches and archive.
func (r *Runner) Close() error {
	var errs []error
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.Fetcher != nil && r.Fetcher.Cache != nil && r.Fetcher.Cache != r.Cache {
		errs = append(errs, r.Fetcher.Cache.Close())
	}
	if r.Archive != nil {
		errs = append(errs, r.Archive.Close())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
