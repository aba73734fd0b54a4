// Package source fetches GRIB payloads over HTTP or from disk and inflates
// gzip-compressed ones.
//
// A [Fetcher] hands back the whole inflated payload as one contiguous
// buffer. Remote fetches are retried on network errors and 5xx responses,
// and successful payloads may be cached for a short time so that several
// renders of the same product within one refresh period download it once.
package source

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"

	"github.com/AdenKoperczak/grib2pf/pkg/buildinfo"
	"github.com/AdenKoperczak/grib2pf/pkg/cache"
	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/httputil"
	"github.com/AdenKoperczak/grib2pf/pkg/observability"
)

const (
	// DefaultTimeout bounds a single fetch, retries included.
	DefaultTimeout = 30 * time.Second

	// DefaultCacheTTL is how long fetched payloads stay cached. MRMS
	// products refresh every two minutes.
	DefaultCacheTTL = time.Minute

	// initialBuffer is the starting capacity of the inflate buffer.
	initialBuffer = 4 << 20
)

var gzipMagic = []byte{0x1f, 0x8b}

// Request describes one payload to fetch.
type Request struct {
	// URL is an http(s) or file URL, or a plain filesystem path.
	URL string

	// Gzipped forces gzip inflation. Payloads ending in ".gz" or starting
	// with the gzip magic bytes are inflated regardless.
	Gzipped bool

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration

	// Refresh skips the cache lookup. The fresh payload is still stored.
	Refresh bool
}

// Payload is an inflated payload.
type Payload struct {
	URL       string
	Data      []byte
	Hash      string // hex SHA-256 of Data
	FromCache bool
}

// Fetcher retrieves payloads. The zero value is not usable; use
// NewFetcher.
type Fetcher struct {
	Client   *http.Client
	Cache    cache.Cache
	Keyer    cache.Keyer
	CacheTTL time.Duration
	Logger   *log.Logger

	// Attempts and RetryDelay control retries of remote fetches.
	Attempts   int
	RetryDelay time.Duration
}

// NewFetcher returns a Fetcher. Nil arguments select a default HTTP client,
// no caching, the default keyer and a discarding logger.
func NewFetcher(client *http.Client, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Fetcher{
		Client:     client,
		Cache:      c,
		Keyer:      keyer,
		CacheTTL:   DefaultCacheTTL,
		Logger:     logger,
		Attempts:   3,
		RetryDelay: time.Second,
	}
}

// Fetch returns the inflated payload for req.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Payload, error) {
	if req.URL == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "URL cannot be empty")
	}
	key := f.Keyer.PayloadKey(req.URL)

	if !req.Refresh {
		data, hit, err := f.Cache.Get(ctx, key)
		if err != nil {
			f.Logger.Warn("payload cache read failed", "url", req.URL, "err", err)
		}
		if hit {
			observability.Cache().OnCacheHit(ctx, "payload")
			f.Logger.Debug("payload from cache", "url", req.URL, "bytes", len(data))
			return &Payload{URL: req.URL, Data: data, Hash: cache.Hash(data), FromCache: true}, nil
		}
		observability.Cache().OnCacheMiss(ctx, "payload")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	observability.Pipeline().OnFetchStart(ctx, req.URL)
	raw, err := f.read(ctx, req.URL)
	if err == nil {
		raw, err = maybeInflate(raw, req)
	}
	observability.Pipeline().OnFetchComplete(ctx, req.URL, len(raw), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	f.Logger.Debug("fetched payload", "url", req.URL, "bytes", len(raw), "duration", time.Since(start))
	if err := f.Cache.Set(ctx, key, raw, f.CacheTTL); err != nil {
		f.Logger.Warn("payload cache write failed", "url", req.URL, "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "payload", len(raw))
	}
	return &Payload{URL: req.URL, Data: raw, Hash: cache.Hash(raw)}, nil
}

func (f *Fetcher) read(ctx context.Context, rawURL string) ([]byte, error) {
	switch {
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		if err := errors.ValidateURL(rawURL); err != nil {
			return nil, err
		}
		var body []byte
		err := httputil.Retry(ctx, f.Attempts, f.RetryDelay, func() error {
			var err error
			body, err = f.get(ctx, rawURL)
			return err
		})
		if err != nil {
			if ctx.Err() != nil && stderrors.Is(err, ctx.Err()) {
				return nil, errors.Wrap(errors.ErrCodeTimeout, err, "fetch %s", rawURL)
			}
			return nil, err
		}
		return body, nil
	case strings.HasPrefix(rawURL, "file://"):
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", rawURL)
		}
		return readFile(u.Path)
	default:
		return readFile(rawURL)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "read %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read %s", path)
	}
	return data, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", rawURL)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	start := time.Now()
	observability.HTTP().OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	resp, err := f.Client.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "GET %s", rawURL))
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(rawURL, resp); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "read body of %s", rawURL))
	}
	return buf.Bytes(), nil
}

// checkStatus maps a response status to an error. Server errors and 429
// are retried, waiting at least as long as Retry-After asks.
func checkStatus(rawURL string, resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "GET %s: status %d", rawURL, code)
	case code >= 500, code == http.StatusTooManyRequests:
		err := errors.New(errors.ErrCodeNetwork, "GET %s: status %d", rawURL, code)
		return httputil.RetryableAfter(err, httputil.RetryAfter(resp.Header, time.Now()))
	default:
		return errors.New(errors.ErrCodeNetwork, "GET %s: status %d", rawURL, code)
	}
}

// maybeInflate gunzips raw when req asks for it, the URL ends in ".gz" or
// raw starts with the gzip magic bytes.
func maybeInflate(raw []byte, req Request) ([]byte, error) {
	if !req.Gzipped && !strings.HasSuffix(req.URL, ".gz") && !bytes.HasPrefix(raw, gzipMagic) {
		return raw, nil
	}
	return Inflate(raw)
}

// Inflate decompresses a gzip stream, including concatenated members.
func Inflate(raw []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "open gzip stream")
	}
	defer zr.Close()

	var buf bytes.Buffer
	buf.Grow(max(initialBuffer, 4*len(raw)))
	if _, err := buf.ReadFrom(zr); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "inflate payload")
	}
	return buf.Bytes(), nil
}
