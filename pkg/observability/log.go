package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks reports pipeline, cache and HTTP events to a logger at debug
// level, and failures at warn level. The CLI installs it for serve and --verbose
// so that every regeneration leaves a trace without a metrics backend.
type LogHooks struct {
	Logger *log.Logger
}

var (
	_ PipelineHooks = LogHooks{}
	_ CacheHooks    = LogHooks{}
	_ HTTPHooks     = LogHooks{}
)

func (h LogHooks) OnFetchStart(_ context.Context, url string) {
	h.Logger.Debug("fetch started", "url", url)
}

func (h LogHooks) OnFetchComplete(_ context.Context, url string, size int, d time.Duration, err error) {
	if err != nil {
		h.Logger.Warn("fetch failed", "url", url, "duration", d, "err", err)
		return
	}
	h.Logger.Debug("fetch complete", "url", url, "bytes", size, "duration", d)
}

func (h LogHooks) OnDecodeComplete(_ context.Context, offset, samples int, d time.Duration, err error) {
	if err != nil {
		h.Logger.Warn("decode failed", "offset", offset, "err", err)
		return
	}
	h.Logger.Debug("decoded message", "offset", offset, "samples", samples, "duration", d)
}

func (h LogHooks) OnRenderStart(_ context.Context, output string) {
	h.Logger.Debug("render started", "output", output)
}

func (h LogHooks) OnRenderComplete(_ context.Context, output string, d time.Duration, err error) {
	if err != nil {
		h.Logger.Warn("render failed", "output", output, "err", err)
		return
	}
	h.Logger.Debug("render complete", "output", output, "duration", d)
}

func (h LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.Logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.Logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.Logger.Warn("http request failed", "method", method, "host", host, "path", path, "err", err)
}
