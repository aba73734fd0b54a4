// Package observability lets the binary observe fetches, decodes, renders,
// cache traffic and HTTP calls without the libraries knowing who listens.
//
// Libraries emit events through the package-level accessors:
//
//	observability.Pipeline().OnFetchStart(ctx, url)
//	// ... fetch ...
//	observability.Pipeline().OnFetchComplete(ctx, url, len(payload), time.Since(start), err)
//
// The binary registers listeners once at startup. Until then every event
// goes to a no-op implementation:
//
//	hooks := observability.LogHooks{Logger: logger}
//	observability.SetPipelineHooks(hooks)
//	observability.SetCacheHooks(hooks)
package observability

import (
	"context"
	"sync"
	"time"
)

// PipelineHooks receives events from the render pipeline.
type PipelineHooks interface {
	OnFetchStart(ctx context.Context, url string)
	OnFetchComplete(ctx context.Context, url string, size int, duration time.Duration, err error)

	// OnDecodeComplete fires once per GRIB message used.
	OnDecodeComplete(ctx context.Context, offset int, samples int, duration time.Duration, err error)

	// Render events fire once per output; output names its first image file.
	OnRenderStart(ctx context.Context, output string)
	OnRenderComplete(ctx context.Context, output string, duration time.Duration, err error)
}

// CacheHooks receives payload and render cache events. keyType is
// "payload" or "render".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives events from outgoing HTTP requests.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError reports a request that produced no response.
	OnError(ctx context.Context, method, host, path string, err error)
}

// NoopPipelineHooks ignores every pipeline event. Embed it to implement
// only some of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnFetchStart(context.Context, string)                               {}
func (NoopPipelineHooks) OnFetchComplete(context.Context, string, int, time.Duration, error) {}
func (NoopPipelineHooks) OnDecodeComplete(context.Context, int, int, time.Duration, error)   {}
func (NoopPipelineHooks) OnRenderStart(context.Context, string)                              {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, string, time.Duration, error)     {}

// NoopCacheHooks ignores every cache event.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks ignores every HTTP event.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// registry holds the registered listeners.
type registry struct {
	mu       sync.RWMutex
	pipeline PipelineHooks
	cache    CacheHooks
	http     HTTPHooks
}

var hooks = newRegistry()

func newRegistry() *registry {
	return &registry{
		pipeline: NoopPipelineHooks{},
		cache:    NoopCacheHooks{},
		http:     NoopHTTPHooks{},
	}
}

// SetPipelineHooks registers h for pipeline events. A nil h is ignored.
func SetPipelineHooks(h PipelineHooks) {
	if h == nil {
		return
	}
	hooks.mu.Lock()
	hooks.pipeline = h
	hooks.mu.Unlock()
}

// SetCacheHooks registers h for cache events. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h == nil {
		return
	}
	hooks.mu.Lock()
	hooks.cache = h
	hooks.mu.Unlock()
}

// SetHTTPHooks registers h for HTTP events. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h == nil {
		return
	}
	hooks.mu.Lock()
	hooks.http = h
	hooks.mu.Unlock()
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.pipeline
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.cache
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.http
}

// Reset restores the no-op hooks. Tests use it to undo registrations.
func Reset() {
	fresh := newRegistry()
	hooks.mu.Lock()
	hooks.pipeline, hooks.cache, hooks.http = fresh.pipeline, fresh.cache, fresh.http
	hooks.mu.Unlock()
}
