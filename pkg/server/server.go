// Package server serves a placefile and its images over HTTP and keeps
// them fresh by re-running the pipeline on a fixed period.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AdenKoperczak/grib2pf/pkg/archive"
	"github.com/AdenKoperczak/grib2pf/pkg/errors"
	"github.com/AdenKoperczak/grib2pf/pkg/pipeline"
)

// RunFunc performs one pipeline run.
type RunFunc func(ctx context.Context) (*pipeline.Result, error)

// Server publishes the output of a RunFunc.
type Server struct {
	run       RunFunc
	placeFile string
	title     string
	archive   archive.Store
	logger    *log.Logger

	mu      sync.RWMutex
	images  map[string]string // base name → path
	lastRun time.Time
	lastErr error
}

// Options configures a Server.
type Options struct {
	// PlaceFile is the placefile the run writes.
	PlaceFile string
	// Title keys the archive records reported by /status.
	Title   string
	Archive archive.Store
	Logger  *log.Logger
}

// New returns a server publishing what run produces.
func New(run RunFunc, opts Options) *Server {
	if opts.Archive == nil {
		opts.Archive = archive.NullStore{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Server{
		run:       run,
		placeFile: opts.PlaceFile,
		title:     opts.Title,
		archive:   opts.Archive,
		logger:    opts.Logger,
		images:    map[string]string{},
	}
}

// Handler returns the HTTP routes:
//
//	GET /placefile       the placefile text
//	GET /images/{name}   an image referenced by the last successful run
//	GET /healthz         liveness
//	GET /status          the latest archive record as JSON
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/placefile", s.handlePlacefile)
	r.Get("/images/{name}", s.handleImage)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handlePlacefile(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.placeFile)
	if err != nil {
		http.Error(w, "placefile not generated yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.RLock()
	path, ok := s.images[name]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

type status struct {
	LastRun time.Time       `json:"lastRun"`
	Error   string          `json:"error,omitempty"`
	Record  *archive.Record `json:"record,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := status{LastRun: s.lastRun}
	if s.lastErr != nil {
		st.Error = errors.UserMessage(s.lastErr)
	}
	s.mu.RUnlock()

	rec, err := s.archive.Latest(r.Context(), s.title)
	switch {
	case err == nil:
		st.Record = rec
	case errors.Is(err, errors.ErrCodeNotFound):
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	code := http.StatusOK
	if st.LastRun.IsZero() && st.Record == nil {
		code = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(st)
}

// RunOnce performs one run and publishes its images.
func (s *Server) RunOnce(ctx context.Context) error {
	result, err := s.run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = time.Now()
	s.lastErr = err
	if result != nil {
		for _, out := range result.Succeeded() {
			for _, f := range out.Files {
				s.images[filepath.Base(f)] = f
			}
		}
	}
	return err
}

// Regenerate runs immediately and then every period until ctx is done.
// Failed runs are logged and retried on the next tick. A run that takes
// longer than period is followed immediately by the next one.
func (s *Server) Regenerate(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "regeneration period must be positive")
	}
	for {
		start := time.Now()
		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("regeneration failed", "err", err)
		}

		wait := every - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		s.logger.Debug("next regeneration", "in", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ListenAndServe serves Handler on addr until ctx is done, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
