package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AdenKoperczak/grib2pf/pkg/archive"
	"github.com/AdenKoperczak/grib2pf/pkg/cache"
	"github.com/AdenKoperczak/grib2pf/pkg/config"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	expected := filepath.Join(home, ".cache", appName)
	if dir != expected {
		t.Errorf("cacheDir() = %q, want %q", dir, expected)
	}
	if !strings.HasSuffix(dir, "grib2pf") {
		t.Errorf("cacheDir() = %q, should end with 'grib2pf'", dir)
	}
}

func TestCacheDirXDG(t *testing.T) {
	customCache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", customCache)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	expected := filepath.Join(customCache, appName)
	if dir != expected {
		t.Errorf("cacheDir() with XDG_CACHE_HOME = %q, want %q", dir, expected)
	}
}

func TestNewCache(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	ctx := context.Background()

	c, err := newCache(ctx, config.Cache{Disabled: true})
	if err != nil {
		t.Fatalf("newCache(disabled) error: %v", err)
	}
	if _, ok := c.(*cache.NullCache); !ok {
		t.Errorf("newCache(disabled) = %T, want *cache.NullCache", c)
	}

	dir := t.TempDir()
	c, err = newCache(ctx, config.Cache{Dir: dir})
	if err != nil {
		t.Fatalf("newCache(dir) error: %v", err)
	}
	fc, ok := c.(*cache.FileCache)
	if !ok {
		t.Fatalf("newCache(dir) = %T, want *cache.FileCache", c)
	}
	if fc.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", fc.Dir(), dir)
	}

	c, err = newCache(ctx, config.Cache{})
	if err != nil {
		t.Fatalf("newCache() error: %v", err)
	}
	if fc, ok := c.(*cache.FileCache); !ok || !strings.HasSuffix(fc.Dir(), appName) {
		t.Errorf("newCache() = %T, want a file cache under %s", c, appName)
	}
}

func TestNewArchiveDefaultsToMemory(t *testing.T) {
	store, err := newArchive(context.Background(), config.Archive{})
	if err != nil {
		t.Fatalf("newArchive() error: %v", err)
	}
	if _, ok := store.(*archive.MemoryStore); !ok {
		t.Errorf("newArchive() = %T, want *archive.MemoryStore", store)
	}
}

func TestCacheCommands(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := fc.Set(context.Background(), "payload:a", []byte("grib"), 0); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		root := New(io.Discard, LogInfo).RootCommand()
		root.SetOut(&out)
		root.SetErr(io.Discard)
		root.SetArgs(append([]string{"cache"}, args...))
		err := root.Execute()
		return out.String(), err
	}

	out, err := run("path", "--dir", dir)
	if err != nil {
		t.Fatalf("cache path error: %v", err)
	}
	if strings.TrimSpace(out) != dir {
		t.Errorf("cache path = %q, want %q", strings.TrimSpace(out), dir)
	}

	for _, sub := range []string{"info", "prune", "clear"} {
		if _, err := run(sub, "--dir", dir); err != nil {
			t.Errorf("cache %s error: %v", sub, err)
		}
	}
	if st, _ := fc.Stats(time.Now()); st.Entries != 0 {
		t.Errorf("entries after clear = %d, want 0", st.Entries)
	}

	if _, err := run("info", "--dir", filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("cache info on a missing dir error: %v", err)
	}
}
