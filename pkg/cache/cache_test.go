package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache.Get should always return miss")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "nested", "cache"))
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	defer c.Close()

	if _, hit, err := c.Get(ctx, "missing"); hit || err != nil {
		t.Errorf("Get(missing) = hit %v, err %v", hit, err)
	}

	want := []byte{0x1f, 0x8b, 0, 1, 2}
	if err := c.Set(ctx, "payload", want, time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, hit, err := c.Get(ctx, "payload")
	if err != nil || !hit {
		t.Fatalf("Get = hit %v, err %v", hit, err)
	}
	if string(got) != string(want) {
		t.Errorf("Get = %v, want %v", got, want)
	}

	if err := c.Delete(ctx, "payload"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "payload"); hit {
		t.Error("entry survived Delete")
	}
	if err := c.Delete(ctx, "payload"); err != nil {
		t.Errorf("Delete of missing key error: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Set(ctx, "short", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "short"); hit {
		t.Error("expired entry reported as hit")
	}
	if _, err := os.Stat(c.path("short")); !os.IsNotExist(err) {
		t.Error("expired entry was not removed")
	}

	if err := c.Set(ctx, "forever", []byte("y"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("entry without ttl reported as miss")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path := c.path("bad")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "bad"); hit || err != nil {
		t.Errorf("Get(corrupt) = hit %v, err %v", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear() = %d, want 3", n)
	}
	entries, _ := os.ReadDir(c.Dir())
	if len(entries) != 0 {
		t.Errorf("cache dir holds %d entries after Clear", len(entries))
	}
}

func TestFileCacheStatsAndPrune(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "fresh", []byte("a"), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "stale", []byte("b"), time.Minute); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)

	st, err := c.Stats(later)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if st.Entries != 2 || st.Expired != 1 {
		t.Errorf("Stats() = %+v, want 2 entries with 1 expired", st)
	}
	if st.Bytes <= 0 {
		t.Errorf("Stats().Bytes = %d, want > 0", st.Bytes)
	}

	n, err := c.Prune(later)
	if err != nil {
		t.Fatalf("Prune error: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if _, hit, _ := c.Get(ctx, "fresh"); !hit {
		t.Error("Prune removed an entry without expiry")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length = %d, want 64", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	pk := k.PayloadKey("https://example.com/refl.grib2.gz")
	if !strings.HasPrefix(pk, "payload:") || len(pk) != len("payload:")+64 {
		t.Errorf("PayloadKey = %q", pk)
	}
	if pk == k.PayloadKey("https://example.com/other.grib2.gz") {
		t.Error("different URLs share a payload key")
	}

	min5 := 5.0
	base := RenderKeyOpts{Palette: "abc", Width: 1920, Height: 1080, Mode: "average"}
	variants := []RenderKeyOpts{
		{Palette: "abd", Width: 1920, Height: 1080, Mode: "average"},
		{Palette: "abc", Width: 1920, Height: 1081, Mode: "average"},
		{Palette: "abc", Width: 1920, Height: 1080, Mode: "nearest"},
		{Palette: "abc", Width: 1920, Height: 1080, Mode: "average", Minimum: &min5},
		{Palette: "abc", Width: 1920, Height: 1080, Mode: "average", Contour: true},
		{Palette: "abc", Width: 1920, Height: 1080, Mode: "average", Tiled: true},
		{Palette: "abc", Width: 1920, Height: 1080, Mode: "average", Offset: 100},
		{Palette: "abc", Width: 1920, Height: 1080, Mode: "average", Area: &[4]float64{-130, -60, 55, 20}},
		{Palette: "abc", Width: 1920, Height: 1080, Mode: "average", Category: "type-hash"},
	}
	baseKey := k.RenderKey("payload-hash", base)
	if baseKey != k.RenderKey("payload-hash", base) {
		t.Error("RenderKey should be deterministic")
	}
	if baseKey == k.RenderKey("other-hash", base) {
		t.Error("different payloads share a render key")
	}
	for i, v := range variants {
		if k.RenderKey("payload-hash", v) == baseKey {
			t.Errorf("variant %d shares the base render key", i)
		}
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "grib2pf:refl:")

	if got, want := scoped.PayloadKey("u"), "grib2pf:refl:"+inner.PayloadKey("u"); got != want {
		t.Errorf("PayloadKey = %q, want %q", got, want)
	}
	opts := RenderKeyOpts{Width: 10}
	if got, want := scoped.RenderKey("h", opts), "grib2pf:refl:"+inner.RenderKey("h", opts); got != want {
		t.Errorf("RenderKey = %q, want %q", got, want)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "prefix:")
	if got, want := scoped.PayloadKey("u"), "prefix:"+NewDefaultKeyer().PayloadKey("u"); got != want {
		t.Errorf("PayloadKey = %q, want %q", got, want)
	}
}

func TestNewRedisCacheBadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "http://not-redis")
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("NewRedisCache(bad url) error = %v, want %s", err, errors.ErrCodeInvalidConfig)
	}
}
