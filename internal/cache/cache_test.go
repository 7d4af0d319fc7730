// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/testhelper"
)

const testTTL = time.Minute

var testFix = location.NewFix(52.5129, 13.391, location.TagGeoClue, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)).
	WithAccuracy(25)

type mockProvider struct {
	fix   location.Fix
	err   error
	calls int
}

func (p *mockProvider) Name() string { return location.TagGeoClue }

func (p *mockProvider) Locate(context.Context, time.Duration) (location.Fix, error) {
	p.calls++
	return p.fix, p.err
}

type failingStore struct {
	sets int
}

func (s *failingStore) Get(context.Context, string) (location.Fix, bool, error) {
	return location.Fix{}, false, errors.New("intentionally failing")
}

func (s *failingStore) Set(context.Context, string, location.Fix, time.Duration) error {
	s.sets++
	return errors.New("intentionally failing")
}

func assertSameFix(t *testing.T, want, got location.Fix) {
	t.Helper()
	if got.Latitude != want.Latitude || got.Longitude != want.Longitude {
		t.Errorf("expected %f,%f, got %f,%f", want.Latitude, want.Longitude, got.Latitude, got.Longitude)
	}
	if got.Provider != want.Provider {
		t.Errorf("expected provider %s, got %s", want.Provider, got.Provider)
	}
	if !got.ObservedAt.Equal(want.ObservedAt) {
		t.Errorf("expected observation time %s, got %s", want.ObservedAt, got.ObservedAt)
	}
	wantAcc, wantOK := want.AccuracyMeters()
	gotAcc, gotOK := got.AccuracyMeters()
	if wantAcc != gotAcc || wantOK != gotOK {
		t.Errorf("expected accuracy %f (%t), got %f (%t)", wantAcc, wantOK, gotAcc, gotOK)
	}
}

func TestCachedProvider_Locate(t *testing.T) {
	t.Run("second lookup is served from the cache", func(t *testing.T) {
		provider := &mockProvider{fix: testFix}
		cached := NewCachedProvider(provider, NewMemoryStore(), testTTL, nil)
		if cached.Name() != provider.Name() {
			t.Errorf("expected name %s, got %s", provider.Name(), cached.Name())
		}
		for i := 0; i < 3; i++ {
			fix, err := cached.Locate(t.Context(), time.Second)
			if err != nil {
				t.Fatalf("failed to locate: %s", err)
			}
			assertSameFix(t, testFix, fix)
		}
		if provider.calls != 1 {
			t.Errorf("expected provider to be called once, got %d", provider.calls)
		}
	})
	t.Run("expired entries are refreshed", func(t *testing.T) {
		now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		store := NewMemoryStore()
		store.now = func() time.Time { return now }
		provider := &mockProvider{fix: testFix}
		cached := NewCachedProvider(provider, store, testTTL, nil)

		if _, err := cached.Locate(t.Context(), time.Second); err != nil {
			t.Fatalf("failed to locate: %s", err)
		}
		now = now.Add(testTTL)
		if _, err := cached.Locate(t.Context(), time.Second); err != nil {
			t.Fatalf("failed to locate: %s", err)
		}
		if provider.calls != 2 {
			t.Errorf("expected provider to be called twice, got %d", provider.calls)
		}
	})
	t.Run("failures are not cached", func(t *testing.T) {
		provider := &mockProvider{err: location.NewError(location.KindTimeout, location.TagGeoClue, "")}
		store := NewMemoryStore()
		cached := NewCachedProvider(provider, store, testTTL, nil)
		for i := 0; i < 2; i++ {
			if _, err := cached.Locate(t.Context(), time.Second); !errors.Is(err, location.ErrTimeout) {
				t.Fatalf("expected error to be %s, got %v", location.ErrTimeout, err)
			}
		}
		if provider.calls != 2 {
			t.Errorf("expected provider to be called twice, got %d", provider.calls)
		}
		if _, ok, _ := store.Get(t.Context(), location.TagGeoClue); ok {
			t.Error("expected no cache entry")
		}
	})
	t.Run("store failures don't fail the lookup", func(t *testing.T) {
		provider := &mockProvider{fix: testFix}
		store := &failingStore{}
		fix, err := NewCachedProvider(provider, store, testTTL, nil).Locate(t.Context(), time.Second)
		if err != nil {
			t.Fatalf("failed to locate: %s", err)
		}
		assertSameFix(t, testFix, fix)
		if store.sets != 1 {
			t.Errorf("expected one store attempt, got %d", store.sets)
		}
	})
	t.Run("zero TTL uses the default", func(t *testing.T) {
		cached := NewCachedProvider(&mockProvider{}, NewMemoryStore(), 0, nil)
		if cached.ttl != DefaultTTL {
			t.Errorf("expected TTL %s, got %s", DefaultTTL, cached.ttl)
		}
	})
}

func TestFileStore(t *testing.T) {
	t.Run("stored fix is read back", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create file store: %s", err)
		}
		if err = store.Set(t.Context(), location.TagGeoClue, testFix, testTTL); err != nil {
			t.Fatalf("failed to store fix: %s", err)
		}
		fix, ok, err := store.Get(t.Context(), location.TagGeoClue)
		if err != nil {
			t.Fatalf("failed to read fix: %s", err)
		}
		if !ok {
			t.Fatal("expected a cache hit")
		}
		assertSameFix(t, testFix, fix)

		info, err := os.Stat(filepath.Join(store.Dir(), location.TagGeoClue+".json"))
		if err != nil {
			t.Fatalf("failed to stat cache file: %s", err)
		}
		if info.Mode().Perm() != filePerm {
			t.Errorf("expected file mode %o, got %o", filePerm, info.Mode().Perm())
		}
	})
	t.Run("missing accuracy stays absent", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create file store: %s", err)
		}
		ipFix := location.NewFix(37.77, -122.42, location.TagIP, time.Now())
		if err = store.Set(t.Context(), location.TagIP, ipFix, testTTL); err != nil {
			t.Fatalf("failed to store fix: %s", err)
		}
		fix, ok, err := store.Get(t.Context(), location.TagIP)
		if err != nil || !ok {
			t.Fatalf("expected a cache hit, got %t, %v", ok, err)
		}
		if fix.HasAccuracy() {
			t.Error("expected accuracy to be absent")
		}
	})
	t.Run("expired fix is a miss", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create file store: %s", err)
		}
		now := time.Now()
		store.now = func() time.Time { return now }
		if err = store.Set(t.Context(), location.TagGeoClue, testFix, testTTL); err != nil {
			t.Fatalf("failed to store fix: %s", err)
		}
		now = now.Add(testTTL * 2)
		if _, ok, err := store.Get(t.Context(), location.TagGeoClue); ok || err != nil {
			t.Errorf("expected a miss, got %t, %v", ok, err)
		}
	})
	t.Run("missing directory is a miss", func(t *testing.T) {
		store, err := NewFileStore(filepath.Join(t.TempDir(), "does", "not", "exist"))
		if err != nil {
			t.Fatalf("failed to create file store: %s", err)
		}
		if _, ok, err := store.Get(t.Context(), location.TagIP); ok || err != nil {
			t.Errorf("expected a miss, got %t, %v", ok, err)
		}
	})
	t.Run("corrupt file fails", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "ip.json"), []byte("{broken"), 0o600); err != nil {
			t.Fatalf("failed to write cache file: %s", err)
		}
		store, err := NewFileStore(dir)
		if err != nil {
			t.Fatalf("failed to create file store: %s", err)
		}
		if _, _, err = store.Get(t.Context(), location.TagIP); err == nil {
			t.Error("expected corrupt cache file to fail")
		}
	})
	t.Run("invalid key fails", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create file store: %s", err)
		}
		if err = store.Set(t.Context(), "../escape", testFix, testTTL); err == nil {
			t.Error("expected invalid key to fail")
		}
	})
	t.Run("empty directory uses the user cache directory", func(t *testing.T) {
		t.Setenv("XDG_CACHE_HOME", t.TempDir())
		store, err := NewFileStore("")
		if err != nil {
			t.Skipf("no user cache directory available: %s", err)
		}
		if filepath.Base(store.Dir()) != "geo-loc" {
			t.Errorf("expected cache directory to end in geo-loc, got %s", store.Dir())
		}
	})
}

func TestRedisStore(t *testing.T) {
	t.Run("new redis store without address fails", func(t *testing.T) {
		if _, err := NewRedisStore(RedisOptions{}); err == nil {
			t.Error("expected redis store creation to fail")
		}
	})
	t.Run("keys are scoped to the host", func(t *testing.T) {
		store, err := NewRedisStore(RedisOptions{Addr: "127.0.0.1:1", Host: "alpha"})
		if err != nil {
			t.Fatalf("failed to create redis store: %s", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		if got := store.key(location.TagGeoClue); got != "geo-loc:fix:alpha:geoclue" {
			t.Errorf("expected key %q, got %q", "geo-loc:fix:alpha:geoclue", got)
		}
	})
	t.Run("host defaults to the hostname", func(t *testing.T) {
		hostname, err := os.Hostname()
		if err != nil {
			t.Skipf("hostname not available: %s", err)
		}
		store, err := NewRedisStore(RedisOptions{Addr: "127.0.0.1:1"})
		if err != nil {
			t.Fatalf("failed to create redis store: %s", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		if want := RedisKeyPrefix + hostname + ":ip"; store.key(location.TagIP) != want {
			t.Errorf("expected key %q, got %q", want, store.key(location.TagIP))
		}
	})
	t.Run("unreachable redis falls through to the provider", func(t *testing.T) {
		store, err := NewRedisStore(RedisOptions{Addr: "127.0.0.1:1"})
		if err != nil {
			t.Fatalf("failed to create redis store: %s", err)
		}
		t.Cleanup(func() { _ = store.Close() })

		provider := &mockProvider{fix: testFix}
		ctx, cancel := context.WithTimeout(t.Context(), time.Second*5)
		defer cancel()
		fix, err := NewCachedProvider(provider, store, testTTL, nil).Locate(ctx, time.Second)
		if err != nil {
			t.Fatalf("failed to locate: %s", err)
		}
		assertSameFix(t, testFix, fix)
		if provider.calls != 1 {
			t.Errorf("expected provider to be called once, got %d", provider.calls)
		}
	})
	t.Run("stored fix is read back", func(t *testing.T) {
		testhelper.PerformIntegrationTests(t)
		addr := os.Getenv("GEOLOC_TEST_REDIS_ADDR")
		if addr == "" {
			t.Skip("GEOLOC_TEST_REDIS_ADDR is not set")
		}
		store, err := NewRedisStore(RedisOptions{Addr: addr})
		if err != nil {
			t.Fatalf("failed to create redis store: %s", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		if err = store.Ping(t.Context()); err != nil {
			t.Fatalf("failed to ping redis: %s", err)
		}
		if err = store.Set(t.Context(), "test", testFix, time.Second*10); err != nil {
			t.Fatalf("failed to store fix: %s", err)
		}
		fix, ok, err := store.Get(t.Context(), "test")
		if err != nil || !ok {
			t.Fatalf("expected a cache hit, got %t, %v", ok, err)
		}
		assertSameFix(t, testFix, fix)

		other, err := NewRedisStore(RedisOptions{Addr: addr, Host: "other-host"})
		if err != nil {
			t.Fatalf("failed to create redis store: %s", err)
		}
		t.Cleanup(func() { _ = other.Close() })
		if _, ok, err = other.Get(t.Context(), "test"); err != nil || ok {
			t.Errorf("expected another host to miss, got %t, %v", ok, err)
		}
	})
}
