package token

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
)

const feed = `{
  "name": "Test List",
  "version": {"major": 1, "minor": 2, "patch": 3},
  "tokens": [
    {"chainId": 10143, "address": "MON", "name": "Monad", "symbol": "MON", "decimals": 18},
    {"chainId": 10143, "address": "0x00000000000000000000000000000000000000aa", "name": "Token A", "symbol": "TKA", "decimals": 6},
    {"chainId": 1, "address": "0x00000000000000000000000000000000000000bb", "name": "Other chain", "symbol": "OTH", "decimals": 18},
    {"chainId": 10143, "address": "0x00000000000000000000000000000000000000cc", "name": "Token C", "symbol": "TKC", "decimals": 18}
  ]
}`

func testNative() Token {
	return NewNative(10143, "MON", "Monad", 18, "")
}

func newTestLister(url string, opts ...ListerOption) *Lister {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]ListerOption{WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })}, opts...)
	return NewLister(logger, url, 10143, testNative(), opts...)
}

func TestFetch_NormalizesFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, feed)
	}))
	defer srv.Close()

	res := newTestLister(srv.URL).Fetch(context.Background())
	if res.Fallback {
		t.Fatalf("unexpected fallback")
	}
	if res.Name != "Test List" || res.Version.Minor != 2 {
		t.Fatalf("unexpected header: %+v", res)
	}
	if len(res.Tokens) != 3 {
		t.Fatalf("expected 3 tokens (native + 2), got %d: %+v", len(res.Tokens), res.Tokens)
	}
	if !res.Tokens[0].Native || res.Tokens[0].Symbol != "MON" {
		t.Fatalf("native entry must come first, got %+v", res.Tokens[0])
	}
	a, ok := res.Find(common.HexToAddress("0xaa"))
	if !ok || a.Decimals != 6 {
		t.Fatalf("Find(TKA): %+v %v", a, ok)
	}
	if _, ok := res.Find(common.HexToAddress("0xbb")); ok {
		t.Fatalf("entry for another chain must be filtered")
	}
}

func TestFetch_CachesFirstSuccess(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, feed)
	}))
	defer srv.Close()

	l := newTestLister(srv.URL)
	l.Fetch(context.Background())
	l.Fetch(context.Background())
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected a single request, got %d", n)
	}
}

func TestFetch_FallbackOnNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	var fallbacks atomic.Int32
	res := newTestLister(url, WithFallbackHook(func() { fallbacks.Add(1) })).Fetch(context.Background())
	if !res.Fallback {
		t.Fatalf("expected fallback list")
	}
	if len(res.Tokens) != 1 || !res.Tokens[0].Native {
		t.Fatalf("fallback must hold only the native entry, got %+v", res.Tokens)
	}
	if fallbacks.Load() != 1 {
		t.Fatalf("fallback hook not called")
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, feed)
	}))
	defer srv.Close()

	res := newTestLister(srv.URL).Fetch(context.Background())
	if res.Fallback {
		t.Fatalf("expected success on third attempt")
	}
	if n := hits.Load(); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestFetch_NoRetryOnClientError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := newTestLister(srv.URL).Fetch(context.Background())
	if !res.Fallback {
		t.Fatalf("expected fallback")
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestFetch_FallbackCooldown(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	var fallbacks atomic.Int32
	l := newTestLister(srv.URL,
		WithCooldown(time.Minute),
		withListClock(func() time.Time { return now }),
		WithFallbackHook(func() { fallbacks.Add(1) }))

	for i := 0; i < 3; i++ {
		if res := l.Fetch(context.Background()); !res.Fallback {
			t.Fatalf("expected fallback list")
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("fallback must be reused during the cooldown, got %d requests", n)
	}
	if n := fallbacks.Load(); n != 1 {
		t.Fatalf("fallback hook: got %d calls want 1", n)
	}

	now = now.Add(2 * time.Minute)
	l.Fetch(context.Background())
	if n := hits.Load(); n != 2 {
		t.Fatalf("feed must be retried after the cooldown, got %d requests", n)
	}
}

func TestFetch_HangingFeed(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	l := newTestLister(srv.URL, WithLoadTimeout(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	res := l.Fetch(ctx)
	if took := time.Since(start); took > 5*time.Second {
		t.Fatalf("Fetch must return when its context ends, took %s", took)
	}
	if !res.Fallback {
		t.Fatalf("expected the fallback list while the feed hangs")
	}

	// a second caller joins the load in flight instead of starting another
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	l.Fetch(ctx2)
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected one request in flight, got %d", n)
	}

	if res := l.Cached(); !res.Fallback || len(res.Tokens) != 1 {
		t.Fatalf("Cached must not block and must offer the native entry: %+v", res)
	}
}
