package token_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nulln0ne/uniswap-dex/internal/chaintest"
	"github.com/nulln0ne/uniswap-dex/internal/token"
)

func TestDirectoryLookup(t *testing.T) {
	t.Parallel()

	chain := chaintest.New(10143)
	usdc := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	broken := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	chain.AddToken(usdc, "USDC", 6)
	chain.AddToken(broken, "BRK", 9).NoDecimals = true

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	native := token.NewNative(10143, "MON", "Monad", 18, "")
	dir := token.NewDirectory(logger, native, nil, chain.Client(t))
	ctx := context.Background()

	got, err := dir.Lookup(ctx, "mon")
	if err != nil || !got.Native {
		t.Fatalf("native lookup: %+v %v", got, err)
	}

	got, err = dir.Lookup(ctx, usdc.Hex())
	if err != nil {
		t.Fatalf("lookup usdc: %v", err)
	}
	if got.Symbol != "USDC" || got.Decimals != 6 {
		t.Fatalf("unexpected usdc: %+v", got)
	}
	// second lookup is served from memory
	before := chain.Calls("decimals")
	if _, err := dir.Lookup(ctx, usdc.Hex()); err != nil {
		t.Fatalf("lookup usdc again: %v", err)
	}
	if chain.Calls("decimals") != before {
		t.Fatalf("expected cached metadata")
	}

	got, err = dir.Lookup(ctx, broken.Hex())
	if err != nil {
		t.Fatalf("lookup broken: %v", err)
	}
	if got.Decimals != token.DefaultDecimals {
		t.Fatalf("expected default decimals, got %d", got.Decimals)
	}

	if _, err := dir.Lookup(ctx, "not-a-token"); !errors.Is(err, token.ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestDirectoryLookup_HangingFeed(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	chain := chaintest.New(10143)
	usdc := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	chain.AddToken(usdc, "USDC", 6)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	native := token.NewNative(10143, "MON", "Monad", 18, "")
	lister := token.NewLister(logger, srv.URL, 10143, native,
		token.WithHTTPClient(&http.Client{Timeout: time.Minute}))
	go lister.Fetch(context.Background())
	dir := token.NewDirectory(logger, native, lister, chain.Client(t))

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		start := time.Now()
		got, err := dir.Lookup(ctx, usdc.Hex())
		cancel()
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if took := time.Since(start); took > 2*time.Second {
			t.Fatalf("lookup waited on the token list feed: %s", took)
		}
		if got.Decimals != 6 {
			t.Fatalf("decimals must come from the contract, got %d", got.Decimals)
		}
	}
}

func TestDirectoryLookup_UsesLoadedList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name":"L","tokens":[{"chainId":10143,"address":"0x00000000000000000000000000000000000000cc","symbol":"LST","decimals":8}]}`)
	}))
	defer srv.Close()

	chain := chaintest.New(10143)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	native := token.NewNative(10143, "MON", "Monad", 18, "")
	lister := token.NewLister(logger, srv.URL, 10143, native)
	if res := lister.Fetch(context.Background()); res.Fallback {
		t.Fatalf("list did not load")
	}
	dir := token.NewDirectory(logger, native, lister, chain.Client(t))

	got, err := dir.Lookup(context.Background(), "0x00000000000000000000000000000000000000cc")
	if err != nil || got.Symbol != "LST" || got.Decimals != 8 {
		t.Fatalf("expected the list entry: %+v %v", got, err)
	}
	if chain.Calls("decimals") != 0 {
		t.Fatalf("listed tokens must not be read from the chain")
	}
}
