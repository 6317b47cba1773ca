package handler

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswap-dex/internal/network"
	"github.com/nulln0ne/uniswap-dex/internal/service"
	"github.com/nulln0ne/uniswap-dex/internal/token"
)

func TestBalanceHandler(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.chain.SetNativeBalance(alice, big.NewInt(2_500_000_000_000_000_000))
	e.chain.SetBalance(addrB, alice, big.NewInt(1_230_000))
	app := fiber.New()
	app.Get("/balance", NewBalanceHandler(e.logger, e.client, e.tokens).Handle())

	resp, body := do(t, app, http.MethodGet, "/balance?account="+alice.Hex()+"&token=MON", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if body["amount"] != "2.5" {
		t.Fatalf("native balance: %v", body)
	}

	_, body = do(t, app, http.MethodGet, "/balance?account="+alice.Hex()+"&token="+addrB.Hex(), "")
	if body["amount"] != "1.23" {
		t.Fatalf("token balance: %v", body)
	}

	resp, _ = do(t, app, http.MethodGet, "/balance?token=MON", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without an account, got %d", resp.StatusCode)
	}
}

func TestPositionsHandler(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	pair := e.chain.AddPair(addrA, e.chain.WETH, big.NewInt(1000), big.NewInt(4000))
	e.chain.SetLiquidity(pair.Address, alice, big.NewInt(250), big.NewInt(1000))
	scan := service.NewFactoryScan(e.logger, e.client, e.chain.Factory, e.chain.WETH, "MON", 10, 100)
	app := fiber.New()
	app.Get("/positions", NewPositionsHandler(e.logger, service.NewPositionService(e.logger, scan)).Handle())

	resp, body := do(t, app, http.MethodGet, "/positions?account="+alice.Hex(), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	positions, _ := body["positions"].([]any)
	if len(positions) != 1 {
		t.Fatalf("expected one position: %v", body)
	}
	if share := positions[0].(map[string]any)["share"]; share != "25.00" {
		t.Fatalf("unexpected share: %v", share)
	}

	resp, _ = do(t, app, http.MethodGet, "/positions?account=alice", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad account, got %d", resp.StatusCode)
	}
}

func TestTokensHandler_Fallback(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	native := e.tokens.Native()
	fallbacks := 0
	lister := token.NewLister(e.logger, srv.URL, 10143, native,
		token.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		token.WithFallbackHook(func() { fallbacks++ }))
	app := fiber.New()
	app.Get("/tokens", NewTokensHandler(e.logger, lister).Handle())

	resp, body := do(t, app, http.MethodGet, "/tokens", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if body["fallback"] != true || fallbacks != 1 {
		t.Fatalf("expected fallback list: %v (hooks %d)", body, fallbacks)
	}
	tokens, _ := body["tokens"].([]any)
	if len(tokens) != 1 || tokens[0].(map[string]any)["symbol"] != "MON" {
		t.Fatalf("fallback must offer the native token: %v", tokens)
	}
}

func TestNetworkHandler(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	app := fiber.New()
	app.Get("/network", NewNetworkHandler(e.logger, network.MonadTestnet).Handle())

	resp, body := do(t, app, http.MethodGet, "/network", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if body["chainIdHex"] != "0x279f" {
		t.Fatalf("unexpected chain id: %v", body["chainIdHex"])
	}
	if _, ok := body["correctChain"]; ok {
		t.Fatalf("correctChain is only reported for a chain_id query")
	}

	cases := []struct {
		query string
		want  bool
	}{
		{"0x279f", true},
		{"10143", true},
		{"11155111", false},
	}
	for _, tc := range cases {
		resp, body := do(t, app, http.MethodGet, "/network?chain_id="+tc.query, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("chain_id=%s: unexpected status %d", tc.query, resp.StatusCode)
		}
		if body["correctChain"] != tc.want {
			t.Fatalf("chain_id=%s: correctChain %v want %v", tc.query, body["correctChain"], tc.want)
		}
	}

	resp, _ = do(t, app, http.MethodGet, "/network?chain_id=0xzz", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad chain_id: expected 400, got %d", resp.StatusCode)
	}
}
