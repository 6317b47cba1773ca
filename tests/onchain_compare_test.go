package tests

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
	"github.com/nulln0ne/uniswap-dex/pkg/uniswapv2"
)

// uniswapRouter02 is the Uniswap V2 Router02 on Ethereum mainnet.
const uniswapRouter02 = "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"

// TestAmountOut_Onchain compares the local math with the router's
// getAmountOut via eth_call. Skips if ETH_RPC_URL is not set. ROUTER_ADDRESS
// selects another router.
func TestAmountOut_Onchain(t *testing.T) {
	rpcURL := os.Getenv("ETH_RPC_URL")
	if rpcURL == "" {
		t.Skip("ETH_RPC_URL not set; skipping on-chain comparison test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := eth.Dial(ctx, rpcURL)
	if err != nil {
		t.Fatalf("dial eth rpc: %v", err)
	}
	defer client.Close()

	routerAddr := common.HexToAddress(uniswapRouter02)
	if raw := os.Getenv("ROUTER_ADDRESS"); common.IsHexAddress(raw) {
		routerAddr = common.HexToAddress(raw)
	}
	router := eth.NewRouter(routerAddr, client)

	// Test vectors (amountIn, reserveIn, reserveOut)
	cases := []struct {
		name       string
		amountIn   *big.Int
		reserveIn  *big.Int
		reserveOut *big.Int
	}{
		{"small_balanced", big.NewInt(1_000), big.NewInt(1_000_000), big.NewInt(1_000_000)},
		{"scenario_one", big.NewInt(1_000), big.NewInt(1_000_000), big.NewInt(2_000_000)},
		{"skewed_reserves", big.NewInt(50_000_000_000_000), new(big.Int).SetUint64(5_000_000_000_000_000), new(big.Int).SetUint64(100_000_000_000_000_000)},
		{"large_values", new(big.Int).SetUint64(1_000_000_000_000_000), new(big.Int).SetUint64(50_000_000_000_000_000), new(big.Int).SetUint64(75_000_000_000_000_000)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local, err := uniswapv2.AmountOut(tc.amountIn, tc.reserveIn, tc.reserveOut)
			if err != nil {
				t.Fatalf("local AmountOut: %v", err)
			}
			onchain, err := router.GetAmountOut(ctx, tc.amountIn, tc.reserveIn, tc.reserveOut)
			if err != nil {
				t.Fatalf("eth_call getAmountOut: %v", err)
			}
			if local.Cmp(onchain) != 0 {
				t.Fatalf("mismatch: local=%s onchain=%s (in=%s rIn=%s rOut=%s)", local, onchain, tc.amountIn, tc.reserveIn, tc.reserveOut)
			}
		})
	}
}
