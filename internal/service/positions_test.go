package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFactoryScan(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	wmonPair := f.chain.AddPair(f.chain.WETH, addrB, units("100", 18), units("250", 6))
	f.chain.AddPair(addrA, addrC, units("10", 18), units("20", 18))
	abPair := f.chain.AddPair(addrA, addrB, units("4", 18), units("8", 6))

	f.chain.SetLiquidity(wmonPair.Address, alice, units("25", 18), units("100", 18))
	f.chain.SetLiquidity(abPair.Address, alice, units("1", 18), units("3", 18))

	scan := NewFactoryScan(f.logger, f.client, f.chain.Factory, f.chain.WETH, "MON", 100, 1000)
	svc := NewPositionService(f.logger, scan)

	got, err := svc.Positions(context.Background(), alice)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("positions: got %d want 2", len(got))
	}

	first := got[0]
	if first.Pair != wmonPair.Address {
		t.Fatalf("positions must keep factory order: %s", first.Pair.Hex())
	}
	// BBB (0xbb) sorts before the wrapped token (0xee)
	if first.Symbol0 != "BBB" || first.Symbol1 != "WMON" || first.Decimals0 != 6 {
		t.Fatalf("unexpected tokens: %+v", first)
	}
	if first.ShareBps != 2500 || first.Share != "25.00" {
		t.Fatalf("share: %d %q", first.ShareBps, first.Share)
	}
	if first.Pooled0 != "62.5" || first.Pooled1 != "25" || first.LPBalance != "25" {
		t.Fatalf("pooled amounts: %q %q lp %q", first.Pooled0, first.Pooled1, first.LPBalance)
	}

	second := got[1]
	if second.ShareBps != 3333 || second.Share != "33.33" {
		t.Fatalf("second share: %d %q", second.ShareBps, second.Share)
	}
}

func TestFactoryScan_Limit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.chain.AddPair(addrA, addrC, units("10", 18), units("20", 18))
	late := f.chain.AddPair(addrA, addrB, units("4", 18), units("8", 6))
	f.chain.SetLiquidity(late.Address, alice, big.NewInt(1), big.NewInt(2))

	scan := NewFactoryScan(f.logger, f.client, f.chain.Factory, f.chain.WETH, "MON", 1, 1000)
	got, err := scan.Positions(context.Background(), alice)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("pairs past the scan limit must be skipped, got %d", len(got))
	}
	if f.chain.Calls("allPairs") != 1 {
		t.Fatalf("allPairs calls: got %d want 1", f.chain.Calls("allPairs"))
	}
}

func TestPositions_AccountRequired(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	scan := NewFactoryScan(f.logger, f.client, f.chain.Factory, f.chain.WETH, "MON", 100, 0)
	svc := NewPositionService(f.logger, scan)
	if _, err := svc.Positions(context.Background(), common.Address{}); !errors.Is(err, ErrAccountRequired) {
		t.Fatalf("expected ErrAccountRequired, got %v", err)
	}
}
