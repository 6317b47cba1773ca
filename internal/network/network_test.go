package network

import (
	"errors"
	"strings"
	"testing"
)

func TestTxLink(t *testing.T) {
	t.Parallel()

	full := "0x" + strings.Repeat("ab", 32)
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"valid", full, full},
		{"missing prefix", strings.Repeat("ab", 32), full},
		{"short", "0x1234", "0x" + strings.Repeat("0", 60) + "1234"},
		{"long", full + "ffff", full},
		{"non-hex", "0x" + strings.Repeat("zz", 32), "0x" + strings.Repeat("0", 64)},
	}
	for _, tc := range cases {
		got := MonadTestnet.TxLink(tc.in)
		if want := MonadTestnet.ExplorerURL + "/tx/" + tc.want; got != want {
			t.Fatalf("%s: got %s want %s", tc.name, got, want)
		}
	}
	if got := MonadTestnet.TxLink(""); got != MonadTestnet.ExplorerURL {
		t.Fatalf("empty hash: got %s", got)
	}
}

func TestAddressLink(t *testing.T) {
	t.Parallel()

	addr := "0x00000000000000000000000000000000000000aa"
	if got := Sepolia.AddressLink(addr); got != "https://sepolia.etherscan.io/address/"+addr {
		t.Fatalf("valid address: %s", got)
	}
	if got := Sepolia.AddressLink("0x123"); got != Sepolia.ExplorerURL {
		t.Fatalf("invalid address: %s", got)
	}
}

func TestChainIDs(t *testing.T) {
	t.Parallel()

	if MonadTestnet.ChainIDHex() != "0x279f" || MegaTestnet.ChainIDHex() != "0x18c6" {
		t.Fatalf("hex chain ids: %s %s", MonadTestnet.ChainIDHex(), MegaTestnet.ChainIDHex())
	}
	for _, in := range []string{"0x279f", "0X279F", "10143"} {
		id, err := ParseChainID(in)
		if err != nil || !MonadTestnet.IsCorrectChain(id) {
			t.Fatalf("ParseChainID(%q) = %d, %v", in, id, err)
		}
	}
	if _, err := ParseChainID("monad"); !errors.Is(err, ErrInvalidChainID) {
		t.Fatalf("expected ErrInvalidChainID, got %v", err)
	}

	n, ok := ByChainID(6342)
	if !ok || n.Key != "mega-testnet" {
		t.Fatalf("ByChainID(6342): %+v %v", n, ok)
	}
	if n, ok := ByKey("SEPOLIA"); !ok || n.ChainID != 11155111 {
		t.Fatalf("ByKey: %+v %v", n, ok)
	}
	if _, ok := ByChainID(5); ok {
		t.Fatalf("unsupported chain must not resolve")
	}
	if nat := Default.Native(); !nat.Native || nat.Symbol != "MON" || nat.ChainID != 10143 {
		t.Fatalf("native token: %+v", nat)
	}
}
