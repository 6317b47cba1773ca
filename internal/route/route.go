// Package route decides the hop sequence of a trade.
package route

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nulln0ne/uniswap-dex/internal/token"
)

// Path returns the router path for trading from into to. A native side is
// replaced by the wrapped token and the trade goes direct; two ERC-20 tokens
// always route through the wrapped native token.
//
// Trades where either side is the wrapped token itself also go direct.
func Path(from, to token.Token, wrapped common.Address) []common.Address {
	a := from.LookupAddress(wrapped)
	b := to.LookupAddress(wrapped)
	if from.Native || to.Native || a == wrapped || b == wrapped {
		return []common.Address{a, b}
	}
	return []common.Address{a, wrapped, b}
}

// IsDirect reports whether path is a single hop.
func IsDirect(path []common.Address) bool {
	return len(path) == 2
}

// Key renders a path for use in cache keys.
func Key(path []common.Address) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strings.ToLower(p.Hex())
	}
	return strings.Join(parts, ">")
}
