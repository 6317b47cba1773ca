// Package token models tradable tokens, converts between decimal strings and
// smallest-unit integers, and fetches the token list feed.
package token

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultDecimals is assumed when a token's precision is unknown.
const DefaultDecimals = 18

// Token identifies an ERC-20 contract or, when Native is set, the chain's
// native currency. Native tokens carry no address.
type Token struct {
	ChainID  uint64         `json:"chainId,omitempty"`
	Address  common.Address `json:"address"`
	Native   bool           `json:"native,omitempty"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Decimals uint8          `json:"decimals"`
	LogoURI  string         `json:"logoURI,omitempty"`
}

// NewNative returns the native currency token for a chain.
func NewNative(chainID uint64, symbol, name string, decimals uint8, logo string) Token {
	return Token{
		ChainID:  chainID,
		Native:   true,
		Symbol:   symbol,
		Name:     name,
		Decimals: decimals,
		LogoURI:  logo,
	}
}

// IsPlaceholder reports whether t is an unselected token.
func (t Token) IsPlaceholder() bool {
	return !t.Native && t.Address == (common.Address{})
}

// Same reports whether t and o denote the same asset. Addresses are compared
// as values, which is case-insensitive with respect to their hex form.
func (t Token) Same(o Token) bool {
	if t.Native || o.Native {
		return t.Native == o.Native
	}
	return t.Address == o.Address
}

// ID is the stable identifier used in cache keys and API parameters: the
// native symbol, or the lowercase hex address.
func (t Token) ID() string {
	if t.Native {
		return t.Symbol
	}
	return strings.ToLower(t.Address.Hex())
}

// LookupAddress returns the address to use for on-chain lookups, substituting
// wrapped for the native currency.
func (t Token) LookupAddress(wrapped common.Address) common.Address {
	if t.Native {
		return wrapped
	}
	return t.Address
}
