// Package network describes the EVM chains the DEX can be deployed on.
package network

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nulln0ne/uniswap-dex/internal/token"
)

type Network struct {
	Key          string `json:"key"`
	ChainID      uint64 `json:"chainId"`
	Name         string `json:"name"`
	NativeSymbol string `json:"nativeSymbol"`
	NativeName   string `json:"nativeName"`
	Decimals     uint8  `json:"decimals"`
	RPCURL       string `json:"rpcUrl"`
	ExplorerURL  string `json:"explorerUrl"`
}

var (
	MonadTestnet = Network{
		Key:          "monad-testnet",
		ChainID:      10143,
		Name:         "Monad Testnet",
		NativeSymbol: "MON",
		NativeName:   "Monad Testnet",
		Decimals:     18,
		RPCURL:       "https://testnet-rpc.monad.xyz",
		ExplorerURL:  "https://testnet.monadexplorer.com",
	}
	MegaTestnet = Network{
		Key:          "mega-testnet",
		ChainID:      6342,
		Name:         "MEGA Testnet",
		NativeSymbol: "ETH",
		NativeName:   "MEGA Testnet Ether",
		Decimals:     18,
		RPCURL:       "https://carrot.megaeth.com/rpc",
		ExplorerURL:  "https://megaexplorer.xyz",
	}
	Mainnet = Network{
		Key:          "mainnet",
		ChainID:      1,
		Name:         "Ethereum Mainnet",
		NativeSymbol: "ETH",
		NativeName:   "Ether",
		Decimals:     18,
		RPCURL:       "https://ethereum-rpc.publicnode.com",
		ExplorerURL:  "https://etherscan.io",
	}
	Sepolia = Network{
		Key:          "sepolia",
		ChainID:      11155111,
		Name:         "Sepolia",
		NativeSymbol: "ETH",
		NativeName:   "Sepolia Ether",
		Decimals:     18,
		RPCURL:       "https://ethereum-sepolia-rpc.publicnode.com",
		ExplorerURL:  "https://sepolia.etherscan.io",
	}
)

// Default is the network used when none is configured.
var Default = MonadTestnet

func Presets() []Network {
	return []Network{MonadTestnet, MegaTestnet, Mainnet, Sepolia}
}

// ByChainID returns the preset for id.
func ByChainID(id uint64) (Network, bool) {
	for _, n := range Presets() {
		if n.ChainID == id {
			return n, true
		}
	}
	return Network{}, false
}

// ByKey returns the preset named key, e.g. "sepolia". Matching ignores case.
func ByKey(key string) (Network, bool) {
	for _, n := range Presets() {
		if strings.EqualFold(n.Key, key) {
			return n, true
		}
	}
	return Network{}, false
}

// ParseChainID accepts a decimal or 0x-prefixed hex chain id, the two forms
// wallets report.
func ParseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	var (
		id  uint64
		err error
	)
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		id, err = strconv.ParseUint(rest, 16, 64)
	} else {
		id, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChainID, s)
	}
	return id, nil
}

// ChainIDHex is the chain id in the 0x form used by wallet RPC methods.
func (n Network) ChainIDHex() string {
	return "0x" + strconv.FormatUint(n.ChainID, 16)
}

func (n Network) IsCorrectChain(id uint64) bool {
	return id == n.ChainID
}

// Native returns the network's native currency as a token.
func (n Network) Native() token.Token {
	return token.NewNative(n.ChainID, n.NativeSymbol, n.NativeName, n.Decimals, "")
}

const hashHexLen = 64

// TxLink returns the explorer page of a transaction. Malformed hashes are
// repaired rather than rejected: a missing 0x prefix is added, short hashes
// are left-padded with zeros, long ones truncated, and non-hex characters
// replaced by '0'.
func (n Network) TxLink(hash string) string {
	if hash == "" {
		return n.ExplorerURL
	}
	body, _ := strings.CutPrefix(hash, "0x")
	if len(body) < hashHexLen {
		body = strings.Repeat("0", hashHexLen-len(body)) + body
	}
	clean := []byte(body[:hashHexLen])
	for i, c := range clean {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			clean[i] = '0'
		}
	}
	return n.ExplorerURL + "/tx/0x" + string(clean)
}

// AddressLink returns the explorer page of an address, or the explorer root
// when addr is not a valid address.
func (n Network) AddressLink(addr string) string {
	if !common.IsHexAddress(addr) {
		return n.ExplorerURL
	}
	return n.ExplorerURL + "/address/" + addr
}
