package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/nulln0ne/uniswap-dex/internal/network"
)

type Config struct {
	Addr        string
	RPCEndpoint string
	LogLevel    string

	Network        network.Network
	Factory        common.Address
	Router         common.Address
	WrappedNative  common.Address
	TokenListURL   string
	TokenListWait  time.Duration
	TxLogPath      string
	TxLogCap       int
	DemoMode       bool
	Debounce       time.Duration
	DeadlineWindow time.Duration

	SwapSlippageBps      uint32
	LiquiditySlippageBps uint32
	EstimateCacheSize    int
	PositionScanLimit    uint64
	RPCRateLimit         int
}

const (
	DefaultAddr                 = ":1337"
	DefaultLogLevel             = "info"
	DefaultTokenListURL         = "https://raw.githubusercontent.com/furidngrt/DexSwap/master/monad-list-erc20.json"
	DefaultTokenListWait        = 10 * time.Second
	DefaultTxLogCap             = 50
	DefaultDebounce             = 500 * time.Millisecond
	DefaultDeadlineWindow       = 20 * time.Minute
	DefaultSwapSlippageBps      = 50
	DefaultLiquiditySlippageBps = 500
	DefaultEstimateCacheSize    = 1024
	DefaultPositionScanLimit    = 100
	DefaultRPCRateLimit         = 20
)

// NewViper returns a viper instance reading the environment, with every
// default set. Callers may bind flags to it before passing it to Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	defaults := map[string]any{
		"ADDR":                   DefaultAddr,
		"LOG_LEVEL":              DefaultLogLevel,
		"CHAIN_ID":               network.Default.ChainID,
		"TOKEN_LIST_URL":         DefaultTokenListURL,
		"TOKEN_LIST_TIMEOUT":     DefaultTokenListWait,
		"TXLOG_CAP":              DefaultTxLogCap,
		"DEMO_MODE":              false,
		"DEBOUNCE":               DefaultDebounce,
		"DEADLINE_WINDOW":        DefaultDeadlineWindow,
		"SWAP_SLIPPAGE_BPS":      DefaultSwapSlippageBps,
		"LIQUIDITY_SLIPPAGE_BPS": DefaultLiquiditySlippageBps,
		"ESTIMATE_CACHE_SIZE":    DefaultEstimateCacheSize,
		"POSITION_SCAN_LIMIT":    DefaultPositionScanLimit,
		"RPC_RATE_LIMIT":         DefaultRPCRateLimit,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func FromEnv() (*Config, error) {
	return Load(NewViper())
}

// Load builds a Config from v. Keys are the environment variable names.
func Load(v *viper.Viper) (*Config, error) {
	rpcURL := strings.TrimSpace(v.GetString("ETH_RPC_URL"))
	if rpcURL == "" {
		return nil, ErrMissingRPCEndpoint
	}

	net, err := resolveNetwork(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:                 v.GetString("ADDR"),
		RPCEndpoint:          rpcURL,
		LogLevel:             v.GetString("LOG_LEVEL"),
		Network:              net,
		TokenListURL:         v.GetString("TOKEN_LIST_URL"),
		TokenListWait:        v.GetDuration("TOKEN_LIST_TIMEOUT"),
		TxLogPath:            v.GetString("TXLOG_PATH"),
		TxLogCap:             v.GetInt("TXLOG_CAP"),
		DemoMode:             v.GetBool("DEMO_MODE"),
		Debounce:             v.GetDuration("DEBOUNCE"),
		DeadlineWindow:       v.GetDuration("DEADLINE_WINDOW"),
		SwapSlippageBps:      v.GetUint32("SWAP_SLIPPAGE_BPS"),
		LiquiditySlippageBps: v.GetUint32("LIQUIDITY_SLIPPAGE_BPS"),
		EstimateCacheSize:    v.GetInt("ESTIMATE_CACHE_SIZE"),
		PositionScanLimit:    v.GetUint64("POSITION_SCAN_LIMIT"),
		RPCRateLimit:         v.GetInt("RPC_RATE_LIMIT"),
	}

	if cfg.Factory, err = address(v, "FACTORY_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.Router, err = address(v, "ROUTER_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.WrappedNative, err = address(v, "WRAPPED_NATIVE_ADDRESS"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveNetwork starts from the preset named by NETWORK, or else the preset
// for CHAIN_ID, if any, and applies the NETWORK_NAME, NATIVE_SYMBOL and
// EXPLORER_URL overrides.
func resolveNetwork(v *viper.Viper) (network.Network, error) {
	if key := strings.TrimSpace(v.GetString("NETWORK")); key != "" {
		net, ok := network.ByKey(key)
		if !ok {
			return network.Network{}, fmt.Errorf("%w: NETWORK=%q", ErrInvalidValue, key)
		}
		return applyOverrides(v, net), nil
	}

	id, err := network.ParseChainID(v.GetString("CHAIN_ID"))
	if err != nil {
		return network.Network{}, fmt.Errorf("CHAIN_ID: %w", err)
	}
	net, ok := network.ByChainID(id)
	if !ok {
		net = network.Network{
			Key:          fmt.Sprintf("chain-%d", id),
			ChainID:      id,
			Name:         fmt.Sprintf("Chain %d", id),
			NativeSymbol: "ETH",
			NativeName:   "Ether",
			Decimals:     18,
		}
	}
	return applyOverrides(v, net), nil
}

func applyOverrides(v *viper.Viper, net network.Network) network.Network {
	if name := v.GetString("NETWORK_NAME"); name != "" {
		net.Name = name
	}
	if symbol := v.GetString("NATIVE_SYMBOL"); symbol != "" {
		net.NativeSymbol = symbol
	}
	if explorer := v.GetString("EXPLORER_URL"); explorer != "" {
		net.ExplorerURL = strings.TrimRight(explorer, "/")
	}
	net.RPCURL = v.GetString("ETH_RPC_URL")
	return net
}

func address(v *viper.Viper, key string) (common.Address, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return common.Address{}, fmt.Errorf("%w: %s", ErrMissingAddress, key)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s=%q", ErrInvalidAddress, key, raw)
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s is the zero address", ErrInvalidAddress, key)
	}
	return addr, nil
}

func (c *Config) validate() error {
	switch {
	case c.SwapSlippageBps >= 10_000:
		return fmt.Errorf("%w: SWAP_SLIPPAGE_BPS=%d", ErrInvalidValue, c.SwapSlippageBps)
	case c.LiquiditySlippageBps >= 10_000:
		return fmt.Errorf("%w: LIQUIDITY_SLIPPAGE_BPS=%d", ErrInvalidValue, c.LiquiditySlippageBps)
	case c.TxLogCap <= 0:
		return fmt.Errorf("%w: TXLOG_CAP=%d", ErrInvalidValue, c.TxLogCap)
	case c.Debounce < 0:
		return fmt.Errorf("%w: DEBOUNCE=%s", ErrInvalidValue, c.Debounce)
	case c.DeadlineWindow <= 0:
		return fmt.Errorf("%w: DEADLINE_WINDOW=%s", ErrInvalidValue, c.DeadlineWindow)
	case c.EstimateCacheSize <= 0:
		return fmt.Errorf("%w: ESTIMATE_CACHE_SIZE=%d", ErrInvalidValue, c.EstimateCacheSize)
	case c.RPCRateLimit <= 0:
		return fmt.Errorf("%w: RPC_RATE_LIMIT=%d", ErrInvalidValue, c.RPCRateLimit)
	}
	return nil
}
