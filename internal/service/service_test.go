package service

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nulln0ne/uniswap-dex/internal/chaintest"
	"github.com/nulln0ne/uniswap-dex/internal/metrics"
	"github.com/nulln0ne/uniswap-dex/internal/resolver"
	"github.com/nulln0ne/uniswap-dex/internal/token"
)

var (
	addrA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	addrB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	addrC = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

type fixture struct {
	chain   *chaintest.Chain
	client  *ethclient.Client
	logger  *slog.Logger
	res     *resolver.Resolver
	metrics *metrics.Metrics
	native  token.Token
	tokA    token.Token
	tokB    token.Token
	tokC    token.Token
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chain := chaintest.New(10143)
	chain.AddToken(addrA, "AAA", 18)
	chain.AddToken(addrB, "BBB", 6)
	chain.AddToken(addrC, "CCC", 18)

	client := chain.Client(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		chain:   chain,
		client:  client,
		logger:  logger,
		res:     resolver.New(logger, client, chain.Factory, chain.WETH),
		metrics: metrics.New(prometheus.NewRegistry()),
		native:  token.NewNative(10143, "MON", "Monad", 18, ""),
		tokA:    token.Token{ChainID: 10143, Address: addrA, Symbol: "AAA", Decimals: 18},
		tokB:    token.Token{ChainID: 10143, Address: addrB, Symbol: "BBB", Decimals: 6},
		tokC:    token.Token{ChainID: 10143, Address: addrC, Symbol: "CCC", Decimals: 18},
	}
}

func (f *fixture) estimator(t *testing.T) *EstimateService {
	t.Helper()
	svc, err := NewEstimateService(f.logger, f.client, f.res, f.chain.Router, 64, f.metrics)
	if err != nil {
		t.Fatalf("NewEstimateService: %v", err)
	}
	return svc
}

func units(s string, decimals uint8) *big.Int {
	v, err := token.ParseAmount(s, decimals)
	if err != nil {
		panic(err)
	}
	return v
}
