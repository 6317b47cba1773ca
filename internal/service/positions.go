package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
	"github.com/nulln0ne/uniswap-dex/internal/token"
	"github.com/nulln0ne/uniswap-dex/pkg/uniswapv2"
)

// lpDecimals is the precision of pair LP tokens.
const lpDecimals = 18

// Position is an account's share of one pool.
type Position struct {
	Pair        common.Address `json:"pair"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Symbol0     string         `json:"symbol0"`
	Symbol1     string         `json:"symbol1"`
	Decimals0   uint8          `json:"decimals0"`
	Decimals1   uint8          `json:"decimals1"`
	Balance     *big.Int       `json:"balanceRaw"`
	TotalSupply *big.Int       `json:"totalSupplyRaw"`
	Reserve0    *big.Int       `json:"reserve0"`
	Reserve1    *big.Int       `json:"reserve1"`
	Amount0     *big.Int       `json:"amount0Raw"`
	Amount1     *big.Int       `json:"amount1Raw"`
	ShareBps    int64          `json:"shareBps"`

	LPBalance string `json:"lpBalance"`
	Pooled0   string `json:"pooled0"`
	Pooled1   string `json:"pooled1"`
	Share     string `json:"share"`
}

// PositionIndex lists the nonzero LP balances of an account.
type PositionIndex interface {
	Positions(ctx context.Context, account common.Address) ([]Position, error)
}

// PositionService serves positions from a PositionIndex.
type PositionService struct {
	BaseService
	index PositionIndex
}

func NewPositionService(logger *slog.Logger, index PositionIndex) *PositionService {
	return &PositionService{
		BaseService: newBase(logger, "positions"),
		index:       index,
	}
}

func (p *PositionService) Positions(ctx context.Context, account common.Address) ([]Position, error) {
	if account == (common.Address{}) {
		return nil, ErrAccountRequired
	}
	positions, err := p.index.Positions(ctx, account)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("positions listed", "account", account.Hex(), "count", len(positions))
	return positions, nil
}

// FactoryScan is the fallback PositionIndex: it walks factory.allPairs up to
// a fixed number of pairs and checks the account's LP balance in each.
type FactoryScan struct {
	pairReader
	logger  *slog.Logger
	factory *eth.Factory
	limit   uint64
	workers int
	limiter *rate.Limiter
}

// NewFactoryScan scans at most limit pairs, issuing at most rps pair reads per
// second.
func NewFactoryScan(logger *slog.Logger, caller bind.ContractCaller, factory, wrapped common.Address, nativeSymbol string, limit uint64, rps int) *FactoryScan {
	if rps <= 0 {
		rps = 20
	}
	return &FactoryScan{
		pairReader: pairReader{caller: caller, wrapped: wrapped, nativeSymbol: nativeSymbol},
		logger:     logger,
		factory:    eth.NewFactory(factory, caller),
		limit:      limit,
		workers:    8,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (s *FactoryScan) Positions(ctx context.Context, account common.Address) ([]Position, error) {
	total, err := s.factory.AllPairsLength(ctx)
	if err != nil {
		return nil, fmt.Errorf("allPairsLength: %w", err)
	}
	n := total
	if s.limit > 0 && n > s.limit {
		s.logger.Info("position scan capped", "pairs", total, "limit", s.limit)
		n = s.limit
	}

	type found struct {
		index uint64
		pos   Position
	}
	var (
		mu    sync.Mutex
		items []found
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := uint64(0); i < n; i++ {
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			pos, ok := s.inspect(gctx, i, account)
			if !ok {
				return nil
			}
			mu.Lock()
			items = append(items, found{index: i, pos: pos})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(items, func(a, b int) bool { return items[a].index < items[b].index })
	out := make([]Position, len(items))
	for i, it := range items {
		out[i] = it.pos
	}
	return out, nil
}

// inspect reads pair i and returns the account's position in it. Failures are
// logged and the pair skipped.
func (s *FactoryScan) inspect(ctx context.Context, i uint64, account common.Address) (Position, bool) {
	addr, err := s.factory.AllPairs(ctx, i)
	if err != nil {
		s.logger.Warn("allPairs failed", "index", i, "err", err)
		return Position{}, false
	}
	pair := eth.NewPair(addr, s.caller)
	balance, err := pair.BalanceOf(ctx, account)
	if err != nil {
		s.logger.Warn("LP balance failed", "pair", addr.Hex(), "err", err)
		return Position{}, false
	}
	if balance.Sign() == 0 {
		return Position{}, false
	}

	pos, err := s.describe(ctx, pair, balance)
	if err != nil {
		s.logger.Warn("pair details failed", "pair", addr.Hex(), "err", err)
		return Position{}, false
	}
	return pos, true
}

// pairReader turns an LP balance into a Position.
type pairReader struct {
	caller       bind.ContractCaller
	wrapped      common.Address
	nativeSymbol string
}

func (s pairReader) describe(ctx context.Context, pair *eth.Pair, balance *big.Int) (Position, error) {
	pos := Position{Pair: pair.Address(), Balance: balance}

	var err error
	if pos.Token0, err = pair.Token0(ctx); err != nil {
		return pos, err
	}
	if pos.Token1, err = pair.Token1(ctx); err != nil {
		return pos, err
	}
	reserves, err := pair.GetReserves(ctx)
	if err != nil {
		return pos, err
	}
	if pos.TotalSupply, err = pair.TotalSupply(ctx); err != nil {
		return pos, err
	}
	pos.Reserve0, pos.Reserve1 = reserves.Reserve0, reserves.Reserve1
	pos.Symbol0, pos.Decimals0 = s.tokenInfo(ctx, pos.Token0)
	pos.Symbol1, pos.Decimals1 = s.tokenInfo(ctx, pos.Token1)

	pos.ShareBps = uniswapv2.Share(balance, pos.TotalSupply).Int64()
	pos.Amount0 = uniswapv2.Portion(pos.Reserve0, balance, pos.TotalSupply)
	pos.Amount1 = uniswapv2.Portion(pos.Reserve1, balance, pos.TotalSupply)

	pos.LPBalance = token.FormatAmount(balance, lpDecimals)
	pos.Pooled0 = token.FormatAmount(pos.Amount0, pos.Decimals0)
	pos.Pooled1 = token.FormatAmount(pos.Amount1, pos.Decimals1)
	pos.Share = token.FormatFixed(big.NewInt(pos.ShareBps), 2, 2)
	return pos, nil
}

func (s pairReader) tokenInfo(ctx context.Context, addr common.Address) (string, uint8) {
	if addr == s.wrapped {
		return "W" + s.nativeSymbol, token.DefaultDecimals
	}
	erc := eth.NewERC20(addr, s.caller)
	symbol, err := erc.Symbol(ctx)
	if err != nil {
		symbol = "???"
	}
	decimals, err := erc.Decimals(ctx)
	if err != nil {
		decimals = token.DefaultDecimals
	}
	return symbol, decimals
}
