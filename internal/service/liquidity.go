package service

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/nulln0ne/uniswap-dex/internal/resolver"
	"github.com/nulln0ne/uniswap-dex/internal/token"
	"github.com/nulln0ne/uniswap-dex/pkg/uniswapv2"
)

// Side names the edited field of a liquidity deposit.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// Balance is the counterpart amount for a liquidity deposit. When Matched is
// false the counterpart is left to the user; FirstProvider tells whether that
// is because the pool has no liquidity yet.
type Balance struct {
	Side          Side     `json:"side"`
	Amount        string   `json:"amount"`
	Counterpart   string   `json:"counterpart,omitempty"`
	CounterRaw    *big.Int `json:"counterpartRaw,omitempty"`
	Matched       bool     `json:"matched"`
	FirstProvider bool     `json:"firstProvider"`
	Pair          string   `json:"pair,omitempty"`
}

// LiquidityService keeps two-sided deposits at the pool ratio.
type LiquidityService struct {
	BaseService
	resolver *resolver.Resolver
}

func NewLiquidityService(logger *slog.Logger, res *resolver.Resolver) *LiquidityService {
	return &LiquidityService{
		BaseService: newBase(logger, "liquidity"),
		resolver:    res,
	}
}

// Balance computes the amount of the other token matching amount of the
// edited side. Reserves are re-read on every call.
func (l *LiquidityService) Balance(ctx context.Context, a, b token.Token, side Side, amount string) (*Balance, error) {
	edited, other := a, b
	if side == SideB {
		edited, other = b, a
	} else {
		side = SideA
	}
	out := &Balance{Side: side, Amount: amount}

	value, err := token.ParseAmount(amount, edited.Decimals)
	if err != nil {
		return nil, err
	}

	res, err := l.resolver.Resolve(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if res.Exists {
		out.Pair = res.Pair.Hex()
	}
	if !res.HasLiquidity() {
		out.FirstProvider = res.Reason == "" || res.Reason == resolver.ReasonNotCreated
		return out, nil
	}
	if value.Sign() == 0 {
		return out, nil
	}

	wrapped := l.resolver.Wrapped()
	reserveEdited, reserveOther, ok := res.ReservesFor(edited.LookupAddress(wrapped))
	if !ok {
		return nil, resolver.ErrPairMismatch
	}
	counter, err := uniswapv2.Quote(value, reserveEdited, reserveOther)
	if err != nil {
		out.FirstProvider = true
		return out, nil
	}

	out.Matched = true
	out.CounterRaw = counter
	out.Counterpart = token.FormatAmount(counter, other.Decimals)
	l.logger.Debug("liquidity balanced", "pair", out.Pair, "side", string(side),
		"amount", value.String(), "counterpart", counter.String())
	return out, nil
}
