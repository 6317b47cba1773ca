package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
	"github.com/nulln0ne/uniswap-dex/internal/metrics"
	"github.com/nulln0ne/uniswap-dex/internal/resolver"
	"github.com/nulln0ne/uniswap-dex/internal/route"
	"github.com/nulln0ne/uniswap-dex/internal/token"
	"github.com/nulln0ne/uniswap-dex/pkg/uniswapv2"
)

// Status is the display state of a swap estimate.
type Status string

const (
	StatusEmpty          Status = "empty"
	StatusSameToken      Status = "same_token"
	StatusNoLiquidity    Status = "no_liquidity"
	StatusCannotEstimate Status = "cannot_estimate"
	StatusOK             Status = "ok"
)

// SwapEstimate is the result of one estimation. Only StatusOK and
// StatusSameToken carry an output amount. PriceImpact and FeeFreeOutput, the
// output without the 0.3% fee, are set for direct pairs only.
type SwapEstimate struct {
	Status        Status           `json:"status"`
	From          token.Token      `json:"from"`
	To            token.Token      `json:"to"`
	Path          []common.Address `json:"path,omitempty"`
	AmountIn      *big.Int         `json:"amountInRaw,omitempty"`
	AmountOut     *big.Int         `json:"amountOutRaw,omitempty"`
	Output        string           `json:"amountOut"`
	PriceImpact   string           `json:"priceImpact,omitempty"`
	FeeFreeOutput string           `json:"feeFreeOutput,omitempty"`
	Error         string           `json:"error,omitempty"`
	Snapshot      string           `json:"snapshot,omitempty"`
}

func (e *SwapEstimate) clone() *SwapEstimate {
	c := *e
	c.Path = append([]common.Address(nil), e.Path...)
	return &c
}

// EstimateService quotes swaps. Direct pairs are computed locally from the
// current reserves; two-hop routes use the router's getAmountsOut.
type EstimateService struct {
	BaseService
	resolver *resolver.Resolver
	router   *eth.Router
	metrics  *metrics.Metrics
	cache    *lru.Cache[string, *SwapEstimate]
	group    singleflight.Group
}

// NewEstimateService constructs an EstimateService. cacheSize bounds the
// number of cached estimates; m may be nil.
func NewEstimateService(logger *slog.Logger, caller bind.ContractCaller, res *resolver.Resolver, routerAddr common.Address, cacheSize int, m *metrics.Metrics) (*EstimateService, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, *SwapEstimate](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("estimate cache: %w", err)
	}
	return &EstimateService{
		BaseService: newBase(logger, "estimate"),
		resolver:    res,
		router:      eth.NewRouter(routerAddr, caller),
		metrics:     m,
		cache:       cache,
	}, nil
}

// Estimate quotes swapping amount of from into to. Empty input, same-token
// swaps, missing liquidity and failed lookups are reported through the
// estimate's Status; the error return is reserved for invalid amounts.
func (e *EstimateService) Estimate(ctx context.Context, from, to token.Token, amount string) (*SwapEstimate, error) {
	amountIn, err := token.ParseAmount(amount, from.Decimals)
	if err != nil {
		return nil, err
	}
	return e.EstimateRaw(ctx, from, to, amountIn)
}

// EstimateRaw is Estimate for an amount already in smallest units.
func (e *EstimateService) EstimateRaw(ctx context.Context, from, to token.Token, amountIn *big.Int) (*SwapEstimate, error) {
	base := &SwapEstimate{From: from, To: to, AmountIn: amountIn}

	if amountIn == nil || amountIn.Sign() <= 0 {
		base.Status = StatusEmpty
		base.AmountIn = nil
		e.metrics.ObserveEstimate(string(base.Status))
		return base, nil
	}
	// an unselected token has no pool, even against another unselected one
	if from.IsPlaceholder() || to.IsPlaceholder() {
		base.Status = StatusNoLiquidity
		e.metrics.ObserveEstimate(string(base.Status))
		return base, nil
	}
	if from.Same(to) {
		base.Status = StatusSameToken
		base.AmountOut = new(big.Int).Set(amountIn)
		base.Output = token.FormatAmount(amountIn, to.Decimals)
		e.metrics.ObserveEstimate(string(base.Status))
		return base, nil
	}

	path := route.Path(from, to, e.resolver.Wrapped())
	base.Path = path
	key := strings.Join([]string{from.ID(), to.ID(), route.Key(path), amountIn.String()}, "|")

	v, _, shared := e.group.Do(key, func() (any, error) {
		return e.estimate(ctx, key, base), nil
	})
	est := v.(*SwapEstimate).clone()
	// A shared flight may have run under a caller's context that has since
	// been cancelled.
	if shared && est.Status == StatusCannotEstimate && ctx.Err() == nil {
		est = e.estimate(ctx, key, base)
	}
	e.metrics.ObserveEstimate(string(est.Status))
	return est, nil
}

func (e *EstimateService) estimate(ctx context.Context, key string, base *SwapEstimate) *SwapEstimate {
	est := base.clone()
	path := est.Path

	legs, err := e.resolveLegs(ctx, est.From, est.To, path)
	if err != nil {
		e.logger.Warn("reserve lookup failed", "from", est.From.ID(), "to", est.To.ID(), "err", err)
		est.Status = StatusCannotEstimate
		est.Error = err.Error()
		return est
	}
	for _, leg := range legs {
		if !leg.HasLiquidity() {
			est.Status = StatusNoLiquidity
			return est
		}
	}

	snapshots := make([]string, len(legs))
	for i, leg := range legs {
		snapshots[i] = leg.Snapshot()
	}
	est.Snapshot = strings.Join(snapshots, ",")
	cacheKey := key + "|" + est.Snapshot
	if cached, ok := e.cache.Get(cacheKey); ok {
		e.metrics.CacheHit()
		return cached
	}

	if route.IsDirect(path) {
		e.estimateDirect(est, legs[0])
	} else {
		e.estimateRouted(ctx, est)
	}

	if est.Status == StatusOK {
		e.cache.Add(cacheKey, est)
	}
	return est
}

// resolveLegs resolves the pair behind every hop of path.
func (e *EstimateService) resolveLegs(ctx context.Context, from, to token.Token, path []common.Address) ([]*resolver.Resolution, error) {
	if route.IsDirect(path) {
		res, err := e.resolver.Resolve(ctx, from, to)
		if err != nil {
			return nil, err
		}
		return []*resolver.Resolution{res}, nil
	}
	legs := make([]*resolver.Resolution, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		res, err := e.resolver.Resolve(ctx,
			token.Token{Address: path[i]}, token.Token{Address: path[i+1]})
		if err != nil {
			return nil, err
		}
		legs = append(legs, res)
		if !res.HasLiquidity() {
			break
		}
	}
	return legs, nil
}

func (e *EstimateService) estimateDirect(est *SwapEstimate, leg *resolver.Resolution) {
	reserveIn, reserveOut, ok := leg.ReservesFor(est.Path[0])
	if !ok {
		est.Status = StatusCannotEstimate
		est.Error = resolver.ErrPairMismatch.Error()
		return
	}
	out, err := uniswapv2.AmountOut(est.AmountIn, reserveIn, reserveOut)
	if err != nil {
		est.Status = StatusNoLiquidity
		return
	}
	impact, err := uniswapv2.PriceImpact(est.AmountIn, reserveIn, reserveOut)
	if err != nil {
		est.Status = StatusNoLiquidity
		return
	}
	noFee, err := uniswapv2.GetAmountOutNoFee(est.AmountIn, reserveIn, reserveOut)
	if err != nil {
		est.Status = StatusNoLiquidity
		return
	}
	est.Status = StatusOK
	est.FeeFreeOutput = token.FormatAmount(noFee, est.To.Decimals)
	est.AmountOut = out
	est.Output = token.FormatAmount(out, est.To.Decimals)
	est.PriceImpact = impact.StringFixed(2)
	e.logger.Debug("amount out computed", "pair", leg.Pair.Hex(), "in", est.AmountIn.String(), "out", out.String())
}

func (e *EstimateService) estimateRouted(ctx context.Context, est *SwapEstimate) {
	amounts, err := e.router.GetAmountsOut(ctx, est.AmountIn, est.Path)
	switch {
	case err != nil && eth.IsRevert(err):
		e.logger.Debug("router rejected quote", "path", route.Key(est.Path), "err", err)
		est.Status = StatusNoLiquidity
		return
	case err != nil:
		e.logger.Warn("router quote failed", "path", route.Key(est.Path), "err", err)
		est.Status = StatusCannotEstimate
		est.Error = err.Error()
		return
	case len(amounts) != len(est.Path):
		est.Status = StatusCannotEstimate
		est.Error = fmt.Errorf("%w: %d amounts for %d hops", eth.ErrUnexpectedOutput, len(amounts), len(est.Path)).Error()
		return
	}
	out := amounts[len(amounts)-1]
	est.Status = StatusOK
	est.AmountOut = out
	est.Output = token.FormatAmount(out, est.To.Decimals)
}
