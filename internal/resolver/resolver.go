// Package resolver maps a logical token pair onto the pair contract and its
// reserves.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
	"github.com/nulln0ne/uniswap-dex/internal/token"
)

// Reason explains why a Resolution has no pair.
type Reason string

const (
	ReasonEmptySelection Reason = "empty_selection"
	ReasonSamePair       Reason = "same_token"
	ReasonNotCreated     Reason = "pair_not_created"
)

// Outcome labels passed to an Observer.
const (
	OutcomeExists    = "exists"
	OutcomeNotExists = "not_exists"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Resolution is a point-in-time view of a pair. When Exists is false every
// other field except A, B and Reason is zero.
type Resolution struct {
	A      common.Address `json:"a"`
	B      common.Address `json:"b"`
	Exists bool           `json:"exists"`
	Reason Reason         `json:"reason,omitempty"`

	Pair               common.Address `json:"pair,omitempty"`
	Token0             common.Address `json:"token0,omitempty"`
	Token1             common.Address `json:"token1,omitempty"`
	Reserve0           *big.Int       `json:"reserve0,omitempty"`
	Reserve1           *big.Int       `json:"reserve1,omitempty"`
	BlockTimestampLast uint32         `json:"blockTimestampLast,omitempty"`
	// AIsToken0 reports whether the first token passed to Resolve sits in the
	// token0 slot.
	AIsToken0 bool `json:"aIsToken0"`
}

// ReservesFor returns the reserves oriented so that the first value belongs
// to addr. ok is false if addr is not one of the pair's tokens.
func (r *Resolution) ReservesFor(addr common.Address) (reserveIn, reserveOut *big.Int, ok bool) {
	if !r.Exists {
		return nil, nil, false
	}
	switch {
	case strings.EqualFold(addr.Hex(), r.Token0.Hex()):
		return r.Reserve0, r.Reserve1, true
	case strings.EqualFold(addr.Hex(), r.Token1.Hex()):
		return r.Reserve1, r.Reserve0, true
	}
	return nil, nil, false
}

// HasLiquidity reports whether the pair exists with both reserves nonzero.
func (r *Resolution) HasLiquidity() bool {
	return r.Exists && r.Reserve0.Sign() > 0 && r.Reserve1.Sign() > 0
}

// Snapshot identifies the reserve state the resolution was read at.
func (r *Resolution) Snapshot() string {
	if !r.Exists {
		return "none"
	}
	return fmt.Sprintf("%s:%s:%d", r.Reserve0, r.Reserve1, r.BlockTimestampLast)
}

// Resolver looks pairs up through the factory. It performs no retries; a failed
// lookup is retried by calling Resolve again.
type Resolver struct {
	logger  *slog.Logger
	caller  bind.ContractCaller
	factory *eth.Factory
	wrapped common.Address
	observe func(outcome string)
}

type Option func(*Resolver)

// WithObserver registers a callback invoked with the outcome of each Resolve.
func WithObserver(fn func(outcome string)) Option {
	return func(r *Resolver) { r.observe = fn }
}

func New(logger *slog.Logger, caller bind.ContractCaller, factory, wrapped common.Address, opts ...Option) *Resolver {
	r := &Resolver{
		logger:  logger,
		caller:  caller,
		factory: eth.NewFactory(factory, caller),
		wrapped: wrapped,
		observe: func(string) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wrapped returns the wrapped native token address used for native lookups.
func (r *Resolver) Wrapped() common.Address { return r.wrapped }

// Resolve finds the pair for (a, b). A missing pair is reported through
// Resolution.Exists, not as an error; call failures wrap ErrLookupFailed.
func (r *Resolver) Resolve(ctx context.Context, a, b token.Token) (*Resolution, error) {
	addrA := a.LookupAddress(r.wrapped)
	addrB := b.LookupAddress(r.wrapped)
	res := &Resolution{A: addrA, B: addrB}

	switch {
	case addrA == (common.Address{}) || addrB == (common.Address{}):
		res.Reason = ReasonEmptySelection
		r.observe(OutcomeInvalid)
		return res, nil
	case strings.EqualFold(addrA.Hex(), addrB.Hex()):
		res.Reason = ReasonSamePair
		r.observe(OutcomeInvalid)
		return res, nil
	}

	token0, token1 := sortAddresses(addrA, addrB)
	pair, err := r.factory.GetPair(ctx, token0, token1)
	if err != nil {
		r.observe(OutcomeError)
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	if pair == (common.Address{}) {
		r.logger.Debug("pair not created", "token0", token0.Hex(), "token1", token1.Hex())
		res.Reason = ReasonNotCreated
		r.observe(OutcomeNotExists)
		return res, nil
	}

	if err := r.readPair(ctx, pair, res); err != nil {
		r.observe(OutcomeError)
		return nil, err
	}
	r.observe(OutcomeExists)
	r.logger.Debug("pair resolved", "pair", pair.Hex(),
		"reserve0", res.Reserve0.String(), "reserve1", res.Reserve1.String())
	return res, nil
}

func (r *Resolver) readPair(ctx context.Context, pair common.Address, res *Resolution) error {
	p := eth.NewPair(pair, r.caller)

	var (
		reserves       eth.Reserves
		token0, token1 common.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		reserves, err = p.GetReserves(gctx)
		return err
	})
	g.Go(func() (err error) {
		token0, err = p.Token0(gctx)
		return err
	})
	g.Go(func() (err error) {
		token1, err = p.Token1(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	sameSet := (token0 == res.A && token1 == res.B) || (token0 == res.B && token1 == res.A)
	if !sameSet {
		return fmt.Errorf("%w: %w: pair %s holds %s/%s", ErrLookupFailed, ErrPairMismatch,
			pair.Hex(), token0.Hex(), token1.Hex())
	}

	res.Exists = true
	res.Pair = pair
	res.Token0 = token0
	res.Token1 = token1
	res.Reserve0 = reserves.Reserve0
	res.Reserve1 = reserves.Reserve1
	res.BlockTimestampLast = reserves.BlockTimestampLast
	res.AIsToken0 = strings.EqualFold(token0.Hex(), res.A.Hex())
	return nil
}

// sortAddresses orders two addresses by their lowercase hex form, matching
// the factory's token0/token1 convention.
func sortAddresses(a, b common.Address) (common.Address, common.Address) {
	if strings.ToLower(a.Hex()) < strings.ToLower(b.Hex()) {
		return a, b
	}
	return b, a
}
