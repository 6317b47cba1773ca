// Package uniswapv2 implements the constant-product pool formulas used to
// estimate swaps and balance liquidity deposits. All functions use integer
// arithmetic on smallest token units.
package uniswapv2

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrNoLiquidity is returned when a reserve is zero and no output can be
// derived.
var ErrNoLiquidity = errors.New("no liquidity")

// fee: 0.3% => multiplier 997/1000
var (
	feeMul = big.NewInt(997)
	feeDen = big.NewInt(1000)

	// price impact is computed in units of 1e-4 percent
	impactScale = big.NewInt(1_000_000)
	bpsDen      = big.NewInt(10_000)
)

// GetAmountOut writes the fee-inclusive output amount into dst and returns it.
// t1 and t2 are scratch values; none of dst, t1, t2 may alias an input.
func GetAmountOut(dst, t1, t2 *big.Int, amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	// t1 = amountIn * 997
	t1.Mul(amountIn, feeMul)
	// t2 = reserveIn * 1000
	t2.Mul(reserveIn, feeDen)
	// t2 = t2 + t1  (denominator)
	t2.Add(t2, t1)
	// dst = t1 * reserveOut (numerator)
	dst.Mul(t1, reserveOut)
	// dst = dst / t2  (avoid aliasing z==y)
	return dst.Div(dst, t2)
}

// AmountOut is the allocating, checked form of GetAmountOut.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}
	if amountIn.Sign() <= 0 {
		return new(big.Int), nil
	}
	var t1, t2 big.Int
	return GetAmountOut(new(big.Int), &t1, &t2, amountIn, reserveIn, reserveOut), nil
}

// GetAmountOutNoFee returns reserveOut*amountIn/(reserveIn+amountIn), the
// output the pool would give without the swap fee.
func GetAmountOutNoFee(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}
	if amountIn.Sign() <= 0 {
		return new(big.Int), nil
	}
	num := new(big.Int).Mul(reserveOut, amountIn)
	den := new(big.Int).Add(reserveIn, amountIn)
	return num.Div(num, den), nil
}

// PriceImpact returns the shortfall of the fee-free constant-product output
// against the output at the pre-trade marginal price (amountIn*reserveOut/reserveIn),
// as a percentage rounded to two decimals.
//
// The ratio simplifies to amountIn/(reserveIn+amountIn), so reserveOut only
// participates in the liquidity check.
func PriceImpact(amountIn, reserveIn, reserveOut *big.Int) (decimal.Decimal, error) {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return decimal.Zero, ErrNoLiquidity
	}
	if amountIn.Sign() <= 0 {
		return decimal.Zero, nil
	}
	num := new(big.Int).Mul(amountIn, impactScale)
	den := new(big.Int).Add(reserveIn, amountIn)
	num.Quo(num, den)
	// num is in 1e-4 percent
	return decimal.NewFromBigInt(num, -4).Round(2), nil
}

// Quote returns amountX*reserveY/reserveX: the amount of Y matching amountX at
// the pool's current ratio.
func Quote(amountX, reserveX, reserveY *big.Int) (*big.Int, error) {
	if reserveX.Sign() <= 0 || reserveY.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}
	out := new(big.Int).Mul(amountX, reserveY)
	return out.Quo(out, reserveX), nil
}

// ApplySlippage returns amount*(10000-bps)/10000, the minimum accepted
// amount for a tolerance of bps basis points.
func ApplySlippage(amount *big.Int, bps uint32) *big.Int {
	if bps >= 10_000 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(10_000-bps)))
	return out.Quo(out, bpsDen)
}

// Share returns part*10000/total, in basis points. A zero total yields zero.
func Share(part, total *big.Int) *big.Int {
	if total.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(part, bpsDen)
	return out.Quo(out, total)
}

// Portion returns amount*part/total, the slice of amount owned by part.
func Portion(amount, part, total *big.Int) *big.Int {
	if total.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, part)
	return out.Quo(out, total)
}
