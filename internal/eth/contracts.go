package eth

import (
	"context"
	"fmt"
	"math"
	"math/big"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

type contract struct {
	address common.Address
	bound   *bind.BoundContract
}

func newContract(address common.Address, parsed gethabi.ABI, caller bind.ContractCaller) contract {
	return contract{
		address: address,
		bound:   bind.NewBoundContract(address, parsed, caller, nil, nil),
	}
}

func (c contract) Address() common.Address { return c.address }

// call performs an eth_call against the latest block and checks the number of
// returned values.
func (c contract) call(ctx context.Context, want int, method string, args ...any) ([]any, error) {
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, c.address.Hex(), err)
	}
	if len(out) != want {
		return nil, fmt.Errorf("%s on %s: %w: got %d values", method, c.address.Hex(), ErrUnexpectedOutput, len(out))
	}
	return out, nil
}

func (c contract) callAddress(ctx context.Context, method string, args ...any) (common.Address, error) {
	out, err := c.call(ctx, 1, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	return *gethabi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c contract) callBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, 1, method, args...)
	if err != nil {
		return nil, err
	}
	return gethabi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// Factory is a read-only binding of the pair factory.
type Factory struct{ contract }

func NewFactory(address common.Address, caller bind.ContractCaller) *Factory {
	return &Factory{newContract(address, FactoryABI, caller)}
}

// GetPair returns the pair for (tokenA, tokenB), or the zero address when the
// pair has not been created.
func (f *Factory) GetPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	return f.callAddress(ctx, "getPair", tokenA, tokenB)
}

func (f *Factory) AllPairs(ctx context.Context, index uint64) (common.Address, error) {
	return f.callAddress(ctx, "allPairs", new(big.Int).SetUint64(index))
}

// AllPairsLength saturates at math.MaxUint64.
func (f *Factory) AllPairsLength(ctx context.Context) (uint64, error) {
	n, err := f.callBig(ctx, "allPairsLength")
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return math.MaxUint64, nil
	}
	return n.Uint64(), nil
}

// Reserves is a getReserves() snapshot in token0/token1 order.
type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// Pair binds a pair contract, which is also the LP token.
type Pair struct{ contract }

func NewPair(address common.Address, caller bind.ContractCaller) *Pair {
	return &Pair{newContract(address, PairABI, caller)}
}

func (p *Pair) GetReserves(ctx context.Context) (Reserves, error) {
	out, err := p.call(ctx, 3, "getReserves")
	if err != nil {
		return Reserves{}, err
	}
	return Reserves{
		Reserve0:           gethabi.ConvertType(out[0], new(big.Int)).(*big.Int),
		Reserve1:           gethabi.ConvertType(out[1], new(big.Int)).(*big.Int),
		BlockTimestampLast: *gethabi.ConvertType(out[2], new(uint32)).(*uint32),
	}, nil
}

func (p *Pair) Token0(ctx context.Context) (common.Address, error) {
	return p.callAddress(ctx, "token0")
}

func (p *Pair) Token1(ctx context.Context) (common.Address, error) {
	return p.callAddress(ctx, "token1")
}

func (p *Pair) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return p.callBig(ctx, "balanceOf", owner)
}

func (p *Pair) TotalSupply(ctx context.Context) (*big.Int, error) {
	return p.callBig(ctx, "totalSupply")
}

func (p *Pair) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return p.callBig(ctx, "allowance", owner, spender)
}

// Router binds the swap router. Only the getAmount* quotes are called;
// state-changing methods are packed into call data for the wallet to sign.
type Router struct{ contract }

func NewRouter(address common.Address, caller bind.ContractCaller) *Router {
	return &Router{newContract(address, RouterABI, caller)}
}

func (r *Router) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	out, err := r.call(ctx, 1, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	return *gethabi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

// GetAmountOut is the router's single-hop quote for the given reserves.
func (r *Router) GetAmountOut(ctx context.Context, amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	return r.callBig(ctx, "getAmountOut", amountIn, reserveIn, reserveOut)
}

// Pack encodes a router method call.
func (r *Router) Pack(method string, args ...any) ([]byte, error) {
	return RouterABI.Pack(method, args...)
}

// ERC20 binds a fungible token contract.
type ERC20 struct{ contract }

func NewERC20(address common.Address, caller bind.ContractCaller) *ERC20 {
	return &ERC20{newContract(address, ERC20ABI, caller)}
}

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", owner)
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(ctx, "allowance", owner, spender)
}

func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, 1, "decimals")
	if err != nil {
		return 0, err
	}
	return *gethabi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (t *ERC20) Symbol(ctx context.Context) (string, error) {
	out, err := t.call(ctx, 1, "symbol")
	if err != nil {
		return "", err
	}
	return *gethabi.ConvertType(out[0], new(string)).(*string), nil
}

func (t *ERC20) Name(ctx context.Context) (string, error) {
	out, err := t.call(ctx, 1, "name")
	if err != nil {
		return "", err
	}
	return *gethabi.ConvertType(out[0], new(string)).(*string), nil
}

// PackApprove encodes approve(spender, amount). The pair ABI shares the same
// selector, so the result is valid for LP tokens too.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20ABI.Pack("approve", spender, amount)
}
