// Package chaintest provides an in-process fake EVM node serving the factory,
// pair, router and ERC-20 view methods over the standard "eth" JSON-RPC
// namespace, so tests can drive a real *ethclient.Client.
package chaintest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/nulln0ne/uniswap-dex/internal/eth"
	"github.com/nulln0ne/uniswap-dex/pkg/uniswapv2"
)

var (
	DefaultFactory = common.HexToAddress("0x00000000000000000000000000000000000fac70")
	DefaultRouter  = common.HexToAddress("0x0000000000000000000000000000000000000707")
	DefaultWETH    = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

// Token is a fake ERC-20.
type Token struct {
	Address    common.Address
	Symbol     string
	Name       string
	Decimals   uint8
	NoDecimals bool // decimals() reverts
	Balances   map[common.Address]*big.Int
	Allowances map[[2]common.Address]*big.Int
}

// Pair is a fake pair / LP token.
type Pair struct {
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Reserve0    *big.Int
	Reserve1    *big.Int
	Timestamp   uint32
	TotalSupply *big.Int
	Balances    map[common.Address]*big.Int
	Allowances  map[[2]common.Address]*big.Int
}

// Chain is the fake node state. All setters are safe to call while a client is
// connected.
type Chain struct {
	mu sync.Mutex

	ID      uint64
	Factory common.Address
	Router  common.Address
	WETH    common.Address

	tokens   map[common.Address]*Token
	pairs    map[[2]common.Address]*Pair
	byAddr   map[common.Address]*Pair
	pairList []common.Address
	native   map[common.Address]*big.Int
	receipts map[common.Hash]*types.Receipt

	calls   map[string]int
	reverts map[string]string
	failErr error
	nextID  uint64
}

func New(chainID uint64) *Chain {
	c := &Chain{
		ID:       chainID,
		Factory:  DefaultFactory,
		Router:   DefaultRouter,
		WETH:     DefaultWETH,
		tokens:   make(map[common.Address]*Token),
		pairs:    make(map[[2]common.Address]*Pair),
		byAddr:   make(map[common.Address]*Pair),
		native:   make(map[common.Address]*big.Int),
		receipts: make(map[common.Hash]*types.Receipt),
		calls:    make(map[string]int),
		reverts:  make(map[string]string),
		nextID:   0xabc,
	}
	c.AddToken(c.WETH, "WMON", 18)
	return c
}

// Client starts an in-process RPC server for the chain and returns a client
// dialed to it.
func (c *Chain) Client(t testing.TB) *ethclient.Client {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", &ethService{chain: c}); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	rc := gethrpc.DialInProc(srv)
	t.Cleanup(func() {
		rc.Close()
		srv.Stop()
	})
	return ethclient.NewClient(rc)
}

// URL serves the chain over HTTP JSON-RPC and returns the endpoint.
func (c *Chain) URL(t testing.TB) string {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", &ethService{chain: c}); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		hs.Close()
		srv.Stop()
	})
	return hs.URL
}

func (c *Chain) AddToken(addr common.Address, symbol string, decimals uint8) *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok := &Token{
		Address:    addr,
		Symbol:     symbol,
		Name:       symbol + " Token",
		Decimals:   decimals,
		Balances:   make(map[common.Address]*big.Int),
		Allowances: make(map[[2]common.Address]*big.Int),
	}
	c.tokens[addr] = tok
	return tok
}

// AddPair creates the pair for (a, b) with reserveA held for a and reserveB for
// b, regardless of the on-chain token0/token1 ordering.
func (c *Chain) AddPair(a, b common.Address, reserveA, reserveB *big.Int) *Pair {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	p := &Pair{
		Address:     common.BigToAddress(new(big.Int).SetUint64(c.nextID << 80)),
		TotalSupply: big.NewInt(0),
		Balances:    make(map[common.Address]*big.Int),
		Allowances:  make(map[[2]common.Address]*big.Int),
		Timestamp:   1,
	}
	key := sortedKey(a, b)
	p.Token0, p.Token1 = key[0], key[1]
	if p.Token0 == a {
		p.Reserve0, p.Reserve1 = new(big.Int).Set(reserveA), new(big.Int).Set(reserveB)
	} else {
		p.Reserve0, p.Reserve1 = new(big.Int).Set(reserveB), new(big.Int).Set(reserveA)
	}
	c.pairs[key] = p
	c.byAddr[p.Address] = p
	c.pairList = append(c.pairList, p.Address)
	return p
}

// SetReserves updates the reserves of an existing pair, in (a, b) order, and
// bumps its timestamp.
func (c *Chain) SetReserves(a, b common.Address, reserveA, reserveB *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pairs[sortedKey(a, b)]
	if p.Token0 == a {
		p.Reserve0, p.Reserve1 = new(big.Int).Set(reserveA), new(big.Int).Set(reserveB)
	} else {
		p.Reserve0, p.Reserve1 = new(big.Int).Set(reserveB), new(big.Int).Set(reserveA)
	}
	p.Timestamp++
}

// SetLiquidity sets the LP balance of owner and the pair's total supply.
func (c *Chain) SetLiquidity(pair, owner common.Address, balance, totalSupply *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.byAddr[pair]
	p.Balances[owner] = new(big.Int).Set(balance)
	p.TotalSupply = new(big.Int).Set(totalSupply)
}

func (c *Chain) SetLPAllowance(pair, owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byAddr[pair].Allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(amount)
}

func (c *Chain) SetBalance(token, owner common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[token].Balances[owner] = new(big.Int).Set(amount)
}

func (c *Chain) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[token].Allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(amount)
}

func (c *Chain) SetNativeBalance(owner common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.native[owner] = new(big.Int).Set(amount)
}

// AddReceipt registers a mined transaction.
func (c *Chain) AddReceipt(hash common.Hash, success bool, block, gasUsed uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := types.ReceiptStatusFailed
	if success {
		status = types.ReceiptStatusSuccessful
	}
	c.receipts[hash] = &types.Receipt{
		Status:            status,
		CumulativeGasUsed: gasUsed,
		GasUsed:           gasUsed,
		TxHash:            hash,
		BlockNumber:       new(big.Int).SetUint64(block),
		Logs:              []*types.Log{},
	}
}

// RevertRouter makes calls to the named router method revert with reason.
// Other state-changing router methods succeed with zero outputs.
func (c *Chain) RevertRouter(method, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reverts[method] = reason
}

// Fail makes every subsequent eth_call fail with err; nil restores service.
func (c *Chain) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failErr = err
}

// Calls returns how many times the named contract method was called.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func sortedKey(a, b common.Address) [2]common.Address {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return [2]common.Address{a, b}
	}
	return [2]common.Address{b, a}
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// RevertError mimics a node's execution-reverted error with Error(string) data.
type RevertError struct{ Reason string }

func (e *RevertError) Error() string  { return "execution reverted: " + e.Reason }
func (e *RevertError) ErrorCode() int { return 3 }
func (e *RevertError) ErrorData() interface{} {
	strType, _ := gethabi.NewType("string", "", nil)
	packed, _ := gethabi.Arguments{{Type: strType}}.Pack(e.Reason)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Input *hexutil.Bytes  `json:"input"`
	Data  *hexutil.Bytes  `json:"data"`
}

func (a callArgs) payload() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

type ethService struct {
	chain *Chain
}

func (s *ethService) ChainId(ctx context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(new(big.Int).SetUint64(s.chain.ID)), nil
}

func (s *ethService) BlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(100), nil
}

func (s *ethService) GetBalance(ctx context.Context, addr common.Address, _ gethrpc.BlockNumberOrHash) (*hexutil.Big, error) {
	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()
	return (*hexutil.Big)(new(big.Int).Set(bigOrZero(s.chain.native[addr]))), nil
}

func (s *ethService) GetCode(ctx context.Context, addr common.Address, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()
	if s.chain.isContract(addr) {
		return hexutil.Bytes{0x60, 0x80}, nil
	}
	return hexutil.Bytes{}, nil
}

func (s *ethService) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()
	return s.chain.receipts[hash], nil
}

func (s *ethService) Call(ctx context.Context, args callArgs, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()
	if s.chain.failErr != nil {
		return nil, s.chain.failErr
	}
	if args.To == nil {
		return nil, errors.New("missing call target")
	}
	data := args.payload()
	if len(data) < 4 {
		return hexutil.Bytes{}, nil
	}
	out, err := s.chain.dispatch(*args.To, data)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Chain) isContract(addr common.Address) bool {
	if addr == c.Factory || addr == c.Router {
		return true
	}
	if _, ok := c.tokens[addr]; ok {
		return true
	}
	_, ok := c.byAddr[addr]
	return ok
}

func (c *Chain) dispatch(to common.Address, data []byte) ([]byte, error) {
	switch {
	case to == c.Factory:
		return c.serve(eth.FactoryABI, data, c.factoryMethod)
	case to == c.Router:
		return c.serve(eth.RouterABI, data, c.routerMethod)
	}
	if p, ok := c.byAddr[to]; ok {
		return c.serve(eth.PairABI, data, func(name string, in []any) ([]any, error) {
			return c.pairMethod(p, name, in)
		})
	}
	if tok, ok := c.tokens[to]; ok {
		return c.serve(eth.ERC20ABI, data, func(name string, in []any) ([]any, error) {
			return c.tokenMethod(tok, name, in)
		})
	}
	// No code at the address: an empty result, as a real node returns.
	return []byte{}, nil
}

func (c *Chain) serve(parsed gethabi.ABI, data []byte, fn func(string, []any) ([]any, error)) ([]byte, error) {
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, &RevertError{Reason: "unknown selector"}
	}
	in, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	c.calls[method.Name]++
	out, err := fn(method.Name, in)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (c *Chain) factoryMethod(name string, in []any) ([]any, error) {
	switch name {
	case "getPair":
		key := sortedKey(in[0].(common.Address), in[1].(common.Address))
		if p, ok := c.pairs[key]; ok {
			return []any{p.Address}, nil
		}
		return []any{common.Address{}}, nil
	case "allPairs":
		i := in[0].(*big.Int)
		if !i.IsUint64() || i.Uint64() >= uint64(len(c.pairList)) {
			return nil, &RevertError{Reason: "index out of range"}
		}
		return []any{c.pairList[i.Uint64()]}, nil
	case "allPairsLength":
		return []any{big.NewInt(int64(len(c.pairList)))}, nil
	}
	return nil, &RevertError{Reason: "unsupported factory method " + name}
}

func (c *Chain) pairMethod(p *Pair, name string, in []any) ([]any, error) {
	switch name {
	case "getReserves":
		return []any{new(big.Int).Set(p.Reserve0), new(big.Int).Set(p.Reserve1), p.Timestamp}, nil
	case "token0":
		return []any{p.Token0}, nil
	case "token1":
		return []any{p.Token1}, nil
	case "balanceOf":
		return []any{new(big.Int).Set(bigOrZero(p.Balances[in[0].(common.Address)]))}, nil
	case "totalSupply":
		return []any{new(big.Int).Set(p.TotalSupply)}, nil
	case "allowance":
		key := [2]common.Address{in[0].(common.Address), in[1].(common.Address)}
		return []any{new(big.Int).Set(bigOrZero(p.Allowances[key]))}, nil
	}
	return nil, &RevertError{Reason: "unsupported pair method " + name}
}

func (c *Chain) tokenMethod(tok *Token, name string, in []any) ([]any, error) {
	switch name {
	case "balanceOf":
		return []any{new(big.Int).Set(bigOrZero(tok.Balances[in[0].(common.Address)]))}, nil
	case "decimals":
		if tok.NoDecimals {
			return nil, &RevertError{Reason: "decimals not implemented"}
		}
		return []any{tok.Decimals}, nil
	case "symbol":
		return []any{tok.Symbol}, nil
	case "name":
		return []any{tok.Name}, nil
	case "allowance":
		key := [2]common.Address{in[0].(common.Address), in[1].(common.Address)}
		return []any{new(big.Int).Set(bigOrZero(tok.Allowances[key]))}, nil
	}
	return nil, &RevertError{Reason: "unsupported token method " + name}
}

func (c *Chain) routerMethod(name string, in []any) ([]any, error) {
	if name == "getAmountOut" {
		amountIn, reserveIn, reserveOut := in[0].(*big.Int), in[1].(*big.Int), in[2].(*big.Int)
		if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
			return nil, &RevertError{Reason: "UniswapV2Library: INSUFFICIENT_LIQUIDITY"}
		}
		var dst, t1, t2 big.Int
		return []any{new(big.Int).Set(uniswapv2.GetAmountOut(&dst, &t1, &t2, amountIn, reserveIn, reserveOut))}, nil
	}
	if reason, ok := c.reverts[name]; ok {
		return nil, &RevertError{Reason: reason}
	}
	switch name {
	case "swapExactETHForTokens", "swapExactTokensForETH", "swapExactTokensForTokens":
		return []any{[]*big.Int{}}, nil
	case "addLiquidity", "addLiquidityETH":
		return []any{new(big.Int), new(big.Int), new(big.Int)}, nil
	case "removeLiquidity", "removeLiquidityETH":
		return []any{new(big.Int), new(big.Int)}, nil
	}
	if name != "getAmountsOut" {
		return nil, &RevertError{Reason: "router method " + name + " is not callable"}
	}
	amountIn := in[0].(*big.Int)
	path := in[1].([]common.Address)
	if len(path) < 2 {
		return nil, &RevertError{Reason: "UniswapV2Library: INVALID_PATH"}
	}
	amounts := []*big.Int{new(big.Int).Set(amountIn)}
	for i := 0; i+1 < len(path); i++ {
		p, ok := c.pairs[sortedKey(path[i], path[i+1])]
		if !ok {
			return nil, &RevertError{Reason: "UniswapV2Library: PAIR_NOT_FOUND"}
		}
		reserveIn, reserveOut := p.Reserve0, p.Reserve1
		if p.Token0 != path[i] {
			reserveIn, reserveOut = p.Reserve1, p.Reserve0
		}
		if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
			return nil, &RevertError{Reason: "UniswapV2Library: INSUFFICIENT_LIQUIDITY"}
		}
		var dst, t1, t2 big.Int
		out := uniswapv2.GetAmountOut(&dst, &t1, &t2, amounts[i], reserveIn, reserveOut)
		amounts = append(amounts, new(big.Int).Set(out))
	}
	return []any{amounts}, nil
}
